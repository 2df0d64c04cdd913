package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/sudorandom/sweep-scope/pkg/geodesy"
	"github.com/sudorandom/sweep-scope/pkg/sweep"
	"github.com/sudorandom/sweep-scope/pkg/sweepengine"
	"gopkg.in/yaml.v3"
)

type FeedConfig struct {
	URL string `yaml:"url"`
	// Capture replays a recorded feed instead of dialing URL.
	Capture        string        `yaml:"capture"`
	ReplayInterval time.Duration `yaml:"replay_interval"`
}

type ScopeConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	// RangeM is the distance from the view centre to the nearest window edge.
	RangeM          float64       `yaml:"range_m"`
	CaptureDir      string        `yaml:"capture_dir"`
	CaptureInterval time.Duration `yaml:"capture_interval"`
}

// Config is the top-level structure of the viewer's YAML file.
type Config struct {
	Feed   FeedConfig     `yaml:"feed"`
	Origin geodesy.LatLng `yaml:"origin"`
	// ViewCenter defaults to Origin.
	ViewCenter *geodesy.LatLng         `yaml:"view_center"`
	DistanceM  float64                 `yaml:"distance_m"`
	Throttle   time.Duration           `yaml:"throttle"`
	Sweep      sweep.Config            `yaml:"sweep"`
	Layers     sweepengine.LayerConfig `yaml:"layers"`
	Scope      ScopeConfig             `yaml:"scope"`
}

func Default() *Config {
	engine := sweepengine.DefaultConfig()
	return &Config{
		Feed: FeedConfig{
			URL:            "ws://localhost:8765/geosocket",
			ReplayInterval: 40 * time.Millisecond,
		},
		Origin:    engine.Origin,
		DistanceM: engine.Distance,
		Throttle:  engine.Throttle,
		Sweep:     engine.Sweep,
		Layers:    engine.Layers,
		Scope: ScopeConfig{
			Width:           1024,
			Height:          1024,
			RangeM:          22000,
			CaptureInterval: time.Minute,
		},
	}
}

// Load reads path on top of the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	if err := validLatLng(c.Origin); err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	if c.ViewCenter != nil {
		if err := validLatLng(*c.ViewCenter); err != nil {
			return fmt.Errorf("view_center: %w", err)
		}
	}
	if c.DistanceM <= 0 || math.IsInf(c.DistanceM, 0) {
		return fmt.Errorf("distance_m must be positive, got %v", c.DistanceM)
	}
	if c.Throttle < 0 {
		return fmt.Errorf("throttle must not be negative, got %v", c.Throttle)
	}
	if err := c.Sweep.Validate(); err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	if err := c.Layers.Validate(); err != nil {
		return fmt.Errorf("layers: %w", err)
	}
	if c.Scope.Width <= 0 || c.Scope.Height <= 0 {
		return fmt.Errorf("scope size must be positive, got %dx%d", c.Scope.Width, c.Scope.Height)
	}
	if c.Scope.RangeM <= 0 {
		return fmt.Errorf("scope range_m must be positive, got %v", c.Scope.RangeM)
	}
	return nil
}

// Center returns the view centre, falling back to the origin.
func (c *Config) Center() geodesy.LatLng {
	if c.ViewCenter != nil {
		return *c.ViewCenter
	}
	return c.Origin
}

// Session returns the engine configuration.
func (c *Config) Session(debug bool) sweepengine.Config {
	return sweepengine.Config{
		Origin:   c.Origin,
		Distance: c.DistanceM,
		Throttle: c.Throttle,
		Sweep:    c.Sweep,
		Layers:   c.Layers,
		Debug:    debug,
	}
}

func validLatLng(p geodesy.LatLng) error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", p.Lat)
	}
	if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude %v out of range", p.Lng)
	}
	return nil
}
