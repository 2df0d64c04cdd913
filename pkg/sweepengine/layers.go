package sweepengine

import (
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/sudorandom/sweep-scope/pkg/feed"
	"github.com/sudorandom/sweep-scope/pkg/geodesy"
	"github.com/sudorandom/sweep-scope/pkg/metrics"
	"github.com/sudorandom/sweep-scope/pkg/surface"
)

type RangeIndicatorConfig struct {
	Enabled bool `yaml:"enabled"`
	// MinRadius is the starting radius in meters. Only larger radii are drawn.
	MinRadius float64       `yaml:"min_radius"`
	Style     surface.Style `yaml:"style"`
}

type LayerConfig struct {
	// Capacity bounds the number of feature groups on the surface.
	Capacity       int                  `yaml:"capacity"`
	Defaults       surface.Style        `yaml:"defaults"`
	BearingLine    surface.Style        `yaml:"bearing_line"`
	RangeIndicator RangeIndicatorConfig `yaml:"range_indicator"`
}

func DefaultLayerConfig() LayerConfig {
	return LayerConfig{
		Capacity: 2000,
		Defaults: DefaultStyle(),
		BearingLine: surface.Style{
			Stroke:  "#2AC80D",
			Weight:  2,
			Opacity: 1,
		},
		RangeIndicator: RangeIndicatorConfig{
			Enabled:   true,
			MinRadius: 10,
			Style: surface.Style{
				Stroke:      "#2AC80D",
				Fill:        "#000000",
				Weight:      2,
				Opacity:     1,
				FillOpacity: 0.5,
			},
		},
	}
}

func (c LayerConfig) Validate() error {
	if c.Capacity < 1 {
		return fmt.Errorf("capacity must be at least 1, got %d", c.Capacity)
	}
	if c.RangeIndicator.MinRadius < 0 || math.IsNaN(c.RangeIndicator.MinRadius) {
		return fmt.Errorf("range indicator min radius must be >= 0, got %v", c.RangeIndicator.MinRadius)
	}
	return nil
}

// LayerManager owns everything the engine draws: the FIFO of feature groups,
// the bearing line and the range indicator. It is the only writer of its
// surface.
type LayerManager struct {
	surf  surface.Surface
	cfg   LayerConfig
	debug bool

	groups []surface.Handle

	bearing    surface.Handle
	hasBearing bool

	rangeCircle surface.Handle
	hasRange    bool
	rangeCenter geodesy.LatLng
	radius      float64
}

func NewLayerManager(surf surface.Surface, cfg LayerConfig, debug bool) *LayerManager {
	return &LayerManager{
		surf:   surf,
		cfg:    cfg,
		debug:  debug,
		radius: cfg.RangeIndicator.MinRadius,
	}
}

// RenderBatch draws one merged batch as a single feature group. When
// revolutionComplete is set the oldest group is evicted before the insert.
// Capacity is enforced after it. Features without geometry are skipped and a
// batch with nothing drawable changes nothing.
func (lm *LayerManager) RenderBatch(batch *feed.Message, revolutionComplete bool) error {
	if batch == nil {
		return nil
	}
	items := make([]surface.Drawable, 0, len(batch.Features))
	for _, f := range batch.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		items = append(items, surface.Drawable{
			Geometry: f.Geometry,
			Style:    StyleFor(f.Properties, lm.cfg.Defaults),
		})
	}
	if len(items) == 0 {
		return nil
	}

	if revolutionComplete && len(lm.groups) > 0 {
		lm.evictOldest(metrics.ReasonRevolution)
	}

	h, err := lm.surf.Add(items...)
	if err != nil {
		return fmt.Errorf("add feature group: %w", err)
	}
	lm.groups = append(lm.groups, h)
	metrics.BatchesTotal.Inc()
	metrics.FeaturesTotal.Add(float64(len(items)))

	for len(lm.groups) > lm.cfg.Capacity {
		lm.evictOldest(metrics.ReasonCapacity)
	}
	metrics.Layers.Set(float64(len(lm.groups)))

	if lm.debug {
		log.Printf("DEBUG: [LAYERS] Rendered group %d with %d features, %d groups on surface", h, len(items), len(lm.groups))
	}
	return nil
}

func (lm *LayerManager) evictOldest(reason string) {
	h := lm.groups[0]
	lm.groups[0] = 0
	lm.groups = lm.groups[1:]
	metrics.EvictionsTotal.WithLabelValues(reason).Inc()
	lm.remove(h)
}

// remove drops h from the surface. A handle the surface no longer knows is
// already gone, so that only gets logged.
func (lm *LayerManager) remove(h surface.Handle) {
	err := lm.surf.Remove(h)
	switch {
	case err == nil:
	case errors.Is(err, surface.ErrUnknownHandle):
		metrics.StaleHandlesTotal.Inc()
		log.Printf("[LAYERS] Group %d already gone from surface", h)
	default:
		log.Printf("[LAYERS] Failed to remove group %d: %v", h, err)
	}
}

// UpdateBearingLine moves the bearing line to span origin..dest and raises it
// above every other overlay. The line is created on first use and recreated
// if the surface lost it.
func (lm *LayerManager) UpdateBearingLine(origin, dest geodesy.LatLng) error {
	line := surface.Drawable{
		Geometry: surface.LineString(origin, dest),
		Style:    lm.cfg.BearingLine,
	}
	if lm.hasBearing {
		err := lm.surf.Update(lm.bearing, line)
		switch {
		case err == nil:
		case errors.Is(err, surface.ErrUnknownHandle):
			metrics.StaleHandlesTotal.Inc()
			log.Printf("[LAYERS] Bearing line %d lost, recreating", lm.bearing)
			lm.hasBearing = false
		default:
			return fmt.Errorf("update bearing line: %w", err)
		}
	}
	if !lm.hasBearing {
		h, err := lm.surf.Add(line)
		if err != nil {
			return fmt.Errorf("add bearing line: %w", err)
		}
		lm.bearing = h
		lm.hasBearing = true
	}
	if err := lm.surf.BringToFront(lm.bearing); err != nil && !errors.Is(err, surface.ErrUnknownHandle) {
		return fmt.Errorf("raise bearing line: %w", err)
	}
	return nil
}

// UpdateRangeIndicator grows the range circle to radius meters. Smaller or
// equal radii are ignored so the circle never shrinks. The centre is taken
// from the surface view when the circle is first created and kept after that.
func (lm *LayerManager) UpdateRangeIndicator(radius float64) error {
	if !lm.cfg.RangeIndicator.Enabled {
		return nil
	}
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius <= lm.radius {
		return nil
	}

	if !lm.hasRange {
		lm.rangeCenter = lm.surf.ViewCenter()
	}
	circle := surface.Drawable{
		Circle: &surface.Circle{Center: lm.rangeCenter, RadiusM: radius},
		Style:  lm.cfg.RangeIndicator.Style,
	}
	if lm.hasRange {
		err := lm.surf.Update(lm.rangeCircle, circle)
		switch {
		case err == nil:
		case errors.Is(err, surface.ErrUnknownHandle):
			metrics.StaleHandlesTotal.Inc()
			log.Printf("[LAYERS] Range indicator %d lost, recreating", lm.rangeCircle)
			lm.hasRange = false
		default:
			return fmt.Errorf("update range indicator: %w", err)
		}
	}
	if !lm.hasRange {
		h, err := lm.surf.Add(circle)
		if err != nil {
			return fmt.Errorf("add range indicator: %w", err)
		}
		lm.rangeCircle = h
		lm.hasRange = true
	}
	lm.radius = radius
	metrics.RangeRadiusMeters.Set(radius)
	return nil
}

// Radius returns the current range indicator radius.
func (lm *LayerManager) Radius() float64 { return lm.radius }

// Len returns the number of feature groups on the surface.
func (lm *LayerManager) Len() int { return len(lm.groups) }

// Handles returns the feature groups oldest first.
func (lm *LayerManager) Handles() []surface.Handle {
	out := make([]surface.Handle, len(lm.groups))
	copy(out, lm.groups)
	return out
}

// Clear removes every overlay this manager drew and resets it to its
// initial state.
func (lm *LayerManager) Clear() {
	for _, h := range lm.groups {
		lm.remove(h)
	}
	lm.groups = nil
	if lm.hasBearing {
		lm.remove(lm.bearing)
		lm.hasBearing = false
	}
	if lm.hasRange {
		lm.remove(lm.rangeCircle)
		lm.hasRange = false
	}
	lm.radius = lm.cfg.RangeIndicator.MinRadius
	metrics.Layers.Set(0)
	metrics.RangeRadiusMeters.Set(0)
}
