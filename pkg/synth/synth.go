// Package synth generates a fake rotating-radar detection feed. It drives the
// simulator and gives the engine tests realistic payloads.
package synth

import (
	"encoding/json"
	"math"
	"math/rand"

	geojson "github.com/paulmach/go.geojson"
	"github.com/sudorandom/sweep-scope/pkg/geodesy"
)

type Config struct {
	Origin geodesy.LatLng
	// RangeM is the maximum scan range. The reported range ramps up to it
	// over the first revolution.
	RangeM float64
	// StepDeg is how far the antenna turns between two messages.
	StepDeg float64
	// StartAzimuth is the bearing of the first message.
	StartAzimuth float64
	// Targets is the average number of point detections per message.
	Targets float64
	// Echo adds a wedge polygon covering each step.
	Echo bool
	Seed int64
}

func DefaultConfig() Config {
	return Config{
		Origin:  geodesy.LatLng{Lat: 47.2848, Lng: -122.44537},
		RangeM:  20000,
		StepDeg: 1.4,
		Targets: 1.5,
		Echo:    true,
		Seed:    1,
	}
}

// Frame is one generated message in the wire shape the feed decoder reads.
type Frame struct {
	Type     string             `json:"type"`
	StartAzi float64            `json:"startAzi"`
	EndAzi   float64            `json:"endAzi"`
	Range    float64            `json:"range"`
	Features []*geojson.Feature `json:"features"`
}

// Generator is not safe for concurrent use.
type Generator struct {
	cfg   Config
	rng   *rand.Rand
	az    float64
	steps int
}

func New(cfg Config) *Generator {
	if cfg.StepDeg <= 0 {
		cfg.StepDeg = 1
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
		az:  geodesy.Normalize(cfg.StartAzimuth),
	}
}

// StepsPerRevolution is the number of messages in one full turn.
func (g *Generator) StepsPerRevolution() int {
	return int(math.Ceil(360 / g.cfg.StepDeg))
}

// Next returns the next frame and advances the antenna.
func (g *Generator) Next() *Frame {
	start := g.az
	end := geodesy.Normalize(start + g.cfg.StepDeg)

	progress := math.Min(1, float64(g.steps+1)/float64(g.StepsPerRevolution()))
	rangeM := math.Round(g.cfg.RangeM * progress)

	f := &Frame{
		Type:     "FeatureCollection",
		StartAzi: round2(start),
		EndAzi:   round2(end),
		Range:    rangeM,
		Features: []*geojson.Feature{},
	}
	if g.cfg.Echo {
		f.Features = append(f.Features, g.wedge(start, rangeM))
	}
	for i := g.poisson(g.cfg.Targets); i > 0; i-- {
		f.Features = append(f.Features, g.target(start, rangeM))
	}

	g.az = end
	g.steps++
	return f
}

// NextJSON returns the next frame encoded as JSON.
func (g *Generator) NextJSON() ([]byte, error) {
	return json.Marshal(g.Next())
}

func (g *Generator) wedge(start, rangeM float64) *geojson.Feature {
	o := g.cfg.Origin
	ring := [][]float64{{o.Lng, o.Lat}}
	for _, b := range []float64{start, start + g.cfg.StepDeg/2, start + g.cfg.StepDeg} {
		p := geodesy.DestinationPoint(o, b, rangeM)
		ring = append(ring, []float64{p.Lng, p.Lat})
	}
	ring = append(ring, []float64{o.Lng, o.Lat})

	f := geojson.NewPolygonFeature([][][]float64{ring})
	// Faint outline matching the fill.
	alpha := round2(0.05 + 0.15*g.rng.Float64())
	f.SetProperty("stroke", "#2AC80D")
	f.SetProperty("fill", "#2AC80D")
	f.SetProperty("opacity", alpha)
	f.SetProperty("fillOpacity", alpha)
	f.SetProperty("weight", 1)
	f.SetProperty("endAz", round2(start+g.cfg.StepDeg))
	return f
}

func (g *Generator) target(start, rangeM float64) *geojson.Feature {
	bearing := start + g.rng.Float64()*g.cfg.StepDeg
	dist := rangeM * (0.1 + 0.9*g.rng.Float64())
	p := geodesy.DestinationPoint(g.cfg.Origin, bearing, dist)

	f := geojson.NewPointFeature([]float64{p.Lng, p.Lat})
	f.SetProperty("stroke", "#F2E205")
	f.SetProperty("fill", "#F2E205")
	f.SetProperty("weight", 1)
	// Marker size in pixels.
	f.SetProperty("radius", float64(2+g.rng.Intn(4)))
	return f
}

// poisson draws from a Poisson distribution with mean lambda (Knuth).
func (g *Generator) poisson(lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	l := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		p *= g.rng.Float64()
		if p <= l {
			return k
		}
		k++
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
