package sweepengine

import (
	"github.com/sudorandom/sweep-scope/pkg/feed"
	"github.com/sudorandom/sweep-scope/pkg/surface"
)

// DefaultStyle is used for any style hint a feature does not carry.
func DefaultStyle() surface.Style {
	return surface.Style{
		Stroke:      "#2AC80D",
		Fill:        "#2AC80D",
		Weight:      3,
		Opacity:     1,
		FillOpacity: 1,
		Radius:      3,
	}
}

// StyleFor reads the styling hints of a feature. Every field falls back to
// its default on its own when the property is missing, zero or not usable.
// fillOpacity falls back to opacity before the default.
func StyleFor(props map[string]interface{}, defaults surface.Style) surface.Style {
	s := defaults
	if v, ok := feed.String(props, "stroke"); ok {
		s.Stroke = v
	}
	if v, ok := feed.String(props, "fill"); ok {
		s.Fill = v
	}
	if v, ok := feed.Number(props, "weight"); ok && v > 0 {
		s.Weight = v
	}
	if v, ok := feed.Number(props, "opacity"); ok && inUnit(v) {
		s.Opacity = v
	}
	if v, ok := feed.Number(props, "fillOpacity"); ok && inUnit(v) {
		s.FillOpacity = v
	} else if v, ok := feed.Number(props, "opacity"); ok && inUnit(v) {
		s.FillOpacity = v
	}
	if v, ok := feed.Number(props, "radius"); ok && v > 0 {
		s.Radius = v
	}
	return s
}

func inUnit(v float64) bool { return v > 0 && v <= 1 }
