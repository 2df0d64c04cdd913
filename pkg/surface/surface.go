// Package surface defines the drawing capability the sweep engine renders
// into, plus an in-memory implementation that keeps every overlay in z-order.
package surface

import (
	"errors"

	geojson "github.com/paulmach/go.geojson"
	"github.com/sudorandom/sweep-scope/pkg/geodesy"
)

// ErrUnknownHandle is returned when a handle is no longer on the surface.
var ErrUnknownHandle = errors.New("surface: unknown handle")

// Handle is an opaque reference to a group of drawables.
type Handle uint64

// Style describes how a drawable is painted. Colors are CSS hex strings.
type Style struct {
	Stroke      string  `yaml:"stroke"`
	Fill        string  `yaml:"fill"`
	Weight      float64 `yaml:"weight"`
	Opacity     float64 `yaml:"opacity"`
	FillOpacity float64 `yaml:"fill_opacity"`
	// Radius is the marker radius in pixels for point geometries.
	Radius float64 `yaml:"radius"`
}

// Circle is a geographic circle with a radius in meters.
type Circle struct {
	Center  geodesy.LatLng
	RadiusM float64
}

// Drawable is one styled shape. Exactly one of Geometry and Circle is set.
type Drawable struct {
	Geometry *geojson.Geometry
	Circle   *Circle
	Style    Style
}

// Surface is the map the engine draws on. Implementations must be safe for
// use by one writer alongside concurrent readers (the renderer).
type Surface interface {
	// Add draws a group of drawables on top of everything else.
	Add(items ...Drawable) (Handle, error)
	Remove(h Handle) error
	// Update replaces the drawables of an existing group in place, keeping
	// its z-order.
	Update(h Handle, items ...Drawable) error
	BringToFront(h Handle) error
	ViewCenter() geodesy.LatLng
}

// LineString builds a two-point line geometry from a to b.
func LineString(a, b geodesy.LatLng) *geojson.Geometry {
	return geojson.NewLineStringGeometry([][]float64{{a.Lng, a.Lat}, {b.Lng, b.Lat}})
}
