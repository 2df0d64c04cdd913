package surface

import (
	"sync"

	geojson "github.com/paulmach/go.geojson"
	"github.com/sudorandom/sweep-scope/pkg/geodesy"
)

// Group is a snapshot of one handle's drawables.
type Group struct {
	Handle Handle
	Items  []Drawable
}

// Memory keeps overlays in memory in z-order (index 0 drawn first). It backs
// headless sessions and the ebiten scope.
type Memory struct {
	center geodesy.LatLng

	mu      sync.RWMutex
	next    Handle
	groups  map[Handle][]Drawable
	order   []Handle
	version uint64
}

func NewMemory(center geodesy.LatLng) *Memory {
	return &Memory{
		center: center,
		groups: make(map[Handle][]Drawable),
	}
}

func (m *Memory) Add(items ...Drawable) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	h := m.next
	m.groups[h] = cloneItems(items)
	m.order = append(m.order, h)
	m.version++
	return h, nil
}

func (m *Memory) Remove(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[h]; !ok {
		return ErrUnknownHandle
	}
	delete(m.groups, h)
	m.order = removeHandle(m.order, h)
	m.version++
	return nil
}

func (m *Memory) Update(h Handle, items ...Drawable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[h]; !ok {
		return ErrUnknownHandle
	}
	m.groups[h] = cloneItems(items)
	m.version++
	return nil
}

func (m *Memory) BringToFront(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[h]; !ok {
		return ErrUnknownHandle
	}
	if len(m.order) > 0 && m.order[len(m.order)-1] == h {
		return nil
	}
	m.order = append(removeHandle(m.order, h), h)
	m.version++
	return nil
}

func (m *Memory) ViewCenter() geodesy.LatLng { return m.center }

// Len returns the number of groups on the surface.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Version increases on every mutation.
func (m *Memory) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// Has reports whether h is still on the surface.
func (m *Memory) Has(h Handle) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.groups[h]
	return ok
}

// Order returns the handles bottom to top.
func (m *Memory) Order() []Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Handle, len(m.order))
	copy(out, m.order)
	return out
}

// Visit calls fn for every group bottom to top while holding the read lock.
// fn must not call back into the surface.
func (m *Memory) Visit(fn func(Group)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.order {
		fn(Group{Handle: h, Items: m.groups[h]})
	}
}

// Snapshot renders the surface as a GeoJSON FeatureCollection, bottom to top.
// Circles become points carrying a radius property.
func (m *Memory) Snapshot() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	m.Visit(func(g Group) {
		for _, d := range g.Items {
			var f *geojson.Feature
			switch {
			case d.Geometry != nil:
				f = geojson.NewFeature(d.Geometry)
			case d.Circle != nil:
				f = geojson.NewPointFeature([]float64{d.Circle.Center.Lng, d.Circle.Center.Lat})
				f.SetProperty("radius", d.Circle.RadiusM)
			default:
				continue
			}
			f.SetProperty("handle", uint64(g.Handle))
			setStyle(f, d.Style)
			fc.AddFeature(f)
		}
	})
	return fc
}

func setStyle(f *geojson.Feature, s Style) {
	if s.Stroke != "" {
		f.SetProperty("stroke", s.Stroke)
	}
	if s.Fill != "" {
		f.SetProperty("fill", s.Fill)
	}
	f.SetProperty("weight", s.Weight)
	f.SetProperty("opacity", s.Opacity)
	f.SetProperty("fillOpacity", s.FillOpacity)
}

func cloneItems(items []Drawable) []Drawable {
	out := make([]Drawable, len(items))
	copy(out, items)
	return out
}

func removeHandle(order []Handle, h Handle) []Handle {
	for i, v := range order {
		if v == h {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
