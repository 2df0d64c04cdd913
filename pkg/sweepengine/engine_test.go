package sweepengine

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sudorandom/sweep-scope/pkg/feed"
	"github.com/sudorandom/sweep-scope/pkg/geodesy"
	"github.com/sudorandom/sweep-scope/pkg/surface"
)

// testSurface wraps a Memory surface, counts removals per handle and lets a
// test move the view centre.
type testSurface struct {
	*surface.Memory
	center  geodesy.LatLng
	removed map[surface.Handle]int
}

func newTestSurface() *testSurface {
	return &testSurface{
		Memory:  surface.NewMemory(geodesy.LatLng{}),
		removed: make(map[surface.Handle]int),
	}
}

func (s *testSurface) Remove(h surface.Handle) error {
	s.removed[h]++
	return s.Memory.Remove(h)
}

func (s *testSurface) ViewCenter() geodesy.LatLng { return s.center }

// payload builds a raw message at azimuth az carrying n point features.
func payload(az float64, n int) []byte {
	features := make([]string, n)
	for i := range features {
		features[i] = fmt.Sprintf(`{"type": "Feature", "geometry": {"type": "Point", "coordinates": [-122.4, %f]}, "properties": {"n": %d}}`, 47+float64(i)/100, i)
	}
	return []byte(fmt.Sprintf(`{"startAzi": %v, "features": [%s]}`, az, strings.Join(features, ",")))
}

func message(t *testing.T, az float64, n int) *feed.Message {
	t.Helper()
	m, err := feed.Decode(payload(az, n))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return m
}

func groupSize(surf *surface.Memory, h surface.Handle) int {
	size := -1
	surf.Visit(func(g surface.Group) {
		if g.Handle == h {
			size = len(g.Items)
		}
	})
	return size
}
