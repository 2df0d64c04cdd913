// Package feed decodes the detection stream produced by the sweep sensor and
// provides the sources it can arrive from.
//
// A message is a GeoJSON FeatureCollection carrying scan metadata:
//
//	{"type":"FeatureCollection","startAzi":181.2,"endAzi":182.6,"range":15000,"features":[...]}
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/brunoga/deep"
	geojson "github.com/paulmach/go.geojson"
)

var ErrEmptyPayload = errors.New("feed: empty payload")

// Message is one detection batch as received from the sensor.
type Message struct {
	// Azimuth is the sweep bearing at capture time in degrees. Nil when the
	// payload carried none.
	Azimuth *float64
	// EndAzimuth is the bearing where the wedge covered by this message
	// ends. The tracker sizes its confirm window from the first one.
	EndAzimuth *float64
	// Range is the scan range in meters, when present.
	Range    *float64
	Features []*geojson.Feature
}

type wireMessage struct {
	Type     string             `json:"type"`
	Azimuth  *float64           `json:"azimuth"`
	StartAzi *float64           `json:"startAzi"`
	EndAzi   *float64           `json:"endAzi"`
	Range    *float64           `json:"range"`
	Features []*geojson.Feature `json:"features"`
}

// Decode parses a raw payload. Unknown top-level fields are ignored.
func Decode(raw []byte) (*Message, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyPayload
	}
	var w wireMessage
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("feed: decode message: %w", err)
	}

	m := &Message{
		EndAzimuth: finite(w.EndAzi),
		Range:      finite(w.Range),
	}
	for _, f := range w.Features {
		if f != nil {
			m.Features = append(m.Features, f)
		}
	}

	switch {
	case finite(w.Azimuth) != nil:
		m.Azimuth = w.Azimuth
	case finite(w.StartAzi) != nil:
		m.Azimuth = w.StartAzi
	case len(m.Features) > 0:
		if v, ok := Number(m.Features[0].Properties, "endAz"); ok {
			m.Azimuth = &v
		}
	}
	return m, nil
}

// Bearing returns the sweep azimuth, if the message had one.
func (m *Message) Bearing() (float64, bool) {
	if m == nil || m.Azimuth == nil {
		return 0, false
	}
	return *m.Azimuth, true
}

// RangeRadius returns the radius the range indicator should grow to: the
// message range, or else the radius property of the last feature.
func (m *Message) RangeRadius() (float64, bool) {
	if m == nil {
		return 0, false
	}
	if m.Range != nil {
		return *m.Range, true
	}
	if len(m.Features) == 0 {
		return 0, false
	}
	return Number(m.Features[len(m.Features)-1].Properties, "radius")
}

// Merge coalesces queued messages into one composite. Scalar fields of later
// messages override earlier ones. Feature sequences are concatenated in
// arrival order, never merged by index. Features are deep-copied so the
// composite shares nothing with its inputs. Merge returns nil for no input.
func Merge(msgs []*Message) (*Message, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	total := 0
	for _, m := range msgs {
		if m != nil {
			total += len(m.Features)
		}
	}

	out := &Message{Features: make([]*geojson.Feature, 0, total)}
	for _, m := range msgs {
		if m == nil {
			continue
		}
		if m.Azimuth != nil {
			v := *m.Azimuth
			out.Azimuth = &v
		}
		if m.EndAzimuth != nil {
			v := *m.EndAzimuth
			out.EndAzimuth = &v
		}
		if m.Range != nil {
			v := *m.Range
			out.Range = &v
		}
		if len(m.Features) == 0 {
			continue
		}
		features, err := deep.Copy(m.Features)
		if err != nil {
			return nil, fmt.Errorf("feed: copy features: %w", err)
		}
		out.Features = append(out.Features, features...)
	}
	return out, nil
}

// Number reads a numeric property. Strings holding a number are accepted since
// some producers quote everything.
func Number(props map[string]interface{}, key string) (float64, bool) {
	raw, ok := props[key]
	if !ok || raw == nil {
		return 0, false
	}
	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// String reads a non-empty string property.
func String(props map[string]interface{}, key string) (string, bool) {
	s, ok := props[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func finite(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}
