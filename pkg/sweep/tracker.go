// Package sweep infers antenna revolution boundaries from a stream of azimuth
// samples. A one-shot hysteresis latch with two windows detects wraparound of
// the circular bearing without tracking an unwrapped angle.
package sweep

import (
	"fmt"
	"math"

	"github.com/sudorandom/sweep-scope/pkg/geodesy"
)

// Phase is the latched state of a Tracker. Phases only move forward.
type Phase int

const (
	// Cold: the arm window has not been seen yet. Nothing is rendered.
	Cold Phase = iota
	// Armed: data is rendered, nothing is evicted for staleness yet.
	Armed
	// Sweeping: at least one revolution completed since arming.
	Sweeping
)

func (p Phase) String() string {
	switch p {
	case Cold:
		return "cold"
	case Armed:
		return "armed"
	case Sweeping:
		return "sweeping"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Window is a half-open bearing interval [From, To) in degrees. When From is
// greater than To the window wraps through north.
type Window struct {
	From float64 `yaml:"from"`
	To   float64 `yaml:"to"`
}

// Contains reports whether deg (any value, taken mod 360) lies in the window.
func (w Window) Contains(deg float64) bool {
	d := geodesy.Normalize(deg)
	from, to := geodesy.Normalize(w.From), geodesy.Normalize(w.To)
	if from <= to {
		return d >= from && d < to
	}
	return d >= from || d < to
}

// Validate rejects empty windows.
func (w Window) Validate() error {
	if math.IsNaN(w.From) || math.IsNaN(w.To) || math.IsInf(w.From, 0) || math.IsInf(w.To, 0) {
		return fmt.Errorf("window bounds must be finite, got [%v, %v)", w.From, w.To)
	}
	if geodesy.Normalize(w.From) == geodesy.Normalize(w.To) {
		return fmt.Errorf("window [%v, %v) is empty", w.From, w.To)
	}
	return nil
}

// Config selects the two thresholds of the latch.
//
// With Relative set, both windows are offsets from the reference azimuth (the
// first sample seen by the tracker). Otherwise they are absolute bearings.
type Config struct {
	Relative bool   `yaml:"relative"`
	Arm      Window `yaml:"arm"`
	Confirm  Window `yaml:"confirm"`
}

// DefaultConfig arms once the sweep is more than one degree past where the
// session started and confirms when it comes back to within two degrees
// behind that point, or inside the first wedge when the feed reports one.
func DefaultConfig() Config {
	return Config{
		Relative: true,
		Arm:      Window{From: 1, To: 180},
		Confirm:  Window{From: 358, To: 1},
	}
}

// Validate checks that both windows are usable.
func (c Config) Validate() error {
	if err := c.Arm.Validate(); err != nil {
		return fmt.Errorf("arm: %w", err)
	}
	if err := c.Confirm.Validate(); err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	return nil
}

// Tracker classifies azimuth samples. It is not safe for concurrent use; a
// session owns exactly one.
type Tracker struct {
	cfg          Config
	phase        Phase
	reference    float64
	hasReference bool
	last         float64
	samples      int
	// span is the width of the first wedge, when the feed reports one.
	span float64
}

func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg}
}

// ObserveWedge feeds a sample covering the bearings from start to end. The
// width of the first wedge widens a relative confirm window, so a feed that
// steps further than the window is wide still confirms on its first return.
func (t *Tracker) ObserveWedge(start, end float64) Phase {
	if !t.hasReference && isFinite(start) && isFinite(end) {
		if span := geodesy.Normalize(end - start); span < 180 {
			t.span = span
		}
	}
	return t.Observe(start)
}

// Observe feeds one azimuth sample and returns the phase after it. Non-finite
// samples are ignored. At most one transition happens per sample.
func (t *Tracker) Observe(azimuth float64) Phase {
	if !isFinite(azimuth) {
		return t.phase
	}
	az := geodesy.Normalize(azimuth)
	if !t.hasReference {
		t.reference = az
		t.hasReference = true
	}
	t.last = az
	t.samples++

	probe := az
	if t.cfg.Relative {
		probe = geodesy.Normalize(az - t.reference)
	}

	switch t.phase {
	case Cold:
		if t.cfg.Arm.Contains(probe) {
			t.phase = Armed
		}
	case Armed:
		if t.confirmWindow().Contains(probe) {
			t.phase = Sweeping
		}
	}
	return t.phase
}

// confirmWindow is the configured confirm window, stretched past its end by
// the first wedge's span in relative mode. The stretch never eats into the
// bearings the window excludes.
func (t *Tracker) confirmWindow() Window {
	w := t.cfg.Confirm
	if !t.cfg.Relative || t.span <= 0 {
		return w
	}
	gap := geodesy.Normalize(w.From - w.To)
	if t.span >= gap {
		return w
	}
	w.To += t.span
	return w
}

// Span returns the width of the first wedge, or zero when none was reported.
func (t *Tracker) Span() float64 { return t.span }

func (t *Tracker) Phase() Phase { return t.phase }

// RevolutionComplete reports whether the oldest rendered group now belongs to
// a previous revolution and should be dropped before the next one is drawn.
func (t *Tracker) RevolutionComplete() bool {
	return t.phase == Sweeping
}

// Reference returns the azimuth recorded at the first valid sample.
func (t *Tracker) Reference() (float64, bool) {
	return t.reference, t.hasReference
}

// Last returns the most recent valid azimuth.
func (t *Tracker) Last() (float64, bool) {
	return t.last, t.samples > 0
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
