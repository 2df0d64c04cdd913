package sweep

import (
	"math"
	"testing"
)

func TestWindowContains(t *testing.T) {
	tests := []struct {
		w    Window
		deg  float64
		want bool
	}{
		{Window{180, 185}, 180, true},
		{Window{180, 185}, 184.9, true},
		{Window{180, 185}, 185, false},
		{Window{180, 185}, 179.9, false},
		{Window{358, 1}, 359, true},
		{Window{358, 1}, 0.5, true},
		{Window{358, 1}, 1, false},
		{Window{358, 1}, 357, false},
		{Window{358, 1}, -1, true},
		{Window{358, 1}, 720.5, true},
		{Window{-2, 1}, 359, true},
	}
	for _, tt := range tests {
		if got := tt.w.Contains(tt.deg); got != tt.want {
			t.Errorf("%v.Contains(%f) = %v; want %v", tt.w, tt.deg, got, tt.want)
		}
	}
}

func TestWindowValidate(t *testing.T) {
	if err := (Window{10, 10}).Validate(); err == nil {
		t.Error("expected empty window to be rejected")
	}
	if err := (Window{0, 360}).Validate(); err == nil {
		t.Error("expected [0, 360) to normalize to an empty window")
	}
	if err := (Window{math.NaN(), 1}).Validate(); err == nil {
		t.Error("expected NaN bound to be rejected")
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestTrackerAbsoluteWindows(t *testing.T) {
	tr := NewTracker(Config{
		Arm:     Window{180, 185},
		Confirm: Window{160, 180},
	})

	steps := []struct {
		az   float64
		want Phase
	}{
		{90, Cold},
		{170, Cold}, // confirm window means nothing while cold
		{182, Armed},
		{200, Armed},
		{359, Armed},
		{10, Armed},
		{150, Armed},
		{165, Sweeping},
		{183, Sweeping},
		{10, Sweeping},
	}
	for i, s := range steps {
		if got := tr.Observe(s.az); got != s.want {
			t.Fatalf("step %d: Observe(%f) = %v; want %v", i, s.az, got, s.want)
		}
	}
	if !tr.RevolutionComplete() {
		t.Error("expected revolution complete once sweeping")
	}
}

func TestTrackerRelativeWindows(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	if got := tr.Observe(100); got != Cold {
		t.Fatalf("first sample: got %v, want cold", got)
	}
	ref, ok := tr.Reference()
	if !ok || ref != 100 {
		t.Fatalf("reference = %f, %v; want 100, true", ref, ok)
	}
	if got := tr.Observe(100.5); got != Cold {
		t.Errorf("inside threshold: got %v, want cold", got)
	}
	if got := tr.Observe(102); got != Armed {
		t.Errorf("past threshold: got %v, want armed", got)
	}
	for az := 110.0; az < 460; az += 10 {
		tr.Observe(az)
	}
	if tr.Phase() != Armed {
		t.Fatalf("before wrap: got %v, want armed", tr.Phase())
	}
	if got := tr.Observe(99); got != Sweeping {
		t.Errorf("back at reference band: got %v, want sweeping", got)
	}
}

func TestTrackerRelativeWrapsThroughNorth(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.Observe(359.5)
	if got := tr.Observe(2); got != Armed {
		t.Fatalf("got %v, want armed", got)
	}
	for az := 10.0; az < 350; az += 20 {
		tr.Observe(az)
	}
	if got := tr.Observe(358); got != Sweeping {
		t.Errorf("got %v, want sweeping", got)
	}
}

func TestTrackerOneTransitionPerSample(t *testing.T) {
	// A sample sitting in both windows may only arm.
	tr := NewTracker(Config{
		Arm:     Window{10, 20},
		Confirm: Window{0, 30},
	})
	if got := tr.Observe(15); got != Armed {
		t.Fatalf("got %v, want armed", got)
	}
	if got := tr.Observe(15); got != Sweeping {
		t.Fatalf("got %v, want sweeping", got)
	}
}

func TestTrackerNeverRegresses(t *testing.T) {
	tr := NewTracker(Config{
		Arm:     Window{180, 185},
		Confirm: Window{160, 180},
	})

	// Noisy signal dithering around both thresholds.
	samples := []float64{179.9, 180.1, 179.8, 180.2, 160.1, 159.9, 180.0, 181, 170, 179.99, 0, 359}
	prev := Cold
	for _, az := range samples {
		p := tr.Observe(az)
		if p < prev {
			t.Fatalf("phase regressed from %v to %v at %f", prev, p, az)
		}
		prev = p
	}
	if prev != Sweeping {
		t.Errorf("final phase = %v; want sweeping", prev)
	}
}

func TestTrackerIgnoresNonFinite(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.Observe(math.NaN())
	tr.Observe(math.Inf(1))
	if _, ok := tr.Reference(); ok {
		t.Error("non-finite samples must not set the reference")
	}
	if _, ok := tr.Last(); ok {
		t.Error("non-finite samples must not count")
	}
	tr.Observe(45)
	if ref, _ := tr.Reference(); ref != 45 {
		t.Errorf("reference = %f; want 45", ref)
	}
}

func TestPhaseString(t *testing.T) {
	tests := map[Phase]string{
		Cold:      "cold",
		Armed:     "armed",
		Sweeping:  "sweeping",
		Phase(42): "phase(42)",
	}
	for p, want := range tests {
		if got := p.String(); got != want {
			t.Errorf("%d.String() = %q; want %q", int(p), got, want)
		}
	}
}

func TestTrackerWideStepConfirmsOnFirstReturn(t *testing.T) {
	const step = 7.3
	revolutionsToSweep := func(wedges bool) float64 {
		tr := NewTracker(DefaultConfig())
		for i := 0; i < 2000; i++ {
			start := float64(i) * step
			var p Phase
			if wedges {
				p = tr.ObserveWedge(start, start+step)
			} else {
				p = tr.Observe(start)
			}
			if p == Sweeping {
				return start / 360
			}
		}
		return math.Inf(1)
	}

	if got := revolutionsToSweep(true); got > 1.05 {
		t.Errorf("with wedges: sweeping after %.2f revolutions; want the first return", got)
	}
	// Bare samples jump over the three-degree default band.
	if got := revolutionsToSweep(false); got < 1.5 {
		t.Errorf("without wedges: sweeping after %.2f revolutions; expected a late confirm", got)
	}
}

func TestTrackerWedgeSpan(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		start, end float64
		wantSpan   float64
		want       Window
	}{
		{"relative", DefaultConfig(), 0, 7.3, 7.3, Window{358, 8.3}},
		{"wraps through north", DefaultConfig(), 357, 2, 5, Window{358, 6}},
		{"backwards wedge ignored", DefaultConfig(), 10, 5, 0, Window{358, 1}},
		{"absolute windows unchanged", Config{Arm: Window{180, 185}, Confirm: Window{160, 180}}, 0, 7.3, 7.3, Window{160, 180}},
		{"never covers the excluded gap", Config{Relative: true, Arm: Window{1, 180}, Confirm: Window{90, 1}}, 0, 120, 120, Window{90, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(tt.cfg)
			tr.ObserveWedge(tt.start, tt.end)
			if math.Abs(tr.Span()-tt.wantSpan) > 1e-9 {
				t.Errorf("Span() = %v; want %v", tr.Span(), tt.wantSpan)
			}
			got := tr.confirmWindow()
			if math.Abs(got.From-tt.want.From) > 1e-9 || math.Abs(got.To-tt.want.To) > 1e-9 {
				t.Errorf("confirm window = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestTrackerOnlyFirstWedgeSetsSpan(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.ObserveWedge(0, 4)
	tr.ObserveWedge(4, 20)
	if tr.Span() != 4 {
		t.Errorf("Span() = %v; want 4 from the first wedge", tr.Span())
	}
}
