package main

import (
	"context"
	"math"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sudorandom/sweep-scope/pkg/feed"
	"github.com/sudorandom/sweep-scope/pkg/synth"
)

func testFlags() GeneratorFlags {
	return GeneratorFlags{
		Lat:     47.2848,
		Lng:     -122.44537,
		RangeM:  20000,
		Step:    1.4,
		Targets: 1.5,
		Seed:    1,
	}
}

func TestFeedHandler(t *testing.T) {
	srv := httptest.NewServer(feedHandler(testFlags().config(), time.Millisecond))
	defer srv.Close()

	src, err := feed.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer src.Close()

	var bearings []float64
	timeout := time.After(5 * time.Second)
	for len(bearings) < 5 {
		select {
		case raw, ok := <-src.Messages():
			if !ok {
				t.Fatalf("feed closed early: %v", src.Err())
			}
			msg, err := feed.Decode(raw)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			b, ok := msg.Bearing()
			if !ok {
				t.Fatal("message has no bearing")
			}
			bearings = append(bearings, b)
		case <-timeout:
			t.Fatalf("timed out after %d messages", len(bearings))
		}
	}
	for i := 1; i < len(bearings); i++ {
		if d := bearings[i] - bearings[i-1]; math.Abs(d-1.4) > 1e-6 {
			t.Errorf("step %d advanced %.3f degrees; want 1.4", i, d)
		}
	}
}

func TestRecord(t *testing.T) {
	for _, name := range []string{"sweep.jsonl", "sweep.jsonl.zst", "sweep.jsonl.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			cmd := &RecordCmd{Output: path, Revolutions: 1, GeneratorFlags: testFlags()}
			if err := cmd.Run(); err != nil {
				t.Fatalf("Run failed: %v", err)
			}

			src, err := feed.OpenCapture(path, 0)
			if err != nil {
				t.Fatalf("OpenCapture failed: %v", err)
			}
			defer src.Close()

			var n int
			for raw := range src.Messages() {
				if _, err := feed.Decode(raw); err != nil {
					t.Fatalf("line %d: %v", n, err)
				}
				n++
			}
			if err := src.Err(); err != nil {
				t.Errorf("Err() = %v", err)
			}
			if want := synth.New(cmd.config()).StepsPerRevolution(); n != want {
				t.Errorf("recorded %d messages; want %d", n, want)
			}
		})
	}
}
