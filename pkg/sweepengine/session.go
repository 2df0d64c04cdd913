// Package sweepengine turns a stream of detection messages into map overlays.
//
// A Session owns the ingestion buffer, the sweep tracker and the layer
// manager, and drives all three from one goroutine:
//
//	source -> decode -> tracker -> bearing line / range indicator
//	                            -> buffer -> (throttle) -> merge -> layers
package sweepengine

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/sudorandom/sweep-scope/pkg/feed"
	"github.com/sudorandom/sweep-scope/pkg/geodesy"
	"github.com/sudorandom/sweep-scope/pkg/metrics"
	"github.com/sudorandom/sweep-scope/pkg/surface"
	"github.com/sudorandom/sweep-scope/pkg/sweep"
)

type Config struct {
	// Origin is the fixed own-ship position the bearing line starts from.
	Origin geodesy.LatLng
	// Distance is the bearing line length in meters.
	Distance float64
	// Throttle is how long bursts are collected before one merged render.
	// Zero renders every message on its own.
	Throttle time.Duration
	Sweep    sweep.Config
	Layers   LayerConfig
	Debug    bool
}

func DefaultConfig() Config {
	return Config{
		Origin:   geodesy.LatLng{Lat: 47.2848, Lng: -122.44537},
		Distance: 20000,
		Throttle: 10 * time.Millisecond,
		Sweep:    sweep.DefaultConfig(),
		Layers:   DefaultLayerConfig(),
	}
}

// Status is a point-in-time view of a session, safe to read from any
// goroutine.
type Status struct {
	Phase     sweep.Phase
	Azimuth   float64
	HasFix    bool
	Layers    int
	Radius    float64
	Messages  uint64
	Batches   uint64
	Malformed uint64
}

type Session struct {
	cfg     Config
	buf     Buffer
	tracker *sweep.Tracker
	layers  *LayerManager

	statusMu sync.Mutex
	status   Status
}

func NewSession(surf surface.Surface, cfg Config) *Session {
	s := &Session{
		cfg:     cfg,
		tracker: sweep.NewTracker(cfg.Sweep),
		layers:  NewLayerManager(surf, cfg.Layers, cfg.Debug),
	}
	s.status.Radius = cfg.Layers.RangeIndicator.MinRadius
	return s
}

// HandleRaw decodes one payload and handles it. Malformed payloads are logged
// and skipped. It returns true when the caller must arm the throttle timer.
func (s *Session) HandleRaw(raw []byte) bool {
	metrics.MessagesTotal.Inc()
	msg, err := feed.Decode(raw)
	if err != nil {
		metrics.MalformedTotal.Inc()
		s.updateStatus(func(st *Status) { st.Messages++; st.Malformed++ })
		log.Printf("[SESSION] Skipping malformed message: %v", err)
		return false
	}
	return s.Handle(msg)
}

// Handle applies one decoded message. The tracker, bearing line and range
// indicator are updated right away. Features are queued for the next flush,
// and the return value says whether a flush must be scheduled.
func (s *Session) Handle(msg *feed.Message) bool {
	if az, ok := msg.Bearing(); ok && !math.IsNaN(az) && !math.IsInf(az, 0) {
		before := s.tracker.Phase()
		var phase sweep.Phase
		if end := msg.EndAzimuth; end != nil {
			phase = s.tracker.ObserveWedge(az, *end)
		} else {
			phase = s.tracker.Observe(az)
		}
		if phase != before {
			log.Printf("[SESSION] Sweep %s -> %s at %.2f°", before, phase, az)
			metrics.SweepPhase.Set(float64(phase))
		}
		dest := geodesy.DestinationPoint(s.cfg.Origin, az, s.cfg.Distance)
		if err := s.layers.UpdateBearingLine(s.cfg.Origin, dest); err != nil {
			log.Printf("[SESSION] Bearing line: %v", err)
		}
	}
	if r, ok := msg.RangeRadius(); ok {
		if err := s.layers.UpdateRangeIndicator(r); err != nil {
			log.Printf("[SESSION] Range indicator: %v", err)
		}
	}

	arm := s.buf.Add(msg)
	s.updateStatus(func(st *Status) {
		st.Messages++
		st.Phase = s.tracker.Phase()
		st.Azimuth, st.HasFix = s.tracker.Last()
		st.Radius = s.layers.Radius()
	})
	return arm
}

// Flush merges the queued messages and renders them as one group, unless the
// sweep has not armed yet, in which case the batch is dropped.
func (s *Session) Flush() {
	merged, n, err := s.buf.Drain()
	if err != nil {
		log.Printf("[SESSION] Failed to merge %d messages: %v", n, err)
		return
	}
	if merged == nil {
		return
	}
	metrics.CoalescedMessages.Observe(float64(n))

	if s.tracker.Phase() == sweep.Cold {
		metrics.SuppressedBatchesTotal.Inc()
		if s.cfg.Debug {
			log.Printf("DEBUG: [SESSION] Sweep cold, dropping batch of %d features", len(merged.Features))
		}
		return
	}
	if err := s.layers.RenderBatch(merged, s.tracker.RevolutionComplete()); err != nil {
		log.Printf("[SESSION] Render failed: %v", err)
		return
	}
	s.updateStatus(func(st *Status) {
		st.Batches++
		st.Layers = s.layers.Len()
	})
}

// Run processes messages from src until it ends or ctx is cancelled. On
// return the pending flush is cancelled, queued messages are discarded, src
// is closed and every overlay is removed. A source error is returned wrapped;
// reconnecting is up to the caller.
func (s *Session) Run(ctx context.Context, src feed.Source) error {
	log.Printf("[SESSION] Started, origin %.5f,%.5f", s.cfg.Origin.Lat, s.cfg.Origin.Lng)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer s.teardown(timer, src)

	var flush <-chan time.Time
	msgs := src.Messages()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-msgs:
			if !ok {
				if err := src.Err(); err != nil {
					log.Printf("[SESSION] Source error: %v", err)
					return fmt.Errorf("source: %w", err)
				}
				log.Printf("[SESSION] Source ended")
				return nil
			}
			if !s.HandleRaw(raw) {
				continue
			}
			if s.cfg.Throttle <= 0 {
				s.Flush()
				continue
			}
			timer.Reset(s.cfg.Throttle)
			flush = timer.C
		case <-flush:
			flush = nil
			s.Flush()
		}
	}
}

func (s *Session) teardown(timer *time.Timer, src feed.Source) {
	timer.Stop()
	if n := s.buf.Reset(); n > 0 {
		log.Printf("[SESSION] Discarded %d queued messages", n)
	}
	if err := src.Close(); err != nil {
		log.Printf("[SESSION] Closing source: %v", err)
	}
	s.layers.Clear()
	s.updateStatus(func(st *Status) {
		st.Layers = 0
		st.Radius = s.layers.Radius()
	})
	log.Printf("[SESSION] Stopped")
}

// Status returns a copy of the session's current status.
func (s *Session) Status() Status {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.status
}

// Layers exposes the layer manager. It must only be used from the goroutine
// running the session.
func (s *Session) Layers() *LayerManager { return s.layers }

// Tracker exposes the sweep tracker under the same rule as Layers.
func (s *Session) Tracker() *sweep.Tracker { return s.tracker }

func (s *Session) updateStatus(fn func(*Status)) {
	s.statusMu.Lock()
	fn(&s.status)
	s.statusMu.Unlock()
}
