package feed

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// CaptureSource replays a newline-delimited capture file, one payload per
// line. Files ending in .zst or .gz are decompressed on the fly.
type CaptureSource struct {
	path     string
	interval time.Duration
	out      chan []byte

	mu      sync.Mutex
	err     error
	closeCh chan struct{}
	closed  bool
	closers []io.Closer
}

// OpenCapture starts replaying path, emitting one line every interval. A zero
// interval replays as fast as the consumer reads.
func OpenCapture(path string, interval time.Duration) (*CaptureSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("feed: open capture: %w", err)
	}

	s := &CaptureSource{
		path:     path,
		interval: interval,
		out:      make(chan []byte, 64),
		closeCh:  make(chan struct{}),
		closers:  []io.Closer{f},
	}

	var r io.Reader = f
	switch {
	case strings.HasSuffix(path, ".zst"):
		dec, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("feed: zstd reader: %w", err)
		}
		s.closers = append(s.closers, closerFunc(func() error { dec.Close(); return nil }))
		r = dec
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("feed: gzip reader: %w", err)
		}
		s.closers = append(s.closers, gz)
		r = gz
	}

	log.Printf("[FEED] Replaying capture %s", path)
	go s.replay(r)
	return s, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func (s *CaptureSource) replay(r io.Reader) {
	defer close(s.out)

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		payload := make([]byte, len(line))
		copy(payload, line)

		if tick != nil {
			select {
			case <-tick:
			case <-s.closeCh:
				return
			}
		}
		select {
		case s.out <- payload:
		case <-s.closeCh:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		log.Printf("[FEED] Error reading capture %s: %v", s.path, err)
		s.err = err
	}
}

func (s *CaptureSource) Messages() <-chan []byte { return s.out }

func (s *CaptureSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *CaptureSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.closeCh)
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
