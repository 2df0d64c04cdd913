package feed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Source delivers raw payloads in arrival order. Messages is closed when the
// source ends, after which Err reports why (nil on a clean end).
type Source interface {
	Messages() <-chan []byte
	Err() error
	Close() error
}

const (
	maxMessageSize = 8 << 20
	writeWait      = 5 * time.Second
)

// WebSocketSource reads text or binary frames from a websocket connection.
type WebSocketSource struct {
	url  string
	conn *websocket.Conn
	out  chan []byte

	mu      sync.Mutex
	err     error
	closed  bool
	closeCh chan struct{}
}

// Dial opens the websocket at url. It does not retry; reconnecting is up to
// the caller.
func Dial(ctx context.Context, url string) (*WebSocketSource, error) {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: dial %s: %w", url, err)
	}
	c.SetReadLimit(maxMessageSize)
	s := &WebSocketSource{
		url:     url,
		conn:    c,
		out:     make(chan []byte, 256),
		closeCh: make(chan struct{}),
	}
	log.Printf("[FEED] Connected to %s", url)
	go s.readLoop()
	return s, nil
}

func (s *WebSocketSource) readLoop() {
	defer close(s.out)
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[FEED] Read error from %s: %v", s.url, err)
				s.setErr(err)
			}
			return
		}
		select {
		case s.out <- message:
		case <-s.closeCh:
			return
		}
	}
}

func (s *WebSocketSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *WebSocketSource) Messages() <-chan []byte { return s.out }

func (s *WebSocketSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close sends a close frame and tears the connection down. Safe to call more
// than once.
func (s *WebSocketSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.closeCh)
	s.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		log.Printf("[FEED] Error sending close frame: %v", err)
	}
	return s.conn.Close()
}
