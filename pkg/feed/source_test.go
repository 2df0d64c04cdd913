package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var captureLines = []string{
	`{"startAzi": 1, "features": []}`,
	``,
	`{"startAzi": 2, "features": []}`,
	`{"startAzi": 3, "features": []}`,
}

func drain(t *testing.T, src Source) []string {
	t.Helper()
	var got []string
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg, ok := <-src.Messages():
			if !ok {
				return got
			}
			got = append(got, string(msg))
		case <-timeout:
			t.Fatalf("timed out draining source, got %d messages", len(got))
		}
	}
}

func checkReplay(t *testing.T, got []string) {
	t.Helper()
	want := []string{captureLines[0], captureLines[2], captureLines[3]}
	if len(got) != len(want) {
		t.Fatalf("got %d payloads, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("payload %d = %q; want %q", i, got[i], want[i])
		}
	}
}

func TestCapturePlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(captureLines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := OpenCapture(path, 0)
	if err != nil {
		t.Fatalf("OpenCapture failed: %v", err)
	}
	defer src.Close()

	checkReplay(t, drain(t, src))
	if err := src.Err(); err != nil {
		t.Errorf("Err() = %v; want nil after clean end", err)
	}
}

func TestCaptureZstd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.jsonl.zst")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write([]byte(strings.Join(captureLines, "\n"))); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	src, err := OpenCapture(path, time.Millisecond)
	if err != nil {
		t.Fatalf("OpenCapture failed: %v", err)
	}
	defer src.Close()
	checkReplay(t, drain(t, src))
}

func TestCaptureGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.jsonl.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte(strings.Join(captureLines, "\n"))); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	src, err := OpenCapture(path, 0)
	if err != nil {
		t.Fatalf("OpenCapture failed: %v", err)
	}
	defer src.Close()
	checkReplay(t, drain(t, src))
}

func TestCaptureMissingFile(t *testing.T) {
	if _, err := OpenCapture(filepath.Join(t.TempDir(), "nope.jsonl"), 0); err == nil {
		t.Error("expected error for missing capture")
	}
}

func TestCaptureCloseStopsReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(captureLines, "\n")), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := OpenCapture(path, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	if got := drain(t, src); len(got) != 0 {
		t.Errorf("got %d payloads after close, want 0", len(got))
	}
	if err := src.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestWebSocketSource(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer c.Close()
		for _, line := range []string{captureLines[0], captureLines[2], captureLines[3]} {
			if err := c.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		}
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
		// Wait for the client to go away.
		_, _, _ = c.ReadMessage()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	src, err := Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer src.Close()

	checkReplay(t, drain(t, src))
	if err := src.Err(); err != nil {
		t.Errorf("Err() = %v; want nil after normal closure", err)
	}
}

func TestWebSocketDialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := Dial(ctx, "ws://127.0.0.1:1/geosocket"); err == nil {
		t.Error("expected dial error")
	}
}
