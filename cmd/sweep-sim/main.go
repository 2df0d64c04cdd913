package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/sudorandom/sweep-scope/pkg/geodesy"
	"github.com/sudorandom/sweep-scope/pkg/synth"
	"github.com/sudorandom/sweep-scope/pkg/utils"
)

type GeneratorFlags struct {
	Lat          float64 `help:"Radar latitude." default:"47.2848"`
	Lng          float64 `help:"Radar longitude." default:"-122.44537"`
	RangeM       float64 `help:"Maximum scan range in meters." default:"20000" name:"range"`
	Step         float64 `help:"Degrees turned per message." default:"1.4"`
	StartAzimuth float64 `help:"Bearing of the first message." default:"0"`
	Targets      float64 `help:"Mean point detections per message." default:"1.5"`
	NoEcho       bool    `help:"Do not emit the wedge polygon."`
	Seed         int64   `help:"Random seed." default:"1"`
}

func (f GeneratorFlags) config() synth.Config {
	return synth.Config{
		Origin:       geodesy.LatLng{Lat: f.Lat, Lng: f.Lng},
		RangeM:       f.RangeM,
		StepDeg:      f.Step,
		StartAzimuth: f.StartAzimuth,
		Targets:      f.Targets,
		Echo:         !f.NoEcho,
		Seed:         f.Seed,
	}
}

type ServeCmd struct {
	Listen   string        `help:"Listen address." default:":8765"`
	Path     string        `help:"Websocket path." default:"/geosocket"`
	Interval time.Duration `help:"Delay between messages." default:"40ms"`

	GeneratorFlags `embed:""`
}

func (c *ServeCmd) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(c.Path, feedHandler(c.config(), c.Interval))
	srv := &http.Server{Addr: c.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("[SIM] Serving synthetic feed on ws://%s%s", c.Listen, c.Path)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// feedHandler streams a fresh generator to every websocket client.
func feedHandler(cfg synth.Config, interval time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[SIM] Upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		log.Printf("[SIM] Client connected: %s", r.RemoteAddr)

		// Reads only detect the client going away.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		gen := synth.New(cfg)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		var sent int
		for {
			select {
			case <-gone:
				log.Printf("[SIM] Client %s left after %d messages", r.RemoteAddr, sent)
				return
			case <-r.Context().Done():
				return
			case <-ticker.C:
				payload, err := gen.NextJSON()
				if err != nil {
					log.Printf("[SIM] Encoding frame: %v", err)
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					log.Printf("[SIM] Write to %s failed: %v", r.RemoteAddr, err)
					return
				}
				sent++
			}
		}
	})
}

type RecordCmd struct {
	Output      string `arg:"" help:"Capture file to write. .zst and .gz are compressed." type:"path"`
	Revolutions int    `help:"Number of full turns to record." default:"2"`

	GeneratorFlags `embed:""`
}

func (c *RecordCmd) Run() error {
	gen := synth.New(c.config())
	n := c.Revolutions * gen.StepsPerRevolution()
	err := utils.WriteFileAtomic(c.Output, func(w io.Writer) error {
		return record(w, c.Output, gen, n)
	})
	if err != nil {
		return err
	}
	log.Printf("[SIM] Recorded %d messages to %s", n, c.Output)
	return nil
}

// record writes n frames, one per line, compressed according to the file
// name.
func record(w io.Writer, name string, gen *synth.Generator, n int) error {
	var enc io.WriteCloser
	switch {
	case strings.HasSuffix(name, ".zst"):
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return err
		}
		enc = zw
	case strings.HasSuffix(name, ".gz"):
		enc = gzip.NewWriter(w)
	}
	if enc != nil {
		w = enc
	}

	for i := 0; i < n; i++ {
		payload, err := gen.NextJSON()
		if err != nil {
			return err
		}
		if _, err := w.Write(append(payload, '\n')); err != nil {
			return err
		}
	}
	if enc != nil {
		return enc.Close()
	}
	return nil
}

type CLI struct {
	Serve  ServeCmd  `cmd:"" help:"Serve a synthetic radar feed over websocket."`
	Record RecordCmd `cmd:"" help:"Write synthetic revolutions to a capture file."`
}

func main() {
	_ = godotenv.Load(".env")
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("sweep-sim"),
		kong.Description("Synthetic radar sweep feed."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err := kctx.Run(); err != nil {
		log.Fatalf("sweep-sim: %v", err)
	}
}
