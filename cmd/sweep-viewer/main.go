package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/joho/godotenv"
	_ "github.com/silbinarywolf/preferdiscretegpu"
	"github.com/sudorandom/sweep-scope/pkg/config"
	"github.com/sudorandom/sweep-scope/pkg/scope"
	"github.com/sudorandom/sweep-scope/pkg/surface"
	"github.com/sudorandom/sweep-scope/pkg/sweepengine"
	"github.com/sudorandom/sweep-scope/pkg/utils"
	"golang.org/x/sync/errgroup"
)

type CLI struct {
	Config   string `help:"YAML configuration file." type:"path" env:"SWEEP_CONFIG"`
	URL      string `help:"Feed websocket URL. Overrides the config file." env:"SWEEP_FEED_URL"`
	Capture  string `help:"Replay a capture file or http(s) URL instead of dialing the feed." env:"SWEEP_CAPTURE"`
	CacheDir string `help:"Where downloaded captures are kept." default:"data/cache" type:"path"`

	Headless    bool   `help:"Run without a window."`
	SnapshotDir string `help:"Write a PNG of the scope here every capture interval." type:"path" env:"SWEEP_SNAPSHOT_DIR"`
	Listen      string `help:"Address serving /metrics, /healthz and /snapshot. Empty disables it." default:"127.0.0.1:9464" env:"SWEEP_LISTEN"`
	TPS         int    `help:"Ticks per second (scope updates)." default:"30"`

	LogFile string `help:"Also write logs to this file, rotated." type:"path" env:"SWEEP_LOG_FILE"`
	Debug   bool   `help:"Enable verbose logging for debugging." env:"SWEEP_DEBUG"`
}

func main() {
	_ = godotenv.Load(".env")

	var cli CLI
	kong.Parse(&cli,
		kong.Name("sweep-viewer"),
		kong.Description("Live radar sweep viewer."),
		kong.UsageOnError(),
	)

	closer := utils.SetupLogging(cli.LogFile)
	defer closer.Close()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cli.URL != "" {
		cfg.Feed.URL = cli.URL
	}
	if cli.Capture != "" {
		cfg.Feed.Capture = cli.Capture
	}
	if cli.SnapshotDir != "" {
		cfg.Scope.CaptureDir = cli.SnapshotDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cli, cfg); err != nil {
		log.Fatalf("sweep-viewer: %v", err)
	}
}

func run(ctx context.Context, cli CLI, cfg *config.Config) error {
	surf := surface.NewMemory(cfg.Center())
	sessionCfg := cfg.Session(cli.Debug)

	var current atomic.Pointer[sweepengine.Session]
	status := func() sweepengine.Status {
		if s := current.Load(); s != nil {
			return s.Status()
		}
		return sweepengine.Status{}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if cfg.Feed.Capture != "" {
			return replay(ctx, cfg, cli.CacheDir, surf, sessionCfg, &current)
		}
		return dialLoop(ctx, cfg.Feed.URL, surf, sessionCfg, &current)
	})

	if cli.Listen != "" {
		srv := newServer(cli.Listen, surf, status)
		eg.Go(func() error { return serve(ctx, srv) })
	}

	if cli.Headless {
		log.Println("Running in HEADLESS mode.")
		if cfg.Scope.CaptureDir != "" && cfg.Scope.CaptureInterval > 0 {
			eg.Go(func() error {
				snapshotLoop(ctx, cfg, surf)
				return nil
			})
		}
		return ignoreCanceled(eg.Wait())
	}

	game := scope.New(surf, status, scope.Options{
		Width:           cfg.Scope.Width,
		Height:          cfg.Scope.Height,
		RangeM:          cfg.Scope.RangeM,
		Title:           "SWEEP SCOPE",
		FrameCaptureDir: cfg.Scope.CaptureDir,
		CaptureInterval: cfg.Scope.CaptureInterval,
	})
	game.FPS = cli.TPS

	ebiten.SetTPS(cli.TPS)
	ebiten.SetWindowSize(cfg.Scope.Width, cfg.Scope.Height)
	ebiten.SetWindowTitle("Sweep Scope")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	runErr := ebiten.RunGame(game)
	cancel()
	if err := ignoreCanceled(eg.Wait()); err != nil {
		return err
	}
	return runErr
}

// snapshotLoop writes the scope to disk periodically without a window.
func snapshotLoop(ctx context.Context, cfg *config.Config, surf *surface.Memory) {
	if err := os.MkdirAll(cfg.Scope.CaptureDir, 0o755); err != nil {
		log.Printf("[SCOPE] Error creating capture directory: %v", err)
		return
	}
	raster := scope.NewRaster(scope.NewProjector(cfg.Scope.Width, cfg.Scope.Height, surf.ViewCenter(), cfg.Scope.RangeM))
	ticker := time.NewTicker(cfg.Scope.CaptureInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			path := filepath.Join(cfg.Scope.CaptureDir, scope.CaptureName("headless", now))
			if err := raster.WritePNG(surf, path); err != nil {
				log.Printf("[SCOPE] Error writing capture: %v", err)
				continue
			}
			log.Printf("[SCOPE] Captured frame: %s", path)
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
