package main

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/sudorandom/sweep-scope/pkg/config"
	"github.com/sudorandom/sweep-scope/pkg/feed"
	"github.com/sudorandom/sweep-scope/pkg/metrics"
	"github.com/sudorandom/sweep-scope/pkg/surface"
	"github.com/sudorandom/sweep-scope/pkg/sweepengine"
	"github.com/sudorandom/sweep-scope/pkg/utils"
)

var (
	minBackoff = 1 * time.Second
	maxBackoff = 60 * time.Second
	// stableSession is how long a session must last before the backoff
	// starts over.
	stableSession = 30 * time.Second
)

// dialLoop keeps a session running against the live feed. Every connection
// gets a fresh session, so nothing carries over a reconnect. A feed that
// accepts and then drops the connection is redialed with the same growing
// backoff as one that refuses it.
func dialLoop(ctx context.Context, url string, surf *surface.Memory, cfg sweepengine.Config, current *atomic.Pointer[sweepengine.Session]) error {
	backoff := minBackoff
	for {
		if ctx.Err() != nil {
			return nil
		}
		log.Printf("[FEED] Connecting to %s", url)
		src, err := feed.Dial(ctx, url)
		if err != nil {
			log.Printf("[FEED] Dial error: %v. Retrying in %v...", err, backoff)
		} else {
			metrics.FeedConnects.Inc()
			started := time.Now()
			sess := sweepengine.NewSession(surf, cfg)
			current.Store(sess)
			err = sess.Run(ctx, src)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if time.Since(started) >= stableSession {
				backoff = minBackoff
			}
			if err != nil {
				log.Printf("[FEED] Read error: %v. Reconnecting in %v...", err, backoff)
			} else {
				log.Printf("[FEED] Feed closed. Reconnecting in %v...", backoff)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// replay runs one session over a capture file, downloading it first when it
// is a URL.
func replay(ctx context.Context, cfg *config.Config, cacheDir string, surf *surface.Memory, sessionCfg sweepengine.Config, current *atomic.Pointer[sweepengine.Session]) error {
	path, err := utils.FetchCached(ctx, cfg.Feed.Capture, cacheDir)
	if err != nil {
		return err
	}
	src, err := feed.OpenCapture(path, cfg.Feed.ReplayInterval)
	if err != nil {
		return err
	}

	sess := sweepengine.NewSession(surf, sessionCfg)
	current.Store(sess)
	err = sess.Run(ctx, src)
	if err == nil || errors.Is(err, io.EOF) {
		log.Printf("[FEED] Replay finished")
		return nil
	}
	return err
}
