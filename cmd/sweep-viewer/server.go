package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/sudorandom/sweep-scope/pkg/metrics"
	"github.com/sudorandom/sweep-scope/pkg/surface"
	"github.com/sudorandom/sweep-scope/pkg/sweepengine"
)

type healthResponse struct {
	Status    string  `json:"status"`
	Phase     string  `json:"phase"`
	Azimuth   float64 `json:"azimuth"`
	Layers    int     `json:"layers"`
	Radius    float64 `json:"radius"`
	Messages  uint64  `json:"messages"`
	Batches   uint64  `json:"batches"`
	Malformed uint64  `json:"malformed"`
}

func newServer(addr string, surf *surface.Memory, status func() sweepengine.Status) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		st := status()
		writeJSON(w, healthResponse{
			Status:    "ok",
			Phase:     st.Phase.String(),
			Azimuth:   st.Azimuth,
			Layers:    st.Layers,
			Radius:    st.Radius,
			Messages:  st.Messages,
			Batches:   st.Batches,
			Malformed: st.Malformed,
		})
	})
	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/geo+json")
		if err := json.NewEncoder(w).Encode(surf.Snapshot()); err != nil {
			log.Printf("[HTTP] Error encoding snapshot: %v", err)
		}
	})
	return &http.Server{
		Addr:              addr,
		Handler:           metrics.Middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] Error encoding response: %v", err)
	}
}

// serve runs srv until ctx is done.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[HTTP] Listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
