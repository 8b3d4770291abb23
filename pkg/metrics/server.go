package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ScrapeServer exposes /metrics on a port of its own, outside the search
// API's middleware chain.
type ScrapeServer struct {
	srv    *http.Server
	logger *slog.Logger
}

func NewScrapeServer(port int, gatherer prometheus.Gatherer) *ScrapeServer {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler(gatherer))
	return &ScrapeServer{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
		logger: slog.Default().With("component", "metrics"),
	}
}

// Start listens in the background until Shutdown.
func (s *ScrapeServer) Start() {
	go func() {
		s.logger.Info("scrape endpoint up", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("scrape endpoint stopped", "error", err)
		}
	}()
}

func (s *ScrapeServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
