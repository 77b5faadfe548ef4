// Package lancasterlink wires the journey routing engine behind an
// HTTP API: journey planning, departure boards, stop search and the
// operational endpoints.
package lancasterlink

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuustard/LancasterLink/config"
	"github.com/cuustard/LancasterLink/metrics"
	"github.com/cuustard/LancasterLink/routing"
	"github.com/cuustard/LancasterLink/snapshot"
)

// Server serves the query API. Every request resolves the current
// snapshot once and uses it for the whole request.
type Server struct {
	cfg       config.ServerConfig
	publisher *snapshot.Publisher
	engine    *routing.Engine
	collector *metrics.Collector
	log       zerolog.Logger

	http *http.Server
}

func NewServer(cfg config.ServerConfig, pub *snapshot.Publisher, eng *routing.Engine, col *metrics.Collector, log zerolog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		publisher: pub,
		engine:    eng,
		collector: col,
		log:       log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/journeys", s.handleJourneys)
	mux.HandleFunc("/api/departures", s.handleDepartures)
	mux.HandleFunc("/api/stops", s.handleStopSearch)
	if col != nil {
		mux.Handle("/metrics", col.Handler())
	}

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start begins serving in the background. Errors other than a clean
// shutdown are reported on the returned channel.
func (s *Server) Start() <-chan error {
	errc := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()
	s.log.Info().Str("addr", s.http.Addr).Msg("server listening")
	return errc
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }
