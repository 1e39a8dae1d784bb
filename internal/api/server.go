// Package api serves a read-only JSON view of the client: prediction-market
// listings, open positions, and the paper-trading portfolio. It exists for
// dashboards and scripts; nothing here mutates venue or ledger state.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"driftbet/internal/config"
)

// Server runs the stats HTTP API.
type Server struct {
	cfg      config.StatsConfig
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
}

// NewServer creates a stats server over the given data sources.
func NewServer(cfg config.StatsConfig, markets MarketLister, positions PositionReader, journal Journal, logger *slog.Logger) *Server {
	handlers := NewHandlers(markets, positions, journal, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/api/markets", handlers.HandleMarkets)
	mux.HandleFunc("/api/positions", handlers.HandlePositions)
	mux.HandleFunc("/api/paper", handlers.HandlePaper)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:      cfg,
		handlers: handlers,
		server:   server,
		logger:   logger.With("component", "api-server"),
	}
}

// Start starts the server. Blocks until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("stats server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	s.logger.Info("stopping stats server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}
