package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"driftbet/internal/ledger"
	"driftbet/internal/pricing"
	"driftbet/pkg/types"
)

// MarketLister supplies prediction-market listings (the pricing engine).
type MarketLister interface {
	ListPredictionMarkets(ctx context.Context) ([]pricing.Listing, error)
}

// PositionReader supplies open positions with P&L (the trading engine).
type PositionReader interface {
	Positions(ctx context.Context) ([]types.Position, error)
}

// Journal supplies the paper-trading portfolio view (the ledger).
type Journal interface {
	Stats(ctx context.Context) (*ledger.Stats, error)
	OpenTrades(ctx context.Context) ([]ledger.Trade, error)
}

// Handlers holds all HTTP handler dependencies.
type Handlers struct {
	markets   MarketLister
	positions PositionReader
	journal   Journal
	logger    *slog.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(markets MarketLister, positions PositionReader, journal Journal, logger *slog.Logger) *Handlers {
	return &Handlers{
		markets:   markets,
		positions: positions,
		journal:   journal,
		logger:    logger.With("component", "api-handlers"),
	}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, map[string]string{"status": "ok"})
}

// HandleMarkets returns the current prediction-market listings.
func (h *Handlers) HandleMarkets(w http.ResponseWriter, r *http.Request) {
	listings, err := h.markets.ListPredictionMarkets(r.Context())
	if err != nil {
		h.logger.Error("list markets failed", "error", err)
		http.Error(w, "venue unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, h.logger, listings)
}

// HandlePositions returns open positions with unrealized P&L.
func (h *Handlers) HandlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positions.Positions(r.Context())
	if err != nil {
		h.logger.Error("positions scan failed", "error", err)
		http.Error(w, "venue unavailable", http.StatusBadGateway)
		return
	}
	if positions == nil {
		positions = []types.Position{}
	}
	writeJSON(w, h.logger, positions)
}

// paperView is the /api/paper response body.
type paperView struct {
	Stats      *ledger.Stats  `json:"stats"`
	OpenTrades []ledger.Trade `json:"openTrades"`
}

// HandlePaper returns the paper-trading portfolio and its pending trades.
func (h *Handlers) HandlePaper(w http.ResponseWriter, r *http.Request) {
	stats, err := h.journal.Stats(r.Context())
	if err != nil {
		h.logger.Error("ledger stats failed", "error", err)
		http.Error(w, "ledger unavailable", http.StatusInternalServerError)
		return
	}
	open, err := h.journal.OpenTrades(r.Context())
	if err != nil {
		h.logger.Error("ledger open trades failed", "error", err)
		http.Error(w, "ledger unavailable", http.StatusInternalServerError)
		return
	}
	if open == nil {
		open = []ledger.Trade{}
	}
	writeJSON(w, h.logger, paperView{Stats: stats, OpenTrades: open})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
