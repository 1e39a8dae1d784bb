// Package pricing derives prediction-market quotes from raw venue data.
//
// The engine walks the venue catalog, keeps the markets whose symbol or
// category marks them as BET (prediction) markets, and turns each one's book
// top into implied YES/NO probabilities. Partial-failure isolation is the
// central property here: prediction markets are routinely delisted, not yet
// active, or oracle-less, and one bad market must never hide the others — it
// is listed with sentinel prices instead of being dropped.
package pricing

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"driftbet/internal/config"
	"driftbet/pkg/types"
)

// MarketData is the slice of the venue session the engine reads from.
type MarketData interface {
	MarketCatalog(ctx context.Context) ([]types.MarketDescriptor, error)
	OrderBook(ctx context.Context, marketIndex int) (*types.BookTopResponse, error)
}

// Listing pairs a prediction market with its current quote. Available is false
// when the market's book state could not be read; the quote then carries the
// unavailable sentinel in every price field.
type Listing struct {
	Market    types.MarketDescriptor `json:"market"`
	Quote     types.MarketQuote      `json:"quote"`
	Available bool                   `json:"available"`
}

// Engine is the market pricing engine.
type Engine struct {
	data   MarketData
	cfg    config.MarketsConfig
	logger *slog.Logger
}

// NewEngine creates a pricing engine reading from the given session.
func NewEngine(data MarketData, cfg config.MarketsConfig, logger *slog.Logger) *Engine {
	return &Engine{
		data:   data,
		cfg:    cfg,
		logger: logger.With("component", "pricing"),
	}
}

// Matches reports whether a catalog entry is a prediction market under the
// given filter: the symbol contains a family token, or the category tags
// include the prediction tag.
func Matches(cfg config.MarketsConfig, m types.MarketDescriptor) bool {
	symbol := strings.ToUpper(m.Symbol)
	for _, token := range cfg.FamilyTokens {
		if token != "" && strings.Contains(symbol, strings.ToUpper(token)) {
			return true
		}
	}
	for _, tag := range m.Category {
		if cfg.PredictionTag != "" && strings.EqualFold(tag, cfg.PredictionTag) {
			return true
		}
	}
	return false
}

// ListPredictionMarkets returns one Listing per prediction market, in catalog
// order. A catalog read failure is fatal; a single market's book failure is
// not — that market is emitted with Available=false and the scan continues.
func (e *Engine) ListPredictionMarkets(ctx context.Context) ([]Listing, error) {
	catalog, err := e.data.MarketCatalog(ctx)
	if err != nil {
		return nil, err
	}

	var listings []Listing
	for _, m := range catalog {
		if !Matches(e.cfg, m) {
			continue
		}

		book, err := e.data.OrderBook(ctx, m.MarketIndex)
		if err != nil {
			e.logger.Debug("market unavailable", "market", m.MarketIndex, "error", err)
			listings = append(listings, Listing{Market: m, Quote: types.UnavailableQuote()})
			continue
		}

		quote, ok := quoteFromBook(book)
		if !ok {
			e.logger.Debug("market book unreadable", "market", m.MarketIndex)
			listings = append(listings, Listing{Market: m, Quote: types.UnavailableQuote()})
			continue
		}

		listings = append(listings, Listing{Market: m, Quote: quote, Available: true})
	}

	e.logger.Info("prediction markets listed",
		"catalog", len(catalog),
		"matched", len(listings),
	)
	return listings, nil
}

// quoteFromBook derives implied probabilities from the book top.
// YES costs the ask; NO costs 1 minus the bid. Both are clamped to [0, 1]
// independently — oracle and book glitches can report out-of-range prices,
// and a probability outside [0, 1] must never escape this package.
func quoteFromBook(book *types.BookTopResponse) (types.MarketQuote, bool) {
	bid, errBid := strconv.ParseFloat(book.BestBid, 64)
	ask, errAsk := strconv.ParseFloat(book.BestAsk, 64)
	if errBid != nil || errAsk != nil {
		return types.MarketQuote{}, false
	}

	return types.MarketQuote{
		BestBid:  bid,
		BestAsk:  ask,
		YesPrice: clamp01(ask),
		NoPrice:  clamp01(1 - bid),
	}, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
