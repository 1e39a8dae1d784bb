// Package trading implements the position and order engine: it turns raw
// venue positions into marked P&L figures and dollar-denominated bet requests
// into correctly sized venue-native orders.
//
// All sizing runs through the session's Precision scales using exact decimal
// arithmetic. The scaling factors are the venue's own; getting them wrong
// produces silently wrong order sizes, not errors, so nothing in this package
// hard-codes a scale.
package trading

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"driftbet/internal/config"
	"driftbet/internal/pricing"
	"driftbet/pkg/types"
)

// Venue is the slice of the venue session the engine needs.
type Venue interface {
	MarketCatalog(ctx context.Context) ([]types.MarketDescriptor, error)
	OraclePrice(ctx context.Context, marketIndex int) (decimal.Decimal, error)
	UserPosition(ctx context.Context, marketIndex int) (*types.RawPosition, error)
	SubmitOrder(ctx context.Context, order types.OrderParams) (string, error)
	Precision() types.Precision
}

// Engine is the position and order engine.
type Engine struct {
	venue   Venue
	markets config.MarketsConfig
	maxBet  float64
	logger  *slog.Logger
}

// NewEngine creates a trading engine on an established session.
func NewEngine(venue Venue, cfg config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		venue:   venue,
		markets: cfg.Markets,
		maxBet:  cfg.Trading.MaxBetUSD,
		logger:  logger.With("component", "trading"),
	}
}

// Positions returns the user's open prediction-market exposures with
// unrealized P&L marked at the current oracle price:
//
//	unrealizedPnl = baseAssetAmount*markPrice + quoteEntryAmount
//
// Markets with no exposure (absent record or base amount exactly zero) are
// omitted. A single market whose position or price cannot be read is skipped,
// not fatal — same isolation principle as the pricing listing.
func (e *Engine) Positions(ctx context.Context) ([]types.Position, error) {
	catalog, err := e.venue.MarketCatalog(ctx)
	if err != nil {
		return nil, err
	}
	prec := e.venue.Precision()

	var positions []types.Position
	for _, m := range catalog {
		if !pricing.Matches(e.markets, m) {
			continue
		}

		raw, err := e.venue.UserPosition(ctx, m.MarketIndex)
		if err != nil {
			e.logger.Warn("position unreadable, skipping", "market", m.MarketIndex, "error", err)
			continue
		}
		if raw == nil || raw.BaseAssetAmount == 0 {
			continue
		}

		markPrice, err := e.venue.OraclePrice(ctx, m.MarketIndex)
		if err != nil {
			e.logger.Warn("oracle unreadable, skipping", "market", m.MarketIndex, "error", err)
			continue
		}

		base := decimal.New(raw.BaseAssetAmount, -prec.BaseDecimals)
		quoteEntry := decimal.New(raw.QuoteEntryAmount, -prec.QuoteDecimals)
		pnl := base.Mul(markPrice).Add(quoteEntry)

		positions = append(positions, types.Position{
			MarketIndex:      m.MarketIndex,
			Symbol:           m.Symbol,
			BaseAssetAmount:  base.InexactFloat64(),
			QuoteEntryAmount: quoteEntry.InexactFloat64(),
			UnrealizedPnL:    pnl.InexactFloat64(),
			Direction:        types.DirectionFromBase(base.InexactFloat64()),
		})
	}

	return positions, nil
}

// PlaceBet converts a dollar-denominated bet into one venue-native order and
// submits it. Sizing: base = amount / oraclePrice, scaled to native base
// units. YES is a long order, NO a short one — a bet is always an independent
// directional order, never "sell YES". With a limit price the order rests at
// that price (scaled to native price units); otherwise it is a market order.
//
// Validation failures return ErrInvalidRequest before any venue call; an
// unknown index returns ErrMarketNotFound; venue rejections propagate
// unmodified and are never retried here.
func (e *Engine) PlaceBet(ctx context.Context, req types.BetRequest) (string, error) {
	if err := e.validate(req); err != nil {
		return "", err
	}

	market, err := e.findMarket(ctx, req.MarketIndex)
	if err != nil {
		return "", err
	}

	oraclePrice, err := e.venue.OraclePrice(ctx, req.MarketIndex)
	if err != nil {
		return "", err
	}
	if oraclePrice.Sign() <= 0 {
		return "", fmt.Errorf("market %d has no usable oracle price: %w", req.MarketIndex, types.ErrMarketUnavailable)
	}

	prec := e.venue.Precision()
	size := decimal.NewFromFloat(req.Amount).Div(oraclePrice)
	baseAmount := prec.NativeBase(size)
	if baseAmount.Sign() == 0 {
		return "", fmt.Errorf("amount %.6f too small to size at price %s: %w",
			req.Amount, oraclePrice, types.ErrInvalidRequest)
	}

	order := types.OrderParams{
		MarketIndex:     req.MarketIndex,
		Side:            req.Direction.Side(),
		Kind:            types.OrderMarket,
		BaseAssetAmount: baseAmount,
	}
	if req.LimitPrice != nil {
		order.Kind = types.OrderLimit
		order.Price = prec.NativePrice(decimal.NewFromFloat(*req.LimitPrice))
	}

	e.logger.Info("placing bet",
		"market", market.MarketIndex,
		"symbol", market.Symbol,
		"direction", req.Direction,
		"amount_usd", req.Amount,
		"oracle_price", oraclePrice,
		"order_type", order.Kind,
	)

	return e.venue.SubmitOrder(ctx, order)
}

// validate rejects malformed requests before anything reaches the venue.
func (e *Engine) validate(req types.BetRequest) error {
	if !req.Direction.Valid() {
		return fmt.Errorf("direction %q must be YES or NO: %w", req.Direction, types.ErrInvalidRequest)
	}
	if req.Amount <= 0 {
		return fmt.Errorf("amount %.6f must be positive: %w", req.Amount, types.ErrInvalidRequest)
	}
	if e.maxBet > 0 && req.Amount > e.maxBet {
		return fmt.Errorf("amount %.2f exceeds the %.2f per-bet cap: %w", req.Amount, e.maxBet, types.ErrInvalidRequest)
	}
	if req.LimitPrice != nil {
		if p := *req.LimitPrice; p <= 0 || p >= 1 {
			return fmt.Errorf("limit price %v must be a probability in (0, 1): %w", p, types.ErrInvalidRequest)
		}
	}
	return nil
}

// findMarket resolves a market index against the catalog's prediction markets.
func (e *Engine) findMarket(ctx context.Context, marketIndex int) (*types.MarketDescriptor, error) {
	catalog, err := e.venue.MarketCatalog(ctx)
	if err != nil {
		return nil, err
	}
	for i := range catalog {
		if catalog[i].MarketIndex != marketIndex {
			continue
		}
		if !pricing.Matches(e.markets, catalog[i]) {
			return nil, fmt.Errorf("market %d is not a prediction market: %w", marketIndex, types.ErrMarketNotFound)
		}
		return &catalog[i], nil
	}
	return nil, fmt.Errorf("market %d: %w", marketIndex, types.ErrMarketNotFound)
}
