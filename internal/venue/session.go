package venue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"driftbet/internal/config"
	"driftbet/pkg/types"
)

// markFreshness is how long a streamed oracle price is trusted before
// falling back to a REST read.
const markFreshness = 5 * time.Second

// Session owns the venue connection lifecycle. Connect verifies the gateway
// is reachable before returning, so every Session handed to an engine is
// fully established — pricing and trading never see a half-built session.
//
// When an account WebSocket URL is configured, the session keeps a cache of
// streamed oracle prices; OraclePrice serves from the cache when fresh and
// falls back to REST otherwise. Without a feed every read is a REST call.
type Session struct {
	client    *Client
	feed      *AccountFeed // nil when no ws_account_url configured
	cache     *oracleCache
	precision types.Precision
	wallet    string
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Connect establishes a session against the configured gateway.
// It fails if the gateway is unreachable or reports itself unhealthy.
func Connect(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Session, error) {
	auth := NewAuth(cfg.Venue)
	client := NewClient(cfg, auth, logger.With("component", "gateway"))

	status, err := client.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if !status.Healthy {
		return nil, fmt.Errorf("connect: gateway unhealthy (cluster %s, slot %d)", status.Cluster, status.Slot)
	}

	s := &Session{
		client:    client,
		cache:     newOracleCache(),
		precision: cfg.VenuePrecision(),
		wallet:    cfg.Venue.Wallet,
		logger:    logger.With("component", "session"),
	}

	if cfg.Venue.WSAccountURL != "" {
		feedCtx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.feed = NewAccountFeed(cfg.Venue.WSAccountURL, cfg.Venue.Wallet, logger)

		s.wg.Add(2)
		go func() {
			defer s.wg.Done()
			if err := s.feed.Run(feedCtx); err != nil && feedCtx.Err() == nil {
				s.logger.Error("account feed stopped", "error", err)
			}
		}()
		go func() {
			defer s.wg.Done()
			s.consumeFeed(feedCtx)
		}()
	}

	s.logger.Info("session established",
		"cluster", status.Cluster,
		"slot", status.Slot,
		"wallet", s.wallet,
		"streaming", s.feed != nil,
	)
	return s, nil
}

// consumeFeed drains feed events into the oracle cache.
func (s *Session) consumeFeed(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-s.feed.OracleEvents():
			price, err := decimal.NewFromString(evt.Price)
			if err != nil {
				s.logger.Warn("bad oracle price on feed", "market", evt.MarketIndex, "price", evt.Price)
				continue
			}
			s.cache.set(evt.MarketIndex, price, evt.Slot)
		case evt := <-s.feed.FillEvents():
			s.logger.Info("fill",
				"market", evt.MarketIndex,
				"side", evt.Side,
				"base_amount", evt.BaseAmount,
				"tx", evt.TxSignature,
			)
		}
	}
}

// Wallet returns the account address this session trades as.
func (s *Session) Wallet() string { return s.wallet }

// Precision returns the venue's fixed-point scales.
func (s *Session) Precision() types.Precision { return s.precision }

// MarketCatalog returns the venue's full market catalog in catalog order.
func (s *Session) MarketCatalog(ctx context.Context) ([]types.MarketDescriptor, error) {
	return s.client.MarketCatalog(ctx)
}

// OrderBook returns the top of book for one market.
func (s *Session) OrderBook(ctx context.Context, marketIndex int) (*types.BookTopResponse, error) {
	return s.client.OrderBook(ctx, marketIndex)
}

// OraclePrice returns the oracle/mark price for one market, preferring a
// fresh streamed price over a REST round trip.
func (s *Session) OraclePrice(ctx context.Context, marketIndex int) (decimal.Decimal, error) {
	if price, ok := s.cache.get(marketIndex, markFreshness); ok {
		return price, nil
	}
	return s.client.OraclePrice(ctx, marketIndex)
}

// UserPosition returns the raw perp position for one market, nil if absent.
func (s *Session) UserPosition(ctx context.Context, marketIndex int) (*types.RawPosition, error) {
	return s.client.UserPosition(ctx, marketIndex)
}

// SubmitOrder submits a venue-native order and returns the transaction signature.
func (s *Session) SubmitOrder(ctx context.Context, order types.OrderParams) (string, error) {
	return s.client.SubmitOrder(ctx, order)
}

// Close stops the account feed and releases the session.
func (s *Session) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	var err error
	if s.feed != nil {
		err = s.feed.Close()
	}
	s.wg.Wait()
	s.logger.Info("session closed", "cached_oracles", s.cache.len())
	return err
}
