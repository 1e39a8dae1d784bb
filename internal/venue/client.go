// Package venue owns the connection to the trading venue: the gateway REST
// client, the account WebSocket feed, and the session lifecycle that ties them
// together. It supplies raw market and account data to the pricing and trading
// engines; it performs no pricing logic of its own.
//
// The REST client (Client) talks to the venue gateway:
//   - MarketCatalog: GET  /markets                      — paged market catalog
//   - OrderBook:     GET  /markets/{index}/book          — top of book
//   - OraclePrice:   GET  /markets/{index}/oracle        — oracle/mark price
//   - UserPosition:  GET  /users/{wallet}/positions/{i}  — raw perp position
//   - SubmitOrder:   POST /orders                        — signed order submission
//   - Status:        GET  /status                        — gateway health + slot
//
// Every request is rate-limited via per-category TokenBuckets. Reads are
// retried on 5xx; order submissions are never replayed — a submission either
// acks with a transaction signature or fails to the caller.
package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"driftbet/internal/config"
	"driftbet/pkg/types"
)

const catalogPageSize = 200

// Client is the venue gateway REST API client.
// It wraps a resty HTTP client with rate limiting, retry, and auth.
type Client struct {
	http   *resty.Client // HTTP client with retry + base URL
	auth   *Auth         // HMAC auth for account endpoints
	rl     *RateLimiter  // per-endpoint-category rate limiting
	sub    int           // sub-account orders are submitted for
	dryRun bool          // when true, SubmitOrder returns a fake ack without HTTP calls
	logger *slog.Logger
}

// NewClient creates a REST client with rate limiting and retry.
func NewClient(cfg config.Config, auth *Auth, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.Venue.GatewayBaseURL).
		SetTimeout(cfg.Venue.RequestTimeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Only idempotent reads are retried; a POST must reach the
			// chain at most once.
			if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
				return false
			}
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		auth:   auth,
		rl:     NewRateLimiter(),
		sub:    cfg.Venue.SubAccountID,
		dryRun: cfg.DryRun,
		logger: logger,
	}
}

// MarketCatalog fetches the full market catalog, following pagination.
// Catalog order is preserved: the gateway returns markets in index order and
// listings downstream depend on that ordering being stable.
func (c *Client) MarketCatalog(ctx context.Context) ([]types.MarketDescriptor, error) {
	if err := c.rl.Catalog.Wait(ctx); err != nil {
		return nil, err
	}

	var all []types.MarketDescriptor
	offset := 0

	for {
		var page types.CatalogResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"limit":  strconv.Itoa(catalogPageSize),
				"offset": strconv.Itoa(offset),
			}).
			SetResult(&page).
			Get("/markets")
		if err != nil {
			return nil, fmt.Errorf("fetch catalog page %d: %w", offset, err)
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("fetch catalog: status %d: %s", resp.StatusCode(), resp.String())
		}

		all = append(all, page.Markets...)

		if len(page.Markets) < catalogPageSize {
			break
		}
		offset += catalogPageSize
	}

	return all, nil
}

// OrderBook fetches the top of book for a single market. A market without an
// active book (not yet listed, delisted, no liquidity) returns
// ErrMarketUnavailable so batch callers can isolate it.
func (c *Client) OrderBook(ctx context.Context, marketIndex int) (*types.BookTopResponse, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	var result types.BookTopResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get(fmt.Sprintf("/markets/%d/book", marketIndex))
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("market %d book: %w", marketIndex, types.ErrMarketUnavailable)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get book: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// OraclePrice fetches the oracle/mark price for a single market.
func (c *Client) OraclePrice(ctx context.Context, marketIndex int) (decimal.Decimal, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return decimal.Zero, err
	}

	var result types.OracleResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get(fmt.Sprintf("/markets/%d/oracle", marketIndex))
	if err != nil {
		return decimal.Zero, fmt.Errorf("get oracle: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return decimal.Zero, fmt.Errorf("market %d oracle: %w", marketIndex, types.ErrMarketUnavailable)
	}
	if resp.StatusCode() != http.StatusOK {
		return decimal.Zero, fmt.Errorf("get oracle: status %d: %s", resp.StatusCode(), resp.String())
	}

	price, err := decimal.NewFromString(result.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("market %d oracle price %q: %w", marketIndex, result.Price, types.ErrMarketUnavailable)
	}
	return price, nil
}

// UserPosition fetches the raw perp position for one market.
// Returns nil, nil when the wallet has no position record in that market.
func (c *Client) UserPosition(ctx context.Context, marketIndex int) (*types.RawPosition, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/users/%s/positions/%d", c.auth.Wallet(), marketIndex)

	var result types.RawPosition
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.auth.Headers(http.MethodGet, path, "")).
		SetResult(&result).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("get position: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get position: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// SubmitOrder submits one venue-native order and returns the transaction
// signature. Exactly one submission call is made per invocation; the gateway
// deduplicates on ClientOrderID should the network deliver a duplicate.
func (c *Client) SubmitOrder(ctx context.Context, order types.OrderParams) (string, error) {
	req := types.OrderRequest{
		ClientOrderID:   uuid.NewString(),
		SubAccountID:    c.sub,
		MarketIndex:     order.MarketIndex,
		Side:            order.Side,
		OrderType:       string(order.Kind),
		BaseAssetAmount: order.BaseAssetAmount.String(),
	}
	if order.Kind == types.OrderLimit && order.Price != nil {
		req.Price = order.Price.String()
	}

	if c.dryRun {
		c.logger.Info("DRY-RUN: would submit order",
			"market", order.MarketIndex,
			"side", order.Side,
			"type", order.Kind,
			"base_amount", req.BaseAssetAmount,
		)
		return "dry-run-" + req.ClientOrderID, nil
	}

	if err := c.rl.Order.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal order: %w", err)
	}

	var ack types.OrderAck
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.auth.Headers(http.MethodPost, "/orders", string(body))).
		SetBody(json.RawMessage(body)).
		SetResult(&ack).
		Post("/orders")
	if err != nil {
		return "", fmt.Errorf("submit order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("submit order: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Info("order submitted",
		"market", order.MarketIndex,
		"side", order.Side,
		"tx", ack.TxSignature,
	)
	return ack.TxSignature, nil
}

// Status checks the gateway's health before any trading begins.
func (c *Client) Status(ctx context.Context) (*types.StatusResponse, error) {
	var result types.StatusResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/status")
	if err != nil {
		return nil, fmt.Errorf("gateway status: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("gateway status: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}
