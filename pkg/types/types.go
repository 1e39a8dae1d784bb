// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the client — market descriptors,
// quotes, positions, order parameters, fixed-point precision, and the gateway
// wire payloads. It has no dependencies on internal packages, so it can be
// imported by any layer.
package types

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Direction is the side of a prediction-market exposure.
// YES maps to a long perp position, NO to a short one.
type Direction string

const (
	Yes  Direction = "YES"
	No   Direction = "NO"
	None Direction = "NONE"
)

// Valid reports whether the direction is one a bet can be placed in.
func (d Direction) Valid() bool {
	return d == Yes || d == No
}

// Side returns the venue-native position side for the direction.
func (d Direction) Side() Side {
	if d == No {
		return Short
	}
	return Long
}

// DirectionFromBase derives the exposure direction from a signed base amount.
func DirectionFromBase(base float64) Direction {
	switch {
	case base > 0:
		return Yes
	case base < 0:
		return No
	default:
		return None
	}
}

// Side is the venue-native order/position side.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// OrderKind enumerates the supported order types.
type OrderKind string

const (
	OrderMarket OrderKind = "MARKET" // fill immediately at the prevailing price
	OrderLimit  OrderKind = "LIMIT"  // rest on the book at a fixed price
)

// ————————————————————————————————————————————————————————————————————————
// Market metadata
// ————————————————————————————————————————————————————————————————————————

// MarketDescriptor identifies one perp market in the venue catalog.
// MarketIndex is the stable identity within the venue; Symbol and Category
// drive the prediction-market filter. Immutable once discovered.
type MarketDescriptor struct {
	MarketIndex int      `json:"marketIndex"`
	Symbol      string   `json:"symbol"`
	FullName    string   `json:"fullName"`
	Category    []string `json:"category"`
}

// PriceUnavailable marks a quote field that could not be read (market not yet
// active, no liquidity, oracle missing). Listings keep such markets so the
// caller sees a complete, stable catalog.
const PriceUnavailable = -1.0

// MarketQuote is a point-in-time snapshot of a prediction market's pricing.
// BestBid/BestAsk are the raw book top; YesPrice/NoPrice are the derived
// implied probabilities, each independently clamped to [0, 1]:
//
//	YesPrice = clamp(ask)     — cost to acquire a YES position
//	NoPrice  = clamp(1 - bid) — cost to acquire a NO position
//
// Raw and derived values are both kept so callers can compute the spread.
type MarketQuote struct {
	BestBid  float64 `json:"bidPrice"`
	BestAsk  float64 `json:"askPrice"`
	YesPrice float64 `json:"yesPrice"`
	NoPrice  float64 `json:"noPrice"`
}

// Spread returns the raw bid/ask spread, or PriceUnavailable when either side
// of the book is missing. Derived probabilities are clamped independently, so
// the spread is only recoverable from the raw fields.
func (q MarketQuote) Spread() float64 {
	if q.BestBid == PriceUnavailable || q.BestAsk == PriceUnavailable {
		return PriceUnavailable
	}
	return q.BestAsk - q.BestBid
}

// UnavailableQuote returns the sentinel quote for an unreadable market.
func UnavailableQuote() MarketQuote {
	return MarketQuote{
		BestBid:  PriceUnavailable,
		BestAsk:  PriceUnavailable,
		YesPrice: PriceUnavailable,
		NoPrice:  PriceUnavailable,
	}
}

// ————————————————————————————————————————————————————————————————————————
// Positions and bets
// ————————————————————————————————————————————————————————————————————————

// Position is a user's exposure in one market, in human units.
// BaseAssetAmount is signed (positive = YES, negative = NO); QuoteEntryAmount
// carries the sign convention that makes
//
//	UnrealizedPnL = BaseAssetAmount*markPrice + QuoteEntryAmount
//
// the correct signed P&L for both directions.
type Position struct {
	MarketIndex      int       `json:"marketIndex"`
	Symbol           string    `json:"symbol"`
	BaseAssetAmount  float64   `json:"baseAssetAmount"`
	QuoteEntryAmount float64   `json:"quoteEntryAmount"`
	UnrealizedPnL    float64   `json:"unrealizedPnl"`
	Direction        Direction `json:"direction"`
}

// BetRequest is the caller's dollar-denominated bet. Ephemeral: it exists only
// for the duration of one PlaceBet call. LimitPrice, when set, is a probability
// in (0, 1); nil means a market order.
type BetRequest struct {
	MarketIndex int
	Direction   Direction
	Amount      float64
	LimitPrice  *float64
}

// OrderParams is a fully sized venue-native order. BaseAssetAmount and Price
// are fixed-point integers at the venue's native scales (see Precision);
// Price is nil for market orders.
type OrderParams struct {
	MarketIndex     int
	Side            Side
	Kind            OrderKind
	BaseAssetAmount *big.Int
	Price           *big.Int
}

// ————————————————————————————————————————————————————————————————————————
// Fixed-point precision
// ————————————————————————————————————————————————————————————————————————

// Precision holds the venue's fixed-point scales. The venue represents base
// amounts, quote amounts, and prices as integers scaled by 10^decimals; a
// mismatch here produces silently wrong order sizes, so the scales live in
// config (supplied by the session) rather than as literals in the sizing math.
type Precision struct {
	BaseDecimals  int32 // base-asset amounts, e.g. 9 → 1e9 per contract
	QuoteDecimals int32 // quote/collateral amounts, e.g. 6 → 1e6 per dollar
	PriceDecimals int32 // prices, e.g. 6 → 1e6 per dollar
}

// DefaultPrecision returns the venue's current native scales.
func DefaultPrecision() Precision {
	return Precision{BaseDecimals: 9, QuoteDecimals: 6, PriceDecimals: 6}
}

// NativeBase converts a human base amount to native fixed-point units,
// truncating anything below one native unit.
func (p Precision) NativeBase(v decimal.Decimal) *big.Int {
	return v.Shift(p.BaseDecimals).Truncate(0).BigInt()
}

// NativePrice converts a human price to native fixed-point units.
func (p Precision) NativePrice(v decimal.Decimal) *big.Int {
	return v.Shift(p.PriceDecimals).Truncate(0).BigInt()
}

// BaseFromNative converts native base units back to a human amount.
func (p Precision) BaseFromNative(n int64) float64 {
	return decimal.New(n, -p.BaseDecimals).InexactFloat64()
}

// QuoteFromNative converts native quote units back to a human amount.
func (p Precision) QuoteFromNative(n int64) float64 {
	return decimal.New(n, -p.QuoteDecimals).InexactFloat64()
}

// PriceFromNative converts a native price back to a human price.
func (p Precision) PriceFromNative(n int64) float64 {
	return decimal.New(n, -p.PriceDecimals).InexactFloat64()
}

// ————————————————————————————————————————————————————————————————————————
// Gateway wire payloads
// ————————————————————————————————————————————————————————————————————————
// These structs map 1:1 to the JSON the venue gateway serves. Prices arrive
// as decimal strings to preserve precision; raw position amounts arrive as
// native fixed-point integers.

// CatalogResponse is one page of GET /markets.
type CatalogResponse struct {
	Markets []MarketDescriptor `json:"markets"`
	Total   int                `json:"total"`
}

// BookTopResponse is the top of book for one market from GET /markets/{i}/book.
type BookTopResponse struct {
	MarketIndex int    `json:"marketIndex"`
	BestBid     string `json:"bestBid"`
	BestAsk     string `json:"bestAsk"`
	Slot        uint64 `json:"slot"`
}

// OracleResponse is the oracle price for one market from GET /markets/{i}/oracle.
type OracleResponse struct {
	MarketIndex int    `json:"marketIndex"`
	Price       string `json:"price"`
	Slot        uint64 `json:"slot"`
}

// RawPosition is the venue-native perp position from GET /users/{w}/positions/{i}.
// Amounts are fixed-point integers at the venue scales.
type RawPosition struct {
	MarketIndex      int   `json:"marketIndex"`
	BaseAssetAmount  int64 `json:"baseAssetAmount"`
	QuoteEntryAmount int64 `json:"quoteEntryAmount"`
}

// OrderRequest is the POST /orders body. Native integer amounts are sent as
// strings to survive JSON number precision limits.
type OrderRequest struct {
	ClientOrderID   string `json:"clientOrderId"`
	SubAccountID    int    `json:"subAccountId"`
	MarketIndex     int    `json:"marketIndex"`
	Side            Side   `json:"side"`
	OrderType       string `json:"orderType"`
	BaseAssetAmount string `json:"baseAssetAmount"`
	Price           string `json:"price,omitempty"`
}

// OrderAck is the POST /orders response: the on-chain transaction signature.
type OrderAck struct {
	TxSignature string `json:"txSignature"`
	Slot        uint64 `json:"slot"`
}

// StatusResponse is GET /status, used to verify the gateway before trading.
type StatusResponse struct {
	Healthy bool   `json:"healthy"`
	Slot    uint64 `json:"slot"`
	Cluster string `json:"cluster"`
}

// ————————————————————————————————————————————————————————————————————————
// WebSocket events
// ————————————————————————————————————————————————————————————————————————

// WSOracleEvent is a streamed oracle price update for one market.
type WSOracleEvent struct {
	EventType   string `json:"event_type"` // always "oracle_price"
	MarketIndex int    `json:"marketIndex"`
	Price       string `json:"price"`
	Slot        uint64 `json:"slot"`
}

// WSFillEvent is a fill notification for the subscribed wallet.
type WSFillEvent struct {
	EventType   string `json:"event_type"` // always "fill"
	MarketIndex int    `json:"marketIndex"`
	Side        Side   `json:"side"`
	BaseAmount  string `json:"baseAssetAmount"` // native units, signed
	QuoteAmount string `json:"quoteAssetAmount"`
	TxSignature string `json:"txSignature"`
	Slot        uint64 `json:"slot"`
}

// WSSubscribeMsg is the initial subscription message for the account feed.
type WSSubscribeMsg struct {
	Type          string `json:"type"` // "account"
	Wallet        string `json:"wallet"`
	WithOracle    bool   `json:"withOracle"`
	WithPositions bool   `json:"withPositions"`
}
