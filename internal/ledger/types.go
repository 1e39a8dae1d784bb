// Package ledger implements the offline paper-trading journal: an append-only
// record of hypothetical wagers with independent, simple bookkeeping. It is a
// flat sqlite file, deliberately decoupled from the live venue — nothing here
// touches the session or the engines.
package ledger

import (
	"errors"
	"time"

	"driftbet/pkg/types"
)

// ErrTradeNotFound is returned when a trade id does not exist in the journal.
var ErrTradeNotFound = errors.New("trade not found")

// Trade status lifecycle: PENDING until resolved, then WON, LOST, or CANCELLED.
const (
	StatusPending   = "PENDING"
	StatusWon       = "WON"
	StatusLost      = "LOST"
	StatusCancelled = "CANCELLED"
)

// NewTrade is the input for placing a paper wager.
type NewTrade struct {
	Market    string          // market name or question
	Platform  string          // where the real market trades
	Position  types.Direction // YES or NO
	Amount    float64         // stake in quote currency
	Odds      float64         // implied probability at entry, in (0, 1)
	Reasoning string          // why this trade
	ExpiresAt string          // when the market resolves (free-form)
}

// Trade is one journal entry.
type Trade struct {
	ID              int64           `json:"id"`
	Market          string          `json:"market"`
	Platform        string          `json:"platform"`
	Position        types.Direction `json:"position"`
	Amount          float64         `json:"amount"`
	Odds            float64         `json:"odds"`
	PotentialPayout float64         `json:"potentialPayout"`
	Reasoning       string          `json:"reasoning"`
	ExpiresAt       string          `json:"expiresAt"`
	Status          string          `json:"status"`
	PnL             float64         `json:"pnl"` // zero until resolved
	PlacedAt        time.Time       `json:"placedAt"`
	ResolvedAt      *time.Time      `json:"resolvedAt,omitempty"`
}

// Stats is the portfolio summary across the whole journal.
type Stats struct {
	StartingBalance float64 `json:"startingBalance"`
	CurrentBalance  float64 `json:"currentBalance"`
	TotalTrades     int     `json:"totalTrades"`
	Wins            int     `json:"wins"`
	Losses          int     `json:"losses"`
	Pending         int     `json:"pending"`
	TotalPnL        float64 `json:"totalPnl"`
	WinRate         float64 `json:"winRate"` // wins / (wins + losses), 0 when unresolved
}
