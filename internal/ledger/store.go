package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"driftbet/pkg/types"
)

// Store is the sqlite-backed paper-trading journal.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the journal at path and seeds the portfolio with
// startingBalance on first use. An existing portfolio keeps its balance.
func Open(path string, startingBalance float64) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	// WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema migration: %w", err)
	}

	now := time.Now().UTC()
	if _, err := db.Exec(`
		INSERT INTO portfolio (id, starting_balance, current_balance, created_at, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		startingBalance, startingBalance, now, now,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed portfolio: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PlaceTrade records a new paper wager and debits the stake from the balance.
// The stake must not exceed the current balance. Potential payout is
// amount/odds for YES and amount/(1-odds) for NO — the payout if the chosen
// side resolves true.
func (s *Store) PlaceTrade(ctx context.Context, nt NewTrade) (*Trade, error) {
	if !nt.Position.Valid() {
		return nil, fmt.Errorf("position %q must be YES or NO: %w", nt.Position, types.ErrInvalidRequest)
	}
	if nt.Amount <= 0 {
		return nil, fmt.Errorf("amount %.6f must be positive: %w", nt.Amount, types.ErrInvalidRequest)
	}
	if nt.Odds <= 0 || nt.Odds >= 1 {
		return nil, fmt.Errorf("odds %v must be a probability in (0, 1): %w", nt.Odds, types.ErrInvalidRequest)
	}

	payout := nt.Amount / nt.Odds
	if nt.Position == types.No {
		payout = nt.Amount / (1 - nt.Odds)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var balance float64
	if err := tx.QueryRowContext(ctx,
		`SELECT current_balance FROM portfolio WHERE id = 1`).Scan(&balance); err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	if nt.Amount > balance {
		return nil, fmt.Errorf("stake %.2f exceeds balance %.2f: %w", nt.Amount, balance, types.ErrInvalidRequest)
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO trades (market, platform, position, amount, odds, potential_payout,
			reasoning, expires_at, status, placed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nt.Market, nt.Platform, string(nt.Position), nt.Amount, nt.Odds, payout,
		nt.Reasoning, nt.ExpiresAt, StatusPending, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert trade: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("trade id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE portfolio SET current_balance = current_balance - ?, updated_at = ? WHERE id = 1`,
		nt.Amount, now,
	); err != nil {
		return nil, fmt.Errorf("debit balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &Trade{
		ID:              id,
		Market:          nt.Market,
		Platform:        nt.Platform,
		Position:        nt.Position,
		Amount:          nt.Amount,
		Odds:            nt.Odds,
		PotentialPayout: payout,
		Reasoning:       nt.Reasoning,
		ExpiresAt:       nt.ExpiresAt,
		Status:          StatusPending,
		PlacedAt:        now,
	}, nil
}

// ResolveTrade settles a pending trade. A win credits the potential payout
// back to the balance; a loss credits nothing (the stake was debited at
// placement). Resolving a non-pending trade is an error.
func (s *Store) ResolveTrade(ctx context.Context, id int64, won bool) (*Trade, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	trade, err := scanTrade(tx.QueryRowContext(ctx, selectTrade+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trade %d: %w", id, ErrTradeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read trade: %w", err)
	}
	if trade.Status != StatusPending {
		return nil, fmt.Errorf("trade %d already resolved (%s): %w", id, trade.Status, types.ErrInvalidRequest)
	}

	now := time.Now().UTC()
	credit := 0.0
	if won {
		trade.Status = StatusWon
		trade.PnL = trade.PotentialPayout - trade.Amount
		credit = trade.PotentialPayout
	} else {
		trade.Status = StatusLost
		trade.PnL = -trade.Amount
	}
	trade.ResolvedAt = &now

	if _, err := tx.ExecContext(ctx, `
		UPDATE trades SET status = ?, pnl = ?, resolved_at = ? WHERE id = ?`,
		trade.Status, trade.PnL, now, id,
	); err != nil {
		return nil, fmt.Errorf("update trade: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE portfolio SET current_balance = current_balance + ?, updated_at = ? WHERE id = 1`,
		credit, now,
	); err != nil {
		return nil, fmt.Errorf("credit balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return trade, nil
}

// CancelTrade voids a pending trade and refunds the stake.
func (s *Store) CancelTrade(ctx context.Context, id int64) (*Trade, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	trade, err := scanTrade(tx.QueryRowContext(ctx, selectTrade+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trade %d: %w", id, ErrTradeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read trade: %w", err)
	}
	if trade.Status != StatusPending {
		return nil, fmt.Errorf("trade %d already resolved (%s): %w", id, trade.Status, types.ErrInvalidRequest)
	}

	now := time.Now().UTC()
	trade.Status = StatusCancelled
	trade.ResolvedAt = &now

	if _, err := tx.ExecContext(ctx, `
		UPDATE trades SET status = ?, resolved_at = ? WHERE id = ?`,
		StatusCancelled, now, id,
	); err != nil {
		return nil, fmt.Errorf("update trade: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE portfolio SET current_balance = current_balance + ?, updated_at = ? WHERE id = 1`,
		trade.Amount, now,
	); err != nil {
		return nil, fmt.Errorf("refund balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return trade, nil
}

// OpenTrades returns pending trades, oldest first.
func (s *Store) OpenTrades(ctx context.Context) ([]Trade, error) {
	return s.queryTrades(ctx, selectTrade+` WHERE status = ? ORDER BY placed_at`, StatusPending)
}

// History returns the most recent trades, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]Trade, error) {
	return s.queryTrades(ctx, selectTrade+` ORDER BY placed_at DESC LIMIT ?`, limit)
}

// Stats returns the portfolio summary.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx,
		`SELECT starting_balance, current_balance FROM portfolio WHERE id = 1`,
	).Scan(&st.StartingBalance, &st.CurrentBalance); err != nil {
		return nil, fmt.Errorf("read portfolio: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT total_trades, COALESCE(wins, 0), COALESCE(losses, 0), COALESCE(pending, 0), total_pnl FROM v_stats`,
	).Scan(&st.TotalTrades, &st.Wins, &st.Losses, &st.Pending, &st.TotalPnL); err != nil {
		return nil, fmt.Errorf("read stats: %w", err)
	}

	if resolved := st.Wins + st.Losses; resolved > 0 {
		st.WinRate = float64(st.Wins) / float64(resolved)
	}
	return &st, nil
}

const selectTrade = `
	SELECT id, market, platform, position, amount, odds, potential_payout,
		reasoning, expires_at, status, pnl, placed_at, resolved_at
	FROM trades`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrade(row rowScanner) (*Trade, error) {
	var t Trade
	var position string
	var resolvedAt sql.NullTime
	if err := row.Scan(&t.ID, &t.Market, &t.Platform, &position, &t.Amount, &t.Odds,
		&t.PotentialPayout, &t.Reasoning, &t.ExpiresAt, &t.Status, &t.PnL,
		&t.PlacedAt, &resolvedAt); err != nil {
		return nil, err
	}
	t.Position = types.Direction(position)
	if resolvedAt.Valid {
		t.ResolvedAt = &resolvedAt.Time
	}
	return &t, nil
}

func (s *Store) queryTrades(ctx context.Context, query string, args ...any) ([]Trade, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, *t)
	}
	return trades, rows.Err()
}
