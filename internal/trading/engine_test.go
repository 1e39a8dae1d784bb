package trading

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/shopspring/decimal"

	"driftbet/internal/config"
	"driftbet/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() config.Config {
	return config.Config{
		Markets: config.MarketsConfig{
			FamilyTokens:  []string{"BET", "PREDICT"},
			PredictionTag: "Prediction",
		},
		Trading: config.TradingConfig{MaxBetUSD: 100},
	}
}

// fakeVenue is a scripted venue session that counts every call, so tests can
// assert not just what came back but what was (and wasn't) asked of the venue.
type fakeVenue struct {
	catalog    []types.MarketDescriptor
	catalogErr error
	positions  map[int]*types.RawPosition
	posErrs    map[int]error
	oracle     map[int]decimal.Decimal
	oracleErrs map[int]error
	submitted  []types.OrderParams
	submitErr  error

	catalogCalls int
	oracleCalls  int
	posCalls     int
	submitCalls  int
}

func (f *fakeVenue) MarketCatalog(ctx context.Context) ([]types.MarketDescriptor, error) {
	f.catalogCalls++
	return f.catalog, f.catalogErr
}

func (f *fakeVenue) OraclePrice(ctx context.Context, marketIndex int) (decimal.Decimal, error) {
	f.oracleCalls++
	if err, ok := f.oracleErrs[marketIndex]; ok {
		return decimal.Zero, err
	}
	return f.oracle[marketIndex], nil
}

func (f *fakeVenue) UserPosition(ctx context.Context, marketIndex int) (*types.RawPosition, error) {
	f.posCalls++
	if err, ok := f.posErrs[marketIndex]; ok {
		return nil, err
	}
	return f.positions[marketIndex], nil
}

func (f *fakeVenue) SubmitOrder(ctx context.Context, order types.OrderParams) (string, error) {
	f.submitCalls++
	f.submitted = append(f.submitted, order)
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "tx-sig-1", nil
}

func (f *fakeVenue) Precision() types.Precision {
	return types.DefaultPrecision()
}

func (f *fakeVenue) totalCalls() int {
	return f.catalogCalls + f.oracleCalls + f.posCalls + f.submitCalls
}

func betMarket(idx int, symbol string) types.MarketDescriptor {
	return types.MarketDescriptor{MarketIndex: idx, Symbol: symbol, Category: []string{"Prediction"}}
}

// ————————————————————————————————————————————————————————————————————————
// Positions
// ————————————————————————————————————————————————————————————————————————

func TestPositionsMarksUnrealizedPnL(t *testing.T) {
	t.Parallel()
	// 100 contracts long, entered for a net -35 quote outlay, marked at 0.42:
	// pnl = 100*0.42 + (-35) = 7, exactly.
	venue := &fakeVenue{
		catalog: []types.MarketDescriptor{betMarket(7, "TRUMP-BET")},
		positions: map[int]*types.RawPosition{
			7: {MarketIndex: 7, BaseAssetAmount: 100_000_000_000, QuoteEntryAmount: -35_000_000},
		},
		oracle: map[int]decimal.Decimal{7: decimal.RequireFromString("0.42")},
	}
	e := NewEngine(venue, testConfig(), testLogger())

	positions, err := e.Positions(context.Background())
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(positions))
	}

	p := positions[0]
	if p.UnrealizedPnL != 7.0 {
		t.Errorf("UnrealizedPnL = %v, want exactly 7.0", p.UnrealizedPnL)
	}
	if p.BaseAssetAmount != 100.0 {
		t.Errorf("BaseAssetAmount = %v, want 100.0", p.BaseAssetAmount)
	}
	if p.QuoteEntryAmount != -35.0 {
		t.Errorf("QuoteEntryAmount = %v, want -35.0", p.QuoteEntryAmount)
	}
	if p.Direction != types.Yes {
		t.Errorf("Direction = %v, want YES", p.Direction)
	}
}

func TestPositionsShortIsNo(t *testing.T) {
	t.Parallel()
	// 50 contracts short, credited 30 quote at entry, marked at 0.50:
	// pnl = -50*0.50 + 30 = 5.
	venue := &fakeVenue{
		catalog: []types.MarketDescriptor{betMarket(3, "FED-CUT-BET")},
		positions: map[int]*types.RawPosition{
			3: {MarketIndex: 3, BaseAssetAmount: -50_000_000_000, QuoteEntryAmount: 30_000_000},
		},
		oracle: map[int]decimal.Decimal{3: decimal.RequireFromString("0.5")},
	}
	e := NewEngine(venue, testConfig(), testLogger())

	positions, err := e.Positions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(positions))
	}
	if positions[0].Direction != types.No {
		t.Errorf("Direction = %v, want NO", positions[0].Direction)
	}
	if positions[0].UnrealizedPnL != 5.0 {
		t.Errorf("UnrealizedPnL = %v, want 5.0", positions[0].UnrealizedPnL)
	}
}

func TestPositionsOmitsFlatMarkets(t *testing.T) {
	t.Parallel()
	venue := &fakeVenue{
		catalog: []types.MarketDescriptor{
			betMarket(1, "A-BET"), // no record at all
			betMarket(2, "B-BET"), // record with zero base
			betMarket(3, "C-BET"), // real exposure
		},
		positions: map[int]*types.RawPosition{
			2: {MarketIndex: 2, BaseAssetAmount: 0, QuoteEntryAmount: 1_000_000},
			3: {MarketIndex: 3, BaseAssetAmount: 10_000_000_000, QuoteEntryAmount: -4_000_000},
		},
		oracle: map[int]decimal.Decimal{3: decimal.RequireFromString("0.40")},
	}
	e := NewEngine(venue, testConfig(), testLogger())

	positions, err := e.Positions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(positions) != 1 || positions[0].MarketIndex != 3 {
		t.Errorf("expected only market 3, got %+v", positions)
	}
}

func TestPositionsSkipsUnreadableMarkets(t *testing.T) {
	t.Parallel()
	venue := &fakeVenue{
		catalog: []types.MarketDescriptor{betMarket(1, "A-BET"), betMarket(2, "B-BET")},
		positions: map[int]*types.RawPosition{
			2: {MarketIndex: 2, BaseAssetAmount: 10_000_000_000, QuoteEntryAmount: -4_000_000},
		},
		posErrs: map[int]error{1: errors.New("rpc timeout")},
		oracle:  map[int]decimal.Decimal{2: decimal.RequireFromString("0.40")},
	}
	e := NewEngine(venue, testConfig(), testLogger())

	positions, err := e.Positions(context.Background())
	if err != nil {
		t.Fatalf("one unreadable market must not fail the scan: %v", err)
	}
	if len(positions) != 1 || positions[0].MarketIndex != 2 {
		t.Errorf("expected only market 2, got %+v", positions)
	}
}

func TestPositionsIgnoresNonPredictionMarkets(t *testing.T) {
	t.Parallel()
	venue := &fakeVenue{
		catalog: []types.MarketDescriptor{
			{MarketIndex: 0, Symbol: "SOL-PERP"},
			betMarket(1, "A-BET"),
		},
		positions: map[int]*types.RawPosition{
			0: {MarketIndex: 0, BaseAssetAmount: 1_000_000_000},
		},
	}
	e := NewEngine(venue, testConfig(), testLogger())

	positions, err := e.Positions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(positions) != 0 {
		t.Errorf("perp exposure should not appear, got %+v", positions)
	}
	if venue.posCalls != 1 {
		t.Errorf("position reads = %d, want 1 (prediction markets only)", venue.posCalls)
	}
}

// ————————————————————————————————————————————————————————————————————————
// PlaceBet
// ————————————————————————————————————————————————————————————————————————

func TestPlaceBetSizesExactly(t *testing.T) {
	t.Parallel()
	// $10 at oracle 0.40 buys 25 contracts = 25e9 native units, exactly.
	venue := &fakeVenue{
		catalog: []types.MarketDescriptor{betMarket(7, "TRUMP-BET")},
		oracle:  map[int]decimal.Decimal{7: decimal.RequireFromString("0.40")},
	}
	e := NewEngine(venue, testConfig(), testLogger())

	tx, err := e.PlaceBet(context.Background(), types.BetRequest{
		MarketIndex: 7, Direction: types.Yes, Amount: 10,
	})
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	if tx != "tx-sig-1" {
		t.Errorf("tx = %q, want tx-sig-1", tx)
	}
	if venue.submitCalls != 1 {
		t.Fatalf("submit calls = %d, want 1", venue.submitCalls)
	}

	order := venue.submitted[0]
	if got := order.BaseAssetAmount.String(); got != "25000000000" {
		t.Errorf("BaseAssetAmount = %s, want 25000000000", got)
	}
	if order.Side != types.Long {
		t.Errorf("Side = %v, want LONG", order.Side)
	}
	if order.Kind != types.OrderMarket {
		t.Errorf("Kind = %v, want MARKET", order.Kind)
	}
	if order.Price != nil {
		t.Errorf("market order Price = %v, want nil", order.Price)
	}
}

func TestPlaceBetNoIsShort(t *testing.T) {
	t.Parallel()
	venue := &fakeVenue{
		catalog: []types.MarketDescriptor{betMarket(7, "TRUMP-BET")},
		oracle:  map[int]decimal.Decimal{7: decimal.RequireFromString("0.25")},
	}
	e := NewEngine(venue, testConfig(), testLogger())

	if _, err := e.PlaceBet(context.Background(), types.BetRequest{
		MarketIndex: 7, Direction: types.No, Amount: 5,
	}); err != nil {
		t.Fatal(err)
	}
	if venue.submitted[0].Side != types.Short {
		t.Errorf("NO bet Side = %v, want SHORT", venue.submitted[0].Side)
	}
	if got := venue.submitted[0].BaseAssetAmount.String(); got != "20000000000" {
		t.Errorf("BaseAssetAmount = %s, want 20000000000", got)
	}
}

func TestPlaceBetLimitOrder(t *testing.T) {
	t.Parallel()
	venue := &fakeVenue{
		catalog: []types.MarketDescriptor{betMarket(7, "TRUMP-BET")},
		oracle:  map[int]decimal.Decimal{7: decimal.RequireFromString("0.40")},
	}
	e := NewEngine(venue, testConfig(), testLogger())

	limit := 0.35
	if _, err := e.PlaceBet(context.Background(), types.BetRequest{
		MarketIndex: 7, Direction: types.Yes, Amount: 10, LimitPrice: &limit,
	}); err != nil {
		t.Fatal(err)
	}

	order := venue.submitted[0]
	if order.Kind != types.OrderLimit {
		t.Errorf("Kind = %v, want LIMIT", order.Kind)
	}
	if order.Price == nil || order.Price.String() != "350000" {
		t.Errorf("Price = %v, want 350000", order.Price)
	}
}

func TestPlaceBetUnknownMarket(t *testing.T) {
	t.Parallel()
	venue := &fakeVenue{catalog: []types.MarketDescriptor{betMarket(7, "TRUMP-BET")}}
	e := NewEngine(venue, testConfig(), testLogger())

	_, err := e.PlaceBet(context.Background(), types.BetRequest{
		MarketIndex: 999999, Direction: types.Yes, Amount: 10,
	})
	if !errors.Is(err, types.ErrMarketNotFound) {
		t.Errorf("expected ErrMarketNotFound, got %v", err)
	}
	if venue.submitCalls != 0 {
		t.Errorf("no order must be submitted for an unknown market")
	}
}

func TestPlaceBetNonPredictionMarket(t *testing.T) {
	t.Parallel()
	venue := &fakeVenue{
		catalog: []types.MarketDescriptor{{MarketIndex: 0, Symbol: "SOL-PERP"}},
	}
	e := NewEngine(venue, testConfig(), testLogger())

	_, err := e.PlaceBet(context.Background(), types.BetRequest{
		MarketIndex: 0, Direction: types.Yes, Amount: 10,
	})
	if !errors.Is(err, types.ErrMarketNotFound) {
		t.Errorf("betting on a non-prediction market should be ErrMarketNotFound, got %v", err)
	}
}

func TestPlaceBetValidatesBeforeVenue(t *testing.T) {
	t.Parallel()
	limit0 := 0.0
	limit2 := 1.5

	tests := []struct {
		name string
		req  types.BetRequest
	}{
		{"bad direction", types.BetRequest{MarketIndex: 7, Direction: "MAYBE", Amount: 10}},
		{"zero amount", types.BetRequest{MarketIndex: 7, Direction: types.Yes, Amount: 0}},
		{"negative amount", types.BetRequest{MarketIndex: 7, Direction: types.Yes, Amount: -5}},
		{"over cap", types.BetRequest{MarketIndex: 7, Direction: types.Yes, Amount: 150}},
		{"limit zero", types.BetRequest{MarketIndex: 7, Direction: types.Yes, Amount: 10, LimitPrice: &limit0}},
		{"limit above one", types.BetRequest{MarketIndex: 7, Direction: types.Yes, Amount: 10, LimitPrice: &limit2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			venue := &fakeVenue{
				catalog: []types.MarketDescriptor{betMarket(7, "TRUMP-BET")},
				oracle:  map[int]decimal.Decimal{7: decimal.RequireFromString("0.40")},
			}
			e := NewEngine(venue, testConfig(), testLogger())

			_, err := e.PlaceBet(context.Background(), tt.req)
			if !errors.Is(err, types.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
			if venue.totalCalls() != 0 {
				t.Errorf("venue calls = %d, want 0 (validation is pre-flight)", venue.totalCalls())
			}
		})
	}
}

func TestPlaceBetUnusableOracle(t *testing.T) {
	t.Parallel()
	venue := &fakeVenue{
		catalog: []types.MarketDescriptor{betMarket(7, "TRUMP-BET")},
		oracle:  map[int]decimal.Decimal{7: decimal.Zero},
	}
	e := NewEngine(venue, testConfig(), testLogger())

	_, err := e.PlaceBet(context.Background(), types.BetRequest{
		MarketIndex: 7, Direction: types.Yes, Amount: 10,
	})
	if !errors.Is(err, types.ErrMarketUnavailable) {
		t.Errorf("zero oracle price should be ErrMarketUnavailable, got %v", err)
	}
	if venue.submitCalls != 0 {
		t.Error("no order must be submitted without a usable oracle price")
	}
}

func TestPlaceBetVenueRejectionPropagates(t *testing.T) {
	t.Parallel()
	rejection := errors.New("insufficient collateral")
	venue := &fakeVenue{
		catalog:   []types.MarketDescriptor{betMarket(7, "TRUMP-BET")},
		oracle:    map[int]decimal.Decimal{7: decimal.RequireFromString("0.40")},
		submitErr: rejection,
	}
	e := NewEngine(venue, testConfig(), testLogger())

	_, err := e.PlaceBet(context.Background(), types.BetRequest{
		MarketIndex: 7, Direction: types.Yes, Amount: 10,
	})
	if !errors.Is(err, rejection) {
		t.Errorf("venue rejection should propagate unmodified, got %v", err)
	}
	if venue.submitCalls != 1 {
		t.Errorf("submit calls = %d, want exactly 1 (no internal retry)", venue.submitCalls)
	}
}
