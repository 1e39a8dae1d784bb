package pricing

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"reflect"
	"testing"

	"driftbet/internal/config"
	"driftbet/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testMarketsConfig() config.MarketsConfig {
	return config.MarketsConfig{
		FamilyTokens:  []string{"BET", "PREDICT"},
		PredictionTag: "Prediction",
	}
}

// fakeData is a scripted MarketData source.
type fakeData struct {
	catalog    []types.MarketDescriptor
	catalogErr error
	books      map[int]*types.BookTopResponse
	bookErrs   map[int]error
}

func (f *fakeData) MarketCatalog(ctx context.Context) ([]types.MarketDescriptor, error) {
	return f.catalog, f.catalogErr
}

func (f *fakeData) OrderBook(ctx context.Context, marketIndex int) (*types.BookTopResponse, error) {
	if err, ok := f.bookErrs[marketIndex]; ok {
		return nil, err
	}
	if b, ok := f.books[marketIndex]; ok {
		return b, nil
	}
	return nil, types.ErrMarketUnavailable
}

func TestListDerivesImpliedPrices(t *testing.T) {
	t.Parallel()
	data := &fakeData{
		catalog: []types.MarketDescriptor{
			{MarketIndex: 7, Symbol: "TRUMP-WIN-2024-BET", Category: []string{"Prediction"}},
		},
		books: map[int]*types.BookTopResponse{
			7: {MarketIndex: 7, BestBid: "0.30", BestAsk: "0.38"},
		},
	}
	e := NewEngine(data, testMarketsConfig(), testLogger())

	listings, err := e.ListPredictionMarkets(context.Background())
	if err != nil {
		t.Fatalf("ListPredictionMarkets: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(listings))
	}

	l := listings[0]
	if !l.Available {
		t.Error("listing should be available")
	}
	if l.Quote.YesPrice != 0.38 {
		t.Errorf("YesPrice = %v, want 0.38", l.Quote.YesPrice)
	}
	if l.Quote.NoPrice != 0.70 {
		t.Errorf("NoPrice = %v, want 0.70", l.Quote.NoPrice)
	}
	if l.Quote.BestBid != 0.30 || l.Quote.BestAsk != 0.38 {
		t.Errorf("raw book = %v/%v, want 0.30/0.38", l.Quote.BestBid, l.Quote.BestAsk)
	}
}

func TestListClampsOutOfRangePrices(t *testing.T) {
	t.Parallel()
	// Glitched books can report prices outside [0, 1]; the derived
	// probabilities must still land inside.
	data := &fakeData{
		catalog: []types.MarketDescriptor{
			{MarketIndex: 1, Symbol: "FED-CUT-BET"},
			{MarketIndex: 2, Symbol: "ETH-FLIP-BET"},
		},
		books: map[int]*types.BookTopResponse{
			1: {BestBid: "0.95", BestAsk: "1.20"},
			2: {BestBid: "-0.10", BestAsk: "0.05"},
		},
	}
	e := NewEngine(data, testMarketsConfig(), testLogger())

	listings, err := e.ListPredictionMarkets(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if got := listings[0].Quote.YesPrice; got != 1.0 {
		t.Errorf("clamped YesPrice = %v, want 1.0", got)
	}
	if got := listings[1].Quote.NoPrice; got != 1.0 {
		t.Errorf("clamped NoPrice = %v, want 1.0", got)
	}
	// Raw fields keep the glitched values so spread stays observable.
	if got := listings[0].Quote.BestAsk; got != 1.20 {
		t.Errorf("raw BestAsk = %v, want 1.20", got)
	}
}

func TestListIsolatesFailedMarkets(t *testing.T) {
	t.Parallel()
	// One dead market must not hide the rest of the catalog.
	data := &fakeData{
		catalog: []types.MarketDescriptor{
			{MarketIndex: 1, Symbol: "A-BET"},
			{MarketIndex: 2, Symbol: "B-BET"},
			{MarketIndex: 3, Symbol: "C-BET"},
		},
		books: map[int]*types.BookTopResponse{
			1: {BestBid: "0.40", BestAsk: "0.45"},
			3: {BestBid: "0.10", BestAsk: "0.15"},
		},
		bookErrs: map[int]error{2: types.ErrMarketUnavailable},
	}
	e := NewEngine(data, testMarketsConfig(), testLogger())

	listings, err := e.ListPredictionMarkets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(listings) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(listings))
	}

	bad := listings[1]
	if bad.Available {
		t.Error("failed market should be Available=false")
	}
	if bad.Quote.YesPrice != types.PriceUnavailable || bad.Quote.NoPrice != types.PriceUnavailable {
		t.Errorf("failed market quote = %+v, want all sentinel", bad.Quote)
	}
	if !listings[0].Available || !listings[2].Available {
		t.Error("healthy markets should stay available")
	}
}

func TestListUnparseableBookIsUnavailable(t *testing.T) {
	t.Parallel()
	data := &fakeData{
		catalog: []types.MarketDescriptor{{MarketIndex: 1, Symbol: "X-BET"}},
		books: map[int]*types.BookTopResponse{
			1: {BestBid: "", BestAsk: "0.50"},
		},
	}
	e := NewEngine(data, testMarketsConfig(), testLogger())

	listings, err := e.ListPredictionMarkets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(listings) != 1 || listings[0].Available {
		t.Fatalf("unparseable book should yield one unavailable listing, got %+v", listings)
	}
}

func TestListCatalogErrorIsFatal(t *testing.T) {
	t.Parallel()
	wantErr := errors.New("gateway down")
	e := NewEngine(&fakeData{catalogErr: wantErr}, testMarketsConfig(), testLogger())

	if _, err := e.ListPredictionMarkets(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("expected catalog error to propagate, got %v", err)
	}
}

func TestListFiltersAndPreservesOrder(t *testing.T) {
	t.Parallel()
	data := &fakeData{
		catalog: []types.MarketDescriptor{
			{MarketIndex: 0, Symbol: "SOL-PERP"},
			{MarketIndex: 5, Symbol: "ZZZ-BET"},
			{MarketIndex: 2, Symbol: "BTC-PERP"},
			{MarketIndex: 3, Symbol: "AAA-BET"},
		},
		books: map[int]*types.BookTopResponse{
			5: {BestBid: "0.50", BestAsk: "0.55"},
			3: {BestBid: "0.20", BestAsk: "0.25"},
		},
	}
	e := NewEngine(data, testMarketsConfig(), testLogger())

	listings, err := e.ListPredictionMarkets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}
	// Catalog order, not index order.
	if listings[0].Market.MarketIndex != 5 || listings[1].Market.MarketIndex != 3 {
		t.Errorf("listing order = [%d, %d], want [5, 3]",
			listings[0].Market.MarketIndex, listings[1].Market.MarketIndex)
	}
}

func TestMatches(t *testing.T) {
	t.Parallel()
	cfg := testMarketsConfig()

	tests := []struct {
		name   string
		market types.MarketDescriptor
		want   bool
	}{
		{"symbol family token", types.MarketDescriptor{Symbol: "TRUMP-BET"}, true},
		{"lowercase symbol", types.MarketDescriptor{Symbol: "trump-bet"}, true},
		{"predict token", types.MarketDescriptor{Symbol: "CPI-PREDICT-2026"}, true},
		{"category tag", types.MarketDescriptor{Symbol: "WEIRD", Category: []string{"Prediction"}}, true},
		{"category tag case", types.MarketDescriptor{Symbol: "WEIRD", Category: []string{"prediction"}}, true},
		{"plain perp", types.MarketDescriptor{Symbol: "SOL-PERP", Category: []string{"Layer1"}}, false},
		{"empty", types.MarketDescriptor{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(cfg, tt.market); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.market.Symbol, got, tt.want)
			}
		})
	}
}

func TestListIdempotent(t *testing.T) {
	t.Parallel()
	data := &fakeData{
		catalog: []types.MarketDescriptor{{MarketIndex: 1, Symbol: "A-BET"}},
		books: map[int]*types.BookTopResponse{
			1: {BestBid: "0.40", BestAsk: "0.45"},
		},
	}
	e := NewEngine(data, testMarketsConfig(), testLogger())

	first, err := e.ListPredictionMarkets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.ListPredictionMarkets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated listing differs: %+v vs %+v", first, second)
	}
}
