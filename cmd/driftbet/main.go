// driftbet — a client for BET (prediction) markets on an on-chain perp venue.
//
// Architecture:
//
//	main.go             — entry point: cobra commands, config, logging
//	venue/session.go    — session lifecycle: gateway health check + account feed
//	venue/client.go     — REST client for the venue gateway (catalog, book, oracle, orders)
//	venue/ws.go         — account WebSocket feed (oracle prices, fills) with auto-reconnect
//	pricing/engine.go   — BET market filter + implied YES/NO probability derivation
//	trading/engine.go   — position P&L scan + notional→native order sizing
//	ledger/store.go     — offline paper-trading journal (sqlite)
//	api/server.go       — read-only stats HTTP server
//
// How a bet works:
//
//	A bet is a directional perp order on a market whose price is an implied
//	probability in [0, 1]. YES buys (long) at the ask, NO sells (short) at the
//	bid. A $10 YES bet at oracle price 0.40 sizes to 25 contracts; if the
//	market resolves YES each contract settles at $1.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"driftbet/internal/api"
	"driftbet/internal/config"
	"driftbet/internal/ledger"
	"driftbet/internal/pricing"
	"driftbet/internal/trading"
	"driftbet/internal/venue"
	"driftbet/pkg/types"
)

var (
	cfgPath string
	cfg     *config.Config
	logger  *slog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "driftbet",
		Short: "Client for on-chain BET prediction markets",
		Long: `driftbet lists BET prediction markets with implied probabilities, shows
open positions with unrealized P&L, places YES/NO bets, and keeps an
offline paper-trading journal.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default configs/config.yaml)")

	rootCmd.AddCommand(
		marketsCmd(),
		positionsCmd(),
		betCmd(),
		paperCmd(),
		serveCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads .env, config, and the logger before any command runs.
func setup(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	path := cfgPath
	if path == "" {
		path = "configs/config.yaml"
		if p := os.Getenv("BET_CONFIG"); p != "" {
			path = p
		}
	}

	var err error
	cfg, err = config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger = slog.New(handler)
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// connect establishes a venue session for a command's lifetime.
func connect(ctx context.Context) (*venue.Session, error) {
	session, err := venue.Connect(ctx, *cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}
	return session, nil
}

func marketsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "markets",
		Short: "List all BET prediction markets with implied probabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session, err := connect(ctx)
			if err != nil {
				return err
			}
			defer session.Close()

			listings, err := pricing.NewEngine(session, cfg.Markets, logger).ListPredictionMarkets(ctx)
			if err != nil {
				return err
			}
			printListings(listings)
			return nil
		},
	}
}

func positionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "positions",
		Short: "Show open BET positions and unrealized P&L",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session, err := connect(ctx)
			if err != nil {
				return err
			}
			defer session.Close()

			positions, err := trading.NewEngine(session, *cfg, logger).Positions(ctx)
			if err != nil {
				return err
			}
			printPositions(positions)
			return nil
		},
	}
}

func betCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bet <marketIndex> <YES|NO> <amountUSD> [limitPrice]",
		Short: "Place a bet on a prediction market",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			marketIndex, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("market index %q: %w", args[0], types.ErrInvalidRequest)
			}
			amount, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("amount %q: %w", args[2], types.ErrInvalidRequest)
			}
			req := types.BetRequest{
				MarketIndex: marketIndex,
				Direction:   types.Direction(strings.ToUpper(args[1])),
				Amount:      amount,
			}
			if len(args) == 4 {
				limit, err := strconv.ParseFloat(args[3], 64)
				if err != nil {
					return fmt.Errorf("limit price %q: %w", args[3], types.ErrInvalidRequest)
				}
				req.LimitPrice = &limit
			}

			ctx := cmd.Context()
			session, err := connect(ctx)
			if err != nil {
				return err
			}
			defer session.Close()

			txSig, err := trading.NewEngine(session, *cfg, logger).PlaceBet(ctx, req)
			if err != nil {
				return err
			}
			fmt.Printf("Bet placed. Tx: %s\n", txSig)
			return nil
		},
	}
}

func paperCmd() *cobra.Command {
	paper := &cobra.Command{
		Use:   "paper",
		Short: "Offline paper-trading journal (no real money)",
	}

	var (
		platform  string
		reasoning string
		expiresAt string
	)
	place := &cobra.Command{
		Use:   "place <market> <YES|NO> <amount> <odds>",
		Short: "Record a hypothetical wager",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("amount %q: %w", args[2], types.ErrInvalidRequest)
			}
			odds, err := strconv.ParseFloat(args[3], 64)
			if err != nil {
				return fmt.Errorf("odds %q: %w", args[3], types.ErrInvalidRequest)
			}

			return withLedger(func(store *ledger.Store) error {
				trade, err := store.PlaceTrade(cmd.Context(), ledger.NewTrade{
					Market:    args[0],
					Platform:  platform,
					Position:  types.Direction(strings.ToUpper(args[1])),
					Amount:    amount,
					Odds:      odds,
					Reasoning: reasoning,
					ExpiresAt: expiresAt,
				})
				if err != nil {
					return err
				}
				fmt.Printf("Trade #%d placed: %s %s, $%.2f at %.1f%%, potential payout $%.2f\n",
					trade.ID, trade.Position, trade.Market, trade.Amount,
					trade.Odds*100, trade.PotentialPayout)
				return nil
			})
		},
	}
	place.Flags().StringVar(&platform, "platform", "", "venue the real market trades on")
	place.Flags().StringVar(&reasoning, "reasoning", "", "why this trade")
	place.Flags().StringVar(&expiresAt, "expires", "", "when the market resolves")

	resolve := &cobra.Command{
		Use:   "resolve <id> <won|lost>",
		Short: "Settle a pending paper trade",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("trade id %q: %w", args[0], types.ErrInvalidRequest)
			}
			var won bool
			switch strings.ToLower(args[1]) {
			case "won", "win":
				won = true
			case "lost", "loss":
				won = false
			default:
				return fmt.Errorf("outcome %q must be won or lost: %w", args[1], types.ErrInvalidRequest)
			}

			return withLedger(func(store *ledger.Store) error {
				trade, err := store.ResolveTrade(cmd.Context(), id, won)
				if err != nil {
					return err
				}
				fmt.Printf("Trade #%d %s, P&L $%+.2f\n", trade.ID, trade.Status, trade.PnL)
				return nil
			})
		},
	}

	cancel := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Void a pending paper trade and refund the stake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("trade id %q: %w", args[0], types.ErrInvalidRequest)
			}
			return withLedger(func(store *ledger.Store) error {
				trade, err := store.CancelTrade(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Printf("Trade #%d cancelled, $%.2f refunded\n", trade.ID, trade.Amount)
				return nil
			})
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show the paper portfolio summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(func(store *ledger.Store) error {
				st, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("Balance:   $%.2f (started $%.2f)\n", st.CurrentBalance, st.StartingBalance)
				fmt.Printf("Trades:    %d (%d won, %d lost, %d pending)\n",
					st.TotalTrades, st.Wins, st.Losses, st.Pending)
				fmt.Printf("Total P&L: $%+.2f\n", st.TotalPnL)
				if st.Wins+st.Losses > 0 {
					fmt.Printf("Win rate:  %.1f%%\n", st.WinRate*100)
				}
				return nil
			})
		},
	}

	var historyLimit int
	history := &cobra.Command{
		Use:   "history",
		Short: "Show recent paper trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(func(store *ledger.Store) error {
				trades, err := store.History(cmd.Context(), historyLimit)
				if err != nil {
					return err
				}
				for _, t := range trades {
					fmt.Printf("#%-4d %-9s %-3s $%8.2f @ %.2f  %s\n",
						t.ID, t.Status, t.Position, t.Amount, t.Odds, t.Market)
				}
				return nil
			})
		},
	}
	history.Flags().IntVar(&historyLimit, "limit", 20, "max trades to show")

	paper.AddCommand(place, resolve, cancel, stats, history)
	return paper
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the read-only stats HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session, err := connect(ctx)
			if err != nil {
				return err
			}
			defer session.Close()

			store, err := ledger.Open(cfg.Ledger.Path, cfg.Ledger.StartingBalance)
			if err != nil {
				return err
			}
			defer store.Close()

			pricer := pricing.NewEngine(session, cfg.Markets, logger)
			trader := trading.NewEngine(session, *cfg, logger)
			server := api.NewServer(cfg.Stats, pricer, trader, store, logger)

			go func() {
				if err := server.Start(); err != nil {
					logger.Error("stats server failed", "error", err)
				}
			}()
			logger.Info("stats server started", "url", fmt.Sprintf("http://localhost:%d", cfg.Stats.Port))

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			sig := <-sigCh
			logger.Info("received shutdown signal", "signal", sig.String())

			return server.Stop()
		},
	}
}

// withLedger opens the journal, runs fn, and closes it.
func withLedger(fn func(*ledger.Store) error) error {
	store, err := ledger.Open(cfg.Ledger.Path, cfg.Ledger.StartingBalance)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func printListings(listings []pricing.Listing) {
	if len(listings) == 0 {
		fmt.Println("No BET markets found.")
		return
	}

	for _, l := range listings {
		status := "live"
		if !l.Available {
			status = "n/a "
		}
		fmt.Printf("[%d] %s (%s)\n", l.Market.MarketIndex, l.Market.FullName, status)
		fmt.Printf("    Symbol: %s\n", l.Market.Symbol)
		if l.Available {
			fmt.Printf("    YES: $%.4f (%.1f%% implied)   NO: $%.4f\n",
				l.Quote.YesPrice, l.Quote.YesPrice*100, l.Quote.NoPrice)
			fmt.Printf("    Bid: $%.4f   Ask: $%.4f\n", l.Quote.BestBid, l.Quote.BestAsk)
		} else {
			fmt.Println("    YES: n/a   NO: n/a")
		}
		if len(l.Market.Category) > 0 {
			fmt.Printf("    Categories: %s\n", strings.Join(l.Market.Category, ", "))
		}
		fmt.Println()
	}
	fmt.Printf("Total BET markets: %d\n", len(listings))
}

func printPositions(positions []types.Position) {
	if len(positions) == 0 {
		fmt.Println("No open BET positions.")
		return
	}

	var totalPnL float64
	for _, p := range positions {
		fmt.Printf("[%d] %s\n", p.MarketIndex, p.Symbol)
		fmt.Printf("    Direction: %s\n", p.Direction)
		fmt.Printf("    Size: %.4f   Entry: $%.2f\n", abs(p.BaseAssetAmount), abs(p.QuoteEntryAmount))
		fmt.Printf("    Unrealized P&L: $%+.2f\n\n", p.UnrealizedPnL)
		totalPnL += p.UnrealizedPnL
	}
	fmt.Printf("Total unrealized P&L: $%+.2f\n", totalPnL)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
