package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/floroz/gavel-live/internal/adapters/database"
	"github.com/floroz/gavel-live/internal/auction"
	"github.com/floroz/gavel-live/internal/config"
	pkgdb "github.com/floroz/gavel-live/pkg/database"
)

type noopAnnouncer struct{}

func (noopAnnouncer) Announce(context.Context, auction.BidSummary) {}

type options struct {
	bidders       int
	title         string
	startingPrice int64
	duration      time.Duration
	force         bool
}

func main() {
	var opts options
	flag.IntVar(&opts.bidders, "bidders", 100, "number of demo bidders to create")
	flag.StringVar(&opts.title, "title", "Demo lot", "title of the demo lot")
	flag.Int64Var(&opts.startingPrice, "starting-price", 10000, "starting price in cents")
	flag.DurationVar(&opts.duration, "duration", 24*time.Hour, "how long the demo lot stays open")
	flag.BoolVar(&opts.force, "force", false, "seed even if bidders already exist")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Error("Seeding failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *slog.Logger) error {
	if cfg.Store.DBURL == "" {
		return errors.New("GAVEL_DB_URL is not set")
	}

	pool, err := pkgdb.Connect(ctx, cfg.Store.DBURL, cfg.Store.MaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.Store.LockTimeout)
	store := database.NewStore(pool, txManager)
	svc := auction.NewAuctionService(store, noopAnnouncer{}, logger)

	existing, err := store.CountBidders(ctx)
	if err != nil {
		return err
	}
	if existing > 0 && !opts.force {
		logger.Info("Bidders already seeded, skipping", "count", existing)
		return nil
	}

	for i := 1; i <= opts.bidders; i++ {
		bidder, err := svc.RegisterBidder(ctx, fmt.Sprintf("user%d", existing+i))
		if err != nil {
			return fmt.Errorf("failed to seed bidder %d: %w", i, err)
		}
		if i == 1 {
			logger.Info("First bidder", "bidder_id", bidder.ID)
		}
	}
	logger.Info("Bidders seeded", "count", opts.bidders)

	lot, err := svc.CreateLot(ctx, auction.CreateLotCommand{
		Title:         opts.title,
		Description:   "Seeded for local testing",
		StartingPrice: opts.startingPrice,
		EndAt:         time.Now().Add(opts.duration),
	})
	if err != nil {
		return fmt.Errorf("failed to seed lot: %w", err)
	}
	logger.Info("Lot seeded", "lot_id", lot.ID, "ends_at", lot.EndAt)
	return nil
}
