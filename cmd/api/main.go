package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/floroz/gavel-live/internal/adapters/api"
	"github.com/floroz/gavel-live/internal/adapters/broadcast"
	"github.com/floroz/gavel-live/internal/adapters/database"
	"github.com/floroz/gavel-live/internal/adapters/memory"
	"github.com/floroz/gavel-live/internal/adapters/websocket"
	"github.com/floroz/gavel-live/internal/auction"
	"github.com/floroz/gavel-live/internal/config"
	"github.com/floroz/gavel-live/internal/realtime"
	"github.com/floroz/gavel-live/migrations"
	pkgdb "github.com/floroz/gavel-live/pkg/database"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Bid API stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Bid API stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// 1. Store
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// 2. Realtime fanout, optionally shared across instances through Redis
	registry := realtime.NewRegistry()
	fanout := realtime.NewFanout(registry, logger)

	g, ctx := errgroup.WithContext(ctx)

	var announcer auction.Announcer = fanout
	if cfg.Redis.URL != "" {
		rdb, err := newRedisClient(cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis connection failed, announcing locally only", "error", err)
		} else {
			logger.Info("Redis Connected")
			bus := broadcast.NewRedisBus(rdb)
			announcer = broadcast.NewAnnouncer(bus, fanout, cfg.Redis.ChannelPrefix, logger)
			subscriber := broadcast.NewSubscriber(bus, fanout, cfg.Redis.ChannelPrefix, logger)
			g.Go(func() error {
				return subscriber.Run(ctx)
			})
		}
	}

	// 3. Domain service
	auctionService := auction.NewAuctionService(store, announcer, logger)

	// 4. Routes
	wsCfg := websocket.DefaultConfig()
	wsCfg.SendQueueSize = cfg.Websocket.ObserverBuffer
	wsCfg.WriteTimeout = cfg.Websocket.WriteTimeout
	wsCfg.AllowedOrigins = cfg.Websocket.AllowedOrigins

	path, rpcHandler := api.NewBidServiceHandler(auctionService, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Mount(path, rpcHandler)
	r.Handle("/ws", websocket.NewHandler(registry, auctionService, wsCfg, logger))
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// 5. Server; h2c serves connect's HTTP/2 clients without TLS
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h2c.NewHandler(r, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("Starting Bid API", "addr", cfg.HTTPAddr, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down Bid API...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (auction.Store, func(), error) {
	if cfg.Store.Driver == config.DriverMemory {
		logger.Warn("Using in-memory store; bids are lost on restart")
		return memory.NewStore(cfg.Store.LockTimeout), func() {}, nil
	}

	pool, err := pkgdb.Connect(ctx, cfg.Store.DBURL, cfg.Store.MaxConns)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Postgres Connected")

	if cfg.Store.MigrateOnStart {
		db := stdlib.OpenDB(*pool.Config().ConnConfig)
		err := migrations.Up(ctx, db)
		_ = db.Close()
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("Migrations applied")
	}

	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.Store.LockTimeout)
	return database.NewStore(pool, txManager), pool.Close, nil
}

func newRedisClient(url string) (*redis.Client, error) {
	if !strings.Contains(url, "://") {
		return redis.NewClient(&redis.Options{Addr: url}), nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}
