package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trogers1052/paper-trading-ledger/internal/api"
	"github.com/trogers1052/paper-trading-ledger/internal/cache"
	"github.com/trogers1052/paper-trading-ledger/internal/config"
	"github.com/trogers1052/paper-trading-ledger/internal/database"
	"github.com/trogers1052/paper-trading-ledger/internal/kafka"
	"github.com/trogers1052/paper-trading-ledger/internal/service"
)

// redisPinger adapts a Redis client to the health check interface
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("ledgerd exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]api.Pinger{}
	var opts []service.Option
	opts = append(opts, service.WithLogger(logger))

	// Storage
	var store service.Store
	switch cfg.Database.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory store, ledgers are lost on restart")
		store = service.NewMemoryStore()
	default:
		db, err := database.New(cfg.Database.ConnectionString())
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Migrate(cfg.Database.MigrationsDir); err != nil {
			return err
		}
		logger.Info("connected to database", "host", cfg.Database.Host, "name", cfg.Database.DBName)
		store = db
		checks["database"] = db
	}

	// Quote cache
	var quotes *cache.QuoteCache
	if cfg.Redis.Enabled() {
		client, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer client.Close()

		quotes = cache.NewQuoteCache(client, cfg.Redis.QuoteTTL)
		opts = append(opts, service.WithQuoteSource(quotes))
		checks["redis"] = redisPinger{client: client}
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	}

	// Event producer
	var producer *kafka.Producer
	if cfg.Kafka.Enabled() {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		defer producer.Close()
		opts = append(opts, service.WithPublisher(producer))
	}

	svc, err := service.New(store, cfg.Ledger.InitialCash, opts...)
	if err != nil {
		return err
	}

	// Quote consumer
	var wg sync.WaitGroup
	if cfg.Kafka.Enabled() {
		sinks := []kafka.QuoteSink{}
		if quotes != nil {
			sinks = append(sinks, kafka.QuoteSinkFunc(quotes.SetQuote))
		}
		sinks = append(sinks, svc)

		consumer := kafka.NewQuoteConsumer(cfg.Kafka.Brokers, cfg.Kafka.QuotesTopic, cfg.Kafka.GroupID, logger, sinks...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Start(ctx); err != nil {
				logger.Error("quote consumer stopped", "error", err)
			}
		}()
	}

	handler := api.NewHandler(svc, logger, checks)
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.SetupRoutes(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		stop()
		wg.Wait()
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	wg.Wait()

	logger.Info("server exited")
	return nil
}
