package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/reindex"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docrank/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("docrank exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	slog.Info("starting docrank",
		"port", cfg.Server.Port,
		"k1", cfg.Ranking.K1,
		"b", cfg.Ranking.B,
		"workers", cfg.Ranking.Workers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		scrape := metrics.NewScrapeServer(cfg.Metrics.Port, nil)
		scrape.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			scrape.Shutdown(shutdownCtx)
		}()
	}

	engine, err := indexer.NewEngine(cfg.Ranking)
	if err != nil {
		return err
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		stats := engine.Stats()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("generation %d, %d documents, %d terms", stats.Generation, stats.Documents, stats.Terms),
		}
	})

	opts := reindex.Options{Metrics: m}

	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		opts.Source = corpus.NewPostgresSource(db, cfg.Corpus)
		checker.Register("postgres", health.PingCheck(db.Ping, true))
		slog.Info("corpus source enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			breaker := resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{
				FailureThreshold: 5,
				ResetTimeout:     30 * time.Second,
			})
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, breaker)
			opts.Cache = queryCache
			checker.Register("redis", health.PingCheck(redisClient.Ping, false))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var publisher analytics.Publisher
	if cfg.Kafka.Enabled {
		completeProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer completeProducer.Close()
		opts.Notifier = completeProducer

		eventsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer eventsProducer.Close()
		publisher = eventsProducer
	}

	aggregator := analytics.NewAggregator()
	collector := analytics.NewCollector(publisher, aggregator, analytics.CollectorConfig{})
	opts.Collector = collector

	reindexer := reindex.New(engine, reindex.Config{
		ReloadInterval: cfg.Corpus.ReloadInterval,
		LoadTimeout:    cfg.Corpus.LoadTimeout,
		Retry:          resilience.RetryConfig{MaxAttempts: cfg.Corpus.LoadAttempts},
	}, opts)

	var wg sync.WaitGroup
	collectorCtx, stopCollector := context.WithCancel(context.Background())
	collector.Start(collectorCtx)
	defer func() {
		stopCollector()
		collector.Close()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		reindexer.Run(ctx)
	}()

	if cfg.Kafka.Enabled {
		reindexConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ReindexRequests, consumer.HandleMessage(reindexer))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := reindexConsumer.Start(ctx); err != nil {
				slog.Error("reindex consumer error", "error", err)
			}
		}()
		slog.Info("reindex consumer started", "topic", cfg.Kafka.Topics.ReindexRequests)
	}

	h := handler.New(handler.Deps{
		Engine:    engine,
		Reindexer: reindexer,
		Cache:     queryCache,
		Collector: collector,
		Metrics:   m,
	}, cfg.Search)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analytics.StatsHandler(aggregator))
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.Logging,
			middleware.Metrics(m),
			middleware.Timeout(cfg.Server.WriteTimeout),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout + time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("docrank listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		stop()
		wg.Wait()
		return fmt.Errorf("http server: %w", err)
	}

	wg.Wait()
	slog.Info("docrank stopped")
	return nil
}
