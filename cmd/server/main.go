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
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/koopa0/system-design/restaurant-catalog/internal/archive"
	"github.com/koopa0/system-design/restaurant-catalog/internal/catalog"
	"github.com/koopa0/system-design/restaurant-catalog/internal/config"
	"github.com/koopa0/system-design/restaurant-catalog/internal/events"
	"github.com/koopa0/system-design/restaurant-catalog/internal/handler"
	"github.com/koopa0/system-design/restaurant-catalog/internal/keys"
	"github.com/koopa0/system-design/restaurant-catalog/internal/store"
	"github.com/koopa0/system-design/restaurant-catalog/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, false)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx := context.Background()
	drain := newDrainer(log)

	// 連接 Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	defer redisClient.Close()

	st := store.NewRedis(redisClient, log)
	if err := st.Ping(ctx); err != nil {
		return fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
	}

	var listeners []catalog.Listener

	// 評論歸檔（可選）
	var archiver *archive.Archiver
	if cfg.Postgres.Enabled {
		pool, err := openPostgres(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer pool.Close()

		archiver = archive.New(archive.NewPostgresSink(pool), archive.Options{
			BatchSize:     cfg.Archive.BatchSize,
			FlushInterval: cfg.Archive.FlushInterval,
		}, log)
		listeners = append(listeners, archiver)
		drain.add("archive", archiver.Shutdown)
	}

	// 之後的每一個出口都經過這裡；必須在 pool.Close 之前排空歸檔
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		drain.run(drainCtx)
		log.Info("shutdown complete")
	}()

	// 事件發布（可選）
	var publisher *events.Publisher
	if cfg.NATS.Enabled {
		publisher, err = events.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix, log)
		if err != nil {
			return err
		}
		listeners = append(listeners, publisher)
		drain.add("nats", func(context.Context) error { return publisher.Close() })
	}

	namer := keys.New(cfg.Catalog.KeyPrefix)
	opts := []catalog.Option{
		catalog.WithLogger(log),
		catalog.WithListeners(listeners...),
		catalog.WithSerializedReviews(cfg.Catalog.SerializeReviews),
	}
	repo := catalog.NewRepository(st, namer, opts...)
	agg := catalog.NewAggregator(st, namer, opts...)

	h := handler.New(repo, agg, st, handler.Limits{
		DefaultPageSize: cfg.Catalog.DefaultPageSize,
		MaxPageSize:     cfg.Catalog.MaxPageSize,
		MinRating:       cfg.Catalog.MinRating,
		MaxRating:       cfg.Catalog.MaxRating,
		RequestTimeout:  cfg.Server.RequestTimeout,
	}, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	// 先停止接收請求，再排空事件與歸檔
	drain.add("http", func(ctx context.Context) error {
		if err := srv.Shutdown(ctx); err != nil {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("failed to force close server", "error", closeErr)
			}
			return err
		}
		return nil
	})

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("starting server",
			"port", cfg.Server.Port,
			"key_prefix", namer.Prefix(),
			"archive", cfg.Postgres.Enabled,
			"events", cfg.NATS.Enabled)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig)
	}
	return nil
}

// openPostgres 套用遷移後建立連線池
func openPostgres(ctx context.Context, cfg *config.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	dsn := cfg.PostgresDSN()

	if err := archive.Migrate(dsn, log); err != nil {
		return nil, fmt.Errorf("migrate archive schema: %w", err)
	}

	pgConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pgConfig.MaxConns = cfg.Postgres.MaxConns
	pgConfig.MinConns = cfg.Postgres.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, pgConfig)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}
