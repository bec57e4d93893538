package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/opencirc/circulation/internal/adapter/handler"
	"github.com/opencirc/circulation/internal/adapter/notify"
	"github.com/opencirc/circulation/internal/adapter/storage"
	"github.com/opencirc/circulation/internal/core/service"
	"github.com/opencirc/circulation/internal/port"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	httpAddr := envOr("HTTP_ADDR", ":8080")
	mysqlDSN := envOr("MYSQL_DSN", "root:root@tcp(localhost:3306)/circulation?parseTime=true")
	redisAddr := envOr("REDIS_ADDR", "localhost:6379")
	sweepSchedule := envOr("SWEEP_SCHEDULE", "@hourly")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := sqlx.Open("mysql", mysqlDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open mysql")
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping mysql")
	}
	logger.Info().Msg("connected to mysql")

	store := storage.NewMySQLStore(db)
	if err := store.InitSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to init schema")
	}

	// The receipt dispatcher is best-effort; a missing Redis downgrades
	// it to a no-op instead of blocking startup.
	var notifier port.Notifier = notify.NopNotifier{}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, receipts disabled")
	} else {
		notifier = notify.NewRedisNotifier(rdb)
		logger.Info().Msg("connected to redis")
	}

	loanService := service.NewLoanService(store, store, store, notifier, logger)
	inventoryService := service.NewInventoryService(store, store, logger)
	fineService := service.NewFineService(store, store, notifier, logger)
	rateService := service.NewRateService(store)

	// Overdue is a derived state materialized by an explicit idempotent
	// sweep, never as a side effect of reads.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(sweepSchedule, func() {
		sweepCtx, sweepCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer sweepCancel()
		if _, err := loanService.SweepOverdue(sweepCtx, time.Now().UTC()); err != nil {
			logger.Error().Err(err).Msg("overdue sweep failed")
		}
	}); err != nil {
		logger.Fatal().Err(err).Str("schedule", sweepSchedule).Msg("invalid sweep schedule")
	}
	scheduler.Start()
	logger.Info().Str("schedule", sweepSchedule).Msg("overdue sweep scheduled")

	httpHandler := handler.NewHTTPHandler(loanService, inventoryService, fineService, rateService, logger)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", httpHandler.Routes())

	httpServer := &http.Server{
		Addr:    httpAddr,
		Handler: mux,
	}

	go func() {
		logger.Info().Str("addr", httpAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)

	<-scheduler.Stop().Done()

	rdb.Close()
	db.Close()
	logger.Info().Msg("stopped")
}
