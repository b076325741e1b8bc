package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"coldchain-monitor/pipeline/internal/config"
	"coldchain-monitor/pipeline/internal/consumer"
	"coldchain-monitor/pipeline/internal/metrics"
	"coldchain-monitor/pipeline/internal/pipeline"
	"coldchain-monitor/pipeline/internal/queue"
	"coldchain-monitor/pipeline/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisStore, err := store.NewRedisStore(ctx, cfg)
	if err != nil {
		logger.Fatal("redis init failed", zap.Error(err))
	}
	defer redisStore.Close()

	pgStore, err := store.NewPGStore(ctx, cfg)
	if err != nil {
		logger.Fatal("postgres init failed", zap.Error(err))
	}
	defer pgStore.Close()

	visibility := time.Duration(cfg.VisibilitySeconds) * time.Second
	retention := time.Duration(cfg.RetentionHours) * time.Hour

	intake, err := queue.NewStream(ctx, redisStore.Client(),
		cfg.IntakeStream, cfg.ConsumerGroup, cfg.ConsumerName, visibility, retention)
	if err != nil {
		logger.Fatal("intake stream init failed", zap.Error(err))
	}

	outcome, err := queue.NewStream(ctx, redisStore.Client(),
		cfg.OutcomeStream, cfg.ConsumerGroup, cfg.ConsumerName, visibility, retention)
	if err != nil {
		logger.Fatal("outcome stream init failed", zap.Error(err))
	}

	evaluator := pipeline.NewEvaluator(redisStore, pgStore, outcome, cfg.Trend, logger)
	loop := consumer.New(
		intake,
		evaluator,
		cfg.MaxBatch,
		time.Duration(cfg.PollWaitSeconds)*time.Second,
		time.Duration(cfg.PollBackoffSeconds)*time.Second,
		logger,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", metrics.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("evaluator consuming",
			zap.String("stream", cfg.IntakeStream),
			zap.String("group", cfg.ConsumerGroup),
			zap.String("consumer", cfg.ConsumerName))
		return loop.Run(ctx)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("evaluator exited", zap.Error(err))
	}
	logger.Info("evaluator stopped")
}
