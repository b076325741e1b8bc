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

	"coldchain-monitor/pipeline/internal/auth"
	"coldchain-monitor/pipeline/internal/config"
	"coldchain-monitor/pipeline/internal/queue"
	"coldchain-monitor/pipeline/internal/store"
	transporthttp "coldchain-monitor/pipeline/internal/transport/http"
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

	intake, err := queue.NewStream(
		ctx,
		redisStore.Client(),
		cfg.IntakeStream,
		cfg.ConsumerGroup,
		cfg.ConsumerName,
		time.Duration(cfg.VisibilitySeconds)*time.Second,
		time.Duration(cfg.RetentionHours)*time.Hour,
	)
	if err != nil {
		logger.Fatal("intake stream init failed", zap.Error(err))
	}

	authenticator := auth.NewAuthenticator(cfg, redisStore)
	handler := transporthttp.NewHandler(intake, logger)
	router := transporthttp.NewRouter(handler, transporthttp.NewAuthMiddleware(authenticator))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("gateway listening", zap.String("port", cfg.HTTPPort))
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
		logger.Fatal("gateway exited", zap.Error(err))
	}
	logger.Info("gateway stopped")
}
