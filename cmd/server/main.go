package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/studyforge/battle-backend/internal/config"
	"github.com/studyforge/battle-backend/internal/httpapi"
	"github.com/studyforge/battle-backend/internal/judge"
	"github.com/studyforge/battle-backend/internal/registry"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var gateway judge.Gateway = judge.Static{}
	if cfg.JudgeURL != "" {
		gateway = judge.NewHTTP(cfg.JudgeURL)
	}
	gateway = &judge.Retrying{
		Inner:    gateway,
		Attempts: cfg.JudgeRetries,
		Backoff:  cfg.JudgeBackoff,
		Log:      logger.Named("judge"),
	}

	reg := registry.New(ctx, gateway, cfg.ChatLogCap, logger)

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.SweepSpec, func() {
		reg.Inbox() <- registry.Sweep{MaxIdle: cfg.IdleTimeout}
	}); err != nil {
		logger.Fatal("invalid sweep schedule", zap.String("spec", cfg.SweepSpec), zap.Error(err))
	}
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: httpapi.SetupRoutes(reg, logger),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
