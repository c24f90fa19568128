package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roamingroutes/undercover-backend/internal/config"
	"github.com/roamingroutes/undercover-backend/internal/httpapi"
	"github.com/roamingroutes/undercover-backend/internal/hub"
	"github.com/roamingroutes/undercover-backend/internal/observability"
	"github.com/roamingroutes/undercover-backend/internal/registry"
	"github.com/roamingroutes/undercover-backend/internal/words"
	"github.com/roamingroutes/undercover-backend/internal/ws"
)

func main() {
	configPath := flag.String("config", os.Getenv("UNDERCOVER_CONFIG"), "path to config file (optional)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	catalog := words.Load(cfg.Words.Path, logger)
	broadcast := hub.New(logger)
	games := registry.New(cfg.Game.Rules(), broadcast, cfg.Game.RoomTTL, cfg.Game.ReapInterval, logger)

	gateway := ws.NewGateway(games, broadcast, catalog, logger)
	api := httpapi.New(games, broadcast, catalog, logger)
	handler := httpapi.SetupRoutes(api, gateway.Handler())

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: handler,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		games.Start(ctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr))
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

	if err := g.Wait(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("shut down cleanly")
}
