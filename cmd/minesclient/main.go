package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"mines_client/internal/auth"
	"mines_client/internal/config"
	"mines_client/internal/controller"
	"mines_client/internal/db"
	httpServer "mines_client/internal/http"
	"mines_client/internal/http/handlers"
	"mines_client/internal/http/middleware"
	"mines_client/internal/logger"
	"mines_client/internal/repository"
	"mines_client/internal/ws"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	userID, err := auth.Identity(cfg.AuthToken, cfg.JWTSecret)
	if err != nil {
		logger.Fatal("cannot read identity from AUTH_TOKEN", "error", err)
	}
	logger.Info("starting mines client", "version", version, "user_id", userID, "server", cfg.ServerURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]handlers.Check{}

	var rounds repository.RoundStore
	switch {
	case cfg.DatabaseURL != "":
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database unavailable", "error", err)
		}
		defer pool.Close()
		rounds = repository.NewPGRoundRepository(pool)
		checks["database"] = func(ctx context.Context) error { return pool.Ping(ctx) }
	case cfg.HistorySQLitePath != "":
		store, err := repository.OpenSQLite(cfg.HistorySQLitePath)
		if err != nil {
			logger.Fatal("round history unavailable", "error", err)
		}
		defer store.Close()
		rounds = store
	default:
		logger.Warn("no round history configured; settled rounds are not kept")
	}

	var limiter middleware.Limiter = middleware.NewMemoryLimiter()
	if cfg.RedisAddr != "" {
		rl, err := middleware.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			// fall back to the in-process window
			logger.Warn("redis unavailable, using in-memory rate limiter", "error", err)
		} else {
			defer rl.Close()
			limiter = rl
		}
	}

	channel := ws.NewChannel(cfg.ServerURL, cfg.AuthToken)
	opts := controller.Options{
		UserID:       userID,
		GateTimeout:  cfg.GateTimeout,
		DegradeAfter: cfg.DegradeAfter,
		MinBet:       cfg.MinBet,
		MaxBet:       cfg.MaxBet,
		Presets:      cfg.Presets,
	}
	if rounds != nil {
		opts.Recorder = rounds
	}
	ctrl := controller.New(channel, opts)
	checks["game_server"] = func(context.Context) error {
		if !channel.Connected() {
			return errors.New("not connected")
		}
		return nil
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	httpServer.RegisterRoutes(r,
		handlers.NewHandler(ctrl, rounds, cfg.Presets),
		handlers.NewHealthHandler(version, checks),
		httpServer.RouteConfig{
			UserID:     userID,
			Limiter:    limiter,
			RateLimit:  cfg.IntentRateLimit,
			RateWindow: cfg.IntentRateWindow,
		},
	)
	srv := &http.Server{
		Addr:              cfg.StatusAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Run(gctx) })
	g.Go(func() error { return channel.Run(gctx, ctrl) })
	g.Go(func() error {
		logger.Info("control surface listening", "addr", cfg.StatusAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("client stopped", "error", err)
	}
	logger.Info("client exited")
}
