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
	"mines_client/internal/devserver"
	"mines_client/internal/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.LoadServer()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gin.SetMode(gin.ReleaseMode)
	svc := devserver.NewService(cfg.DevStartBalance)
	server := devserver.NewServer(svc, auth.NewSigner(cfg.JWTSecret))

	srv := &http.Server{
		Addr:              cfg.DevAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dev server started", "addr", cfg.DevAddr, "start_balance", cfg.DevStartBalance)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down dev server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", "error", err)
	}
	logger.Info("dev server exited")
}
