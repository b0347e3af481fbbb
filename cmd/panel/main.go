package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"media-translator/internal/api"
	"media-translator/internal/auth"
	"media-translator/internal/bootstrap"
	"media-translator/internal/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
	printToken := flag.Bool("print-token", false, "print an operator token for the control API and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	var issuer *auth.Issuer
	if cfg.PanelJWTSecret != "" {
		issuer, err = auth.NewIssuer(cfg.PanelJWTSecret, "media-translator", "operator", 12*time.Hour)
		if err != nil {
			log.Fatalf("build panel token issuer: %v", err)
		}
	}
	if *printToken {
		if issuer == nil {
			log.Fatalf("PANEL_JWT_SECRET is not set")
		}
		token, err := issuer.Sign("operator", "panel")
		if err != nil {
			log.Fatalf("sign token: %v", err)
		}
		fmt.Println(token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}

	if cfg.LogLevel > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr: cfg.PanelAddr,
		Handler: api.NewRouter(api.Options{
			Controller: app,
			Issuer:     issuer,
			Metrics:    app.Metrics,
			Logger:     logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("control api listening", "addr", cfg.PanelAddr, "auth", issuer != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("control api stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("control api shutdown", "error", err)
	}
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Warn("app shutdown", "error", err)
	}
}
