package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lcalzada-xor/mlmed/internal/app"
	"github.com/lcalzada-xor/mlmed/internal/config"
	"github.com/lcalzada-xor/mlmed/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	if cfg.Trace {
		shutdownTracer, err := telemetry.InitTracer()
		if err != nil {
			slog.Error("failed to init tracer", "error", err)
		} else {
			defer func() {
				if err := shutdownTracer(context.Background()); err != nil {
					slog.Error("failed to shutdown tracer", "error", err)
				}
			}()
		}
	}

	application, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("mlmed starting")

	if err := application.Run(ctx); err != nil {
		slog.Error("application error", "error", err)
		cancel()
		os.Exit(1)
	}
}
