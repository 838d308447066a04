package main

import (
	"context"
	"flag"
	"github.com/iamvkosarev/vedai/config"
	"github.com/iamvkosarev/vedai/internal/app"
	"github.com/iamvkosarev/vedai/internal/telemetry"
	"github.com/joho/godotenv"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	cfgPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to load .env: %v", err)
	}

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	_, logCloser, err := telemetry.InitLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		slog.Error("failed to init telemetry", "error", err)
		os.Exit(1)
	}
	defer shutdownTelemetry()

	if err = app.Run(ctx, cfg); err != nil {
		slog.Error("relay stopped", "error", err)
		os.Exit(1)
	}
}
