// Package handler is the serverless entrypoint of the relay.
package handler

import (
	"github.com/iamvkosarev/vedai/config"
	"github.com/iamvkosarev/vedai/internal/app"
	"github.com/iamvkosarev/vedai/internal/telemetry"
	"log/slog"
	"net/http"
	"sync"
)

var (
	once         sync.Once
	relayHandler http.Handler
)

func Handler(w http.ResponseWriter, r *http.Request) {
	once.Do(
		func() {
			cfg, err := config.LoadConfig("")
			if err != nil {
				slog.Error("failed to load config", "error", err)
				cfg = &config.Config{Hosted: true}
			}
			if _, _, err = telemetry.InitLogger(cfg.Log); err != nil {
				slog.Error("failed to init logger", "error", err)
			}
			relayHandler = app.NewHandler(cfg)
		},
	)
	relayHandler.ServeHTTP(w, r)
}
