package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"report-simplifier/api/internal/app"
	"report-simplifier/api/internal/config"
	"report-simplifier/api/internal/handle"
	"report-simplifier/api/internal/httpserver"
	"report-simplifier/api/internal/logging"
)

func main() {
	log := logging.Must()
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load(log)
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("startup", zap.Error(err))
	}
	defer func() { _ = a.Close() }()

	h := handle.New(a.Simplifier, a.Resolver, log)

	mux := httpserver.NewMux("ok")
	mux.HandleFunc("/api/simplify-report", h.Simplify)

	addr := ":" + cfg.Port
	log.Info("medical report simplifier running", zap.String("url", "http://localhost"+addr))
	if err := httpserver.Run(ctx, addr, httpserver.WithRequestID(log, mux), log); err != nil {
		log.Error("server", zap.Error(err))
	}
}
