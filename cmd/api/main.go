package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vrptw/internal/api"
	"vrptw/internal/buildinfo"
	"vrptw/internal/config"
	"vrptw/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	log, _ := logging.New(cfg.Log, "api")
	slog.SetDefault(log)

	srvDeps, err := api.NewServer(cfg, log)
	if err != nil {
		log.Error("failed to init server", "err", err)
		os.Exit(1)
	}

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           srvDeps.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Start webhook worker
	worker := srvDeps.NewWebhookWorker()
	worker.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			log.Error("http shutdown", "err", err)
		}
		if err := srvDeps.Runner.Shutdown(shutdown); err != nil {
			log.Error("runner shutdown", "err", err)
		}
		close(worker.Stop)
	}()

	log.Info("API listening", "addr", addr, "build", buildinfo.Info())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "err", err)
		os.Exit(1)
	}
	<-stopped
}
