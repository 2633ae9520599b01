package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	layoutviewer "github.com/menta2k/layout-viewer"
	"github.com/menta2k/layout-viewer/internal/config"
	"github.com/menta2k/layout-viewer/internal/server"
	"github.com/menta2k/layout-viewer/internal/utils"
	"github.com/menta2k/layout-viewer/pkg/otel"
)

func main() {
	var configPath, addr, backend, api, model string

	flag.StringVar(&configPath, "config", "", "config file (json or yaml), defaults to "+config.GetConfigPath()+" when present")
	flag.StringVar(&addr, "addr", "", "listen address (overrides config)")
	flag.StringVar(&backend, "backend", "", "layout backend: http|ollama|llamacpp")
	flag.StringVar(&api, "api", "", "layout service URL")
	flag.StringVar(&model, "model", "", "model name for ollama/llamacpp")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	cfg.ApplyEnv()

	if addr != "" {
		cfg.Server.Addr = addr
	}

	if backend != "" {
		cfg.Remote.Backend = backend
	}

	if api != "" {
		cfg.Remote.URL = api
	}

	if model != "" {
		cfg.Remote.Model = model
	}

	shutdown, err := layoutviewer.SetupTelemetry(ctx, cfg, "layout-viewer")
	if err != nil {
		log.Fatal(err)
	}

	defer flush(shutdown)

	viewer, err := layoutviewer.New(cfg)
	if err != nil {
		log.Fatal(err)
	}

	slog.Info("layout backend", "backend", cfg.Remote.Backend, "url", cfg.Remote.URL, "model", cfg.Remote.Model)

	if err := server.New(cfg, viewer).ListenAndServe(ctx); err != nil {
		slog.Error("server stopped", "error", err)
	}
}

func flush(shutdown otel.Shutdown) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdown(ctx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if !utils.FileExists(config.GetConfigPath()) {
			return config.Default(), nil
		}

		path = config.GetConfigPath()
	}

	return config.LoadFromFile(path)
}
