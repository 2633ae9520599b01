package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	layoutviewer "github.com/menta2k/layout-viewer"
	"github.com/menta2k/layout-viewer/internal/batch"
	"github.com/menta2k/layout-viewer/internal/config"
	"github.com/menta2k/layout-viewer/pkg/otel"
)

func main() {
	var in, outDir, pages, merge, configPath string
	var backend, api, model string
	var retries int
	var annotate bool
	var format string

	flag.StringVar(&in, "in", "", "input directory, image file or URL (comma separated; extra arguments are inputs too)")
	flag.StringVar(&outDir, "out", "", "output directory (defaults to config output.dir)")
	flag.StringVar(&pages, "pages", "", "pages to process: 2 | 1,2,3 | ,8 (first eight) | 3, (third to last)")
	flag.IntVar(&retries, "retries", 2, "extra rounds for failed images")
	flag.StringVar(&merge, "merge", "", "write all pages into one markdown file")

	flag.StringVar(&backend, "backend", "", "layout backend: http|ollama|llamacpp")
	flag.StringVar(&api, "api", "", "layout service URL")
	flag.StringVar(&model, "model", "", "model name for ollama/llamacpp")
	flag.StringVar(&configPath, "config", "", "config file (json or yaml)")

	flag.BoolVar(&annotate, "annotate", false, "write an annotated image per page")
	flag.StringVar(&format, "format", "", "annotated image format: png|jpg|webp")

	flag.Parse()

	var inputs []string

	for _, v := range strings.Split(in, ",") {
		if v = strings.TrimSpace(v); v != "" {
			inputs = append(inputs, v)
		}
	}

	inputs = append(inputs, flag.Args()...)

	if len(inputs) == 0 {
		log.Fatalf("usage: %s -in dir|image|URL [-out dir] [-pages 1,2,3] [-retries 2] [-merge out.md] [-backend http|ollama|llamacpp] [-api URL] [-model M] [-config file]", filepath.Base(os.Args[0]))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := config.Default()

	if configPath != "" {
		var err error

		if cfg, err = config.LoadFromFile(configPath); err != nil {
			log.Fatal(err)
		}
	}

	cfg.ApplyEnv()

	if backend != "" {
		cfg.Remote.Backend = backend
	}

	if api != "" {
		cfg.Remote.URL = api
	}

	if model != "" {
		cfg.Remote.Model = model
	}

	shutdown, err := layoutviewer.SetupTelemetry(ctx, cfg, "layout-batch")
	if err != nil {
		log.Fatal(err)
	}

	defer flush(shutdown)

	if outDir == "" {
		outDir = cfg.Output.Dir
	}

	if format == "" {
		format = cfg.Render.Format
	}

	viewer, err := layoutviewer.New(cfg)
	if err != nil {
		log.Fatal(err)
	}

	report, err := batch.New(viewer).Run(ctx, batch.Options{
		Inputs:  inputs,
		OutDir:  outDir,
		Pages:   pages,
		Retries: retries,

		Merge:    merge,
		MediaDir: cfg.Output.MediaDir,

		Annotate: annotate,
		Format:   format,
		Quality:  cfg.Render.Quality,
	})

	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("processed %d pages, %d failed\n", len(report.Done), len(report.Failed))

	for _, name := range report.Failed {
		fmt.Printf("  failed: %s\n", name)
	}

	if report.Merged != "" {
		fmt.Printf("merged document: %s\n", report.Merged)
	}

	if len(report.Failed) > 0 {
		flush(shutdown)
		os.Exit(1)
	}
}

func flush(shutdown otel.Shutdown) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdown(ctx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
}
