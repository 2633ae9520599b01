// Package layoutviewer turns uploaded page images into reviewable layout
// results.
//
// Images go through a remote layout backend one at a time, in upload order.
// Each finished image can be shown with its detected regions drawn on top,
// converted to a Markdown document and exported as an archive holding the
// raw result, the document and the cropped pictures.
//
// Basic usage:
//
//	viewer, err := layoutviewer.New(layoutviewer.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	session := viewer.NewSession()
//	defer session.Close()
//
//	session.Enqueue(ctx, client.Upload{Name: "page_1.png", Data: data})
//
//	snapshot, _ := session.WaitIdle(ctx)
//
//	for _, r := range snapshot.Records {
//		fmt.Println(viewer.Markdown(r))
//	}
//
// The package consists of these components:
//
//  1. Queue (pkg/queue): single-flight FIFO coordinator with versioned snapshots
//  2. Markdown (pkg/markdown): reading-order document synthesis, HTML preview, page merge
//  3. Render (pkg/render): box geometry, zoom/pan viewport and annotated rendering
//  4. Export (pkg/export): json + md + picture crops packed into a zip
//  5. Backends (pkg/layoutapi, pkg/ollama, pkg/llamacpp) behind pkg/client.LayoutClient
package layoutviewer

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/menta2k/layout-viewer/internal/config"
	"github.com/menta2k/layout-viewer/pkg/client"
	"github.com/menta2k/layout-viewer/pkg/detection"
	"github.com/menta2k/layout-viewer/pkg/export"
	"github.com/menta2k/layout-viewer/pkg/layoutapi"
	"github.com/menta2k/layout-viewer/pkg/limiter"
	"github.com/menta2k/layout-viewer/pkg/llamacpp"
	"github.com/menta2k/layout-viewer/pkg/markdown"
	"github.com/menta2k/layout-viewer/pkg/ollama"
	"github.com/menta2k/layout-viewer/pkg/otel"
	"github.com/menta2k/layout-viewer/pkg/processing"
	"github.com/menta2k/layout-viewer/pkg/queue"
	"github.com/menta2k/layout-viewer/pkg/render"
	"github.com/menta2k/layout-viewer/pkg/types"
)

// Version of the layout viewer library
const Version = "1.0.0"

// Config is the application configuration
type Config = config.Config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return config.Default()
}

// SetupTelemetry configures logging and, when enabled in cfg, the OTLP
// exporters for the named service
func SetupTelemetry(ctx context.Context, cfg *Config, service string) (otel.Shutdown, error) {
	if cfg.Telemetry.ServiceName != "" {
		service = cfg.Telemetry.ServiceName
	}

	return otel.Setup(ctx, otel.Options{
		ServiceName:    service,
		ServiceVersion: Version,

		Debug:     cfg.Telemetry.Debug,
		Telemetry: cfg.Telemetry.Enabled,

		Protocol:       cfg.Telemetry.Protocol,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		MetricInterval: time.Duration(cfg.Telemetry.MetricInterval),
	})
}

// NewClient builds the layout client described by cfg: the selected backend,
// rate limited and instrumented, behind upload validation.
func NewClient(cfg *Config) (client.LayoutClient, error) {
	httpClient := &http.Client{
		Timeout: time.Duration(cfg.Remote.Timeout),
	}

	var c client.LayoutClient
	var err error

	model := cfg.Remote.Model

	switch cfg.Remote.Backend {
	case config.BackendHTTP, "":
		options := []layoutapi.Option{
			layoutapi.WithClient(httpClient),
		}

		if cfg.Remote.Token != "" {
			options = append(options, layoutapi.WithToken(cfg.Remote.Token))
		}

		c, err = layoutapi.New(cfg.Remote.URL, options...)

	case config.BackendOllama:
		if model == "" {
			model = ollama.DefaultModel
		}

		c, err = ollama.NewClient(cfg.Remote.URL, model, ollama.WithHTTPClient(httpClient))

	case config.BackendLlamaCpp:
		c, err = llamacpp.NewClient(cfg.Remote.URL, model, llamacpp.WithHTTPClient(httpClient))

	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Remote.Backend)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Remote.Backend, err)
	}

	if cfg.Remote.RateLimit > 0 {
		c = limiter.New(limiter.PerMinute(cfg.Remote.RateLimit), c)
	}

	c = otel.NewLayoutClient(cfg.Remote.Backend, model, c)

	return detection.NewDetectorWithConfig(c, detection.Config{
		MaxFileSize:      cfg.MaxFileSize(),
		SupportedFormats: cfg.Upload.SupportedFormats,
	}), nil
}

// Viewer ties a layout client to the record views: Markdown, annotated
// image, HTML preview and archive export.
type Viewer struct {
	config *Config
	client client.LayoutClient
	logger *slog.Logger

	processor *processing.Processor
	renderer  *render.Renderer
	exporter  *export.Exporter
}

// New creates a viewer with the backend selected by cfg
func New(cfg *Config) (*Viewer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	return NewWithClient(cfg, c), nil
}

// NewWithClient creates a viewer around an existing layout client
func NewWithClient(cfg *Config, c client.LayoutClient) *Viewer {
	return &Viewer{
		config: cfg,
		client: c,
		logger: slog.Default(),

		processor: processing.NewProcessor(),
		renderer:  render.NewRenderer(),
		exporter:  export.New(),
	}
}

// Client returns the layout client of the viewer
func (v *Viewer) Client() client.LayoutClient {
	return v.client
}

// NewSession starts an upload queue submitting to the viewer's client
func (v *Viewer) NewSession(options ...queue.Option) *queue.Coordinator {
	options = append([]queue.Option{queue.WithLogger(v.logger)}, options...)
	return queue.New(v.client, options...)
}

// Markdown returns the document synthesized from the record's result
func (v *Viewer) Markdown(r types.Record) string {
	return markdown.Synthesize(r.Result)
}

// RenderOptions returns render options with the configured size and zoom bounds
func (v *Viewer) RenderOptions() render.Options {
	opts := render.DefaultOptions()

	opts.Width = v.config.Render.Width
	opts.Height = v.config.Render.Height

	opts.MaxWidth = v.config.Render.MaxWidth
	opts.MaxHeight = v.config.Render.MaxHeight

	opts.Viewport.MinScale = v.config.Render.MinScale
	opts.Viewport.MaxScale = v.config.Render.MaxScale

	return opts
}

// Annotate draws the record's image with its regions. Records without a
// result are drawn without boxes.
func (v *Viewer) Annotate(r types.Record, opts render.Options) (*image.NRGBA, error) {
	img, _, err := v.processor.DecodeImage(r.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", r.Name, err)
	}

	var regions []types.Region
	if r.Result != nil {
		regions = r.Result.Objects
	}

	return v.renderer.Render(img, regions, opts), nil
}

// Encode writes img in format with the configured quality
func (v *Viewer) Encode(w io.Writer, img image.Image, format string) error {
	if format == "" {
		format = v.config.Render.Format
	}

	return v.processor.Encode(w, img, format, v.config.Render.Quality, false)
}

// Export builds the archive of a done record
func (v *Viewer) Export(r types.Record) (*export.Bundle, error) {
	return v.exporter.Export(r)
}

// Preview renders the record's document to HTML with the picture crops
// inlined as data URIs
func (v *Viewer) Preview(r types.Record) (string, error) {
	crops, err := v.exporter.Pictures(r)
	if err != nil {
		return "", err
	}

	uris := make(map[string]string, len(crops))
	for _, c := range crops {
		uris[c.Name()] = "data:image/png;base64," + base64.StdEncoding.EncodeToString(c.PNG)
	}

	return markdown.RenderHTML(v.Markdown(r), func(name string) (string, bool) {
		uri, ok := uris[name]
		return uri, ok
	})
}
