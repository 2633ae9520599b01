package otel

import (
	"context"
	"time"

	"github.com/menta2k/layout-viewer/pkg/client"
	"github.com/menta2k/layout-viewer/pkg/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

type LayoutClient interface {
	Observable
	client.LayoutClient
}

type observableLayoutClient struct {
	model    string
	provider string

	client client.LayoutClient

	durationMetric metric.Float64Histogram
	regionsMetric  metric.Int64Counter
}

func NewLayoutClient(provider, model string, p client.LayoutClient) LayoutClient {
	meter := otel.Meter(instrumentationName)

	durationMetric, _ := meter.Float64Histogram("layout.client.duration",
		metric.WithDescription("Duration of layout detection calls"),
		metric.WithUnit("s"),
	)

	regionsMetric, _ := meter.Int64Counter("layout.client.regions",
		metric.WithDescription("Number of detected layout regions"),
	)

	return &observableLayoutClient{
		client: p,

		model:    model,
		provider: provider,

		durationMetric: durationMetric,
		regionsMetric:  regionsMetric,
	}
}

func (p *observableLayoutClient) otelSetup() {
}

func (p *observableLayoutClient) DetectLayout(ctx context.Context, upload client.Upload) (*types.Result, error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "layout "+p.provider)
	defer span.End()

	span.SetAttributes(
		String("layout.provider", p.provider),
		String("layout.model", p.model),
		String("layout.file", upload.Name),
		Int("layout.file.size", len(upload.Data)),
	)

	timestamp := time.Now()

	result, err := p.client.DetectLayout(ctx, upload)

	status := "ok"

	if err != nil {
		status = "error"

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	attrs := metric.WithAttributes(
		String("layout.provider", p.provider),
		String("layout.model", p.model),
		String("layout.status", status),
	)

	p.durationMetric.Record(ctx, time.Since(timestamp).Seconds(), attrs)

	if result != nil {
		span.SetAttributes(Int("layout.regions", len(result.Objects)))
		p.regionsMetric.Add(ctx, int64(len(result.Objects)), attrs)
	}

	return result, err
}
