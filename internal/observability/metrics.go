// Package observability exposes the worker's OpenTelemetry instruments.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// MeterName identifies the worker's instruments.
const MeterName = "github.com/suPer8Hu/siteaudit"

// Metrics holds the worker's metric instruments.
type Metrics struct {
	jobOutcomes        metric.Int64Counter
	jobDuration        metric.Float64Histogram
	enrichmentFailures metric.Int64Counter
	screenshotFailures metric.Int64Counter
	creditFailures     metric.Int64Counter
	reapedJobs         metric.Int64Counter
}

// NewMetrics creates the instruments on mp. Instrument creation only fails on
// invalid names; a failed instrument falls back to a noop one.
func NewMetrics(mp metric.MeterProvider) *Metrics {
	meter := mp.Meter(MeterName)
	fallback := noop.NewMeterProvider().Meter(MeterName)
	m := &Metrics{}

	var err error
	m.jobOutcomes, err = meter.Int64Counter(
		"siteaudit.job.outcomes",
		metric.WithDescription("Analysis jobs finished, by outcome and model"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		m.jobOutcomes, _ = fallback.Int64Counter("siteaudit.job.outcomes")
	}

	m.jobDuration, err = meter.Float64Histogram(
		"siteaudit.job.duration",
		metric.WithDescription("Wall time of one analysis job in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		m.jobDuration, _ = fallback.Float64Histogram("siteaudit.job.duration")
	}

	m.enrichmentFailures, err = meter.Int64Counter(
		"siteaudit.enrichment.failures",
		metric.WithDescription("Optional enrichment fetches that failed and were skipped"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		m.enrichmentFailures, _ = fallback.Int64Counter("siteaudit.enrichment.failures")
	}

	m.screenshotFailures, err = meter.Int64Counter(
		"siteaudit.screenshot.upload.failures",
		metric.WithDescription("Screenshot uploads that failed"),
		metric.WithUnit("{upload}"),
	)
	if err != nil {
		m.screenshotFailures, _ = fallback.Int64Counter("siteaudit.screenshot.upload.failures")
	}

	m.creditFailures, err = meter.Int64Counter(
		"siteaudit.credit.failures",
		metric.WithDescription("Credit ledger updates that failed after a completed job"),
		metric.WithUnit("{update}"),
	)
	if err != nil {
		m.creditFailures, _ = fallback.Int64Counter("siteaudit.credit.failures")
	}

	m.reapedJobs, err = meter.Int64Counter(
		"siteaudit.job.reaped",
		metric.WithDescription("Jobs failed by the stale-job reaper"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		m.reapedJobs, _ = fallback.Int64Counter("siteaudit.job.reaped")
	}

	return m
}

// NewNoopMetrics returns instruments that record nothing.
func NewNoopMetrics() *Metrics {
	return NewMetrics(noop.NewMeterProvider())
}

func (m *Metrics) RecordJob(ctx context.Context, model, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("outcome", outcome),
	)
	m.jobOutcomes.Add(ctx, 1, attrs)
	m.jobDuration.Record(ctx, float64(d.Milliseconds()), attrs)
}

func (m *Metrics) RecordEnrichmentFailure(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.enrichmentFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (m *Metrics) RecordScreenshotFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.screenshotFailures.Add(ctx, 1)
}

func (m *Metrics) RecordCreditFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.creditFailures.Add(ctx, 1)
}

func (m *Metrics) RecordReaped(ctx context.Context, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.reapedJobs.Add(ctx, n)
}
