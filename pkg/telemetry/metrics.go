// Package telemetry provides OpenTelemetry integration for the application.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/draftforge/draftforge/pkg/logger"
)

const (
	// MeterName is the default meter name for the application
	MeterName = "github.com/draftforge/draftforge"
)

// Metrics holds all application metrics
type Metrics struct {
	// Generation metrics
	GenerationsTotal   metric.Int64Counter
	GenerationDuration metric.Float64Histogram
	ActiveJobs         metric.Int64UpDownCounter
	JobsByStatus       metric.Int64Counter

	// LLM metrics
	LLMRequestsTotal   metric.Int64Counter
	LLMRequestDuration metric.Float64Histogram
	LLMTokensTotal     metric.Int64Counter

	// Document metrics
	DocumentsParsedTotal metric.Int64Counter
	CommitsTotal         metric.Int64Counter

	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// GetMetrics returns the global metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		var err error
		globalMetrics, err = initMetrics()
		if err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			// Return empty metrics to avoid nil pointer
			globalMetrics = &Metrics{}
		}
	})
	return globalMetrics
}

// initMetrics initializes all application metrics
func initMetrics() (*Metrics, error) {
	meter := otel.Meter(MeterName)
	m := &Metrics{}

	var err error

	// Generation metrics
	m.GenerationsTotal, err = meter.Int64Counter(
		"draftforge_generations_total",
		metric.WithDescription("Total number of section generations"),
		metric.WithUnit("{generation}"),
	)
	if err != nil {
		return nil, err
	}

	m.GenerationDuration, err = meter.Float64Histogram(
		"draftforge_generation_duration_seconds",
		metric.WithDescription("Duration of section generations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	m.ActiveJobs, err = meter.Int64UpDownCounter(
		"draftforge_active_jobs",
		metric.WithDescription("Number of currently running generation jobs"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	m.JobsByStatus, err = meter.Int64Counter(
		"draftforge_jobs_by_status_total",
		metric.WithDescription("Total number of generation jobs by terminal status"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	// LLM metrics
	m.LLMRequestsTotal, err = meter.Int64Counter(
		"draftforge_llm_requests_total",
		metric.WithDescription("Total number of LLM completion requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.LLMRequestDuration, err = meter.Float64Histogram(
		"draftforge_llm_request_duration_seconds",
		metric.WithDescription("Duration of LLM completion requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	m.LLMTokensTotal, err = meter.Int64Counter(
		"draftforge_llm_tokens_total",
		metric.WithDescription("Total number of tokens reported by the LLM endpoint"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, err
	}

	// Document metrics
	m.DocumentsParsedTotal, err = meter.Int64Counter(
		"draftforge_documents_parsed_total",
		metric.WithDescription("Total number of document parses"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return nil, err
	}

	m.CommitsTotal, err = meter.Int64Counter(
		"draftforge_commits_total",
		metric.WithDescription("Total number of section commits"),
		metric.WithUnit("{commit}"),
	)
	if err != nil {
		return nil, err
	}

	// HTTP metrics
	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"draftforge_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"draftforge_http_request_duration_seconds",
		metric.WithDescription("Duration of HTTP requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("Metrics initialized successfully")
	return m, nil
}

// RecordGeneration records a completed section generation
func (m *Metrics) RecordGeneration(ctx context.Context, mode string, success bool, durationSeconds float64) {
	if m.GenerationsTotal != nil {
		m.GenerationsTotal.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("mode", mode),
				attribute.Bool("success", success),
			),
		)
	}
	if m.GenerationDuration != nil {
		m.GenerationDuration.Record(ctx, durationSeconds,
			metric.WithAttributes(attribute.String("mode", mode)),
		)
	}
}

// RecordJobStarted records that a generation job has started
func (m *Metrics) RecordJobStarted(ctx context.Context) {
	if m.ActiveJobs != nil {
		m.ActiveJobs.Add(ctx, 1)
	}
}

// RecordJobFinished records that a generation job reached a terminal status
func (m *Metrics) RecordJobFinished(ctx context.Context, status string) {
	if m.ActiveJobs != nil {
		m.ActiveJobs.Add(ctx, -1)
	}
	if m.JobsByStatus != nil {
		m.JobsByStatus.Add(ctx, 1,
			metric.WithAttributes(attribute.String("status", status)),
		)
	}
}

// RecordLLMRequest records an LLM completion request
func (m *Metrics) RecordLLMRequest(ctx context.Context, model string, success bool, tokens int64, durationSeconds float64) {
	if m.LLMRequestsTotal != nil {
		m.LLMRequestsTotal.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("model", model),
				attribute.Bool("success", success),
			),
		)
	}
	if m.LLMRequestDuration != nil {
		m.LLMRequestDuration.Record(ctx, durationSeconds,
			metric.WithAttributes(attribute.String("model", model)),
		)
	}
	if tokens > 0 && m.LLMTokensTotal != nil {
		m.LLMTokensTotal.Add(ctx, tokens,
			metric.WithAttributes(attribute.String("model", model)),
		)
	}
}

// RecordDocumentParsed records a document parse
func (m *Metrics) RecordDocumentParsed(ctx context.Context, sections int64) {
	if m.DocumentsParsedTotal == nil {
		return
	}
	m.DocumentsParsedTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.Int64("sections", sections)),
	)
}

// RecordCommit records a section commit
func (m *Metrics) RecordCommit(ctx context.Context, mode string, success bool) {
	if m.CommitsTotal == nil {
		return
	}
	m.CommitsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("mode", mode),
			attribute.Bool("success", success),
		),
	)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	if m.HTTPRequestsTotal != nil {
		m.HTTPRequestsTotal.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("method", method),
				attribute.String("path", path),
				attribute.Int("status_code", statusCode),
			),
		)
	}
	if m.HTTPRequestDuration != nil {
		m.HTTPRequestDuration.Record(ctx, durationSeconds,
			metric.WithAttributes(
				attribute.String("method", method),
				attribute.String("path", path),
			),
		)
	}
}
