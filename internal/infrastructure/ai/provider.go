// Package ai selects and instruments the generative model provider
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/nutriscan/tracker/internal/infrastructure/ai/gemini"
	"github.com/nutriscan/tracker/internal/infrastructure/ai/ollama"
	"github.com/nutriscan/tracker/internal/infrastructure/ai/openai"
	"github.com/nutriscan/tracker/internal/infrastructure/config"
	"github.com/nutriscan/tracker/internal/ports/outbound"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RequestObserver records the outcome of a model call.
type RequestObserver interface {
	AIRequest(provider, operation, status string, duration time.Duration)
}

// NewGenerativeModel builds the configured provider client.
func NewGenerativeModel(cfg config.AIConfig, logger *zap.Logger) (outbound.GenerativeModel, error) {
	switch cfg.Provider {
	case "gemini":
		return gemini.NewClient(gemini.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout}, logger), nil
	case "openai":
		return openai.NewClient(openai.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout}, logger), nil
	case "ollama":
		return ollama.NewClient(ollama.Config{BaseURL: cfg.BaseURL, Timeout: cfg.Timeout}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
}

// InstrumentedModel wraps a provider with metrics, tracing and logging
type InstrumentedModel struct {
	next     outbound.GenerativeModel
	observer RequestObserver
	tracer   trace.Tracer
	logger   *zap.Logger
}

// NewInstrumentedModel decorates next. observer may be nil.
func NewInstrumentedModel(next outbound.GenerativeModel, observer RequestObserver, tracer trace.Tracer, logger *zap.Logger) *InstrumentedModel {
	return &InstrumentedModel{
		next:     next,
		observer: observer,
		tracer:   tracer,
		logger:   logger.Named("ai"),
	}
}

// Provider returns the wrapped provider name
func (m *InstrumentedModel) Provider() string { return m.next.Provider() }

// GenerateContent forwards to the provider and records the outcome
func (m *InstrumentedModel) GenerateContent(ctx context.Context, req outbound.GenerateRequest) (string, error) {
	operation := "text"
	if req.Image != nil {
		operation = "vision"
	}

	ctx, span := m.tracer.Start(ctx, "ai.GenerateContent", trace.WithAttributes(
		attribute.String("ai.provider", m.next.Provider()),
		attribute.String("ai.model", req.Model),
		attribute.String("ai.operation", operation),
	))
	defer span.End()

	start := time.Now()
	text, err := m.next.GenerateContent(ctx, req)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.logger.Warn("Model request failed",
			zap.String("provider", m.next.Provider()),
			zap.String("model", req.Model),
			zap.Duration("duration", duration),
			zap.Error(err))
	} else {
		span.SetAttributes(attribute.Int("ai.response_length", len(text)))
	}

	if m.observer != nil {
		m.observer.AIRequest(m.next.Provider(), operation, status, duration)
	}
	return text, err
}
