// Package synthesis turns retrieved chunks into a cited answer through a
// language model.
//
// The model is called once per question. Its reply is decoded against a
// fixed schema into a FullAnswer; a reply that does not decode becomes a
// DegradedAnswer so the caller can still return something useful.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/itsmevijay17/LexiVoice/internal/chunker"
	"github.com/itsmevijay17/LexiVoice/internal/errkind"
	"github.com/itsmevijay17/LexiVoice/internal/partition"
)

const instrumentationName = "github.com/itsmevijay17/LexiVoice/internal/synthesis"

// MaxSources is how many retrieved documents an answer lists.
const MaxSources = 3

// LLM completes a prompt with a single model call.
type LLM interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Synthesizer generates answers.
type Synthesizer struct {
	llm    LLM
	logger *zap.Logger
	tracer trace.Tracer

	outcomes metric.Int64Counter
	duration metric.Float64Histogram
}

// New creates a synthesizer over llm.
func New(llm LLM, logger *zap.Logger) (*Synthesizer, error) {
	if llm == nil {
		return nil, errors.New("synthesizer requires an LLM")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Synthesizer{
		llm:    llm,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
	}

	meter := otel.Meter(instrumentationName)
	var err error
	s.outcomes, err = meter.Int64Counter(
		"lexivoice.synthesis.answers_total",
		metric.WithDescription("Generated answers by outcome (full, degraded, empty, error)"),
		metric.WithUnit("{answer}"),
	)
	if err != nil {
		logger.Warn("failed to create synthesis counter", zap.Error(err))
	}
	s.duration, err = meter.Float64Histogram(
		"lexivoice.synthesis.duration_seconds",
		metric.WithDescription("Duration of model calls"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Warn("failed to create synthesis histogram", zap.Error(err))
	}
	return s, nil
}

// Generate answers query from hits. With no hits it answers without
// calling the model. A model failure is returned wrapped in
// errkind.ErrExternalService.
func (s *Synthesizer) Generate(ctx context.Context, query string, hits partition.Result, jurisdiction string) (Answer, error) {
	ctx, span := s.tracer.Start(ctx, "synthesis.Generate",
		trace.WithAttributes(
			attribute.String("jurisdiction", jurisdiction),
			attribute.Int("hits", len(hits)),
		))
	defer span.End()

	if len(hits) == 0 {
		s.record(ctx, "empty")
		return FullAnswer{Record: noMatches(query, jurisdiction)}, nil
	}

	chunks := make([]chunker.Chunk, len(hits))
	for i, h := range hits {
		chunks[i] = h.Chunk
	}
	prompt := BuildPrompt(query, chunks, jurisdiction)

	start := time.Now()
	raw, err := s.llm.Complete(ctx, prompt)
	if s.duration != nil {
		s.duration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		s.record(ctx, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "model call failed")
		return nil, fmt.Errorf("%w: generating answer: %w", errkind.ErrExternalService, err)
	}

	answer := ParseReply(raw)
	switch a := answer.(type) {
	case DegradedAnswer:
		s.logger.Warn("model reply did not match answer schema",
			zap.String("jurisdiction", jurisdiction),
			zap.Int("reply_chars", len(a.Raw)),
			zap.Error(a.ParseErr))
		s.record(ctx, "degraded")
		a.Record.Query = query
		a.Record.Jurisdiction = jurisdiction
		return a, nil
	case FullAnswer:
		s.record(ctx, "full")
		a.Record.Query = query
		a.Record.Jurisdiction = jurisdiction
		a.Record.Sources = SourceRefs(hits, MaxSources)
		return a, nil
	}
	return answer, nil
}

func (s *Synthesizer) record(ctx context.Context, outcome string) {
	if s.outcomes != nil {
		s.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func noMatches(query, jurisdiction string) AnswerRecord {
	return AnswerRecord{
		Query:           query,
		Jurisdiction:    jurisdiction,
		Answer:          fmt.Sprintf("No legal documents matched your question: '%s'.", query),
		Reasoning:       "Try rephrasing your query or ask a different topic.",
		Sources:         []SourceRef{},
		Cited:           []string{},
		Confidence:      0,
		ConfidenceLabel: "none",
	}
}
