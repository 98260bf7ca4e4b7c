package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/itsmevijay17/LexiVoice/internal/auditlog"
	"github.com/itsmevijay17/LexiVoice/internal/errkind"
	"github.com/itsmevijay17/LexiVoice/internal/logging"
	"github.com/itsmevijay17/LexiVoice/internal/partition"
	"github.com/itsmevijay17/LexiVoice/internal/speech"
	"github.com/itsmevijay17/LexiVoice/internal/synthesis"
	"github.com/itsmevijay17/LexiVoice/internal/translator"
)

// Warnings attached to degraded responses.
const (
	WarnQueryUntranslated     = "query translation unavailable, searched with the original text"
	WarnAnswerUntranslated    = "answer translation unavailable, answer returned untranslated"
	WarnReasoningUntranslated = "reasoning translation unavailable, reasoning returned untranslated"
	WarnDegradedAnswer        = "model reply could not be parsed, returning raw model output"
	WarnSpeechUnavailable     = "speech requested but no speech provider is configured"
	WarnLanguageUndetected    = "spoken language could not be detected, assuming the default language"
	WarnLogDropped            = "query log entry dropped"
)

// IndexSource returns the index for a jurisdiction.
type IndexSource interface {
	Get(ctx context.Context, jurisdiction string) (*partition.Index, error)
}

// QueryEmbedder embeds a search query.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Translator translates between known languages and detects the language
// of untagged voice input.
type Translator interface {
	TranslateFrom(ctx context.Context, text, source, target string) (translator.Result, error)
	DetectLanguage(ctx context.Context, text string) (translator.Detection, error)
}

// Generator produces an answer from retrieved hits.
type Generator interface {
	Generate(ctx context.Context, query string, hits partition.Result, jurisdiction string) (synthesis.Answer, error)
}

// Config tunes the pipeline.
type Config struct {
	// Language is the language of the corpus and the model prompt.
	Language string
	// TranslateQuery translates non-Language queries before retrieval.
	TranslateQuery bool
	DefaultTopK    int
	MaxTopK        int
	MaxQueryChars  int
	// Jurisdictions restricts accepted jurisdictions when non-empty.
	Jurisdictions []string

	TranslateTimeout  time.Duration
	RetrieveTimeout   time.Duration
	SynthesizeTimeout time.Duration
	SpeakTimeout      time.Duration
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Language:          translator.DefaultLanguage,
		TranslateQuery:    true,
		DefaultTopK:       3,
		MaxTopK:           20,
		MaxQueryChars:     2000,
		TranslateTimeout:  15 * time.Second,
		RetrieveTimeout:   2 * time.Minute,
		SynthesizeTimeout: 60 * time.Second,
		SpeakTimeout:      30 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Language == "" {
		c.Language = d.Language
	}
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = d.DefaultTopK
	}
	if c.MaxTopK <= 0 {
		c.MaxTopK = d.MaxTopK
	}
	if c.MaxQueryChars <= 0 {
		c.MaxQueryChars = d.MaxQueryChars
	}
}

// Deps are the collaborators of a Pipeline. Translator, Speaker and Audit
// are optional.
type Deps struct {
	Indexes    IndexSource
	Embedder   QueryEmbedder
	Generator  Generator
	Translator Translator
	Speaker    speech.Speaker
	Audit      auditlog.Logger
}

// Pipeline answers legal questions.
type Pipeline struct {
	deps    Deps
	cfg     Config
	logger  *logging.Logger
	tracer  trace.Tracer
	metrics *Metrics
	allowed map[string]bool
}

// New creates a pipeline.
func New(deps Deps, cfg Config, logger *logging.Logger) (*Pipeline, error) {
	if deps.Indexes == nil {
		return nil, errors.New("pipeline requires an index source")
	}
	if deps.Embedder == nil {
		return nil, errors.New("pipeline requires an embedder")
	}
	if deps.Generator == nil {
		return nil, errors.New("pipeline requires a generator")
	}
	if deps.Audit == nil {
		deps.Audit = auditlog.Nop{}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	cfg.applyDefaults()

	p := &Pipeline{
		deps:    deps,
		cfg:     cfg,
		logger:  logger.Named("pipeline"),
		tracer:  otel.Tracer(instrumentationName),
		metrics: NewMetrics(logger.Underlying()),
	}
	if len(cfg.Jurisdictions) > 0 {
		p.allowed = make(map[string]bool, len(cfg.Jurisdictions))
		for _, j := range cfg.Jurisdictions {
			p.allowed[partition.NormalizeJurisdiction(j)] = true
		}
	}
	return p, nil
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// AskVoice answers a transcribed spoken question.
func (p *Pipeline) AskVoice(ctx context.Context, v VoiceRequest) (*Response, error) {
	return p.Ask(ctx, FromVoice(v))
}

// Ask runs req through every stage. On failure it returns a
// *errkind.StageError and no response. A request ID already on ctx is
// reused; otherwise a new one is assigned.
func (p *Pipeline) Ask(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	requestID := logging.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = logging.WithRequestID(ctx, requestID)
	}
	r := &run{
		p: p,
		resp: &Response{
			RequestID: requestID,
			Hits:      []auditlog.HitRef{},
			Warnings:  []string{},
		},
	}
	ctx, span := p.tracer.Start(ctx, "pipeline.Ask",
		trace.WithAttributes(attribute.String("request_id", r.resp.RequestID)))
	defer span.End()

	resp, err := p.ask(ctx, r, req, start)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		fields := []zap.Field{zap.Error(err), zap.Duration("elapsed", time.Since(start))}
		var se *errkind.StageError
		if errors.As(err, &se) {
			fields = append(fields, zap.String("stage", se.Stage), zap.String("kind", se.Kind.String()))
		}
		if errkind.Of(err) == errkind.InvalidRequest {
			p.logger.Info(ctx, "request rejected", fields...)
		} else {
			p.logger.Error(ctx, "request failed", fields...)
		}
	case resp.Degraded || len(resp.Warnings) > 0:
		outcome = "degraded"
	}
	p.metrics.recordRequest(ctx, r.req, outcome, time.Since(start))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *Pipeline) ask(ctx context.Context, r *run, req Request, start time.Time) (*Response, error) {
	resp := r.resp

	err := r.stage(ctx, StageReceive, func(ctx context.Context) (StageStatus, error) {
		var verr error
		if req, verr = p.validate(req); verr != nil {
			return StatusFailed, verr
		}
		if req.UserLanguage != "" {
			return StatusCompleted, nil
		}
		lang, derr := p.detect(ctx, req.Query)
		if derr != nil {
			p.logger.Warn(ctx, "language detection failed", zap.Error(derr))
			resp.Warnings = append(resp.Warnings, WarnLanguageUndetected)
			req.UserLanguage = p.cfg.Language
			return StatusDegraded, nil
		}
		req.UserLanguage = lang
		return StatusCompleted, nil
	})
	r.req = req
	if err != nil {
		return nil, err
	}
	ctx = logging.WithJurisdiction(ctx, req.Jurisdiction)
	ctx = logging.WithLanguage(ctx, req.UserLanguage)
	if req.SessionID != "" {
		ctx = logging.WithSessionID(ctx, req.SessionID)
	}
	p.logger.Debug(ctx, "request received",
		zap.String("channel", string(req.Channel)),
		zap.Int("top_k", req.TopK),
		zap.Int("query_chars", utf8.RuneCountInString(req.Query)))

	foreign := req.UserLanguage != p.cfg.Language

	// TRANSLATE_IN
	query := req.Query
	if foreign && p.cfg.TranslateQuery {
		_ = r.stage(ctx, StageTranslateIn, func(ctx context.Context) (StageStatus, error) {
			res, terr := p.translate(ctx, req.Query, req.UserLanguage, p.cfg.Language)
			if terr != nil {
				p.logger.Warn(ctx, "query translation failed", zap.Error(terr))
				resp.Warnings = append(resp.Warnings, WarnQueryUntranslated)
				return StatusDegraded, nil
			}
			query = res.Text
			resp.TranslatedQuery = res.Text
			return StatusCompleted, nil
		})
	} else {
		r.skip(StageTranslateIn)
	}

	// RETRIEVE
	var hits partition.Result
	err = r.stage(ctx, StageRetrieve, func(ctx context.Context) (StageStatus, error) {
		ctx, cancel := withTimeout(ctx, p.cfg.RetrieveTimeout)
		defer cancel()

		idx, rerr := p.deps.Indexes.Get(ctx, req.Jurisdiction)
		if rerr != nil {
			return StatusFailed, fmt.Errorf("loading index: %w", rerr)
		}
		vec, rerr := p.deps.Embedder.EmbedQuery(ctx, query)
		if rerr != nil {
			return StatusFailed, fmt.Errorf("embedding query: %w", rerr)
		}
		hits, rerr = idx.Search(vec, req.TopK)
		if rerr != nil {
			return StatusFailed, fmt.Errorf("searching index: %w", rerr)
		}
		return StatusCompleted, nil
	})
	if err != nil {
		return nil, err
	}
	for _, h := range hits {
		resp.Hits = append(resp.Hits, auditlog.HitRef{ChunkID: h.Chunk.ID, Score: h.Score})
	}

	// SYNTHESIZE
	var answer synthesis.Answer
	err = r.stage(ctx, StageSynthesize, func(ctx context.Context) (StageStatus, error) {
		ctx, cancel := withTimeout(ctx, p.cfg.SynthesizeTimeout)
		defer cancel()

		a, serr := p.deps.Generator.Generate(ctx, query, hits, req.Jurisdiction)
		if serr != nil {
			return StatusFailed, serr
		}
		answer = a
		if _, ok := a.(synthesis.DegradedAnswer); ok {
			return StatusDegraded, nil
		}
		return StatusCompleted, nil
	})
	if err != nil {
		return nil, err
	}
	rec := answer.Result()
	rec.Query = req.Query
	rec.Language = p.cfg.Language
	resp.Degraded = rec.Degraded
	if rec.Degraded {
		resp.Warnings = append(resp.Warnings, WarnDegradedAnswer)
	}
	resp.Quality = synthesis.ValidateQuality(rec, hits)

	// TRANSLATE_OUT
	if foreign {
		_ = r.stage(ctx, StageTranslateOut, func(ctx context.Context) (StageStatus, error) {
			status := StatusCompleted
			if res, terr := p.translate(ctx, rec.Answer, p.cfg.Language, req.UserLanguage); terr != nil {
				p.logger.Warn(ctx, "answer translation failed", zap.Error(terr))
				resp.Warnings = append(resp.Warnings, WarnAnswerUntranslated)
				status = StatusDegraded
			} else {
				rec.Answer = res.Text
				rec.Language = req.UserLanguage
			}
			if res, terr := p.translate(ctx, rec.Reasoning, p.cfg.Language, req.UserLanguage); terr != nil {
				p.logger.Warn(ctx, "reasoning translation failed", zap.Error(terr))
				resp.Warnings = append(resp.Warnings, WarnReasoningUntranslated)
				status = StatusDegraded
			} else {
				rec.Reasoning = res.Text
			}
			return status, nil
		})
	} else {
		r.skip(StageTranslateOut)
	}

	if req.Channel == auditlog.ChannelVoice {
		rec.Reasoning = VoicePrefix(req.Query) + rec.Reasoning
	}

	// SPEAK
	switch {
	case req.Speak && p.deps.Speaker != nil:
		err = r.stage(ctx, StageSpeak, func(ctx context.Context) (StageStatus, error) {
			ctx, cancel := withTimeout(ctx, p.cfg.SpeakTimeout)
			defer cancel()

			audio, serr := p.deps.Speaker.Speak(ctx, rec.Answer, rec.Language)
			if serr != nil {
				if errkind.Of(serr) == errkind.Unknown {
					serr = fmt.Errorf("%w: %w", errkind.ErrExternalService, serr)
				}
				return StatusFailed, serr
			}
			resp.AudioBase64 = audio.Base64()
			resp.AudioContentType = audio.ContentType
			return StatusCompleted, nil
		})
		if err != nil {
			return nil, err
		}
	case req.Speak:
		resp.Warnings = append(resp.Warnings, WarnSpeechUnavailable)
		r.skip(StageSpeak)
	default:
		r.skip(StageSpeak)
	}

	// LOG
	_ = r.stage(ctx, StageLog, func(ctx context.Context) (StageStatus, error) {
		ok := p.deps.Audit.Enqueue(auditlog.Entry{
			ID:              resp.RequestID,
			SessionID:       req.SessionID,
			Jurisdiction:    req.Jurisdiction,
			UserLanguage:    req.UserLanguage,
			Query:           req.Query,
			Answer:          rec.Answer,
			Reasoning:       rec.Reasoning,
			Sources:         auditSources(rec.Sources),
			Cited:           rec.Cited,
			Language:        rec.Language,
			Confidence:      rec.Confidence,
			ConfidenceLabel: rec.ConfidenceLabel,
			Degraded:        rec.Degraded,
			Hits:            resp.Hits,
			ProcessingMS:    time.Since(start).Milliseconds(),
			Channel:         req.Channel,
		})
		if !ok {
			p.logger.Warn(ctx, WarnLogDropped)
			return StatusDegraded, nil
		}
		return StatusCompleted, nil
	})

	// RESPOND
	_ = r.stage(ctx, StageRespond, func(context.Context) (StageStatus, error) {
		resp.Answer = rec
		resp.ProcessingTime = time.Since(start)
		return StatusCompleted, nil
	})

	p.logger.Info(ctx, "request answered",
		zap.Int("hits", len(resp.Hits)),
		zap.Float64("confidence", rec.Confidence),
		zap.Bool("degraded", resp.Degraded),
		zap.Int("warnings", len(resp.Warnings)),
		zap.Duration("elapsed", resp.ProcessingTime))
	return resp, nil
}

func auditSources(src []synthesis.SourceRef) []auditlog.Source {
	out := make([]auditlog.Source, len(src))
	for i, s := range src {
		out[i] = auditlog.Source{Title: s.Title, Section: s.Section, URL: s.URL, Score: s.Score}
	}
	return out
}

// VoicePrefix is prepended to the reasoning of voice answers.
func VoicePrefix(transcription string) string {
	return `You asked: "` + transcription + `"` + "\n\n"
}

// validate normalizes req and rejects it with errkind.ErrInvalidRequest
// when it cannot be answered.
func (p *Pipeline) validate(req Request) (Request, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return req, fmt.Errorf("%w: query is required", errkind.ErrInvalidRequest)
	}
	if n := utf8.RuneCountInString(req.Query); n > p.cfg.MaxQueryChars {
		return req, fmt.Errorf("%w: query has %d characters (max %d)", errkind.ErrInvalidRequest, n, p.cfg.MaxQueryChars)
	}

	req.Jurisdiction = partition.NormalizeJurisdiction(req.Jurisdiction)
	if err := partition.ValidateJurisdiction(req.Jurisdiction); err != nil {
		return req, fmt.Errorf("%w: %w", errkind.ErrInvalidRequest, err)
	}
	if p.allowed != nil && !p.allowed[req.Jurisdiction] {
		return req, fmt.Errorf("%w: unknown jurisdiction %q", errkind.ErrInvalidRequest, req.Jurisdiction)
	}

	switch req.Channel {
	case "":
		req.Channel = auditlog.ChannelText
	case auditlog.ChannelText, auditlog.ChannelVoice:
	default:
		return req, fmt.Errorf("%w: unknown channel %q", errkind.ErrInvalidRequest, req.Channel)
	}

	// Untagged voice input keeps an empty language so RECEIVE detects it.
	req.UserLanguage = strings.ToLower(strings.TrimSpace(req.UserLanguage))
	switch {
	case req.UserLanguage == "" && req.Channel == auditlog.ChannelVoice:
	case req.UserLanguage == "":
		req.UserLanguage = p.cfg.Language
	case !translator.IsSupported(req.UserLanguage):
		return req, fmt.Errorf("%w: unsupported language %q", errkind.ErrInvalidRequest, req.UserLanguage)
	}

	switch {
	case req.TopK < 0:
		return req, fmt.Errorf("%w: top_k must not be negative", errkind.ErrInvalidRequest)
	case req.TopK == 0:
		req.TopK = p.cfg.DefaultTopK
	case req.TopK > p.cfg.MaxTopK:
		req.TopK = p.cfg.MaxTopK
	}
	return req, nil
}

// detect returns the supported language of text.
func (p *Pipeline) detect(ctx context.Context, text string) (string, error) {
	if p.deps.Translator == nil {
		return "", fmt.Errorf("%w: no translator configured", errkind.ErrTranslationUnavailable)
	}
	ctx, cancel := withTimeout(ctx, p.cfg.TranslateTimeout)
	defer cancel()
	det, err := p.deps.Translator.DetectLanguage(ctx, text)
	if err != nil {
		return "", err
	}
	if !translator.IsSupported(det.Language) {
		return "", fmt.Errorf("%w: detected unsupported language %q", errkind.ErrTranslationUnavailable, det.Language)
	}
	return det.Language, nil
}

func (p *Pipeline) translate(ctx context.Context, text, source, target string) (translator.Result, error) {
	if p.deps.Translator == nil {
		return translator.Result{}, fmt.Errorf("%w: no translator configured", errkind.ErrTranslationUnavailable)
	}
	ctx, cancel := withTimeout(ctx, p.cfg.TranslateTimeout)
	defer cancel()
	return p.deps.Translator.TranslateFrom(ctx, text, source, target)
}

// Jurisdictions returns the accepted jurisdictions, or nil when any valid
// name is accepted.
func (p *Pipeline) Jurisdictions() []string {
	if p.allowed == nil {
		return nil
	}
	out := make([]string, 0, len(p.allowed))
	for j := range p.allowed {
		out = append(out, j)
	}
	slices.Sort(out)
	return out
}

// run tracks the stages of one request.
type run struct {
	p    *Pipeline
	req  Request
	resp *Response
}

// stage runs fn as stage s, records its timing and converts a failure
// into a *errkind.StageError.
func (r *run) stage(ctx context.Context, s Stage, fn func(context.Context) (StageStatus, error)) error {
	ctx, span := r.p.tracer.Start(ctx, "pipeline."+string(s))
	defer span.End()

	start := time.Now()
	status, err := fn(ctx)
	if err != nil {
		status = StatusFailed
	}
	timing := StageTiming{Stage: s, Status: status, Duration: time.Since(start)}
	span.SetAttributes(attribute.String("status", string(status)))
	if err != nil {
		timing.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "stage failed")
	}
	r.resp.Stages = append(r.resp.Stages, timing)
	r.p.metrics.recordStage(ctx, timing)

	if err != nil {
		return errkind.NewStageError(string(s), err)
	}
	return nil
}

func (r *run) skip(s Stage) {
	r.resp.Stages = append(r.resp.Stages, StageTiming{Stage: s, Status: StatusSkipped})
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
