package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/itsmevijay17/LexiVoice/internal/auditlog"
	"github.com/itsmevijay17/LexiVoice/internal/chunker"
	"github.com/itsmevijay17/LexiVoice/internal/config"
	"github.com/itsmevijay17/LexiVoice/internal/corpus"
	"github.com/itsmevijay17/LexiVoice/internal/embeddings"
	"github.com/itsmevijay17/LexiVoice/internal/errkind"
	"github.com/itsmevijay17/LexiVoice/internal/logging"
	"github.com/itsmevijay17/LexiVoice/internal/orchestrator"
	"github.com/itsmevijay17/LexiVoice/internal/partition"
	"github.com/itsmevijay17/LexiVoice/internal/pii"
	"github.com/itsmevijay17/LexiVoice/internal/registry"
	"github.com/itsmevijay17/LexiVoice/internal/speech"
	"github.com/itsmevijay17/LexiVoice/internal/synthesis"
	"github.com/itsmevijay17/LexiVoice/internal/translator"
)

// App holds the process-wide components.
type App struct {
	Config      *config.Config
	Logger      *logging.Logger
	Corpus      *corpus.Source
	Embedder    *embeddings.Embedder
	Store       *partition.Store
	Builder     *partition.Builder
	Indexes     *registry.Registry
	Translator  *translator.Translator // nil when no provider is usable
	Synthesizer *synthesis.Synthesizer
	Speaker     speech.Speaker // nil when speech is disabled
	Audit       auditlog.Logger
	Pipeline    *orchestrator.Pipeline

	closers []func() error
}

// Option overrides a component, mostly for tests.
type Option func(*options)

type options struct {
	backend embeddings.Backend
	llm     synthesis.LLM
	speaker speech.Speaker
}

// WithEmbeddingBackend replaces the configured embedding backend.
func WithEmbeddingBackend(b embeddings.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithLLM replaces the OpenAI-compatible synthesis client.
func WithLLM(llm synthesis.LLM) Option {
	return func(o *options) { o.llm = llm }
}

// WithSpeaker replaces the configured speaker.
func WithSpeaker(s speech.Speaker) Option {
	return func(o *options) { o.speaker = s }
}

// New builds all components from cfg. On error everything already built
// is released.
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger, opts ...Option) (a *App, err error) {
	if cfg == nil {
		return nil, errors.New("app requires a config")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()
	zl := logger.Underlying()

	if err := a.initIndexes(ctx, o, zl); err != nil {
		return nil, err
	}
	if err := a.initSynthesis(o, zl); err != nil {
		return nil, err
	}
	a.initTranslator(ctx, zl)
	if err := a.initSpeech(o); err != nil {
		return nil, err
	}
	if err := a.initAudit(zl); err != nil {
		return nil, err
	}

	deps := orchestrator.Deps{
		Indexes:   a.Indexes,
		Embedder:  a.Embedder,
		Generator: a.Synthesizer,
		Speaker:   a.Speaker,
		Audit:     a.Audit,
	}
	// A nil *Translator in the interface would defeat the pipeline's nil check.
	if a.Translator != nil {
		deps.Translator = a.Translator
	}
	a.Pipeline, err = orchestrator.New(deps, pipelineConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline: %w", err)
	}

	logger.Info(ctx, "lexivoice initialized",
		zap.String("embeddings", cfg.Embeddings.Backend),
		zap.String("model", a.Embedder.Model()),
		zap.Strings("translation", a.translatorNames()),
		zap.Bool("speech", a.Speaker != nil),
		zap.String("llm_model", cfg.Synthesis.Model),
	)
	return a, nil
}

func (a *App) initIndexes(ctx context.Context, o options, zl *zap.Logger) error {
	cfg := a.Config
	ecfg := embeddings.Config{
		Backend:           cfg.Embeddings.Backend,
		Model:             cfg.Embeddings.Model,
		CacheDir:          cfg.Embeddings.CacheDir,
		BaseURL:           cfg.Embeddings.BaseURL,
		APIKey:            cfg.Embeddings.APIKey.Value(),
		Dimension:         cfg.Embeddings.Dimension,
		BatchSize:         cfg.Embeddings.BatchSize,
		MaxInputChars:     cfg.Embeddings.MaxInputChars,
		RequestsPerMinute: cfg.Embeddings.RequestsPerMinute,
	}

	var err error
	if o.backend != nil {
		a.Embedder, err = embeddings.NewEmbedder(o.backend, ecfg, zl.Named("embeddings"))
	} else {
		if ecfg.Backend == "fastembed" && cfg.Embeddings.ONNXLibDir != "" {
			if _, err := embeddings.EnsureONNXRuntime(ctx, cfg.Embeddings.ONNXLibDir); err != nil {
				return err
			}
		}
		a.Embedder, err = embeddings.New(ecfg, zl.Named("embeddings"))
	}
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	a.closers = append(a.closers, a.Embedder.Close)

	a.Store, err = partition.NewStore(cfg.Index.Dir, zl.Named("partition"))
	if err != nil {
		return fmt.Errorf("opening index store: %w", err)
	}
	chunks := chunker.New(
		chunker.WithMaxChars(cfg.Index.ChunkMaxChars),
		chunker.WithOverlap(cfg.Index.ChunkOverlap),
	)
	a.Builder = partition.NewBuilder(chunks, a.Embedder, a.Store, zl.Named("partition"))
	a.Corpus = corpus.NewSource(cfg.Corpus.Dir)

	a.Indexes, err = registry.New(a.Store, a.Builder, a.Corpus, registry.Config{
		Workers: cfg.Index.Workers,
		Timeout: cfg.Index.Timeout,
	}, zl.Named("registry"))
	if err != nil {
		return fmt.Errorf("creating index registry: %w", err)
	}
	return nil
}

func (a *App) initSynthesis(o options, zl *zap.Logger) error {
	llm := o.llm
	if llm == nil {
		sc := a.Config.Synthesis
		client, err := synthesis.NewOpenAI(synthesis.OpenAIConfig{
			BaseURL:        sc.BaseURL,
			APIKey:         sc.APIKey.Value(),
			Model:          sc.Model,
			Temperature:    sc.Temperature,
			MaxTokens:      sc.MaxTokens,
			ResponseFormat: sc.ResponseFormat,
		})
		if err != nil {
			return fmt.Errorf("creating synthesis client: %w", err)
		}
		llm = client
	}
	s, err := synthesis.New(llm, zl.Named("synthesis"))
	if err != nil {
		return fmt.Errorf("creating synthesizer: %w", err)
	}
	a.Synthesizer = s
	return nil
}

// initTranslator builds the providers that are usable with the current
// config and skips the rest with a warning. Translation degrades rather
// than blocking startup.
func (a *App) initTranslator(ctx context.Context, zl *zap.Logger) {
	tc := a.Config.Translation
	var names []string
	for _, name := range tc.Providers {
		switch {
		case name == "google" && !tc.GoogleAPIKey.IsSet() && tc.GoogleEndpoint == "":
			zl.Warn("skipping google translation: no api key configured")
			continue
		case name == "llm" && tc.LLMModel == "":
			zl.Warn("skipping llm translation: translation.llm_model not set")
			continue
		}
		names = append(names, name)
	}

	t, err := translator.NewFromConfig(ctx, translator.Config{
		Providers: names,
		Timeout:   tc.Timeout,
		Google: translator.GoogleConfig{
			APIKey:   tc.GoogleAPIKey.Value(),
			Endpoint: tc.GoogleEndpoint,
		},
		Libre: translator.LibreConfig{
			BaseURL:           tc.LibreURL,
			APIKey:            tc.LibreAPIKey.Value(),
			RequestsPerMinute: tc.LibreRPM,
		},
		LLM: translator.LLMConfig{
			BaseURL: a.Config.Synthesis.BaseURL,
			APIKey:  a.Config.Synthesis.APIKey.Value(),
			Model:   tc.LLMModel,
		},
	}, zl.Named("translator"))
	if err != nil {
		zl.Warn("translation unavailable; non-English queries will be answered in English", zap.Error(err))
		return
	}
	a.Translator = t
}

func (a *App) initSpeech(o options) error {
	if o.speaker != nil {
		a.Speaker = o.speaker
		return nil
	}
	sc := a.Config.Speech
	s, err := speech.New(speech.Config{
		Provider: sc.Provider,
		APIKey:   sc.APIKey.Value(),
		BaseURL:  sc.BaseURL,
		VoiceID:  sc.VoiceID,
		Model:    sc.Model,
		MaxChars: sc.MaxChars,
		Timeout:  sc.Timeout,
	})
	if err != nil {
		return fmt.Errorf("creating speaker: %w", err)
	}
	a.Speaker = s
	return nil
}

func (a *App) initAudit(zl *zap.Logger) error {
	ac := a.Config.AuditLog
	var sinks []auditlog.Sink
	if ac.File != "" {
		fs, err := auditlog.NewFileSink(ac.File)
		if err != nil {
			return fmt.Errorf("opening query log: %w", err)
		}
		sinks = append(sinks, fs)
	}
	if ac.NATSURL != "" {
		ns, err := auditlog.DialNATSSink(ac.NATSURL, ac.SubjectPrefix)
		if err != nil {
			for _, s := range sinks {
				_ = s.Close()
			}
			return err
		}
		sinks = append(sinks, ns)
	}
	if len(sinks) == 0 {
		a.Audit = auditlog.Nop{}
		return nil
	}
	var opts []auditlog.DispatcherOption
	if ac.Redact {
		scrubber, err := pii.New(nil)
		if err != nil {
			for _, s := range sinks {
				_ = s.Close()
			}
			return fmt.Errorf("creating query log scrubber: %w", err)
		}
		opts = append(opts, auditlog.WithScrubber(scrubber))
	}
	d := auditlog.NewDispatcher(sinks, ac.QueueSize, ac.WriteTimeout, zl.Named("auditlog"), opts...)
	a.Audit = d
	a.closers = append(a.closers, d.Close)
	return nil
}

func pipelineConfig(cfg *config.Config) orchestrator.Config {
	pc := cfg.Pipeline
	return orchestrator.Config{
		Language:          pc.Language,
		TranslateQuery:    pc.TranslateQuery,
		DefaultTopK:       pc.DefaultTopK,
		MaxTopK:           pc.MaxTopK,
		MaxQueryChars:     pc.MaxQueryChars,
		Jurisdictions:     cfg.Index.Jurisdictions,
		TranslateTimeout:  pc.TranslateTimeout,
		RetrieveTimeout:   pc.RetrieveTimeout,
		SynthesizeTimeout: pc.SynthesizeTimeout,
		SpeakTimeout:      pc.SpeakTimeout,
	}
}

func (a *App) translatorNames() []string {
	if a.Translator == nil {
		return nil
	}
	return a.Translator.Providers()
}

// Ask answers a text question.
func (a *App) Ask(ctx context.Context, req orchestrator.Request) (*orchestrator.Response, error) {
	return a.Pipeline.Ask(ctx, req)
}

// AskVoice answers a transcribed spoken question.
func (a *App) AskVoice(ctx context.Context, req orchestrator.VoiceRequest) (*orchestrator.Response, error) {
	return a.Pipeline.AskVoice(ctx, req)
}

// ErrFeedbackDropped is returned when the query log cannot accept feedback.
var ErrFeedbackDropped = fmt.Errorf("%w: feedback log queue full", errkind.ErrExternalService)

// Feedback validates fb, assigns its id and timestamp, and queues it on the
// query log.
func (a *App) Feedback(ctx context.Context, fb auditlog.Feedback) (auditlog.Feedback, error) {
	if err := logging.ValidateID(fb.QueryID, "query_id"); err != nil {
		return fb, fmt.Errorf("%w: %w: %w", errkind.ErrInvalidRequest, auditlog.ErrInvalidFeedback, err)
	}
	if fb.SessionID != "" {
		if err := logging.ValidateID(fb.SessionID, "session_id"); err != nil {
			return fb, fmt.Errorf("%w: %w", errkind.ErrInvalidRequest, err)
		}
	}
	if err := fb.Validate(); err != nil {
		return fb, fmt.Errorf("%w: %w", errkind.ErrInvalidRequest, err)
	}
	fb.ID = uuid.NewString()
	fb.Timestamp = time.Now().UTC()
	if !a.Audit.EnqueueFeedback(fb) {
		return fb, ErrFeedbackDropped
	}
	a.Logger.Info(ctx, "feedback recorded",
		zap.String("feedback_id", fb.ID),
		zap.String("query_id", fb.QueryID),
		zap.Int("rating", fb.Rating))
	return fb, nil
}

// Preload starts background loading of the configured jurisdictions.
func (a *App) Preload() {
	if len(a.Config.Index.Preload) > 0 {
		a.Indexes.Preload(a.Config.Index.Preload)
	}
}

// JurisdictionStatus reports whether a jurisdiction's index is in memory.
type JurisdictionStatus struct {
	Name   string `json:"name"`
	Cached bool   `json:"cached"`
}

// Jurisdictions lists the accepted jurisdictions with their cache state.
// Without an explicit allow-list, every corpus file present counts, plus
// any index already cached.
func (a *App) Jurisdictions() ([]JurisdictionStatus, error) {
	names := a.Pipeline.Jurisdictions()
	if names == nil {
		found, err := a.Corpus.Jurisdictions()
		if err != nil {
			return nil, err
		}
		names = append(found, a.Indexes.Cached()...)
		slices.Sort(names)
		names = slices.Compact(names)
	}
	out := make([]JurisdictionStatus, len(names))
	for i, n := range names {
		out[i] = JurisdictionStatus{Name: n, Cached: a.Indexes.IsCached(n)}
	}
	return out, nil
}

// Close waits for background index work, then releases components in
// reverse order.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if a.Indexes != nil {
		a.Indexes.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
