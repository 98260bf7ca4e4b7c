// Package config provides configuration loading for lexivoice.
//
// Configuration is read from an optional YAML file and overridden by
// LEXIVOICE_* environment variables. Defaults come from Default.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the complete lexivoice configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       LoggingConfig       `koanf:"logging"`
	Corpus        CorpusConfig        `koanf:"corpus"`
	Index         IndexConfig         `koanf:"index"`
	Embeddings    EmbeddingsConfig    `koanf:"embeddings"`
	Translation   TranslationConfig   `koanf:"translation"`
	Synthesis     SynthesisConfig     `koanf:"synthesis"`
	Speech        SpeechConfig        `koanf:"speech"`
	AuditLog      AuditLogConfig      `koanf:"auditlog"`
	Pipeline      PipelineConfig      `koanf:"pipeline"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"http_host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	BodyLimit       string        `koanf:"body_limit"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	Enabled        bool    `koanf:"enabled"`
	Endpoint       string  `koanf:"endpoint"`
	Protocol       string  `koanf:"protocol"`
	Insecure       bool    `koanf:"insecure"`
	TLSSkipVerify  bool    `koanf:"tls_skip_verify"`
	ServiceName    string  `koanf:"service_name"`
	SampleRate     float64 `koanf:"sample_rate"`
	MetricsEnabled bool    `koanf:"metrics_enabled"`
}

// LoggingConfig selects log level and encoding.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
	// OTEL bridges log records to the telemetry logger provider.
	OTEL bool `koanf:"otel"`
}

// CorpusConfig locates the per-jurisdiction corpus files.
type CorpusConfig struct {
	Dir string `koanf:"dir"`
}

// IndexConfig controls partition indexes and the registry.
type IndexConfig struct {
	Dir     string        `koanf:"dir"`
	Workers int           `koanf:"workers"`
	Timeout time.Duration `koanf:"timeout"`
	// Preload jurisdictions are loaded in the background at startup.
	Preload []string `koanf:"preload"`
	// Jurisdictions restricts the accepted jurisdictions when set.
	Jurisdictions []string `koanf:"jurisdictions"`
	ChunkMaxChars int      `koanf:"chunk_max_chars"`
	ChunkOverlap  int      `koanf:"chunk_overlap"`
}

// EmbeddingsConfig selects the embedding backend.
type EmbeddingsConfig struct {
	Backend           string  `koanf:"backend"`
	Model             string  `koanf:"model"`
	CacheDir          string  `koanf:"cache_dir"`
	BaseURL           string  `koanf:"base_url"`
	APIKey            Secret  `koanf:"api_key"`
	Dimension         int     `koanf:"dimension"`
	BatchSize         int     `koanf:"batch_size"`
	MaxInputChars     int     `koanf:"max_input_chars"`
	RequestsPerMinute float64 `koanf:"requests_per_minute"`
	ONNXLibDir        string  `koanf:"onnx_lib_dir"`
}

// TranslationConfig lists translation providers in fallback order.
type TranslationConfig struct {
	Providers      []string      `koanf:"providers"`
	Timeout        time.Duration `koanf:"timeout"`
	GoogleAPIKey   Secret        `koanf:"google_api_key"`
	GoogleEndpoint string        `koanf:"google_endpoint"`
	LibreURL       string        `koanf:"libre_url"`
	LibreAPIKey    Secret        `koanf:"libre_api_key"`
	LibreRPM       float64       `koanf:"libre_requests_per_minute"`
	// LLMModel enables the "llm" provider on the synthesis endpoint.
	LLMModel string `koanf:"llm_model"`
}

// SynthesisConfig configures the OpenAI-compatible chat endpoint.
type SynthesisConfig struct {
	BaseURL        string  `koanf:"base_url"`
	APIKey         Secret  `koanf:"api_key"`
	Model          string  `koanf:"model"`
	Temperature    float64 `koanf:"temperature"`
	MaxTokens      int64   `koanf:"max_tokens"`
	ResponseFormat string  `koanf:"response_format"`
}

// SpeechConfig configures text-to-speech. An empty provider disables it.
type SpeechConfig struct {
	Provider string        `koanf:"provider"`
	APIKey   Secret        `koanf:"api_key"`
	BaseURL  string        `koanf:"base_url"`
	VoiceID  string        `koanf:"voice_id"`
	Model    string        `koanf:"model"`
	MaxChars int           `koanf:"max_chars"`
	Timeout  time.Duration `koanf:"timeout"`
}

// AuditLogConfig configures the query log sinks.
type AuditLogConfig struct {
	File          string        `koanf:"file"`
	NATSURL       string        `koanf:"nats_url"`
	SubjectPrefix string        `koanf:"subject_prefix"`
	QueueSize     int           `koanf:"queue_size"`
	WriteTimeout  time.Duration `koanf:"write_timeout"`
	// Redact replaces personal identifiers in logged text with placeholders.
	Redact bool `koanf:"redact"`
}

// PipelineConfig tunes request handling.
type PipelineConfig struct {
	Language          string        `koanf:"language"`
	TranslateQuery    bool          `koanf:"translate_query"`
	DefaultTopK       int           `koanf:"default_top_k"`
	MaxTopK           int           `koanf:"max_top_k"`
	MaxQueryChars     int           `koanf:"max_query_chars"`
	TranslateTimeout  time.Duration `koanf:"translate_timeout"`
	RetrieveTimeout   time.Duration `koanf:"retrieve_timeout"`
	SynthesizeTimeout time.Duration `koanf:"synthesize_timeout"`
	SpeakTimeout      time.Duration `koanf:"speak_timeout"`
}

// DefaultJurisdictions are preloaded when no preload list is configured.
var DefaultJurisdictions = []string{"india", "canada", "usa"}

// Default returns the configuration used when nothing is set. Booleans that
// default to true are only set here, so the loader starts from Default.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8000,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  2 * time.Minute,
			BodyLimit:       "1M",
		},
		Observability: ObservabilityConfig{
			Endpoint:       "localhost:4317",
			Protocol:       "grpc",
			Insecure:       true,
			ServiceName:    "lexivoice",
			SampleRate:     1.0,
			MetricsEnabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: true,
		},
		Corpus: CorpusConfig{Dir: "data/legal_docs"},
		Index: IndexConfig{
			Dir:           "data/vector_stores",
			Workers:       2,
			Timeout:       10 * time.Minute,
			Preload:       append([]string(nil), DefaultJurisdictions...),
			ChunkMaxChars: 500,
			ChunkOverlap:  50,
		},
		Embeddings: EmbeddingsConfig{
			Backend:       "fastembed",
			Model:         "sentence-transformers/all-MiniLM-L6-v2",
			BatchSize:     64,
			MaxInputChars: 2000,
		},
		Translation: TranslationConfig{
			Providers: []string{"libre", "whatlang"},
			Timeout:   10 * time.Second,
			LibreURL:  "https://libretranslate.com",
			LibreRPM:  20,
		},
		Synthesis: SynthesisConfig{
			BaseURL:        "https://api.groq.com/openai/v1",
			Model:          "llama-3.1-8b-instant",
			Temperature:    0.3,
			MaxTokens:      1000,
			ResponseFormat: "json_object",
		},
		Speech: SpeechConfig{
			MaxChars: 2500,
			Timeout:  30 * time.Second,
		},
		AuditLog: AuditLogConfig{
			SubjectPrefix: "lexivoice.queries",
			QueueSize:     256,
			WriteTimeout:  5 * time.Second,
			Redact:        true,
		},
		Pipeline: PipelineConfig{
			Language:          "en",
			TranslateQuery:    true,
			DefaultTopK:       3,
			MaxTopK:           20,
			MaxQueryChars:     2000,
			TranslateTimeout:  15 * time.Second,
			RetrieveTimeout:   2 * time.Minute,
			SynthesizeTimeout: 60 * time.Second,
			SpeakTimeout:      30 * time.Second,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}
	if c.Observability.Enabled && c.Observability.ServiceName == "" {
		errs = append(errs, errors.New("service name required when telemetry is enabled"))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}

	if c.Corpus.Dir == "" {
		errs = append(errs, errors.New("corpus.dir is required"))
	}
	if err := validateDir("index.dir", c.Index.Dir); err != nil {
		errs = append(errs, err)
	}
	if c.Index.Workers < 1 {
		errs = append(errs, fmt.Errorf("index.workers must be at least 1, got %d", c.Index.Workers))
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkMaxChars {
		errs = append(errs, fmt.Errorf("index.chunk_overlap must be in [0, chunk_max_chars), got %d", c.Index.ChunkOverlap))
	}

	switch c.Embeddings.Backend {
	case "fastembed", "hash":
	case "tei":
		if c.Embeddings.BaseURL == "" {
			errs = append(errs, errors.New("embeddings.base_url is required for the tei backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown embeddings.backend %q", c.Embeddings.Backend))
	}

	for _, p := range c.Translation.Providers {
		switch p {
		case "google", "libre", "llm", "whatlang":
		default:
			errs = append(errs, fmt.Errorf("unknown translation provider %q", p))
		}
	}

	if c.Synthesis.Model == "" {
		errs = append(errs, errors.New("synthesis.model is required"))
	}
	if c.Synthesis.Temperature < 0 || c.Synthesis.Temperature > 2 {
		errs = append(errs, fmt.Errorf("synthesis.temperature must be in [0, 2], got %v", c.Synthesis.Temperature))
	}

	switch c.Speech.Provider {
	case "", "elevenlabs", "openai":
	default:
		errs = append(errs, fmt.Errorf("unknown speech.provider %q", c.Speech.Provider))
	}

	if c.Pipeline.DefaultTopK < 1 || c.Pipeline.DefaultTopK > c.Pipeline.MaxTopK {
		errs = append(errs, fmt.Errorf("pipeline.default_top_k must be in [1, max_top_k], got %d", c.Pipeline.DefaultTopK))
	}

	for name, u := range map[string]string{
		"embeddings.base_url":         c.Embeddings.BaseURL,
		"synthesis.base_url":          c.Synthesis.BaseURL,
		"translation.libre_url":       c.Translation.LibreURL,
		"translation.google_endpoint": c.Translation.GoogleEndpoint,
		"speech.base_url":             c.Speech.BaseURL,
	} {
		if err := validateURL(name, u, "http", "https"); err != nil {
			errs = append(errs, err)
		}
	}
	if err := validateURL("auditlog.nats_url", c.AuditLog.NATSURL, "nats", "tls", "ws", "wss"); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// validateURL accepts an empty value or an absolute URL with one of schemes.
func validateURL(name, raw string, schemes ...string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s: %q must be a %s URL", name, raw, strings.Join(schemes, "/"))
}

func validateDir(name, dir string) error {
	if dir == "" {
		return fmt.Errorf("%s is required", name)
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("%s: path traversal in %q", name, dir)
		}
	}
	return nil
}
