package logging

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/itsmevijay17/LexiVoice/internal/config"
	"go.uber.org/zap/zapcore"
)

// TraceLevel sits one step below debug and is meant for provider payloads.
const TraceLevel = zapcore.Level(-2)

const maxPatternLen = 200

// Config holds logging configuration. Stacktraces are attached at the
// Stacktrace level and above.
type Config struct {
	Level      zapcore.Level     `koanf:"level"`
	Format     string            `koanf:"format"`
	Output     OutputConfig      `koanf:"output"`
	Sampling   SamplingConfig    `koanf:"sampling"`
	Caller     bool              `koanf:"caller"`
	Stacktrace zapcore.Level     `koanf:"stacktrace"`
	Fields     map[string]string `koanf:"fields"`
	Redaction  RedactionConfig   `koanf:"redaction"`
}

// OutputConfig selects the sinks.
type OutputConfig struct {
	Console bool `koanf:"console"`
	// Stderr sends the console stream to stderr. MCP stdio mode needs
	// stdout for protocol frames.
	Stderr bool `koanf:"stderr"`
	OTEL   bool `koanf:"otel"`
}

// SamplingConfig limits log volume per level. Levels missing from Levels,
// trace, and error and above are never sampled.
type SamplingConfig struct {
	Enabled bool                        `koanf:"enabled"`
	Tick    time.Duration               `koanf:"tick"`
	Levels  map[zapcore.Level]LevelRate `koanf:"levels"`
}

// LevelRate keeps the first Initial entries with the same message per tick,
// then every Thereafter-th. Thereafter 0 drops the rest.
type LevelRate struct {
	Initial    int `koanf:"initial"`
	Thereafter int `koanf:"thereafter"`
}

// RedactionConfig lists field names and value patterns that never reach a sink.
type RedactionConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Fields   []string `koanf:"fields"`
	Patterns []string `koanf:"patterns"`
}

// NewDefaultConfig returns the production defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Output: OutputConfig{Console: true},
		Sampling: SamplingConfig{
			Enabled: true,
			Tick:    time.Second,
			Levels: map[zapcore.Level]LevelRate{
				zapcore.DebugLevel: {Initial: 10},
				zapcore.InfoLevel:  {Initial: 100, Thereafter: 10},
				zapcore.WarnLevel:  {Initial: 100, Thereafter: 100},
			},
		},
		Caller:     true,
		Stacktrace: zapcore.ErrorLevel,
		Fields:     map[string]string{"service": "lexivoice"},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields: []string{
				"api_key", "authorization", "password", "secret",
				"token", "bearer", "credential", "private_key",
			},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`(?i)api[_-]?key[=:]\s*\S+`,
				`\bgsk_[A-Za-z0-9]{20,}\b`,
				`\bsk-[A-Za-z0-9_-]{20,}\b`,
			},
		},
	}
}

// Validate reports every problem in the config at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Format != "json" && c.Format != "console" {
		errs = append(errs, fmt.Errorf("format must be json or console, got %q", c.Format))
	}
	if !c.Output.Console && !c.Output.OTEL {
		errs = append(errs, errors.New("no output enabled"))
	}
	if c.Sampling.Enabled && c.Sampling.Tick <= 0 {
		errs = append(errs, errors.New("sampling tick must be positive"))
	}
	for lvl, r := range c.Sampling.Levels {
		if r.Initial < 0 || r.Thereafter < 0 {
			errs = append(errs, fmt.Errorf("sampling rate for %s must not be negative", levelName(lvl)))
		}
	}
	if c.Redaction.Enabled {
		for _, p := range c.Redaction.Patterns {
			if len(p) > maxPatternLen {
				errs = append(errs, fmt.Errorf("redaction pattern longer than %d chars", maxPatternLen))
				continue
			}
			if _, err := regexp.Compile(p); err != nil {
				errs = append(errs, fmt.Errorf("redaction pattern %q: %w", p, err))
			}
		}
	}
	for k, v := range c.Fields {
		if k == "" || v == "" {
			errs = append(errs, fmt.Errorf("constant field %q needs a key and a value", k))
		}
	}
	return errors.Join(errs...)
}

// FromSettings maps the logging section of the application config onto a
// Config. An empty level means info.
func FromSettings(s config.LoggingConfig, serviceName string) (*Config, error) {
	cfg := NewDefaultConfig()
	if s.Level != "" {
		lvl, err := ParseLevel(s.Level)
		if err != nil {
			return nil, fmt.Errorf("logging.level: %w", err)
		}
		cfg.Level = lvl
	}
	if s.Format != "" {
		cfg.Format = s.Format
	}
	cfg.Caller = s.Caller
	cfg.Output.OTEL = s.OTEL
	if serviceName != "" {
		cfg.Fields["service"] = serviceName
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseLevel accepts the zap level names plus "trace".
func ParseLevel(s string) (zapcore.Level, error) {
	if s == "trace" {
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}

func levelName(l zapcore.Level) string {
	if l == TraceLevel {
		return "trace"
	}
	return l.String()
}
