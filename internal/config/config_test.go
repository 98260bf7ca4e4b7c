package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v, want nil", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Index.Workers != 2 {
		t.Errorf("Index.Workers = %d, want 2", cfg.Index.Workers)
	}
	if got := strings.Join(cfg.Index.Preload, ","); got != "india,canada,usa" {
		t.Errorf("Index.Preload = %q, want india,canada,usa", got)
	}
	if cfg.Pipeline.DefaultTopK != 3 {
		t.Errorf("Pipeline.DefaultTopK = %d, want 3", cfg.Pipeline.DefaultTopK)
	}
	if cfg.Pipeline.SynthesizeTimeout != 60*time.Second {
		t.Errorf("Pipeline.SynthesizeTimeout = %v, want 60s", cfg.Pipeline.SynthesizeTimeout)
	}
	if cfg.Speech.Provider != "" {
		t.Errorf("Speech.Provider = %q, want disabled by default", cfg.Speech.Provider)
	}

	// Preload must not alias the package-level slice.
	cfg.Index.Preload[0] = "mutated"
	if DefaultJurisdictions[0] != "india" {
		t.Error("Default() shares the DefaultJurisdictions backing array")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "port too low",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "shutdown timeout",
			mutate:  func(c *Config) { c.Server.ShutdownTimeout = 0 },
			wantErr: "shutdown timeout",
		},
		{
			name: "telemetry without service name",
			mutate: func(c *Config) {
				c.Observability.Enabled = true
				c.Observability.ServiceName = ""
			},
			wantErr: "service name",
		},
		{
			name:    "logging format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name:    "corpus dir",
			mutate:  func(c *Config) { c.Corpus.Dir = "" },
			wantErr: "corpus.dir",
		},
		{
			name:    "index traversal",
			mutate:  func(c *Config) { c.Index.Dir = "data/../../etc" },
			wantErr: "path traversal",
		},
		{
			name:    "overlap not below chunk size",
			mutate:  func(c *Config) { c.Index.ChunkOverlap = 500 },
			wantErr: "chunk_overlap",
		},
		{
			name:    "tei without base url",
			mutate:  func(c *Config) { c.Embeddings.Backend = "tei" },
			wantErr: "embeddings.base_url",
		},
		{
			name: "tei with base url",
			mutate: func(c *Config) {
				c.Embeddings.Backend = "tei"
				c.Embeddings.BaseURL = "http://localhost:8080"
			},
		},
		{
			name:    "unknown translation provider",
			mutate:  func(c *Config) { c.Translation.Providers = []string{"libre", "babelfish"} },
			wantErr: "babelfish",
		},
		{
			name:    "temperature",
			mutate:  func(c *Config) { c.Synthesis.Temperature = 2.5 },
			wantErr: "synthesis.temperature",
		},
		{
			name:    "speech provider",
			mutate:  func(c *Config) { c.Speech.Provider = "festival" },
			wantErr: "speech.provider",
		},
		{
			name:    "top k above max",
			mutate:  func(c *Config) { c.Pipeline.DefaultTopK = 50 },
			wantErr: "default_top_k",
		},
		{
			name:    "synthesis url scheme",
			mutate:  func(c *Config) { c.Synthesis.BaseURL = "ftp://api.example.com" },
			wantErr: "synthesis.base_url",
		},
		{
			name:    "libre url without host",
			mutate:  func(c *Config) { c.Translation.LibreURL = "https://" },
			wantErr: "translation.libre_url",
		},
		{
			name:   "nats url",
			mutate: func(c *Config) { c.AuditLog.NATSURL = "nats://localhost:4222" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = -1
	cfg.Synthesis.Model = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, want := range []string{"invalid server port", "synthesis.model"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() = %v, missing %q", err, want)
		}
	}
}
