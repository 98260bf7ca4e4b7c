package telemetry

import (
	"testing"
	"time"

	"github.com/itsmevijay17/LexiVoice/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enabledConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "local grpc", mutate: func(*Config) {}},
		{
			name:   "disabled skips checks",
			mutate: func(c *Config) { c.Enabled = false; c.Endpoint = "" },
		},
		{
			name:   "remote tls",
			mutate: func(c *Config) { c.Endpoint = "otel.example.com:4317"; c.Insecure = false },
		},
		{
			name:   "remote http with skip verify",
			mutate: func(c *Config) { c.Endpoint = "https://otel.internal:4318"; c.Protocol = ProtocolHTTP; c.Insecure = false; c.TLSSkipVerify = true },
		},
		{
			name:    "remote insecure",
			mutate:  func(c *Config) { c.Endpoint = "otel.example.com:4317" },
			wantErr: "only loopback collectors",
		},
		{
			name:    "missing endpoint",
			mutate:  func(c *Config) { c.Endpoint = "" },
			wantErr: "endpoint is required",
		},
		{
			name:    "missing service",
			mutate:  func(c *Config) { c.ServiceName = "" },
			wantErr: "service_name",
		},
		{
			name:    "unknown protocol",
			mutate:  func(c *Config) { c.Protocol = "udp" },
			wantErr: "protocol must be",
		},
		{
			name:    "insecure with skip verify",
			mutate:  func(c *Config) { c.TLSSkipVerify = true },
			wantErr: "mutually exclusive",
		},
		{
			name:    "rate above one",
			mutate:  func(c *Config) { c.SampleRate = 1.5 },
			wantErr: "sample_rate",
		},
		{
			name:    "negative rate",
			mutate:  func(c *Config) { c.SampleRate = -0.1 },
			wantErr: "sample_rate",
		},
		{
			name:    "zero metrics interval",
			mutate:  func(c *Config) { c.MetricsInterval = 0 },
			wantErr: "metrics interval",
		},
		{
			name:   "zero metrics interval with metrics off",
			mutate: func(c *Config) { c.MetricsInterval = 0; c.Metrics = false },
		},
		{
			name:    "zero shutdown timeout",
			mutate:  func(c *Config) { c.ShutdownTimeout = 0 },
			wantErr: "shutdown timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := enabledConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestIsLoopback(t *testing.T) {
	tests := []struct {
		endpoint string
		want     bool
	}{
		{"localhost:4317", true},
		{"localhost", true},
		{"127.0.0.1:4317", true},
		{"127.1.2.3:4317", true},
		{"[::1]:4317", true},
		{"::1", true},
		{"http://localhost:4318", true},
		{"otel.example.com:4317", false},
		{"10.0.0.5:4317", false},
		{"localhost.example.com:4317", false},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			assert.Equal(t, tt.want, isLoopback(tt.endpoint))
		})
	}
}

func TestHostPort(t *testing.T) {
	assert.Equal(t, "otel:4318", hostPort("https://otel:4318"))
	assert.Equal(t, "otel:4318", hostPort("http://otel:4318"))
	assert.Equal(t, "otel:4317", hostPort("otel:4317"))
}

func TestFromObservability(t *testing.T) {
	o := config.ObservabilityConfig{
		Enabled:        true,
		Endpoint:       "collector:4318",
		Protocol:       ProtocolHTTP,
		TLSSkipVerify:  true,
		ServiceName:    "lexivoice-api",
		SampleRate:     0.25,
		MetricsEnabled: false,
	}

	cfg := FromObservability(o, "1.4.0")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "collector:4318", cfg.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.Equal(t, "lexivoice-api", cfg.ServiceName)
	assert.Equal(t, "1.4.0", cfg.ServiceVersion)
	assert.False(t, cfg.Insecure)
	assert.True(t, cfg.TLSSkipVerify)
	assert.Equal(t, 0.25, cfg.SampleRate)
	assert.False(t, cfg.Metrics)
	assert.Equal(t, 15*time.Second, cfg.MetricsInterval)
	require.NoError(t, cfg.Validate())
}

func TestFromObservability_KeepsDefaults(t *testing.T) {
	cfg := FromObservability(config.ObservabilityConfig{}, "")

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, ProtocolGRPC, cfg.Protocol)
	assert.Equal(t, "lexivoice", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
}
