package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "LEXIVOICE_"
)

// LoadWithFile loads configuration from a YAML file, then overrides it with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (LEXIVOICE_SERVER_HTTP_PORT, LEXIVOICE_SYNTHESIS_API_KEY, ...)
//  2. YAML config file (~/.config/lexivoice/config.yaml)
//  3. Default()
//
// A missing file is not an error. An existing file must live under
// ~/.config/lexivoice/ or /etc/lexivoice/, be a regular file of at most
// 1MB, and must have 0600 or 0400 permissions since it may hold API keys.
//
// # Environment Variable Mapping
//
// The prefix is stripped and the first underscore separates the section
// from the field:
//
//	LEXIVOICE_SERVER_HTTP_PORT      -> server.http_port
//	LEXIVOICE_PIPELINE_DEFAULT_TOP_K -> pipeline.default_top_k
//	LEXIVOICE_INDEX_PRELOAD=india,usa -> index.preload
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		dir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(dir, "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	content, err := readConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// envKey maps LEXIVOICE_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

// readConfigFile returns nil content when the file does not exist. The file
// is opened once and validated through its descriptor.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path) // #nosec G304 -- path validated by validateConfigPath
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(content) > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large (max %d bytes)", maxConfigFileSize)
	}
	return content, nil
}

// ConfigDir returns ~/.config/lexivoice.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "lexivoice"), nil
}

// EnsureConfigDir creates the config directory with 0700 permissions if it
// doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return nil
}

// validateConfigPath checks that path is inside an allowed directory. It
// runs even if the file doesn't exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Follow symlinks so a link cannot escape the allowed directories.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	userDir, err := ConfigDir()
	if err != nil {
		return err
	}
	for _, dir := range []string{userDir, "/etc/lexivoice"} {
		rel, err := filepath.Rel(dir, resolvedPath)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/lexivoice/ or /etc/lexivoice/")
}

// validateConfigFileProperties checks file type, permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if !info.Mode().IsRegular() {
		return fmt.Errorf("config file is not a regular file")
	}

	// Permission bits are meaningless on Windows.
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// applyDefaults restores defaults for values explicitly zeroed by the file
// or environment.
func applyDefaults(cfg *Config) {
	d := Default()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = d.Observability.ServiceName
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = d.Logging.Format
	}
	if cfg.Index.Workers <= 0 {
		cfg.Index.Workers = d.Index.Workers
	}
	if cfg.Index.ChunkMaxChars <= 0 {
		cfg.Index.ChunkMaxChars = d.Index.ChunkMaxChars
	}
	if cfg.Embeddings.Backend == "" {
		cfg.Embeddings.Backend = d.Embeddings.Backend
	}
	if cfg.Synthesis.MaxTokens <= 0 {
		cfg.Synthesis.MaxTokens = d.Synthesis.MaxTokens
	}
	if cfg.AuditLog.QueueSize <= 0 {
		cfg.AuditLog.QueueSize = d.AuditLog.QueueSize
	}
	if cfg.Pipeline.Language == "" {
		cfg.Pipeline.Language = d.Pipeline.Language
	}
	if cfg.Pipeline.DefaultTopK <= 0 {
		cfg.Pipeline.DefaultTopK = d.Pipeline.DefaultTopK
	}
	if cfg.Pipeline.MaxTopK <= 0 {
		cfg.Pipeline.MaxTopK = d.Pipeline.MaxTopK
	}
	if cfg.Pipeline.MaxQueryChars <= 0 {
		cfg.Pipeline.MaxQueryChars = d.Pipeline.MaxQueryChars
	}
}
