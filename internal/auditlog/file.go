package auditlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileSink appends records as JSON lines. Each line carries a "type" of
// "query" or "feedback".
type FileSink struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// NewFileSink opens path for appending, creating parent directories.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating query log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening query log: %w", err)
	}
	return &FileSink{f: f, enc: json.NewEncoder(f)}, nil
}

// Name returns "file".
func (*FileSink) Name() string { return "file" }

// Write appends e as one line.
func (s *FileSink) Write(_ context.Context, e Entry) error {
	return s.encode(struct {
		Type string `json:"type"`
		Entry
	}{"query", e})
}

// WriteFeedback appends f as one line.
func (s *FileSink) WriteFeedback(_ context.Context, f Feedback) error {
	return s.encode(struct {
		Type string `json:"type"`
		Feedback
	}{"feedback", f})
}

func (s *FileSink) encode(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(v)
}

// Close syncs and closes the file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}
