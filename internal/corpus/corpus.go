// Package corpus loads per-jurisdiction legal documents from disk.
//
// A corpus is a single file per jurisdiction under a directory, named
// <jurisdiction>.json, <jurisdiction>.yaml or <jurisdiction>.yml, holding a
// list of documents. Documents are immutable once loaded.
package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/itsmevijay17/LexiVoice/internal/errkind"
)

// maxCorpusFileSize bounds how much of a corpus file is read into memory.
const maxCorpusFileSize = 64 * 1024 * 1024

var extensions = []string{".json", ".yaml", ".yml"}

// ErrCorpusNotFound is returned when no corpus file exists for a jurisdiction.
var ErrCorpusNotFound = fmt.Errorf("corpus not found: %w", errkind.ErrIndexNotFound)

// Document is one legal source text with its provenance.
type Document struct {
	Title        string `json:"title" yaml:"title"`
	Body         string `json:"body" yaml:"body"`
	Section      string `json:"section,omitempty" yaml:"section,omitempty"`
	SourceURL    string `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	Jurisdiction string `json:"jurisdiction" yaml:"jurisdiction"`
	Category     string `json:"category,omitempty" yaml:"category,omitempty"`
}

// record is the on-disk shape. It accepts the legacy "content" and
// "country" keys alongside "body" and "jurisdiction".
type record struct {
	Title        string `json:"title" yaml:"title"`
	Body         string `json:"body" yaml:"body"`
	Content      string `json:"content" yaml:"content"`
	Section      string `json:"section" yaml:"section"`
	SourceURL    string `json:"source_url" yaml:"source_url"`
	Jurisdiction string `json:"jurisdiction" yaml:"jurisdiction"`
	Country      string `json:"country" yaml:"country"`
	Category     string `json:"category" yaml:"category"`
}

func (r record) document(jurisdiction string) Document {
	d := Document{
		Title:        strings.TrimSpace(r.Title),
		Body:         r.Body,
		Section:      r.Section,
		SourceURL:    r.SourceURL,
		Jurisdiction: strings.ToLower(strings.TrimSpace(r.Jurisdiction)),
		Category:     r.Category,
	}
	if d.Body == "" {
		d.Body = r.Content
	}
	if d.Jurisdiction == "" {
		d.Jurisdiction = strings.ToLower(strings.TrimSpace(r.Country))
	}
	if d.Jurisdiction == "" {
		d.Jurisdiction = jurisdiction
	}
	return d
}

// Source reads corpus files from a directory.
type Source struct {
	dir string
}

// NewSource returns a Source rooted at dir.
func NewSource(dir string) *Source {
	return &Source{dir: dir}
}

// Dir returns the corpus directory.
func (s *Source) Dir() string {
	return s.dir
}

// Documents loads every document of the jurisdiction's corpus file.
func (s *Source) Documents(ctx context.Context, jurisdiction string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.find(jurisdiction)
	if err != nil {
		return nil, err
	}
	return LoadFile(path, jurisdiction)
}

// Jurisdictions lists the jurisdictions that have a corpus file, sorted.
func (s *Source) Jurisdictions() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus dir: %w", err)
	}
	seen := make(map[string]struct{})
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		for _, known := range extensions {
			if ext == known {
				seen[strings.TrimSuffix(e.Name(), ext)] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for j := range seen {
		out = append(out, j)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Source) find(jurisdiction string) (string, error) {
	for _, ext := range extensions {
		path := filepath.Join(s.dir, jurisdiction+ext)
		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("failed to stat corpus file: %w", err)
		}
	}
	return "", fmt.Errorf("%w: %s in %s", ErrCorpusNotFound, jurisdiction, s.dir)
}

// LoadFile parses a corpus file. Documents without a jurisdiction inherit
// the given one. Decoding and schema errors wrap errkind.ErrMalformedDocument.
func LoadFile(path, jurisdiction string) ([]Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCorpusNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat corpus file: %w", err)
	}
	if info.Size() > maxCorpusFileSize {
		return nil, fmt.Errorf("%w: corpus file %s exceeds %d bytes", errkind.ErrMalformedDocument, path, maxCorpusFileSize)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is resolved inside the corpus dir
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}

	var records []record
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &records)
	default:
		err = json.Unmarshal(data, &records)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", errkind.ErrMalformedDocument, path, err)
	}

	docs := make([]Document, 0, len(records))
	for i, r := range records {
		d := r.document(jurisdiction)
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("document %d in %s: %w", i, path, err)
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// Validate checks the fields every document must carry.
func (d Document) Validate() error {
	if d.Title == "" {
		return fmt.Errorf("%w: missing title", errkind.ErrMalformedDocument)
	}
	if strings.TrimSpace(d.Body) == "" {
		return fmt.Errorf("%w: %q has no body", errkind.ErrMalformedDocument, d.Title)
	}
	return nil
}
