package partition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"time"

	"github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/itsmevijay17/LexiVoice/internal/chunker"
	"github.com/itsmevijay17/LexiVoice/internal/errkind"
)

const instrumentationName = "github.com/itsmevijay17/LexiVoice/internal/partition"

const (
	formatVersion      = 1
	manifestCollection = "_manifest"
	artifactSuffix     = ".idx.gob.gz"
)

var errEmbeddingRequired = errors.New("partition documents carry precomputed embeddings")

// rejectEmbedding is installed on every collection; all documents are
// added with their vectors, so chromem must never embed on its own.
func rejectEmbedding(context.Context, string) ([]float32, error) {
	return nil, errEmbeddingRequired
}

// manifest describes an artifact. It is stored alongside the chunks in
// the same export so both are read and written together.
type manifest struct {
	Jurisdiction  string    `json:"jurisdiction"`
	Chunks        int       `json:"chunks"`
	Dimension     int       `json:"dimension"`
	FormatVersion int       `json:"format_version"`
	Model         string    `json:"model,omitempty"`
	BuiltAt       time.Time `json:"built_at"`
}

// Store persists indexes as one gzip-compressed chromem-go export per
// jurisdiction.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates the index directory if needed.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("index directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Path returns the artifact path for a jurisdiction.
func (s *Store) Path(jurisdiction string) string {
	return filepath.Join(s.dir, jurisdiction+artifactSuffix)
}

// Exists reports whether an artifact is present for the jurisdiction.
func (s *Store) Exists(jurisdiction string) bool {
	info, err := os.Stat(s.Path(jurisdiction))
	return err == nil && info.Mode().IsRegular()
}

// Save writes idx to a temporary file in the index directory and renames
// it into place, so readers see either the previous artifact or the new
// one and never a partial write.
func (s *Store) Save(ctx context.Context, idx *Index, model string) (err error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "partition.Save")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("jurisdiction", idx.jurisdiction), attribute.Int("chunks", idx.Len()))

	if err := ValidateJurisdiction(idx.jurisdiction); err != nil {
		return err
	}

	db, err := toDB(ctx, idx, model)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+idx.jurisdiction+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := db.ExportToWriter(tmp, true, "", idx.jurisdiction, manifestCollection); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close index: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path(idx.jurisdiction)); err != nil {
		return fmt.Errorf("failed to rename index: %w", err)
	}
	committed = true
	syncDir(s.dir)

	s.logger.Info("index persisted",
		zap.String("jurisdiction", idx.jurisdiction),
		zap.Int("chunks", idx.Len()),
		zap.String("path", s.Path(idx.jurisdiction)),
	)
	return nil
}

func toDB(ctx context.Context, idx *Index, model string) (*chromem.DB, error) {
	db := chromem.NewDB()

	coll, err := db.CreateCollection(idx.jurisdiction, map[string]string{
		"format_version": strconv.Itoa(formatVersion),
	}, rejectEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	if idx.Len() > 0 {
		docs := make([]chromem.Document, idx.Len())
		for i, ch := range idx.chunks {
			docs[i] = chromem.Document{
				ID:        strconv.Itoa(i),
				Metadata:  chunkMetadata(ch),
				Embedding: slices.Clone(idx.row(i)),
				Content:   ch.Text,
			}
		}
		if err := coll.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return nil, fmt.Errorf("failed to add chunks: %w", err)
		}
	}

	data, err := json.Marshal(manifest{
		Jurisdiction:  idx.jurisdiction,
		Chunks:        idx.Len(),
		Dimension:     idx.dimension,
		FormatVersion: formatVersion,
		Model:         model,
		BuiltAt:       time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	mcoll, err := db.CreateCollection(manifestCollection, nil, rejectEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest collection: %w", err)
	}
	if err := mcoll.AddDocument(ctx, chromem.Document{
		ID:        idx.jurisdiction,
		Content:   string(data),
		Embedding: []float32{1},
	}); err != nil {
		return nil, fmt.Errorf("failed to add manifest: %w", err)
	}
	return db, nil
}

// Load reads a persisted index. A missing artifact wraps
// errkind.ErrIndexNotFound; anything unreadable or inconsistent wraps
// errkind.ErrIndexCorrupt.
func (s *Store) Load(ctx context.Context, jurisdiction string) (idx *Index, err error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "partition.Load")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("jurisdiction", jurisdiction))

	if err := ValidateJurisdiction(jurisdiction); err != nil {
		return nil, err
	}

	path := s.Path(jurisdiction)
	f, err := os.Open(path) // #nosec G304 -- jurisdiction is validated above
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errkind.ErrIndexNotFound, jurisdiction)
		}
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer f.Close()

	db := chromem.NewDB()
	if err := db.ImportFromReader(f, ""); err != nil {
		return nil, corrupt(jurisdiction, "decode: %v", err)
	}

	man, err := readManifest(ctx, db, jurisdiction)
	if err != nil {
		return nil, err
	}

	coll := db.GetCollection(jurisdiction, rejectEmbedding)
	if coll == nil {
		return nil, corrupt(jurisdiction, "collection missing")
	}
	if coll.Count() != man.Chunks {
		return nil, corrupt(jurisdiction, "%d vectors but manifest lists %d chunks", coll.Count(), man.Chunks)
	}

	chunks := make([]chunker.Chunk, man.Chunks)
	vectors := make([][]float32, man.Chunks)
	for i := 0; i < man.Chunks; i++ {
		doc, err := coll.GetByID(ctx, strconv.Itoa(i))
		if err != nil {
			return nil, corrupt(jurisdiction, "row %d: %v", i, err)
		}
		if len(doc.Embedding) != man.Dimension {
			return nil, corrupt(jurisdiction, "row %d has dimension %d, want %d", i, len(doc.Embedding), man.Dimension)
		}
		ch, err := chunkFromDocument(doc, i)
		if err != nil {
			return nil, corrupt(jurisdiction, "row %d: %v", i, err)
		}
		chunks[i] = ch
		vectors[i] = doc.Embedding
	}

	idx, err = NewIndex(jurisdiction, man.Dimension, chunks, vectors)
	if err != nil {
		return nil, corrupt(jurisdiction, "%v", err)
	}
	return idx, nil
}

func readManifest(ctx context.Context, db *chromem.DB, jurisdiction string) (manifest, error) {
	var man manifest
	mcoll := db.GetCollection(manifestCollection, rejectEmbedding)
	if mcoll == nil {
		return man, corrupt(jurisdiction, "manifest missing")
	}
	doc, err := mcoll.GetByID(ctx, jurisdiction)
	if err != nil {
		return man, corrupt(jurisdiction, "manifest: %v", err)
	}
	if err := json.Unmarshal([]byte(doc.Content), &man); err != nil {
		return man, corrupt(jurisdiction, "manifest: %v", err)
	}
	switch {
	case man.FormatVersion != formatVersion:
		return man, corrupt(jurisdiction, "unsupported format version %d", man.FormatVersion)
	case man.Jurisdiction != jurisdiction:
		return man, corrupt(jurisdiction, "artifact belongs to %q", man.Jurisdiction)
	case man.Chunks < 0 || man.Dimension <= 0:
		return man, corrupt(jurisdiction, "invalid manifest counts")
	}
	return man, nil
}

func corrupt(jurisdiction, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", errkind.ErrIndexCorrupt, jurisdiction, fmt.Sprintf(format, args...))
}

func chunkMetadata(ch chunker.Chunk) map[string]string {
	return map[string]string{
		"title":             ch.Title,
		"section":           ch.Section,
		"category":          ch.Category,
		"source_url":        ch.SourceURL,
		"jurisdiction":      ch.Jurisdiction,
		"ordinal":           strconv.Itoa(ch.Ordinal),
		"total_in_document": strconv.Itoa(ch.TotalInDocument),
	}
}

func chunkFromDocument(doc chromem.Document, row int) (chunker.Chunk, error) {
	ordinal, err := strconv.Atoi(doc.Metadata["ordinal"])
	if err != nil {
		return chunker.Chunk{}, fmt.Errorf("ordinal: %w", err)
	}
	total, err := strconv.Atoi(doc.Metadata["total_in_document"])
	if err != nil {
		return chunker.Chunk{}, fmt.Errorf("total_in_document: %w", err)
	}
	return chunker.Chunk{
		ID:              row,
		Text:            doc.Content,
		Jurisdiction:    doc.Metadata["jurisdiction"],
		Title:           doc.Metadata["title"],
		Section:         doc.Metadata["section"],
		Category:        doc.Metadata["category"],
		SourceURL:       doc.Metadata["source_url"],
		Ordinal:         ordinal,
		TotalInDocument: total,
	}, nil
}

// syncDir flushes a directory entry after a rename. Failures are ignored
// because not every platform supports syncing directories.
func syncDir(dir string) {
	d, err := os.Open(dir) // #nosec G304 -- configured index directory
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
