// Package chunker splits legal documents into bounded, sentence-aligned
// passages that carry their document's provenance.
package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/itsmevijay17/LexiVoice/internal/corpus"
	"github.com/itsmevijay17/LexiVoice/internal/errkind"
)

// DefaultMaxChars is the default maximum number of characters per chunk.
const DefaultMaxChars = 500

// DefaultOverlap is the default number of characters carried over from the
// tail of one chunk into the next.
const DefaultOverlap = 50

// Chunk is a passage of a document. ID is the chunk's row in its partition
// index and is only meaningful after ChunkAll.
type Chunk struct {
	ID              int    `json:"id"`
	Text            string `json:"text"`
	Jurisdiction    string `json:"jurisdiction"`
	Title           string `json:"title"`
	Section         string `json:"section,omitempty"`
	Category        string `json:"category,omitempty"`
	SourceURL       string `json:"source_url,omitempty"`
	Ordinal         int    `json:"ordinal"`
	TotalInDocument int    `json:"total_in_document"`
}

// Chunker packs sentences greedily into chunks.
type Chunker struct {
	maxChars int
	overlap  int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithMaxChars sets the maximum chunk length in characters.
func WithMaxChars(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxChars = n
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in characters.
func WithOverlap(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.overlap = n
		}
	}
}

// New creates a Chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		maxChars: DefaultMaxChars,
		overlap:  DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	// Overlap must leave room for at least some new text.
	if c.overlap >= c.maxChars {
		c.overlap = c.maxChars / 4
	}
	return c
}

// MaxChars returns the configured maximum chunk length.
func (c *Chunker) MaxChars() int { return c.maxChars }

// Overlap returns the configured overlap length.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits one document. Ordinals start at 0 and IDs are left at 0.
func (c *Chunker) Chunk(doc corpus.Document) ([]Chunk, error) {
	body := Clean(doc.Body)
	if body == "" {
		return nil, fmt.Errorf("%w: %q has no body", errkind.ErrMalformedDocument, doc.Title)
	}

	texts := c.pack(SplitSentences(body))
	chunks := make([]Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = Chunk{
			Text:            text,
			Jurisdiction:    doc.Jurisdiction,
			Title:           doc.Title,
			Section:         doc.Section,
			Category:        doc.Category,
			SourceURL:       doc.SourceURL,
			Ordinal:         i,
			TotalInDocument: len(texts),
		}
	}
	return chunks, nil
}

// ChunkAll splits every document and numbers the resulting chunks
// 0..N-1 in document order.
func (c *Chunker) ChunkAll(docs []corpus.Document) ([]Chunk, error) {
	var all []Chunk
	for i, doc := range docs {
		chunks, err := c.Chunk(doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		for _, ch := range chunks {
			ch.ID = len(all)
			all = append(all, ch)
		}
	}
	return all, nil
}

func (c *Chunker) pack(sentences []string) []string {
	var (
		out     []string
		current string
	)
	for _, s := range sentences {
		if current == "" {
			current = s
			continue
		}
		if runeLen(current)+1+runeLen(s) <= c.maxChars {
			current += " " + s
			continue
		}

		out = append(out, current)
		current = s
		if runeLen(s) > c.maxChars {
			continue
		}
		if tail := c.tail(out[len(out)-1]); tail != "" && runeLen(tail)+1+runeLen(s) <= c.maxChars {
			current = tail + " " + s
		}
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

// tail returns up to overlap trailing characters of text, starting at a
// word boundary when one is available.
func (c *Chunker) tail(text string) string {
	if c.overlap == 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= c.overlap {
		return text
	}
	start := len(runes) - c.overlap
	if !unicode.IsSpace(runes[start-1]) {
		boundary := -1
		for i := start; i < len(runes); i++ {
			if unicode.IsSpace(runes[i]) {
				boundary = i + 1
				break
			}
		}
		// Never carry a word fragment.
		if boundary < 0 {
			return ""
		}
		start = boundary
	}
	return strings.TrimSpace(string(runes[start:]))
}

// Clean collapses whitespace runs into single spaces, drops non-printable
// characters and trims the result.
func Clean(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			space = true
		case !unicode.IsPrint(r):
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SplitSentences splits cleaned text after '.', '!' or '?' when followed by
// whitespace. Terminal punctuation stays with its sentence.
func SplitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(text)
	for i := 0; i < len(runes)-1; i++ {
		switch runes[i] {
		case '.', '!', '?':
			if unicode.IsSpace(runes[i+1]) {
				if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
