// Package auditlog records answered queries and user feedback to
// write-only sinks.
//
// Logging never blocks or fails a request: records are queued and written
// by a background goroutine, and a full queue drops the record.
package auditlog

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// Channel is the request channel an entry came from.
type Channel string

const (
	ChannelText  Channel = "text"
	ChannelVoice Channel = "voice"
)

// HitRef is a retrieved chunk referenced by an entry.
type HitRef struct {
	ChunkID int     `json:"chunk_id"`
	Score   float64 `json:"score"`
}

// Source is a document shown to the user as the basis of an answer.
type Source struct {
	Title   string  `json:"title"`
	Section string  `json:"section,omitempty"`
	URL     string  `json:"url,omitempty"`
	Score   float64 `json:"relevance_score"`
}

// Entry is one answered query: the answer record as returned to the user
// plus the retrieval diagnostics behind it.
type Entry struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"session_id,omitempty"`
	Jurisdiction    string    `json:"jurisdiction"`
	UserLanguage    string    `json:"user_language"`
	Query           string    `json:"query"`
	Answer          string    `json:"answer"`
	Reasoning       string    `json:"reasoning"`
	Sources         []Source  `json:"sources"`
	Cited           []string  `json:"cited,omitempty"`
	Language        string    `json:"language"`
	Confidence      float64   `json:"confidence"`
	ConfidenceLabel string    `json:"confidence_label,omitempty"`
	Degraded        bool      `json:"degraded"`
	Hits            []HitRef  `json:"hits"`
	ProcessingMS    int64     `json:"processing_ms"`
	Timestamp       time.Time `json:"timestamp"`
	Channel         Channel   `json:"channel"`
}

// Feedback limits.
const (
	MinRating        = 1
	MaxRating        = 5
	MaxCommentLength = 500
)

// ErrInvalidFeedback is wrapped by Feedback.Validate.
var ErrInvalidFeedback = errors.New("invalid feedback")

// Feedback is a user's rating of one answered query.
type Feedback struct {
	ID           string    `json:"id"`
	QueryID      string    `json:"query_id"`
	SessionID    string    `json:"session_id,omitempty"`
	UserLanguage string    `json:"user_language,omitempty"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Validate checks the rating range, the comment length and that a query
// is referenced.
func (f Feedback) Validate() error {
	switch {
	case f.QueryID == "":
		return fmt.Errorf("%w: query_id is required", ErrInvalidFeedback)
	case f.Rating < MinRating || f.Rating > MaxRating:
		return fmt.Errorf("%w: rating %d outside %d-%d", ErrInvalidFeedback, f.Rating, MinRating, MaxRating)
	case utf8.RuneCountInString(f.Comment) > MaxCommentLength:
		return fmt.Errorf("%w: comment longer than %d characters", ErrInvalidFeedback, MaxCommentLength)
	}
	return nil
}

// Sink persists records.
type Sink interface {
	Write(ctx context.Context, e Entry) error
	WriteFeedback(ctx context.Context, f Feedback) error
	Close() error
}

// Logger accepts records without blocking.
type Logger interface {
	Enqueue(e Entry) bool
	EnqueueFeedback(f Feedback) bool
	Close() error
}

// Nop discards records.
type Nop struct{}

// Enqueue discards e.
func (Nop) Enqueue(Entry) bool { return true }

// EnqueueFeedback discards f.
func (Nop) EnqueueFeedback(Feedback) bool { return true }

// Close does nothing.
func (Nop) Close() error { return nil }
