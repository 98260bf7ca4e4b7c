package http

import (
	"time"

	"github.com/itsmevijay17/LexiVoice/internal/app"
	"github.com/itsmevijay17/LexiVoice/internal/auditlog"
	"github.com/itsmevijay17/LexiVoice/internal/orchestrator"
	"github.com/itsmevijay17/LexiVoice/internal/synthesis"
	"github.com/itsmevijay17/LexiVoice/internal/telemetry"
	"github.com/itsmevijay17/LexiVoice/internal/translator"
)

// ChatRequest is the request body for POST /api/v1/chat.
type ChatRequest struct {
	Query        string `json:"query"`
	Jurisdiction string `json:"jurisdiction"`
	UserLanguage string `json:"user_language"`
	TopK         int    `json:"top_k"`
	SessionID    string `json:"session_id,omitempty"`
	Speak        bool   `json:"speak"`
}

// VoiceRequest is the request body for POST /api/v1/chat/voice.
type VoiceRequest struct {
	Transcription    string `json:"transcription"`
	DetectedLanguage string `json:"detected_language"`
	Jurisdiction     string `json:"jurisdiction"`
	TopK             int    `json:"top_k"`
	SessionID        string `json:"session_id,omitempty"`
	Speak            bool   `json:"speak"`
}

// ChatResponse is returned by both chat endpoints.
type ChatResponse struct {
	RequestID        string                `json:"request_id"`
	Query            string                `json:"query"`
	Jurisdiction     string                `json:"jurisdiction"`
	Language         string                `json:"language"`
	Answer           string                `json:"answer"`
	Reasoning        string                `json:"reasoning"`
	Sources          []synthesis.SourceRef `json:"sources"`
	Confidence       float64               `json:"confidence"`
	ConfidenceLabel  string                `json:"confidence_label"`
	Degraded         bool                  `json:"degraded"`
	QualityScore     float64               `json:"quality_score"`
	QualityWarnings  []string              `json:"quality_warnings,omitempty"`
	Warnings         []string              `json:"warnings"`
	Hits             []auditlog.HitRef     `json:"hits"`
	TranslatedQuery  string                `json:"translated_query,omitempty"`
	AudioBase64      string                `json:"audio_base64,omitempty"`
	AudioContentType string                `json:"audio_content_type,omitempty"`
	ProcessingTimeMS int64                 `json:"processing_time_ms"`
}

// NewChatResponse flattens a pipeline response for the wire.
func NewChatResponse(r *orchestrator.Response) ChatResponse {
	sources := r.Answer.Sources
	if sources == nil {
		sources = []synthesis.SourceRef{}
	}
	return ChatResponse{
		RequestID:        r.RequestID,
		Query:            r.Answer.Query,
		Jurisdiction:     r.Answer.Jurisdiction,
		Language:         r.Answer.Language,
		Answer:           r.Answer.Answer,
		Reasoning:        r.Answer.Reasoning,
		Sources:          sources,
		Confidence:       r.Answer.Confidence,
		ConfidenceLabel:  r.Answer.ConfidenceLabel,
		Degraded:         r.Degraded,
		QualityScore:     r.Quality.Score,
		QualityWarnings:  r.Quality.Warnings,
		Warnings:         r.Warnings,
		Hits:             r.Hits,
		TranslatedQuery:  r.TranslatedQuery,
		AudioBase64:      r.AudioBase64,
		AudioContentType: r.AudioContentType,
		ProcessingTimeMS: r.ProcessingTime.Milliseconds(),
	}
}

// FeedbackRequest is the request body for POST /api/v1/feedback.
type FeedbackRequest struct {
	QueryID      string `json:"query_id"`
	Rating       int    `json:"rating"`
	Comment      string `json:"comment,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	UserLanguage string `json:"user_language,omitempty"`
}

// FeedbackResponse acknowledges queued feedback.
type FeedbackResponse struct {
	ID        string    `json:"id"`
	QueryID   string    `json:"query_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Stage     string `json:"stage,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// JurisdictionsResponse is the response body for GET /api/v1/jurisdictions.
type JurisdictionsResponse struct {
	Jurisdictions []app.JurisdictionStatus `json:"jurisdictions"`
}

// LanguagesResponse is the response body for GET /api/v1/languages.
type LanguagesResponse struct {
	Default   string                `json:"default"`
	Languages []translator.Language `json:"languages"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status    string                  `json:"status"`
	Version   string                  `json:"version,omitempty"`
	Telemetry *telemetry.HealthStatus `json:"telemetry,omitempty"`
}
