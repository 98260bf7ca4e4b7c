package orchestrator

import (
	"time"

	"github.com/itsmevijay17/LexiVoice/internal/auditlog"
	"github.com/itsmevijay17/LexiVoice/internal/synthesis"
)

// Stage is a step of the pipeline.
type Stage string

const (
	StageReceive      Stage = "receive"
	StageTranslateIn  Stage = "translate_in"
	StageRetrieve     Stage = "retrieve"
	StageSynthesize   Stage = "synthesize"
	StageTranslateOut Stage = "translate_out"
	StageSpeak        Stage = "speak"
	StageLog          Stage = "log"
	StageRespond      Stage = "respond"
)

// AllStages returns all stages in execution order.
func AllStages() []Stage {
	return []Stage{
		StageReceive, StageTranslateIn, StageRetrieve, StageSynthesize,
		StageTranslateOut, StageSpeak, StageLog, StageRespond,
	}
}

// StageStatus is the outcome of a stage.
type StageStatus string

const (
	StatusCompleted StageStatus = "completed"
	StatusDegraded  StageStatus = "degraded"
	StatusFailed    StageStatus = "failed"
	StatusSkipped   StageStatus = "skipped"
)

// StageTiming records how a stage went.
type StageTiming struct {
	Stage    Stage         `json:"stage"`
	Status   StageStatus   `json:"status"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// Request is a normalized question.
type Request struct {
	Query        string           `json:"query"`
	Jurisdiction string           `json:"jurisdiction"`
	UserLanguage string           `json:"user_language"`
	TopK         int              `json:"top_k"`
	Channel      auditlog.Channel `json:"channel"`
	SessionID    string           `json:"session_id,omitempty"`
	Speak        bool             `json:"speak"`
}

// VoiceRequest is a transcribed spoken question.
type VoiceRequest struct {
	Transcription    string `json:"transcription"`
	DetectedLanguage string `json:"detected_language"`
	Jurisdiction     string `json:"jurisdiction"`
	TopK             int    `json:"top_k"`
	SessionID        string `json:"session_id,omitempty"`
	Speak            bool   `json:"speak"`
}

// FromVoice normalizes a voice request.
func FromVoice(v VoiceRequest) Request {
	return Request{
		Query:        v.Transcription,
		Jurisdiction: v.Jurisdiction,
		UserLanguage: v.DetectedLanguage,
		TopK:         v.TopK,
		Channel:      auditlog.ChannelVoice,
		SessionID:    v.SessionID,
		Speak:        v.Speak,
	}
}

// Response is the pipeline's answer to a Request.
type Response struct {
	RequestID        string                 `json:"request_id"`
	Answer           synthesis.AnswerRecord `json:"answer"`
	Degraded         bool                   `json:"degraded"`
	Quality          synthesis.Quality      `json:"quality"`
	Hits             []auditlog.HitRef      `json:"hits"`
	TranslatedQuery  string                 `json:"translated_query,omitempty"`
	AudioBase64      string                 `json:"audio_base64,omitempty"`
	AudioContentType string                 `json:"audio_content_type,omitempty"`
	Warnings         []string               `json:"warnings"`
	ProcessingTime   time.Duration          `json:"processing_time_ns"`
	Stages           []StageTiming          `json:"stages"`
}
