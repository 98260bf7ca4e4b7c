// Package speech converts answer text to audio.
package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/itsmevijay17/LexiVoice/internal/errkind"
)

// ErrEmptyText is returned when there is nothing to speak.
var ErrEmptyText = errors.New("cannot convert empty text to speech")

// Audio is synthesized speech.
type Audio struct {
	Data        []byte
	ContentType string
}

// Base64 returns the audio as standard base64.
func (a Audio) Base64() string {
	return base64.StdEncoding.EncodeToString(a.Data)
}

// Speaker synthesizes speech.
type Speaker interface {
	Name() string
	Speak(ctx context.Context, text, language string) (Audio, error)
}

// Config selects and configures a speaker.
type Config struct {
	// Provider is elevenlabs or openai. Empty disables speech.
	Provider   string
	APIKey     string
	BaseURL    string
	VoiceID    string
	Model      string
	MaxChars   int
	Timeout    time.Duration
	ElevenLabs ElevenLabsConfig
}

// New builds the configured speaker, or nil when speech is disabled.
func New(cfg Config) (Speaker, error) {
	var (
		s   Speaker
		err error
	)
	switch cfg.Provider {
	case "":
		return nil, nil
	case "elevenlabs":
		ec := cfg.ElevenLabs
		ec.APIKey = cfg.APIKey
		ec.VoiceID = cfg.VoiceID
		ec.BaseURL = cfg.BaseURL
		ec.Model = cfg.Model
		ec.Timeout = cfg.Timeout
		s, err = NewElevenLabs(ec)
	case "openai":
		s, err = NewOpenAI(OpenAIConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Voice: cfg.VoiceID, Model: cfg.Model})
	default:
		err = fmt.Errorf("unknown speech provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return Limit(s, cfg.MaxChars), nil
}

type limited struct {
	Speaker
	maxChars int
}

// Limit truncates text longer than maxChars runes before speaking it and
// classifies provider failures as external service errors.
func Limit(s Speaker, maxChars int) Speaker {
	if maxChars <= 0 {
		maxChars = 2500
	}
	return &limited{Speaker: s, maxChars: maxChars}
}

func (l *limited) Speak(ctx context.Context, text, language string) (Audio, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Audio{}, ErrEmptyText
	}
	if r := []rune(text); len(r) > l.maxChars {
		text = string(r[:l.maxChars])
	}
	audio, err := l.Speaker.Speak(ctx, text, language)
	if err != nil {
		return Audio{}, fmt.Errorf("%w: %s speech: %w", errkind.ErrExternalService, l.Speaker.Name(), err)
	}
	return audio, nil
}
