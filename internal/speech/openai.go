package speech

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIConfig configures OpenAI-compatible speech.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Voice   string
	Model   string
	Options []option.RequestOption
}

// OpenAI speaks through the audio/speech endpoint.
type OpenAI struct {
	client openai.Client
	voice  string
	model  string
}

// NewOpenAI creates the OpenAI speaker.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.Voice == "" {
		cfg.Voice = string(openai.AudioSpeechNewParamsVoiceAlloy)
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SpeechModelTTS1)
	}
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, cfg.Options...)
	return &OpenAI{client: openai.NewClient(opts...), voice: cfg.Voice, model: cfg.Model}, nil
}

// Name returns "openai".
func (*OpenAI) Name() string { return "openai" }

// Speak returns MP3 audio for text. The model infers the language.
func (o *OpenAI) Speak(ctx context.Context, text, _ string) (Audio, error) {
	resp, err := o.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(o.model),
		Voice:          openai.AudioSpeechNewParamsVoice(o.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return Audio{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Audio{}, fmt.Errorf("reading speech response: %w", err)
	}
	return Audio{Data: data, ContentType: "audio/mpeg"}, nil
}
