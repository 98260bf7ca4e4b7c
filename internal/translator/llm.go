package translator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// LLMConfig configures translation through an OpenAI-compatible chat model.
type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	// Options are appended to the client options.
	Options []option.RequestOption
}

// LLM translates by prompting a chat model.
type LLM struct {
	client openai.Client
	model  string
}

// NewLLM creates the chat-model provider.
func NewLLM(cfg LLMConfig) (*LLM, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm translation requires a model")
	}
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, cfg.Options...)
	return &LLM{client: openai.NewClient(opts...), model: cfg.Model}, nil
}

// Name returns "llm".
func (l *LLM) Name() string { return "llm" }

// Translate asks the model for the translation only.
func (l *LLM) Translate(ctx context.Context, text, source, target string) (string, error) {
	from := "the source language"
	if source != AutoDetect {
		from = languageLabel(source)
	}
	system := fmt.Sprintf(
		"You are a translator. Translate the user's text from %s to %s. "+
			"Preserve legal terms, numbers and names. Reply with the translation only.",
		from, languageLabel(target))
	return l.complete(ctx, system, text)
}

// DetectLanguage asks the model for an ISO 639-1 code.
func (l *LLM) DetectLanguage(ctx context.Context, text string) (Detection, error) {
	out, err := l.complete(ctx,
		"Identify the language of the user's text. Reply with its two-letter ISO 639-1 code only.", text)
	if err != nil {
		return Detection{}, err
	}
	code := strings.ToLower(strings.Trim(strings.TrimSpace(out), `."'`))
	if len(code) != 2 {
		return Detection{}, fmt.Errorf("unexpected language code %s", strconv.Quote(out))
	}
	return Detection{Language: code, Confidence: 0.5}, nil
}

func (l *LLM) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := l.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: l.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResult
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func languageLabel(code string) string {
	if name, ok := SupportedLanguages[code]; ok {
		return name
	}
	return code
}
