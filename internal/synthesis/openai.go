package synthesis

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// Response formats.
const (
	FormatJSONSchema = "json_schema"
	FormatJSONObject = "json_object"
	FormatText       = "text"
)

// OpenAIConfig configures an OpenAI-compatible chat endpoint such as Groq.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int64
	// ResponseFormat is one of json_schema, json_object or text.
	ResponseFormat string
	Options        []option.RequestOption
}

// OpenAI is an LLM backed by a chat completions endpoint.
type OpenAI struct {
	client openai.Client
	cfg    OpenAIConfig
}

// answerSchema is the strict schema a reply must follow.
var answerSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"answer":     map[string]any{"type": "string"},
		"reasoning":  map[string]any{"type": "string"},
		"sources":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"confidence": map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
	},
	"required":             []string{"answer", "reasoning", "sources", "confidence"},
	"additionalProperties": false,
}

// NewOpenAI creates the client. SDK retries are disabled; each Complete is
// exactly one request.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.Model == "" {
		return nil, errors.New("synthesis model is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.ResponseFormat == "" {
		cfg.ResponseFormat = FormatJSONSchema
	}
	switch cfg.ResponseFormat {
	case FormatJSONSchema, FormatJSONObject, FormatText:
	default:
		return nil, fmt.Errorf("unknown response format %q", cfg.ResponseFormat)
	}

	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, cfg.Options...)

	return &OpenAI{client: openai.NewClient(opts...), cfg: cfg}, nil
}

// Complete sends p and returns the first choice's content.
func (o *OpenAI) Complete(ctx context.Context, p Prompt) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: o.cfg.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.System),
			openai.UserMessage(p.User),
		},
		Temperature: openai.Float(o.cfg.Temperature),
		MaxTokens:   openai.Int(o.cfg.MaxTokens),
	}
	switch o.cfg.ResponseFormat {
	case FormatJSONSchema:
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "legal_answer",
					Strict: openai.Bool(true),
					Schema: answerSchema,
				},
			},
		}
	case FormatJSONObject:
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("model returned status %d: %w", apiErr.StatusCode, err)
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
