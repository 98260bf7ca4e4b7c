package synthesis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, status int, content string, hits *atomic.Int32, seen *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 0,
			"model":   "llama-3.1-8b-instant",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
}

func TestOpenAI_Complete(t *testing.T) {
	var hits atomic.Int32
	var body map[string]any
	reply := `{"answer":"a","reasoning":"r","sources":[],"confidence":"low"}`
	srv := chatServer(t, http.StatusOK, reply, &hits, &body)
	defer srv.Close()

	llm, err := NewOpenAI(OpenAIConfig{
		BaseURL:     srv.URL + "/",
		APIKey:      "test",
		Model:       "llama-3.1-8b-instant",
		Temperature: 0.3,
		Options:     []option.RequestOption{option.WithHTTPClient(srv.Client())},
	})
	require.NoError(t, err)

	out, err := llm.Complete(context.Background(), Prompt{System: "sys", User: "user"})
	require.NoError(t, err)
	assert.Equal(t, reply, out)

	assert.Equal(t, "llama-3.1-8b-instant", body["model"])
	assert.InDelta(t, 0.3, body["temperature"], 1e-9)
	assert.InDelta(t, 1000, body["max_tokens"], 1e-9)
	format, ok := body["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_schema", format["type"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestOpenAI_NoRetries(t *testing.T) {
	var hits atomic.Int32
	srv := chatServer(t, http.StatusServiceUnavailable, "", &hits, nil)
	defer srv.Close()

	llm, err := NewOpenAI(OpenAIConfig{
		BaseURL: srv.URL + "/",
		APIKey:  "test",
		Model:   "m",
		Options: []option.RequestOption{option.WithHTTPClient(srv.Client())},
	})
	require.NoError(t, err)

	_, err = llm.Complete(context.Background(), Prompt{User: "u"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "status 503")
	assert.Equal(t, int32(1), hits.Load())
}

func TestNewOpenAI_Validation(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{})
	assert.Error(t, err)

	_, err = NewOpenAI(OpenAIConfig{Model: "m", ResponseFormat: "xml"})
	assert.ErrorContains(t, err, "unknown response format")
}
