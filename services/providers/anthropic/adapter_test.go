package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers"
)

func anthropicConfig(baseURL string) providers.ProviderConfig {
	return providers.ProviderConfig{
		Kind:         providers.KindAnthropic,
		APIKey:       "sk-ant-test",
		BaseURL:      baseURL,
		Model:        "claude-3-5-sonnet-20241022",
		MaxTokens:    1024,
		Temperature:  0,
		Timeout:      5 * time.Second,
		Enabled:      true,
		Capabilities: providers.Capabilities{Vision: true, Bilingual: true, NativePDF: true},
	}
}

func TestAdapter_Complete_WithDocument(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))

		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [{"type": "text", "text": "{\"reference\":\"MOH-1\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 1500, "output_tokens": 200}
		}`))
	}))
	defer server.Close()

	resp := NewAdapter(nil).Complete(context.Background(), anthropicConfig(server.URL), providers.AIRequest{
		Prompt:       "extract the tender",
		SystemPrompt: "bilingual extractor",
		Documents:    []providers.Document{{MimeType: "application/pdf", Data: "JVBERi0xLjQ="}},
	})

	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, `{"reference":"MOH-1"}`, resp.Content)
	assert.Equal(t, "anthropic", resp.Provider)
	assert.Equal(t, 1500, resp.Usage.InputTokens)
	assert.Equal(t, 200, resp.Usage.OutputTokens)
	assert.Equal(t, 1700, resp.Usage.TotalTokens)

	msgs := captured["messages"].([]interface{})
	require.Len(t, msgs, 1)
	content := msgs[0].(map[string]interface{})["content"].([]interface{})
	require.Len(t, content, 2)
	assert.Equal(t, "document", content[0].(map[string]interface{})["type"])
	assert.Equal(t, "text", content[1].(map[string]interface{})["type"])
	assert.NotNil(t, captured["system"])
}

func TestAdapter_Complete_ServerError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"overloaded"}}`))
	}))
	defer server.Close()

	resp := NewAdapter(nil).Complete(context.Background(), anthropicConfig(server.URL), providers.AIRequest{Prompt: "x"})

	assert.False(t, resp.Success)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, 1, calls, "SDK retries must be disabled")
}

func TestBuildParams(t *testing.T) {
	temp := 0.3
	params := buildParams(anthropicConfig(""), providers.AIRequest{
		Prompt:      "p",
		Images:      []providers.Image{{MimeType: "image/png", Data: "AAAA"}},
		MaxTokens:   0,
		Temperature: &temp,
	})

	assert.Equal(t, int64(1024), params.MaxTokens)
	require.Len(t, params.Messages, 1)
	assert.Len(t, params.Messages[0].Content, 2)
	assert.Empty(t, params.System)

	cfg := anthropicConfig("")
	cfg.MaxTokens = 0
	params = buildParams(cfg, providers.AIRequest{Prompt: "p"})
	assert.Equal(t, int64(defaultMaxTokens), params.MaxTokens)
}
