package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers"
)

func geminiConfig(baseURL string) providers.ProviderConfig {
	return providers.ProviderConfig{
		Kind:         providers.KindGemini,
		APIKey:       "gem-key",
		BaseURL:      baseURL,
		Model:        "gemini-1.5-flash",
		MaxTokens:    2048,
		Temperature:  0.2,
		Timeout:      5 * time.Second,
		Enabled:      true,
		Capabilities: providers.Capabilities{Vision: true, Bilingual: true, NativePDF: true},
	}
}

func TestAdapter_Complete(t *testing.T) {
	var captured GenerateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "gem-key", r.URL.Query().Get("key"))
		assert.Empty(t, r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"ref\":"}, {"text": "\"T-1\"}"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 30, "candidatesTokenCount": 10, "totalTokenCount": 40}
		}`))
	}))
	defer server.Close()

	resp := NewAdapter(nil).Complete(context.Background(), geminiConfig(server.URL), providers.AIRequest{
		Prompt:       "extract",
		SystemPrompt: "system",
		Images:       []providers.Image{{MimeType: "image/jpeg", Data: "BBBB"}},
		Documents:    []providers.Document{{MimeType: "application/pdf", Data: "JVBERi0="}},
	})

	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, `{"ref":"T-1"}`, resp.Content)
	assert.Equal(t, "gemini", resp.Provider)
	assert.Equal(t, providers.Usage{InputTokens: 30, OutputTokens: 10, TotalTokens: 40}, resp.Usage)

	require.Len(t, captured.Contents, 1)
	parts := captured.Contents[0].Parts
	require.Len(t, parts, 3)
	assert.Equal(t, "extract", parts[0].Text)
	assert.Equal(t, "image/jpeg", parts[1].InlineData.MimeType)
	assert.Equal(t, "application/pdf", parts[2].InlineData.MimeType)
	require.NotNil(t, captured.SystemInstruction)
	assert.Equal(t, "system", captured.SystemInstruction.Parts[0].Text)
	assert.Equal(t, 2048, captured.GenerationConfig.MaxOutputTokens)
}

func TestAdapter_Complete_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error": {"code": 503, "message": "model overloaded", "status": "UNAVAILABLE"}}`))
	}))
	defer server.Close()

	resp := NewAdapter(nil).Complete(context.Background(), geminiConfig(server.URL), providers.AIRequest{Prompt: "x"})

	assert.False(t, resp.Success)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, resp.Error, "model overloaded")
	assert.NotContains(t, resp.Error, "gem-key")
}

func TestAdapter_Complete_Blocked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": [], "promptFeedback": {"blockReason": "SAFETY"}}`))
	}))
	defer server.Close()

	resp := NewAdapter(nil).Complete(context.Background(), geminiConfig(server.URL), providers.AIRequest{Prompt: "x"})

	assert.False(t, resp.Success)
	assert.True(t, strings.Contains(resp.Error, "SAFETY"))
}

func TestAdapter_Complete_DocumentByURLRejected(t *testing.T) {
	resp := NewAdapter(nil).Complete(context.Background(), geminiConfig("http://127.0.0.1:1"), providers.AIRequest{
		Prompt:    "x",
		Documents: []providers.Document{{MimeType: "application/pdf", URL: "https://example.com/a.pdf"}},
	})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "inlined")
}

func TestAdapter_Endpoint(t *testing.T) {
	a := NewAdapter(nil)
	cfg := geminiConfig("")
	cfg.APIKey = "k&y"

	got := a.endpoint(cfg)
	assert.True(t, strings.HasPrefix(got, defaultBaseURL+"/models/gemini-1.5-flash:generateContent?key="))
	assert.Contains(t, got, "k%26y")
}
