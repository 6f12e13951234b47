package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers"
)

func testConfig(baseURL string) providers.ProviderConfig {
	return providers.ProviderConfig{
		Kind:        providers.KindGroq,
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Model:       "llama-3.3-70b-versatile",
		MaxTokens:   1024,
		Temperature: 0.1,
		Timeout:     5 * time.Second,
		Enabled:     true,
	}
}

func TestNewAdapter(t *testing.T) {
	adapter := NewAdapter(providers.KindGroq, nil)

	if adapter == nil {
		t.Fatal("NewAdapter() returned nil")
	}
	if adapter.Kind() != providers.KindGroq {
		t.Errorf("Kind() = %s, want groq", adapter.Kind())
	}
	if adapter.httpClient == nil {
		t.Error("httpClient not initialized")
	}
}

func TestAdapter_BaseURL(t *testing.T) {
	tests := []struct {
		name string
		kind providers.Kind
		cfg  providers.ProviderConfig
		want string
	}{
		{"groq default", providers.KindGroq, providers.ProviderConfig{}, defaultGroqBaseURL},
		{"openai default", providers.KindOpenAI, providers.ProviderConfig{}, defaultOpenAIBaseURL},
		{"override", providers.KindOpenAI, providers.ProviderConfig{BaseURL: "http://local"}, "http://local"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdapter(tt.kind, nil)
			if got := a.baseURL(tt.cfg); got != tt.want {
				t.Errorf("baseURL() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAdapter_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST request, got %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}

		body, _ := io.ReadAll(r.Body)
		var req map[string]interface{}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("request is not JSON: %v", err)
		}
		if msgs, _ := req["messages"].([]interface{}); len(msgs) != 2 {
			t.Errorf("messages = %v, want system + user", req["messages"])
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "llama-3.3-70b-versatile",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"title\":\"x\"}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20}
		}`))
	}))
	defer server.Close()

	adapter := NewAdapter(providers.KindGroq, nil)
	resp := adapter.Complete(context.Background(), testConfig(server.URL), providers.AIRequest{
		Prompt:       "extract",
		SystemPrompt: "you extract tenders",
	})

	if !resp.Success {
		t.Fatalf("Complete() failed: %s", resp.Error)
	}
	if resp.Provider != "groq" {
		t.Errorf("Provider = %s, want groq", resp.Provider)
	}
	if resp.Content != `{"title":"x"}` {
		t.Errorf("Content = %s", resp.Content)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 8 || resp.Usage.TotalTokens != 20 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
}

func TestAdapter_Complete_Images(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"type":"image_url"`) {
			t.Errorf("image part missing: %s", body)
		}
		if !strings.Contains(string(body), "data:image/png;base64,AAAA") {
			t.Errorf("data URL missing: %s", body)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}],"usage":{}}`))
	}))
	defer server.Close()

	adapter := NewAdapter(providers.KindOpenAI, nil)
	cfg := testConfig(server.URL)
	cfg.Kind = providers.KindOpenAI

	resp := adapter.Complete(context.Background(), cfg, providers.AIRequest{
		Prompt: "read",
		Images: []providers.Image{{MimeType: "image/png", Data: "AAAA"}},
	})
	if !resp.Success {
		t.Fatalf("Complete() failed: %s", resp.Error)
	}
	if resp.Model != cfg.Model {
		t.Errorf("Model = %s, want fallback to config model", resp.Model)
	}
}

func TestAdapter_Complete_Error(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantSubstr string
	}{
		{"bad request", http.StatusBadRequest, `{"error":{"message":"Invalid request","type":"invalid_request_error"}}`, "Invalid request"},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`, "slow down"},
		{"plain body", http.StatusBadGateway, `upstream gone`, "upstream gone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			resp := NewAdapter(providers.KindGroq, nil).Complete(context.Background(), testConfig(server.URL), providers.AIRequest{Prompt: "x"})

			if resp.Success {
				t.Fatal("Expected failure response")
			}
			if resp.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", resp.StatusCode, tt.status)
			}
			if !strings.Contains(resp.Error, tt.wantSubstr) {
				t.Errorf("Error = %q, want substring %q", resp.Error, tt.wantSubstr)
			}
		})
	}
}

func TestAdapter_Complete_MalformedReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	resp := NewAdapter(providers.KindGroq, nil).Complete(context.Background(), testConfig(server.URL), providers.AIRequest{Prompt: "x"})
	if resp.Success {
		t.Fatal("Expected failure for malformed reply")
	}
}

func TestAdapter_Complete_RejectsDocuments(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	resp := NewAdapter(providers.KindGroq, nil).Complete(context.Background(), testConfig(server.URL), providers.AIRequest{
		Prompt:    "x",
		Documents: []providers.Document{{MimeType: "application/pdf", Data: "JVBERi0="}},
	})
	if resp.Success {
		t.Fatal("Expected failure for document input")
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("no network call expected for unsupported input")
	}
}

func TestAdapter_Complete_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	resp := NewAdapter(providers.KindGroq, nil).Complete(ctx, testConfig(server.URL), providers.AIRequest{Prompt: "x"})
	if resp.Success {
		t.Fatal("Expected failure on deadline")
	}
}

func TestBuildChatRequest(t *testing.T) {
	adapter := NewAdapter(providers.KindGroq, nil)
	temp := 0.7

	req := adapter.buildChatRequest(testConfig(""), providers.AIRequest{
		Prompt:      "hello",
		MaxTokens:   50,
		Temperature: &temp,
	})

	if req.Model != "llama-3.3-70b-versatile" {
		t.Errorf("Model = %s", req.Model)
	}
	if len(req.Messages) != 1 {
		t.Fatalf("Messages = %d, want 1 without system prompt", len(req.Messages))
	}
	if req.MaxTokens == nil || *req.MaxTokens != 50 {
		t.Error("request MaxTokens should override config")
	}
	if req.Temperature == nil || *req.Temperature != 0.7 {
		t.Error("request Temperature should override config")
	}
}
