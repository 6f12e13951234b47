// Package anthropic implements the messages API through the official SDK.
// PDFs are sent as document blocks, so this provider ingests files natively.
package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers"
)

const defaultMaxTokens = 4096

// Adapter implements providers.Adapter for Anthropic
type Adapter struct {
	httpClient *http.Client
}

// NewAdapter creates an Anthropic adapter
func NewAdapter(httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Adapter{httpClient: httpClient}
}

// Kind returns providers.KindAnthropic
func (a *Adapter) Kind() providers.Kind {
	return providers.KindAnthropic
}

func (a *Adapter) client(cfg providers.ProviderConfig) sdk.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(a.httpClient),
		// retries belong to the orchestrator
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return sdk.NewClient(opts...)
}

// Complete performs a messages request
func (a *Adapter) Complete(ctx context.Context, cfg providers.ProviderConfig, req providers.AIRequest) providers.AIResponse {
	startTime := time.Now()
	name := a.Kind().String()

	params := buildParams(cfg, req)
	client := a.client(cfg)

	msg, err := client.Messages.New(ctx, params)
	if err != nil {
		return providers.Failure(cfg, toProviderError(err), time.Since(startTime))
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return providers.Failure(cfg, providers.NewProviderError(name, "EMPTY_RESPONSE", "reply contained no text", http.StatusOK, true, nil), time.Since(startTime))
	}

	model := string(msg.Model)
	if model == "" {
		model = cfg.Model
	}

	input := int(msg.Usage.InputTokens)
	output := int(msg.Usage.OutputTokens)
	return providers.AIResponse{
		Success:  true,
		Content:  sb.String(),
		Provider: name,
		Model:    model,
		Usage: providers.Usage{
			InputTokens:  input,
			OutputTokens: output,
			TotalTokens:  input + output,
		},
		StatusCode: http.StatusOK,
		Latency:    time.Since(startTime),
	}
}

// buildParams converts the normalized request into SDK params. Documents
// become document blocks ahead of the prompt text.
func buildParams(cfg providers.ProviderConfig, req providers.AIRequest) sdk.MessageNewParams {
	blocks := make([]sdk.ContentBlockParamUnion, 0, len(req.Documents)+len(req.Images)+1)
	for _, doc := range req.Documents {
		if doc.Data != "" {
			blocks = append(blocks, sdk.NewDocumentBlock(sdk.Base64PDFSourceParam{Data: doc.Data}))
		} else if doc.URL != "" {
			blocks = append(blocks, sdk.NewDocumentBlock(sdk.URLPDFSourceParam{URL: doc.URL}))
		}
	}
	for _, img := range req.Images {
		blocks = append(blocks, sdk.NewImageBlockBase64(img.MimeType, img.Data))
	}
	blocks = append(blocks, sdk.NewTextBlock(req.Prompt))

	maxTokens := cfg.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(cfg.Model),
		MaxTokens: int64(maxTokens),
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(blocks...)},
	}
	if req.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: req.SystemPrompt}}
	}

	temperature := cfg.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	params.Temperature = sdk.Float(temperature)

	return params
}

func toProviderError(err error) *providers.ProviderError {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return providers.NewProviderError("anthropic", "API_ERROR", "messages request failed",
			apiErr.StatusCode, providers.IsTransientStatus(apiErr.StatusCode), err)
	}
	return providers.NewProviderError("anthropic", "HTTP_ERROR", "HTTP request failed", 0, true, err)
}
