// Package extraction turns tender text and documents into validated,
// confidence-scored records.
package extraction

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Mustafabeshara/Dashboard2-sub000/models"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/orchestrator"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/prompt"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers"
)

// Error codes set on results that carry no usable model output
const (
	CodeFetchFailed          = "fetch_failed"
	CodeUnsupportedMediaType = "unsupported_media_type"
	CodeEmptyInput           = "empty_input"
	CodeCancelled            = "cancelled"
)

// Completer runs a request through the provider fallback chain
type Completer interface {
	Complete(ctx context.Context, req providers.AIRequest) providers.AIResponse
}

// Fetcher downloads a document by URL
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*FetchedDocument, error)
}

// Config controls extraction retries and review gating
type Config struct {
	// MaxAttempts is the number of whole extraction runs
	MaxAttempts int

	// MinConfidence is the overall score below which extraction is rerun
	MinConfidence float64

	MaxTokens int
	Review    ReviewThresholds

	// Provider preference per modality, fastest or most accurate first
	TextPreference     []providers.Kind
	ImagePreference    []providers.Kind
	DocumentPreference []providers.Kind
}

// DefaultConfig returns the pipeline defaults
func DefaultConfig() Config {
	return Config{
		MaxAttempts:        3,
		MinConfidence:      0.3,
		MaxTokens:          4096,
		Review:             DefaultReviewThresholds(),
		TextPreference:     []providers.Kind{providers.KindGroq, providers.KindGemini, providers.KindOpenAI, providers.KindAnthropic},
		ImagePreference:    []providers.Kind{providers.KindGemini, providers.KindOpenAI, providers.KindAnthropic},
		DocumentPreference: []providers.Kind{providers.KindGemini, providers.KindAnthropic},
	}
}

// Result is the pipeline output handed to the caller
type Result struct {
	ID            string                  `json:"id"`
	Extraction    models.TenderExtraction `json:"extraction"`
	Validation    ValidationResult        `json:"validation"`
	NeedsReview   bool                    `json:"needs_review"`
	ReviewReasons []string                `json:"review_reasons,omitempty"`
	Partial       bool                    `json:"partial"`
	Provider      string                  `json:"provider,omitempty"`
	Model         string                  `json:"model,omitempty"`
	Attempts      int                     `json:"attempts"`
	Usage         providers.Usage         `json:"usage"`
	Cost          float64                 `json:"cost"`
	Duration      time.Duration           `json:"duration"`
	Error         string                  `json:"error,omitempty"`
	ErrorCode     string                  `json:"error_code,omitempty"`
}

// ExtractionService is the tender extraction pipeline
type ExtractionService struct {
	completer Completer
	fetcher   Fetcher
	prompts   *PromptCatalog
	input     *prompt.PromptService
	config    Config
	logger    *zap.Logger
}

// NewExtractionService creates the pipeline
func NewExtractionService(completer Completer, fetcher Fetcher, prompts *PromptCatalog, input *prompt.PromptService, config Config, logger *zap.Logger) *ExtractionService {
	defaults := DefaultConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.MinConfidence <= 0 {
		config.MinConfidence = defaults.MinConfidence
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaults.MaxTokens
	}
	if config.Review == (ReviewThresholds{}) {
		config.Review = defaults.Review
	}
	if len(config.TextPreference) == 0 {
		config.TextPreference = defaults.TextPreference
	}
	if len(config.ImagePreference) == 0 {
		config.ImagePreference = defaults.ImagePreference
	}
	if len(config.DocumentPreference) == 0 {
		config.DocumentPreference = defaults.DocumentPreference
	}
	return &ExtractionService{
		completer: completer,
		fetcher:   fetcher,
		prompts:   prompts,
		input:     input,
		config:    config,
		logger:    logger,
	}
}

// ExtractTenderFromText extracts a tender from plain text
func (s *ExtractionService) ExtractTenderFromText(ctx context.Context, text string) *Result {
	started := time.Now()
	id := uuid.NewString()

	prepared, err := s.input.PrepareUserInput(ctx, text)
	if err != nil {
		return s.finish(s.failed(id, CodeCancelled, err.Error()), started)
	}
	if strings.TrimSpace(prepared.Text) == "" {
		return s.finish(s.failed(id, CodeEmptyInput, "no text to extract from"), started)
	}
	if prepared.Truncated {
		s.logger.Warn("tender text truncated", zap.String("extraction_id", id))
	}

	req := providers.AIRequest{
		SystemPrompt: s.prompts.System,
		Prompt:       s.prompts.TextPrompt(prepared.Text),
		TaskType:     providers.TaskDocumentExtraction,
		MaxTokens:    s.config.MaxTokens,
		Preferred:    s.config.TextPreference,
	}
	return s.finish(s.run(ctx, id, req, prepared.Text), started)
}

// ExtractTenderFromDocument downloads fileURL and extracts a tender from it.
// mimeType overrides the type reported by the server when set.
func (s *ExtractionService) ExtractTenderFromDocument(ctx context.Context, fileURL, mimeType string) *Result {
	started := time.Now()

	doc, err := s.fetcher.Fetch(ctx, fileURL)
	if err != nil {
		s.logger.Warn("document fetch failed", zap.Error(err))
		return s.finish(s.failed(uuid.NewString(), CodeFetchFailed, err.Error()), started)
	}
	if mimeType == "" {
		mimeType = doc.MimeType
	}

	result := s.ExtractTenderFromBytes(ctx, doc.Data, mimeType)
	result.Duration = time.Since(started)
	return result
}

// ExtractTenderFromBytes extracts a tender from file content. PDFs go to
// providers with native file ingestion, images to vision providers and
// text to the text path.
func (s *ExtractionService) ExtractTenderFromBytes(ctx context.Context, data []byte, mimeType string) *Result {
	started := time.Now()
	id := uuid.NewString()
	mimeType = mediaType(mimeType)

	switch {
	case mimeType == "application/pdf":
		req := providers.AIRequest{
			SystemPrompt: s.prompts.System,
			Prompt:       s.prompts.DocumentPrompt(),
			Documents:    []providers.Document{{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}},
			TaskType:     providers.TaskDocumentExtraction,
			MaxTokens:    s.config.MaxTokens,
			Preferred:    s.config.DocumentPreference,
		}
		return s.finish(s.run(ctx, id, req, ""), started)

	case strings.HasPrefix(mimeType, "image/"):
		req := providers.AIRequest{
			SystemPrompt: s.prompts.System,
			Prompt:       s.prompts.ImagePrompt(),
			Images:       []providers.Image{{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}},
			TaskType:     providers.TaskVision,
			MaxTokens:    s.config.MaxTokens,
			Preferred:    s.config.ImagePreference,
		}
		return s.finish(s.run(ctx, id, req, ""), started)

	case strings.HasPrefix(mimeType, "text/"):
		return s.ExtractTenderFromText(ctx, string(data))

	default:
		return s.finish(s.failed(id, CodeUnsupportedMediaType, fmt.Sprintf("unsupported media type %q", mimeType)), started)
	}
}

// run executes whole extraction attempts until the overall confidence
// reaches MinConfidence. Reruns bypass the cache and move providers that
// already answered to the back of the preference list.
func (s *ExtractionService) run(ctx context.Context, id string, req providers.AIRequest, source string) *Result {
	result := &Result{ID: id}
	var best *models.TenderExtraction
	var bestPartial bool
	tried := make(map[string]bool)

	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		result.Attempts = attempt
		if attempt > 1 {
			req.SkipCache = true
			req.Preferred = demote(req.Preferred, tried)
		}

		resp := s.completer.Complete(ctx, req)
		result.Usage.InputTokens += resp.Usage.InputTokens
		result.Usage.OutputTokens += resp.Usage.OutputTokens
		result.Usage.TotalTokens += resp.Usage.TotalTokens
		result.Cost += resp.EstimatedCost

		if !resp.Success {
			if best == nil {
				result.Error = resp.Error
				result.ErrorCode = resp.ErrorCode
			}
			s.logger.Warn("extraction attempt failed",
				zap.String("extraction_id", id),
				zap.Int("attempt", attempt),
				zap.String("error_code", resp.ErrorCode),
				zap.String("error", s.input.SafeForLog(resp.Error)),
			)
			if !retryable(resp.ErrorCode) || ctx.Err() != nil {
				break
			}
			continue
		}
		tried[resp.Provider] = true

		candidate, partial := s.interpret(id, resp.Content, source)
		s.logger.Debug("extraction attempt parsed",
			zap.String("extraction_id", id),
			zap.Int("attempt", attempt),
			zap.String("provider", resp.Provider),
			zap.Bool("partial", partial),
			zap.Float64("overall", candidate.Confidence.Overall),
		)

		if best == nil || candidate.Confidence.Overall > best.Confidence.Overall {
			best = &candidate
			bestPartial = partial
			result.Provider = resp.Provider
			result.Model = resp.Model
			result.Error = ""
			result.ErrorCode = ""
		}
		if best.Confidence.Overall >= s.config.MinConfidence || ctx.Err() != nil {
			break
		}
	}

	if best == nil {
		salvaged := ExtractPartialData(source)
		best = &salvaged
		bestPartial = true
	}

	result.Extraction = *best
	result.Partial = bestPartial
	if result.Extraction.Language == "" {
		result.Extraction.Language = DetectLanguage(source)
	}
	if best.Confidence.Overall < s.config.MinConfidence {
		result.ReviewReasons = append(result.ReviewReasons,
			fmt.Sprintf("confidence stayed below %.2f after %d attempts", s.config.MinConfidence, result.Attempts))
	}
	return result
}

// interpret parses model output, falling back to regex salvage of the
// output and then of the source text.
func (s *ExtractionService) interpret(id, content, source string) (models.TenderExtraction, bool) {
	parsed, err := ParseTenderExtractionResult(content)
	if err == nil {
		if parsed.Items == nil {
			parsed.Items = []models.TenderItem{}
		}
		return parsed, false
	}

	s.logger.Warn("model output is not valid JSON, salvaging",
		zap.String("extraction_id", id),
		zap.Error(err),
		zap.String("content", s.input.SafeForLog(content)),
	)
	salvaged := ExtractPartialData(content)
	if salvaged.Confidence.Overall == 0 && source != "" {
		salvaged = ExtractPartialData(source)
	}
	return salvaged, true
}

func (s *ExtractionService) failed(id, code, message string) *Result {
	return &Result{
		ID:         id,
		Extraction: ExtractPartialData(""),
		Partial:    true,
		Error:      message,
		ErrorCode:  code,
	}
}

// finish validates the record and applies the review gate
func (s *ExtractionService) finish(result *Result, started time.Time) *Result {
	result.Extraction.Confidence = result.Extraction.Confidence.Clamp()
	result.Validation = ValidateExtraction(result.Extraction)
	result.ReviewReasons = append(result.ReviewReasons, s.config.Review.Reasons(result.Extraction)...)
	result.NeedsReview = len(result.ReviewReasons) > 0
	result.Duration = time.Since(started)

	s.logger.Info("extraction finished",
		zap.String("extraction_id", result.ID),
		zap.String("provider", result.Provider),
		zap.Int("attempts", result.Attempts),
		zap.Float64("overall", result.Extraction.Confidence.Overall),
		zap.Int("score", result.Validation.Score),
		zap.Bool("needs_review", result.NeedsReview),
	)
	return result
}

// retryable reports whether another whole attempt could help
func retryable(code string) bool {
	switch code {
	case orchestrator.CodeBudgetExceeded, orchestrator.CodeNoEligibleProviders, orchestrator.CodeNoProvidersConfigured:
		return false
	}
	return true
}

// demote moves providers that already answered to the end of the list
func demote(preferred []providers.Kind, tried map[string]bool) []providers.Kind {
	out := make([]providers.Kind, 0, len(preferred))
	var back []providers.Kind
	for _, k := range preferred {
		if tried[k.String()] {
			back = append(back, k)
			continue
		}
		out = append(out, k)
	}
	return append(out, back...)
}
