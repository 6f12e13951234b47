package prompt

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	intprompt "github.com/Mustafabeshara/Dashboard2-sub000/internal/prompt"
)

// Config controls how user text is prepared for prompts and logs
type Config struct {
	MaxInputLength     int
	StripHTML          bool
	CollapseWhitespace bool

	// LogPreviewLength bounds text copied into log fields, in runes
	LogPreviewLength int
}

// DefaultConfig returns the configuration used for tender text
func DefaultConfig() Config {
	return Config{
		MaxInputLength:     50000,
		StripHTML:          true,
		CollapseWhitespace: true,
		LogPreviewLength:   500,
	}
}

// PreparedInput is user text made safe for prompt interpolation
type PreparedInput struct {
	Text      string
	Injection intprompt.InjectionDetection
	Truncated bool
}

// PromptService sanitizes user-controlled text and scrubs log output
type PromptService struct {
	config Config
	logger *zap.Logger
}

// NewPromptService creates a new prompt service
func NewPromptService(config Config, logger *zap.Logger) *PromptService {
	if config.MaxInputLength <= 0 {
		config.MaxInputLength = DefaultConfig().MaxInputLength
	}
	if config.LogPreviewLength <= 0 {
		config.LogPreviewLength = DefaultConfig().LogPreviewLength
	}
	return &PromptService{
		config: config,
		logger: logger,
	}
}

// PrepareUserInput strips control characters, runs injection detection and
// returns the redacted text. A detection is logged and the request goes on
// with the redacted input.
func (s *PromptService) PrepareUserInput(ctx context.Context, text string) (*PreparedInput, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	cleaned := stripControl(text)
	detection := intprompt.DetectInjectionAttempt(cleaned)
	if detection.Detected {
		types := make([]string, 0, len(detection.Matches))
		for _, typ := range detection.Types() {
			types = append(types, string(typ))
		}
		s.logger.Warn("prompt injection attempt detected, continuing with redacted input",
			zap.Strings("types", types),
			zap.Int("matches", len(detection.Matches)),
			zap.Float64("risk_score", detection.RiskScore),
		)
	}

	out := intprompt.SanitizePromptInput(cleaned, intprompt.SanitizeOptions{
		MaxLength:          s.config.MaxInputLength,
		StripHTML:          s.config.StripHTML,
		CollapseWhitespace: s.config.CollapseWhitespace,
	})

	return &PreparedInput{
		Text:      out,
		Injection: detection,
		Truncated: utf8.RuneCountInString(cleaned) > s.config.MaxInputLength,
	}, nil
}

// SafeForLog redacts secrets and bounds the length of text headed for a log field
func (s *PromptService) SafeForLog(text string) string {
	redacted := RedactSecrets(text)
	runes := []rune(redacted)
	if len(runes) <= s.config.LogPreviewLength {
		return redacted
	}
	return string(runes[:s.config.LogPreviewLength]) + "…"
}

// stripControl drops control characters other than newline and tab
func stripControl(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
}
