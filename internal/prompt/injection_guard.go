// Package prompt defends prompt templates against user-controlled text.
package prompt

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// RedactionMarker replaces every matched injection phrase
const RedactionMarker = "[REDACTED]"

// InjectionType represents different types of prompt injection attacks
type InjectionType string

const (
	InjectionTypeInstructionOverride InjectionType = "instruction_override"
	InjectionTypeSystemPromptLeak    InjectionType = "system_prompt_leak"
	InjectionTypeRoleManipulation    InjectionType = "role_manipulation"
	InjectionTypeDataExfiltration    InjectionType = "data_exfiltration"
	InjectionTypeJailbreak           InjectionType = "jailbreak"
	InjectionTypeDelimiterAttack     InjectionType = "delimiter_attack"
	InjectionTypeMarkup              InjectionType = "markup_injection"
)

// InjectionMatch is one matched phrase
type InjectionMatch struct {
	Type       InjectionType `json:"type"`
	Text       string        `json:"text"`
	Start      int           `json:"start"`
	End        int           `json:"end"`
	Confidence float64       `json:"confidence"`
}

// InjectionDetection is the result of the detection pass
type InjectionDetection struct {
	Detected  bool             `json:"detected"`
	Matches   []InjectionMatch `json:"matches,omitempty"`
	RiskScore float64          `json:"risk_score"`
}

// Types returns the distinct injection types found, in match order
func (d InjectionDetection) Types() []InjectionType {
	seen := make(map[InjectionType]bool, len(d.Matches))
	var types []InjectionType
	for _, m := range d.Matches {
		if !seen[m.Type] {
			seen[m.Type] = true
			types = append(types, m.Type)
		}
	}
	return types
}

type injectionRule struct {
	kind       InjectionType
	confidence float64
	weight     float64
	patterns   []*regexp.Regexp
}

var injectionRules = []injectionRule{
	{
		kind: InjectionTypeInstructionOverride, confidence: 0.9, weight: 1.5,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)ignore\s+(?:all\s+|any\s+|the\s+|your\s+)?(?:previous|prior|above|earlier|preceding)\s+(?:instructions?|prompts?|commands?|rules)`),
			regexp.MustCompile(`(?i)disregard\s+(?:all\s+|any\s+|the\s+)?(?:previous\s+|prior\s+|above\s+)?(?:instructions?|rules|commands?)`),
			regexp.MustCompile(`(?i)override\s+(?:all\s+|the\s+)?(?:previous|system|prior)\s+(?:instructions?|rules|settings?)`),
			regexp.MustCompile(`(?i)forget\s+(?:everything|all\s+previous|your\s+instructions|what\s+you\s+were\s+told)`),
			regexp.MustCompile(`تجاهل\s+(?:جميع\s+|كل\s+)?(?:التعليمات|الأوامر|التوجيهات)(?:\s+السابقة)?`),
		},
	},
	{
		kind: InjectionTypeSystemPromptLeak, confidence: 0.9, weight: 1.5,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:show|reveal|print|repeat|display)\s+(?:me\s+)?(?:your|the)\s+(?:system|original|initial|hidden)\s+(?:prompt|instructions?)`),
			regexp.MustCompile(`(?i)what\s+(?:is|are|were)\s+(?:your|the)\s+(?:system|original|initial)\s+(?:prompt|instructions?)`),
		},
	},
	{
		kind: InjectionTypeRoleManipulation, confidence: 0.85, weight: 1,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)you\s+are\s+now\s+(?:a|an|the|in)\b`),
			regexp.MustCompile(`(?i)from\s+now\s+on,?\s+you\s+(?:are|will)`),
			regexp.MustCompile(`(?i)pretend\s+(?:to\s+be|you\s+are)`),
			regexp.MustCompile(`(?i)assume\s+(?:the\s+)?(?:role|identity)\s+of`),
		},
	},
	{
		kind: InjectionTypeDataExfiltration, confidence: 0.95, weight: 2,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:dump|print|show|list|reveal|return|output|send)\s+(?:all\s+|the\s+|your\s+|any\s+)*(?:env(?:ironment)?(?:\s+variables)?|api[\s_-]?keys?|secrets?|credentials|passwords?|access\s+tokens?)`),
			regexp.MustCompile(`(?i)process\.env\b`),
			regexp.MustCompile(`(?i)\b(?:eval|exec|system)\s*\(`),
			regexp.MustCompile(`(?i)(?:fetch|send\s+(?:data|it|everything))\s+(?:from|to)\s+https?://`),
		},
	},
	{
		kind: InjectionTypeJailbreak, confidence: 0.95, weight: 2,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bDAN\s+mode\b`),
			regexp.MustCompile(`(?i)developer\s+mode`),
			regexp.MustCompile(`(?i)\bjailbreak`),
			regexp.MustCompile(`(?i)without\s+(?:any\s+)?(?:ethical\s+|moral\s+)?(?:restrictions?|limitations?|guidelines?)`),
		},
	},
	{
		kind: InjectionTypeDelimiterAttack, confidence: 0.8, weight: 1,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\[/?(?:SYSTEM|USER|ASSISTANT|INST)\]`),
			regexp.MustCompile(`<\|(?:system|user|assistant|end|im_start|im_end)\|>`),
			regexp.MustCompile(`###\s*(?:SYSTEM|INSTRUCTION)S?\b`),
		},
	},
	{
		kind: InjectionTypeMarkup, confidence: 0.85, weight: 1,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`),
			regexp.MustCompile(`(?i)<\s*(?:script|iframe|object|embed)\b[^>]*>`),
			regexp.MustCompile(`(?i)javascript\s*:`),
			regexp.MustCompile(`(?i)\bon(?:load|error|click|mouseover)\s*=`),
		},
	},
}

var (
	htmlTagPattern        = regexp.MustCompile(`</?[A-Za-z][^<>]*>`)
	horizontalSpace       = regexp.MustCompile(`[ \t\f\v\r]+`)
	excessNewlines        = regexp.MustCompile(`\n{3,}`)
	templateNeutralizer   = strings.NewReplacer("{{", "{ {", "}}", "} }", "{%", "{ %", "%}", "% }")
	defaultSanitizeLength = 50000
)

// SanitizeOptions controls SanitizePromptInput
type SanitizeOptions struct {
	// MaxLength is the rune limit; zero uses the default
	MaxLength          int
	StripHTML          bool
	CollapseWhitespace bool
}

// DefaultSanitizeOptions returns the options used for tender text
func DefaultSanitizeOptions() SanitizeOptions {
	return SanitizeOptions{
		MaxLength:          defaultSanitizeLength,
		StripHTML:          true,
		CollapseWhitespace: true,
	}
}

// DetectInjectionAttempt reports every injection phrase in text. It never
// modifies text; redaction is SanitizePromptInput's job.
func DetectInjectionAttempt(text string) InjectionDetection {
	var (
		detection   InjectionDetection
		totalScore  float64
		totalWeight float64
	)
	for _, rule := range injectionRules {
		for _, pattern := range rule.patterns {
			for _, loc := range pattern.FindAllStringIndex(text, -1) {
				detection.Matches = append(detection.Matches, InjectionMatch{
					Type:       rule.kind,
					Text:       text[loc[0]:loc[1]],
					Start:      loc[0],
					End:        loc[1],
					Confidence: rule.confidence,
				})
				totalScore += rule.confidence * rule.weight
				totalWeight += rule.weight
			}
		}
	}
	if len(detection.Matches) == 0 {
		return detection
	}
	sort.SliceStable(detection.Matches, func(i, j int) bool {
		return detection.Matches[i].Start < detection.Matches[j].Start
	})
	detection.Detected = true
	detection.RiskScore = totalScore / totalWeight
	return detection
}

// SanitizePromptInput makes user text safe to interpolate into a prompt.
// Markup-borne injections are redacted on the raw text, then HTML and
// whitespace are normalized, injection phrases are redacted again on the
// normalized text, template delimiters are broken apart and the result is
// cut to MaxLength runes.
func SanitizePromptInput(text string, opts SanitizeOptions) string {
	if text == "" {
		return ""
	}
	result := redactSpans(text, DetectInjectionAttempt(text).Matches)

	if opts.StripHTML {
		result = htmlTagPattern.ReplaceAllString(result, "")
	}
	if opts.CollapseWhitespace {
		result = horizontalSpace.ReplaceAllString(result, " ")
		result = excessNewlines.ReplaceAllString(result, "\n\n")
		result = strings.TrimSpace(result)
	}

	// tag removal can join a phrase split by markup
	result = redactSpans(result, DetectInjectionAttempt(result).Matches)
	result = neutralizeTemplates(result)

	maxLen := opts.MaxLength
	if maxLen <= 0 {
		maxLen = defaultSanitizeLength
	}
	return truncateRunes(result, maxLen)
}

// neutralizeTemplates spaces out template delimiters until none remain;
// one replacer pass leaves "{ {{" behind for "{{{".
func neutralizeTemplates(s string) string {
	for containsTemplateDelimiter(s) {
		s = templateNeutralizer.Replace(s)
	}
	return s
}

func containsTemplateDelimiter(s string) bool {
	return strings.Contains(s, "{{") || strings.Contains(s, "}}") ||
		strings.Contains(s, "{%") || strings.Contains(s, "%}")
}

// redactSpans replaces the union of match spans with the marker
func redactSpans(text string, matches []InjectionMatch) string {
	if len(matches) == 0 {
		return text
	}
	// matches are sorted by start; merge overlaps
	var b strings.Builder
	b.Grow(len(text))
	pos := 0
	for i := 0; i < len(matches); {
		start, end := matches[i].Start, matches[i].End
		i++
		for i < len(matches) && matches[i].Start < end {
			if matches[i].End > end {
				end = matches[i].End
			}
			i++
		}
		if start < pos {
			start = pos
		}
		b.WriteString(text[pos:start])
		b.WriteString(RedactionMarker)
		pos = end
	}
	b.WriteString(text[pos:])
	return b.String()
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
