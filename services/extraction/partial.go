package extraction

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/Mustafabeshara/Dashboard2-sub000/models"
)

// ManualEntryRequired annotates a record nothing could be recovered from
const ManualEntryRequired = "manual entry required"

// Partial recovery scoring. Overall starts at partialBase and grows by
// partialStep per recovered field, never above partialCap.
const (
	partialBase = 0.3
	partialStep = 0.1
	partialCap  = 0.9
)

type salvageRule struct {
	field      string
	confidence float64
	patterns   []*regexp.Regexp
}

const (
	refValue  = `([A-Za-z0-9][A-Za-z0-9/_.\-]{1,60})`
	dateValue = `(\d{4}-\d{1,2}-\d{1,2}|\d{1,2}[/.\-]\d{1,2}[/.\-]\d{4}|\d{4}/\d{1,2}/\d{1,2})`
)

var salvageRules = []salvageRule{
	{
		field:      "reference",
		confidence: 0.7,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:tender\s*(?:no|number|ref(?:erence)?)|reference\s*(?:no|number)?|ref\s*no)\b\.?\s*[:#\-]?\s*` + refValue),
			regexp.MustCompile(`(?:رقم\s*(?:المناقصة|المرجع|الممارسة)|الرقم\s*المرجعي|المرجع)\s*[:\-]?\s*` + refValue),
		},
	},
	{
		field:      "title",
		confidence: 0.6,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?im)^[ \t]*(?:tender\s*title|title|subject)[ \t]*[:\-][ \t]*(\S.*)$`),
			regexp.MustCompile(`(?m)^[ \t]*(?:عنوان\s*المناقصة|العنوان|الموضوع)[ \t]*[:\-][ \t]*(\S.*)$`),
		},
	},
	{
		field:      "organization",
		confidence: 0.6,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?im)^[ \t]*(?:organi[sz]ation|issued\s*by|ministry|authority|entity|buyer)[ \t]*[:\-][ \t]*(\S.*)$`),
			regexp.MustCompile(`(?m)^[ \t]*(?:الجهة(?:\s*المعلنة|\s*الطالبة)?|الوزارة|الهيئة)[ \t]*[:\-][ \t]*(\S.*)$`),
		},
	},
	{
		field:      "closingDate",
		confidence: 0.6,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:closing\s*date|deadline|submission\s*date|due\s*date)\s*[:\-]?\s*` + dateValue),
			regexp.MustCompile(`(?:تاريخ\s*(?:الإغلاق|الاغلاق|التقديم)|آخر\s*موعد(?:\s*للتقديم)?|الموعد\s*النهائي)\s*[:\-]?\s*` + dateValue),
		},
	},
}

// ExtractPartialData recovers what it can from free text using English and
// Arabic field labels. It never fails: when nothing matches it returns an
// empty record annotated ManualEntryRequired with all confidences zero.
func ExtractPartialData(text string) models.TenderExtraction {
	normalized := NormalizeDigits(text)
	out := models.TenderExtraction{Items: []models.TenderItem{}}

	var recovered []string
	for _, rule := range salvageRules {
		value := firstMatch(normalized, rule.patterns)
		if value == "" {
			continue
		}
		switch rule.field {
		case "reference":
			out.Reference = strings.TrimRight(value, ".-/")
			out.Confidence.Reference = rule.confidence
		case "title":
			out.Title = value
			out.Confidence.Title = rule.confidence
		case "organization":
			out.Organization = value
			out.Confidence.Organization = rule.confidence
		case "closingDate":
			if iso, ok := NormalizeDate(value); ok {
				out.ClosingDate = iso
				out.Confidence.ClosingDate = rule.confidence
			} else {
				continue
			}
		}
		recovered = append(recovered, rule.field)
	}

	if len(recovered) == 0 {
		out.Notes = ManualEntryRequired
		return out
	}

	overall := partialBase + partialStep*float64(len(recovered))
	if overall > partialCap {
		overall = partialCap
	}
	out.Confidence.Overall = overall
	out.Language = DetectLanguage(text)
	out.Notes = "partial extraction, recovered: " + strings.Join(recovered, ", ")
	return out
}

func firstMatch(text string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if v := strings.TrimSpace(m[1]); v != "" {
				return v
			}
		}
	}
	return ""
}

// NormalizeDigits maps Arabic-Indic and Extended Arabic-Indic digits to ASCII
func NormalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		}
		return r
	}, s)
}

// DetectLanguage classifies text as en, ar or mixed by letter script.
// Text with no letters returns "".
func DetectLanguage(text string) string {
	var arabic, latin int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Arabic, r) && unicode.IsLetter(r):
			arabic++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	total := arabic + latin
	if total == 0 {
		return ""
	}
	switch share := float64(arabic) / float64(total); {
	case share >= 0.8:
		return models.LanguageArabic
	case share <= 0.2:
		return models.LanguageEnglish
	default:
		return models.LanguageMixed
	}
}
