package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Mustafabeshara/Dashboard2-sub000/models"
)

// DefaultFieldConfidence is assigned to every field when the model omits
// confidence data.
const DefaultFieldConfidence = 0.5

// ErrNoJSONObject is returned when the content holds no JSON object
var ErrNoJSONObject = errors.New("no JSON object found in model output")

var codeFence = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")

// CleanJSON strips markdown code fences and isolates the outermost JSON
// object. Content without braces is returned trimmed.
func CleanJSON(content string) string {
	s := strings.TrimSpace(content)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

type rawItem struct {
	Description    string          `json:"description"`
	Quantity       json.RawMessage `json:"quantity"`
	Unit           string          `json:"unit"`
	Specifications string          `json:"specifications"`
}

type rawConfidence struct {
	Overall      *float64 `json:"overall"`
	Reference    *float64 `json:"reference"`
	Title        *float64 `json:"title"`
	Organization *float64 `json:"organization"`
	ClosingDate  *float64 `json:"closingDate"`
	Items        *float64 `json:"items"`
}

type rawExtraction struct {
	Reference    string         `json:"reference"`
	Title        string         `json:"title"`
	Organization string         `json:"organization"`
	ClosingDate  string         `json:"closingDate"`
	Items        []rawItem      `json:"items"`
	Notes        string         `json:"notes"`
	Language     string         `json:"language"`
	Confidence   *rawConfidence `json:"confidence"`
}

// ParseTenderExtractionResult decodes a model reply into a tender record.
// Fields are kept as given. Absent confidence scores default to
// DefaultFieldConfidence; all scores are clamped to [0,1].
func ParseTenderExtractionResult(content string) (models.TenderExtraction, error) {
	cleaned := CleanJSON(content)
	if !strings.HasPrefix(cleaned, "{") {
		return models.TenderExtraction{}, ErrNoJSONObject
	}

	var raw rawExtraction
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return models.TenderExtraction{}, fmt.Errorf("failed to decode extraction: %w", err)
	}

	out := models.TenderExtraction{
		Reference:    raw.Reference,
		Title:        raw.Title,
		Organization: raw.Organization,
		ClosingDate:  raw.ClosingDate,
		Items:        make([]models.TenderItem, 0, len(raw.Items)),
		Notes:        raw.Notes,
		Language:     raw.Language,
	}
	for _, it := range raw.Items {
		out.Items = append(out.Items, models.TenderItem{
			Description:    it.Description,
			Quantity:       parseQuantity(it.Quantity),
			Unit:           it.Unit,
			Specifications: it.Specifications,
		})
	}

	c := raw.Confidence
	if c == nil {
		c = &rawConfidence{}
	}
	out.Confidence = models.Confidence{
		Overall:      orDefault(c.Overall),
		Reference:    orDefault(c.Reference),
		Title:        orDefault(c.Title),
		Organization: orDefault(c.Organization),
		ClosingDate:  orDefault(c.ClosingDate),
		Items:        orDefault(c.Items),
	}.Clamp()

	return out, nil
}

func orDefault(v *float64) float64 {
	if v == nil {
		return DefaultFieldConfidence
	}
	return *v
}

// maxQuantity is the largest integer a float64 holds exactly
const maxQuantity = 1 << 53

// parseQuantity accepts whole numbers given as JSON numbers or numeric
// strings. Fractions, non-finite and out-of-range values read as 0 and are
// reported by validation.
func parseQuantity(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return wholeQuantity(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.ReplaceAll(NormalizeDigits(strings.TrimSpace(s)), ",", "")
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return wholeQuantity(n)
		}
	}
	return 0
}

func wholeQuantity(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0
	}
	if f > maxQuantity || f < -maxQuantity {
		return 0
	}
	return int(f)
}
