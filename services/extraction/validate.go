package extraction

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Mustafabeshara/Dashboard2-sub000/models"
)

// Severity grades a validation error
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
)

// ValidationError is a constraint the record breaks
type ValidationError struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// ValidationWarning is a soft problem with a suggested fix
type ValidationWarning struct {
	Field      string `json:"field"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ValidationResult grades a record from 0 to 100
type ValidationResult struct {
	Valid    bool                `json:"valid"`
	Errors   []ValidationError   `json:"errors"`
	Warnings []ValidationWarning `json:"warnings"`
	Score    int                 `json:"score"`
}

// Score penalties
const (
	penaltyCritical = 25
	penaltyError    = 10
	penaltyWarning  = 5

	lowFieldConfidence = 0.5
)

var (
	schemaValidator     *validator.Validate
	schemaValidatorOnce sync.Once
)

func getValidator() *validator.Validate {
	schemaValidatorOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		schemaValidator = v
	})
	return schemaValidator
}

// ValidateExtraction checks the record against its schema constraints and
// adds warnings for plausible but suspicious values.
func ValidateExtraction(e models.TenderExtraction) ValidationResult {
	return validateAt(e, time.Now())
}

func validateAt(e models.TenderExtraction, now time.Time) ValidationResult {
	result := ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
	}

	for _, field := range e.MissingRequired() {
		result.Errors = append(result.Errors, ValidationError{
			Field:    field,
			Message:  "is required",
			Severity: SeverityCritical,
		})
	}

	if err := getValidator().Struct(e); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				result.Errors = append(result.Errors, ValidationError{
					Field:    fieldPath(fe),
					Message:  constraintMessage(fe),
					Severity: SeverityError,
				})
			}
		} else {
			result.Errors = append(result.Errors, ValidationError{Field: "", Message: err.Error(), Severity: SeverityError})
		}
	}

	result.Warnings = append(result.Warnings, warnings(e, now)...)

	score := 100 - penaltyWarning*len(result.Warnings)
	for _, ve := range result.Errors {
		if ve.Severity == SeverityCritical {
			score -= penaltyCritical
		} else {
			score -= penaltyError
		}
	}
	if score < 0 {
		score = 0
	}
	result.Score = score
	result.Valid = len(result.Errors) == 0
	return result
}

func warnings(e models.TenderExtraction, now time.Time) []ValidationWarning {
	var out []ValidationWarning

	if e.ClosingDate != "" {
		if t, err := time.Parse(IsoDateLayout, e.ClosingDate); err == nil {
			if t.Before(now.Truncate(24 * time.Hour)) {
				out = append(out, ValidationWarning{
					Field:      "closingDate",
					Message:    "closing date is in the past",
					Suggestion: "confirm the date was read correctly or mark the tender closed",
				})
			}
		} else if iso, ok := NormalizeDate(e.ClosingDate); ok {
			out = append(out, ValidationWarning{
				Field:      "closingDate",
				Message:    "closing date is not in YYYY-MM-DD format",
				Suggestion: iso,
			})
		}
	}

	if len(e.Items) == 0 {
		out = append(out, ValidationWarning{
			Field:      "items",
			Message:    "no line items extracted",
			Suggestion: "add the items from the tender schedule manually",
		})
	}

	for i, it := range e.Items {
		if it.Unit == "" && strings.TrimSpace(it.Description) != "" {
			out = append(out, ValidationWarning{
				Field:      fmt.Sprintf("items[%d].unit", i),
				Message:    "unit of measure is missing",
				Suggestion: "set a unit such as piece, box or set",
			})
		}
	}

	fields := []struct {
		name  string
		score float64
		value string
	}{
		{"reference", e.Confidence.Reference, e.Reference},
		{"title", e.Confidence.Title, e.Title},
		{"organization", e.Confidence.Organization, e.Organization},
		{"closingDate", e.Confidence.ClosingDate, e.ClosingDate},
	}
	for _, f := range fields {
		if f.value != "" && f.score < lowFieldConfidence {
			out = append(out, ValidationWarning{
				Field:      f.name,
				Message:    fmt.Sprintf("low confidence (%.2f)", f.score),
				Suggestion: "verify against the source document",
			})
		}
	}

	return out
}

// fieldPath drops the root struct name from the validator namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func constraintMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gt":
		return "must be a positive integer"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
