package models

import "strings"

// Tender languages reported by the model
const (
	LanguageEnglish = "en"
	LanguageArabic  = "ar"
	LanguageMixed   = "mixed"
)

// TenderItem is one itemized line of a tender
type TenderItem struct {
	Description    string `json:"description" validate:"required,max=2000" jsonschema:"description=Item description in the source language"`
	Quantity       int    `json:"quantity" validate:"gt=0" jsonschema:"minimum=1"`
	Unit           string `json:"unit" validate:"max=50" jsonschema:"description=Unit of measure such as box or piece"`
	Specifications string `json:"specifications,omitempty" validate:"max=4000"`
}

// Confidence is the per-field plus overall reliability vector, each in [0,1]
type Confidence struct {
	Overall      float64 `json:"overall"`
	Reference    float64 `json:"reference"`
	Title        float64 `json:"title"`
	Organization float64 `json:"organization"`
	ClosingDate  float64 `json:"closingDate"`
	Items        float64 `json:"items"`
}

// Clamp bounds every score to [0,1]
func (c Confidence) Clamp() Confidence {
	clamp := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	}
	return Confidence{
		Overall:      clamp(c.Overall),
		Reference:    clamp(c.Reference),
		Title:        clamp(c.Title),
		Organization: clamp(c.Organization),
		ClosingDate:  clamp(c.ClosingDate),
		Items:        clamp(c.Items),
	}
}

// TenderExtraction is the structured record extracted from a tender document.
// String bounds are generous so dual-script content fits.
type TenderExtraction struct {
	Reference    string       `json:"reference" validate:"max=100" jsonschema:"description=Tender reference number"`
	Title        string       `json:"title" validate:"max=500" jsonschema:"description=Tender title"`
	Organization string       `json:"organization" validate:"max=300" jsonschema:"description=Issuing ministry or authority"`
	ClosingDate  string       `json:"closingDate" validate:"omitempty,datetime=2006-01-02" jsonschema:"description=Submission deadline as YYYY-MM-DD"`
	Items        []TenderItem `json:"items" validate:"dive"`
	Notes        string       `json:"notes,omitempty" validate:"max=5000"`
	Language     string       `json:"language,omitempty" validate:"omitempty,oneof=en ar mixed" jsonschema:"enum=en,enum=ar,enum=mixed"`
	Confidence   Confidence   `json:"confidence"`
}

// MissingRequired lists the required fields that are empty
func (t TenderExtraction) MissingRequired() []string {
	var missing []string
	if strings.TrimSpace(t.Reference) == "" {
		missing = append(missing, "reference")
	}
	if strings.TrimSpace(t.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(t.Organization) == "" {
		missing = append(missing, "organization")
	}
	if strings.TrimSpace(t.ClosingDate) == "" {
		missing = append(missing, "closingDate")
	}
	return missing
}
