package extraction

import (
	"fmt"

	"github.com/Mustafabeshara/Dashboard2-sub000/models"
)

// ReviewThresholds are the confidence bars below which a record goes to a
// person for correction. They are stricter than the retry threshold.
type ReviewThresholds struct {
	Overall     float64
	Reference   float64
	ClosingDate float64
	Items       float64
}

// DefaultReviewThresholds returns the bars used for auto-acceptance
func DefaultReviewThresholds() ReviewThresholds {
	return ReviewThresholds{
		Overall:     0.7,
		Reference:   0.6,
		ClosingDate: 0.6,
		Items:       0.5,
	}
}

// Reasons lists why e needs review; empty means it can be accepted
func (t ReviewThresholds) Reasons(e models.TenderExtraction) []string {
	var reasons []string
	c := e.Confidence

	if c.Overall < t.Overall {
		reasons = append(reasons, fmt.Sprintf("overall confidence %.2f below %.2f", c.Overall, t.Overall))
	}
	if c.Reference < t.Reference {
		reasons = append(reasons, fmt.Sprintf("reference confidence %.2f below %.2f", c.Reference, t.Reference))
	}
	if c.ClosingDate < t.ClosingDate {
		reasons = append(reasons, fmt.Sprintf("closing date confidence %.2f below %.2f", c.ClosingDate, t.ClosingDate))
	}
	if c.Items < t.Items {
		reasons = append(reasons, fmt.Sprintf("items confidence %.2f below %.2f", c.Items, t.Items))
	}
	for _, field := range e.MissingRequired() {
		reasons = append(reasons, field+" is empty")
	}
	if len(e.Items) == 0 {
		reasons = append(reasons, "no line items")
	}
	return reasons
}

// NeedsHumanReview applies the default thresholds
func NeedsHumanReview(e models.TenderExtraction) bool {
	return len(DefaultReviewThresholds().Reasons(e)) > 0
}
