package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Mustafabeshara/Dashboard2-sub000/models"
)

func TestNeedsHumanReview(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *models.TenderExtraction)
		want   bool
	}{
		{"confident and complete", func(e *models.TenderExtraction) {}, false},
		{"overall below bar", func(e *models.TenderExtraction) { e.Confidence.Overall = 0.69 }, true},
		{"overall at bar", func(e *models.TenderExtraction) { e.Confidence.Overall = 0.7 }, false},
		{"weak reference", func(e *models.TenderExtraction) { e.Confidence.Reference = 0.4 }, true},
		{"weak closing date", func(e *models.TenderExtraction) { e.Confidence.ClosingDate = 0.5 }, true},
		{"weak items", func(e *models.TenderExtraction) { e.Confidence.Items = 0.2 }, true},
		{"weak title alone passes", func(e *models.TenderExtraction) { e.Confidence.Title = 0.3 }, false},
		{"empty organization", func(e *models.TenderExtraction) { e.Organization = "" }, true},
		{"no items", func(e *models.TenderExtraction) { e.Items = nil }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validTender()
			tt.mutate(&e)
			assert.Equal(t, tt.want, NeedsHumanReview(e))
		})
	}
}

func TestReviewThresholds_Reasons(t *testing.T) {
	e := validTender()
	e.Confidence.Overall = 0.5
	e.ClosingDate = ""

	reasons := DefaultReviewThresholds().Reasons(e)

	assert.Equal(t, []string{
		"overall confidence 0.50 below 0.70",
		"closingDate is empty",
	}, reasons)
}

func TestNeedsHumanReview_PartialNeverAutoAccepted(t *testing.T) {
	text := "Tender No. MOH/2024/117\nTitle: Gloves\nMinistry: Ministry of Health\nClosing Date: 30/06/2024\n"
	assert.True(t, NeedsHumanReview(ExtractPartialData(text)))
}
