package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRiskSeverity_Ordering(t *testing.T) {
	assert.Greater(t, RiskSeverity(RiskLevelCritical), RiskSeverity(RiskLevelHigh))
	assert.Greater(t, RiskSeverity(RiskLevelHigh), RiskSeverity(RiskLevelMedium))
	assert.Greater(t, RiskSeverity(RiskLevelMedium), RiskSeverity(RiskLevelLow))
	assert.Greater(t, RiskSeverity(RiskLevelLow), RiskSeverity("unknown"))
}

func TestNormalizeClauseType(t *testing.T) {
	assert.Equal(t, ClauseTypeLiability, NormalizeClauseType("liability"))
	assert.Equal(t, ClauseTypeGoverningLaw, NormalizeClauseType("governing_law"))
	assert.Equal(t, ClauseTypeOther, NormalizeClauseType("miscellaneous"))
	assert.Equal(t, ClauseTypeOther, NormalizeClauseType(""))
}

func TestValidateClause(t *testing.T) {
	valid := &Clause{
		DocumentID:      "doc-1",
		Type:            ClauseTypeConfidentiality,
		Text:            "Each party shall keep confidential all information disclosed by the other.",
		RiskLevel:       RiskLevelMedium,
		RiskExplanation: "Mutual obligation, standard carve-outs missing.",
	}

	assert.NoError(t, ValidateClause(valid))

	tests := []struct {
		name    string
		mutate  func(c *Clause)
		wantErr string
	}{
		{"missing document", func(c *Clause) { c.DocumentID = "" }, "DocumentID is required"},
		{"missing text", func(c *Clause) { c.Text = "" }, "Text is required"},
		{"text too long", func(c *Clause) { c.Text = strings.Repeat("a", MaxClauseTextLength+1) }, "exceeds"},
		{"bad type", func(c *Clause) { c.Type = "misc" }, "Type is invalid"},
		{"bad risk level", func(c *Clause) { c.RiskLevel = "severe" }, "RiskLevel is invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clause := *valid
			tt.mutate(&clause)
			err := ValidateClause(&clause)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsValidClauseType_CountsFifteen(t *testing.T) {
	known := []ClauseType{
		ClauseTypeConfidentiality, ClauseTypeLiability, ClauseTypeIndemnification,
		ClauseTypeTermination, ClauseTypePayment, ClauseTypeIntellectualProp,
		ClauseTypeNonCompete, ClauseTypeNonSolicitation, ClauseTypeGoverningLaw,
		ClauseTypeDisputeResolution, ClauseTypeForceMajeure, ClauseTypeWarranty,
		ClauseTypeAutoRenewal, ClauseTypeDataProtection, ClauseTypeOther,
	}
	assert.Len(t, known, 15)
	for _, ct := range known {
		assert.True(t, IsValidClauseType(ct), string(ct))
	}
}
