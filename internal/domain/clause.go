package domain

import (
	"fmt"
	"time"
)

// ClauseType classifies an extracted contract clause
type ClauseType string

const (
	ClauseTypeConfidentiality    ClauseType = "confidentiality"
	ClauseTypeLiability          ClauseType = "liability"
	ClauseTypeIndemnification    ClauseType = "indemnification"
	ClauseTypeTermination        ClauseType = "termination"
	ClauseTypePayment            ClauseType = "payment"
	ClauseTypeIntellectualProp   ClauseType = "intellectual_property"
	ClauseTypeNonCompete         ClauseType = "non_compete"
	ClauseTypeNonSolicitation    ClauseType = "non_solicitation"
	ClauseTypeGoverningLaw       ClauseType = "governing_law"
	ClauseTypeDisputeResolution  ClauseType = "dispute_resolution"
	ClauseTypeForceMajeure       ClauseType = "force_majeure"
	ClauseTypeWarranty           ClauseType = "warranty"
	ClauseTypeAutoRenewal        ClauseType = "auto_renewal"
	ClauseTypeDataProtection     ClauseType = "data_protection"
	ClauseTypeOther              ClauseType = "other"
)

// RiskLevel grades the severity of a clause finding
type RiskLevel string

const (
	RiskLevelCritical RiskLevel = "critical"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelLow      RiskLevel = "low"
)

// MaxClauseTextLength bounds the verbatim excerpt stored per clause.
const MaxClauseTextLength = 2000

// Clause represents a typed, risk-annotated excerpt of contract text
type Clause struct {
	ID              string
	DocumentID      string
	Type            ClauseType
	Text            string
	PageNumber      *int
	RiskLevel       RiskLevel
	RiskExplanation string
	CreatedAt       time.Time
}

// RiskSeverity returns a numeric rank for a risk level, higher is worse.
// Unknown levels rank below low so they never displace a known finding.
func RiskSeverity(level RiskLevel) int {
	switch level {
	case RiskLevelCritical:
		return 4
	case RiskLevelHigh:
		return 3
	case RiskLevelMedium:
		return 2
	case RiskLevelLow:
		return 1
	}
	return 0
}

// NormalizeClauseType maps arbitrary model output to a known clause type,
// falling back to "other" rather than rejecting the clause.
func NormalizeClauseType(raw string) ClauseType {
	t := ClauseType(raw)
	if IsValidClauseType(t) {
		return t
	}
	return ClauseTypeOther
}

// IsValidClauseType checks if a ClauseType is one of the known values
func IsValidClauseType(t ClauseType) bool {
	switch t {
	case ClauseTypeConfidentiality, ClauseTypeLiability, ClauseTypeIndemnification,
		ClauseTypeTermination, ClauseTypePayment, ClauseTypeIntellectualProp,
		ClauseTypeNonCompete, ClauseTypeNonSolicitation, ClauseTypeGoverningLaw,
		ClauseTypeDisputeResolution, ClauseTypeForceMajeure, ClauseTypeWarranty,
		ClauseTypeAutoRenewal, ClauseTypeDataProtection, ClauseTypeOther:
		return true
	}
	return false
}

// IsValidRiskLevel checks if a RiskLevel is one of the known values
func IsValidRiskLevel(l RiskLevel) bool {
	switch l {
	case RiskLevelCritical, RiskLevelHigh, RiskLevelMedium, RiskLevelLow:
		return true
	}
	return false
}

// ValidateClause validates a Clause instance
func ValidateClause(c *Clause) error {
	if c == nil {
		return fmt.Errorf("clause cannot be nil")
	}

	if c.DocumentID == "" {
		return fmt.Errorf("clause DocumentID is required")
	}

	if c.Text == "" {
		return fmt.Errorf("clause Text is required")
	}

	if len(c.Text) > MaxClauseTextLength {
		return fmt.Errorf("clause Text exceeds %d characters", MaxClauseTextLength)
	}

	if !IsValidClauseType(c.Type) {
		return fmt.Errorf("clause Type is invalid: %s", c.Type)
	}

	if !IsValidRiskLevel(c.RiskLevel) {
		return fmt.Errorf("clause RiskLevel is invalid: %s", c.RiskLevel)
	}

	return nil
}
