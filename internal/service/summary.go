package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/clauselens/clauselens/internal/domain"
	"github.com/clauselens/clauselens/internal/llm"
)

// summarySampleSize bounds how much contract text goes into the prompt.
const summarySampleSize = 10000

const summaryPrompt = `Summarize the contract below for a business reader in three to five sentences. Cover what the contract is, who the counterparty is, the key obligations, and the most significant risks. Plain language, no legal jargon, no markdown.

`

// SummaryInput carries the structured fields available to the summarizer.
type SummaryInput struct {
	Text         string
	DocType      domain.DocumentType
	Counterparty string
	Expiration   string
	Clauses      []domain.Clause
}

// SummaryService produces a plain-language contract summary.
type SummaryService struct {
	provider llm.Provider
}

// NewSummaryService creates a summary service over the given provider.
func NewSummaryService(provider llm.Provider) *SummaryService {
	return &SummaryService{provider: provider}
}

// Generate returns a summary. The provider chain is tried first; when
// every provider fails the summary is assembled from structured fields,
// so this never returns an error.
func (s *SummaryService) Generate(ctx context.Context, input SummaryInput) string {
	if s.provider != nil {
		prompt := s.buildPrompt(input)
		summary, err := s.provider.Complete(ctx, prompt)
		if err == nil {
			summary = strings.TrimSpace(summary)
			if summary != "" {
				return summary
			}
		} else {
			log.Printf("summary: providers unavailable, using template fallback: %v", err)
		}
	}

	return TemplateSummary(input)
}

func (s *SummaryService) buildPrompt(input SummaryInput) string {
	var sb strings.Builder
	sb.WriteString(summaryPrompt)

	if input.DocType != "" {
		fmt.Fprintf(&sb, "Declared type: %s\n", input.DocType)
	}
	if len(input.Clauses) > 0 {
		sb.WriteString("Notable clauses:\n")
		for _, c := range input.Clauses {
			fmt.Fprintf(&sb, "- [%s, %s risk] %s\n", c.Type, c.RiskLevel, c.RiskExplanation)
		}
	}

	sb.WriteString("\nContract text:\n")
	sb.WriteString(sampleText(input.Text, summarySampleSize))
	return sb.String()
}

// TemplateSummary assembles a summary purely from structured fields.
func TemplateSummary(input SummaryInput) string {
	docType := describeDocType(input.DocType)

	var sb strings.Builder
	if input.Counterparty != "" {
		fmt.Fprintf(&sb, "This is a %s with %s.", docType, input.Counterparty)
	} else {
		fmt.Fprintf(&sb, "This is a %s.", docType)
	}

	if input.Expiration != "" {
		fmt.Fprintf(&sb, " It expires on %s.", input.Expiration)
	}

	critical, high := 0, 0
	for _, c := range input.Clauses {
		switch c.RiskLevel {
		case domain.RiskLevelCritical:
			critical++
		case domain.RiskLevelHigh:
			high++
		}
	}

	switch {
	case critical > 0 && high > 0:
		fmt.Fprintf(&sb, " The analysis found %d critical-risk and %d high-risk clauses that warrant review.", critical, high)
	case critical > 0:
		fmt.Fprintf(&sb, " The analysis found %d critical-risk clauses that warrant review.", critical)
	case high > 0:
		fmt.Fprintf(&sb, " The analysis found %d high-risk clauses that warrant review.", high)
	default:
		sb.WriteString(" The analysis found no critical or high-risk clauses.")
	}

	return sb.String()
}

func describeDocType(t domain.DocumentType) string {
	switch t {
	case domain.DocumentTypeNDA:
		return "non-disclosure agreement"
	case domain.DocumentTypeMSA:
		return "master service agreement"
	case domain.DocumentTypeEmployment:
		return "employment agreement"
	case domain.DocumentTypeLease:
		return "lease agreement"
	case domain.DocumentTypeSOW:
		return "statement of work"
	case domain.DocumentTypeLicense:
		return "license agreement"
	default:
		return "contract"
	}
}
