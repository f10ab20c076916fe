package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/clauselens/clauselens/internal/domain"
	"github.com/clauselens/clauselens/internal/llm"
)

// clauseWeights carry the importance of each clause type in the
// deterministic score. Higher weight means a risky finding of that type
// moves the score more.
var clauseWeights = map[domain.ClauseType]float64{
	domain.ClauseTypeLiability:         10,
	domain.ClauseTypeIndemnification:   9,
	domain.ClauseTypeIntellectualProp:  8,
	domain.ClauseTypeDataProtection:    8,
	domain.ClauseTypeTermination:       7,
	domain.ClauseTypeNonCompete:        7,
	domain.ClauseTypeConfidentiality:   6,
	domain.ClauseTypePayment:           6,
	domain.ClauseTypeWarranty:          6,
	domain.ClauseTypeAutoRenewal:       5,
	domain.ClauseTypeNonSolicitation:   5,
	domain.ClauseTypeDisputeResolution: 4,
	domain.ClauseTypeGoverningLaw:      3,
	domain.ClauseTypeForceMajeure:      3,
	domain.ClauseTypeOther:             2,
}

// severityMultipliers scale a clause's weight by its risk level.
var severityMultipliers = map[domain.RiskLevel]float64{
	domain.RiskLevelCritical: 1.0,
	domain.RiskLevelHigh:     0.75,
	domain.RiskLevelMedium:   0.5,
	domain.RiskLevelLow:      0.25,
}

// mandatoryClauseTypes are expected in any well-formed contract; their
// absence is itself a risk signal.
var mandatoryClauseTypes = []domain.ClauseType{
	domain.ClauseTypeLiability,
	domain.ClauseTypeTermination,
	domain.ClauseTypeGoverningLaw,
}

// missingClauseMultiplier is the severity assumed for an absent
// mandatory clause type.
const missingClauseMultiplier = 0.5

// algoBlendWeight and llmBlendWeight combine the deterministic score
// with the deep analysis score.
const (
	algoBlendWeight = 0.7
	llmBlendWeight  = 0.3
)

// RiskResult is the output of the deterministic scorer.
type RiskResult struct {
	OverallScore int
	Label        string
	Breakdown    map[domain.ClauseType]float64
	MissingTypes []domain.ClauseType
}

// DeepRiskResult is the holistic LLM re-assessment.
type DeepRiskResult struct {
	RiskScore   int      `json:"risk_score"`
	RiskSummary string   `json:"risk_summary"`
	TopRisks    []string `json:"top_risks"`
}

// ComputeRiskScore aggregates clause weights into a 0-100 score. Pure
// and deterministic.
func ComputeRiskScore(clauses []domain.Clause) RiskResult {
	breakdown := make(map[domain.ClauseType]float64)
	present := make(map[domain.ClauseType]bool)

	var numerator, denominator float64
	for _, c := range clauses {
		weight := clauseWeights[c.Type]
		mult := severityMultipliers[c.RiskLevel]

		contribution := weight * mult
		breakdown[c.Type] += contribution
		present[c.Type] = true

		numerator += contribution
		denominator += weight
	}

	var missing []domain.ClauseType
	for _, t := range mandatoryClauseTypes {
		if present[t] {
			continue
		}
		missing = append(missing, t)

		weight := clauseWeights[t]
		numerator += weight * missingClauseMultiplier
		denominator += weight
	}

	score := 0
	if denominator > 0 {
		score = int(math.Round(100 * numerator / denominator))
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return RiskResult{
		OverallScore: score,
		Label:        RiskLabel(score),
		Breakdown:    breakdown,
		MissingTypes: missing,
	}
}

// RiskLabel buckets a 0-100 score for display.
func RiskLabel(score int) string {
	switch {
	case score >= 80:
		return "critical"
	case score >= 60:
		return "high"
	case score >= 40:
		return "medium"
	default:
		return "low"
	}
}

// BlendScores combines the deterministic and deep analysis scores.
// Both inputs in [0,100] keep the result in [0,100].
func BlendScores(algoScore, llmScore int) int {
	blended := int(math.Round(algoBlendWeight*float64(algoScore) + llmBlendWeight*float64(llmScore)))
	if blended < 0 {
		blended = 0
	}
	if blended > 100 {
		blended = 100
	}
	return blended
}

const deepRiskPrompt = `You are a legal risk analyst. Assess the overall risk of a contract given its extracted clauses.

Respond with a JSON object only:
{"risk_score": integer 0-100 where 100 is highest risk, "risk_summary": one paragraph, "top_risks": array of short strings naming the most significant risks}

Extracted clauses:
`

// RiskService computes deterministic scores and refines them with a
// deep analysis pass when a provider is available.
type RiskService struct {
	provider llm.Provider
}

// NewRiskService creates a risk service over the given provider.
func NewRiskService(provider llm.Provider) *RiskService {
	return &RiskService{provider: provider}
}

// AnalyzeDeep asks the provider for a holistic risk re-assessment.
func (s *RiskService) AnalyzeDeep(ctx context.Context, clauses []domain.Clause) (*DeepRiskResult, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("no completion provider configured")
	}

	var sb strings.Builder
	for _, c := range clauses {
		sb.WriteString(fmt.Sprintf("- [%s, %s risk] %s (%s)\n", c.Type, c.RiskLevel, c.Text, c.RiskExplanation))
	}

	response, err := s.provider.Complete(ctx, deepRiskPrompt+sb.String())
	if err != nil {
		return nil, fmt.Errorf("deep risk analysis failed: %w", err)
	}

	var result DeepRiskResult
	if err := json.Unmarshal([]byte(stripCodeFences(response)), &result); err != nil {
		return nil, fmt.Errorf("deep risk analysis returned invalid JSON: %w", err)
	}

	if result.RiskScore < 0 || result.RiskScore > 100 {
		return nil, fmt.Errorf("deep risk score out of range: %d", result.RiskScore)
	}

	return &result, nil
}

// Score runs the deterministic scorer and blends in the deep analysis.
// Any deep analysis failure degrades to the unmodified algorithmic
// score; a flaky provider never fails the run.
func (s *RiskService) Score(ctx context.Context, clauses []domain.Clause) RiskResult {
	result := ComputeRiskScore(clauses)

	deep, err := s.AnalyzeDeep(ctx, clauses)
	if err != nil {
		log.Printf("risk: deep analysis unavailable, using algorithmic score: %v", err)
		return result
	}

	result.OverallScore = BlendScores(result.OverallScore, deep.RiskScore)
	result.Label = RiskLabel(result.OverallScore)
	return result
}
