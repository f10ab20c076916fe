package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/clauselens/clauselens/internal/domain"
	"github.com/clauselens/clauselens/internal/llm"
)

const (
	// DefaultWindowSize is the per-window character count for clause
	// extraction. Windows are coarser than embedding chunks because they
	// target the completion service's context limit.
	DefaultWindowSize = 12000

	// DefaultWindowOverlap keeps clauses that straddle a window boundary
	// visible in at least one window.
	DefaultWindowOverlap = 500

	// dedupPrefixLength is how many leading characters of clause text
	// are compared when collapsing near-identical repeats.
	dedupPrefixLength = 100

	// detectionSampleSize bounds how much text is sent for type and
	// date detection. The opening pages carry the relevant language.
	detectionSampleSize = 8000
)

// clausePrompt lists the recognized clause types and the response shape.
const clausePrompt = `You are a legal contract analyst. Identify the notable clauses in the contract text below.

For each clause return an object with:
- "clause_type": one of confidentiality, liability, indemnification, termination, payment, intellectual_property, non_compete, non_solicitation, governing_law, dispute_resolution, force_majeure, warranty, auto_renewal, data_protection, other
- "text": the verbatim excerpt (at most 2000 characters)
- "risk_level": one of critical, high, medium, low, judged from the perspective of the party receiving this contract
- "risk_explanation": one sentence on why this clause carries that risk

Respond with a JSON array only. If no notable clauses are present, respond with [].

Contract text:
`

const datesPrompt = `Extract the key dates and renewal terms from the contract text below.

Respond with a JSON object only:
{"effective_date": "YYYY-MM-DD" or null, "expiration_date": "YYYY-MM-DD" or null, "auto_renewal": true or false, "notice_period_days": integer or null}

Contract text:
`

const typePrompt = `Classify the contract text below.

Respond with a JSON object only:
{"doc_type": one of nda, msa, employment, lease, sow, license, other, "counterparty": the name of the counterparty or null}

Contract text:
`

// ContractDates holds the date and renewal terms extracted from a contract.
type ContractDates struct {
	EffectiveDate    *time.Time
	ExpirationDate   *time.Time
	AutoRenewal      bool
	NoticePeriodDays *int
}

// TypeDetection holds the classified contract type and counterparty.
type TypeDetection struct {
	Type         domain.DocumentType
	Counterparty string
}

// ExtractionConfig controls windowing for clause extraction.
type ExtractionConfig struct {
	WindowSize    int
	WindowOverlap int
}

// DefaultExtractionConfig provides the standard extraction parameters.
func DefaultExtractionConfig() ExtractionConfig {
	return ExtractionConfig{
		WindowSize:    DefaultWindowSize,
		WindowOverlap: DefaultWindowOverlap,
	}
}

// ExtractionService identifies clauses, dates, and contract types using
// a completion provider.
type ExtractionService struct {
	provider llm.Provider
	cfg      ExtractionConfig
}

// NewExtractionService creates an extraction service over the given provider.
func NewExtractionService(provider llm.Provider, cfg ExtractionConfig) *ExtractionService {
	if cfg.WindowSize <= 0 {
		cfg = DefaultExtractionConfig()
	}
	return &ExtractionService{provider: provider, cfg: cfg}
}

// rawClause is the loosely-typed shape returned by the model, validated
// before it becomes a domain.Clause.
type rawClause struct {
	ClauseType      string `json:"clause_type"`
	Text            string `json:"text"`
	PageNumber      *int   `json:"page_number"`
	RiskLevel       string `json:"risk_level"`
	RiskExplanation string `json:"risk_explanation"`
}

// ExtractClauses identifies typed, risk-annotated clauses in the text.
// Large documents are split into overlapping windows dispatched
// concurrently; a failed window contributes zero clauses.
func (s *ExtractionService) ExtractClauses(ctx context.Context, text string) ([]domain.Clause, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	windows := splitWindows(text, s.cfg.WindowSize, s.cfg.WindowOverlap)

	var (
		mu      sync.Mutex
		clauses []domain.Clause
		wg      sync.WaitGroup
	)

	for i, window := range windows {
		wg.Add(1)
		go func(index int, window string) {
			defer wg.Done()

			found, err := s.extractWindow(ctx, window)
			if err != nil {
				log.Printf("extraction: window %d failed, continuing without it: %v", index, err)
				return
			}

			mu.Lock()
			clauses = append(clauses, found...)
			mu.Unlock()
		}(i, window)
	}
	wg.Wait()

	return DedupClauses(clauses), nil
}

func (s *ExtractionService) extractWindow(ctx context.Context, window string) ([]domain.Clause, error) {
	response, err := s.provider.Complete(ctx, clausePrompt+window)
	if err != nil {
		return nil, err
	}

	raw, err := parseClauseResponse(response)
	if err != nil {
		return nil, err
	}

	clauses := make([]domain.Clause, 0, len(raw))
	for _, rc := range raw {
		text := strings.TrimSpace(rc.Text)
		if text == "" {
			continue
		}
		text = truncateRunes(text, domain.MaxClauseTextLength)

		level := domain.RiskLevel(strings.ToLower(strings.TrimSpace(rc.RiskLevel)))
		if !domain.IsValidRiskLevel(level) {
			continue
		}

		clauses = append(clauses, domain.Clause{
			Type:            domain.NormalizeClauseType(strings.ToLower(strings.TrimSpace(rc.ClauseType))),
			Text:            text,
			PageNumber:      rc.PageNumber,
			RiskLevel:       level,
			RiskExplanation: strings.TrimSpace(rc.RiskExplanation),
		})
	}

	return clauses, nil
}

// ExtractDates pulls effective/expiration dates and renewal terms from
// the opening of the document.
func (s *ExtractionService) ExtractDates(ctx context.Context, text string) (*ContractDates, error) {
	sample := sampleText(text, detectionSampleSize)
	if sample == "" {
		return &ContractDates{}, nil
	}

	response, err := s.provider.Complete(ctx, datesPrompt+sample)
	if err != nil {
		return nil, fmt.Errorf("date extraction failed: %w", err)
	}

	var raw struct {
		EffectiveDate    *string `json:"effective_date"`
		ExpirationDate   *string `json:"expiration_date"`
		AutoRenewal      bool    `json:"auto_renewal"`
		NoticePeriodDays *int    `json:"notice_period_days"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(response)), &raw); err != nil {
		return nil, fmt.Errorf("date extraction returned invalid JSON: %w", err)
	}

	dates := &ContractDates{
		AutoRenewal:      raw.AutoRenewal,
		NoticePeriodDays: raw.NoticePeriodDays,
	}
	dates.EffectiveDate = parseISODate(raw.EffectiveDate)
	dates.ExpirationDate = parseISODate(raw.ExpirationDate)

	return dates, nil
}

// DetectType classifies the contract and names the counterparty.
func (s *ExtractionService) DetectType(ctx context.Context, text string) (*TypeDetection, error) {
	sample := sampleText(text, detectionSampleSize)
	if sample == "" {
		return &TypeDetection{Type: domain.DocumentTypeOther}, nil
	}

	response, err := s.provider.Complete(ctx, typePrompt+sample)
	if err != nil {
		return nil, fmt.Errorf("type detection failed: %w", err)
	}

	var raw struct {
		DocType      string  `json:"doc_type"`
		Counterparty *string `json:"counterparty"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(response)), &raw); err != nil {
		return nil, fmt.Errorf("type detection returned invalid JSON: %w", err)
	}

	detection := &TypeDetection{
		Type: domain.NormalizeDocumentType(strings.ToLower(strings.TrimSpace(raw.DocType))),
	}
	if raw.Counterparty != nil {
		detection.Counterparty = strings.TrimSpace(*raw.Counterparty)
	}

	return detection, nil
}

// DedupClauses collapses near-identical repeats produced by window
// overlap. Within each clause type, higher-severity entries win; an
// entry whose leading text duplicates an already-kept entry is dropped.
func DedupClauses(clauses []domain.Clause) []domain.Clause {
	if len(clauses) == 0 {
		return nil
	}

	byType := make(map[domain.ClauseType][]domain.Clause)
	typeOrder := make([]domain.ClauseType, 0, len(byType))
	for _, c := range clauses {
		if _, seen := byType[c.Type]; !seen {
			typeOrder = append(typeOrder, c.Type)
		}
		byType[c.Type] = append(byType[c.Type], c)
	}

	result := make([]domain.Clause, 0, len(clauses))
	for _, t := range typeOrder {
		group := byType[t]
		sort.SliceStable(group, func(i, j int) bool {
			return domain.RiskSeverity(group[i].RiskLevel) > domain.RiskSeverity(group[j].RiskLevel)
		})

		seen := make(map[string]bool)
		for _, c := range group {
			key := clausePrefix(c.Text)
			if seen[key] {
				continue
			}
			seen[key] = true
			result = append(result, c)
		}
	}

	return result
}

// truncateRunes caps text at max runes. Cutting on runes rather than
// bytes keeps a multi-byte character from being split into invalid
// UTF-8, which the database would reject.
func truncateRunes(text string, max int) string {
	if len(text) <= max {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}

func clausePrefix(text string) string {
	trimmed := strings.ToLower(strings.TrimSpace(text))
	runes := []rune(trimmed)
	if len(runes) > dedupPrefixLength {
		runes = runes[:dedupPrefixLength]
	}
	return string(runes)
}

// splitWindows cuts text into overlapping windows of at most size chars.
func splitWindows(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	windows := make([]string, 0, len(runes)/size+1)
	start := 0
	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}

		windows = append(windows, string(runes[start:end]))

		if end >= len(runes) {
			break
		}

		nextStart := end - overlap
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}

	return windows
}

// parseClauseResponse decodes the model's reply into raw clauses. Code
// fences are stripped and a single-key object wrapping an array is
// unwrapped before decoding.
func parseClauseResponse(response string) ([]rawClause, error) {
	cleaned := stripCodeFences(response)
	if cleaned == "" {
		return nil, fmt.Errorf("empty response")
	}

	var clauses []rawClause
	if err := json.Unmarshal([]byte(cleaned), &clauses); err == nil {
		return clauses, nil
	}

	// Some models wrap the array in an object like {"clauses": [...]}.
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &wrapper); err != nil {
		return nil, fmt.Errorf("response is neither a JSON array nor object")
	}
	if len(wrapper) != 1 {
		return nil, fmt.Errorf("object response has %d keys, expected a single array", len(wrapper))
	}

	for _, v := range wrapper {
		if err := json.Unmarshal(v, &clauses); err != nil {
			return nil, fmt.Errorf("wrapped value is not a clause array: %w", err)
		}
		return clauses, nil
	}

	return nil, fmt.Errorf("empty object response")
}

// stripCodeFences removes markdown code fences around a JSON payload.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func sampleText(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return text
}

func parseISODate(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", strings.TrimSpace(*s))
	if err != nil {
		return nil
	}
	return &t
}
