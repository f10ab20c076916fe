package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/clauselens/clauselens/internal/domain"
	"github.com/clauselens/clauselens/internal/telemetry"
)

const (
	// DefaultSearchLimit applies when the caller does not specify one.
	DefaultSearchLimit = 10

	// MaxSearchLimit bounds how many results one search can request.
	MaxSearchLimit = 50

	// searchOverfetchFactor compensates for the score-threshold filter
	// applied after the nearest-neighbor query.
	searchOverfetchFactor = 3
)

// Relevance bucket thresholds.
const (
	relevanceVeryHigh = 0.85
	relevanceHigh     = 0.70
	relevanceMedium   = 0.55
)

// ChunkMatch is one row returned by the vector search.
type ChunkMatch struct {
	EmbeddingID string
	DocumentID  string
	Filename    string
	ChunkText   string
	Similarity  float64
}

// SearchRepositoryInterface defines scope resolution and vector search.
type SearchRepositoryInterface interface {
	ListReadyDocumentIDs(ctx context.Context, orgID string, docType domain.DocumentType) ([]string, error)
	SearchByEmbedding(ctx context.Context, embedding []float32, documentIDs []string, limit int) ([]*ChunkMatch, error)
}

// SearchCache stores computed search responses under derived keys.
type SearchCache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
}

// SearchInput is one retrieval request.
type SearchInput struct {
	OrgID       string
	Query       string
	Limit       int
	MinScore    float64
	DocumentIDs []string
	DocType     domain.DocumentType
}

// SearchResult is one scored chunk enriched with document metadata.
type SearchResult struct {
	EmbeddingID     string  `json:"embedding_id"`
	DocumentID      string  `json:"document_id"`
	Filename        string  `json:"filename"`
	ChunkText       string  `json:"chunk_text"`
	SimilarityScore float64 `json:"similarity_score"`
	RelevanceLabel  string  `json:"relevance_label"`
}

// SearchOutput is the retrieval engine's response.
type SearchOutput struct {
	Results            []SearchResult `json:"results"`
	TotalResults       int            `json:"total_results"`
	Cached             bool           `json:"cached"`
	EmbeddingLatencyMs int64          `json:"embedding_latency_ms"`
	SearchLatencyMs    int64          `json:"search_latency_ms"`
}

// SearchService embeds queries and runs scoped vector search with
// short-TTL result caching.
type SearchService struct {
	embedder EmbeddingClient
	repo     SearchRepositoryInterface
	cache    SearchCache
}

// NewSearchService creates a search service.
func NewSearchService(embedder EmbeddingClient, repo SearchRepositoryInterface, cache SearchCache) *SearchService {
	return &SearchService{
		embedder: embedder,
		repo:     repo,
		cache:    cache,
	}
}

// Search resolves the scope, consults the cache, and on a miss embeds
// the query and runs the nearest-neighbor search. An empty scope
// short-circuits without calling the embedding service.
func (s *SearchService) Search(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		OrgID:     input.OrgID,
		Operation: "search",
	})
	defer span.End()

	if input.OrgID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "org id is required")
	}
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "query is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	scope, err := s.resolveScope(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(scope) == 0 {
		return &SearchOutput{Results: []SearchResult{}, TotalResults: 0}, nil
	}

	key := searchCacheKey(input.OrgID, query, limit, input.MinScore, scope)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			if output, ok := cached.(*SearchOutput); ok {
				hit := *output
				hit.Cached = true
				return &hit, nil
			}
		}
	}

	embedStart := time.Now()
	embedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	embedLatency := time.Since(embedStart)

	searchStart := time.Now()
	matches, err := s.repo.SearchByEmbedding(ctx, embedding, scope, limit*searchOverfetchFactor)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	searchLatency := time.Since(searchStart)

	results := make([]SearchResult, 0, limit)
	for _, m := range matches {
		if m.Similarity < input.MinScore {
			continue
		}
		if len(results) >= limit {
			break
		}
		results = append(results, SearchResult{
			EmbeddingID:     m.EmbeddingID,
			DocumentID:      m.DocumentID,
			Filename:        m.Filename,
			ChunkText:       m.ChunkText,
			SimilarityScore: m.Similarity,
			RelevanceLabel:  relevanceLabel(m.Similarity),
		})
	}

	output := &SearchOutput{
		Results:            results,
		TotalResults:       len(results),
		EmbeddingLatencyMs: embedLatency.Milliseconds(),
		SearchLatencyMs:    searchLatency.Milliseconds(),
	}

	if s.cache != nil {
		s.cache.Set(key, output)
	}

	return output, nil
}

// resolveScope turns the request into a concrete set of document IDs:
// either the caller's explicit set or all ready documents for the org,
// optionally filtered by type.
func (s *SearchService) resolveScope(ctx context.Context, input SearchInput) ([]string, error) {
	if len(input.DocumentIDs) > 0 {
		scope := make([]string, len(input.DocumentIDs))
		copy(scope, input.DocumentIDs)
		return scope, nil
	}
	return s.repo.ListReadyDocumentIDs(ctx, input.OrgID, input.DocType)
}

// searchCachePrefix is the invalidation prefix for one org's cached
// searches.
func searchCachePrefix(orgID string) string {
	return "search:org:" + orgID + ":"
}

// searchCacheKey derives a stable key from the request and the resolved
// scope. The scope fingerprint is order-independent.
func searchCacheKey(orgID, query string, limit int, minScore float64, scope []string) string {
	sorted := make([]string, len(scope))
	copy(sorted, scope)
	sort.Strings(sorted)

	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	payload := fmt.Sprintf("%s|%s|%d|%.4f|%s", orgID, normalized, limit, minScore, strings.Join(sorted, ","))
	sum := sha256.Sum256([]byte(payload))
	return searchCachePrefix(orgID) + hex.EncodeToString(sum[:])
}

func relevanceLabel(score float64) string {
	switch {
	case score >= relevanceVeryHigh:
		return "very_high"
	case score >= relevanceHigh:
		return "high"
	case score >= relevanceMedium:
		return "medium"
	default:
		return "low"
	}
}
