package service

import (
	"context"
	"errors"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/clauselens/clauselens/internal/domain"
	"github.com/clauselens/clauselens/internal/extract"
	"github.com/clauselens/clauselens/internal/telemetry"
)

const (
	// PipelineTotalSteps is the number of progress-reported stages in a
	// full analysis run.
	PipelineTotalSteps = 8

	// EmbeddingOnlyTotalSteps covers the shorter embedding-only run.
	EmbeddingOnlyTotalSteps = 4

	// MinWordCount is the extraction floor. Fewer words indicates a
	// corrupt file or an unreadable scan and fails the run.
	MinWordCount = 20
)

// ObjectStore fetches the source document bytes.
type ObjectStore interface {
	DownloadObject(ctx context.Context, key string) ([]byte, error)
}

// TextExtractor converts raw bytes into plain text.
type TextExtractor interface {
	Extract(data []byte, fileType string) (*extract.Result, error)
}

// EmbeddingClient turns texts into fixed-dimension vectors.
type EmbeddingClient interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// DocumentRepositoryInterface defines document persistence for the pipeline.
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByOrgWithCursor(ctx context.Context, orgID string, cursor string, limit int) (*DocumentPageResult, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, message string) error
	UpdateExtraction(ctx context.Context, id string, rawText string, wordCount, pageCount int) error
	UpdateAnalysis(ctx context.Context, d *domain.Document) error
}

// DocumentPageResult is one page of a cursor-paginated document listing.
type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// ClauseRepositoryInterface defines clause persistence.
type ClauseRepositoryInterface interface {
	ReplaceClauses(ctx context.Context, documentID string, clauses []domain.Clause) error
	ListByDocument(ctx context.Context, documentID string) ([]*domain.Clause, error)
}

// EmbeddingRepositoryInterface defines embedding persistence. Inserts
// ignore rows whose (document, content hash) pair already exists.
type EmbeddingRepositoryInterface interface {
	InsertIgnoreDuplicates(ctx context.Context, records []*domain.EmbeddingRecord) (int, error)
	ExistingHashes(ctx context.Context, documentID string) (map[string]bool, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

// CacheInvalidator drops cached search results whose underlying data
// changed.
type CacheInvalidator interface {
	DeletePrefix(prefix string) int
}

// ProgressFunc reports a completed pipeline stage. Step N is always
// reported before step N+1 within one run.
type ProgressFunc func(ctx context.Context, step, total int) error

// PipelineService sequences a document through extraction, chunking,
// embedding, clause analysis, scoring, and summarization.
type PipelineService struct {
	storage    ObjectStore
	extractor  TextExtractor
	embedder   EmbeddingClient
	extraction *ExtractionService
	risk       *RiskService
	summary    *SummaryService

	docRepo    DocumentRepositoryInterface
	clauseRepo ClauseRepositoryInterface
	embedRepo  EmbeddingRepositoryInterface
	cache      CacheInvalidator

	uuidGen  UUIDGenerator
	chunkCfg ChunkConfig
}

// NewPipelineService wires the pipeline's collaborators together.
func NewPipelineService(
	storage ObjectStore,
	extractor TextExtractor,
	embedder EmbeddingClient,
	extraction *ExtractionService,
	risk *RiskService,
	summary *SummaryService,
	docRepo DocumentRepositoryInterface,
	clauseRepo ClauseRepositoryInterface,
	embedRepo EmbeddingRepositoryInterface,
	cache CacheInvalidator,
) *PipelineService {
	return &PipelineService{
		storage:    storage,
		extractor:  extractor,
		embedder:   embedder,
		extraction: extraction,
		risk:       risk,
		summary:    summary,
		docRepo:    docRepo,
		clauseRepo: clauseRepo,
		embedRepo:  embedRepo,
		cache:      cache,
		uuidGen:    &DefaultUUIDGenerator{},
		chunkCfg:   DefaultChunkConfig(),
	}
}

// SetUUIDGenerator overrides ID generation (for testing).
func (s *PipelineService) SetUUIDGenerator(gen UUIDGenerator) {
	s.uuidGen = gen
}

// Run executes a full analysis for one document. Any uncaught error
// marks the document failed and is returned so the job runner's retry
// policy applies. Deep risk analysis failures degrade rather than fail.
func (s *PipelineService) Run(ctx context.Context, documentID string, progress ProgressFunc) error {
	ctx, span := telemetry.StartSpan(ctx, "PipelineService.Run", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "analysis",
	})
	defer span.End()

	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	if err := s.run(ctx, doc, progress); err != nil {
		span.SetError(err)
		if updateErr := s.docRepo.UpdateStatus(ctx, doc.ID, domain.DocumentStatusFailed, failureMessage(err)); updateErr != nil {
			log.Printf("pipeline: failed to mark document %s failed: %v", doc.ID, updateErr)
		}
		return err
	}

	return nil
}

func (s *PipelineService) run(ctx context.Context, doc *domain.Document, progress ProgressFunc) error {
	report := func(step int) error {
		if progress == nil {
			return nil
		}
		return progress(ctx, step, PipelineTotalSteps)
	}

	// Step 1: mark processing.
	if err := s.docRepo.UpdateStatus(ctx, doc.ID, domain.DocumentStatusProcessing, ""); err != nil {
		return err
	}
	if err := report(1); err != nil {
		return err
	}

	// Step 2: fetch the source bytes.
	data, err := s.storage.DownloadObject(ctx, doc.StorageKey)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to download document", err)
	}
	if err := report(2); err != nil {
		return err
	}

	// Step 3: extract text. Too few words means the file is unusable.
	extracted, err := s.extractor.Extract(data, fileType(doc.Filename))
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "text extraction failed", err)
	}
	if extracted.WordCount < MinWordCount {
		return domain.ErrTextTooShort
	}
	if err := s.docRepo.UpdateExtraction(ctx, doc.ID, extracted.Text, extracted.WordCount, extracted.PageCount); err != nil {
		return err
	}
	if err := report(3); err != nil {
		return err
	}

	// Step 4: chunk.
	chunks := ChunkText(extracted.Text, s.chunkCfg)
	if err := report(4); err != nil {
		return err
	}

	// Step 5: embeddings and clause/date/type extraction in parallel.
	// They hit independent external services.
	var (
		wg         sync.WaitGroup
		embeddings [][]float32
		embedErr   error
		clauses    []domain.Clause
		clauseErr  error
		dates      *ContractDates
		detection  *TypeDetection
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		embeddings, embedErr = s.embedChunks(ctx, chunks)
	}()
	go func() {
		defer wg.Done()
		clauses, clauseErr = s.extraction.ExtractClauses(ctx, extracted.Text)
		if clauseErr != nil {
			return
		}

		var err error
		dates, err = s.extraction.ExtractDates(ctx, extracted.Text)
		if err != nil {
			log.Printf("pipeline: date extraction failed for %s, continuing without dates: %v", doc.ID, err)
			dates = &ContractDates{}
		}

		detection, err = s.extraction.DetectType(ctx, extracted.Text)
		if err != nil {
			log.Printf("pipeline: type detection failed for %s, keeping declared type: %v", doc.ID, err)
			detection = &TypeDetection{Type: doc.Type}
		}
	}()
	wg.Wait()

	if embedErr != nil {
		return embedErr
	}
	if clauseErr != nil {
		return clauseErr
	}
	if err := report(5); err != nil {
		return err
	}

	// Step 6: persist embeddings and clauses. Each run is authoritative,
	// so prior rows go first.
	if err := s.embedRepo.DeleteByDocument(ctx, doc.ID); err != nil {
		return err
	}
	records := s.buildRecords(doc.ID, chunks, embeddings)
	if _, err := s.embedRepo.InsertIgnoreDuplicates(ctx, records); err != nil {
		return err
	}
	for i := range clauses {
		clauses[i].ID = s.uuidGen.NewString()
		clauses[i].DocumentID = doc.ID
	}
	if err := s.clauseRepo.ReplaceClauses(ctx, doc.ID, clauses); err != nil {
		return err
	}
	if err := report(6); err != nil {
		return err
	}

	// Step 7: risk scoring and summarization in parallel. Both degrade
	// internally and never fail the run.
	var (
		riskResult RiskResult
		summary    string
	)

	expiration := ""
	if dates != nil && dates.ExpirationDate != nil {
		expiration = dates.ExpirationDate.Format("2006-01-02")
	}
	counterparty := doc.Counterparty
	docType := doc.Type
	if detection != nil {
		if detection.Counterparty != "" {
			counterparty = detection.Counterparty
		}
		if detection.Type != domain.DocumentTypeOther {
			docType = detection.Type
		}
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		riskResult = s.risk.Score(ctx, clauses)
	}()
	go func() {
		defer wg.Done()
		summary = s.summary.Generate(ctx, SummaryInput{
			Text:         extracted.Text,
			DocType:      docType,
			Counterparty: counterparty,
			Expiration:   expiration,
			Clauses:      clauses,
		})
	}()
	wg.Wait()

	if err := report(7); err != nil {
		return err
	}

	// Step 8: persist the final document state.
	now := time.Now().UTC()
	doc.Type = docType
	doc.Counterparty = counterparty
	if dates != nil {
		doc.EffectiveDate = dates.EffectiveDate
		doc.ExpirationDate = dates.ExpirationDate
		doc.AutoRenewal = dates.AutoRenewal
		doc.NoticePeriodDays = dates.NoticePeriodDays
	}
	score := riskResult.OverallScore
	doc.RiskScore = &score
	doc.RiskLabel = riskResult.Label
	doc.Summary = summary
	doc.LastAnalyzedAt = &now
	doc.Status = domain.DocumentStatusReady
	doc.StatusMessage = ""

	if err := s.docRepo.UpdateAnalysis(ctx, doc); err != nil {
		return err
	}
	if err := report(8); err != nil {
		return err
	}

	s.invalidateSearchCache(doc.OrgID)
	return nil
}

// RunEmbeddingOnly refreshes a document's vector index without the
// analysis stages. Chunks whose content hash is already stored are
// skipped, so unchanged documents insert zero new rows.
func (s *PipelineService) RunEmbeddingOnly(ctx context.Context, documentID string, progress ProgressFunc) error {
	ctx, span := telemetry.StartSpan(ctx, "PipelineService.RunEmbeddingOnly", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "embedding",
	})
	defer span.End()

	report := func(step int) error {
		if progress == nil {
			return nil
		}
		return progress(ctx, step, EmbeddingOnlyTotalSteps)
	}

	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.RawText == "" {
		return domain.ErrDocumentHasNoText
	}
	if err := report(1); err != nil {
		return err
	}

	chunks := ChunkText(doc.RawText, s.chunkCfg)
	if err := report(2); err != nil {
		return err
	}

	existing, err := s.embedRepo.ExistingHashes(ctx, doc.ID)
	if err != nil {
		return err
	}

	var newChunks []domain.Chunk
	for _, c := range chunks {
		if !existing[c.ContentHash] {
			newChunks = append(newChunks, c)
		}
	}
	if err := report(3); err != nil {
		return err
	}

	if len(newChunks) > 0 {
		embeddings, err := s.embedChunks(ctx, newChunks)
		if err != nil {
			span.SetError(err)
			return err
		}

		records := s.buildRecords(doc.ID, newChunks, embeddings)
		if _, err := s.embedRepo.InsertIgnoreDuplicates(ctx, records); err != nil {
			return err
		}
		s.invalidateSearchCache(doc.OrgID)
	}

	return report(4)
}

func (s *PipelineService) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return s.embedder.EmbedBatch(ctx, texts)
}

func (s *PipelineService) buildRecords(documentID string, chunks []domain.Chunk, embeddings [][]float32) []*domain.EmbeddingRecord {
	now := time.Now().UTC()
	records := make([]*domain.EmbeddingRecord, 0, len(chunks))
	for i, c := range chunks {
		if i >= len(embeddings) {
			break
		}
		records = append(records, &domain.EmbeddingRecord{
			ID:          s.uuidGen.NewString(),
			DocumentID:  documentID,
			ChunkIndex:  c.Index,
			ChunkText:   c.Text,
			ContentHash: c.ContentHash,
			Embedding:   embeddings[i],
			CreatedAt:   now,
		})
	}
	return records
}

func (s *PipelineService) invalidateSearchCache(orgID string) {
	if s.cache == nil {
		return
	}
	s.cache.DeletePrefix(searchCachePrefix(orgID))
}

// failureMessage keeps the user-visible status message short. Internal
// retry detail stays in the logs.
func failureMessage(err error) string {
	var derr *domain.DomainError
	if errors.As(err, &derr) {
		return derr.Message
	}
	msg := err.Error()
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

func fileType(filename string) string {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if ext == "" {
		return "txt"
	}
	return ext
}
