package service

import (
	"context"
	"strings"
	"time"

	"github.com/clauselens/clauselens/internal/domain"
	"github.com/clauselens/clauselens/internal/telemetry"
)

// AnalysisJobRepositoryInterface defines job enqueueing for the
// document service.
type AnalysisJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.AnalysisJob) error
	HasActiveJob(ctx context.Context, documentID string) (bool, error)
}

// DocumentService handles registration and read access for documents.
type DocumentService struct {
	docRepo    DocumentRepositoryInterface
	clauseRepo ClauseRepositoryInterface
	jobRepo    AnalysisJobRepositoryInterface
	uuidGen    UUIDGenerator
}

// NewDocumentService creates a new DocumentService instance.
func NewDocumentService(
	docRepo DocumentRepositoryInterface,
	clauseRepo ClauseRepositoryInterface,
	jobRepo AnalysisJobRepositoryInterface,
) *DocumentService {
	return &DocumentService{
		docRepo:    docRepo,
		clauseRepo: clauseRepo,
		jobRepo:    jobRepo,
		uuidGen:    &DefaultUUIDGenerator{},
	}
}

// NewDocumentServiceWithUUIDGen creates a DocumentService with a custom
// UUID generator (for testing).
func NewDocumentServiceWithUUIDGen(
	docRepo DocumentRepositoryInterface,
	clauseRepo ClauseRepositoryInterface,
	jobRepo AnalysisJobRepositoryInterface,
	uuidGen UUIDGenerator,
) *DocumentService {
	return &DocumentService{
		docRepo:    docRepo,
		clauseRepo: clauseRepo,
		jobRepo:    jobRepo,
		uuidGen:    uuidGen,
	}
}

// RegisterInput describes an uploaded object to analyze.
type RegisterInput struct {
	OrgID      string
	Filename   string
	StorageKey string
	Type       domain.DocumentType
}

// Register creates a queued document and enqueues its analysis job.
func (s *DocumentService) Register(ctx context.Context, input RegisterInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Register", telemetry.SpanAttributes{
		OrgID:     input.OrgID,
		Operation: "register",
	})
	defer span.End()

	if strings.TrimSpace(input.Filename) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "filename is required")
	}
	if strings.TrimSpace(input.StorageKey) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "storage key is required")
	}
	docType := input.Type
	if docType == "" {
		docType = domain.DocumentTypeOther
	}

	now := time.Now().UTC()
	doc := domain.NewDocument(s.uuidGen.NewString(), input.OrgID, input.Filename, input.StorageKey, docType, now)
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}

	if err := s.docRepo.Create(ctx, doc); err != nil {
		span.SetError(err)
		return nil, err
	}

	job := domain.NewAnalysisJob(s.uuidGen.NewString(), doc.ID, domain.AnalysisJobKindFull, PipelineTotalSteps, now)
	if err := s.jobRepo.Create(ctx, job); err != nil {
		span.SetError(err)
		return nil, err
	}

	return doc, nil
}

// Get returns a document scoped to the org.
func (s *DocumentService) Get(ctx context.Context, orgID, documentID string) (*domain.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.OrgID != orgID {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, nil
}

// ListInput describes one page of a document listing.
type ListInput struct {
	OrgID  string
	Cursor string
	Limit  int
}

// ListOutput is one page of documents.
type ListOutput struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// List returns the org's documents, newest first, cursor-paginated.
func (s *DocumentService) List(ctx context.Context, input ListInput) (*ListOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	page, err := s.docRepo.ListByOrgWithCursor(ctx, input.OrgID, input.Cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListOutput{
		Items:      page.Items,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}, nil
}

// ListClauses returns the persisted clauses for a document.
func (s *DocumentService) ListClauses(ctx context.Context, orgID, documentID string) ([]*domain.Clause, error) {
	if _, err := s.Get(ctx, orgID, documentID); err != nil {
		return nil, err
	}
	return s.clauseRepo.ListByDocument(ctx, documentID)
}

// TriggerAnalysis re-queues an analysis run for a document. A document
// with a live job, pending or processing, is rejected, never queued
// twice.
func (s *DocumentService) TriggerAnalysis(ctx context.Context, orgID, documentID string, kind domain.AnalysisJobKind) (*domain.AnalysisJob, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.TriggerAnalysis", telemetry.SpanAttributes{
		OrgID:      orgID,
		DocumentID: documentID,
		Operation:  "trigger_analysis",
	})
	defer span.End()

	doc, err := s.Get(ctx, orgID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == domain.DocumentStatusProcessing {
		return nil, domain.ErrAnalysisInProgress
	}
	active, err := s.jobRepo.HasActiveJob(ctx, doc.ID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if active {
		return nil, domain.ErrAnalysisInProgress
	}

	totalSteps := PipelineTotalSteps
	if kind == domain.AnalysisJobKindEmbedding {
		totalSteps = EmbeddingOnlyTotalSteps
	} else {
		kind = domain.AnalysisJobKindFull
	}

	now := time.Now().UTC()
	job := domain.NewAnalysisJob(s.uuidGen.NewString(), doc.ID, kind, totalSteps, now)
	if err := s.jobRepo.Create(ctx, job); err != nil {
		span.SetError(err)
		return nil, err
	}

	if err := s.docRepo.UpdateStatus(ctx, doc.ID, domain.DocumentStatusQueued, ""); err != nil {
		return nil, err
	}

	return job, nil
}
