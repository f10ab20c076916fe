package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/clauselens/clauselens/internal/api"
	"github.com/clauselens/clauselens/internal/api/middleware"
	"github.com/clauselens/clauselens/internal/domain"
	"github.com/clauselens/clauselens/internal/service"
	"github.com/go-chi/chi/v5"
)

type DocumentService interface {
	Register(ctx context.Context, input service.RegisterInput) (*domain.Document, error)
	Get(ctx context.Context, orgID, documentID string) (*domain.Document, error)
	List(ctx context.Context, input service.ListInput) (*service.ListOutput, error)
	ListClauses(ctx context.Context, orgID, documentID string) ([]*domain.Clause, error)
	TriggerAnalysis(ctx context.Context, orgID, documentID string, kind domain.AnalysisJobKind) (*domain.AnalysisJob, error)
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type RegisterDocumentRequest struct {
	Filename   string `json:"filename"`
	StorageKey string `json:"storage_key"`
	Type       string `json:"type"`
}

type TriggerAnalysisRequest struct {
	Kind string `json:"kind"`
}

type DocumentResponse struct {
	ID               string  `json:"id"`
	OrgID            string  `json:"org_id"`
	Filename         string  `json:"filename"`
	StorageKey       string  `json:"storage_key"`
	Type             string  `json:"type"`
	Status           string  `json:"status"`
	StatusMessage    string  `json:"status_message,omitempty"`
	WordCount        int     `json:"word_count"`
	PageCount        int     `json:"page_count"`
	Counterparty     string  `json:"counterparty,omitempty"`
	EffectiveDate    *string `json:"effective_date,omitempty"`
	ExpirationDate   *string `json:"expiration_date,omitempty"`
	AutoRenewal      bool    `json:"auto_renewal"`
	NoticePeriodDays *int    `json:"notice_period_days,omitempty"`
	RiskScore        *int    `json:"risk_score,omitempty"`
	RiskLabel        string  `json:"risk_label,omitempty"`
	Summary          string  `json:"summary,omitempty"`
	LastAnalyzedAt   *string `json:"last_analyzed_at,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

type ClauseResponse struct {
	ID              string `json:"id"`
	DocumentID      string `json:"document_id"`
	Type            string `json:"type"`
	Text            string `json:"text"`
	PageNumber      *int   `json:"page_number,omitempty"`
	RiskLevel       string `json:"risk_level"`
	RiskExplanation string `json:"risk_explanation,omitempty"`
	CreatedAt       string `json:"created_at"`
}

type AnalysisJobResponse struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Kind       string `json:"kind"`
	Status     string `json:"status"`
	Step       int    `json:"step"`
	TotalSteps int    `json:"total_steps"`
	CreatedAt  string `json:"created_at"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:               d.ID,
		OrgID:            d.OrgID,
		Filename:         d.Filename,
		StorageKey:       d.StorageKey,
		Type:             string(d.Type),
		Status:           string(d.Status),
		StatusMessage:    d.StatusMessage,
		WordCount:        d.WordCount,
		PageCount:        d.PageCount,
		Counterparty:     d.Counterparty,
		EffectiveDate:    formatDate(d.EffectiveDate),
		ExpirationDate:   formatDate(d.ExpirationDate),
		AutoRenewal:      d.AutoRenewal,
		NoticePeriodDays: d.NoticePeriodDays,
		RiskScore:        d.RiskScore,
		RiskLabel:        d.RiskLabel,
		Summary:          d.Summary,
		LastAnalyzedAt:   formatTimestamp(d.LastAnalyzedAt),
		CreatedAt:        d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        d.UpdatedAt.Format(time.RFC3339),
	}
}

func clauseToResponse(c *domain.Clause) *ClauseResponse {
	return &ClauseResponse{
		ID:              c.ID,
		DocumentID:      c.DocumentID,
		Type:            string(c.Type),
		Text:            c.Text,
		PageNumber:      c.PageNumber,
		RiskLevel:       string(c.RiskLevel),
		RiskExplanation: c.RiskExplanation,
		CreatedAt:       c.CreatedAt.Format(time.RFC3339),
	}
}

func jobToResponse(j *domain.AnalysisJob) *AnalysisJobResponse {
	return &AnalysisJobResponse{
		ID:         j.ID,
		DocumentID: j.DocumentID,
		Kind:       string(j.Kind),
		Status:     string(j.Status),
		Step:       j.Step,
		TotalSteps: j.TotalSteps,
		CreatedAt:  j.CreatedAt.Format(time.RFC3339),
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}

func formatTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func (h *DocumentHandler) Register(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgID(r.Context())
	if orgID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RegisterDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Filename == "" {
		api.Error(w, http.StatusBadRequest, "filename is required")
		return
	}
	if req.StorageKey == "" {
		api.Error(w, http.StatusBadRequest, "storage_key is required")
		return
	}

	docType := domain.DocumentTypeOther
	if req.Type != "" {
		docType = domain.DocumentType(req.Type)
		if !isValidDocumentType(docType) {
			api.Error(w, http.StatusBadRequest, "invalid document type")
			return
		}
	}

	doc, err := h.svc.Register(r.Context(), service.RegisterInput{
		OrgID:      orgID,
		Filename:   req.Filename,
		StorageKey: req.StorageKey,
		Type:       docType,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, documentToResponse(doc))
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgID(r.Context())
	if orgID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.Get(r.Context(), orgID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

type DocumentListResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgID(r.Context())
	if orgID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	cursor := r.URL.Query().Get("cursor")
	limitStr := r.URL.Query().Get("limit")
	limit := 20
	if limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	output, err := h.svc.List(r.Context(), service.ListInput{
		OrgID:  orgID,
		Cursor: cursor,
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, len(output.Items))
	for i, d := range output.Items {
		responses[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, DocumentListResponse{
		Items:   responses,
		Cursor:  output.NextCursor,
		HasMore: output.HasMore,
	})
}

type ClauseListResponse struct {
	Items []*ClauseResponse `json:"items"`
}

func (h *DocumentHandler) ListClauses(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgID(r.Context())
	if orgID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	clauses, err := h.svc.ListClauses(r.Context(), orgID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*ClauseResponse, len(clauses))
	for i, c := range clauses {
		responses[i] = clauseToResponse(c)
	}

	api.Success(w, http.StatusOK, ClauseListResponse{Items: responses})
}

func (h *DocumentHandler) TriggerAnalysis(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgID(r.Context())
	if orgID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req TriggerAnalysisRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	kind := domain.AnalysisJobKindFull
	if req.Kind == string(domain.AnalysisJobKindEmbedding) {
		kind = domain.AnalysisJobKindEmbedding
	}

	job, err := h.svc.TriggerAnalysis(r.Context(), orgID, id, kind)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, jobToResponse(job))
}

func isValidDocumentType(t domain.DocumentType) bool {
	switch t {
	case domain.DocumentTypeNDA, domain.DocumentTypeMSA, domain.DocumentTypeEmployment,
		domain.DocumentTypeLease, domain.DocumentTypeSOW, domain.DocumentTypeLicense, domain.DocumentTypeOther:
		return true
	}
	return false
}
