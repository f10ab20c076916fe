package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/clauselens/clauselens/internal/api"
	"github.com/clauselens/clauselens/internal/api/middleware"
	"github.com/clauselens/clauselens/internal/domain"
	"github.com/clauselens/clauselens/internal/service"
)

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) (*service.SearchOutput, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query       string   `json:"query"`
	Limit       int      `json:"limit"`
	MinScore    float64  `json:"min_score"`
	DocumentIDs []string `json:"document_ids"`
	DocType     string   `json:"doc_type"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgID(r.Context())
	if orgID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.MinScore < 0 || req.MinScore > 1 {
		api.Error(w, http.StatusBadRequest, "min_score must be between 0 and 1")
		return
	}

	docType := domain.DocumentType("")
	if req.DocType != "" {
		docType = domain.DocumentType(req.DocType)
		if !isValidDocumentType(docType) {
			api.Error(w, http.StatusBadRequest, "invalid doc_type")
			return
		}
	}

	output, err := h.svc.Search(r.Context(), service.SearchInput{
		OrgID:       orgID,
		Query:       req.Query,
		Limit:       req.Limit,
		MinScore:    req.MinScore,
		DocumentIDs: req.DocumentIDs,
		DocType:     docType,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, output)
}
