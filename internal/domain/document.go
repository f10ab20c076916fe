package domain

import (
	"fmt"
	"time"
)

// DocumentType represents the declared contract type of a document
type DocumentType string

const (
	DocumentTypeNDA        DocumentType = "nda"
	DocumentTypeMSA        DocumentType = "msa"
	DocumentTypeEmployment DocumentType = "employment"
	DocumentTypeLease      DocumentType = "lease"
	DocumentTypeSOW        DocumentType = "sow"
	DocumentTypeLicense    DocumentType = "license"
	DocumentTypeOther      DocumentType = "other"
)

// DocumentStatus represents the lifecycle status of a document
type DocumentStatus string

const (
	DocumentStatusQueued     DocumentStatus = "queued"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusReady      DocumentStatus = "ready"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document represents an uploaded legal document and its analysis state.
// It is owned by the analysis pipeline: fields below RawText are only
// written at stage boundaries of a single run.
type Document struct {
	ID            string
	OrgID         string
	Filename      string
	StorageKey    string
	Type          DocumentType
	Status        DocumentStatus
	StatusMessage string
	RawText       string
	WordCount     int
	PageCount     int
	Counterparty  string
	EffectiveDate    *time.Time
	ExpirationDate   *time.Time
	AutoRenewal      bool
	NoticePeriodDays *int
	RiskScore        *int
	RiskLabel        string
	Summary          string
	LastAnalyzedAt   *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewDocument creates a queued Document for a freshly uploaded file.
func NewDocument(id, orgID, filename, storageKey string, docType DocumentType, now time.Time) *Document {
	return &Document{
		ID:         id,
		OrgID:      orgID,
		Filename:   filename,
		StorageKey: storageKey,
		Type:       docType,
		Status:     DocumentStatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.OrgID == "" {
		return fmt.Errorf("document OrgID is required")
	}

	if d.Filename == "" {
		return fmt.Errorf("document Filename is required")
	}

	if d.StorageKey == "" {
		return fmt.Errorf("document StorageKey is required")
	}

	if !isValidDocumentType(d.Type) {
		return fmt.Errorf("document Type is invalid: %s", d.Type)
	}

	if !isValidDocumentStatus(d.Status) {
		return fmt.Errorf("document Status is invalid: %s", d.Status)
	}

	if d.RiskScore != nil && (*d.RiskScore < 0 || *d.RiskScore > 100) {
		return fmt.Errorf("document RiskScore must be between 0 and 100")
	}

	return nil
}

// NormalizeDocumentType maps arbitrary model output to a known document
// type, falling back to "other".
func NormalizeDocumentType(raw string) DocumentType {
	t := DocumentType(raw)
	if isValidDocumentType(t) {
		return t
	}
	return DocumentTypeOther
}

// isValidDocumentType checks if a DocumentType is valid
func isValidDocumentType(t DocumentType) bool {
	switch t {
	case DocumentTypeNDA, DocumentTypeMSA, DocumentTypeEmployment,
		DocumentTypeLease, DocumentTypeSOW, DocumentTypeLicense, DocumentTypeOther:
		return true
	}
	return false
}

// isValidDocumentStatus checks if a DocumentStatus is valid
func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusQueued, DocumentStatusProcessing,
		DocumentStatusReady, DocumentStatusFailed:
		return true
	}
	return false
}
