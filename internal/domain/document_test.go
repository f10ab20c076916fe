package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDocument(t *testing.T) {
	now := time.Now().UTC()
	doc := NewDocument("doc-1", "org-1", "nda.pdf", "org-1/doc-1/nda.pdf", DocumentTypeNDA, now)

	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, "org-1", doc.OrgID)
	assert.Equal(t, DocumentStatusQueued, doc.Status)
	assert.Equal(t, DocumentTypeNDA, doc.Type)
	assert.Nil(t, doc.RiskScore)
	assert.Equal(t, now, doc.CreatedAt)
	assert.Equal(t, now, doc.UpdatedAt)
}

func TestValidateDocument(t *testing.T) {
	now := time.Now().UTC()
	valid := NewDocument("doc-1", "org-1", "nda.pdf", "org-1/doc-1/nda.pdf", DocumentTypeNDA, now)

	tests := []struct {
		name    string
		mutate  func(d *Document)
		wantErr string
	}{
		{"valid", func(d *Document) {}, ""},
		{"nil risk score ok", func(d *Document) { d.RiskScore = nil }, ""},
		{"missing id", func(d *Document) { d.ID = "" }, "ID is required"},
		{"missing org", func(d *Document) { d.OrgID = "" }, "OrgID is required"},
		{"missing filename", func(d *Document) { d.Filename = "" }, "Filename is required"},
		{"missing storage key", func(d *Document) { d.StorageKey = "" }, "StorageKey is required"},
		{"bad type", func(d *Document) { d.Type = "contract" }, "Type is invalid"},
		{"bad status", func(d *Document) { d.Status = "done" }, "Status is invalid"},
		{"score above range", func(d *Document) { s := 101; d.RiskScore = &s }, "RiskScore"},
		{"score below range", func(d *Document) { s := -1; d.RiskScore = &s }, "RiskScore"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := *valid
			tt.mutate(&doc)
			err := ValidateDocument(&doc)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateDocument_Nil(t *testing.T) {
	err := ValidateDocument(nil)
	assert.Error(t, err)
}

func TestIsValidDocumentStatus(t *testing.T) {
	for _, s := range []DocumentStatus{DocumentStatusQueued, DocumentStatusProcessing, DocumentStatusReady, DocumentStatusFailed} {
		assert.True(t, isValidDocumentStatus(s))
	}
	assert.False(t, isValidDocumentStatus("archived"))
}
