package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewAnalysisJob(t *testing.T) {
	now := time.Now().UTC()
	job := NewAnalysisJob("job-1", "doc-1", AnalysisJobKindFull, 8, now)

	assert.Equal(t, AnalysisJobStatusPending, job.Status)
	assert.Equal(t, 0, job.Step)
	assert.Equal(t, 8, job.TotalSteps)
	assert.Nil(t, job.LockedUntil)
	assert.NoError(t, ValidateAnalysisJob(job))
}

func TestValidateAnalysisJob(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name    string
		mutate  func(j *AnalysisJob)
		wantErr string
	}{
		{"missing id", func(j *AnalysisJob) { j.ID = "" }, "ID is required"},
		{"missing document", func(j *AnalysisJob) { j.DocumentID = "" }, "DocumentID is required"},
		{"bad kind", func(j *AnalysisJob) { j.Kind = "reindex" }, "Kind is invalid"},
		{"bad status", func(j *AnalysisJob) { j.Status = "done" }, "Status is invalid"},
		{"negative retries", func(j *AnalysisJob) { j.Retries = -1 }, "Retries cannot be negative"},
		{"step past total", func(j *AnalysisJob) { j.Step = 9 }, "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewAnalysisJob("job-1", "doc-1", AnalysisJobKindFull, 8, now)
			tt.mutate(job)
			err := ValidateAnalysisJob(job)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateEmbeddingRecord(t *testing.T) {
	rec := &EmbeddingRecord{
		DocumentID:  "doc-1",
		ChunkIndex:  0,
		ChunkText:   "some chunk text",
		ContentHash: "abc123",
		Embedding:   make([]float32, EmbeddingDimensions),
	}
	assert.NoError(t, ValidateEmbeddingRecord(rec))

	rec.Embedding = make([]float32, 512)
	err := ValidateEmbeddingRecord(rec)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "512 dimensions")

	rec.Embedding = make([]float32, EmbeddingDimensions)
	rec.ContentHash = ""
	assert.Error(t, ValidateEmbeddingRecord(rec))
}
