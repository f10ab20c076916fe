package domain

import (
	"fmt"
	"time"
)

// AnalysisJobStatus represents the status of an analysis job
type AnalysisJobStatus string

const (
	AnalysisJobStatusPending    AnalysisJobStatus = "pending"
	AnalysisJobStatusProcessing AnalysisJobStatus = "processing"
	AnalysisJobStatusCompleted  AnalysisJobStatus = "completed"
	AnalysisJobStatusFailed     AnalysisJobStatus = "failed"
)

// AnalysisJobKind distinguishes full pipeline runs from embedding-only runs
type AnalysisJobKind string

const (
	AnalysisJobKindFull      AnalysisJobKind = "analysis"
	AnalysisJobKindEmbedding AnalysisJobKind = "embedding"
)

// AnalysisJob represents one queued document run. Workers claim a job,
// renew LockedUntil while it is in flight, and report Step/TotalSteps
// after each pipeline stage so a stalled run is observable.
type AnalysisJob struct {
	ID          string
	DocumentID  string
	Kind        AnalysisJobKind
	Status      AnalysisJobStatus
	Step        int
	TotalSteps  int
	Retries     int32
	Error       string
	LockedUntil *time.Time
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// NewAnalysisJob creates a pending AnalysisJob for a document
func NewAnalysisJob(id, documentID string, kind AnalysisJobKind, totalSteps int, createdAt time.Time) *AnalysisJob {
	return &AnalysisJob{
		ID:         id,
		DocumentID: documentID,
		Kind:       kind,
		Status:     AnalysisJobStatusPending,
		TotalSteps: totalSteps,
		CreatedAt:  createdAt,
	}
}

// ValidateAnalysisJob validates an AnalysisJob instance
func ValidateAnalysisJob(j *AnalysisJob) error {
	if j == nil {
		return fmt.Errorf("analysis job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("analysis job ID is required")
	}

	if j.DocumentID == "" {
		return fmt.Errorf("analysis job DocumentID is required")
	}

	if !isValidAnalysisJobKind(j.Kind) {
		return fmt.Errorf("analysis job Kind is invalid: %s", j.Kind)
	}

	if !isValidAnalysisJobStatus(j.Status) {
		return fmt.Errorf("analysis job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("analysis job Retries cannot be negative")
	}

	if j.Step < 0 || (j.TotalSteps > 0 && j.Step > j.TotalSteps) {
		return fmt.Errorf("analysis job Step %d is out of range 0..%d", j.Step, j.TotalSteps)
	}

	return nil
}

// isValidAnalysisJobStatus checks if an AnalysisJobStatus is valid
func isValidAnalysisJobStatus(s AnalysisJobStatus) bool {
	switch s {
	case AnalysisJobStatusPending, AnalysisJobStatusProcessing,
		AnalysisJobStatusCompleted, AnalysisJobStatusFailed:
		return true
	}
	return false
}

// isValidAnalysisJobKind checks if an AnalysisJobKind is valid
func isValidAnalysisJobKind(k AnalysisJobKind) bool {
	switch k {
	case AnalysisJobKindFull, AnalysisJobKindEmbedding:
		return true
	}
	return false
}
