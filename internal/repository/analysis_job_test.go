//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clauselens/clauselens/internal/domain"
	"github.com/clauselens/clauselens/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoredJob(ctx context.Context, t *testing.T, repo *AnalysisJobRepository, documentID string, kind domain.AnalysisJobKind) *domain.AnalysisJob {
	t.Helper()
	job := domain.NewAnalysisJob(uuid.NewString(), documentID, kind, 8, time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, repo.Create(ctx, job))
	return job
}

func TestAnalysisJobRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	repo := NewAnalysisJobRepository(pool)
	doc := newStoredDocument(ctx, t, docRepo, "org-1")

	job := newStoredJob(ctx, t, repo, doc.ID, domain.AnalysisJobKindFull)

	retrieved, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, retrieved.ID)
	assert.Equal(t, doc.ID, retrieved.DocumentID)
	assert.Equal(t, domain.AnalysisJobStatusPending, retrieved.Status)
	assert.Nil(t, retrieved.LockedUntil)
}

func TestAnalysisJobRepository_ClaimPending(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	repo := NewAnalysisJobRepository(pool)
	doc := newStoredDocument(ctx, t, docRepo, "org-1")
	otherDoc := newStoredDocument(ctx, t, docRepo, "org-1")

	full := newStoredJob(ctx, t, repo, doc.ID, domain.AnalysisJobKindFull)
	embedding := newStoredJob(ctx, t, repo, otherDoc.ID, domain.AnalysisJobKindEmbedding)

	claimed, err := repo.ClaimPending(ctx, domain.AnalysisJobKindFull, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, full.ID, claimed[0].ID)
	assert.Equal(t, domain.AnalysisJobStatusProcessing, claimed[0].Status)
	require.NotNil(t, claimed[0].LockedUntil)
	assert.True(t, claimed[0].LockedUntil.After(time.Now().UTC()))

	// The embedding job is untouched and a second claim finds nothing.
	remaining, err := repo.GetByID(ctx, embedding.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisJobStatusPending, remaining.Status)

	again, err := repo.ClaimPending(ctx, domain.AnalysisJobKindFull, 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestAnalysisJobRepository_ClaimPending_OldestFirst(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	repo := NewAnalysisJobRepository(pool)
	doc := newStoredDocument(ctx, t, docRepo, "org-1")
	otherDoc := newStoredDocument(ctx, t, docRepo, "org-1")

	old := domain.NewAnalysisJob(uuid.NewString(), doc.ID, domain.AnalysisJobKindFull, 8, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, repo.Create(ctx, old))
	recent := newStoredJob(ctx, t, repo, otherDoc.ID, domain.AnalysisJobKindFull)
	_ = recent

	claimed, err := repo.ClaimPending(ctx, domain.AnalysisJobKindFull, 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, old.ID, claimed[0].ID)
}

func TestAnalysisJobRepository_Create_RejectsSecondActiveJob(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	repo := NewAnalysisJobRepository(pool)
	doc := newStoredDocument(ctx, t, docRepo, "org-1")

	newStoredJob(ctx, t, repo, doc.ID, domain.AnalysisJobKindFull)

	// A second live job for the same document hits the partial unique
	// index, regardless of kind.
	dup := domain.NewAnalysisJob(uuid.NewString(), doc.ID, domain.AnalysisJobKindEmbedding, 4, time.Now().UTC())
	err := repo.Create(ctx, dup)
	assert.ErrorIs(t, err, domain.ErrAnalysisInProgress)

	// Once the first job finishes, a new one is accepted.
	claimed, err := repo.ClaimPending(ctx, domain.AnalysisJobKindFull, 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, repo.UpdateStatus(ctx, claimed[0].ID, domain.AnalysisJobStatusCompleted, ""))

	require.NoError(t, repo.Create(ctx, dup))
}

func TestAnalysisJobRepository_HasActiveJob(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	repo := NewAnalysisJobRepository(pool)
	doc := newStoredDocument(ctx, t, docRepo, "org-1")

	active, err := repo.HasActiveJob(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, active)

	job := newStoredJob(ctx, t, repo, doc.ID, domain.AnalysisJobKindFull)

	active, err = repo.HasActiveJob(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, active)

	claimed, err := repo.ClaimPending(ctx, domain.AnalysisJobKindFull, 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// Still active while processing.
	active, err = repo.HasActiveJob(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, repo.UpdateStatus(ctx, job.ID, domain.AnalysisJobStatusCompleted, ""))

	active, err = repo.HasActiveJob(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestAnalysisJobRepository_RenewLock(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	repo := NewAnalysisJobRepository(pool)
	doc := newStoredDocument(ctx, t, docRepo, "org-1")

	job := newStoredJob(ctx, t, repo, doc.ID, domain.AnalysisJobKindFull)

	// Renewing a pending job fails, it holds no lock.
	err := repo.RenewLock(ctx, job.ID, time.Minute)
	assert.ErrorIs(t, err, domain.ErrAnalysisJobNotFound)

	claimed, err := repo.ClaimPending(ctx, domain.AnalysisJobKindFull, 1, time.Second)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	firstLock := *claimed[0].LockedUntil

	require.NoError(t, repo.RenewLock(ctx, job.ID, time.Hour))

	renewed, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, renewed.LockedUntil)
	assert.True(t, renewed.LockedUntil.After(firstLock))
}

func TestAnalysisJobRepository_UpdateProgressAndStatus(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	repo := NewAnalysisJobRepository(pool)
	doc := newStoredDocument(ctx, t, docRepo, "org-1")

	job := newStoredJob(ctx, t, repo, doc.ID, domain.AnalysisJobKindFull)

	require.NoError(t, repo.UpdateProgress(ctx, job.ID, 3, 8))

	retrieved, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, retrieved.Step)
	assert.Equal(t, 8, retrieved.TotalSteps)
	assert.Nil(t, retrieved.ProcessedAt)

	require.NoError(t, repo.UpdateStatus(ctx, job.ID, domain.AnalysisJobStatusCompleted, ""))

	completed, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisJobStatusCompleted, completed.Status)
	assert.NotNil(t, completed.ProcessedAt)
	assert.Nil(t, completed.LockedUntil)
}

func TestAnalysisJobRepository_IncrementRetries(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	repo := NewAnalysisJobRepository(pool)
	doc := newStoredDocument(ctx, t, docRepo, "org-1")

	job := newStoredJob(ctx, t, repo, doc.ID, domain.AnalysisJobKindFull)

	require.NoError(t, repo.IncrementRetries(ctx, job.ID))
	require.NoError(t, repo.IncrementRetries(ctx, job.ID))

	retrieved, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), retrieved.Retries)
}

func TestAnalysisJobRepository_ReapStalled(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	repo := NewAnalysisJobRepository(pool)
	doc := newStoredDocument(ctx, t, docRepo, "org-1")
	otherDoc := newStoredDocument(ctx, t, docRepo, "org-1")

	stalled := newStoredJob(ctx, t, repo, doc.ID, domain.AnalysisJobKindFull)
	live := newStoredJob(ctx, t, repo, otherDoc.ID, domain.AnalysisJobKindFull)

	// Claim both, then backdate one lock past its window.
	claimed, err := repo.ClaimPending(ctx, domain.AnalysisJobKindFull, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	_, err = pool.Exec(ctx,
		`UPDATE analysis_jobs SET locked_until = $1 WHERE id = $2`,
		time.Now().UTC().Add(-time.Minute), stalled.ID,
	)
	require.NoError(t, err)

	reaped, err := repo.ReapStalled(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	requeued, err := repo.GetByID(ctx, stalled.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisJobStatusPending, requeued.Status)
	assert.Nil(t, requeued.LockedUntil)

	stillRunning, err := repo.GetByID(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisJobStatusProcessing, stillRunning.Status)
}
