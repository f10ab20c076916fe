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

func newClause(documentID string, clauseType domain.ClauseType, level domain.RiskLevel) domain.Clause {
	return domain.Clause{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Type:       clauseType,
		Text:       "Sample clause text for " + string(clauseType),
		RiskLevel:  level,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestClauseRepository_ReplaceAndList(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	repo := NewClauseRepository(pool)
	doc := newStoredDocument(ctx, t, docRepo, "org-1")

	clauses := []domain.Clause{
		newClause(doc.ID, domain.ClauseTypeGoverningLaw, domain.RiskLevelLow),
		newClause(doc.ID, domain.ClauseTypeLiability, domain.RiskLevelCritical),
		newClause(doc.ID, domain.ClauseTypeTermination, domain.RiskLevelMedium),
		newClause(doc.ID, domain.ClauseTypeIndemnification, domain.RiskLevelHigh),
	}
	require.NoError(t, repo.ReplaceClauses(ctx, doc.ID, clauses))

	listed, err := repo.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, listed, 4)

	// Ordered highest severity first.
	assert.Equal(t, domain.RiskLevelCritical, listed[0].RiskLevel)
	assert.Equal(t, domain.RiskLevelHigh, listed[1].RiskLevel)
	assert.Equal(t, domain.RiskLevelMedium, listed[2].RiskLevel)
	assert.Equal(t, domain.RiskLevelLow, listed[3].RiskLevel)
}

func TestClauseRepository_ReplaceClauses_IsAuthoritative(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	repo := NewClauseRepository(pool)
	doc := newStoredDocument(ctx, t, docRepo, "org-1")

	first := []domain.Clause{
		newClause(doc.ID, domain.ClauseTypeLiability, domain.RiskLevelCritical),
		newClause(doc.ID, domain.ClauseTypeTermination, domain.RiskLevelMedium),
	}
	require.NoError(t, repo.ReplaceClauses(ctx, doc.ID, first))

	second := []domain.Clause{
		newClause(doc.ID, domain.ClauseTypePayment, domain.RiskLevelLow),
	}
	require.NoError(t, repo.ReplaceClauses(ctx, doc.ID, second))

	listed, err := repo.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, domain.ClauseTypePayment, listed[0].Type)
}

func TestClauseRepository_ReplaceClauses_Empty(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	repo := NewClauseRepository(pool)
	doc := newStoredDocument(ctx, t, docRepo, "org-1")

	require.NoError(t, repo.ReplaceClauses(ctx, doc.ID, []domain.Clause{
		newClause(doc.ID, domain.ClauseTypeLiability, domain.RiskLevelCritical),
	}))
	require.NoError(t, repo.ReplaceClauses(ctx, doc.ID, nil))

	listed, err := repo.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}
