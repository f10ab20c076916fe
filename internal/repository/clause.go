package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clauselens/clauselens/internal/domain"
)

// ClauseRepository persists extracted clauses.
type ClauseRepository struct {
	db dbtx
}

func NewClauseRepository(pool *pgxpool.Pool) *ClauseRepository {
	return &ClauseRepository{db: pool}
}

func NewClauseRepositoryWithTx(tx dbtx) *ClauseRepository {
	return &ClauseRepository{db: tx}
}

// ReplaceClauses deletes a document's clause set and inserts the new
// one. Each pipeline run is authoritative for its document.
func (r *ClauseRepository) ReplaceClauses(ctx context.Context, documentID string, clauses []domain.Clause) error {
	_, err := r.db.Exec(ctx, `DELETE FROM document_clauses WHERE document_id = $1`, documentID)
	if err != nil {
		return err
	}

	if len(clauses) == 0 {
		return nil
	}

	for _, c := range clauses {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO document_clauses
				(id, document_id, clause_type, text, page_number, risk_level, risk_explanation, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, documentID, c.Type, c.Text, c.PageNumber, c.RiskLevel, c.RiskExplanation, createdAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// ListByDocument returns a document's clauses, highest severity first.
func (r *ClauseRepository) ListByDocument(ctx context.Context, documentID string) ([]*domain.Clause, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, clause_type, text, page_number, risk_level, risk_explanation, created_at
		 FROM document_clauses
		 WHERE document_id = $1
		 ORDER BY CASE risk_level
			WHEN 'critical' THEN 0
			WHEN 'high' THEN 1
			WHEN 'medium' THEN 2
			ELSE 3
		 END, created_at ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clauses []*domain.Clause
	for rows.Next() {
		var c domain.Clause
		var explanation *string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Type, &c.Text, &c.PageNumber, &c.RiskLevel, &explanation, &c.CreatedAt); err != nil {
			return nil, err
		}
		if explanation != nil {
			c.RiskExplanation = *explanation
		}
		clauses = append(clauses, &c)
	}
	return clauses, rows.Err()
}
