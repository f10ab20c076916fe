package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clauselens/clauselens/internal/domain"
	"github.com/clauselens/clauselens/internal/pagination"
	"github.com/clauselens/clauselens/internal/service"
)

const documentColumns = `id, org_id, filename, storage_key, doc_type, status, status_message,
	raw_text, word_count, page_count, counterparty, effective_date, expiration_date,
	auto_renewal, notice_period_days, risk_score, risk_label, summary, last_analyzed_at,
	created_at, updated_at`

// DocumentRepository persists documents.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents
			(id, org_id, filename, storage_key, doc_type, status, status_message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.OrgID, d.Filename, d.StorageKey, d.Type, d.Status, nullableString(d.StatusMessage), d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

// ListByOrgWithCursor returns one page of the org's documents, newest
// first, using a keyset cursor over (created_at, id).
func (r *DocumentRepository) ListByOrgWithCursor(ctx context.Context, orgID string, cursor string, limit int) (*service.DocumentPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	decoded, err := pagination.Decode(cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}

	query := `SELECT ` + documentColumns + ` FROM documents WHERE org_id = $1`
	args := []any{orgID}

	if decoded != nil {
		query += ` AND (created_at, id) < ($2, $3)`
		args = append(args, decoded.CreatedAt, decoded.LastID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	next := ""
	if hasMore {
		next = pagination.Next(items, limit,
			func(d *domain.Document) string { return d.ID },
			func(d *domain.Document) time.Time { return d.CreatedAt })
	}

	return &service.DocumentPageResult{
		Items:      items,
		NextCursor: next,
		HasMore:    hasMore,
	}, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, message string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, status_message = $2, updated_at = $3 WHERE id = $4`,
		status, nullableString(message), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) UpdateExtraction(ctx context.Context, id string, rawText string, wordCount, pageCount int) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET raw_text = $1, word_count = $2, page_count = $3, updated_at = $4 WHERE id = $5`,
		rawText, wordCount, pageCount, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// UpdateAnalysis persists the final state of a pipeline run.
func (r *DocumentRepository) UpdateAnalysis(ctx context.Context, d *domain.Document) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET
			doc_type = $1, status = $2, status_message = $3, counterparty = $4,
			effective_date = $5, expiration_date = $6, auto_renewal = $7, notice_period_days = $8,
			risk_score = $9, risk_label = $10, summary = $11, last_analyzed_at = $12, updated_at = $13
		 WHERE id = $14`,
		d.Type, d.Status, nullableString(d.StatusMessage), nullableString(d.Counterparty),
		d.EffectiveDate, d.ExpirationDate, d.AutoRenewal, d.NoticePeriodDays,
		d.RiskScore, nullableString(d.RiskLabel), nullableString(d.Summary), d.LastAnalyzedAt, time.Now().UTC(),
		d.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// ListReadyDocumentIDs resolves the search scope: all ready documents
// for the org, optionally filtered by declared type.
func (r *DocumentRepository) ListReadyDocumentIDs(ctx context.Context, orgID string, docType domain.DocumentType) ([]string, error) {
	query := `SELECT id FROM documents WHERE org_id = $1 AND status = $2`
	args := []any{orgID, domain.DocumentStatusReady}

	if docType != "" {
		query += ` AND doc_type = $3`
		args = append(args, docType)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var d domain.Document
	var statusMessage, rawText, counterparty, riskLabel, summary *string

	err := row.Scan(
		&d.ID, &d.OrgID, &d.Filename, &d.StorageKey, &d.Type, &d.Status, &statusMessage,
		&rawText, &d.WordCount, &d.PageCount, &counterparty, &d.EffectiveDate, &d.ExpirationDate,
		&d.AutoRenewal, &d.NoticePeriodDays, &d.RiskScore, &riskLabel, &summary, &d.LastAnalyzedAt,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if statusMessage != nil {
		d.StatusMessage = *statusMessage
	}
	if rawText != nil {
		d.RawText = *rawText
	}
	if counterparty != nil {
		d.Counterparty = *counterparty
	}
	if riskLabel != nil {
		d.RiskLabel = *riskLabel
	}
	if summary != nil {
		d.Summary = *summary
	}

	return &d, nil
}
