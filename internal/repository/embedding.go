package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/clauselens/clauselens/internal/domain"
	"github.com/clauselens/clauselens/internal/service"
)

// EmbeddingRepository persists chunk embeddings and runs vector search.
type EmbeddingRepository struct {
	db dbtx
}

func NewEmbeddingRepository(pool *pgxpool.Pool) *EmbeddingRepository {
	return &EmbeddingRepository{db: pool}
}

func NewEmbeddingRepositoryWithTx(tx dbtx) *EmbeddingRepository {
	return &EmbeddingRepository{db: tx}
}

// InsertIgnoreDuplicates inserts embedding records, skipping rows whose
// (document_id, content_hash) pair already exists. The uniqueness lives
// in the database so concurrent writers cannot race past it. Returns
// the number of rows actually inserted.
func (r *EmbeddingRepository) InsertIgnoreDuplicates(ctx context.Context, records []*domain.EmbeddingRecord) (int, error) {
	inserted := 0
	for _, rec := range records {
		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		cmdTag, err := r.db.Exec(ctx,
			`INSERT INTO document_embeddings
				(id, document_id, chunk_index, chunk_text, content_hash, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (document_id, content_hash) DO NOTHING`,
			rec.ID, rec.DocumentID, rec.ChunkIndex, rec.ChunkText, rec.ContentHash,
			pgvector.NewVector(rec.Embedding), createdAt,
		)
		if err != nil {
			return inserted, err
		}
		inserted += int(cmdTag.RowsAffected())
	}
	return inserted, nil
}

// ExistingHashes returns the content hashes already stored for a
// document, used by the incremental embedding mode.
func (r *EmbeddingRepository) ExistingHashes(ctx context.Context, documentID string) (map[string]bool, error) {
	rows, err := r.db.Query(ctx,
		`SELECT content_hash FROM document_embeddings WHERE document_id = $1`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hashes := make(map[string]bool)
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		hashes[hash] = true
	}
	return hashes, rows.Err()
}

func (r *EmbeddingRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM document_embeddings WHERE document_id = $1`, documentID)
	return err
}

// CountByDocument returns the number of stored embeddings for a document.
func (r *EmbeddingRepository) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM document_embeddings WHERE document_id = $1`,
		documentID,
	).Scan(&count)
	return count, err
}

// SearchByEmbedding runs cosine nearest-neighbor search over the given
// documents, joined with document metadata. Similarity is 1 - cosine
// distance, so 1.0 is an exact match.
func (r *EmbeddingRepository) SearchByEmbedding(ctx context.Context, embedding []float32, documentIDs []string, limit int) ([]*service.ChunkMatch, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 30
	}

	rows, err := r.db.Query(ctx,
		`SELECT e.id, e.document_id, d.filename, e.chunk_text,
		        1 - (e.embedding <=> $1) AS similarity
		 FROM document_embeddings e
		 JOIN documents d ON d.id = e.document_id
		 WHERE e.document_id = ANY($2)
		 ORDER BY e.embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(embedding), documentIDs, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*service.ChunkMatch
	for rows.Next() {
		var m service.ChunkMatch
		if err := rows.Scan(&m.EmbeddingID, &m.DocumentID, &m.Filename, &m.ChunkText, &m.Similarity); err != nil {
			return nil, err
		}
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}
