package repository

import (
	"context"
	"time"

	"coin-scout/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel/trace"
)

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// EmbeddingRepository stores and searches content embeddings. Native search
// is a server-side pgvector function; callers fall back to in-process scoring
// when it errors.
type EmbeddingRepository struct {
	pool   pool
	tracer trace.Tracer
}

func NewEmbeddingRepository(pool pool, tracer trace.Tracer) *EmbeddingRepository {
	return &EmbeddingRepository{pool: pool, tracer: tracer}
}

func (r *EmbeddingRepository) InsertRecord(ctx context.Context, record domain.ContentRecord) (int64, error) {
	_, span := r.tracer.Start(ctx, "embedding-repo.insert-record")
	defer span.End()

	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO embeddings (content_type, content_id, token_name, token_symbol, content_text, embedding, metadata_json)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
		string(record.ContentType),
		record.ContentID,
		record.Token,
		record.Symbol,
		record.ContentText,
		pgvector.NewVector(record.Embedding),
		ensureJSON(record.MetadataJSON),
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *EmbeddingRepository) HasRecord(ctx context.Context, contentType domain.ContentType, contentID int64) (bool, error) {
	_, span := r.tracer.Start(ctx, "embedding-repo.has-record")
	defer span.End()

	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
    SELECT 1 FROM embeddings WHERE content_type = $1 AND content_id = $2
)`, string(contentType), contentID).Scan(&exists)
	return exists, err
}

// MatchRecords runs the match_embeddings SQL function, which ranks today's
// rows by cosine distance server-side and returns only those above threshold.
func (r *EmbeddingRepository) MatchRecords(ctx context.Context, queryVec []float32, threshold float64, limit int) ([]domain.SearchResult, error) {
	_, span := r.tracer.Start(ctx, "embedding-repo.match-records")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT id, content_type, content_id, token_name, token_symbol, content_text, metadata_json, created_at, similarity
FROM match_embeddings($1, $2, $3)`,
		pgvector.NewVector(queryVec), threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SearchResult
	for rows.Next() {
		var record domain.ContentRecord
		var contentType string
		var similarity float64
		if err := rows.Scan(
			&record.ID,
			&contentType,
			&record.ContentID,
			&record.Token,
			&record.Symbol,
			&record.ContentText,
			&record.MetadataJSON,
			&record.CreatedAt,
			&similarity,
		); err != nil {
			return nil, err
		}
		record.ContentType = domain.ContentType(contentType)
		record.CreatedAt = record.CreatedAt.UTC()
		out = append(out, domain.SearchResult{Record: record, Similarity: similarity})
	}
	return out, rows.Err()
}

// ListCreatedOn returns records whose created_at falls inside the half-open
// UTC day [day, day+24h), ordered by id so downstream stable sorts keep
// retrieval order on ties. limit <= 0 means no cap.
func (r *EmbeddingRepository) ListCreatedOn(ctx context.Context, day time.Time, limit int) ([]domain.ContentRecord, error) {
	_, span := r.tracer.Start(ctx, "embedding-repo.list-created-on")
	defer span.End()

	day = day.UTC().Truncate(24 * time.Hour)
	query := `
SELECT id, content_type, content_id, token_name, token_symbol, content_text, embedding, metadata_json, created_at
FROM embeddings
WHERE created_at >= $1 AND created_at < $2
ORDER BY id`
	args := []any{day, day.Add(24 * time.Hour)}
	if limit > 0 {
		query += `
LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ContentRecord
	for rows.Next() {
		var record domain.ContentRecord
		var contentType string
		var vec pgvector.Vector
		if err := rows.Scan(
			&record.ID,
			&contentType,
			&record.ContentID,
			&record.Token,
			&record.Symbol,
			&record.ContentText,
			&vec,
			&record.MetadataJSON,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		record.ContentType = domain.ContentType(contentType)
		record.Embedding = vec.Slice()
		record.CreatedAt = record.CreatedAt.UTC()
		out = append(out, record)
	}
	return out, rows.Err()
}

// ListAllTokens returns the token of every stored record, duplicates included,
// for the frequency fallback.
func (r *EmbeddingRepository) ListAllTokens(ctx context.Context) ([]string, error) {
	_, span := r.tracer.Start(ctx, "embedding-repo.list-all-tokens")
	defer span.End()

	rows, err := r.pool.Query(ctx, `SELECT token_name FROM embeddings ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		out = append(out, token)
	}
	return out, rows.Err()
}
