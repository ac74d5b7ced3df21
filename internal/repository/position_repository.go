package repository

import (
	"context"
	"fmt"

	"coin-scout/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
)

// PositionRepository persists recommendation rows in new_positions. Positions
// are inserted active and later resized or closed by the portfolio review.
type PositionRepository struct {
	pool   pool
	tracer trace.Tracer
}

func NewPositionRepository(pool pool, tracer trace.Tracer) *PositionRepository {
	return &PositionRepository{pool: pool, tracer: tracer}
}

func (r *PositionRepository) InsertPosition(ctx context.Context, rec domain.Recommendation) (int64, error) {
	_, span := r.tracer.Start(ctx, "position-repo.insert-position")
	defer span.End()

	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO new_positions (symbol, entry_price, size_usd, stop_loss, target_1, target_2, days, rationale, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`,
		rec.Symbol,
		rec.Entry,
		rec.SizeUSD,
		rec.StopLoss,
		rec.Target1,
		rec.Target2,
		rec.Days,
		rec.Rationale,
		string(domain.PositionActive),
	).Scan(&id)
	return id, err
}

// ListActive returns open positions oldest first.
func (r *PositionRepository) ListActive(ctx context.Context) ([]domain.Position, error) {
	_, span := r.tracer.Start(ctx, "position-repo.list-active")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT id, symbol, entry_price, size_usd, stop_loss, target_1, target_2, days, rationale, reason, status, created_at, updated_at
FROM new_positions
WHERE status = $1
ORDER BY created_at`, string(domain.PositionActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		var position domain.Position
		var status string
		var rationale, reason pgtype.Text
		if err := rows.Scan(
			&position.ID,
			&position.Symbol,
			&position.EntryPrice,
			&position.SizeUSD,
			&position.StopLoss,
			&position.Target1,
			&position.Target2,
			&position.Days,
			&rationale,
			&reason,
			&status,
			&position.CreatedAt,
			&position.UpdatedAt,
		); err != nil {
			return nil, err
		}
		position.Rationale = rationale.String
		position.Reason = reason.String
		position.Status = domain.PositionStatus(status)
		position.CreatedAt = position.CreatedAt.UTC()
		position.UpdatedAt = position.UpdatedAt.UTC()
		out = append(out, position)
	}
	return out, rows.Err()
}

// UpdateAllocation applies a review decision: new size, status, and the
// reviewer's reason. updated_at moves to now() server-side.
func (r *PositionRepository) UpdateAllocation(ctx context.Context, id int64, sizeUSD float64, status domain.PositionStatus, reason string) error {
	_, span := r.tracer.Start(ctx, "position-repo.update-allocation")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `
UPDATE new_positions
SET size_usd = $2, status = $3, reason = $4, updated_at = now()
WHERE id = $1`, id, sizeUSD, string(status), reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("position %d not found", id)
	}
	return nil
}
