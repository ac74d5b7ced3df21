package recommend

import (
	"context"
	"fmt"

	"coin-scout/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TokenPicker chooses the single token worth analyzing right now.
type TokenPicker interface {
	TopToken(ctx context.Context) (string, error)
}

// PositionStore persists accepted recommendations.
type PositionStore interface {
	InsertPosition(ctx context.Context, rec domain.Recommendation) (int64, error)
}

// Pipeline is the end-to-end retrieval-to-position flow: pick the top token,
// assemble its snapshot, get a recommendation, persist it.
type Pipeline struct {
	tracer    trace.Tracer
	picker    TokenPicker
	assembler *Assembler
	positions PositionStore
}

func NewPipeline(tracer trace.Tracer, picker TokenPicker, assembler *Assembler, positions PositionStore) *Pipeline {
	return &Pipeline{
		tracer:    tracer,
		picker:    picker,
		assembler: assembler,
		positions: positions,
	}
}

// Run executes one cycle. An empty store is not an error: the run result just
// carries no token. Persistence failure is an error in the result, not a lost
// recommendation; the payload is still returned for inspection.
func (p *Pipeline) Run(ctx context.Context) (domain.PipelineRunResult, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	result := domain.PipelineRunResult{}

	token, err := p.picker.TopToken(ctx)
	if err != nil {
		return result, fmt.Errorf("picking top token: %w", err)
	}
	if token == "" {
		result.Errors = append(result.Errors, "no embedded content available, nothing to recommend")
		return result, nil
	}
	result.Token = token
	span.SetAttributes(attribute.String("pipeline.token", token))

	rec, err := p.assembler.Recommend(ctx, token)
	if err != nil {
		return result, fmt.Errorf("recommending for %s: %w", token, err)
	}
	result.Recommendation = &rec

	id, err := p.positions.InsertPosition(ctx, rec)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("persisting position: %v", err))
		return result, nil
	}
	result.PositionID = id
	span.SetAttributes(attribute.Int64("pipeline.position_id", id))
	return result, nil
}
