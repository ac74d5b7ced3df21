package job

import (
	"context"
	"log"
	"time"

	"coin-scout/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type EmbedRunner interface {
	Run(ctx context.Context) (domain.EmbedRunResult, error)
}

// EmbeddingJob runs the embedding pipeline once at startup and then on a
// fixed interval.
type EmbeddingJob struct {
	tracer       trace.Tracer
	runner       EmbedRunner
	pollInterval time.Duration
}

func NewEmbeddingJob(tracer trace.Tracer, runner EmbedRunner, pollInterval time.Duration) *EmbeddingJob {
	if pollInterval <= 0 {
		pollInterval = time.Hour
	}
	return &EmbeddingJob{tracer: tracer, runner: runner, pollInterval: pollInterval}
}

func (j *EmbeddingJob) Start(ctx context.Context) {
	if j.runner == nil {
		log.Println("Embedding job disabled: no runner")
		<-ctx.Done()
		return
	}

	j.runOnce(ctx)
	ticker := time.NewTicker(j.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *EmbeddingJob) runOnce(ctx context.Context) {
	_, span := j.tracer.Start(ctx, "embedding-job.run-once")
	defer span.End()

	result, err := j.runner.Run(ctx)
	if err != nil {
		log.Printf("Embedding cycle error: %v", err)
		return
	}
	if result.PostsEmbedded > 0 || result.ReportsEmbedded > 0 || len(result.Errors) > 0 {
		log.Printf(
			"Embedding cycle complete posts=%d reports=%d skipped=%d warnings=%d",
			result.PostsEmbedded,
			result.ReportsEmbedded,
			result.Skipped,
			len(result.Errors),
		)
	}
}
