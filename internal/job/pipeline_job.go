package job

import (
	"context"
	"log"
	"time"

	"coin-scout/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type PipelineRunner interface {
	Run(ctx context.Context) (domain.PipelineRunResult, error)
}

// PipelineJob runs the retrieval-to-position flow once at startup and then on
// a fixed interval.
type PipelineJob struct {
	tracer       trace.Tracer
	runner       PipelineRunner
	pollInterval time.Duration
}

func NewPipelineJob(tracer trace.Tracer, runner PipelineRunner, pollInterval time.Duration) *PipelineJob {
	if pollInterval <= 0 {
		pollInterval = 6 * time.Hour
	}
	return &PipelineJob{tracer: tracer, runner: runner, pollInterval: pollInterval}
}

func (j *PipelineJob) Start(ctx context.Context) {
	if j.runner == nil {
		log.Println("Pipeline job disabled: no runner")
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

func (j *PipelineJob) runOnce(ctx context.Context) {
	_, span := j.tracer.Start(ctx, "pipeline-job.run-once")
	defer span.End()

	result, err := j.runner.Run(ctx)
	if err != nil {
		log.Printf("Pipeline cycle error: %v", err)
		return
	}
	if result.Token != "" {
		log.Printf(
			"Pipeline cycle complete token=%s position_id=%d warnings=%d",
			result.Token,
			result.PositionID,
			len(result.Errors),
		)
	}
}
