package job

import (
	"context"
	"log"
	"time"

	"coin-scout/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type PortfolioRunner interface {
	Run(ctx context.Context) (domain.PortfolioRunResult, error)
}

// PortfolioJob reviews open positions once at startup and then on a fixed
// interval.
type PortfolioJob struct {
	tracer       trace.Tracer
	runner       PortfolioRunner
	pollInterval time.Duration
}

func NewPortfolioJob(tracer trace.Tracer, runner PortfolioRunner, pollInterval time.Duration) *PortfolioJob {
	if pollInterval <= 0 {
		pollInterval = 24 * time.Hour
	}
	return &PortfolioJob{tracer: tracer, runner: runner, pollInterval: pollInterval}
}

func (j *PortfolioJob) Start(ctx context.Context) {
	if j.runner == nil {
		log.Println("Portfolio job disabled: no runner")
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

func (j *PortfolioJob) runOnce(ctx context.Context) {
	_, span := j.tracer.Start(ctx, "portfolio-job.run-once")
	defer span.End()

	result, err := j.runner.Run(ctx)
	if err != nil {
		log.Printf("Portfolio cycle error: %v", err)
		return
	}
	if result.PositionsReviewed > 0 {
		log.Printf(
			"Portfolio cycle complete reviewed=%d kept=%d closed=%d warnings=%d",
			result.PositionsReviewed,
			result.PositionsKept,
			result.PositionsClosed,
			len(result.Errors),
		)
	}
}
