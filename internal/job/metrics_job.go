package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type MetricsRefresher interface {
	RefreshTokens(ctx context.Context, tokens []string) error
}

// MetricsJob keeps market data warm for the tracked tokens.
type MetricsJob struct {
	tracer       trace.Tracer
	refresher    MetricsRefresher
	tokens       []string
	pollInterval time.Duration
}

func NewMetricsJob(tracer trace.Tracer, refresher MetricsRefresher, tokens []string, pollInterval time.Duration) *MetricsJob {
	if pollInterval <= 0 {
		pollInterval = 15 * time.Minute
	}
	return &MetricsJob{tracer: tracer, refresher: refresher, tokens: tokens, pollInterval: pollInterval}
}

func (j *MetricsJob) Start(ctx context.Context) {
	if j.refresher == nil || len(j.tokens) == 0 {
		log.Println("Metrics job disabled: no refresher or no tracked tokens")
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

func (j *MetricsJob) runOnce(ctx context.Context) {
	_, span := j.tracer.Start(ctx, "metrics-job.run-once")
	defer span.End()

	if err := j.refresher.RefreshTokens(ctx, j.tokens); err != nil {
		log.Printf("Metrics refresh error: %v", err)
	}
}
