package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"coin-scout/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

const metricsCacheTTL = 5 * time.Minute

// MetricsProvider fetches current token data from the vendor API.
type MetricsProvider interface {
	FetchToken(ctx context.Context, name string) (*domain.TokenMetrics, error)
	FetchTokens(ctx context.Context, names []string) (map[string]domain.TokenMetrics, error)
}

// MetricsRepository persists fetched snapshots and serves historical reads.
type MetricsRepository interface {
	InsertTokenMetrics(ctx context.Context, metrics domain.TokenMetrics) (int64, error)
	LatestTokenMetrics(ctx context.Context, token string) (*domain.TokenMetrics, error)
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// MetricsService orchestrates token market data: Redis cache first, then the
// vendor API (persisting what it fetched), then the newest stored row.
type MetricsService struct {
	tracer   trace.Tracer
	provider MetricsProvider
	repo     MetricsRepository
	redis    RedisClient
}

func NewMetricsService(
	tracer trace.Tracer,
	provider MetricsProvider,
	repo MetricsRepository,
	redisClient RedisClient,
) *MetricsService {
	return &MetricsService{
		tracer:   tracer,
		provider: provider,
		repo:     repo,
		redis:    redisClient,
	}
}

// CurrentMetrics returns the freshest market data for a token name.
func (s *MetricsService) CurrentMetrics(ctx context.Context, token string) (*domain.TokenMetrics, error) {
	_, span := s.tracer.Start(ctx, "metrics-service.current-metrics")
	defer span.End()

	if s.redis != nil {
		cached, err := s.getMetricsCache(ctx, token)
		if err != nil {
			log.Printf("redis cache read error: %v", err)
		}
		if cached != nil {
			return cached, nil
		}
	}

	metrics, err := s.provider.FetchToken(ctx, token)
	if err != nil {
		log.Printf("vendor fetch for %s failed, falling back to stored data: %v", token, err)
		stored, repoErr := s.repo.LatestTokenMetrics(ctx, token)
		if repoErr != nil {
			return nil, repoErr
		}
		if stored == nil {
			return nil, fmt.Errorf("no market data available for %s", token)
		}
		return stored, nil
	}

	if s.redis != nil {
		_ = s.setMetricsCache(ctx, *metrics)
	}
	if _, err := s.repo.InsertTokenMetrics(ctx, *metrics); err != nil {
		log.Printf("persisting metrics for %s failed: %v", token, err)
	}
	return metrics, nil
}

// RefreshTokens fetches current data for all tracked tokens in one batched
// call, caching and persisting every row.
func (s *MetricsService) RefreshTokens(ctx context.Context, tokens []string) error {
	_, span := s.tracer.Start(ctx, "metrics-service.refresh-tokens")
	defer span.End()

	fetched, err := s.provider.FetchTokens(ctx, tokens)
	if err != nil {
		return err
	}

	for _, metrics := range fetched {
		if s.redis != nil {
			if err := s.setMetricsCache(ctx, metrics); err != nil {
				log.Printf("redis cache write error for %s: %v", metrics.Token, err)
			}
		}
		if _, err := s.repo.InsertTokenMetrics(ctx, metrics); err != nil {
			log.Printf("persisting metrics for %s failed: %v", metrics.Token, err)
		}
	}

	log.Printf("Refreshed market data for %d tokens", len(fetched))
	return nil
}

func (s *MetricsService) setMetricsCache(ctx context.Context, metrics domain.TokenMetrics) error {
	data, err := json.Marshal(metrics)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, "metrics:"+metrics.Token, data, metricsCacheTTL).Err()
}

func (s *MetricsService) getMetricsCache(ctx context.Context, token string) (*domain.TokenMetrics, error) {
	data, err := s.redis.Get(ctx, "metrics:"+token).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var metrics domain.TokenMetrics
	if err := json.Unmarshal(data, &metrics); err != nil {
		return nil, err
	}
	return &metrics, nil
}
