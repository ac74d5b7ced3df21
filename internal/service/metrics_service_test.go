package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"coin-scout/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type fakeRedis struct {
	store map[string]string
	sets  int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{store: make(map[string]string)}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.sets++
	switch v := value.(type) {
	case []byte:
		f.store[key] = string(v)
	case string:
		f.store[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	val, ok := f.store[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

type stubProvider struct {
	metrics    map[string]domain.TokenMetrics
	err        error
	fetchCalls int
}

func (s *stubProvider) FetchToken(ctx context.Context, name string) (*domain.TokenMetrics, error) {
	s.fetchCalls++
	if s.err != nil {
		return nil, s.err
	}
	m, ok := s.metrics[name]
	if !ok {
		return nil, fmt.Errorf("token %s not found", name)
	}
	return &m, nil
}

func (s *stubProvider) FetchTokens(ctx context.Context, names []string) (map[string]domain.TokenMetrics, error) {
	s.fetchCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.metrics, nil
}

type stubMetricsRepo struct {
	stored    []domain.TokenMetrics
	latest    *domain.TokenMetrics
	latestErr error
}

func (s *stubMetricsRepo) InsertTokenMetrics(ctx context.Context, metrics domain.TokenMetrics) (int64, error) {
	s.stored = append(s.stored, metrics)
	return int64(len(s.stored)), nil
}

func (s *stubMetricsRepo) LatestTokenMetrics(ctx context.Context, token string) (*domain.TokenMetrics, error) {
	if s.latestErr != nil {
		return nil, s.latestErr
	}
	return s.latest, nil
}

func TestCurrentMetrics_CacheHitSkipsProvider(t *testing.T) {
	t.Parallel()

	cached := domain.TokenMetrics{Token: "Bitcoin", Symbol: "BTC", Price: 65000}
	payload, _ := json.Marshal(cached)
	cache := newFakeRedis()
	cache.store["metrics:Bitcoin"] = string(payload)

	provider := &stubProvider{}
	svc := NewMetricsService(testTracer, provider, &stubMetricsRepo{}, cache)

	got, err := svc.CurrentMetrics(context.Background(), "Bitcoin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Price != 65000 || got.Symbol != "BTC" {
		t.Fatalf("unexpected metrics: %+v", got)
	}
	if provider.fetchCalls != 0 {
		t.Fatalf("cache hit should not call the provider, got %d calls", provider.fetchCalls)
	}
}

func TestCurrentMetrics_MissFetchesCachesAndPersists(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{metrics: map[string]domain.TokenMetrics{
		"Bitcoin": {Token: "Bitcoin", Symbol: "BTC", Price: 65000},
	}}
	repo := &stubMetricsRepo{}
	cache := newFakeRedis()
	svc := NewMetricsService(testTracer, provider, repo, cache)

	got, err := svc.CurrentMetrics(context.Background(), "Bitcoin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Price != 65000 {
		t.Fatalf("unexpected metrics: %+v", got)
	}
	if _, ok := cache.store["metrics:Bitcoin"]; !ok {
		t.Fatal("fetched metrics should be cached")
	}
	if len(repo.stored) != 1 {
		t.Fatalf("fetched metrics should be persisted, got %d rows", len(repo.stored))
	}
}

func TestCurrentMetrics_ProviderFailureFallsBackToStored(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{err: fmt.Errorf("vendor down")}
	repo := &stubMetricsRepo{latest: &domain.TokenMetrics{Token: "Bitcoin", Price: 64000}}
	svc := NewMetricsService(testTracer, provider, repo, newFakeRedis())

	got, err := svc.CurrentMetrics(context.Background(), "Bitcoin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Price != 64000 {
		t.Fatalf("expected stored fallback row, got %+v", got)
	}
}

func TestCurrentMetrics_NoDataAnywhere(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{err: fmt.Errorf("vendor down")}
	svc := NewMetricsService(testTracer, provider, &stubMetricsRepo{}, newFakeRedis())

	if _, err := svc.CurrentMetrics(context.Background(), "Bitcoin"); err == nil {
		t.Fatal("expected error when neither vendor nor store has data")
	}
}

func TestCurrentMetrics_NilRedis(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{metrics: map[string]domain.TokenMetrics{
		"Bitcoin": {Token: "Bitcoin", Price: 65000},
	}}
	svc := NewMetricsService(testTracer, provider, &stubMetricsRepo{}, nil)

	got, err := svc.CurrentMetrics(context.Background(), "Bitcoin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Price != 65000 {
		t.Fatalf("unexpected metrics: %+v", got)
	}
}

func TestRefreshTokens(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{metrics: map[string]domain.TokenMetrics{
		"Bitcoin":  {Token: "Bitcoin", Price: 65000},
		"Ethereum": {Token: "Ethereum", Price: 3500},
	}}
	repo := &stubMetricsRepo{}
	cache := newFakeRedis()
	svc := NewMetricsService(testTracer, provider, repo, cache)

	if err := svc.RefreshTokens(context.Background(), []string{"Bitcoin", "Ethereum"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.stored) != 2 {
		t.Fatalf("expected 2 persisted rows, got %d", len(repo.stored))
	}
	if cache.sets != 2 {
		t.Fatalf("expected 2 cache writes, got %d", cache.sets)
	}
}

func TestRefreshTokens_ProviderError(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{err: fmt.Errorf("vendor down")}
	svc := NewMetricsService(testTracer, provider, &stubMetricsRepo{}, newFakeRedis())

	if err := svc.RefreshTokens(context.Background(), []string{"Bitcoin"}); err == nil {
		t.Fatal("expected provider error to surface")
	}
}
