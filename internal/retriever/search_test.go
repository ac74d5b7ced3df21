package retriever

import (
	"context"
	"fmt"
	"testing"
	"time"

	"coin-scout/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type stubClient struct {
	vec []float32
	err error
}

func (s *stubClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vec, nil
}

func (s *stubClient) Dimensions() int { return len(s.vec) }

type stubStore struct {
	matchResults map[float64][]domain.SearchResult
	matchErr     error
	matchCalls   []float64

	records  []domain.ContentRecord
	listErr  error
	lastDay  time.Time
	listCap  int
	tokens   []string
	tokenErr error
}

func (s *stubStore) MatchRecords(ctx context.Context, queryVec []float32, threshold float64, limit int) ([]domain.SearchResult, error) {
	s.matchCalls = append(s.matchCalls, threshold)
	if s.matchErr != nil {
		return nil, s.matchErr
	}
	return s.matchResults[threshold], nil
}

func (s *stubStore) ListCreatedOn(ctx context.Context, day time.Time, limit int) ([]domain.ContentRecord, error) {
	s.lastDay = day
	s.listCap = limit
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.records, nil
}

func (s *stubStore) ListAllTokens(ctx context.Context) ([]string, error) {
	if s.tokenErr != nil {
		return nil, s.tokenErr
	}
	return s.tokens, nil
}

func newTestService(client *stubClient, store *stubStore) *Service {
	svc := NewService(testTracer, client, store, Config{TopKPerQuery: 10})
	svc.now = func() time.Time {
		return time.Date(2025, 6, 15, 13, 45, 0, 0, time.UTC)
	}
	return svc
}

func TestSearch_NativeHit(t *testing.T) {
	t.Parallel()

	store := &stubStore{
		matchResults: map[float64][]domain.SearchResult{
			nativeThreshold: {{Record: domain.ContentRecord{Token: "Bitcoin"}, Similarity: 0.9}},
		},
	}
	svc := newTestService(&stubClient{vec: []float32{1, 0}}, store)

	results := svc.Search(context.Background(), "query", 5)
	if len(results) != 1 || results[0].Record.Token != "Bitcoin" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if len(store.matchCalls) != 1 || store.matchCalls[0] != nativeThreshold {
		t.Fatalf("unexpected match calls: %v", store.matchCalls)
	}
}

func TestSearch_NativeRetriesAtLowerThreshold(t *testing.T) {
	t.Parallel()

	store := &stubStore{
		matchResults: map[float64][]domain.SearchResult{
			nativeRetryThreshold: {{Record: domain.ContentRecord{Token: "Solana"}, Similarity: 0.4}},
		},
	}
	svc := newTestService(&stubClient{vec: []float32{1, 0}}, store)

	results := svc.Search(context.Background(), "query", 5)
	if len(results) != 1 || results[0].Record.Token != "Solana" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if len(store.matchCalls) != 2 || store.matchCalls[1] != nativeRetryThreshold {
		t.Fatalf("expected retry at %v, got calls %v", nativeRetryThreshold, store.matchCalls)
	}
}

func TestSearch_ManualFallbackOnNativeError(t *testing.T) {
	t.Parallel()

	store := &stubStore{
		matchErr: fmt.Errorf("function match_embeddings does not exist"),
		records: []domain.ContentRecord{
			{ID: 1, Token: "Bitcoin", Embedding: []float32{1, 0}},
			{ID: 2, Token: "Ethereum", Embedding: []float32{0.9, 0.1}},
			{ID: 3, Token: "Doge", Embedding: []float32{0, 1}}, // below threshold
		},
	}
	svc := newTestService(&stubClient{vec: []float32{1, 0}}, store)

	results := svc.Search(context.Background(), "query", 5)
	if len(results) != 2 {
		t.Fatalf("expected 2 results above threshold, got %d", len(results))
	}
	if results[0].Record.Token != "Bitcoin" {
		t.Fatalf("expected highest similarity first, got %s", results[0].Record.Token)
	}
	if store.lastDay != time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("expected same-day filter, got %v", store.lastDay)
	}
}

func TestSearch_ManualRespectsTopK(t *testing.T) {
	t.Parallel()

	records := make([]domain.ContentRecord, 5)
	for i := range records {
		records[i] = domain.ContentRecord{ID: int64(i + 1), Token: "T", Embedding: []float32{1, 0}}
	}
	store := &stubStore{matchErr: fmt.Errorf("down"), records: records}
	svc := newTestService(&stubClient{vec: []float32{1, 0}}, store)

	results := svc.Search(context.Background(), "query", 2)
	if len(results) != 2 {
		t.Fatalf("expected topK=2 results, got %d", len(results))
	}
}

func TestSearch_KeywordFallbackWhenEmbeddingFails(t *testing.T) {
	t.Parallel()

	store := &stubStore{
		records: []domain.ContentRecord{
			{ID: 1, Token: "Bitcoin", ContentText: "An INVESTABLE cryptocurrency with strong fundamentals and growth"},
			{ID: 2, Token: "Ethereum", ContentText: "positive sentiment around the ecosystem"},
			{ID: 3, Token: "Doge", ContentText: "a meme with no relevant terms"},
		},
	}
	svc := newTestService(&stubClient{err: fmt.Errorf("api down")}, store)

	results := svc.Search(context.Background(), "query", 5)
	if len(results) != 2 {
		t.Fatalf("expected 2 keyword matches, got %d", len(results))
	}
	if results[0].Record.Token != "Bitcoin" {
		t.Fatalf("expected most keyword hits first, got %s", results[0].Record.Token)
	}
	if results[0].RelevanceScore != 4 {
		t.Fatalf("expected 4 keyword hits, got %d", results[0].RelevanceScore)
	}
	if store.listCap != keywordRowCap {
		t.Fatalf("expected keyword row cap %d, got %d", keywordRowCap, store.listCap)
	}
}

func TestSearch_ManualThresholdIsExclusive(t *testing.T) {
	t.Parallel()

	// cos(60 degrees) = 0.5 > 0.3 passes; orthogonal 0.0 does not.
	store := &stubStore{
		matchErr: fmt.Errorf("down"),
		records: []domain.ContentRecord{
			{ID: 1, Token: "Edge", Embedding: []float32{0, 1}},
		},
	}
	svc := newTestService(&stubClient{vec: []float32{1, 0}}, store)

	if results := svc.Search(context.Background(), "query", 5); len(results) != 0 {
		t.Fatalf("expected no results at or below threshold, got %d", len(results))
	}
}
