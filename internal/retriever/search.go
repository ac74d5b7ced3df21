package retriever

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"coin-scout/internal/domain"
	"coin-scout/internal/embedding"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// EmbeddingStore is the slice of the persistence layer the retriever needs.
// MatchRecords is the store's native vector search; when it errors the
// retriever scores records in application code instead.
type EmbeddingStore interface {
	MatchRecords(ctx context.Context, queryVec []float32, threshold float64, limit int) ([]domain.SearchResult, error)
	ListCreatedOn(ctx context.Context, day time.Time, limit int) ([]domain.ContentRecord, error)
	ListAllTokens(ctx context.Context) ([]string, error)
}

const (
	nativeThreshold      = 0.6
	nativeRetryThreshold = 0.3
	manualThreshold      = 0.3
	keywordRowCap        = 100
)

// fallbackKeywords score records when no query vector could be produced.
var fallbackKeywords = []string{
	"investable", "cryptocurrency", "fundamentals", "sentiment", "growth", "potential",
}

type Config struct {
	SeedQueries  []string
	TopKPerQuery int
}

// DefaultSeedQueries are the investment-focused queries used when none are
// configured.
var DefaultSeedQueries = []string{
	"most investable cryptocurrency with strong fundamentals",
	"cryptocurrency investment opportunity positive sentiment",
	"best crypto to invest in with growth potential",
	"cryptocurrency with strong community and development",
}

// Service runs semantic retrieval over the day's embedded content.
type Service struct {
	tracer trace.Tracer
	client embedding.Client
	store  EmbeddingStore
	cfg    Config
	now    func() time.Time
}

func NewService(tracer trace.Tracer, client embedding.Client, store EmbeddingStore, cfg Config) *Service {
	if len(cfg.SeedQueries) == 0 {
		cfg.SeedQueries = append([]string(nil), DefaultSeedQueries...)
	}
	if cfg.TopKPerQuery <= 0 {
		cfg.TopKPerQuery = 10
	}
	return &Service{
		tracer: tracer,
		client: client,
		store:  store,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Search returns at most topK of today's records ranked against the query.
// It degrades from native vector search to in-process cosine scoring to
// keyword overlap; failures along the way are logged, never returned.
func (s *Service) Search(ctx context.Context, query string, topK int) []domain.SearchResult {
	ctx, span := s.tracer.Start(ctx, "retriever.search")
	defer span.End()
	span.SetAttributes(attribute.String("search.query", query), attribute.Int("search.top_k", topK))

	if topK <= 0 {
		topK = s.cfg.TopKPerQuery
	}

	queryVec := s.embedQuery(ctx, query)
	if queryVec == nil {
		return s.keywordSearch(ctx, topK)
	}

	if results, ok := s.nativeSearch(ctx, queryVec, topK); ok {
		return results
	}
	return s.manualSearch(ctx, queryVec, topK)
}

func (s *Service) embedQuery(ctx context.Context, query string) []float32 {
	if s.client == nil {
		return nil
	}
	vec, err := s.client.Embed(ctx, query)
	if err != nil {
		log.Printf("query embedding failed, using keyword fallback: %v", err)
		return nil
	}
	return vec
}

// nativeSearch asks the store to rank server-side at threshold 0.6, retrying
// once at 0.3 before giving up. The second return reports whether the native
// path produced a usable answer.
func (s *Service) nativeSearch(ctx context.Context, queryVec []float32, topK int) ([]domain.SearchResult, bool) {
	ctx, span := s.tracer.Start(ctx, "retriever.native-search")
	defer span.End()

	results, err := s.store.MatchRecords(ctx, queryVec, nativeThreshold, topK)
	if err != nil {
		log.Printf("native vector search failed, scoring manually: %v", err)
		return nil, false
	}
	if len(results) > 0 {
		return results, true
	}

	results, err = s.store.MatchRecords(ctx, queryVec, nativeRetryThreshold, topK)
	if err != nil {
		log.Printf("native vector search retry failed, scoring manually: %v", err)
		return nil, false
	}
	if len(results) > 0 {
		return results, true
	}
	return nil, false
}

// manualSearch scores today's records in application code. The store returns
// rows in id order, so equal similarities keep retrieval order under the
// stable sort.
func (s *Service) manualSearch(ctx context.Context, queryVec []float32, topK int) []domain.SearchResult {
	ctx, span := s.tracer.Start(ctx, "retriever.manual-search")
	defer span.End()

	records, err := s.store.ListCreatedOn(ctx, s.today(), 0)
	if err != nil {
		log.Printf("loading today's records failed: %v", err)
		return nil
	}

	results := make([]domain.SearchResult, 0, len(records))
	for _, record := range records {
		if len(record.Embedding) == 0 {
			continue
		}
		sim := embedding.CosineSimilarity(queryVec, record.Embedding)
		if sim > manualThreshold {
			results = append(results, domain.SearchResult{Record: record, Similarity: sim})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > topK {
		results = results[:topK]
	}
	span.SetAttributes(attribute.Int("search.results", len(results)))
	return results
}

// keywordSearch is the last resort when no query vector exists: count which
// of the fixed keywords appear in each record's lower-cased text. The query
// itself is not consulted; every seed query targets the same investment
// vocabulary.
func (s *Service) keywordSearch(ctx context.Context, topK int) []domain.SearchResult {
	ctx, span := s.tracer.Start(ctx, "retriever.keyword-search")
	defer span.End()

	records, err := s.store.ListCreatedOn(ctx, s.today(), keywordRowCap)
	if err != nil {
		log.Printf("loading today's records failed: %v", err)
		return nil
	}

	results := make([]domain.SearchResult, 0, len(records))
	for _, record := range records {
		text := strings.ToLower(record.ContentText)
		score := 0
		for _, keyword := range fallbackKeywords {
			if strings.Contains(text, keyword) {
				score++
			}
		}
		if score > 0 {
			results = append(results, domain.SearchResult{Record: record, RelevanceScore: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// today returns the start of the current UTC calendar day. Record filtering
// uses the half-open interval [today, tomorrow).
func (s *Service) today() time.Time {
	return s.now().UTC().Truncate(24 * time.Hour)
}
