package retriever

import (
	"context"
	"log"

	"coin-scout/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// RankTokens collapses search results from any number of queries into the
// single best token. A token's combined score is its mention count times its
// mean similarity; ties keep the token whose first result arrived earlier.
// Returns "" when no result carried a token.
func RankTokens(results []domain.SearchResult) string {
	byToken := make(map[string]*domain.TokenCandidate)
	order := make([]string, 0, len(results))

	for _, result := range results {
		token := result.Record.Token
		if token == "" {
			continue
		}
		candidate, ok := byToken[token]
		if !ok {
			candidate = &domain.TokenCandidate{Token: token}
			byToken[token] = candidate
			order = append(order, token)
		}
		candidate.MentionCount++
		candidate.Similarities = append(candidate.Similarities, result.Similarity)
	}

	best := ""
	bestScore := 0.0
	for _, token := range order {
		score := byToken[token].CombinedScore()
		if score > bestScore {
			bestScore = score
			best = token
		}
	}
	return best
}

// MostFrequentToken is the similarity-free fallback: pick whichever token has
// the most stored records. Ties keep the first-encountered token.
func MostFrequentToken(tokens []string) string {
	counts := make(map[string]int)
	order := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if token == "" {
			continue
		}
		if counts[token] == 0 {
			order = append(order, token)
		}
		counts[token]++
	}

	best := ""
	bestCount := 0
	for _, token := range order {
		if counts[token] > bestCount {
			bestCount = counts[token]
			best = token
		}
	}
	return best
}

// TopToken runs every seed query, aggregates the results, and returns the
// highest-scoring token. When semantic retrieval surfaces nothing usable it
// falls back to raw record frequency; "" means the store is empty.
func (s *Service) TopToken(ctx context.Context) (string, error) {
	ctx, span := s.tracer.Start(ctx, "retriever.top-token")
	defer span.End()

	all := make([]domain.SearchResult, 0, len(s.cfg.SeedQueries)*s.cfg.TopKPerQuery)
	for _, query := range s.cfg.SeedQueries {
		results := s.Search(ctx, query, s.cfg.TopKPerQuery)
		all = append(all, results...)
	}
	span.SetAttributes(
		attribute.Int("retriever.queries", len(s.cfg.SeedQueries)),
		attribute.Int("retriever.results", len(all)),
	)

	if token := RankTokens(all); token != "" {
		span.SetAttributes(attribute.String("retriever.token", token))
		return token, nil
	}

	log.Println("no tokens surfaced by semantic retrieval, falling back to record frequency")
	tokens, err := s.store.ListAllTokens(ctx)
	if err != nil {
		return "", err
	}
	token := MostFrequentToken(tokens)
	span.SetAttributes(attribute.String("retriever.token", token))
	return token, nil
}
