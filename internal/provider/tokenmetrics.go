package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"coin-scout/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const tokenMetricsBaseURL = "https://api.tokenmetrics.com/v2"

// TokenMetricsProvider fetches token-level market data from the Token Metrics
// paid API. Authentication is an x-api-key header.
type TokenMetricsProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	tracer  trace.Tracer
	limiter *RateLimiter
}

// NewTokenMetricsProvider creates a provider with built-in rate limiting.
// Rate limited to one request per second, matching the vendor's guidance.
func NewTokenMetricsProvider(apiKey string, tracer trace.Tracer) *TokenMetricsProvider {
	return &TokenMetricsProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: tokenMetricsBaseURL,
		apiKey:  apiKey,
		tracer:  tracer,
		limiter: NewRateLimiter(1, time.Second),
	}
}

// tokenMetricsRow mirrors the vendor's upper-snake response fields.
type tokenMetricsRow struct {
	TokenName      string  `json:"TOKEN_NAME"`
	TokenSymbol    string  `json:"TOKEN_SYMBOL"`
	CurrentPrice   float64 `json:"CURRENT_PRICE"`
	TotalVolume    float64 `json:"TOTAL_VOLUME"`
	MarketCap      float64 `json:"MARKET_CAP"`
	PriceChange24h float64 `json:"PRICE_CHANGE_PERCENTAGE_24H_IN_CURRENCY"`
}

type tokenMetricsResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    []tokenMetricsRow `json:"data"`
}

// FetchToken fetches current data for a single token by its display name.
func (p *TokenMetricsProvider) FetchToken(ctx context.Context, name string) (*domain.TokenMetrics, error) {
	_, span := p.tracer.Start(ctx, "tokenmetrics.fetch-token")
	defer span.End()

	rows, err := p.fetchRows(ctx, url.Values{"token_name": {name}})
	if err != nil {
		return nil, fmt.Errorf("fetch token %s: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no data for token %s", name)
	}
	metrics := rowToMetrics(rows[0])
	return &metrics, nil
}

// FetchTokens fetches current data for several tokens in one batched call,
// keyed by token name. Names absent from the response are absent from the map.
func (p *TokenMetricsProvider) FetchTokens(ctx context.Context, names []string) (map[string]domain.TokenMetrics, error) {
	_, span := p.tracer.Start(ctx, "tokenmetrics.fetch-tokens")
	defer span.End()

	if len(names) == 0 {
		return map[string]domain.TokenMetrics{}, nil
	}

	query := url.Values{
		"limit":      {"50"},
		"page":       {"1"},
		"token_name": {strings.Join(names, ",")},
	}
	rows, err := p.fetchRows(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetch tokens: %w", err)
	}

	out := make(map[string]domain.TokenMetrics, len(rows))
	for _, row := range rows {
		if row.TokenName == "" {
			continue
		}
		out[row.TokenName] = rowToMetrics(row)
	}
	return out, nil
}

func (p *TokenMetricsProvider) fetchRows(ctx context.Context, query url.Values) ([]tokenMetricsRow, error) {
	body, err := p.doRequest(ctx, p.baseURL+"/tokens?"+query.Encode())
	if err != nil {
		return nil, err
	}

	var parsed tokenMetricsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("API reported failure: %s", parsed.Message)
	}
	return parsed.Data, nil
}

func (p *TokenMetricsProvider) doRequest(ctx context.Context, url string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tokenmetrics API error %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

func rowToMetrics(row tokenMetricsRow) domain.TokenMetrics {
	return domain.TokenMetrics{
		Token:          row.TokenName,
		Symbol:         row.TokenSymbol,
		Price:          row.CurrentPrice,
		Volume24h:      row.TotalVolume,
		MarketCap:      row.MarketCap,
		PriceChange24h: row.PriceChange24h,
		CreatedAt:      time.Now().UTC(),
	}
}
