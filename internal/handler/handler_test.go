package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"coin-scout/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type stubSearcher struct {
	results  []domain.SearchResult
	gotQuery string
	gotTopK  int
}

func (s *stubSearcher) Search(ctx context.Context, query string, topK int) []domain.SearchResult {
	s.gotQuery = query
	s.gotTopK = topK
	return s.results
}

type stubEmbedRunner struct {
	result domain.EmbedRunResult
	err    error
}

func (s *stubEmbedRunner) Run(ctx context.Context) (domain.EmbedRunResult, error) {
	return s.result, s.err
}

type stubPipelineRunner struct {
	result domain.PipelineRunResult
	err    error
}

func (s *stubPipelineRunner) Run(ctx context.Context) (domain.PipelineRunResult, error) {
	return s.result, s.err
}

type stubPortfolioRunner struct {
	result domain.PortfolioRunResult
	err    error
}

func (s *stubPortfolioRunner) Run(ctx context.Context) (domain.PortfolioRunResult, error) {
	return s.result, s.err
}

type stubLister struct {
	positions []domain.Position
	err       error
}

func (s *stubLister) ListActive(ctx context.Context) ([]domain.Position, error) {
	return s.positions, s.err
}

func newTestRouter(h *Handler, apiKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r, apiKey)
	return r
}

func doRequest(r *gin.Engine, method, path, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	t.Parallel()

	r := newTestRouter(New(testTracer, nil, nil, nil, nil, nil, nil), "")
	w := doRequest(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	t.Parallel()

	r := newTestRouter(New(testTracer, nil, nil, nil, nil, &stubLister{}, nil), "secret")

	if w := doRequest(r, http.MethodGet, "/api/positions", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing key should be 401, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodGet, "/api/positions", "wrong"); w.Code != http.StatusForbidden {
		t.Fatalf("wrong key should be 403, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodGet, "/api/positions", "secret"); w.Code != http.StatusOK {
		t.Fatalf("valid key should pass, got %d", w.Code)
	}
}

func TestAPIKeyAuth_DisabledWhenEmpty(t *testing.T) {
	t.Parallel()

	r := newTestRouter(New(testTracer, nil, nil, nil, nil, &stubLister{}, nil), "")
	if w := doRequest(r, http.MethodGet, "/api/positions", ""); w.Code != http.StatusOK {
		t.Fatalf("empty key should disable auth, got %d", w.Code)
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{results: []domain.SearchResult{
		{Record: domain.ContentRecord{Token: "Bitcoin", ContentType: domain.ContentTypeAIReport}, Similarity: 0.85},
	}}
	r := newTestRouter(New(testTracer, searcher, nil, nil, nil, nil, nil), "")

	w := doRequest(r, http.MethodGet, "/api/search?q=best+tokens&top_k=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", w.Code, w.Body.String())
	}
	if searcher.gotQuery != "best tokens" || searcher.gotTopK != 5 {
		t.Fatalf("unexpected search args: %q %d", searcher.gotQuery, searcher.gotTopK)
	}

	var body struct {
		Count   int `json:"count"`
		Results []struct {
			Token      string  `json:"token"`
			Similarity float64 `json:"similarity"`
		} `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body.Count != 1 || body.Results[0].Token != "Bitcoin" || body.Results[0].Similarity != 0.85 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestSearch_Validation(t *testing.T) {
	t.Parallel()

	r := newTestRouter(New(testTracer, &stubSearcher{}, nil, nil, nil, nil, nil), "")

	if w := doRequest(r, http.MethodGet, "/api/search", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("missing q should be 400, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodGet, "/api/search?q=x&top_k=0", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("top_k=0 should be 400, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodGet, "/api/search?q=x&top_k=101", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("top_k=101 should be 400, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodGet, "/api/search?q=x&top_k=abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric top_k should be 400, got %d", w.Code)
	}
}

func TestSearch_Unavailable(t *testing.T) {
	t.Parallel()

	r := newTestRouter(New(testTracer, nil, nil, nil, nil, nil, nil), "")
	if w := doRequest(r, http.MethodGet, "/api/search?q=x", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("nil searcher should be 503, got %d", w.Code)
	}
}

func TestListPositions(t *testing.T) {
	t.Parallel()

	lister := &stubLister{positions: []domain.Position{{ID: 1, Symbol: "BTC", SizeUSD: 50}}}
	r := newTestRouter(New(testTracer, nil, nil, nil, nil, lister, nil), "")

	w := doRequest(r, http.MethodGet, "/api/positions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}

	var body struct {
		Count     int               `json:"count"`
		Positions []domain.Position `json:"positions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body.Count != 1 || body.Positions[0].Symbol != "BTC" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestListPositions_EmptyIsArray(t *testing.T) {
	t.Parallel()

	r := newTestRouter(New(testTracer, nil, nil, nil, nil, &stubLister{}, nil), "")
	w := doRequest(r, http.MethodGet, "/api/positions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	if got := w.Body.String(); !json.Valid([]byte(got)) || got == "" {
		t.Fatalf("invalid body: %s", got)
	}
	var body map[string]json.RawMessage
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if string(body["positions"]) != "[]" {
		t.Fatalf("nil positions should serialize as [], got %s", body["positions"])
	}
}

func TestListPositions_Error(t *testing.T) {
	t.Parallel()

	r := newTestRouter(New(testTracer, nil, nil, nil, nil, &stubLister{err: fmt.Errorf("db down")}, nil), "")
	if w := doRequest(r, http.MethodGet, "/api/positions", ""); w.Code != http.StatusInternalServerError {
		t.Fatalf("store error should be 500, got %d", w.Code)
	}
}

func TestTriggerEndpoints(t *testing.T) {
	t.Parallel()

	h := New(
		testTracer,
		nil,
		&stubEmbedRunner{result: domain.EmbedRunResult{PostsEmbedded: 3}},
		&stubPipelineRunner{result: domain.PipelineRunResult{Token: "Bitcoin", PositionID: 7}},
		&stubPortfolioRunner{result: domain.PortfolioRunResult{PositionsReviewed: 2, PositionsKept: 1, PositionsClosed: 1}},
		nil,
		nil,
	)
	r := newTestRouter(h, "")

	for _, path := range []string{"/api/embed/run", "/api/pipeline/run", "/api/portfolio/run"} {
		if w := doRequest(r, http.MethodPost, path, ""); w.Code != http.StatusOK {
			t.Fatalf("%s: unexpected status %d body=%s", path, w.Code, w.Body.String())
		}
	}
}

func TestTriggerEndpoints_UnavailableAndErrors(t *testing.T) {
	t.Parallel()

	// all runners nil
	r := newTestRouter(New(testTracer, nil, nil, nil, nil, nil, nil), "")
	for _, path := range []string{"/api/embed/run", "/api/pipeline/run", "/api/portfolio/run"} {
		if w := doRequest(r, http.MethodPost, path, ""); w.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: nil runner should be 503, got %d", path, w.Code)
		}
	}

	failing := New(
		testTracer,
		nil,
		&stubEmbedRunner{err: fmt.Errorf("boom")},
		&stubPipelineRunner{err: fmt.Errorf("boom")},
		&stubPortfolioRunner{err: fmt.Errorf("boom")},
		nil,
		nil,
	)
	r = newTestRouter(failing, "")
	for _, path := range []string{"/api/embed/run", "/api/pipeline/run", "/api/portfolio/run"} {
		if w := doRequest(r, http.MethodPost, path, ""); w.Code != http.StatusInternalServerError {
			t.Fatalf("%s: runner error should be 500, got %d", path, w.Code)
		}
	}
}
