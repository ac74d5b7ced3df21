package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coin-scout/internal/domain"

	"github.com/gin-gonic/gin"
)

type stubTokenData struct {
	posts   []domain.SocialPost
	reports []domain.AIReport
	signals []domain.TradingSignal
	hourly  []domain.HourlySignal
	candles []domain.Candle
	grades  []domain.FundamentalGrade
	levels  []domain.ResistanceSupport
}

func (s *stubTokenData) UpsertPosts(ctx context.Context, posts []domain.SocialPost) (int, error) {
	s.posts = append(s.posts, posts...)
	return len(posts), nil
}

func (s *stubTokenData) UpsertReports(ctx context.Context, reports []domain.AIReport) (int, error) {
	s.reports = append(s.reports, reports...)
	return len(reports), nil
}

func (s *stubTokenData) UpsertSignals(ctx context.Context, signals []domain.TradingSignal) (int, error) {
	s.signals = append(s.signals, signals...)
	return len(signals), nil
}

func (s *stubTokenData) UpsertHourlySignals(ctx context.Context, signals []domain.HourlySignal) (int, error) {
	s.hourly = append(s.hourly, signals...)
	return len(signals), nil
}

func (s *stubTokenData) UpsertCandles(ctx context.Context, candles []domain.Candle) (int, error) {
	s.candles = append(s.candles, candles...)
	return len(candles), nil
}

func (s *stubTokenData) InsertFundamentalGrade(ctx context.Context, grade domain.FundamentalGrade) (int64, error) {
	s.grades = append(s.grades, grade)
	return int64(len(s.grades)), nil
}

func (s *stubTokenData) InsertResistanceSupport(ctx context.Context, levels domain.ResistanceSupport) (int64, error) {
	s.levels = append(s.levels, levels)
	return int64(len(s.levels)), nil
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIngest(t *testing.T) {
	t.Parallel()

	store := &stubTokenData{}
	r := newTestRouter(New(testTracer, nil, nil, nil, nil, nil, store), "")

	body := `{
		"posts": [{"token_name": "Bitcoin", "token_symbol": "BTC", "post_title": "t", "post_sentiment": 3.1, "post_link": "https://x.com/1", "created_at": "2025-06-15T10:00:00Z"}],
		"reports": [{"token_name": "Bitcoin", "investment_analysis": "strong", "created_at": "2025-06-15T08:00:00Z"}],
		"signals": [{"token_name": "Bitcoin", "signal": 1, "trend": "bullish", "created_at": "2025-06-15T00:00:00Z"}],
		"hourly_signals": [{"token_name": "Bitcoin", "ts": "2025-06-15T10:00:00Z", "signal": "buy", "position": "long", "close_price": 65000}],
		"candles": [{"token_name": "Bitcoin", "interval": "1d", "ts": "2025-06-15T00:00:00Z", "open": 1, "high": 2, "low": 0.5, "close": 1.5, "volume": 100}],
		"fundamental_grades": [{"token_name": "Bitcoin", "grade": 82.5, "grade_class": "strong"}],
		"resistance_support": [{"token_name": "Bitcoin", "levels_json": "{\"levels\": []}"}]
	}`

	w := postJSON(r, "/api/ingest", body)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", w.Code, w.Body.String())
	}

	if len(store.posts) != 1 || store.posts[0].PostLink != "https://x.com/1" {
		t.Fatalf("unexpected posts: %+v", store.posts)
	}
	if store.posts[0].Sentiment == nil || *store.posts[0].Sentiment != 3.1 {
		t.Fatalf("sentiment should survive the mapping: %+v", store.posts[0])
	}
	if len(store.reports) != 1 || len(store.signals) != 1 || len(store.hourly) != 1 {
		t.Fatalf("unexpected section counts: %+v", store)
	}
	if len(store.candles) != 1 || store.candles[0].Interval != "1d" {
		t.Fatalf("unexpected candles: %+v", store.candles)
	}
	if len(store.grades) != 1 || len(store.levels) != 1 {
		t.Fatalf("unexpected grades/levels: %+v", store)
	}
}

func TestIngest_EmptySectionsSkipped(t *testing.T) {
	t.Parallel()

	store := &stubTokenData{}
	r := newTestRouter(New(testTracer, nil, nil, nil, nil, nil, store), "")

	w := postJSON(r, "/api/ingest", `{}`)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	if len(store.posts) != 0 || len(store.reports) != 0 {
		t.Fatalf("nothing should be written: %+v", store)
	}
}

func TestIngest_Validation(t *testing.T) {
	t.Parallel()

	store := &stubTokenData{}
	r := newTestRouter(New(testTracer, nil, nil, nil, nil, nil, store), "")

	if w := postJSON(r, "/api/ingest", `not json`); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body should be 400, got %d", w.Code)
	}
	// post without its required post_link
	if w := postJSON(r, "/api/ingest", `{"posts": [{"token_name": "Bitcoin"}]}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing post_link should be 400, got %d", w.Code)
	}
}

func TestIngest_Unavailable(t *testing.T) {
	t.Parallel()

	r := newTestRouter(New(testTracer, nil, nil, nil, nil, nil, nil), "")
	if w := postJSON(r, "/api/ingest", `{}`); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("nil store should be 503, got %d", w.Code)
	}
}
