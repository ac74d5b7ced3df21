package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

func newTestProvider(t *testing.T, handler http.HandlerFunc) *TokenMetricsProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p := NewTokenMetricsProvider("test-key", testTracer)
	p.baseURL = server.URL
	return p
}

func TestFetchToken(t *testing.T) {
	t.Parallel()

	var gotPath, gotKey, gotName string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		gotName = r.URL.Query().Get("token_name")
		w.Write([]byte(`{"success": true, "data": [{"TOKEN_NAME": "Bitcoin", "TOKEN_SYMBOL": "BTC", "CURRENT_PRICE": 65000.5, "TOTAL_VOLUME": 1000, "MARKET_CAP": 2000, "PRICE_CHANGE_PERCENTAGE_24H_IN_CURRENCY": 1.5}]}`))
	})

	metrics, err := p.FetchToken(context.Background(), "Bitcoin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/tokens" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("missing api key header, got %q", gotKey)
	}
	if gotName != "Bitcoin" {
		t.Fatalf("unexpected token_name param: %q", gotName)
	}
	if metrics.Token != "Bitcoin" || metrics.Symbol != "BTC" || metrics.Price != 65000.5 {
		t.Fatalf("unexpected metrics: %+v", metrics)
	}
	if metrics.Volume24h != 1000 || metrics.MarketCap != 2000 || metrics.PriceChange24h != 1.5 {
		t.Fatalf("unexpected metrics: %+v", metrics)
	}
}

func TestFetchToken_NoRows(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "data": []}`))
	})

	if _, err := p.FetchToken(context.Background(), "Unknown"); err == nil {
		t.Fatal("expected error for empty data")
	}
}

func TestFetchToken_APIFailure(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "message": "invalid key", "data": []}`))
	})

	if _, err := p.FetchToken(context.Background(), "Bitcoin"); err == nil {
		t.Fatal("expected error when success flag is false")
	}
}

func TestFetchToken_HTTPError(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	if _, err := p.FetchToken(context.Background(), "Bitcoin"); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestFetchTokens_BatchedByName(t *testing.T) {
	t.Parallel()

	var gotQuery map[string][]string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"success": true, "data": [
			{"TOKEN_NAME": "Bitcoin", "CURRENT_PRICE": 65000},
			{"TOKEN_NAME": "Ethereum", "CURRENT_PRICE": 3500},
			{"TOKEN_NAME": "", "CURRENT_PRICE": 1}
		]}`))
	})

	out, err := p.FetchTokens(context.Background(), []string{"Bitcoin", "Ethereum"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery["token_name"][0] != "Bitcoin,Ethereum" {
		t.Fatalf("names should be comma-joined, got %v", gotQuery["token_name"])
	}
	if gotQuery["limit"][0] != "50" || gotQuery["page"][0] != "1" {
		t.Fatalf("unexpected paging params: %v", gotQuery)
	}
	if len(out) != 2 {
		t.Fatalf("nameless rows should be dropped, got %d entries", len(out))
	}
	if out["Ethereum"].Price != 3500 {
		t.Fatalf("unexpected batch entry: %+v", out["Ethereum"])
	}
}

func TestFetchTokens_EmptyInput(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty input")
	})

	out, err := p.FetchTokens(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty map, got %v", out)
	}
}
