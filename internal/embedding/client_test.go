package embedding

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go"
)

type stubEmbeddingAPI struct {
	lastInput string
	vector    []float64
	err       error
	calls     int
}

func (s *stubEmbeddingAPI) CreateEmbedding(ctx context.Context, params openai.EmbeddingNewParams) (*openai.CreateEmbeddingResponse, error) {
	s.calls++
	s.lastInput = params.Input.OfString.Value
	if s.err != nil {
		return nil, s.err
	}
	return &openai.CreateEmbeddingResponse{
		Data: []openai.Embedding{{Embedding: s.vector}},
	}, nil
}

func newTestClient(api embeddingAPI, dimensions int) *OpenAIClient {
	return &OpenAIClient{
		api:        api,
		model:      "text-embedding-3-small",
		dimensions: dimensions,
		timeout:    time.Second,
	}
}

func TestOpenAIClient_EmptyInput(t *testing.T) {
	t.Parallel()

	api := &stubEmbeddingAPI{}
	client := newTestClient(api, 3)

	vec, err := client.Embed(context.Background(), "   ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec != nil {
		t.Fatalf("expected nil vector for empty input, got %v", vec)
	}
	if api.calls != 0 {
		t.Fatalf("no API call expected for empty input, got %d", api.calls)
	}
}

func TestOpenAIClient_TruncatesLongInput(t *testing.T) {
	t.Parallel()

	api := &stubEmbeddingAPI{vector: []float64{1, 2, 3}}
	client := newTestClient(api, 3)

	long := strings.Repeat("a", maxInputChars+500)
	if _, err := client.Embed(context.Background(), long); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.lastInput) != maxInputChars {
		t.Fatalf("expected input truncated to %d chars, got %d", maxInputChars, len(api.lastInput))
	}
}

func TestOpenAIClient_DimensionMismatch(t *testing.T) {
	t.Parallel()

	api := &stubEmbeddingAPI{vector: []float64{1, 2}}
	client := newTestClient(api, 3)

	if _, err := client.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error on dimension mismatch")
	}
}

func TestOpenAIClient_ConvertsVector(t *testing.T) {
	t.Parallel()

	api := &stubEmbeddingAPI{vector: []float64{0.25, -0.5, 1}}
	client := newTestClient(api, 3)

	vec, err := client.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.25 || vec[1] != -0.5 || vec[2] != 1 {
		t.Fatalf("unexpected vector: %v", vec)
	}
}

func TestNewOpenAIClient_NoKey(t *testing.T) {
	t.Parallel()

	if client := NewOpenAIClient("", "model", 3, time.Second); client != nil {
		t.Fatal("expected nil client without API key")
	}
}

func TestNewOpenAIClient_Defaults(t *testing.T) {
	t.Parallel()

	client := NewOpenAIClient("key", "", 0, 0)
	if client == nil {
		t.Fatal("expected client")
	}
	if client.model != "text-embedding-3-small" {
		t.Fatalf("unexpected default model: %s", client.model)
	}
	if client.Dimensions() != 1536 {
		t.Fatalf("unexpected default dimensions: %d", client.Dimensions())
	}
	if client.timeout != defaultEmbedTimeout {
		t.Fatalf("unexpected default timeout: %v", client.timeout)
	}
}
