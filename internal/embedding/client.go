package embedding

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// maxInputChars approximates the embedding model's 8k-token ceiling at
// roughly four characters per token. The cut is a plain character slice,
// not token-aware.
const maxInputChars = 32000

const defaultEmbedTimeout = 60 * time.Second

// Client produces fixed-dimension embedding vectors for text.
// Implementations return (nil, nil) for empty input and an error for
// transport or service failures; callers treat both as "no vector".
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

type embeddingAPI interface {
	CreateEmbedding(ctx context.Context, params openai.EmbeddingNewParams) (*openai.CreateEmbeddingResponse, error)
}

// OpenAIClient calls the OpenAI embeddings endpoint. One outbound call per
// Embed invocation; no batching, caching, or retries.
type OpenAIClient struct {
	api        embeddingAPI
	model      string
	dimensions int
	timeout    time.Duration
}

func NewOpenAIClient(apiKey, model string, dimensions int, timeout time.Duration) *OpenAIClient {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	if strings.TrimSpace(model) == "" {
		model = "text-embedding-3-small"
	}
	if dimensions <= 0 {
		dimensions = 1536
	}
	if timeout <= 0 {
		timeout = defaultEmbedTimeout
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{
		api:        &openaiEmbeddingAPI{client: client},
		model:      model,
		dimensions: dimensions,
		timeout:    timeout,
	}
}

func (c *OpenAIClient) Dimensions() int {
	return c.dimensions
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if len(text) > maxInputChars {
		text = text[:maxInputChars]
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateEmbedding(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model:      openai.EmbeddingModel(c.model),
		Dimensions: openai.Int(int64(c.dimensions)),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}

	raw := resp.Data[0].Embedding
	if len(raw) != c.dimensions {
		log.Printf("embedding dimension mismatch: want %d, got %d", c.dimensions, len(raw))
		return nil, fmt.Errorf("embedding dimension mismatch: want %d, got %d", c.dimensions, len(raw))
	}

	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

type openaiEmbeddingAPI struct {
	client openai.Client
}

func (a *openaiEmbeddingAPI) CreateEmbedding(ctx context.Context, params openai.EmbeddingNewParams) (*openai.CreateEmbeddingResponse, error) {
	return a.client.Embeddings.New(ctx, params)
}
