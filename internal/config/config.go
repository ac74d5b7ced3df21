package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseURL      string
	RedisURL         string
	TelegramBotToken string
	ServerPort       int
	APIKey           string

	OpenAIAPIKey string
	OpenAIModel  string

	EmbeddingModel      string
	EmbeddingDimensions int
	EmbeddingTimeoutSec int

	TokenMetricsAPIKey string

	TrackedTokens []string
	SeedQueries   []string
	TopKPerQuery  int

	BudgetUSD float64

	EmbedPollSecs     int
	PipelinePollSecs  int
	PortfolioPollSecs int
	MetricsPollSecs   int
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		APIKey:             os.Getenv("API_KEY"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		TokenMetricsAPIKey: os.Getenv("TOKEN_METRICS_API_KEY"),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set, bot will be disabled")
	}
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, embeddings and recommendations will be disabled")
	}
	if cfg.TokenMetricsAPIKey == "" {
		log.Println("Warning: TOKEN_METRICS_API_KEY not set, market data refresh will be disabled")
	}

	cfg.ServerPort = 8080
	if v := strings.TrimSpace(os.Getenv("SERVER_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ServerPort = n
		}
	}

	cfg.OpenAIModel = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}

	cfg.EmbeddingModel = strings.TrimSpace(os.Getenv("EMBEDDING_MODEL"))
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}

	cfg.EmbeddingDimensions = 1536
	if v := strings.TrimSpace(os.Getenv("EMBEDDING_DIMENSIONS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EmbeddingDimensions = n
		}
	}

	cfg.EmbeddingTimeoutSec = 60
	if v := strings.TrimSpace(os.Getenv("EMBEDDING_TIMEOUT_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EmbeddingTimeoutSec = n
		}
	}

	cfg.TrackedTokens = splitList(os.Getenv("TRACKED_TOKENS"))
	if len(cfg.TrackedTokens) == 0 {
		log.Println("Warning: TRACKED_TOKENS not set, embedding pipeline has nothing to process")
	}

	cfg.SeedQueries = splitList(os.Getenv("SEED_QUERIES"))

	cfg.TopKPerQuery = 10
	if v := strings.TrimSpace(os.Getenv("TOP_K_PER_QUERY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TopKPerQuery = n
		}
	}

	cfg.BudgetUSD = 100
	if v := strings.TrimSpace(os.Getenv("BUDGET_USD")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			cfg.BudgetUSD = n
		}
	}

	cfg.EmbedPollSecs = 3600
	if v := strings.TrimSpace(os.Getenv("EMBED_POLL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EmbedPollSecs = n
		}
	}

	cfg.PipelinePollSecs = 21600
	if v := strings.TrimSpace(os.Getenv("PIPELINE_POLL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PipelinePollSecs = n
		}
	}

	cfg.PortfolioPollSecs = 86400
	if v := strings.TrimSpace(os.Getenv("PORTFOLIO_POLL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PortfolioPollSecs = n
		}
	}

	cfg.MetricsPollSecs = 900
	if v := strings.TrimSpace(os.Getenv("METRICS_POLL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MetricsPollSecs = n
		}
	}

	return cfg
}

// splitList parses a comma or semicolon separated env value. Seed queries can
// contain commas, hence the semicolon option.
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	sep := ","
	if strings.Contains(raw, ";") {
		sep = ";"
	}
	parts := strings.Split(raw, sep)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
