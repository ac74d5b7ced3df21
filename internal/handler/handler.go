package handler

import (
	"context"

	"coin-scout/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// Searcher runs one semantic query over today's embedded content.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) []domain.SearchResult
}

// EmbedRunner executes one embedding pipeline cycle.
type EmbedRunner interface {
	Run(ctx context.Context) (domain.EmbedRunResult, error)
}

// PipelineRunner executes one retrieval-to-position cycle.
type PipelineRunner interface {
	Run(ctx context.Context) (domain.PipelineRunResult, error)
}

// PortfolioRunner executes one portfolio review cycle.
type PortfolioRunner interface {
	Run(ctx context.Context) (domain.PortfolioRunResult, error)
}

// PositionLister reads open positions.
type PositionLister interface {
	ListActive(ctx context.Context) ([]domain.Position, error)
}

type Handler struct {
	tracer    trace.Tracer
	searcher  Searcher
	embedder  EmbedRunner
	pipeline  PipelineRunner
	portfolio PortfolioRunner
	positions PositionLister
	tokenData TokenDataStore
}

func New(
	tracer trace.Tracer,
	searcher Searcher,
	embedder EmbedRunner,
	pipeline PipelineRunner,
	portfolio PortfolioRunner,
	positions PositionLister,
	tokenData TokenDataStore,
) *Handler {
	return &Handler{
		tracer:    tracer,
		searcher:  searcher,
		embedder:  embedder,
		pipeline:  pipeline,
		portfolio: portfolio,
		positions: positions,
		tokenData: tokenData,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)

	api := r.Group("/api", APIKeyAuth(apiKey))
	api.GET("/search", h.Search)
	api.GET("/positions", h.ListPositions)
	api.POST("/ingest", h.Ingest)
	api.POST("/embed/run", h.TriggerEmbedRun)
	api.POST("/pipeline/run", h.TriggerPipelineRun)
	api.POST("/portfolio/run", h.TriggerPortfolioRun)
}
