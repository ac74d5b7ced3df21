package portfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"coin-scout/internal/domain"
	"coin-scout/internal/llm"

	"github.com/openai/openai-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MetricsSource supplies current market data for a position's token.
// Position symbols are passed through as-is.
type MetricsSource interface {
	CurrentMetrics(ctx context.Context, token string) (*domain.TokenMetrics, error)
}

// PositionStore lists open positions and applies review decisions.
type PositionStore interface {
	ListActive(ctx context.Context) ([]domain.Position, error)
	UpdateAllocation(ctx context.Context, id int64, sizeUSD float64, status domain.PositionStatus, reason string) error
}

const reviewSystemPrompt = `You are an expert cryptocurrency portfolio manager. Focus on entry price performance and days analysis. Only sell positions that are clearly underperforming and unlikely to reach their targets. Always respond with valid JSON.`

// positionReview is the per-position view shown to the model.
type positionReview struct {
	Symbol           string  `json:"symbol"`
	EntryPrice       float64 `json:"entry_price"`
	CurrentPrice     float64 `json:"current_price"`
	SizeUSD          float64 `json:"size_usd"`
	StopLoss         float64 `json:"stop_loss"`
	Target1          float64 `json:"target_1"`
	Target2          float64 `json:"target_2"`
	PlannedDays      int     `json:"planned_days"`
	DaysHeld         int     `json:"days_held"`
	PnLPercent       float64 `json:"pnl_percent"`
	PnLUSD           float64 `json:"pnl_usd"`
	PerformanceScore int     `json:"performance_score"`
	PriceChange24h   float64 `json:"price_change_24h"`
	Rationale        string  `json:"rationale"`
}

type reviewDecision struct {
	Symbol        string  `json:"symbol"`
	Action        string  `json:"action"`
	AllocationUSD float64 `json:"new_allocation_usd"`
	Reason        string  `json:"reason"`
}

type reviewResponse struct {
	Analysis        string           `json:"analysis"`
	Recommendations []reviewDecision `json:"recommendations"`
}

// Manager reviews active positions against current market data and lets the
// model decide, per position, to keep (possibly resized) or sell.
type Manager struct {
	tracer    trace.Tracer
	llm       llm.Client
	metrics   MetricsSource
	positions PositionStore
	model     string
	budgetUSD float64
	now       func() time.Time
}

func NewManager(tracer trace.Tracer, client llm.Client, metrics MetricsSource, positions PositionStore, model string, budgetUSD float64) *Manager {
	if budgetUSD <= 0 {
		budgetUSD = 100
	}
	return &Manager{
		tracer:    tracer,
		llm:       client,
		metrics:   metrics,
		positions: positions,
		model:     model,
		budgetUSD: budgetUSD,
		now:       time.Now,
	}
}

// Run executes one review cycle. Positions whose market data could not be
// fetched are left untouched; so are positions the model returned no decision
// for.
func (m *Manager) Run(ctx context.Context) (domain.PortfolioRunResult, error) {
	ctx, span := m.tracer.Start(ctx, "portfolio.run")
	defer span.End()

	result := domain.PortfolioRunResult{}
	if m.llm == nil {
		return result, fmt.Errorf("LLM client is not configured")
	}

	positions, err := m.positions.ListActive(ctx)
	if err != nil {
		return result, fmt.Errorf("listing active positions: %w", err)
	}
	if len(positions) == 0 {
		return result, nil
	}
	span.SetAttributes(attribute.Int("portfolio.active", len(positions)))

	reviews, reviewable := m.buildReviews(ctx, positions)
	if len(reviews) == 0 {
		result.Errors = append(result.Errors, "no market data available for any position")
		return result, nil
	}

	decisions, err := m.analyze(ctx, reviews)
	if err != nil {
		return result, fmt.Errorf("portfolio analysis: %w", err)
	}

	bySymbol := make(map[string]reviewDecision, len(decisions))
	for _, decision := range decisions {
		bySymbol[decision.Symbol] = decision
	}

	for _, position := range reviewable {
		decision, ok := bySymbol[position.Symbol]
		if !ok {
			log.Printf("no decision for %s, keeping unchanged", position.Symbol)
			continue
		}
		result.PositionsReviewed++

		switch {
		case decision.Action == "KEEP" && decision.AllocationUSD > 0:
			if err := m.positions.UpdateAllocation(ctx, position.ID, decision.AllocationUSD, domain.PositionActive, decision.Reason); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("updating %s: %v", position.Symbol, err))
				continue
			}
			result.PositionsKept++
		case decision.Action == "SELL":
			reason := "SOLD: " + decision.Reason
			if err := m.positions.UpdateAllocation(ctx, position.ID, 0, domain.PositionClosed, reason); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("closing %s: %v", position.Symbol, err))
				continue
			}
			result.PositionsClosed++
		default:
			log.Printf("unrecognized decision for %s: action=%q allocation=%.2f", position.Symbol, decision.Action, decision.AllocationUSD)
		}
	}

	span.SetAttributes(
		attribute.Int("portfolio.kept", result.PositionsKept),
		attribute.Int("portfolio.closed", result.PositionsClosed),
	)
	return result, nil
}

// buildReviews pairs positions with current market data. The second return
// holds only the positions that made it into the review set, index-aligned.
func (m *Manager) buildReviews(ctx context.Context, positions []domain.Position) ([]positionReview, []domain.Position) {
	ctx, span := m.tracer.Start(ctx, "portfolio.build-reviews")
	defer span.End()

	reviews := make([]positionReview, 0, len(positions))
	reviewable := make([]domain.Position, 0, len(positions))
	for _, position := range positions {
		metrics, err := m.metrics.CurrentMetrics(ctx, position.Symbol)
		if err != nil || metrics == nil {
			log.Printf("no current data for %s, skipping review: %v", position.Symbol, err)
			continue
		}

		pnlPct, pnlUSD := PositionPnL(position, metrics.Price)
		daysHeld := int(m.now().UTC().Sub(position.CreatedAt) / (24 * time.Hour))
		reviews = append(reviews, positionReview{
			Symbol:           position.Symbol,
			EntryPrice:       position.EntryPrice,
			CurrentPrice:     metrics.Price,
			SizeUSD:          position.SizeUSD,
			StopLoss:         position.StopLoss,
			Target1:          position.Target1,
			Target2:          position.Target2,
			PlannedDays:      position.Days,
			DaysHeld:         daysHeld,
			PnLPercent:       pnlPct,
			PnLUSD:           pnlUSD,
			PerformanceScore: PerformanceScore(pnlPct, daysHeld, metrics.PriceChange24h),
			PriceChange24h:   metrics.PriceChange24h,
			Rationale:        position.Rationale,
		})
		reviewable = append(reviewable, position)
	}
	return reviews, reviewable
}

func (m *Manager) analyze(ctx context.Context, reviews []positionReview) ([]reviewDecision, error) {
	ctx, span := m.tracer.Start(ctx, "portfolio.llm-call")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", m.model),
		attribute.Int("portfolio.reviews", len(reviews)),
	)

	completion, err := m.llm.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model: m.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(reviewSystemPrompt),
			openai.UserMessage(buildReviewPrompt(reviews, m.budgetUSD)),
		},
	})
	if err != nil {
		return nil, err
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no choices in LLM response")
	}

	raw, ok := llm.ExtractJSONObject(completion.Choices[0].Message.Content)
	if !ok {
		return nil, fmt.Errorf("review reply contained no JSON object")
	}
	var parsed reviewResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parsing review reply: %w", err)
	}
	if len(parsed.Recommendations) == 0 {
		return nil, fmt.Errorf("review reply contained no recommendations")
	}
	return parsed.Recommendations, nil
}

func buildReviewPrompt(reviews []positionReview, budgetUSD float64) string {
	payload, _ := json.MarshalIndent(reviews, "", "  ")

	totalValue := 0.0
	for _, review := range reviews {
		totalValue += review.SizeUSD
	}

	return fmt.Sprintf(`Total budget: $%.2f USD. Current portfolio value: $%.2f across %d positions.

Positions:
%s

Review each position and decide KEEP or SELL:
- SELL only when the position is clearly underperforming: held well past planned_days, price significantly below entry, or performance_score below 30.
- KEEP otherwise, redistributing the budget among kept positions with more going to the better performers.
- Do not add new positions. total allocations must not exceed the budget.

Respond with JSON only, in exactly this shape:
{"analysis": "...", "recommendations": [{"symbol": "...", "action": "KEEP", "new_allocation_usd": 0.0, "reason": "..."}]}`,
		budgetUSD, totalValue, len(reviews), payload)
}

// PositionPnL returns percent and dollar profit for a position at the given
// price. Zero entry or current price yields zero P&L.
func PositionPnL(position domain.Position, currentPrice float64) (float64, float64) {
	if position.EntryPrice == 0 || currentPrice == 0 {
		return 0, 0
	}
	pct := (currentPrice - position.EntryPrice) / position.EntryPrice * 100
	usd := (currentPrice - position.EntryPrice) * (position.SizeUSD / position.EntryPrice)
	return pct, usd
}

// PerformanceScore condenses a position's health into a 0-100 number the
// model can compare across positions. Starts at 50 and moves with P&L bands,
// stale losers, and 24h momentum.
func PerformanceScore(pnlPct float64, daysHeld int, priceChange24h float64) int {
	score := 50

	switch {
	case pnlPct > 20:
		score += 30
	case pnlPct > 10:
		score += 20
	case pnlPct > 0:
		score += 10
	case pnlPct < -20:
		score -= 30
	case pnlPct < -10:
		score -= 20
	case pnlPct < 0:
		score -= 10
	}

	if daysHeld > 30 && pnlPct < -10 {
		score -= 20
	} else if daysHeld > 60 && pnlPct < -5 {
		score -= 15
	}

	if priceChange24h > 5 {
		score += 10
	} else if priceChange24h < -5 {
		score -= 10
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
