package recommend

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

// SnapshotSource is the slice of the persistence layer the assembler reads.
type SnapshotSource interface {
	PostsOn(ctx context.Context, token string, day time.Time) ([]domain.SocialPost, error)
	ReportsOn(ctx context.Context, token string, day time.Time) ([]domain.AIReport, error)
	SignalsOn(ctx context.Context, token string, day time.Time) ([]domain.TradingSignal, error)
	HourlySignalsOn(ctx context.Context, token string, day time.Time) ([]domain.HourlySignal, error)
	CandlesOn(ctx context.Context, token, interval string, day time.Time) ([]domain.Candle, error)
	LatestFundamentalGrade(ctx context.Context, token string) (*domain.FundamentalGrade, error)
	LatestResistanceSupport(ctx context.Context, token string) (*domain.ResistanceSupport, error)
	LatestTokenMetrics(ctx context.Context, token string) (*domain.TokenMetrics, error)
	LatestReportDate(ctx context.Context) (time.Time, bool, error)
}

// Fallback position values used when the model's reply cannot be parsed.
// Deliberately tiny: a $20 placeholder the portfolio review can close out.
const (
	fallbackEntry   = 1.00
	fallbackSizeUSD = 20.0
	fallbackStop    = 0.80
	fallbackTarget1 = 1.20
	fallbackTarget2 = 1.50
	fallbackDays    = 30
)

type llmPositions struct {
	NewPositions []llmPosition `json:"new_positions"`
}

type llmPosition struct {
	Symbol   string  `json:"symbol"`
	Entry    float64 `json:"entry"`
	SizeUSD  float64 `json:"size_usd"`
	StopLoss float64 `json:"stop_loss"`
	Target1  float64 `json:"target_1"`
	Target2  float64 `json:"target_2"`
	Days     int     `json:"days"`
	Rational string  `json:"rationale"`
}

// Assembler builds a token's cross-source snapshot for the target date and
// turns it into a single position recommendation.
type Assembler struct {
	tracer    trace.Tracer
	llm       llm.Client
	source    SnapshotSource
	model     string
	budgetUSD float64
	now       func() time.Time
}

func NewAssembler(tracer trace.Tracer, client llm.Client, source SnapshotSource, model string, budgetUSD float64) *Assembler {
	if budgetUSD <= 0 {
		budgetUSD = 100
	}
	return &Assembler{
		tracer:    tracer,
		llm:       client,
		source:    source,
		model:     model,
		budgetUSD: budgetUSD,
		now:       time.Now,
	}
}

// TargetDate is the UTC day of the newest analyst report, or today when no
// reports exist. Snapshots follow report cadence rather than the wall clock
// so a late-arriving batch is still analyzed against its own day.
func (a *Assembler) TargetDate(ctx context.Context) (time.Time, error) {
	latest, ok, err := a.source.LatestReportDate(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return a.now().UTC().Truncate(24 * time.Hour), nil
	}
	return latest.UTC().Truncate(24 * time.Hour), nil
}

// BuildSnapshot gathers everything known about the token on the given day.
// Section-level read failures are logged and leave that section empty.
func (a *Assembler) BuildSnapshot(ctx context.Context, token string, day time.Time) domain.TokenSnapshot {
	ctx, span := a.tracer.Start(ctx, "recommend.build-snapshot")
	defer span.End()
	span.SetAttributes(
		attribute.String("snapshot.token", token),
		attribute.String("snapshot.date", day.Format("2006-01-02")),
	)

	snapshot := domain.TokenSnapshot{Token: token, Date: day}

	var err error
	if snapshot.SocialPosts, err = a.source.PostsOn(ctx, token, day); err != nil {
		log.Printf("snapshot posts for %s: %v", token, err)
	}
	if snapshot.AIReports, err = a.source.ReportsOn(ctx, token, day); err != nil {
		log.Printf("snapshot reports for %s: %v", token, err)
	}
	if snapshot.TradingSignals, err = a.source.SignalsOn(ctx, token, day); err != nil {
		log.Printf("snapshot signals for %s: %v", token, err)
	}
	if snapshot.HourlySignals, err = a.source.HourlySignalsOn(ctx, token, day); err != nil {
		log.Printf("snapshot hourly signals for %s: %v", token, err)
	}
	if snapshot.DailyOHLCV, err = a.source.CandlesOn(ctx, token, domain.IntervalDaily, day); err != nil {
		log.Printf("snapshot daily candles for %s: %v", token, err)
	}
	if snapshot.HourlyOHLCV, err = a.source.CandlesOn(ctx, token, domain.IntervalHourly, day); err != nil {
		log.Printf("snapshot hourly candles for %s: %v", token, err)
	}
	if snapshot.FundamentalGrade, err = a.source.LatestFundamentalGrade(ctx, token); err != nil {
		log.Printf("snapshot fundamental grade for %s: %v", token, err)
	}
	if snapshot.ResistanceSupport, err = a.source.LatestResistanceSupport(ctx, token); err != nil {
		log.Printf("snapshot resistance/support for %s: %v", token, err)
	}
	if snapshot.TokenMetrics, err = a.source.LatestTokenMetrics(ctx, token); err != nil {
		log.Printf("snapshot token metrics for %s: %v", token, err)
	}

	return snapshot
}

// Recommend produces one position for the token. An unusable model reply
// degrades to the deterministic fallback payload, never an error; only
// snapshot-date resolution can fail.
func (a *Assembler) Recommend(ctx context.Context, token string) (domain.Recommendation, error) {
	ctx, span := a.tracer.Start(ctx, "recommend.recommend")
	defer span.End()
	span.SetAttributes(attribute.String("recommend.token", token))

	day, err := a.TargetDate(ctx)
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("resolving target date: %w", err)
	}

	snapshot := a.BuildSnapshot(ctx, token, day)
	symbol := displaySymbol(snapshot)

	reply, err := a.callLLM(ctx, snapshot)
	if err != nil {
		log.Printf("recommendation LLM call failed for %s: %v", token, err)
		span.RecordError(err)
		return a.fallback(token, symbol), nil
	}

	rec, ok := parseRecommendation(reply)
	if !ok {
		log.Printf("recommendation reply for %s was not parseable, using fallback", token)
		return a.fallback(token, symbol), nil
	}
	if rec.Symbol == "" {
		rec.Symbol = symbol
	}
	return rec, nil
}

func (a *Assembler) callLLM(ctx context.Context, snapshot domain.TokenSnapshot) (string, error) {
	if a.llm == nil {
		return "", fmt.Errorf("LLM client is not configured")
	}

	ctx, span := a.tracer.Start(ctx, "recommend.llm-call")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", a.model))

	completion, err := a.llm.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model: a.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(recommenderPhilosophy),
			openai.UserMessage(BuildRecommendationPrompt(snapshot, a.budgetUSD)),
		},
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}
	return completion.Choices[0].Message.Content, nil
}

// parseRecommendation extracts the first position from the model's JSON
// payload. A payload with zero positions or a blank symbol and zero entry is
// treated as unusable.
func parseRecommendation(reply string) (domain.Recommendation, bool) {
	raw, ok := llm.ExtractJSONObject(reply)
	if !ok {
		return domain.Recommendation{}, false
	}

	var payload llmPositions
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return domain.Recommendation{}, false
	}
	if len(payload.NewPositions) == 0 {
		return domain.Recommendation{}, false
	}

	p := payload.NewPositions[0]
	if p.Symbol == "" && p.Entry == 0 {
		return domain.Recommendation{}, false
	}
	return domain.Recommendation{
		Symbol:    p.Symbol,
		Entry:     p.Entry,
		SizeUSD:   p.SizeUSD,
		StopLoss:  p.StopLoss,
		Target1:   p.Target1,
		Target2:   p.Target2,
		Days:      p.Days,
		Rationale: p.Rational,
	}, true
}

func (a *Assembler) fallback(token, symbol string) domain.Recommendation {
	return domain.Recommendation{
		Symbol:    symbol,
		Entry:     fallbackEntry,
		SizeUSD:   fallbackSizeUSD,
		StopLoss:  fallbackStop,
		Target1:   fallbackTarget1,
		Target2:   fallbackTarget2,
		Days:      fallbackDays,
		Rationale: fmt.Sprintf("Fallback position for %s: recommendation model output was unusable.", token),
		Fallback:  true,
	}
}

// displaySymbol prefers the vendor ticker, falling back to the canonical name.
func displaySymbol(snapshot domain.TokenSnapshot) string {
	if snapshot.TokenMetrics != nil && snapshot.TokenMetrics.Symbol != "" {
		return snapshot.TokenMetrics.Symbol
	}
	for _, post := range snapshot.SocialPosts {
		if post.Symbol != "" {
			return post.Symbol
		}
	}
	for _, report := range snapshot.AIReports {
		if report.Symbol != "" {
			return report.Symbol
		}
	}
	return snapshot.Token
}
