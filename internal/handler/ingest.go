package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"coin-scout/internal/domain"

	"github.com/gin-gonic/gin"
)

// TokenDataStore persists vendor market data delivered by external collectors.
type TokenDataStore interface {
	UpsertPosts(ctx context.Context, posts []domain.SocialPost) (int, error)
	UpsertReports(ctx context.Context, reports []domain.AIReport) (int, error)
	UpsertSignals(ctx context.Context, signals []domain.TradingSignal) (int, error)
	UpsertHourlySignals(ctx context.Context, signals []domain.HourlySignal) (int, error)
	UpsertCandles(ctx context.Context, candles []domain.Candle) (int, error)
	InsertFundamentalGrade(ctx context.Context, grade domain.FundamentalGrade) (int64, error)
	InsertResistanceSupport(ctx context.Context, levels domain.ResistanceSupport) (int64, error)
}

type ingestPost struct {
	Token             string    `json:"token_name" binding:"required"`
	Symbol            string    `json:"token_symbol"`
	Title             string    `json:"post_title"`
	Sentiment         *float64  `json:"post_sentiment"`
	CreatorFollowers  *int64    `json:"creator_followers"`
	Interactions24h   *int64    `json:"interactions_24h"`
	InteractionsTotal *int64    `json:"interactions_total"`
	PostLink          string    `json:"post_link" binding:"required"`
	CreatedAt         time.Time `json:"created_at"`
}

type ingestReport struct {
	Token                     string    `json:"token_name" binding:"required"`
	Symbol                    string    `json:"token_symbol"`
	InvestmentAnalysisPointer string    `json:"investment_analysis_pointer"`
	InvestmentAnalysis        string    `json:"investment_analysis"`
	DeepDive                  string    `json:"deep_dive"`
	CodeReview                string    `json:"code_review"`
	CreatedAt                 time.Time `json:"created_at"`
}

type ingestSignal struct {
	Token     string    `json:"token_name" binding:"required"`
	Signal    int       `json:"signal"`
	Trend     string    `json:"trend"`
	CreatedAt time.Time `json:"created_at"`
}

type ingestHourlySignal struct {
	Token      string    `json:"token_name" binding:"required"`
	Timestamp  time.Time `json:"ts"`
	Signal     string    `json:"signal"`
	Position   string    `json:"position"`
	ClosePrice float64   `json:"close_price"`
}

type ingestCandle struct {
	Token     string    `json:"token_name" binding:"required"`
	Interval  string    `json:"interval" binding:"required"`
	Timestamp time.Time `json:"ts"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

type ingestGrade struct {
	Token          string    `json:"token_name" binding:"required"`
	Grade          float64   `json:"grade"`
	GradeClass     string    `json:"grade_class"`
	CommunityScore *float64  `json:"community_score"`
	ExchangeScore  *float64  `json:"exchange_score"`
	CreatedAt      time.Time `json:"created_at"`
}

type ingestLevels struct {
	Token      string    `json:"token_name" binding:"required"`
	LevelsJSON string    `json:"levels_json"`
	CreatedAt  time.Time `json:"created_at"`
}

type ingestRequest struct {
	Posts             []ingestPost         `json:"posts"`
	Reports           []ingestReport       `json:"reports"`
	Signals           []ingestSignal       `json:"signals"`
	HourlySignals     []ingestHourlySignal `json:"hourly_signals"`
	Candles           []ingestCandle       `json:"candles"`
	FundamentalGrades []ingestGrade        `json:"fundamental_grades"`
	ResistanceSupport []ingestLevels       `json:"resistance_support"`
}

// Ingest accepts a batch document from an external collector and upserts each
// section. Sections are independent: a failing section is reported in errors
// while the rest still land.
func (h *Handler) Ingest(c *gin.Context) {
	if h.tokenData == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "token data store unavailable"})
		return
	}

	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.ingest")
	defer span.End()

	counts := gin.H{}
	var errs []string

	if len(req.Posts) > 0 {
		posts := make([]domain.SocialPost, 0, len(req.Posts))
		for _, p := range req.Posts {
			posts = append(posts, domain.SocialPost{
				Token:             p.Token,
				Symbol:            p.Symbol,
				Title:             p.Title,
				Sentiment:         p.Sentiment,
				CreatorFollowers:  p.CreatorFollowers,
				Interactions24h:   p.Interactions24h,
				InteractionsTotal: p.InteractionsTotal,
				PostLink:          p.PostLink,
				IngestedAt:        timestampOrNow(p.CreatedAt),
			})
		}
		n, err := h.tokenData.UpsertPosts(ctx, posts)
		counts["posts"] = n
		if err != nil {
			errs = append(errs, fmt.Sprintf("posts: %v", err))
		}
	}

	if len(req.Reports) > 0 {
		reports := make([]domain.AIReport, 0, len(req.Reports))
		for _, r := range req.Reports {
			reports = append(reports, domain.AIReport{
				Token:                     r.Token,
				Symbol:                    r.Symbol,
				InvestmentAnalysisPointer: r.InvestmentAnalysisPointer,
				InvestmentAnalysis:        r.InvestmentAnalysis,
				DeepDive:                  r.DeepDive,
				CodeReview:                r.CodeReview,
				CreatedAt:                 timestampOrNow(r.CreatedAt),
			})
		}
		n, err := h.tokenData.UpsertReports(ctx, reports)
		counts["reports"] = n
		if err != nil {
			errs = append(errs, fmt.Sprintf("reports: %v", err))
		}
	}

	if len(req.Signals) > 0 {
		signals := make([]domain.TradingSignal, 0, len(req.Signals))
		for _, s := range req.Signals {
			signals = append(signals, domain.TradingSignal{
				Token:     s.Token,
				Signal:    s.Signal,
				Trend:     s.Trend,
				CreatedAt: timestampOrNow(s.CreatedAt),
			})
		}
		n, err := h.tokenData.UpsertSignals(ctx, signals)
		counts["signals"] = n
		if err != nil {
			errs = append(errs, fmt.Sprintf("signals: %v", err))
		}
	}

	if len(req.HourlySignals) > 0 {
		signals := make([]domain.HourlySignal, 0, len(req.HourlySignals))
		for _, s := range req.HourlySignals {
			signals = append(signals, domain.HourlySignal{
				Token:      s.Token,
				Timestamp:  timestampOrNow(s.Timestamp),
				Signal:     s.Signal,
				Position:   s.Position,
				ClosePrice: s.ClosePrice,
			})
		}
		n, err := h.tokenData.UpsertHourlySignals(ctx, signals)
		counts["hourly_signals"] = n
		if err != nil {
			errs = append(errs, fmt.Sprintf("hourly_signals: %v", err))
		}
	}

	if len(req.Candles) > 0 {
		candles := make([]domain.Candle, 0, len(req.Candles))
		for _, cd := range req.Candles {
			candles = append(candles, domain.Candle{
				Token:     cd.Token,
				Interval:  cd.Interval,
				Timestamp: timestampOrNow(cd.Timestamp),
				Open:      cd.Open,
				High:      cd.High,
				Low:       cd.Low,
				Close:     cd.Close,
				Volume:    cd.Volume,
			})
		}
		n, err := h.tokenData.UpsertCandles(ctx, candles)
		counts["candles"] = n
		if err != nil {
			errs = append(errs, fmt.Sprintf("candles: %v", err))
		}
	}

	if len(req.FundamentalGrades) > 0 {
		written := 0
		for _, g := range req.FundamentalGrades {
			if _, err := h.tokenData.InsertFundamentalGrade(ctx, domain.FundamentalGrade{
				Token:          g.Token,
				Grade:          g.Grade,
				GradeClass:     g.GradeClass,
				CommunityScore: g.CommunityScore,
				ExchangeScore:  g.ExchangeScore,
				CreatedAt:      g.CreatedAt,
			}); err != nil {
				errs = append(errs, fmt.Sprintf("fundamental_grades: %v", err))
				continue
			}
			written++
		}
		counts["fundamental_grades"] = written
	}

	if len(req.ResistanceSupport) > 0 {
		written := 0
		for _, l := range req.ResistanceSupport {
			if _, err := h.tokenData.InsertResistanceSupport(ctx, domain.ResistanceSupport{
				Token:      l.Token,
				LevelsJSON: l.LevelsJSON,
				CreatedAt:  l.CreatedAt,
			}); err != nil {
				errs = append(errs, fmt.Sprintf("resistance_support: %v", err))
				continue
			}
			written++
		}
		counts["resistance_support"] = written
	}

	status := http.StatusOK
	if len(errs) > 0 {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"written": counts, "errors": errs})
}

func timestampOrNow(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now().UTC()
	}
	return ts.UTC()
}
