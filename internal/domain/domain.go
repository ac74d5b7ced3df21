package domain

import "time"

// ContentType discriminates the two kinds of text we embed.
type ContentType string

const (
	ContentTypeSocialPost ContentType = "social_post"
	ContentTypeAIReport   ContentType = "ai_report"
)

// ContentRecord is one embedded unit of text. Token is the canonical join key
// (the vendor's display name, e.g. "Bitcoin"); Symbol is kept for rendering only.
type ContentRecord struct {
	ID           int64
	ContentType  ContentType
	ContentID    int64
	Token        string
	Symbol       string
	ContentText  string
	Embedding    []float32
	MetadataJSON string
	CreatedAt    time.Time
}

// SearchResult annotates a ContentRecord with a score for one query.
// Similarity is set on the vector paths, RelevanceScore on the keyword fallback.
type SearchResult struct {
	Record         ContentRecord
	Similarity     float64
	RelevanceScore int
}

// TokenCandidate aggregates search results for one token across seed queries.
type TokenCandidate struct {
	Token        string
	MentionCount int
	Similarities []float64
}

// CombinedScore weights a candidate by both how often it surfaced and how
// relevant it was on average.
func (c TokenCandidate) CombinedScore() float64 {
	if c.MentionCount == 0 || len(c.Similarities) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range c.Similarities {
		sum += s
	}
	return float64(c.MentionCount) * (sum / float64(len(c.Similarities)))
}

type SocialPost struct {
	ID                int64
	Token             string
	Symbol            string
	Title             string
	Sentiment         *float64
	CreatorFollowers  *int64
	Interactions24h   *int64
	InteractionsTotal *int64
	PostLink          string
	IngestedAt        time.Time
}

type AIReport struct {
	ID                        int64
	Token                     string
	Symbol                    string
	InvestmentAnalysisPointer string
	InvestmentAnalysis        string
	DeepDive                  string
	CodeReview                string
	CreatedAt                 time.Time
}

// TradingSignal is the vendor's discretized daily signal: 1 long, -1 short, 0 flat.
type TradingSignal struct {
	ID        int64
	Token     string
	Signal    int
	Trend     string
	CreatedAt time.Time
}

type HourlySignal struct {
	ID         int64
	Token      string
	Timestamp  time.Time
	Signal     string
	Position   string
	ClosePrice float64
}

type Candle struct {
	Token     string
	Interval  string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

const (
	IntervalHourly = "1h"
	IntervalDaily  = "1d"
)

type FundamentalGrade struct {
	ID             int64
	Token          string
	Grade          float64
	GradeClass     string
	CommunityScore *float64
	ExchangeScore  *float64
	CreatedAt      time.Time
}

type ResistanceSupport struct {
	ID         int64
	Token      string
	LevelsJSON string
	CreatedAt  time.Time
}

type TokenMetrics struct {
	ID             int64
	Token          string
	Symbol         string
	Price          float64
	Volume24h      float64
	MarketCap      float64
	PriceChange24h float64
	CreatedAt      time.Time
}

// TokenSnapshot is the cross-source view of one token for one target date.
// Date-scoped collections hold only rows from that UTC calendar day; the
// "latest" pointers are not date-filtered.
type TokenSnapshot struct {
	Token             string
	Date              time.Time
	SocialPosts       []SocialPost
	AIReports         []AIReport
	TradingSignals    []TradingSignal
	HourlySignals     []HourlySignal
	DailyOHLCV        []Candle
	HourlyOHLCV       []Candle
	FundamentalGrade  *FundamentalGrade
	ResistanceSupport *ResistanceSupport
	TokenMetrics      *TokenMetrics
}

type PositionStatus string

const (
	PositionActive    PositionStatus = "active"
	PositionClosed    PositionStatus = "closed"
	PositionCancelled PositionStatus = "cancelled"
)

// Position is a persisted recommendation row in new_positions. Status and
// SizeUSD are mutated later by the portfolio review flow.
type Position struct {
	ID         int64          `json:"id"`
	Symbol     string         `json:"symbol"`
	EntryPrice float64        `json:"entry_price"`
	SizeUSD    float64        `json:"size_usd"`
	StopLoss   float64        `json:"stop_loss"`
	Target1    float64        `json:"target_1"`
	Target2    float64        `json:"target_2"`
	Days       int            `json:"days"`
	Rationale  string         `json:"rationale"`
	Reason     string         `json:"reason,omitempty"`
	Status     PositionStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Recommendation is the assembler's output before persistence. Fallback marks
// the deterministic payload used when the LLM response was unusable.
type Recommendation struct {
	Symbol    string  `json:"symbol"`
	Entry     float64 `json:"entry"`
	SizeUSD   float64 `json:"size_usd"`
	StopLoss  float64 `json:"stop_loss"`
	Target1   float64 `json:"target_1"`
	Target2   float64 `json:"target_2"`
	Days      int     `json:"days"`
	Rationale string  `json:"rationale"`
	Fallback  bool    `json:"-"`
}

// EmbedRunResult reports one embedding pipeline cycle.
type EmbedRunResult struct {
	PostsEmbedded   int
	ReportsEmbedded int
	Skipped         int
	Errors          []string
}

// PipelineRunResult reports one retrieval + recommendation cycle.
type PipelineRunResult struct {
	Token          string
	Recommendation *Recommendation
	PositionID     int64
	Errors         []string
}

// PortfolioRunResult reports one portfolio review cycle.
type PortfolioRunResult struct {
	PositionsReviewed int
	PositionsKept     int
	PositionsClosed   int
	Errors            []string
}
