package recommend

import (
	"fmt"
	"strings"

	"coin-scout/internal/domain"
)

const recommenderPhilosophy = `You are a disciplined crypto position recommender. You receive one token's full data snapshot for a single trading day and must propose exactly one long position for it.

Rules:
- Ground every number in the snapshot. Never invent prices.
- Size positions conservatively relative to the stated budget.
- Stop loss below entry, both targets above entry, target_2 above target_1.
- Respond with JSON only, no prose, in exactly this shape:
{"new_positions": [{"symbol": "...", "entry": 0.0, "size_usd": 0.0, "stop_loss": 0.0, "target_1": 0.0, "target_2": 0.0, "days": 0, "rationale": "..."}]}`

// BuildRecommendationPrompt renders the user message: budget first, then the
// formatted snapshot.
func BuildRecommendationPrompt(snapshot domain.TokenSnapshot, budgetUSD float64) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Budget: $%.2f USD.\n", budgetUSD))
	sb.WriteString(fmt.Sprintf("Propose one position for %s based on this %s snapshot.\n\n",
		snapshot.Token, snapshot.Date.Format("2006-01-02")))
	sb.WriteString(FormatSnapshot(snapshot))
	return sb.String()
}

// FormatSnapshot flattens a token snapshot into the sectioned plain text the
// model sees. Empty sections are omitted.
func FormatSnapshot(s domain.TokenSnapshot) string {
	var sb strings.Builder

	if s.TokenMetrics != nil {
		m := s.TokenMetrics
		sb.WriteString(fmt.Sprintf("Market: %s (%s) price=$%.6f vol24h=$%.0f mcap=$%.0f change24h=%+.2f%%\n",
			m.Token, m.Symbol, m.Price, m.Volume24h, m.MarketCap, m.PriceChange24h))
	}

	if s.FundamentalGrade != nil {
		g := s.FundamentalGrade
		sb.WriteString(fmt.Sprintf("Fundamental Grade: %.1f (%s)", g.Grade, g.GradeClass))
		if g.CommunityScore != nil {
			sb.WriteString(fmt.Sprintf(" community=%.1f", *g.CommunityScore))
		}
		if g.ExchangeScore != nil {
			sb.WriteString(fmt.Sprintf(" exchange=%.1f", *g.ExchangeScore))
		}
		sb.WriteString("\n")
	}

	if s.ResistanceSupport != nil {
		sb.WriteString("Resistance/Support Levels: " + s.ResistanceSupport.LevelsJSON + "\n")
	}

	if len(s.SocialPosts) > 0 {
		mean, total := PostStats(s.SocialPosts)
		sb.WriteString(fmt.Sprintf("\nSocial: %d posts, mean sentiment %.2f, total interactions %d\n",
			len(s.SocialPosts), mean, total))
		for _, post := range s.SocialPosts {
			sb.WriteString("  - " + post.Title)
			if post.Sentiment != nil {
				sb.WriteString(fmt.Sprintf(" (sentiment %.2f)", *post.Sentiment))
			}
			sb.WriteString("\n")
		}
	}

	if len(s.AIReports) > 0 {
		sb.WriteString(fmt.Sprintf("\nAnalyst Reports: %d\n", len(s.AIReports)))
		for _, report := range s.AIReports {
			if report.InvestmentAnalysisPointer != "" {
				sb.WriteString("  - " + report.InvestmentAnalysisPointer + "\n")
			}
			if report.InvestmentAnalysis != "" {
				sb.WriteString("    " + report.InvestmentAnalysis + "\n")
			}
		}
	}

	if len(s.TradingSignals) > 0 {
		sb.WriteString("\nDaily Signals:\n")
		for _, sig := range s.TradingSignals {
			sb.WriteString(fmt.Sprintf("  - signal=%d trend=%s at %s\n",
				sig.Signal, sig.Trend, sig.CreatedAt.Format("2006-01-02 15:04")))
		}
	}

	if len(s.HourlySignals) > 0 {
		last := s.HourlySignals[len(s.HourlySignals)-1]
		sb.WriteString(fmt.Sprintf("\nHourly Signals: %d rows, latest %s position=%s close=$%.6f at %s\n",
			len(s.HourlySignals), last.Signal, last.Position, last.ClosePrice, last.Timestamp.Format("15:04")))
	}

	if len(s.DailyOHLCV) > 0 {
		sb.WriteString("\nDaily OHLCV:\n")
		for _, c := range s.DailyOHLCV {
			sb.WriteString(fmt.Sprintf("  - o=%.6f h=%.6f l=%.6f c=%.6f v=%.0f\n",
				c.Open, c.High, c.Low, c.Close, c.Volume))
		}
	}

	if len(s.HourlyOHLCV) > 0 {
		first := s.HourlyOHLCV[0]
		last := s.HourlyOHLCV[len(s.HourlyOHLCV)-1]
		sb.WriteString(fmt.Sprintf("\nHourly OHLCV: %d candles, open=%.6f latest close=%.6f\n",
			len(s.HourlyOHLCV), first.Open, last.Close))
	}

	if sb.Len() == 0 {
		return "No data available for this token on this date."
	}
	return sb.String()
}

// PostStats returns the mean sentiment over posts that carry one and the sum
// of total interactions.
func PostStats(posts []domain.SocialPost) (float64, int64) {
	sum := 0.0
	counted := 0
	var interactions int64
	for _, post := range posts {
		if post.Sentiment != nil {
			sum += *post.Sentiment
			counted++
		}
		if post.InteractionsTotal != nil {
			interactions += *post.InteractionsTotal
		}
	}
	mean := 0.0
	if counted > 0 {
		mean = sum / float64(counted)
	}
	return mean, interactions
}

