package embedding

import (
	"fmt"
	"strings"

	"coin-scout/internal/domain"
)

const fragmentSeparator = " | "

// BuildSocialPostText flattens a social post into one labeled string for
// embedding. Absent fields are skipped rather than rendered empty.
func BuildSocialPostText(post domain.SocialPost) string {
	parts := make([]string, 0, 6)

	if post.Title != "" {
		parts = append(parts, "Title: "+post.Title)
	}
	if post.Sentiment != nil {
		parts = append(parts, fmt.Sprintf("Sentiment: %s (%v)", SentimentLabel(*post.Sentiment), *post.Sentiment))
	}
	if post.CreatorFollowers != nil && *post.CreatorFollowers != 0 {
		parts = append(parts, "Creator Followers: "+groupThousands(*post.CreatorFollowers))
	}
	if post.Interactions24h != nil && *post.Interactions24h != 0 {
		parts = append(parts, "24h Interactions: "+groupThousands(*post.Interactions24h))
	}
	if post.InteractionsTotal != nil && *post.InteractionsTotal != 0 {
		parts = append(parts, "Total Interactions: "+groupThousands(*post.InteractionsTotal))
	}
	if post.Symbol != "" {
		parts = append(parts, "Token: "+post.Symbol)
	}

	return strings.Join(parts, fragmentSeparator)
}

// BuildAIReportText flattens an analyst report into one labeled string.
func BuildAIReportText(report domain.AIReport) string {
	parts := make([]string, 0, 6)

	if report.Symbol != "" {
		parts = append(parts, "Token: "+report.Symbol)
	}
	if report.Token != "" {
		parts = append(parts, "Token Name: "+report.Token)
	}
	if report.InvestmentAnalysisPointer != "" {
		parts = append(parts, "Investment Analysis Pointer: "+report.InvestmentAnalysisPointer)
	}
	if report.InvestmentAnalysis != "" {
		parts = append(parts, "Investment Analysis: "+report.InvestmentAnalysis)
	}
	if report.DeepDive != "" {
		parts = append(parts, "Deep Dive: "+report.DeepDive)
	}
	if report.CodeReview != "" {
		parts = append(parts, "Code Review: "+report.CodeReview)
	}

	return strings.Join(parts, fragmentSeparator)
}

// SentimentLabel maps the vendor's 0-5 sentiment value to a band label.
// The band boundaries replicate the upstream feed's documented behavior,
// including the overlap between "Positive" and "Negative" on [2.0, 2.2]:
// the >= 2.0 check wins there because it is evaluated first.
func SentimentLabel(value float64) string {
	switch {
	case value >= 2.8:
		return "Very Positive"
	case value >= 2.0:
		return "Positive"
	case value <= 2.2:
		return "Negative"
	default:
		return "Very Negative"
	}
}

func groupThousands(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := fmt.Sprintf("%d", v)
	if len(s) <= 3 {
		return sign + s
	}
	var sb strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		sb.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sign + sb.String()
}
