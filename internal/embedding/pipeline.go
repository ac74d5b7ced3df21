package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"coin-scout/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ContentSource yields the raw rows eligible for embedding on a given UTC day.
type ContentSource interface {
	PostsOn(ctx context.Context, token string, day time.Time) ([]domain.SocialPost, error)
	ReportsOn(ctx context.Context, token string, day time.Time) ([]domain.AIReport, error)
}

// RecordStore persists embedded content records.
type RecordStore interface {
	HasRecord(ctx context.Context, contentType domain.ContentType, contentID int64) (bool, error)
	InsertRecord(ctx context.Context, record domain.ContentRecord) (int64, error)
}

// Pipeline embeds the day's fresh social posts and AI reports for a set of
// tokens. Records are created once per source row per day; a pre-existing
// embedding is skipped rather than replaced. The existence check is
// read-then-write, which is fine only because the pipeline runs as a
// single-instance batch job.
type Pipeline struct {
	tracer trace.Tracer
	client Client
	source ContentSource
	store  RecordStore
	tokens []string
	now    func() time.Time
}

func NewPipeline(tracer trace.Tracer, client Client, source ContentSource, store RecordStore, tokens []string) *Pipeline {
	return &Pipeline{
		tracer: tracer,
		client: client,
		source: source,
		store:  store,
		tokens: tokens,
		now:    time.Now,
	}
}

// Run embeds today's content for every configured token. Per-record failures
// are logged and counted, never propagated; only a nil dependency is an error.
func (p *Pipeline) Run(ctx context.Context) (domain.EmbedRunResult, error) {
	ctx, span := p.tracer.Start(ctx, "embedding-pipeline.run")
	defer span.End()

	result := domain.EmbedRunResult{}
	if p.client == nil || p.source == nil || p.store == nil {
		return result, fmt.Errorf("embedding pipeline dependencies are not initialized")
	}

	day := p.now().UTC().Truncate(24 * time.Hour)
	span.SetAttributes(attribute.String("pipeline.day", day.Format("2006-01-02")))

	for _, token := range p.tokens {
		p.embedPosts(ctx, token, day, &result)
		p.embedReports(ctx, token, day, &result)
	}
	return result, nil
}

func (p *Pipeline) embedPosts(ctx context.Context, token string, day time.Time, result *domain.EmbedRunResult) {
	posts, err := p.source.PostsOn(ctx, token, day)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("posts:%s: %v", token, err))
		return
	}

	for _, post := range posts {
		exists, err := p.store.HasRecord(ctx, domain.ContentTypeSocialPost, post.ID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("post_exists:%d: %v", post.ID, err))
			continue
		}
		if exists {
			result.Skipped++
			continue
		}

		text := BuildSocialPostText(post)
		vec := p.embed(ctx, text)
		if vec == nil {
			result.Errors = append(result.Errors, fmt.Sprintf("post_embed:%d: no vector", post.ID))
			continue
		}

		meta, _ := json.Marshal(map[string]any{
			"post_title":         post.Title,
			"post_sentiment":     post.Sentiment,
			"creator_followers":  post.CreatorFollowers,
			"interactions_24h":   post.Interactions24h,
			"interactions_total": post.InteractionsTotal,
			"post_link":          post.PostLink,
			"created_date":       post.IngestedAt.UTC(),
		})
		if _, err := p.store.InsertRecord(ctx, domain.ContentRecord{
			ContentType:  domain.ContentTypeSocialPost,
			ContentID:    post.ID,
			Token:        post.Token,
			Symbol:       post.Symbol,
			ContentText:  text,
			Embedding:    vec,
			MetadataJSON: string(meta),
		}); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("post_store:%d: %v", post.ID, err))
			continue
		}
		result.PostsEmbedded++
	}
}

func (p *Pipeline) embedReports(ctx context.Context, token string, day time.Time, result *domain.EmbedRunResult) {
	reports, err := p.source.ReportsOn(ctx, token, day)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("reports:%s: %v", token, err))
		return
	}

	for _, report := range reports {
		exists, err := p.store.HasRecord(ctx, domain.ContentTypeAIReport, report.ID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("report_exists:%d: %v", report.ID, err))
			continue
		}
		if exists {
			result.Skipped++
			continue
		}

		text := BuildAIReportText(report)
		vec := p.embed(ctx, text)
		if vec == nil {
			result.Errors = append(result.Errors, fmt.Sprintf("report_embed:%d: no vector", report.ID))
			continue
		}

		meta, _ := json.Marshal(map[string]any{
			"token_name":                  report.Token,
			"investment_analysis_pointer": report.InvestmentAnalysisPointer,
			"created_date":                report.CreatedAt.UTC(),
		})
		if _, err := p.store.InsertRecord(ctx, domain.ContentRecord{
			ContentType:  domain.ContentTypeAIReport,
			ContentID:    report.ID,
			Token:        report.Token,
			Symbol:       report.Symbol,
			ContentText:  text,
			Embedding:    vec,
			MetadataJSON: string(meta),
		}); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("report_store:%d: %v", report.ID, err))
			continue
		}
		result.ReportsEmbedded++
	}
}

// embed converts transport failures into a nil vector so a single flaky call
// never aborts the batch.
func (p *Pipeline) embed(ctx context.Context, text string) []float32 {
	vec, err := p.client.Embed(ctx, text)
	if err != nil {
		log.Printf("embedding call failed: %v", err)
		return nil
	}
	return vec
}
