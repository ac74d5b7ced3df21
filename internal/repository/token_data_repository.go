package repository

import (
	"context"
	"errors"
	"time"

	"coin-scout/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
)

// TokenDataRepository persists vendor market data: social posts, analyst
// reports, signals, candles, and token-level gradings. Ingestion upserts are
// batched; reads are date-scoped to a half-open UTC day except the Latest*
// lookups, which span all history.
type TokenDataRepository struct {
	pool   pool
	tracer trace.Tracer
}

func NewTokenDataRepository(pool pool, tracer trace.Tracer) *TokenDataRepository {
	return &TokenDataRepository{pool: pool, tracer: tracer}
}

// UpsertPosts writes social posts keyed by post_link, refreshing the mutable
// engagement counters on conflict. Returns how many rows were written.
func (r *TokenDataRepository) UpsertPosts(ctx context.Context, posts []domain.SocialPost) (int, error) {
	_, span := r.tracer.Start(ctx, "token-data-repo.upsert-posts")
	defer span.End()

	if len(posts) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, post := range posts {
		batch.Queue(`
INSERT INTO posts (token_name, token_symbol, post_title, post_sentiment, creator_followers, interactions_24h, interactions_total, post_link, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (post_link) DO UPDATE SET
    post_sentiment = EXCLUDED.post_sentiment,
    creator_followers = EXCLUDED.creator_followers,
    interactions_24h = EXCLUDED.interactions_24h,
    interactions_total = EXCLUDED.interactions_total
RETURNING id`,
			post.Token,
			post.Symbol,
			post.Title,
			nullFloat(post.Sentiment),
			nullInt64(post.CreatorFollowers),
			nullInt64(post.Interactions24h),
			nullInt64(post.InteractionsTotal),
			post.PostLink,
			post.IngestedAt.UTC(),
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	written := 0
	for range posts {
		var id int64
		if err := results.QueryRow().Scan(&id); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// UpsertReports writes analyst reports keyed by (token_name, created_at).
func (r *TokenDataRepository) UpsertReports(ctx context.Context, reports []domain.AIReport) (int, error) {
	_, span := r.tracer.Start(ctx, "token-data-repo.upsert-reports")
	defer span.End()

	if len(reports) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, report := range reports {
		batch.Queue(`
INSERT INTO ai_reports (token_name, token_symbol, investment_analysis_pointer, investment_analysis, deep_dive, code_review, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (token_name, created_at) DO UPDATE SET
    investment_analysis_pointer = EXCLUDED.investment_analysis_pointer,
    investment_analysis = EXCLUDED.investment_analysis,
    deep_dive = EXCLUDED.deep_dive,
    code_review = EXCLUDED.code_review
RETURNING id`,
			report.Token,
			report.Symbol,
			report.InvestmentAnalysisPointer,
			report.InvestmentAnalysis,
			report.DeepDive,
			report.CodeReview,
			report.CreatedAt.UTC(),
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	written := 0
	for range reports {
		var id int64
		if err := results.QueryRow().Scan(&id); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func (r *TokenDataRepository) UpsertSignals(ctx context.Context, signals []domain.TradingSignal) (int, error) {
	_, span := r.tracer.Start(ctx, "token-data-repo.upsert-signals")
	defer span.End()

	if len(signals) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, signal := range signals {
		batch.Queue(`
INSERT INTO trading_signals (token_name, signal, trend, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (token_name, created_at) DO UPDATE SET
    signal = EXCLUDED.signal,
    trend = EXCLUDED.trend
RETURNING id`,
			signal.Token,
			signal.Signal,
			signal.Trend,
			signal.CreatedAt.UTC(),
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	written := 0
	for range signals {
		var id int64
		if err := results.QueryRow().Scan(&id); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func (r *TokenDataRepository) UpsertHourlySignals(ctx context.Context, signals []domain.HourlySignal) (int, error) {
	_, span := r.tracer.Start(ctx, "token-data-repo.upsert-hourly-signals")
	defer span.End()

	if len(signals) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, signal := range signals {
		batch.Queue(`
INSERT INTO hourly_trading_signals (token_name, ts, signal, position, close_price)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (token_name, ts) DO UPDATE SET
    signal = EXCLUDED.signal,
    position = EXCLUDED.position,
    close_price = EXCLUDED.close_price
RETURNING id`,
			signal.Token,
			signal.Timestamp.UTC(),
			signal.Signal,
			signal.Position,
			signal.ClosePrice,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	written := 0
	for range signals {
		var id int64
		if err := results.QueryRow().Scan(&id); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// UpsertCandles writes OHLCV rows keyed by (token_name, interval, ts).
func (r *TokenDataRepository) UpsertCandles(ctx context.Context, candles []domain.Candle) (int, error) {
	_, span := r.tracer.Start(ctx, "token-data-repo.upsert-candles")
	defer span.End()

	if len(candles) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, candle := range candles {
		batch.Queue(`
INSERT INTO token_candles (token_name, interval, ts, open, high, low, close, volume)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (token_name, interval, ts) DO UPDATE SET
    open = EXCLUDED.open,
    high = EXCLUDED.high,
    low = EXCLUDED.low,
    close = EXCLUDED.close,
    volume = EXCLUDED.volume`,
			candle.Token,
			candle.Interval,
			candle.Timestamp.UTC(),
			candle.Open,
			candle.High,
			candle.Low,
			candle.Close,
			candle.Volume,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	written := 0
	for range candles {
		if _, err := results.Exec(); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func (r *TokenDataRepository) InsertFundamentalGrade(ctx context.Context, grade domain.FundamentalGrade) (int64, error) {
	_, span := r.tracer.Start(ctx, "token-data-repo.insert-fundamental-grade")
	defer span.End()

	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO fundamental_grades (token_name, grade, grade_class, community_score, exchange_score, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`,
		grade.Token,
		grade.Grade,
		grade.GradeClass,
		nullFloat(grade.CommunityScore),
		nullFloat(grade.ExchangeScore),
		timestampOrNow(grade.CreatedAt),
	).Scan(&id)
	return id, err
}

func (r *TokenDataRepository) InsertResistanceSupport(ctx context.Context, levels domain.ResistanceSupport) (int64, error) {
	_, span := r.tracer.Start(ctx, "token-data-repo.insert-resistance-support")
	defer span.End()

	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO resistance_support (token_name, levels_json, created_at)
VALUES ($1, $2, $3)
RETURNING id`,
		levels.Token,
		ensureJSON(levels.LevelsJSON),
		timestampOrNow(levels.CreatedAt),
	).Scan(&id)
	return id, err
}

func (r *TokenDataRepository) InsertTokenMetrics(ctx context.Context, metrics domain.TokenMetrics) (int64, error) {
	_, span := r.tracer.Start(ctx, "token-data-repo.insert-token-metrics")
	defer span.End()

	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO tokens (token_name, token_symbol, price, volume_24h, market_cap, price_change_24h, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
		metrics.Token,
		metrics.Symbol,
		metrics.Price,
		metrics.Volume24h,
		metrics.MarketCap,
		metrics.PriceChange24h,
		timestampOrNow(metrics.CreatedAt),
	).Scan(&id)
	return id, err
}

// PostsOn returns a token's social posts created inside the UTC day.
func (r *TokenDataRepository) PostsOn(ctx context.Context, token string, day time.Time) ([]domain.SocialPost, error) {
	_, span := r.tracer.Start(ctx, "token-data-repo.posts-on")
	defer span.End()

	start, end := dayBounds(day)
	rows, err := r.pool.Query(ctx, `
SELECT id, token_name, token_symbol, post_title, post_sentiment, creator_followers, interactions_24h, interactions_total, post_link, created_at
FROM posts
WHERE token_name = $1 AND created_at >= $2 AND created_at < $3
ORDER BY id`, token, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SocialPost
	for rows.Next() {
		var post domain.SocialPost
		var sentiment pgtype.Float8
		var followers, interactions24h, interactionsTotal pgtype.Int8
		if err := rows.Scan(
			&post.ID,
			&post.Token,
			&post.Symbol,
			&post.Title,
			&sentiment,
			&followers,
			&interactions24h,
			&interactionsTotal,
			&post.PostLink,
			&post.IngestedAt,
		); err != nil {
			return nil, err
		}
		if sentiment.Valid {
			v := sentiment.Float64
			post.Sentiment = &v
		}
		if followers.Valid {
			v := followers.Int64
			post.CreatorFollowers = &v
		}
		if interactions24h.Valid {
			v := interactions24h.Int64
			post.Interactions24h = &v
		}
		if interactionsTotal.Valid {
			v := interactionsTotal.Int64
			post.InteractionsTotal = &v
		}
		post.IngestedAt = post.IngestedAt.UTC()
		out = append(out, post)
	}
	return out, rows.Err()
}

// ReportsOn returns a token's analyst reports created inside the UTC day.
func (r *TokenDataRepository) ReportsOn(ctx context.Context, token string, day time.Time) ([]domain.AIReport, error) {
	_, span := r.tracer.Start(ctx, "token-data-repo.reports-on")
	defer span.End()

	start, end := dayBounds(day)
	rows, err := r.pool.Query(ctx, `
SELECT id, token_name, token_symbol, investment_analysis_pointer, investment_analysis, deep_dive, code_review, created_at
FROM ai_reports
WHERE token_name = $1 AND created_at >= $2 AND created_at < $3
ORDER BY id`, token, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AIReport
	for rows.Next() {
		var report domain.AIReport
		var pointer, analysis, deepDive, codeReview pgtype.Text
		if err := rows.Scan(
			&report.ID,
			&report.Token,
			&report.Symbol,
			&pointer,
			&analysis,
			&deepDive,
			&codeReview,
			&report.CreatedAt,
		); err != nil {
			return nil, err
		}
		report.InvestmentAnalysisPointer = pointer.String
		report.InvestmentAnalysis = analysis.String
		report.DeepDive = deepDive.String
		report.CodeReview = codeReview.String
		report.CreatedAt = report.CreatedAt.UTC()
		out = append(out, report)
	}
	return out, rows.Err()
}

func (r *TokenDataRepository) SignalsOn(ctx context.Context, token string, day time.Time) ([]domain.TradingSignal, error) {
	_, span := r.tracer.Start(ctx, "token-data-repo.signals-on")
	defer span.End()

	start, end := dayBounds(day)
	rows, err := r.pool.Query(ctx, `
SELECT id, token_name, signal, trend, created_at
FROM trading_signals
WHERE token_name = $1 AND created_at >= $2 AND created_at < $3
ORDER BY id`, token, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TradingSignal
	for rows.Next() {
		var signal domain.TradingSignal
		var trend pgtype.Text
		if err := rows.Scan(&signal.ID, &signal.Token, &signal.Signal, &trend, &signal.CreatedAt); err != nil {
			return nil, err
		}
		signal.Trend = trend.String
		signal.CreatedAt = signal.CreatedAt.UTC()
		out = append(out, signal)
	}
	return out, rows.Err()
}

func (r *TokenDataRepository) HourlySignalsOn(ctx context.Context, token string, day time.Time) ([]domain.HourlySignal, error) {
	_, span := r.tracer.Start(ctx, "token-data-repo.hourly-signals-on")
	defer span.End()

	start, end := dayBounds(day)
	rows, err := r.pool.Query(ctx, `
SELECT id, token_name, ts, signal, position, close_price
FROM hourly_trading_signals
WHERE token_name = $1 AND ts >= $2 AND ts < $3
ORDER BY ts`, token, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.HourlySignal
	for rows.Next() {
		var signal domain.HourlySignal
		var position pgtype.Text
		var closePrice pgtype.Float8
		if err := rows.Scan(&signal.ID, &signal.Token, &signal.Timestamp, &signal.Signal, &position, &closePrice); err != nil {
			return nil, err
		}
		signal.Position = position.String
		signal.ClosePrice = closePrice.Float64
		signal.Timestamp = signal.Timestamp.UTC()
		out = append(out, signal)
	}
	return out, rows.Err()
}

func (r *TokenDataRepository) CandlesOn(ctx context.Context, token, interval string, day time.Time) ([]domain.Candle, error) {
	_, span := r.tracer.Start(ctx, "token-data-repo.candles-on")
	defer span.End()

	start, end := dayBounds(day)
	rows, err := r.pool.Query(ctx, `
SELECT token_name, interval, ts, open, high, low, close, volume
FROM token_candles
WHERE token_name = $1 AND interval = $2 AND ts >= $3 AND ts < $4
ORDER BY ts`, token, interval, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Candle
	for rows.Next() {
		var candle domain.Candle
		if err := rows.Scan(
			&candle.Token,
			&candle.Interval,
			&candle.Timestamp,
			&candle.Open,
			&candle.High,
			&candle.Low,
			&candle.Close,
			&candle.Volume,
		); err != nil {
			return nil, err
		}
		candle.Timestamp = candle.Timestamp.UTC()
		out = append(out, candle)
	}
	return out, rows.Err()
}

// LatestFundamentalGrade returns the newest grade regardless of date, or nil
// when the token has none.
func (r *TokenDataRepository) LatestFundamentalGrade(ctx context.Context, token string) (*domain.FundamentalGrade, error) {
	_, span := r.tracer.Start(ctx, "token-data-repo.latest-fundamental-grade")
	defer span.End()

	var grade domain.FundamentalGrade
	var community, exchange pgtype.Float8
	err := r.pool.QueryRow(ctx, `
SELECT id, token_name, grade, grade_class, community_score, exchange_score, created_at
FROM fundamental_grades
WHERE token_name = $1
ORDER BY created_at DESC
LIMIT 1`, token).Scan(&grade.ID, &grade.Token, &grade.Grade, &grade.GradeClass, &community, &exchange, &grade.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if community.Valid {
		v := community.Float64
		grade.CommunityScore = &v
	}
	if exchange.Valid {
		v := exchange.Float64
		grade.ExchangeScore = &v
	}
	grade.CreatedAt = grade.CreatedAt.UTC()
	return &grade, nil
}

func (r *TokenDataRepository) LatestResistanceSupport(ctx context.Context, token string) (*domain.ResistanceSupport, error) {
	_, span := r.tracer.Start(ctx, "token-data-repo.latest-resistance-support")
	defer span.End()

	var levels domain.ResistanceSupport
	err := r.pool.QueryRow(ctx, `
SELECT id, token_name, levels_json, created_at
FROM resistance_support
WHERE token_name = $1
ORDER BY created_at DESC
LIMIT 1`, token).Scan(&levels.ID, &levels.Token, &levels.LevelsJSON, &levels.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	levels.CreatedAt = levels.CreatedAt.UTC()
	return &levels, nil
}

func (r *TokenDataRepository) LatestTokenMetrics(ctx context.Context, token string) (*domain.TokenMetrics, error) {
	_, span := r.tracer.Start(ctx, "token-data-repo.latest-token-metrics")
	defer span.End()

	var metrics domain.TokenMetrics
	err := r.pool.QueryRow(ctx, `
SELECT id, token_name, token_symbol, price, volume_24h, market_cap, price_change_24h, created_at
FROM tokens
WHERE token_name = $1
ORDER BY created_at DESC
LIMIT 1`, token).Scan(
		&metrics.ID,
		&metrics.Token,
		&metrics.Symbol,
		&metrics.Price,
		&metrics.Volume24h,
		&metrics.MarketCap,
		&metrics.PriceChange24h,
		&metrics.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	metrics.CreatedAt = metrics.CreatedAt.UTC()
	return &metrics, nil
}

// LatestReportDate returns the created_at of the newest analyst report across
// all tokens. The second return is false when no reports exist.
func (r *TokenDataRepository) LatestReportDate(ctx context.Context) (time.Time, bool, error) {
	_, span := r.tracer.Start(ctx, "token-data-repo.latest-report-date")
	defer span.End()

	var ts time.Time
	err := r.pool.QueryRow(ctx, `
SELECT created_at FROM ai_reports ORDER BY created_at DESC LIMIT 1`).Scan(&ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return ts.UTC(), true, nil
}

func timestampOrNow(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now().UTC()
	}
	return ts.UTC()
}
