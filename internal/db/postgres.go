package db

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

var Pool *pgxpool.Pool

var (
	newPool = func(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
		return pgxpool.NewWithConfig(ctx, cfg)
	}
	pingPool = func(ctx context.Context, pool *pgxpool.Pool) error {
		return pool.Ping(ctx)
	}
)

// InitPostgres connects the process-wide pool. Every connection registers the
// pgvector codec so embedding columns scan into vector types directly.
func InitPostgres(ctx context.Context) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		log.Fatalf("failed to parse DATABASE_URL: %v", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	Pool, err = newPool(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to create Postgres pool: %v", err)
	}
	if err := pingPool(ctx, Pool); err != nil {
		log.Fatalf("failed to connect to Postgres: %v", err)
	}
	log.Println("Connected to Postgres")
}
