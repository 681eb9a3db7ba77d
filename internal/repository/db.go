// Package repository holds the Postgres catalog of uploaded media and the
// processed-video result stores.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

type DB struct {
	*sql.DB
}

// Open connects to Postgres using a libpq DSN or URL.
func Open(ctx context.Context, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{db}, nil
}

// Migrate creates the tables this service reads and writes. Upload tables
// are owned by the upload flow and only created here for local setups.
func (db *DB) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS video_uploads (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		file_name TEXT NOT NULL,
		storage_path TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_video_uploads_user ON video_uploads(user_id);

	CREATE TABLE IF NOT EXISTS ad_uploads (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		file_name TEXT NOT NULL,
		storage_path TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_ad_uploads_user ON ad_uploads(user_id);

	CREATE TABLE IF NOT EXISTS ad_metadata (
		ad_id TEXT PRIMARY KEY REFERENCES ad_uploads(id) ON DELETE CASCADE,
		categories TEXT[] NOT NULL DEFAULT '{}',
		tone TEXT,
		era_style TEXT,
		energy_level INTEGER,
		duration_seconds DOUBLE PRECISION
	);

	CREATE TABLE IF NOT EXISTS video_analysis (
		video_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		analysis JSONB NOT NULL,
		duration_seconds DOUBLE PRECISION,
		analyzed_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS processed_videos (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		job_id TEXT NOT NULL,
		source_video_id TEXT NOT NULL,
		shader_style TEXT NOT NULL,
		file_name TEXT NOT NULL,
		file_url TEXT NOT NULL,
		storage_path TEXT NOT NULL,
		ad_insertion_points TEXT[] NOT NULL DEFAULT '{}',
		schedule JSONB NOT NULL DEFAULT '[]',
		video_summary TEXT,
		processing_duration_ms BIGINT,
		processed_at TIMESTAMP WITH TIME ZONE NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_processed_videos_user ON processed_videos(user_id, processed_at DESC);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
