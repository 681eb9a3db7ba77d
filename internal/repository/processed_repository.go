package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/retrocast/api/internal/model"
)

// ProcessedStore persists finished outputs.
type ProcessedStore interface {
	Save(ctx context.Context, v *model.ProcessedVideo) error
	ListByUser(ctx context.Context, userID string, limit int) ([]model.ProcessedVideo, error)
}

const defaultListLimit = 50

// PostgresProcessedStore keeps processed videos in the processed_videos table.
type PostgresProcessedStore struct {
	db *DB
}

var _ ProcessedStore = (*PostgresProcessedStore)(nil)

func NewPostgresProcessedStore(db *DB) *PostgresProcessedStore {
	return &PostgresProcessedStore{db: db}
}

func (s *PostgresProcessedStore) Save(ctx context.Context, v *model.ProcessedVideo) error {
	schedule, err := json.Marshal(nonNilSchedule(v.Schedule))
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO processed_videos (
			id, user_id, job_id, source_video_id, shader_style, file_name, file_url,
			storage_path, ad_insertion_points, schedule, video_summary,
			processing_duration_ms, processed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		v.ID, v.UserID, v.JobID, v.SourceVideoID, string(v.ShaderStyle), v.FileName, v.FileURL,
		v.StoragePath, pq.Array(v.AdInsertionPoints), schedule, v.VideoSummary,
		v.ProcessingDurationMs, v.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("save processed video %s: %w", v.ID, err)
	}
	return nil
}

// ListByUser returns the user's processed videos, newest first.
func (s *PostgresProcessedStore) ListByUser(ctx context.Context, userID string, limit int) ([]model.ProcessedVideo, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, job_id, source_video_id, shader_style, file_name, file_url,
			   storage_path, ad_insertion_points, schedule, video_summary,
			   processing_duration_ms, processed_at
		FROM processed_videos
		WHERE user_id = $1
		ORDER BY processed_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list processed videos: %w", err)
	}
	defer rows.Close()

	videos := []model.ProcessedVideo{}
	for rows.Next() {
		var (
			v        model.ProcessedVideo
			style    string
			schedule []byte
			summary  sql.NullString
			duration sql.NullInt64
		)
		err := rows.Scan(
			&v.ID, &v.UserID, &v.JobID, &v.SourceVideoID, &style, &v.FileName, &v.FileURL,
			&v.StoragePath, pq.Array(&v.AdInsertionPoints), &schedule, &summary,
			&duration, &v.ProcessedAt,
		)
		if err != nil {
			return nil, err
		}
		v.ShaderStyle = model.StyleProfile(style)
		v.VideoSummary = summary.String
		v.ProcessingDurationMs = duration.Int64
		if len(schedule) > 0 {
			if err := json.Unmarshal(schedule, &v.Schedule); err != nil {
				return nil, fmt.Errorf("decode schedule for %s: %w", v.ID, err)
			}
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func nonNilSchedule(items []model.ScheduleItem) []model.ScheduleItem {
	if items == nil {
		return []model.ScheduleItem{}
	}
	return items
}
