package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/retrocast/api/internal/model"
)

// CatalogRepository resolves uploaded videos, ads and cached analyses.
// Every lookup is scoped to the owning user.
type CatalogRepository struct {
	db *DB
}

func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) GetVideo(ctx context.Context, userID, videoID string) (*model.SourceVideo, error) {
	var v model.SourceVideo
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, file_name, storage_path
		FROM video_uploads
		WHERE id = $1 AND user_id = $2
	`, videoID, userID).Scan(&v.ID, &v.UserID, &v.FileName, &v.StoragePath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get video %s: %w", videoID, err)
	}
	return &v, nil
}

// GetAds returns the ads among adIDs owned by userID, in adIDs order.
// Missing or foreign ids are omitted.
func (r *CatalogRepository) GetAds(ctx context.Context, userID string, adIDs []string) ([]model.AdAsset, error) {
	if len(adIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, file_name, storage_path
		FROM ad_uploads
		WHERE user_id = $1 AND id = ANY($2)
	`, userID, pq.Array(adIDs))
	if err != nil {
		return nil, fmt.Errorf("get ads: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]model.AdAsset, len(adIDs))
	for rows.Next() {
		var a model.AdAsset
		if err := rows.Scan(&a.ID, &a.UserID, &a.FileName, &a.StoragePath); err != nil {
			return nil, err
		}
		byID[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ads := make([]model.AdAsset, 0, len(byID))
	for _, id := range adIDs {
		if a, ok := byID[id]; ok {
			ads = append(ads, a)
			delete(byID, id)
		}
	}
	return ads, nil
}

// GetAdCandidates returns matching snapshots for the owned ads that have
// metadata, in adIDs order.
func (r *CatalogRepository) GetAdCandidates(ctx context.Context, userID string, adIDs []string) ([]model.AdCandidate, error) {
	if len(adIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.ad_id, m.categories, m.tone, m.era_style, m.energy_level, m.duration_seconds
		FROM ad_metadata m
		JOIN ad_uploads a ON a.id = m.ad_id
		WHERE a.user_id = $1 AND m.ad_id = ANY($2)
	`, userID, pq.Array(adIDs))
	if err != nil {
		return nil, fmt.Errorf("get ad metadata: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]model.AdCandidate, len(adIDs))
	for rows.Next() {
		var (
			c        model.AdCandidate
			tone     sql.NullString
			era      sql.NullString
			energy   sql.NullInt32
			duration sql.NullFloat64
		)
		if err := rows.Scan(&c.ID, pq.Array(&c.Categories), &tone, &era, &energy, &duration); err != nil {
			return nil, err
		}
		c.Tone = tone.String
		c.EraStyle = era.String
		if energy.Valid {
			e := int(energy.Int32)
			c.EnergyLevel = &e
		}
		c.DurationSeconds = duration.Float64
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.AdCandidate, 0, len(byID))
	for _, id := range adIDs {
		if c, ok := byID[id]; ok {
			out = append(out, c)
			delete(byID, id)
		}
	}
	return out, nil
}

// GetAnalysis returns the stored analysis for a video and its duration in
// seconds (0 when unknown).
func (r *CatalogRepository) GetAnalysis(ctx context.Context, userID, videoID string) (*model.AnalysisResult, float64, error) {
	var (
		raw      []byte
		duration sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT analysis, duration_seconds
		FROM video_analysis
		WHERE video_id = $1 AND user_id = $2
	`, videoID, userID).Scan(&raw, &duration)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("get analysis %s: %w", videoID, err)
	}

	var result model.AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, 0, fmt.Errorf("decode analysis %s: %w", videoID, err)
	}
	return &result, duration.Float64, nil
}

// SaveAnalysis upserts the analysis produced for a video.
func (r *CatalogRepository) SaveAnalysis(ctx context.Context, userID, videoID string, result *model.AnalysisResult, durationSeconds float64) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO video_analysis (video_id, user_id, analysis, duration_seconds, analyzed_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (video_id) DO UPDATE
		SET analysis = EXCLUDED.analysis,
			duration_seconds = EXCLUDED.duration_seconds,
			analyzed_at = NOW()
	`, videoID, userID, raw, durationSeconds)
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", videoID, err)
	}
	return nil
}
