package service

import (
	"context"

	"github.com/retrocast/api/internal/model"
)

// Catalog is the uploaded-media lookup. Every method is scoped to the owner;
// rows belonging to someone else behave as missing.
type Catalog interface {
	GetVideo(ctx context.Context, userID, videoID string) (*model.SourceVideo, error)
	GetAds(ctx context.Context, userID string, adIDs []string) ([]model.AdAsset, error)
	GetAdCandidates(ctx context.Context, userID string, adIDs []string) ([]model.AdCandidate, error)
	GetAnalysis(ctx context.Context, userID, videoID string) (*model.AnalysisResult, float64, error)
	SaveAnalysis(ctx context.Context, userID, videoID string, result *model.AnalysisResult, durationSeconds float64) error
}
