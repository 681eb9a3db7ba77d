package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/retrocast/api/internal/apperror"
	"github.com/retrocast/api/internal/matching"
	"github.com/retrocast/api/internal/model"
	"github.com/retrocast/api/internal/repository"
)

// MatchService ranks a user's ads against a previously analysed video.
type MatchService struct {
	catalog Catalog
}

func NewMatchService(catalog Catalog) *MatchService {
	return &MatchService{catalog: catalog}
}

// Match ranks the requested ads and schedules up to maxAds of them. Ads
// without metadata are left out of the ranking.
func (s *MatchService) Match(ctx context.Context, userID string, req *model.MatchRequest) (*model.MatchResponse, error) {
	analysis, duration, err := s.catalog.GetAnalysis(ctx, userID, req.VideoID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("Video analysis not found: " + req.VideoID)
	}
	if err != nil {
		return nil, apperror.Internal("Failed to load video analysis", err)
	}

	candidates, err := s.catalog.GetAdCandidates(ctx, userID, req.AdIDs)
	if err != nil {
		return nil, apperror.Internal("Failed to load ad metadata", err)
	}
	if skipped := len(req.AdIDs) - len(candidates); skipped > 0 {
		log.Debug().Str("videoId", req.VideoID).Int("skipped", skipped).Msg("Ads without metadata left out of matching")
	}

	maxAds := matching.DefaultMaxAds
	if req.MaxAds != nil {
		maxAds = *req.MaxAds
	}

	profile := matching.ProfileFromAnalysis(req.VideoID, analysis, duration)
	ranked := matching.Rank(candidates, profile)
	schedule := matching.BuildSchedule(ranked, profile.BreakPoints, maxAds)

	return &model.MatchResponse{
		VideoID:  req.VideoID,
		Rankings: ranked,
		Schedule: schedule,
	}, nil
}
