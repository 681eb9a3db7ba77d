package matching

import (
	"github.com/rs/zerolog/log"

	"github.com/retrocast/api/internal/media"
	"github.com/retrocast/api/internal/model"
)

// ProfileFromAnalysis builds the matching profile for a video from its
// analysis. Insertion points with unreadable timestamps are dropped.
func ProfileFromAnalysis(videoID string, analysis *model.AnalysisResult, durationSeconds float64) model.VideoProfile {
	profile := model.VideoProfile{
		VideoID:         videoID,
		DurationSeconds: durationSeconds,
		BreakPoints:     []model.BreakPoint{},
	}
	if analysis == nil {
		return profile
	}
	profile.Categories = analysis.Categories
	profile.Sentiment = analysis.Sentiment

	for _, p := range analysis.AdInsertionPoints {
		at, err := media.ParseTimestamp(p.Timestamp)
		if err != nil {
			log.Warn().Str("videoId", videoID).Str("timestamp", p.Timestamp).Msg("Skipping insertion point")
			continue
		}
		profile.BreakPoints = append(profile.BreakPoints, model.BreakPoint{
			TimestampSeconds: at,
			Priority:         p.Priority,
			Reason:           p.Reason,
		})
	}
	return profile
}
