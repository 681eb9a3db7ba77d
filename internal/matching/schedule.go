package matching

import (
	"math"
	"sort"

	"github.com/retrocast/api/internal/model"
)

// MinAdSpacingSeconds is the minimum distance between two scheduled ads.
const MinAdSpacingSeconds = 120.0

// DefaultMaxAds applies when a caller does not bound the schedule.
const DefaultMaxAds = 3

// BuildSchedule assigns ranked matches to break points.
//
// Break points are visited by priority, highest first. Each one receives the
// next unused match if that keeps every placement at least
// MinAdSpacingSeconds apart; otherwise the break point is skipped and the
// match waits for the next one. The result is ordered by insertion time.
func BuildSchedule(ranked []model.MatchResult, breakPoints []model.BreakPoint, maxAds int) []model.ScheduleItem {
	schedule := []model.ScheduleItem{}
	if len(ranked) == 0 || len(breakPoints) == 0 || maxAds <= 0 {
		return schedule
	}

	ordered := make([]model.BreakPoint, len(breakPoints))
	copy(ordered, breakPoints)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	next := 0
	for _, bp := range ordered {
		if len(schedule) >= maxAds || next >= len(ranked) {
			break
		}
		if !wellSpaced(schedule, bp.TimestampSeconds) {
			continue
		}

		match := ranked[next]
		next++

		duration := match.DurationSeconds
		if duration <= 0 {
			duration = model.DefaultAdDurationSeconds
		}
		schedule = append(schedule, model.ScheduleItem{
			AdID:            match.AdID,
			InsertAtSeconds: bp.TimestampSeconds,
			DurationSeconds: duration,
			Score:           match.OverallScore,
			Reason:          match.Reason,
		})
	}

	sort.SliceStable(schedule, func(i, j int) bool {
		return schedule[i].InsertAtSeconds < schedule[j].InsertAtSeconds
	})
	return schedule
}

func wellSpaced(schedule []model.ScheduleItem, at float64) bool {
	for _, item := range schedule {
		if math.Abs(item.InsertAtSeconds-at) < MinAdSpacingSeconds {
			return false
		}
	}
	return true
}
