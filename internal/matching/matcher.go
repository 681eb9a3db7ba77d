// Package matching ranks ads against a video profile and turns the ranking
// into a spacing-constrained placement schedule.
package matching

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/retrocast/api/internal/model"
)

// Score rates a single ad against a video.
func Score(ad model.AdCandidate, video model.VideoProfile) model.MatchResult {
	categoryScore := CategoryScore(ad.Categories, video.Categories)
	toneScore := ToneScore(ad.Tone, video.Sentiment)
	eraScore := EraScore(ad.EraStyle)
	energyScore := EnergyScore(ad.EnergyLevel)

	overall := WeightCategory*categoryScore +
		WeightTone*toneScore +
		WeightEra*eraScore +
		WeightEnergy*energyScore

	matched := matchedCategories(ad.Categories, video.Categories)

	return model.MatchResult{
		AdID:              ad.ID,
		OverallScore:      overall,
		CategoryScore:     categoryScore,
		ToneScore:         toneScore,
		EraScore:          eraScore,
		EnergyScore:       energyScore,
		MatchedCategories: matched,
		Reason:            matchReason(matched, ad.Tone, ad.EraStyle, overall),
		DurationSeconds:   ad.Duration(),
	}
}

// Rank scores every ad and orders them best first. Equal scores keep input order.
func Rank(ads []model.AdCandidate, video model.VideoProfile) []model.MatchResult {
	results := make([]model.MatchResult, 0, len(ads))
	for _, ad := range ads {
		results = append(results, Score(ad, video))
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].OverallScore > results[j].OverallScore
	})
	return results
}

// CategoryScore is the Jaccard similarity of the two category sets.
func CategoryScore(adCategories, videoCategories []string) float64 {
	adSet := toSet(adCategories)
	videoSet := toSet(videoCategories)
	if len(adSet) == 0 || len(videoSet) == 0 {
		return 0
	}

	intersection := 0
	for c := range adSet {
		if videoSet[c] {
			intersection++
		}
	}
	union := len(adSet) + len(videoSet) - intersection
	return float64(intersection) / float64(union)
}

// ToneScore looks up ad tone against video sentiment, case-insensitively.
func ToneScore(tone, sentiment string) float64 {
	t, s := fold(tone), fold(sentiment)
	if t == "" || s == "" {
		return NeutralScore
	}
	row, ok := toneCompatibility[t]
	if !ok {
		return NeutralScore
	}
	score, ok := row[s]
	if !ok {
		return NeutralScore
	}
	return score
}

func EraScore(era string) float64 {
	if score, ok := eraScores[fold(era)]; ok {
		return score
	}
	return NeutralScore
}

// EnergyScore maps energy 1..10 onto [0,1].
func EnergyScore(level *int) float64 {
	if level == nil {
		return NeutralScore
	}
	return math.Min(math.Max(float64(*level)/10.0, 0), 1)
}

func matchedCategories(adCategories, videoCategories []string) []string {
	videoSet := toSet(videoCategories)
	seen := make(map[string]bool, len(adCategories))
	matched := []string{}
	for _, c := range adCategories {
		if c == "" || seen[c] || !videoSet[c] {
			continue
		}
		seen[c] = true
		matched = append(matched, c)
	}
	return matched
}

func matchReason(matched []string, tone, era string, score float64) string {
	var parts []string
	if len(matched) > 0 {
		parts = append(parts, "Category match: "+strings.Join(matched, ", "))
	}
	if tone != "" {
		parts = append(parts, "Tone: "+tone)
	}
	if era != "" {
		parts = append(parts, "Era: "+era)
	}

	reason := "General match"
	if len(parts) > 0 {
		reason = strings.Join(parts, "; ")
	}
	return fmt.Sprintf("%s (%d%% match)", reason, int(math.Round(score*100)))
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		if v != "" {
			set[v] = true
		}
	}
	return set
}

// fold normalises a table key. A Caser is stateful, so one is built per call.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
