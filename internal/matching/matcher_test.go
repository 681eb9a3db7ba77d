package matching

import (
	"math"
	"testing"

	"github.com/retrocast/api/internal/model"
)

const epsilon = 1e-9

func intPtr(v int) *int { return &v }

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestCategoryScore(t *testing.T) {
	tests := []struct {
		name  string
		ad    []string
		video []string
		want  float64
	}{
		{"partial overlap", []string{"tech", "gaming"}, []string{"tech", "finance"}, 1.0 / 3.0},
		{"identical", []string{"automotive"}, []string{"automotive"}, 1.0},
		{"disjoint", []string{"food"}, []string{"automotive"}, 0},
		{"empty ad", nil, []string{"tech"}, 0},
		{"empty video", []string{"tech"}, []string{}, 0},
		{"duplicates collapse", []string{"tech", "tech"}, []string{"tech"}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CategoryScore(tt.ad, tt.video)
			if !approxEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if got < 0 || got > 1 {
				t.Errorf("score out of range: %v", got)
			}
		})
	}
}

func TestToneScore(t *testing.T) {
	tests := []struct {
		tone, sentiment string
		want            float64
	}{
		{"humorous", "negative", 0.3},
		{"EXCITING", "Positive", 1.0},
		{"  calm ", "neutral", 1.0},
		{"informative", "mixed", 0.8},
		{"sarcastic", "positive", NeutralScore},
		{"serious", "bewildered", NeutralScore},
		{"", "positive", NeutralScore},
		{"nostalgic", "", NeutralScore},
	}

	for _, tt := range tests {
		if got := ToneScore(tt.tone, tt.sentiment); !approxEqual(got, tt.want) {
			t.Errorf("ToneScore(%q, %q) = %v, want %v", tt.tone, tt.sentiment, got, tt.want)
		}
	}
}

func TestEraScore(t *testing.T) {
	tests := map[string]float64{
		"1950s":        1.0,
		"1980S":        1.0,
		"1990s":        0.9,
		"Modern-Retro": 0.8,
		"modern":       0.5,
		"2030s":        NeutralScore,
		"":             NeutralScore,
	}
	for era, want := range tests {
		if got := EraScore(era); !approxEqual(got, want) {
			t.Errorf("EraScore(%q) = %v, want %v", era, got, want)
		}
	}
}

func TestEnergyScore(t *testing.T) {
	if got := EnergyScore(nil); got != NeutralScore {
		t.Errorf("expected neutral for missing energy, got %v", got)
	}
	if got := EnergyScore(intPtr(8)); !approxEqual(got, 0.8) {
		t.Errorf("expected 0.8, got %v", got)
	}
	if got := EnergyScore(intPtr(14)); got != 1 {
		t.Errorf("expected clamp to 1, got %v", got)
	}
	if got := EnergyScore(intPtr(-3)); got != 0 {
		t.Errorf("expected clamp to 0, got %v", got)
	}
}

func TestScoreWeightedFormula(t *testing.T) {
	// category 1.0, tone 0.7, era 1.0, energy 0.8
	ad := model.AdCandidate{
		ID:          "ad-1",
		Categories:  []string{"music"},
		Tone:        "humorous",
		EraStyle:    "1980s",
		EnergyLevel: intPtr(8),
	}
	video := model.VideoProfile{Categories: []string{"music"}, Sentiment: "neutral"}

	got := Score(ad, video)
	if !approxEqual(got.OverallScore, 0.895) {
		t.Errorf("expected 0.895, got %v", got.OverallScore)
	}
	if got.DurationSeconds != model.DefaultAdDurationSeconds {
		t.Errorf("expected default duration, got %v", got.DurationSeconds)
	}
}

func TestRankEndToEnd(t *testing.T) {
	video := model.VideoProfile{
		VideoID:    "vid-1",
		Categories: []string{"automotive"},
		Sentiment:  "positive",
	}
	ads := []model.AdCandidate{
		{ID: "B", Categories: []string{"food"}, Tone: "calm", EraStyle: "modern", EnergyLevel: intPtr(3)},
		{ID: "A", Categories: []string{"automotive"}, Tone: "exciting", EraStyle: "1980s", EnergyLevel: intPtr(8)},
	}

	ranked := Rank(ads, video)
	if len(ranked) != 2 {
		t.Fatalf("expected 2 results, got %d", len(ranked))
	}
	if ranked[0].AdID != "A" || ranked[1].AdID != "B" {
		t.Fatalf("expected order A, B; got %s, %s", ranked[0].AdID, ranked[1].AdID)
	}
	if !approxEqual(ranked[0].OverallScore, 0.97) {
		t.Errorf("expected A overall 0.97, got %v", ranked[0].OverallScore)
	}
	if !approxEqual(ranked[1].OverallScore, 0.345) {
		t.Errorf("expected B overall 0.345, got %v", ranked[1].OverallScore)
	}

	wantReason := "Category match: automotive; Tone: exciting; Era: 1980s (97% match)"
	if ranked[0].Reason != wantReason {
		t.Errorf("expected reason %q, got %q", wantReason, ranked[0].Reason)
	}
	if len(ranked[1].MatchedCategories) != 0 {
		t.Errorf("expected no matched categories for B, got %v", ranked[1].MatchedCategories)
	}
}

func TestRankIsStable(t *testing.T) {
	video := model.VideoProfile{Categories: []string{"tech"}, Sentiment: "neutral"}
	same := func(id string) model.AdCandidate {
		return model.AdCandidate{ID: id, Categories: []string{"tech"}, Tone: "calm", EraStyle: "modern", EnergyLevel: intPtr(5)}
	}
	best := model.AdCandidate{ID: "best", Categories: []string{"tech"}, Tone: "calm", EraStyle: "1970s", EnergyLevel: intPtr(9)}

	ranked := Rank([]model.AdCandidate{same("first"), same("second"), best, same("third")}, video)

	want := []string{"best", "first", "second", "third"}
	for i, id := range want {
		if ranked[i].AdID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, ranked[i].AdID)
		}
	}
}

func TestMatchReasonGeneral(t *testing.T) {
	ad := model.AdCandidate{ID: "plain", Categories: []string{"food"}}
	video := model.VideoProfile{Categories: []string{"tech"}}

	got := Score(ad, video)
	// 0 + 0.25*0.5 + 0.20*0.5 + 0.15*0.5
	if got.Reason != "General match (30% match)" {
		t.Errorf("unexpected reason %q", got.Reason)
	}
}

func TestToneTableCoversAnalyzerSentiments(t *testing.T) {
	for tone, row := range toneCompatibility {
		for _, sentiment := range model.Sentiments {
			if _, ok := row[sentiment]; !ok {
				t.Errorf("tone %q has no score for sentiment %q", tone, sentiment)
			}
		}
	}
	for _, sentiment := range model.Sentiments {
		if got := ToneScore("humorous", sentiment); got == NeutralScore {
			t.Errorf("ToneScore(humorous, %s) fell back to neutral", sentiment)
		}
	}
}
