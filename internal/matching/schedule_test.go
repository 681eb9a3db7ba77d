package matching

import (
	"math"
	"math/rand"
	"testing"

	"github.com/retrocast/api/internal/model"
)

func ranked(ids ...string) []model.MatchResult {
	out := make([]model.MatchResult, len(ids))
	for i, id := range ids {
		out[i] = model.MatchResult{AdID: id, OverallScore: 1 - float64(i)*0.1, Reason: "r-" + id}
	}
	return out
}

func TestBuildScheduleFirstFit(t *testing.T) {
	breaks := []model.BreakPoint{
		{TimestampSeconds: 400, Priority: 5},
		{TimestampSeconds: 100, Priority: 9},
		{TimestampSeconds: 150, Priority: 8},
	}

	got := BuildSchedule(ranked("A", "B", "C"), breaks, 3)

	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d: %+v", len(got), got)
	}
	if got[0].AdID != "A" || got[0].InsertAtSeconds != 100 {
		t.Errorf("expected A at 100, got %s at %v", got[0].AdID, got[0].InsertAtSeconds)
	}
	// 150 is rejected for spacing; B waits for 400 rather than being skipped
	if got[1].AdID != "B" || got[1].InsertAtSeconds != 400 {
		t.Errorf("expected B at 400, got %s at %v", got[1].AdID, got[1].InsertAtSeconds)
	}
	if got[0].DurationSeconds != model.DefaultAdDurationSeconds {
		t.Errorf("expected default ad duration, got %v", got[0].DurationSeconds)
	}
	if got[0].Reason != "r-A" {
		t.Errorf("expected reason carried over, got %q", got[0].Reason)
	}
}

func TestBuildScheduleOrderedByTime(t *testing.T) {
	breaks := []model.BreakPoint{
		{TimestampSeconds: 900, Priority: 10},
		{TimestampSeconds: 300, Priority: 7},
		{TimestampSeconds: 600, Priority: 8},
	}

	got := BuildSchedule(ranked("A", "B", "C"), breaks, 3)

	wantAds := []string{"C", "B", "A"}
	wantTimes := []float64{300, 600, 900}
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	for i := range got {
		if got[i].AdID != wantAds[i] || got[i].InsertAtSeconds != wantTimes[i] {
			t.Errorf("item %d: expected %s at %v, got %s at %v", i, wantAds[i], wantTimes[i], got[i].AdID, got[i].InsertAtSeconds)
		}
	}
}

func TestBuildScheduleRespectsMaxAds(t *testing.T) {
	breaks := []model.BreakPoint{
		{TimestampSeconds: 0, Priority: 1},
		{TimestampSeconds: 200, Priority: 2},
		{TimestampSeconds: 400, Priority: 3},
	}
	got := BuildSchedule(ranked("A", "B", "C"), breaks, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if got[0].InsertAtSeconds != 200 || got[1].InsertAtSeconds != 400 {
		t.Errorf("expected highest-priority slots 200 and 400, got %+v", got)
	}
}

func TestBuildScheduleEmptyCases(t *testing.T) {
	breaks := []model.BreakPoint{{TimestampSeconds: 60, Priority: 5}}

	tests := []struct {
		name   string
		ranked []model.MatchResult
		breaks []model.BreakPoint
		maxAds int
	}{
		{"no matches", nil, breaks, 3},
		{"no break points", ranked("A"), nil, 3},
		{"zero max", ranked("A"), breaks, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildSchedule(tt.ranked, tt.breaks, tt.maxAds)
			if got == nil {
				t.Fatal("expected empty slice, got nil")
			}
			if len(got) != 0 {
				t.Errorf("expected empty schedule, got %+v", got)
			}
		})
	}
}

func TestBuildScheduleAllRejected(t *testing.T) {
	breaks := []model.BreakPoint{
		{TimestampSeconds: 100, Priority: 9},
		{TimestampSeconds: 130, Priority: 8},
		{TimestampSeconds: 210, Priority: 7},
	}
	got := BuildSchedule(ranked("A", "B"), breaks, 3)
	if len(got) != 1 {
		t.Fatalf("expected only the first placement, got %+v", got)
	}
}

func TestBuildScheduleSpacingProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 500; iter++ {
		nBreaks := rng.Intn(20)
		breaks := make([]model.BreakPoint, nBreaks)
		for i := range breaks {
			breaks[i] = model.BreakPoint{
				TimestampSeconds: float64(rng.Intn(3600)),
				Priority:         1 + rng.Intn(10),
			}
		}
		ids := make([]string, rng.Intn(8))
		for i := range ids {
			ids[i] = string(rune('a' + i))
		}
		maxAds := rng.Intn(6)

		got := BuildSchedule(ranked(ids...), breaks, maxAds)

		if len(got) > maxAds || len(got) > len(ids) {
			t.Fatalf("iteration %d: schedule too long (%d)", iter, len(got))
		}
		used := map[string]bool{}
		for i := range got {
			if used[got[i].AdID] {
				t.Fatalf("iteration %d: ad %s used twice", iter, got[i].AdID)
			}
			used[got[i].AdID] = true
			if i > 0 && got[i].InsertAtSeconds < got[i-1].InsertAtSeconds {
				t.Fatalf("iteration %d: schedule not sorted", iter)
			}
			for j := i + 1; j < len(got); j++ {
				if math.Abs(got[i].InsertAtSeconds-got[j].InsertAtSeconds) < MinAdSpacingSeconds {
					t.Fatalf("iteration %d: items %d and %d closer than %v", iter, i, j, MinAdSpacingSeconds)
				}
			}
		}
	}
}
