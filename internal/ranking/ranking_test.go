package ranking_test

import (
	"math"
	"testing"
	"time"

	"github.com/jonesrussell/complaint-engine/internal/domain"
	"github.com/jonesrussell/complaint-engine/internal/ranking"
)

func complaintAt(id string, category domain.Category, votes int, submittedAt time.Time) *domain.Complaint {
	return &domain.Complaint{
		ID:          id,
		Category:    category,
		Votes:       votes,
		Status:      domain.StatusSubmitted,
		SubmittedAt: submittedAt,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScore_MatchesFormula(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	weights := map[domain.Category]float64{domain.CategoryWater: 1.5}
	ranker := ranking.NewRanker(weights, ranking.DefaultAgeFactorCap, nil)

	tests := []struct {
		name    string
		votes   int
		ageDays float64
		want    float64
	}{
		{
			name:    "one day old",
			votes:   5,
			ageDays: 1,
			want:    5 * 1.5 * (1 + 1.0/30),
		},
		{
			name:    "forty days old",
			votes:   2,
			ageDays: 40,
			want:    2 * 1.5 * (1 + 40.0/30),
		},
		{
			name:    "age factor capped",
			votes:   1,
			ageDays: 200,
			want:    1 * 1.5 * (1 + 3),
		},
		{
			name:    "zero votes zero score",
			votes:   0,
			ageDays: 10,
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			submitted := now.Add(-time.Duration(tt.ageDays * 24 * float64(time.Hour)))
			c := complaintAt("c-1", domain.CategoryWater, tt.votes, submitted)

			got := ranker.Score(c, now)
			if !almostEqual(got, tt.want) {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScore_UnknownCategoryWeightDefaultsToOne(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ranker := ranking.NewRanker(map[domain.Category]float64{}, 3, nil)

	c := complaintAt("c-1", domain.Category("unmapped"), 4, now)
	want := 4 * 1.0 * 1.0

	if got := ranker.Score(c, now); !almostEqual(got, want) {
		t.Errorf("Score() = %v, want %v", got, want)
	}
}

func TestRank_FreshPopularBeatsStaleQuiet(t *testing.T) {
	// Two water complaints with the same urgency weight. The one-day-old
	// complaint with five votes must outrank the forty-day-old one with
	// two votes.
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	weights := map[domain.Category]float64{domain.CategoryWater: 1.5}
	ranker := ranking.NewRanker(weights, 3, nil)

	fresh := complaintAt("c-fresh", domain.CategoryWater, 5, now.Add(-24*time.Hour))
	stale := complaintAt("c-stale", domain.CategoryWater, 2, now.Add(-40*24*time.Hour))

	freshScore := ranker.Score(fresh, now)
	staleScore := ranker.Score(stale, now)
	if wantFresh := 5 * 1.5 * (1 + 1.0/30); !almostEqual(freshScore, wantFresh) {
		t.Fatalf("Score(fresh) = %v, want %v", freshScore, wantFresh)
	}
	if wantStale := 2 * 1.5 * (1 + 40.0/30); !almostEqual(staleScore, wantStale) {
		t.Fatalf("Score(stale) = %v, want %v", staleScore, wantStale)
	}

	got := ranker.Rank([]*domain.Complaint{stale, fresh}, now)
	if got[0].ID != "c-fresh" || got[1].ID != "c-stale" {
		t.Errorf("Rank() order = [%s, %s], want [c-fresh, c-stale]", got[0].ID, got[1].ID)
	}
}

func TestRank_HigherUrgencyWinsAtEqualVotesAndAge(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ranker := ranking.NewRanker(nil, 3, nil)
	submitted := now.Add(-48 * time.Hour)

	water := complaintAt("c-water", domain.CategoryWater, 3, submitted)
	garbage := complaintAt("c-garbage", domain.CategoryGarbage, 3, submitted)

	got := ranker.Rank([]*domain.Complaint{garbage, water}, now)
	if got[0].ID != "c-water" {
		t.Errorf("Rank() first = %s, want c-water", got[0].ID)
	}
}

func TestRank_TiesBreakByAgeThenID(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ranker := ranking.NewRanker(nil, 3, nil)

	older := complaintAt("c-b", domain.CategoryRoad, 2, now.Add(-10*24*time.Hour))
	newer := complaintAt("c-a", domain.CategoryRoad, 2, now.Add(-2*24*time.Hour))
	// Same score as newer only if everything matches, so use identical
	// timestamps for the ID tiebreak pair.
	twinA := complaintAt("c-1", domain.CategoryGarbage, 1, now.Add(-6*24*time.Hour))
	twinB := complaintAt("c-2", domain.CategoryGarbage, 1, now.Add(-6*24*time.Hour))

	got := ranker.Rank([]*domain.Complaint{newer, twinB, older, twinA}, now)

	if got[0].ID != "c-b" {
		t.Errorf("Rank() first = %s, want c-b (older submission outranks newer at equal votes)", got[0].ID)
	}
	// The twins share score and timestamp, so identifier decides.
	var twins []string
	for _, c := range got {
		if c.Category == domain.CategoryGarbage {
			twins = append(twins, c.ID)
		}
	}
	if len(twins) != 2 || twins[0] != "c-1" || twins[1] != "c-2" {
		t.Errorf("Rank() twin order = %v, want [c-1 c-2]", twins)
	}
}

func TestRank_TotalOrderIsStableUnderRemoval(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ranker := ranking.NewRanker(nil, 3, nil)

	pool := []*domain.Complaint{
		complaintAt("c-1", domain.CategoryWater, 5, now.Add(-24*time.Hour)),
		complaintAt("c-2", domain.CategoryWater, 2, now.Add(-40*24*time.Hour)),
		complaintAt("c-3", domain.CategoryRoad, 7, now.Add(-3*24*time.Hour)),
		complaintAt("c-4", domain.CategoryGarbage, 7, now.Add(-3*24*time.Hour)),
		complaintAt("c-5", domain.CategoryDrainage, 1, now.Add(-90*24*time.Hour)),
		complaintAt("c-6", domain.CategoryElectricity, 3, now),
		complaintAt("c-7", domain.CategoryOther, 4, now.Add(-15*24*time.Hour)),
	}

	full := ranker.Rank(pool, now)

	for skip := range pool {
		subset := make([]*domain.Complaint, 0, len(pool)-1)
		for i, c := range pool {
			if i != skip {
				subset = append(subset, c)
			}
		}

		got := ranker.Rank(subset, now)

		want := make([]string, 0, len(full)-1)
		for _, c := range full {
			if c.ID != pool[skip].ID {
				want = append(want, c.ID)
			}
		}
		for i, c := range got {
			if c.ID != want[i] {
				t.Fatalf("Rank() without %s: position %d = %s, want %s", pool[skip].ID, i, c.ID, want[i])
			}
		}
	}
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ranker := ranking.NewRanker(nil, 3, nil)

	a := complaintAt("c-low", domain.CategoryOther, 1, now)
	b := complaintAt("c-high", domain.CategoryWater, 9, now.Add(-24*time.Hour))
	input := []*domain.Complaint{a, b}

	ranker.Rank(input, now)

	if input[0] != a || input[1] != b {
		t.Error("Rank() reordered the input slice")
	}
}

func TestRankScored_AttachesScores(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ranker := ranking.NewRanker(map[domain.Category]float64{domain.CategoryRoad: 1.2}, 3, nil)

	c := complaintAt("c-1", domain.CategoryRoad, 10, now.Add(-30*24*time.Hour))
	got := ranker.RankScored([]*domain.Complaint{c}, now)

	want := 10 * 1.2 * (1 + 1.0)
	if len(got) != 1 || !almostEqual(got[0].Score, want) {
		t.Errorf("RankScored() score = %v, want %v", got[0].Score, want)
	}
}
