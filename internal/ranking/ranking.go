// Package ranking orders open complaints for authority dashboards.
// Scoring is pure: votes, category urgency weight, and a capped age factor.
package ranking

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/jonesrussell/complaint-engine/internal/domain"
	"github.com/jonesrussell/complaint-engine/internal/telemetry"
)

const (
	// DefaultAgeFactorCap bounds how much staleness can amplify a score, so
	// abandoned entries cannot dominate the feed forever.
	DefaultAgeFactorCap = 3.0

	// ageDivisorDays controls how fast age raises priority: one full step
	// per 30 days open.
	ageDivisorDays = 30.0

	fallbackWeight = 1.0
)

// Scored pairs a complaint with its computed priority score.
type Scored struct {
	Complaint *domain.Complaint `json:"complaint"`
	Score     float64           `json:"score"`
}

// Ranker computes the authority-facing ordering. It never mutates its input.
type Ranker struct {
	weights   map[domain.Category]float64
	ageCap    float64
	telemetry *telemetry.Provider
}

// NewRanker builds a ranker. Nil weights fall back to the default urgency
// table; a non-positive cap falls back to DefaultAgeFactorCap.
func NewRanker(weights map[domain.Category]float64, ageCap float64, tp *telemetry.Provider) *Ranker {
	if weights == nil {
		weights = domain.DefaultUrgencyWeights()
	}
	if ageCap <= 0 {
		ageCap = DefaultAgeFactorCap
	}
	return &Ranker{
		weights:   weights,
		ageCap:    ageCap,
		telemetry: tp,
	}
}

// Score computes votes * urgency_weight * (1 + min(age_days/30, cap)).
// Older unresolved complaints gain priority; the cap bounds the gain.
func (r *Ranker) Score(c *domain.Complaint, now time.Time) float64 {
	weight, ok := r.weights[c.Category]
	if !ok || weight <= 0 {
		weight = fallbackWeight
	}
	ageFactor := 1 + math.Min(c.AgeDays(now)/ageDivisorDays, r.ageCap)
	return float64(c.Votes) * weight * ageFactor
}

// Rank returns the complaints ordered by descending score. Ties break by
// earlier submission, then by identifier, producing a total order.
func (r *Ranker) Rank(complaints []*domain.Complaint, now time.Time) []*domain.Complaint {
	scored := r.RankScored(complaints, now)
	out := make([]*domain.Complaint, len(scored))
	for i, s := range scored {
		out[i] = s.Complaint
	}
	return out
}

// RankScored is Rank with the computed score attached to each entry, for
// dashboards that display it.
func (r *Ranker) RankScored(complaints []*domain.Complaint, now time.Time) []Scored {
	start := time.Now()

	scored := make([]Scored, len(complaints))
	for i, c := range complaints {
		scored[i] = Scored{Complaint: c, Score: r.Score(c, now)}
	}

	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Complaint.SubmittedAt.Equal(b.Complaint.SubmittedAt) {
			return a.Complaint.SubmittedAt.Before(b.Complaint.SubmittedAt)
		}
		return a.Complaint.ID < b.Complaint.ID
	})

	if r.telemetry != nil {
		r.telemetry.RecordRanking(context.Background(), time.Since(start), len(scored))
	}

	return scored
}
