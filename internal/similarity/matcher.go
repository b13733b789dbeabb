package similarity

import (
	"context"
	"time"

	"github.com/jonesrussell/complaint-engine/internal/domain"
	"github.com/jonesrussell/complaint-engine/internal/telemetry"
)

// DefaultThreshold is the similarity score at which a submission merges into
// an existing complaint.
const DefaultThreshold = 0.8

// Matcher finds the open complaint a new submission duplicates, if any.
// Read-only: it never mutates candidates.
type Matcher struct {
	scorer    Scorer
	threshold float64
	telemetry *telemetry.Provider
}

// NewMatcher builds a matcher. A nil scorer defaults to Cosine; a threshold
// outside (0,1] defaults to DefaultThreshold.
func NewMatcher(scorer Scorer, threshold float64, tp *telemetry.Provider) *Matcher {
	if scorer == nil {
		scorer = Cosine{}
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Matcher{
		scorer:    scorer,
		threshold: threshold,
		telemetry: tp,
	}
}

// FindDuplicate returns the highest-scoring candidate at or above the
// threshold, or nil when the submission is genuinely new. Score ties break
// toward the earliest submission, then the smallest identifier, so the most
// established tracking record keeps collecting votes.
//
// Callers pre-filter candidates to the submission's category and to
// non-terminal status.
func (m *Matcher) FindDuplicate(ctx context.Context, text string, candidates []*domain.Complaint) *domain.Complaint {
	start := time.Now()

	var (
		best      *domain.Complaint
		bestScore float64
	)
	for _, candidate := range candidates {
		score := m.scoreCandidate(text, candidate)
		if score < m.threshold {
			continue
		}
		switch {
		case best == nil, score > bestScore:
			best, bestScore = candidate, score
		case score == bestScore && earlier(candidate, best):
			best = candidate
		}
	}

	if m.telemetry != nil {
		m.telemetry.RecordSimilarity(ctx, time.Since(start), len(candidates))
	}

	return best
}

// scoreCandidate takes the maximum over the candidate's primary text and its
// merged texts, so a complaint built from paraphrases keeps attracting its
// paraphrases.
func (m *Matcher) scoreCandidate(text string, candidate *domain.Complaint) float64 {
	score := m.scorer.Score(text, candidate.Text)
	for _, merged := range candidate.ContributingTexts {
		if s := m.scorer.Score(text, merged); s > score {
			score = s
		}
	}
	return score
}

func earlier(a, b *domain.Complaint) bool {
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.Before(b.SubmittedAt)
	}
	return a.ID < b.ID
}
