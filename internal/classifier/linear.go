package classifier

import (
	"math"

	"github.com/jonesrussell/complaint-engine/internal/domain"
	"github.com/jonesrussell/complaint-engine/internal/model"
)

// linearModel is a model artifact compiled for scoring. Immutable once built;
// hot reload swaps the whole pointer rather than mutating in place.
type linearModel struct {
	version    string
	categories []domain.Category
	bias       map[domain.Category]float64
	vocab      map[string]map[domain.Category]float64
}

func compileModel(artifact *model.Artifact) *linearModel {
	return &linearModel{
		version:    artifact.Version,
		categories: append([]domain.Category(nil), artifact.Categories...),
		bias:       artifact.Bias,
		vocab:      artifact.Vocabulary,
	}
}

// classify scores the tokens against every category and returns the winner
// with its softmax probability. Ties resolve to the earliest category in the
// artifact's order, so identical text always yields an identical result.
func (m *linearModel) classify(tokens []string) (domain.Category, float64) {
	scores := make([]float64, len(m.categories))
	for i, c := range m.categories {
		scores[i] = m.bias[c]
	}

	for _, token := range tokens {
		weights, ok := m.vocab[token]
		if !ok {
			continue
		}
		for i, c := range m.categories {
			if w, hit := weights[c]; hit {
				scores[i] += w
			}
		}
	}

	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}

	return m.categories[best], softmax(scores, best)
}

// softmax returns the probability of scores[idx], shifted by the max score
// so large weights cannot overflow exp.
func softmax(scores []float64, idx int) float64 {
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}

	var sum float64
	for _, s := range scores {
		sum += math.Exp(s - maxScore)
	}

	return math.Exp(scores[idx]-maxScore) / sum
}
