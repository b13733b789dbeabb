// Package similarity scores complaint texts for near-duplicate detection.
// The metric is pluggable; the default is cosine similarity over normalized
// token counts.
package similarity

import (
	"math"
	"strings"

	"github.com/jonesrussell/complaint-engine/internal/textnorm"
)

// Scorer computes a textual similarity in [0,1]. Implementations must be
// symmetric, and equal normalized texts must score exactly 1.
type Scorer interface {
	Score(a, b string) float64
}

// Cosine scores token-count vectors. Word order is ignored; repeated tokens
// weigh by their counts.
type Cosine struct{}

// Score implements Scorer.
func (Cosine) Score(a, b string) float64 {
	na := textnorm.Clean(a)
	nb := textnorm.Clean(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	va := countTokens(na)
	vb := countTokens(nb)

	var dot float64
	for token, ca := range va {
		if cb, ok := vb[token]; ok {
			dot += float64(ca) * float64(cb)
		}
	}
	if dot == 0 {
		return 0
	}

	score := dot / (magnitude(va) * magnitude(vb))
	// Guard the float edges so callers can rely on the [0,1] bound.
	return math.Min(1, math.Max(0, score))
}

func countTokens(cleaned string) map[string]int {
	counts := make(map[string]int)
	for _, token := range strings.Fields(cleaned) {
		counts[token]++
	}
	return counts
}

func magnitude(v map[string]int) float64 {
	var sum float64
	for _, c := range v {
		sum += float64(c) * float64(c)
	}
	return math.Sqrt(sum)
}
