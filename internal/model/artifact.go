// Package model defines the trained-model artifact the classifier loads.
// Training happens offline; this package only parses and validates what the
// training pipeline ships.
package model

import (
	"fmt"
	"math"
	"time"

	"github.com/jonesrussell/complaint-engine/internal/domain"
)

// Artifact is a serialized linear text model: per-token, per-category weights
// plus per-category bias. Scoring a text is a weight sum over its tokens, so
// classification stays pure and deterministic.
type Artifact struct {
	Version    string            `json:"version"`
	TrainedAt  *time.Time        `json:"trained_at,omitempty"`
	Categories []domain.Category `json:"categories"`

	// Bias holds per-category priors applied before any token weight.
	Bias map[domain.Category]float64 `json:"bias"`

	// Vocabulary maps a normalized token to its per-category weights.
	// Tokens absent from a category contribute nothing to it.
	Vocabulary map[string]map[domain.Category]float64 `json:"vocabulary"`
}

// Validate checks the artifact is usable. All validation failures wrap
// domain.ErrModelUnavailable so callers can match the kind.
func (a *Artifact) Validate() error {
	if a.Version == "" {
		return fmt.Errorf("artifact has no version: %w", domain.ErrModelUnavailable)
	}
	if len(a.Categories) < 2 {
		return fmt.Errorf("artifact needs at least two categories, got %d: %w",
			len(a.Categories), domain.ErrModelUnavailable)
	}
	seen := make(map[domain.Category]bool, len(a.Categories))
	for _, c := range a.Categories {
		if !c.Valid() {
			return fmt.Errorf("artifact category %q is not in the taxonomy: %w", c, domain.ErrModelUnavailable)
		}
		if seen[c] {
			return fmt.Errorf("artifact lists category %q twice: %w", c, domain.ErrModelUnavailable)
		}
		seen[c] = true
	}
	if len(a.Vocabulary) == 0 {
		return fmt.Errorf("artifact has an empty vocabulary: %w", domain.ErrModelUnavailable)
	}
	for c, w := range a.Bias {
		if !seen[c] {
			return fmt.Errorf("bias references unknown category %q: %w", c, domain.ErrModelUnavailable)
		}
		if !finite(w) {
			return fmt.Errorf("bias for %q is not finite: %w", c, domain.ErrModelUnavailable)
		}
	}
	for token, weights := range a.Vocabulary {
		if token == "" {
			return fmt.Errorf("vocabulary contains an empty token: %w", domain.ErrModelUnavailable)
		}
		for c, w := range weights {
			if !seen[c] {
				return fmt.Errorf("token %q references unknown category %q: %w", token, c, domain.ErrModelUnavailable)
			}
			if !finite(w) {
				return fmt.Errorf("token %q weight for %q is not finite: %w", token, c, domain.ErrModelUnavailable)
			}
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
