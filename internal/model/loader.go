package model

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jonesrussell/complaint-engine/internal/domain"
)

// Load reads and validates an artifact from disk. Any failure wraps
// domain.ErrModelUnavailable; the caller decides whether that is fatal
// (startup) or keeps serving on the prior model (hot reload).
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact %s: %v: %w",
			path, err, domain.ErrModelUnavailable)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact %s: %v: %w",
			path, err, domain.ErrModelUnavailable)
	}

	if err := artifact.Validate(); err != nil {
		return nil, fmt.Errorf("model artifact %s: %w", path, err)
	}

	return &artifact, nil
}
