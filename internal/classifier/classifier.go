package classifier

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonesrussell/complaint-engine/internal/domain"
	"github.com/jonesrussell/complaint-engine/internal/model"
	"github.com/jonesrussell/complaint-engine/internal/telemetry"
	"github.com/jonesrussell/complaint-engine/internal/textnorm"
)

const (
	// DefaultConfidenceThreshold flags results below it as low confidence.
	// Advisory only: classification still succeeds.
	DefaultConfidenceThreshold = 0.5

	// keywordConfidenceFloor bands keyword-rule scores into [floor, 1].
	// Curated keyword hits are high precision, so they never report below
	// the floor even on a single-keyword match.
	keywordConfidenceFloor = 0.75
)

// Classifier maps complaint text to a category with a confidence score.
// Keyword rules take precedence over the model. Pure: no side effects beyond
// telemetry, no network, deterministic for a given loaded model and text.
type Classifier struct {
	keywords  *KeywordEngine
	model     atomic.Pointer[linearModel]
	threshold float64
	logger    Logger
	telemetry *telemetry.Provider
}

// Config holds configuration for the classifier.
type Config struct {
	// ConfidenceThreshold is the low-confidence boundary. Zero means
	// DefaultConfidenceThreshold.
	ConfidenceThreshold float64

	// KeywordRules replaces the built-in rule set when non-empty.
	KeywordRules []KeywordRule
}

// New builds a classifier from a validated model artifact. A nil or invalid
// artifact is fatal here: the process cannot serve classification without a
// usable model.
func New(artifact *model.Artifact, cfg Config, logger Logger, tp *telemetry.Provider) (*Classifier, error) {
	if artifact == nil {
		return nil, fmt.Errorf("classifier requires a model artifact: %w", domain.ErrModelUnavailable)
	}
	if err := artifact.Validate(); err != nil {
		return nil, err
	}

	threshold := cfg.ConfidenceThreshold
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	rules := cfg.KeywordRules
	if len(rules) == 0 {
		rules = DefaultKeywordRules()
	}

	c := &Classifier{
		keywords:  NewKeywordEngine(rules, logger, tp),
		threshold: threshold,
		logger:    logger,
		telemetry: tp,
	}
	c.model.Store(compileModel(artifact))

	return c, nil
}

// Classify assigns a category and confidence to complaint text.
// Fails with domain.ErrInvalidInput when the text is empty after
// normalization and domain.ErrModelUnavailable when no keyword rule fires
// and no model is loaded.
func (c *Classifier) Classify(ctx context.Context, text string) (*domain.ClassificationResult, error) {
	start := time.Now()

	tokens := textnorm.Tokens(text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("complaint text is empty after normalization: %w", domain.ErrInvalidInput)
	}

	var (
		category   domain.Category
		confidence float64
		source     string
	)

	// 1. Keyword rules: curated lists beat the model when they fire.
	if matches := c.keywords.Match(text); len(matches) > 0 {
		best := matches[0]
		category = best.Rule.Category
		confidence = keywordConfidenceFloor + best.Score*(1-keywordConfidenceFloor)
		source = domain.SourceKeywords

		c.logger.Debug("keyword rule matched",
			"category", category,
			"score", best.Score,
			"matched_keywords", best.MatchedKeywords)
	} else {
		// 2. Linear model fallback.
		m := c.model.Load()
		if m == nil {
			return nil, fmt.Errorf("no model loaded: %w", domain.ErrModelUnavailable)
		}
		category, confidence = m.classify(tokens)
		source = domain.SourceModel
	}

	low := confidence < c.threshold
	duration := time.Since(start)

	if c.telemetry != nil {
		c.telemetry.RecordClassification(ctx, category, source, low, duration)
	}

	return &domain.ClassificationResult{
		Category:         category,
		Confidence:       confidence,
		LowConfidence:    low,
		PredictionSource: source,
		ModelVersion:     c.ModelVersion(),
		ProcessingTimeMs: duration.Milliseconds(),
	}, nil
}

// Reload validates and atomically swaps in a new model artifact. On failure
// the active model stays in service and the error reports why the candidate
// was rejected.
func (c *Classifier) Reload(artifact *model.Artifact) error {
	if artifact == nil {
		return fmt.Errorf("reload requires a model artifact: %w", domain.ErrModelUnavailable)
	}
	if err := artifact.Validate(); err != nil {
		if c.telemetry != nil {
			c.telemetry.RecordModelReload(context.Background(), false)
		}
		c.logger.Warn("model reload rejected, keeping active model",
			"active_version", c.ModelVersion(),
			"error", err)
		return err
	}

	c.model.Store(compileModel(artifact))

	if c.telemetry != nil {
		c.telemetry.RecordModelReload(context.Background(), true)
	}
	c.logger.Info("model reloaded", "version", artifact.Version)

	return nil
}

// UpdateKeywordRules hot-swaps the keyword rule set.
func (c *Classifier) UpdateKeywordRules(rules []KeywordRule) {
	c.keywords.UpdateRules(rules)
}

// ModelVersion returns the version of the active model.
func (c *Classifier) ModelVersion() string {
	m := c.model.Load()
	if m == nil {
		return ""
	}
	return m.version
}
