// Package classifier maps complaint text to the municipal category taxonomy.
// keywords.go implements an Aho-Corasick based keyword engine for O(n+m)
// matching across every category's keyword list in a single pass.
package classifier

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"github.com/jonesrussell/complaint-engine/internal/domain"
	"github.com/jonesrussell/complaint-engine/internal/telemetry"
	"github.com/jonesrussell/complaint-engine/internal/textnorm"
)

// KeywordRule maps a keyword list to one taxonomy category. A category may
// carry several rules with different priorities.
type KeywordRule struct {
	Category domain.Category `json:"category"`
	Keywords []string        `json:"keywords"`
	MinScore float64         `json:"min_score"` // rule fires at or above this score
	Priority int             `json:"priority"`  // higher priority wins across rules
	Enabled  bool            `json:"enabled"`
}

// RuleMatch represents a matched rule with scoring details
type RuleMatch struct {
	Rule            *KeywordRule
	MatchCount      int      // Total keyword hits
	UniqueMatches   int      // Unique keywords matched
	Coverage        float64  // UniqueMatches / TotalKeywords
	Score           float64  // Final computed score, bounded [0,1]
	MatchedKeywords []string // Which keywords matched (for debugging/testing)
}

// Scoring constants. Log-scaled term frequency rewards repeated hits with
// diminishing returns; coverage rewards breadth across the rule's list.
const (
	tfWeight              = 0.6
	coverageWeight        = 0.4
	tfNormalizationFactor = 3.0 // log1p saturates near 20 distinct hits

	estimatedKeywordsPerRule = 10 // initial slice capacity
)

// KeywordEngine uses Aho-Corasick for O(n+m) keyword matching. Significantly
// faster than the naive rules×keywords×text scan once every category carries
// a real keyword list.
type KeywordEngine struct {
	mu        sync.RWMutex
	matcher   *ahocorasick.Matcher
	rules     []*KeywordRule
	keywords  []string                  // all normalized keywords in automaton order
	kwToRules map[string][]*ruleMapping // keyword -> rule mappings
	telemetry *telemetry.Provider
	logger    Logger
}

type ruleMapping struct {
	ruleIdx      int // index into e.rules
	keywordIndex int // index into the rule's keyword list
}

// NewKeywordEngine builds the Aho-Corasick automaton from the enabled rules.
func NewKeywordEngine(rules []KeywordRule, logger Logger, tp *telemetry.Provider) *KeywordEngine {
	enabled := make([]*KeywordRule, 0, len(rules))
	for i := range rules {
		if rules[i].Enabled {
			enabled = append(enabled, &rules[i])
		}
	}

	engine := &KeywordEngine{
		rules:     enabled,
		kwToRules: make(map[string][]*ruleMapping),
		telemetry: tp,
		logger:    logger,
	}
	// No lock needed in constructor - engine not yet shared
	engine.rebuildLocked()

	if logger != nil {
		logger.Info("keyword engine initialized",
			"rules", len(enabled),
			"keywords", len(engine.keywords))
	}

	return engine
}

// rebuildLocked constructs the Aho-Corasick automaton.
// MUST be called with e.mu held (or before the engine is shared).
func (e *KeywordEngine) rebuildLocked() {
	e.keywords = make([]string, 0, len(e.rules)*estimatedKeywordsPerRule)
	e.kwToRules = make(map[string][]*ruleMapping)

	for idx, rule := range e.rules {
		for kwIdx, kw := range rule.Keywords {
			normalized := textnorm.Clean(kw)
			if normalized == "" {
				continue
			}
			if _, seen := e.kwToRules[normalized]; !seen {
				e.keywords = append(e.keywords, normalized)
			}
			e.kwToRules[normalized] = append(e.kwToRules[normalized], &ruleMapping{
				ruleIdx:      idx,
				keywordIndex: kwIdx,
			})
		}
	}

	if len(e.keywords) > 0 {
		e.matcher = ahocorasick.NewStringMatcher(e.keywords)
	} else {
		e.matcher = nil
	}
}

// Match finds all rules cleared by the text in a single automaton pass.
// Results are sorted by priority (desc), then score (desc), then category so
// identical text always produces the same winner.
func (e *KeywordEngine) Match(text string) []RuleMatch {
	start := time.Now()

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.matcher == nil {
		return nil
	}

	normalized := textnorm.Clean(text)
	hits := e.matcher.Match([]byte(normalized))

	// Accumulate matches per rule
	ruleAccum := make(map[int]*matchAccumulator)

	for _, hitIndex := range hits {
		if hitIndex >= len(e.keywords) {
			continue
		}
		keyword := e.keywords[hitIndex]
		for _, m := range e.kwToRules[keyword] {
			acc, exists := ruleAccum[m.ruleIdx]
			if !exists {
				acc = &matchAccumulator{
					rule:            e.rules[m.ruleIdx],
					matchedKeywords: make(map[int]bool),
				}
				ruleAccum[m.ruleIdx] = acc
			}
			if !acc.matchedKeywords[m.keywordIndex] {
				acc.keywordTexts = append(acc.keywordTexts, keyword)
			}
			acc.matchedKeywords[m.keywordIndex] = true
			acc.totalHits++
		}
	}

	// Calculate scores and filter by each rule's threshold
	results := make([]RuleMatch, 0, len(ruleAccum))
	for _, acc := range ruleAccum {
		totalKeywords := len(acc.rule.Keywords)
		if totalKeywords == 0 {
			continue
		}

		uniqueMatched := len(acc.matchedKeywords)
		coverage := float64(uniqueMatched) / float64(totalKeywords)

		// Log-scaled term frequency + coverage: rewards both repetition
		// and breadth of matches.
		logTF := math.Min(1.0, math.Log1p(float64(acc.totalHits))/tfNormalizationFactor)
		score := (logTF * tfWeight) + (coverage * coverageWeight)

		if score >= acc.rule.MinScore {
			results = append(results, RuleMatch{
				Rule:            acc.rule,
				MatchCount:      acc.totalHits,
				UniqueMatches:   uniqueMatched,
				Coverage:        coverage,
				Score:           score,
				MatchedKeywords: acc.keywordTexts,
			})
		}
	}

	if e.telemetry != nil {
		e.telemetry.RecordKeywordMatch(context.Background(), time.Since(start), len(results))
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Rule.Priority != results[j].Rule.Priority {
			return results[i].Rule.Priority > results[j].Rule.Priority
		}
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Rule.Category < results[j].Rule.Category
	})

	return results
}

// UpdateRules hot-swaps the rule set without a restart.
// Thread-safe: acquires the write lock to replace rules and rebuild the
// automaton atomically with respect to Match.
func (e *KeywordEngine) UpdateRules(rules []KeywordRule) {
	enabled := make([]*KeywordRule, 0, len(rules))
	for i := range rules {
		if rules[i].Enabled {
			enabled = append(enabled, &rules[i])
		}
	}

	e.mu.Lock()
	e.rules = enabled
	e.rebuildLocked()
	keywordCount := len(e.keywords)
	e.mu.Unlock()

	if e.logger != nil {
		e.logger.Info("keyword engine updated",
			"rules", len(enabled),
			"keywords", keywordCount)
	}
}

// RuleCount returns the number of enabled rules.
func (e *KeywordEngine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// KeywordCount returns the number of distinct normalized keywords.
func (e *KeywordEngine) KeywordCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.keywords)
}

type matchAccumulator struct {
	rule            *KeywordRule
	matchedKeywords map[int]bool // keyword index -> matched
	keywordTexts    []string     // actual matched keyword strings
	totalHits       int
}
