// internal/classifier/rules.go
package classifier

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jonesrussell/complaint-engine/internal/domain"
)

// defaultKeywordMinScore lets a single strong keyword hit fire a rule:
// one hit on a nine-word list scores ~0.18.
const defaultKeywordMinScore = 0.15

// DefaultKeywordRules returns the built-in curated keyword lists for the
// municipal taxonomy. Deployments extend or replace them through
// configuration; an empty category list disables keyword precedence for that
// category and leaves it to the model.
func DefaultKeywordRules() []KeywordRule {
	return []KeywordRule{
		{
			Category: domain.CategoryWater,
			Keywords: []string{"water", "drinking", "supply", "leak", "pipe", "tap", "smell", "taste", "pressure"},
			MinScore: defaultKeywordMinScore,
			Enabled:  true,
		},
		{
			Category: domain.CategoryRoad,
			Keywords: []string{"road", "pothole", "asphalt", "street", "highway", "repair", "damage", "construction"},
			MinScore: defaultKeywordMinScore,
			Enabled:  true,
		},
		{
			Category: domain.CategoryGarbage,
			Keywords: []string{"garbage", "trash", "waste", "collection", "dump", "bin", "clean", "disposal"},
			MinScore: defaultKeywordMinScore,
			Enabled:  true,
		},
		{
			Category: domain.CategoryElectricity,
			Keywords: []string{"electricity", "power", "outage", "blackout", "wire", "transformer", "voltage", "flickering"},
			MinScore: defaultKeywordMinScore,
			Enabled:  true,
		},
		{
			Category: domain.CategoryDrainage,
			Keywords: []string{"drainage", "sewer", "flood", "waterlogging", "blockage", "clog", "overflow"},
			MinScore: defaultKeywordMinScore,
			Enabled:  true,
		},
		{
			Category: domain.CategoryOther,
			Keywords: []string{"noise", "loudspeaker", "park", "tree", "animal", "stray", "public", "nuisance"},
			MinScore: defaultKeywordMinScore,
			Enabled:  true,
		},
	}
}

// LoadKeywordRules reads a rule set from a JSON file. Rules naming a category
// outside the taxonomy are rejected rather than silently dropped so a typo in
// an ops-managed rules file surfaces at startup.
func LoadKeywordRules(path string) ([]KeywordRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyword rules %s: %w", path, err)
	}

	var rules []KeywordRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse keyword rules %s: %w", path, err)
	}

	for i := range rules {
		if !rules[i].Category.Valid() {
			return nil, fmt.Errorf("keyword rules %s: rule %d: unknown category %q", path, i, rules[i].Category)
		}
		if len(rules[i].Keywords) == 0 {
			return nil, fmt.Errorf("keyword rules %s: rule %d: empty keyword list", path, i)
		}
	}

	return rules, nil
}
