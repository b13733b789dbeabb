package domain

// Category is a fixed taxonomy element. Categories are configuration, never
// created at runtime.
type Category string

// Category constants
const (
	CategoryWater       Category = "water"
	CategoryRoad        Category = "road"
	CategoryGarbage     Category = "garbage"
	CategoryElectricity Category = "electricity"
	CategoryDrainage    Category = "drainage"
	CategoryOther       Category = "other"
)

// Categories returns the full taxonomy in display order.
func Categories() []Category {
	return []Category{
		CategoryWater,
		CategoryRoad,
		CategoryGarbage,
		CategoryElectricity,
		CategoryDrainage,
		CategoryOther,
	}
}

// Valid reports whether the category is part of the taxonomy.
func (c Category) Valid() bool {
	switch c {
	case CategoryWater, CategoryRoad, CategoryGarbage,
		CategoryElectricity, CategoryDrainage, CategoryOther:
		return true
	default:
		return false
	}
}

// DefaultUrgencyWeights returns the baseline per-category ranking multipliers.
// Deployments tune these through configuration.
func DefaultUrgencyWeights() map[Category]float64 {
	return map[Category]float64{
		CategoryWater:       1.5,
		CategoryElectricity: 1.4,
		CategoryDrainage:    1.3,
		CategoryRoad:        1.2,
		CategoryGarbage:     1.0,
		CategoryOther:       0.8,
	}
}
