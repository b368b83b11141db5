package catalog

import "strings"

// Category groups cosmetics that share an equip slot and a render routine.
type Category string

const (
	CategoryAuras          Category = "auras"
	CategoryAurasPremium   Category = "auras_premium"
	CategoryTrails         Category = "trails"
	CategoryFootprints     Category = "footprints"
	CategoryFloatingBadges Category = "floating_badges"
	CategoryTrophyBadges   Category = "trophy_badges"
)

var categoryOrder = []Category{
	CategoryAuras,
	CategoryAurasPremium,
	CategoryTrails,
	CategoryFootprints,
	CategoryFloatingBadges,
	CategoryTrophyBadges,
}

// Categories returns every category in render order. Rig budgets are
// consumed in this order too.
func Categories() []Category {
	return append([]Category(nil), categoryOrder...)
}

// ParseCategory accepts any casing and surrounding whitespace.
func ParseCategory(raw string) (Category, bool) {
	normalized := Category(strings.ToLower(strings.TrimSpace(raw)))
	for _, category := range categoryOrder {
		if category == normalized {
			return category, true
		}
	}
	return "", false
}

// MultiActive reports whether a player may equip several cosmetics of the
// category at once.
func (c Category) MultiActive() bool {
	return c == CategoryFloatingBadges || c == CategoryTrophyBadges
}

func (c Category) String() string { return string(c) }
