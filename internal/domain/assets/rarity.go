package assets

import "strings"

// Rarity is ordered from common to titanic. The zero value means unknown.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
	RarityMythical  Rarity = "mythical"
	RarityHuge      Rarity = "huge"
	RarityTitanic   Rarity = "titanic"
)

var rarityOrder = []Rarity{
	RarityCommon,
	RarityUncommon,
	RarityRare,
	RarityEpic,
	RarityLegendary,
	RarityMythical,
	RarityHuge,
	RarityTitanic,
}

// Rank returns the position of r in the rarity order, or -1 when r is unset or unknown.
func (r Rarity) Rank() int {
	for i, v := range rarityOrder {
		if v == r {
			return i
		}
	}
	return -1
}

// Less reports whether r sorts before o. Unknown rarities sort first.
func (r Rarity) Less(o Rarity) bool { return r.Rank() < o.Rank() }

// ParseRarity returns "" and false when s is not a known rarity.
func ParseRarity(s string) (Rarity, bool) {
	r := Rarity(normalize(s))
	if r.Rank() < 0 {
		return "", false
	}
	return r, true
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
