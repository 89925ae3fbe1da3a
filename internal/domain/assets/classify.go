package assets

import (
	"strings"
	"unicode"
)

// Roblox asset type ids the scanner cares about.
const (
	AssetTypeImage    = 1
	AssetTypeMesh     = 4
	AssetTypeModel    = 10
	AssetTypeDecal    = 13
	AssetTypeBadge    = 21
	AssetTypeGamePass = 34
	AssetTypeMeshPart = 40
)

var kindKeywords = []struct {
	kind  Kind
	words []string
}{
	// egg first: "Huge Egg" is an egg, not a pet
	{KindEgg, []string{"egg", "eggs", "hatch"}},
	{KindWorld, []string{"world", "area", "zone", "realm", "island"}},
	{KindPet, []string{"pet", "pets", "huge", "titanic", "gargantuan"}},
}

// KindForAssetType maps a Roblox asset type id onto the asset enum.
func KindForAssetType(typeID int) Kind {
	switch typeID {
	case AssetTypeImage, AssetTypeDecal:
		return KindTexture
	case AssetTypeMesh, AssetTypeMeshPart:
		return KindMesh
	default:
		return KindUnknown
	}
}

// Classify infers kind and rarity from an asset name. Name keywords win over the
// asset type; rarity is the highest ranked rarity word found in the name.
func Classify(name string, assetType int) (Kind, Rarity) {
	words := tokenize(name)

	kind := KindUnknown
	for _, kw := range kindKeywords {
		if containsAny(words, kw.words) {
			kind = kw.kind
			break
		}
	}
	if kind == KindUnknown {
		kind = KindForAssetType(assetType)
	}

	var rarity Rarity
	for _, w := range words {
		if r, ok := ParseRarity(w); ok && rarity.Less(r) {
			rarity = r
		}
	}
	return kind, rarity
}

// Verification is the keyword confidence report used by /verify.
type Verification struct {
	Confidence int      `json:"confidence"`
	Verified   bool     `json:"verified"`
	Reasons    []string `json:"reasons"`
}

const verifiedThreshold = 50

// Verify scores how likely an asset belongs to the tracked game.
func Verify(a Asset, tags []string) Verification {
	var v Verification
	add := func(points int, reason string) {
		v.Confidence += points
		v.Reasons = append(v.Reasons, reason)
	}

	title := strings.ToLower(a.Name)
	desc := strings.ToLower(a.Description)

	if hasGameKeyword(title) {
		add(30, "title mentions Pet Simulator")
	}
	if strings.Contains(title, "huge") && strings.Contains(title, "pet") {
		add(20, "title references a huge pet")
	}
	if hasGameKeyword(desc) {
		add(20, "description mentions Pet Simulator")
	}
	if strings.Contains(desc, "big games") || strings.Contains(desc, "preston") {
		add(15, "description mentions Big Games")
	}

	relevant := 0
	for _, t := range tags {
		lt := strings.ToLower(t)
		if strings.Contains(lt, "pet") || strings.Contains(lt, "simulator") || strings.Contains(lt, "ps99") || strings.Contains(lt, "biggames") {
			relevant++
		}
	}
	if relevant > 3 {
		relevant = 3
	}
	if relevant > 0 {
		add(15*relevant, "relevant tags")
	}

	if a.IsDeveloperOrigin {
		add(40, "published by a known developer")
	}

	if v.Confidence > 100 {
		v.Confidence = 100
	}
	v.Verified = v.Confidence >= verifiedThreshold
	return v
}

func hasGameKeyword(s string) bool {
	return strings.Contains(s, "pet simulator") || strings.Contains(s, "pet sim") || strings.Contains(s, "ps99")
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsAny(words, want []string) bool {
	for _, w := range words {
		for _, k := range want {
			if w == k {
				return true
			}
		}
	}
	return false
}
