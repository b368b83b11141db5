package rigs

import (
	"strings"

	"auravfx/server/internal/assets"
	"auravfx/server/internal/lod"
)

// PartLookup probes whether a sub-asset candidate exists without warning.
type PartLookup interface {
	Lookup(candidate string) assets.Match
}

// Expand turns desired rigs into parts for the given tier. Output order is
// input order, then profile part order. Full-only parts are omitted at
// TierReduced.
func Expand(desired []DesiredRig, tier lod.Tier, lookup PartLookup) []DesiredPart {
	var parts []DesiredPart
	for _, rig := range desired {
		base := assets.Normalize(rig.ModelAssetID)
		if base == "" {
			continue
		}
		for _, part := range rig.Profile.spec().parts {
			if part.FullOnly && tier != lod.TierFull {
				continue
			}
			model := base
			if part.Suffix != "" {
				model = pickPartModel(base, part.Suffix, lookup)
			}
			parts = append(parts, DesiredPart{
				CategoryID:   rig.CategoryID,
				CosmeticID:   rig.CosmeticID,
				Profile:      rig.Profile,
				PartID:       part.ID,
				ModelAssetID: model,
			})
		}
	}
	return parts
}

// pickPartModel prefers the suffixed sub-asset and falls back to base.
func pickPartModel(base, suffix string, lookup PartLookup) string {
	candidate := AppendSuffix(base, suffix)
	if candidate == "" || lookup == nil {
		return base
	}
	if lookup.Lookup(candidate).Found() {
		return candidate
	}
	return base
}

// AppendSuffix inserts suffix before a trailing .json, or appends
// suffix+".json" when the id has no extension.
func AppendSuffix(base, suffix string) string {
	normalized := assets.Normalize(base)
	if normalized == "" {
		return ""
	}
	ext := assets.ModelExtension
	if len(normalized) >= len(ext) && strings.EqualFold(normalized[len(normalized)-len(ext):], ext) {
		return normalized[:len(normalized)-len(ext)] + suffix + ext
	}
	return normalized + suffix + ext
}
