package rigs

import (
	"auravfx/server/internal/assets"
	"auravfx/server/internal/lod"
)

// DescribeAuditParts expands one model cosmetic at tier and reports how
// each distinct (part, requested asset) pair resolves.
func (e *Engine) DescribeAuditParts(category, cosmetic, modelAssetID string, profile Profile, tier lod.Tier) []AuditPart {
	desired := NewDesiredRig(category, cosmetic, modelAssetID, profile)
	seen := make(map[string]struct{})
	var out []AuditPart
	for _, part := range Expand([]DesiredRig{desired}, tier, e.models) {
		requested := assets.Normalize(part.ModelAssetID)
		if requested == "" {
			continue
		}
		dedupe := part.PartID + "|" + requested
		if _, dup := seen[dedupe]; dup {
			continue
		}
		seen[dedupe] = struct{}{}
		resolved, ok := e.models.Resolve(requested)
		out = append(out, AuditPart{
			PartID:           part.PartID,
			RequestedAssetID: requested,
			ResolvedAssetID:  resolved,
			Resolvable:       ok,
		})
	}
	return out
}
