package rigs

import (
	"strings"
	"time"

	"auravfx/server/internal/assets"
	"auravfx/server/internal/host"
)

// DesiredRig is one equipped model cosmetic for a player this tick.
type DesiredRig struct {
	CategoryID   string
	CosmeticID   string
	ModelAssetID string
	Profile      Profile
}

// NewDesiredRig normalizes ids to lowercase and the asset id to forward
// slashes.
func NewDesiredRig(category, cosmetic, modelAssetID string, profile Profile) DesiredRig {
	return DesiredRig{
		CategoryID:   normalizeID(category),
		CosmeticID:   normalizeID(cosmetic),
		ModelAssetID: assets.Normalize(modelAssetID),
		Profile:      profile,
	}
}

// DesiredPart is one entity a DesiredRig expands into.
type DesiredPart struct {
	CategoryID   string
	CosmeticID   string
	Profile      Profile
	PartID       string
	ModelAssetID string
}

func (p DesiredPart) Key() Key {
	return Key{CategoryID: p.CategoryID, CosmeticID: p.CosmeticID, PartID: p.PartID}
}

// Key identifies a rig slot within one player's table.
type Key struct {
	CategoryID string `json:"category"`
	CosmeticID string `json:"cosmetic"`
	PartID     string `json:"part"`
}

func (k Key) String() string {
	return k.CategoryID + "/" + k.CosmeticID + "/" + k.PartID
}

// Instance is a live rig entity owned by a player's table.
type Instance struct {
	Entity           host.EntityID
	World            host.World
	Profile          Profile
	PartID           string
	RequestedAssetID string
	ResolvedAssetID  string
	LastSeen         time.Time
}

// AuditPart reports whether one expanded part resolves.
type AuditPart struct {
	PartID           string `json:"partId"`
	RequestedAssetID string `json:"requested"`
	ResolvedAssetID  string `json:"resolved,omitempty"`
	Resolvable       bool   `json:"resolvable"`
}

// DebugSpawnResult is returned by Engine.SpawnDebug.
type DebugSpawnResult struct {
	Success         bool   `json:"success"`
	ResolvedAssetID string `json:"resolvedAssetId"`
}

func normalizeID(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
