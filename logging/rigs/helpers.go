package rigs

import (
	"context"

	"auravfx/server/logging"
)

const (
	// EventBudgetReached is emitted the first tick a player's desired parts exceed the rig budget.
	EventBudgetReached logging.EventType = "rigs.budget_reached"
	// EventAssetMissing is emitted once per model asset id that cannot be resolved.
	EventAssetMissing logging.EventType = "rigs.asset_missing"
	// EventSpawnFailed is emitted once per asset id when the host rejects a spawn, update or removal.
	EventSpawnFailed logging.EventType = "rigs.spawn_failed"
	// EventRigsPruned is emitted when the stale-rig sweep reclaims instances.
	EventRigsPruned logging.EventType = "rigs.pruned"
	// EventDebugRigSpawned is emitted when an operator spawns a temporary debug rig.
	EventDebugRigSpawned logging.EventType = "rigs.debug_spawned"
)

// BudgetReachedPayload records how many parts were dropped for a player.
type BudgetReachedPayload struct {
	Desired int `json:"desired"`
	Budget  int `json:"budget"`
}

// BudgetReached publishes an informational notice about budget truncation.
func BudgetReached(ctx context.Context, pub logging.Publisher, tick uint64, player logging.EntityRef, payload BudgetReachedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventBudgetReached,
		Tick:     tick,
		Actor:    player,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryRigs,
		Payload:  payload,
	})
}

// AssetPayload identifies the asset involved in a failure.
type AssetPayload struct {
	AssetID   string `json:"assetId"`
	Operation string `json:"operation,omitempty"`
	Error     string `json:"error,omitempty"`
}

// AssetMissing publishes a warning for an unresolvable asset candidate.
func AssetMissing(ctx context.Context, pub logging.Publisher, payload AssetPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAssetMissing,
		Actor:    logging.EntityRef{ID: payload.AssetID, Kind: logging.EntityKindAsset},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryRigs,
		Payload:  payload,
	})
}

// SpawnFailed publishes a warning for a host mutation that failed.
func SpawnFailed(ctx context.Context, pub logging.Publisher, tick uint64, payload AssetPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSpawnFailed,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: payload.AssetID, Kind: logging.EntityKindAsset},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryRigs,
		Payload:  payload,
	})
}

type PrunedPayload struct {
	Removed int `json:"removed"`
}

func RigsPruned(ctx context.Context, pub logging.Publisher, payload PrunedPayload) {
	if pub == nil || payload.Removed == 0 {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRigsPruned,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryRigs,
		Payload:  payload,
	})
}

type DebugRigPayload struct {
	World     string `json:"world"`
	Requested string `json:"requested"`
	Resolved  string `json:"resolved,omitempty"`
	Success   bool   `json:"success"`
}

func DebugRigSpawned(ctx context.Context, pub logging.Publisher, payload DebugRigPayload) {
	if pub == nil {
		return
	}
	severity := logging.SeverityInfo
	if !payload.Success {
		severity = logging.SeverityWarn
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDebugRigSpawned,
		Actor:    logging.WorldRef(payload.World),
		Severity: severity,
		Category: logging.CategoryRigs,
		Payload:  payload,
	})
}
