package lod

// Tier is the per-player rig fidelity for one tick.
type Tier uint8

const (
	TierFull Tier = iota
	TierReduced
)

func (t Tier) String() string {
	switch t {
	case TierFull:
		return "full"
	case TierReduced:
		return "reduced"
	default:
		return "unknown"
	}
}

// SelectTier drops to Reduced once more than ultraMax players, counting the
// player itself, are nearby.
func SelectTier(nearby, ultraMax int) Tier {
	if nearby <= 0 || nearby <= ultraMax {
		return TierFull
	}
	return TierReduced
}
