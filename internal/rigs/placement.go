package rigs

import (
	"github.com/go-gl/mathgl/mgl64"

	"auravfx/server/internal/assets"
	"auravfx/server/internal/host"
)

// Place computes a part's world transform from the owning player's
// transform. The profile's local offset is rotated by the player's yaw;
// the vertical component is not rotated.
func Place(profile Profile, part string, player host.Transform, frame uint64) host.Transform {
	spec := profile.spec()
	local := spec.offset(part, float64(frame))
	horizontal := mgl64.Rotate3DY(mgl64.DegToRad(player.Rotation.Yaw)).Mul3x1(mgl64.Vec3{local.X(), 0, local.Z()})

	rotation := player.Rotation
	rotation.Yaw += spec.yaw(part, frame)
	return host.Transform{
		Position: player.Position.Add(mgl64.Vec3{horizontal.X(), local.Y(), horizontal.Z()}),
		Rotation: rotation,
	}
}

// pickAnimation returns the first preferred animation the asset binds.
func pickAnimation(profile Profile, part string, asset assets.Asset) string {
	for _, name := range profile.AnimationPreference(part) {
		if asset.HasAnimation(name) {
			return name
		}
	}
	return ""
}
