package rigs

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrUnknownProfile is returned for rig profile names outside the closed set.
var ErrUnknownProfile = errors.New("rigs: unknown rig profile")

// Profile selects how a model cosmetic is split into parts and animated.
type Profile uint8

const (
	ProfileDefault Profile = iota
	ProfileFireIceCone
	ProfileStormClouds
	ProfileWingwangSigil
	ProfileFireworksShow
)

// Part is one sub-entity of a profile. An empty Suffix uses the base asset.
type Part struct {
	ID       string
	Suffix   string
	FullOnly bool
}

type profileSpec struct {
	name       string
	parts      []Part
	offset     func(part string, frame float64) mgl64.Vec3
	yaw        func(part string, frame uint64) float64
	animations func(part string) []string
}

var (
	idleLoop       = []string{"Idle", "Loop"}
	idleLoopAction = []string{"Idle", "Loop", "Action"}
	idleActionLoop = []string{"Idle", "Action", "Loop"}
	actionIdleLoop = []string{"Action", "Idle", "Loop"}
)

var profileSpecs = [...]profileSpec{
	ProfileDefault: {
		name:       "default",
		parts:      []Part{{ID: "main"}},
		offset:     func(string, float64) mgl64.Vec3 { return mgl64.Vec3{0, 1.60, 0} },
		yaw:        func(string, uint64) float64 { return 0 },
		animations: func(string) []string { return idleLoopAction },
	},
	ProfileFireIceCone: {
		name: "fire_ice_cone",
		parts: []Part{
			{ID: "core", Suffix: "_Core"},
			{ID: "helix_fire", Suffix: "_HelixFire"},
			{ID: "helix_ice", Suffix: "_HelixIce", FullOnly: true},
		},
		offset:     fireIceConeOffset,
		yaw:        fireIceConeYaw,
		animations: func(string) []string { return idleLoop },
	},
	ProfileStormClouds: {
		name: "storm_clouds",
		parts: []Part{
			{ID: "cloud_a"},
			{ID: "cloud_b", Suffix: "_Core"},
			{ID: "cloud_c", FullOnly: true},
			{ID: "sun_cloud", Suffix: "_Ring"},
		},
		offset:     stormCloudsOffset,
		yaw:        stormCloudsYaw,
		animations: func(string) []string { return idleLoop },
	},
	ProfileWingwangSigil: {
		name: "wingwang_sigil",
		parts: []Part{
			{ID: "inner", Suffix: "_Inner"},
			{ID: "outer", Suffix: "_Outer"},
			{ID: "mid", Suffix: "_Mid", FullOnly: true},
		},
		offset: wingwangSigilOffset,
		yaw: func(part string, frame uint64) float64 {
			spin := float64(frame % 360)
			if part == "mid" {
				return 180 - spin*1.8
			}
			return 180 + spin*2.0
		},
		animations: func(string) []string { return idleActionLoop },
	},
	ProfileFireworksShow: {
		name: "fireworks_show",
		parts: []Part{
			{ID: "launcher", Suffix: "_Launcher"},
			{ID: "burst", Suffix: "_Burst", FullOnly: true},
		},
		offset: fireworksShowOffset,
		yaw: func(part string, frame uint64) float64 {
			if part == "launcher" {
				return math.Sin(float64(frame)*0.05) * 15
			}
			return float64(frame%360) * 3.0
		},
		animations: func(part string) []string {
			if part == "launcher" {
				return actionIdleLoop
			}
			return idleLoopAction
		},
	},
}

// ParseProfile maps a catalog rig profile name onto a Profile. The empty
// string and "default" select ProfileDefault.
func ParseProfile(name string) (Profile, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return ProfileDefault, nil
	}
	for i, spec := range profileSpecs {
		if spec.name == normalized {
			return Profile(i), nil
		}
	}
	return ProfileDefault, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
}

// Profiles lists every known profile.
func Profiles() []Profile {
	out := make([]Profile, len(profileSpecs))
	for i := range profileSpecs {
		out[i] = Profile(i)
	}
	return out
}

func (p Profile) spec() profileSpec {
	if int(p) >= len(profileSpecs) {
		return profileSpecs[ProfileDefault]
	}
	return profileSpecs[p]
}

func (p Profile) String() string {
	return p.spec().name
}

// Parts returns the ordered part list.
func (p Profile) Parts() []Part {
	return append([]Part(nil), p.spec().parts...)
}

// AnimationPreference lists animation set names to try, in order.
func (p Profile) AnimationPreference(part string) []string {
	return p.spec().animations(part)
}

func (p Profile) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Profile) UnmarshalText(text []byte) error {
	parsed, err := ParseProfile(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func fireIceConeOffset(part string, f float64) mgl64.Vec3 {
	if part != "helix_fire" && part != "helix_ice" {
		return mgl64.Vec3{0, 1.08, -0.24}
	}
	dir, shift := 1.0, 0.0
	if part == "helix_ice" {
		dir, shift = -1.0, math.Pi
	}
	phase := f*0.17*dir + shift
	return mgl64.Vec3{
		math.Cos(phase) * 0.24,
		0.95 + math.Sin(f*0.09+dir)*0.06,
		-0.24 + math.Sin(phase)*0.24,
	}
}

func fireIceConeYaw(part string, frame uint64) float64 {
	switch part {
	case "helix_fire":
		return float64(frame%360) * 2.1
	case "helix_ice":
		return -float64(frame%360) * 2.1
	default:
		return math.Sin(float64(frame)*0.04) * 12
	}
}

func stormCloudsOffset(part string, f float64) mgl64.Vec3 {
	switch part {
	case "cloud_a":
		phase := f * 0.010
		return mgl64.Vec3{math.Cos(phase) * 0.52, 2.24 + math.Sin(f*0.035)*0.04, -0.20 + math.Sin(phase)*0.30}
	case "cloud_b":
		phase := f*0.009 + 2.094
		return mgl64.Vec3{math.Cos(phase) * 0.46, 2.30 + math.Sin(f*0.030+0.9)*0.04, -0.14 + math.Sin(phase)*0.26}
	case "cloud_c":
		phase := f*0.008 + 4.188
		return mgl64.Vec3{math.Cos(phase) * 0.58, 2.20 + math.Sin(f*0.028+1.8)*0.04, -0.26 + math.Sin(phase)*0.32}
	case "sun_cloud":
		phase := f * 0.006
		return mgl64.Vec3{math.Cos(phase) * 0.18, 2.44 + math.Sin(f*0.026)*0.03, -0.74 + math.Sin(phase)*0.12}
	default:
		return mgl64.Vec3{0, 2.26 + math.Sin(f*0.03)*0.03, -0.20}
	}
}

func stormCloudsYaw(part string, frame uint64) float64 {
	spin := float64(frame % 360)
	switch part {
	case "sun_cloud":
		return 180 + math.Sin(float64(frame)*0.01)*8
	case "cloud_a":
		return spin * 0.45
	case "cloud_b":
		return 120 - spin*0.36
	case "cloud_c":
		return 240 + spin*0.30
	default:
		return spin * 0.40
	}
}

func wingwangSigilOffset(part string, f float64) mgl64.Vec3 {
	offset := mgl64.Vec3{0, 1.56 + math.Sin(f*0.11)*0.04, -0.58}
	switch part {
	case "inner":
		offset[0] = math.Cos(f*0.20) * 0.07
	case "mid":
		offset[0] = math.Cos(f*0.15+0.9) * 0.13
		offset[1] += 0.03
	case "outer":
		offset[0] = math.Cos(f*0.10+1.8) * 0.20
		offset[1] += 0.06
	}
	return offset
}

func fireworksShowOffset(part string, f float64) mgl64.Vec3 {
	if part == "launcher" {
		return mgl64.Vec3{math.Cos(f*0.08) * 0.10, 1.82, -0.18}
	}
	return mgl64.Vec3{
		math.Cos(f*0.16) * 0.22,
		2.48 + math.Sin(f*0.13)*0.08,
		-0.22 + math.Sin(f*0.16)*0.06,
	}
}
