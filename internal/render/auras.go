package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"auravfx/server/internal/catalog"
)

var angelWingCurve = [...][3]float64{
	{0.16, 0.30, 0.04},
	{0.30, 0.24, 0.08},
	{0.44, 0.16, 0.12},
	{0.54, 0.06, 0.17},
	{0.50, -0.04, 0.22},
	{0.34, -0.12, 0.24},
}

func (e *emission) aura(def catalog.Definition) {
	frame := e.f.Frame
	ff := float64(frame)
	switch {
	case def.ID == "angel_wings":
		if frame%2 != 0 {
			return
		}
		e.angelWings(frame)
	case def.ID == "ember_halo":
		if frame%3 != 0 {
			return
		}
		phase := ff * 0.08
		const centerY = 1.48
		e.ring(8, phase, 0.52, centerY)
		for i := 0; i < 6; i++ {
			angle := -phase + 2*math.Pi*float64(i)/6
			e.offset(math.Cos(angle)*0.40, centerY+0.28, math.Sin(angle)*0.40)
			e.offset(math.Cos(angle+math.Pi/6)*0.40, centerY-0.28, math.Sin(angle+math.Pi/6)*0.40)
		}
		if frame%9 == 0 {
			e.offset(0, centerY+0.48, 0)
			e.offset(0, centerY-0.48, 0)
		}
	case def.ID == "void_orbit":
		if frame%2 != 0 {
			return
		}
		outer, inner := ff*0.16, -ff*0.11
		for i := 0; i < 7; i++ {
			angle := outer + 2*math.Pi*float64(i)/7
			radius := 0.42 + math.Sin(outer+float64(i))*0.06
			lift := 0.0
			if i%2 == 0 {
				lift = 0.02
			}
			e.offset(math.Cos(angle)*radius, 0.14+lift, math.Sin(angle)*radius)
		}
		e.ring(3, inner, 0.25, 0.18)
	case def.ID == "heart_bloom":
		if frame%2 != 0 {
			return
		}
		phase := ff * 0.15
		const points = 9
		for i := 0; i < points; i++ {
			t := float64(i) / (points - 1)
			angle := phase + t*math.Pi*2*2.2
			radius := 0.30 + math.Sin(phase+t*4)*0.04
			y := 0.22 + t*1.95
			e.offset(math.Cos(angle)*radius, y, math.Sin(angle)*radius)
			e.offset(math.Cos(angle+math.Pi)*radius, y, math.Sin(angle+math.Pi)*radius)
		}
		e.offset(0, 2.20, 0)
	case def.ID == "fire_ice_cone" || def.RenderStyle == "cone":
		if frame%2 != 0 {
			return
		}
		phase := ff * 0.18
		const layers = 6
		for i := 0; i < layers; i++ {
			t := float64(i) / (layers - 1)
			radius := 0.12 + 0.34*t
			localY := 0.28 + 1.65*t
			swirl := phase + t*1.6
			e.rotated(math.Cos(swirl)*radius, localY, -0.18+math.Sin(swirl)*radius)
			e.rotated(math.Cos(swirl+math.Pi)*radius, localY, -0.18+math.Sin(swirl+math.Pi)*radius)
		}
		if frame%8 == 0 {
			e.rotated(0, 2.03, -0.20)
		}
	case def.ID == "storm_clouds" || def.RenderStyle == "storm":
		if frame%2 != 0 {
			return
		}
		e.storm(frame)
	case def.ID == "wingwang_sigil" || def.RenderStyle == "sigil":
		if frame%2 != 0 {
			return
		}
		phase := ff * 0.17
		for i := 0; i < 3; i++ {
			angle := phase + 2*math.Pi*float64(i)/3
			e.rotated(math.Cos(angle)*0.30, 1.50+math.Sin(phase+float64(i))*0.05, -0.18+math.Sin(angle)*0.10)
		}
		e.rotated(0, 1.56+math.Sin(phase*1.5)*0.06, -0.22)
		if frame%6 == 0 {
			e.rotated(0, 1.30, -0.18)
		}
	case def.ID == "fireworks_show" || def.RenderStyle == "fireworks":
		if frame%3 != 0 {
			return
		}
		phase := ff * 0.11
		e.offset(math.Cos(phase*0.7)*0.18, 1.96, math.Sin(phase*0.7)*0.18)
		if frame%12 == 0 {
			burstY := 2.58 + math.Sin(phase*0.9)*0.10
			const points = 8
			for i := 0; i < points; i++ {
				angle := phase + 2*math.Pi*float64(i)/points
				radius := 0.32
				if i%2 == 0 {
					radius = 0.38
				}
				e.offset(math.Cos(angle)*radius, burstY+math.Sin(angle*2)*0.10, math.Sin(angle)*radius)
			}
			e.offset(0, burstY+0.16, 0)
		}
	case def.RenderStyle == "wings":
		flap := math.Sin(ff*0.35) * 0.18
		e.offset(-0.55, 1.55+flap, -0.2)
		e.offset(0.55, 1.55+flap, -0.2)
		e.offset(-0.35, 1.2-flap, -0.05)
		e.offset(0.35, 1.2-flap, -0.05)
	case def.RenderStyle == "hearts":
		bob := math.Sin(ff*0.20) * 0.12
		e.offset(-0.22, 2.0+bob, 0)
		e.offset(0.22, 2.0+bob, 0)
		e.offset(0, 2.2+bob, 0)
	default:
		e.ring(3, ff*0.22, 0.75, 1.8)
	}
}

func (e *emission) angelWings(frame uint64) {
	const scale = 2.0
	flap := math.Sin(float64(frame)*0.11) * 0.10
	yaw := mgl64.DegToRad(e.f.Yaw)
	forwardX, forwardZ := math.Cos(yaw), math.Sin(yaw)
	rightX, rightZ := math.Cos(yaw+math.Pi/2), math.Sin(yaw+math.Pi/2)

	for _, point := range angelWingCurve {
		wingY := 1.46 + point[1]*scale + flap*(0.3+point[0])
		depth := -(0.20 + point[2]*scale)
		for _, direction := range [...]float64{-1, 1} {
			lateral := point[0] * scale * direction
			e.offset(rightX*lateral+forwardX*depth, wingY, rightZ*lateral+forwardZ*depth)
		}
	}
	if frame%5 == 0 {
		for _, direction := range [...]float64{-1, 1} {
			lateral := 0.10 * scale * direction
			dx := rightX*lateral - forwardX*0.26
			dz := rightZ*lateral - forwardZ*0.26
			e.offset(dx, 1.56+flap*0.25, dz)
			e.offset(dx, 1.34+flap*0.15, dz)
		}
	}
}

func (e *emission) storm(frame uint64) {
	ff := float64(frame)
	phase := ff * 0.13
	cloudY := 2.24 + math.Sin(ff*0.06)*0.03
	for i := 0; i < 6; i++ {
		angle := phase + 2*math.Pi*float64(i)/6
		radius := 0.24
		if i%2 == 0 {
			radius = 0.27
		}
		e.offset(math.Cos(angle)*radius, cloudY+math.Sin(phase+float64(i))*0.03, math.Sin(angle)*radius)
	}
	for i := 0; i < 3; i++ {
		n := phase + float64(i)*2.15
		drop := float64((frame+uint64(i)*2)%5) * 0.15
		e.offset(math.Sin(n)*0.22, 1.88-drop, math.Cos(n*1.13)*0.22)
	}
	// bolt under the cloud cap
	if frame%10 == 0 {
		strikeX, strikeZ := math.Sin(phase*1.7)*0.09, math.Cos(phase*1.7)*0.09
		for step := 0; step < 4; step++ {
			e.offset(strikeX, 2.10-float64(step)*0.30, strikeZ)
		}
	}
}

type premiumTier struct {
	gate        uint64
	points      int
	radius      float64
	wobble      float64
	centerEvery uint64
	phaseSpeed  float64
}

var premiumTiers = map[string]premiumTier{
	"vip_plus_aura": {gate: 5, points: 5, radius: 0.26, wobble: 0.012, centerEvery: 16, phaseSpeed: 0.045},
	"mvp_aura":      {gate: 4, points: 6, radius: 0.28, wobble: 0.012, centerEvery: 14, phaseSpeed: 0.050},
	"mvp_plus_aura": {gate: 3, points: 7, radius: 0.30, wobble: 0.014, centerEvery: 12, phaseSpeed: 0.055},
}

var basePremiumTier = premiumTier{gate: 6, points: 4, radius: 0.24, wobble: 0.012, centerEvery: 18, phaseSpeed: 0.040}

func (e *emission) premiumAura(def catalog.Definition) {
	frame := e.f.Frame
	tier, ranked := premiumTiers[def.ID]
	if !ranked {
		tier = basePremiumTier
	}
	if !ranked && def.ID != "vip_aura" && def.RenderStyle != "crown" {
		phase := float64(frame) * 0.06
		e.offset(math.Cos(phase)*0.34, 2.0, math.Sin(phase)*0.34)
		return
	}
	if frame%tier.gate != 0 {
		return
	}
	phase := float64(frame) * tier.phaseSpeed
	for i := 0; i < tier.points; i++ {
		angle := phase + 2*math.Pi*float64(i)/float64(tier.points)
		e.offset(math.Cos(angle)*tier.radius, 2.02+math.Sin(phase+float64(i))*tier.wobble, math.Sin(angle)*tier.radius)
	}
	if frame%tier.centerEvery == 0 {
		e.offset(0, 2.14, 0)
	}
}
