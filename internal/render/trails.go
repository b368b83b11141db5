package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"auravfx/server/internal/catalog"
)

// trail interpolates between the last drawn position and the current one
// so fast movement leaves an unbroken line. Standing still draws nothing.
func (e *emission) trail(def catalog.Definition) {
	tracker := e.f.Tracker
	current := e.f.Position
	steps := 2
	var previous mgl64.Vec3
	hasPrevious := tracker != nil && tracker.hasTrail
	if hasPrevious {
		previous = tracker.lastTrail
		delta := current.Sub(previous)
		if delta.Dot(delta) < trailMinMoveSq {
			return
		}
		steps = min(5, max(2, int(math.Ceil(delta.Len()/trailSampleSpacing))))
	}

	for step := 1; step <= steps; step++ {
		sample := current
		if hasPrevious {
			t := float64(step) / float64(steps)
			sample = previous.Add(current.Sub(previous).Mul(t))
		}
		e.trailSample(def, sample, e.f.Frame+uint64(step))
	}
	if tracker != nil {
		tracker.lastTrail, tracker.hasTrail = current, true
	}
}

func (e *emission) trailSample(def catalog.Definition, p mgl64.Vec3, frame uint64) {
	ff := float64(frame)
	baseY := p[1] + 0.24
	polar := func(phase, radius, y float64) {
		e.at(p[0]+math.Cos(phase)*radius, y, p[2]+math.Sin(phase)*radius)
	}

	switch def.RenderStyle {
	case "comet":
		phase := ff * 0.12
		polar(phase, 0.16, baseY+0.04)
		polar(phase+0.8, 0.13, baseY+0.03)
		polar(phase+1.4, 0.11, baseY+0.02)
		for tail := 1; tail <= 4; tail++ {
			polar(phase, -0.11*float64(tail), baseY+0.04-float64(tail)*0.015)
		}
	case "spark":
		sway := math.Sin(ff*0.14) * 0.12
		e.at(p[0]+sway, baseY+0.03, p[2])
		e.at(p[0]-sway, baseY+0.04, p[2])
		e.at(p[0], baseY+0.05, p[2]+sway)
		e.at(p[0], baseY+0.03, p[2]-sway)
		e.at(p[0]+sway*0.6, baseY+0.07, p[2]+sway*0.4)
		e.at(p[0]-sway*0.6, baseY+0.02, p[2]-sway*0.4)
	case "spiral":
		phase := ff * 0.19
		const radius = 0.20
		polar(phase, radius, baseY)
		polar(phase+math.Pi, radius, baseY+0.05)
		polar(phase+math.Pi/2, radius*0.75, baseY+0.03)
		polar(phase+math.Pi/3, radius*0.82, baseY+0.06)
		polar(phase+math.Pi*1.3, radius*0.90, baseY+0.01)
	case "supreme":
		phase := ff * 0.21
		for i := 0; i < 4; i++ {
			polar(phase+2*math.Pi*float64(i)/4, 0.24, baseY+float64(i)*0.03)
		}
		e.at(p[0], baseY+0.08, p[2])
		polar(phase+1.0, 0.16, baseY+0.12)
		polar(phase+2.7, 0.16, baseY+0.10)
	case "laser":
		phase := ff * 0.10
		for i := 0; i < 7; i++ {
			polar(phase+float64(i), 0.03+float64(i)*0.014, baseY+float64(i)*0.085)
		}
		e.at(p[0], baseY+0.30, p[2])
	case "icon":
		phase := ff * 0.11
		e.at(p[0], baseY+0.05, p[2])
		switch def.ID {
		case "star_trail", "money_trail", "death_trail":
			polar(phase, 0.16, baseY+0.03)
			polar(phase+2.1, 0.22, baseY+0.08)
			polar(phase+4.0, 0.18, baseY+0.06)
			polar(phase+5.0, 0.14, baseY+0.04)
			polar(phase+1.2, 0.12, baseY+0.09)
		default:
			polar(phase, 0.14, baseY+0.02)
			polar(phase+2.2, 0.18, baseY+0.06)
			polar(phase, -0.12, baseY+0.04)
			polar(phase+4.1, 0.10, baseY+0.03)
		}
	default:
		phase := ff * 0.14
		polar(phase, 0.1, baseY)
		polar(phase+math.Pi, 0.08, baseY+0.02)
		e.at(p[0], baseY+0.04, p[2])
	}
}

// footprints alternates feet, at most one print per interval and only
// after the player has moved.
func (e *emission) footprints() {
	tracker := e.f.Tracker
	if tracker == nil {
		return
	}
	if tracker.hasFootstep {
		delta := e.f.Position.Sub(tracker.lastFootstep)
		if delta.Dot(delta) < footprintMinMoveSq {
			return
		}
		if e.f.Now.Sub(tracker.lastStepAt) < footprintMinInterval {
			return
		}
	}

	side := -0.17
	if tracker.nextFootRight {
		side = 0.17
	}
	tracker.nextFootRight = !tracker.nextFootRight

	yaw := mgl64.DegToRad(e.f.Yaw)
	lateral := yaw + math.Pi/2
	e.offset(
		math.Cos(lateral)*side+math.Cos(yaw)*0.10,
		0.08,
		math.Sin(lateral)*side+math.Sin(yaw)*0.10,
	)
	tracker.lastFootstep, tracker.hasFootstep = e.f.Position, true
	tracker.lastStepAt = e.f.Now
}
