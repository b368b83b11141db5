package render

import (
	"math"

	"auravfx/server/internal/catalog"
)

func (e *emission) floatingBadge(slot, total int) {
	ff := float64(e.f.Frame)
	phase := ff*0.020 + slotAngle(slot, total)
	radius := 0.40 + float64(spreadSlots(total))*0.05
	y := 2.18 + math.Sin(ff*0.02+float64(slot))*0.01
	e.carousel(phase, radius, y, 3, 0.20)
}

func (e *emission) trophyBadge(def catalog.Definition, slot, total int) {
	ff := float64(e.f.Frame)
	phase := ff*0.018 + slotAngle(slot, total)
	radius := 0.40
	if def.RenderStyle == "crown" {
		radius = 0.44
	}
	radius += float64(spreadSlots(total)) * 0.05
	y := 2.30 + math.Cos(ff*0.018+float64(slot))*0.01
	e.carousel(phase, radius, y, 4, 0.18)
	e.offset(0, y+0.04, 0)
}

// carousel emits a short arc trailing behind phase.
func (e *emission) carousel(phase, radius, y float64, samples int, step float64) {
	for i := 0; i < max(1, samples); i++ {
		fi := float64(i)
		sampleRadius := radius - fi*0.015
		e.offset(math.Cos(phase-step*fi)*sampleRadius, y-fi*0.005, math.Sin(phase-step*fi)*sampleRadius)
	}
}

func slotAngle(slot, total int) float64 {
	return 2 * math.Pi * float64(slot) / float64(max(1, total))
}

func spreadSlots(total int) int {
	return max(0, min(4, total-1))
}
