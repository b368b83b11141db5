package runtime

import (
	"context"

	"auravfx/server/logging"
)

const (
	// EventStarted is emitted when a render loop starts.
	EventStarted logging.EventType = "runtime.started"
	// EventStopped is emitted when the runtime stops and clears all rigs.
	EventStopped logging.EventType = "runtime.stopped"
	// EventReloaded is emitted after configuration and catalog were reapplied.
	EventReloaded logging.EventType = "runtime.reloaded"
	// EventTickFailed is emitted when a tick panics or returns an error. The tick is skipped.
	EventTickFailed logging.EventType = "runtime.tick_failed"
)

type LoopPayload struct {
	Loop       string `json:"loop"`
	IntervalMS int64  `json:"intervalMs"`
}

func Started(ctx context.Context, pub logging.Publisher, payload LoopPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStarted,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryRuntime,
		Payload:  payload,
	})
}

type StoppedPayload struct {
	RigsCleared int `json:"rigsCleared"`
}

func Stopped(ctx context.Context, pub logging.Publisher, payload StoppedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStopped,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryRuntime,
		Payload:  payload,
	})
}

type ReloadedPayload struct {
	Cosmetics       int  `json:"cosmetics"`
	ParticlesActive bool `json:"particlesActive"`
	ModelsActive    bool `json:"modelsActive"`
}

func Reloaded(ctx context.Context, pub logging.Publisher, payload ReloadedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventReloaded,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryRuntime,
		Payload:  payload,
	})
}

// TickFailedPayload describes a recovered tick failure.
type TickFailedPayload struct {
	Loop  string `json:"loop"`
	World string `json:"world,omitempty"`
	Error string `json:"error"`
}

// TickFailed publishes an error event for a tick that was skipped.
func TickFailed(ctx context.Context, pub logging.Publisher, tick uint64, payload TickFailedPayload) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventTickFailed,
		Tick:     tick,
		Severity: logging.SeverityError,
		Category: logging.CategoryRuntime,
		Payload:  payload,
	}
	if payload.World != "" {
		event.Actor = logging.WorldRef(payload.World)
	}
	pub.Publish(ctx, event)
}
