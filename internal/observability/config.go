package observability

import "time"

const (
	minTelemetryStreamMS     = 100
	defaultTelemetryStreamMS = 1000
)

// Config captures opt-in observability toggles that wire into the HTTP
// surface.
type Config struct {
	// EnablePprofTrace mounts net/http/pprof under /debug/pprof/.
	EnablePprofTrace bool `json:"enablePprofTrace"`
	// TelemetryStreamMS is the push period of /ws/telemetry.
	TelemetryStreamMS int `json:"telemetryStreamMs"`
}

func Default() Config {
	return Config{TelemetryStreamMS: defaultTelemetryStreamMS}
}

func (c Config) Normalize() Config {
	if c.TelemetryStreamMS <= 0 {
		c.TelemetryStreamMS = defaultTelemetryStreamMS
	}
	c.TelemetryStreamMS = max(c.TelemetryStreamMS, minTelemetryStreamMS)
	return c
}

func (c Config) TelemetryStreamInterval() time.Duration {
	return time.Duration(c.TelemetryStreamMS) * time.Millisecond
}
