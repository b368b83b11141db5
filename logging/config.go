package logging

import "time"

// Config controls which sinks receive events and how the router buffers them.
type Config struct {
	EnabledSinks     []string
	BufferSize       int
	MinimumSeverity  Severity
	Fields           map[string]any
	JSON             JSONConfig
	Logrus           LogrusConfig
	DropWarnInterval time.Duration
}

type JSONConfig struct {
	FilePath      string
	FlushInterval time.Duration
}

// LogrusConfig mirrors the LOG_FORMAT / LOG_LEVEL knobs of the console sink.
type LogrusConfig struct {
	Format string
	Level  string
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{"logrus"},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			FlushInterval: 2 * time.Second,
		},
		Logrus: LogrusConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.EnabledSinks {
		if s == name {
			return true
		}
	}
	return false
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}

// ParseSeverity maps a level name onto a Severity. Unknown names report false.
func ParseSeverity(raw string) (Severity, bool) {
	switch raw {
	case "debug", "trace":
		return SeverityDebug, true
	case "info", "":
		return SeverityInfo, true
	case "warn", "warning":
		return SeverityWarn, true
	case "error", "fatal", "panic":
		return SeverityError, true
	default:
		return SeverityInfo, false
	}
}
