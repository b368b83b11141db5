package sinks

import (
	"context"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"auravfx/server/logging"
)

// Logrus writes events as leveled log lines through a logrus logger.
type Logrus struct {
	logger *logrus.Logger
}

// NewLogrus builds a console sink. Format "json" selects the JSON
// formatter; anything else uses the text formatter with full timestamps.
func NewLogrus(w io.Writer, cfg logging.LogrusConfig) *Logrus {
	logger := logrus.New()
	if w != nil {
		logger.SetOutput(w)
	}
	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return &Logrus{logger: logger}
}

// NewLogrusFrom reuses an existing logger, typically the process logger.
func NewLogrusFrom(logger *logrus.Logger) *Logrus {
	return &Logrus{logger: logger}
}

func (s *Logrus) Write(event logging.Event) error {
	if s == nil || s.logger == nil {
		return nil
	}
	fields := logrus.Fields{
		"tick": event.Tick,
	}
	if event.Category != "" {
		fields["category"] = event.Category
	}
	if actor := formatEntity(event.Actor); actor != "" {
		fields["actor"] = actor
	}
	if len(event.Targets) > 0 {
		targets := make([]string, 0, len(event.Targets))
		for _, target := range event.Targets {
			targets = append(targets, formatEntity(target))
		}
		fields["targets"] = strings.Join(targets, ",")
	}
	if event.Payload != nil {
		fields["payload"] = event.Payload
	}
	for k, v := range event.Extra {
		fields[k] = v
	}
	entry := s.logger.WithFields(fields).WithTime(event.Time)
	entry.Log(toLogrusLevel(event.Severity), string(event.Type))
	return nil
}

func (s *Logrus) Close(context.Context) error {
	return nil
}

func toLogrusLevel(sev logging.Severity) logrus.Level {
	switch sev {
	case logging.SeverityDebug:
		return logrus.DebugLevel
	case logging.SeverityWarn:
		return logrus.WarnLevel
	case logging.SeverityError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func formatEntity(ref logging.EntityRef) string {
	if ref.ID == "" {
		return string(ref.Kind)
	}
	if ref.Kind == "" {
		return ref.ID
	}
	return string(ref.Kind) + ":" + ref.ID
}
