//go:build windows

package audit

import (
	"golang.org/x/sys/windows/svc/eventlog"

	"github.com/gtechsd/ganesha-go/internal/domain"
	"github.com/gtechsd/ganesha-go/internal/ports"
)

const eventSource = "Ganesha"

// EventLogSink writes events to the Windows Application log. The event id
// is the audit taxonomy id.
type EventLogSink struct {
	log *eventlog.Log
}

// NewSystemSink opens the Ganesha event source, registering it on first use.
func NewSystemSink() (ports.AuditSink, error) {
	l, err := eventlog.Open(eventSource)
	if err != nil {
		if installErr := eventlog.InstallAsEventCreate(eventSource, eventlog.Error|eventlog.Warning|eventlog.Info); installErr != nil {
			return nil, err
		}
		if l, err = eventlog.Open(eventSource); err != nil {
			return nil, err
		}
	}
	return &EventLogSink{log: l}, nil
}

func (s *EventLogSink) Name() string { return "eventlog" }

func (s *EventLogSink) Write(event domain.Event, line string) error {
	eid := uint32(event.ID())
	switch event.Level() {
	case domain.LevelCritical, domain.LevelError:
		return s.log.Error(eid, line)
	case domain.LevelWarning:
		return s.log.Warning(eid, line)
	default:
		return s.log.Info(eid, line)
	}
}

func (s *EventLogSink) Close() error { return s.log.Close() }
