//go:build !windows && !plan9

package audit

import (
	"log/syslog"

	"github.com/gtechsd/ganesha-go/internal/domain"
	"github.com/gtechsd/ganesha-go/internal/ports"
)

// SyslogSink forwards events to the local syslog daemon under LOCAL0.
type SyslogSink struct {
	w *syslog.Writer
}

// NewSystemSink connects to the platform system log.
func NewSystemSink() (ports.AuditSink, error) {
	w, err := syslog.New(syslog.LOG_LOCAL0|syslog.LOG_INFO, "ganesha")
	if err != nil {
		return nil, err
	}
	return &SyslogSink{w: w}, nil
}

func (s *SyslogSink) Name() string { return "syslog" }

func (s *SyslogSink) Write(event domain.Event, line string) error {
	switch event.Level() {
	case domain.LevelCritical:
		return s.w.Crit(line)
	case domain.LevelError:
		return s.w.Err(line)
	case domain.LevelWarning:
		return s.w.Warning(line)
	case domain.LevelDebug:
		return s.w.Debug(line)
	default:
		return s.w.Info(line)
	}
}

func (s *SyslogSink) Close() error { return s.w.Close() }
