// Package audit records security-relevant events. Every event is rendered
// once by Format, chained into the SQLite store and forwarded to the platform
// system log, and mirrored to the trace logger.
package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gtechsd/ganesha-go/internal/domain"
	"github.com/gtechsd/ganesha-go/internal/ports"
)

// Logger implements ports.AuditLogger.
type Logger struct {
	store  ports.AuditRepository
	sinks  []ports.AuditSink
	trace  ports.Logger
	stderr io.Writer

	mu sync.Mutex
}

// Option customises a Logger.
type Option func(*Logger)

// WithStore chains events into a tamper-evident repository.
func WithStore(store ports.AuditRepository) Option {
	return func(l *Logger) { l.store = store }
}

// WithSink adds a durable sink such as syslog or the Windows event log.
func WithSink(sink ports.AuditSink) Option {
	return func(l *Logger) {
		if sink != nil {
			l.sinks = append(l.sinks, sink)
		}
	}
}

// WithTrace mirrors every event to the diagnostic logger.
func WithTrace(trace ports.Logger) Option {
	return func(l *Logger) { l.trace = trace }
}

// WithStderr overrides the last-resort writer used when every sink fails.
func WithStderr(w io.Writer) Option {
	return func(l *Logger) { l.stderr = w }
}

// NewLogger builds an audit logger from options.
func NewLogger(opts ...Option) *Logger {
	l := &Logger{stderr: os.Stderr}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log renders the event and writes it everywhere. It fails only when no
// durable destination accepted the event.
func (l *Logger) Log(ctx context.Context, event domain.Event) error {
	line := Format(event)

	l.mu.Lock()
	defer l.mu.Unlock()

	durable := 0
	var lastErr error
	if l.store != nil {
		if err := l.store.Append(ctx, event, line); err != nil {
			lastErr = fmt.Errorf("store: %w", err)
		} else {
			durable++
		}
	}
	for _, sink := range l.sinks {
		if err := sink.Write(event, line); err != nil {
			lastErr = fmt.Errorf("%s: %w", sink.Name(), err)
			continue
		}
		durable++
	}

	l.mirror(event, line)

	if durable == 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("no audit destination configured")
		}
		if l.trace != nil {
			l.trace.Error("audit event not persisted", lastErr, map[string]interface{}{"event": event.ID().String()})
		}
		if l.stderr != nil {
			fmt.Fprintf(l.stderr, "ganesha: AUDIT FAILURE: %s\n", line)
		}
		return fmt.Errorf("%w: %v", domain.ErrAuditUnavailable, lastErr)
	}
	return nil
}

// Close releases every sink.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var first error
	for _, sink := range l.sinks {
		if err := sink.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (l *Logger) mirror(event domain.Event, line string) {
	if l.trace == nil {
		return
	}
	fields := map[string]interface{}{"event": event.ID().String(), "line": line}
	switch event.Level() {
	case domain.LevelDebug, domain.LevelInfo:
		l.trace.Info("audit", fields)
	case domain.LevelWarning:
		l.trace.Warn("audit", fields)
	default:
		l.trace.Error("audit", nil, fields)
	}
}

var _ ports.AuditLogger = (*Logger)(nil)
