package domain

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// EventID is the stable numeric identifier of an audit event kind. The
// hundreds band encodes severity: 10xx info, 11xx warning, 12xx error,
// 13xx critical.
type EventID uint32

const (
	EventDaemonStart     EventID = 1000
	EventDaemonStop      EventID = 1001
	EventCommandExecuted EventID = 1010
	EventCommandPlanned  EventID = 1011
	EventSessionStart    EventID = 1020
	EventSessionEnd      EventID = 1021

	EventHighRiskApproved   EventID = 1100
	EventConfigChanged      EventID = 1110
	EventAccessLevelChanged EventID = 1111
	EventElevatedAccessUsed EventID = 1130

	EventCommandDenied   EventID = 1200
	EventAccessViolation EventID = 1201
	EventExecutionFailed EventID = 1230
	EventTimeout         EventID = 1240

	EventManipulationDetected   EventID = 1300
	EventSelfInvocationBlocked  EventID = 1301
	EventSecurityBreachAttempt  EventID = 1310
	EventCriticalCommandBlocked EventID = 1320
	EventLogTamperingAttempt    EventID = 1330
)

var eventNames = map[EventID]string{
	EventDaemonStart:            "DaemonStart",
	EventDaemonStop:             "DaemonStop",
	EventCommandExecuted:        "CommandExecuted",
	EventCommandPlanned:         "CommandPlanned",
	EventSessionStart:           "SessionStart",
	EventSessionEnd:             "SessionEnd",
	EventHighRiskApproved:       "HighRiskApproved",
	EventConfigChanged:          "ConfigChanged",
	EventAccessLevelChanged:     "AccessLevelChanged",
	EventElevatedAccessUsed:     "ElevatedAccessUsed",
	EventCommandDenied:          "CommandDenied",
	EventAccessViolation:        "AccessViolation",
	EventExecutionFailed:        "ExecutionFailed",
	EventTimeout:                "Timeout",
	EventManipulationDetected:   "ManipulationDetected",
	EventSelfInvocationBlocked:  "SelfInvocationBlocked",
	EventSecurityBreachAttempt:  "SecurityBreachAttempt",
	EventCriticalCommandBlocked: "CriticalCommandBlocked",
	EventLogTamperingAttempt:    "LogTamperingAttempt",
}

// Valid reports whether id belongs to the closed taxonomy.
func (id EventID) Valid() bool {
	_, ok := eventNames[id]
	return ok
}

func (id EventID) String() string {
	if name, ok := eventNames[id]; ok {
		return name
	}
	return fmt.Sprintf("Event(%d)", uint32(id))
}

// Level derives the severity from the id band.
func (id EventID) Level() Level {
	switch {
	case id >= 1300:
		return LevelCritical
	case id >= 1200:
		return LevelError
	case id >= 1100:
		return LevelWarning
	default:
		return LevelInfo
	}
}

// Level is the audit severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLevel is the inverse of Level.String.
func ParseLevel(value string) (Level, error) {
	for l := LevelDebug; l <= LevelCritical; l++ {
		if l.String() == value {
			return l, nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown level %q", value)
}

// Event is an immutable audit record. Build one with NewEvent.
type Event struct {
	timestamp time.Time
	id        EventID
	level     Level
	message   string
	user      string
	command   string
	risk      OperationRisk
	hasRisk   bool
	allowed   bool
	hasAllow  bool
	reason    string
	session   string
}

func (e Event) Timestamp() time.Time { return e.timestamp }
func (e Event) ID() EventID          { return e.id }
func (e Event) Level() Level         { return e.level }
func (e Event) Message() string      { return e.message }
func (e Event) User() string         { return e.user }
func (e Event) Command() string      { return e.command }
func (e Event) Reason() string       { return e.reason }
func (e Event) SessionID() string    { return e.session }

// Risk returns the attached risk, if any.
func (e Event) Risk() (OperationRisk, bool) { return e.risk, e.hasRisk }

// Allowed returns the attached allow flag, if any.
func (e Event) Allowed() (bool, bool) { return e.allowed, e.hasAllow }

// EventBuilder accumulates optional fields before the event is sealed.
type EventBuilder struct {
	ev Event
}

// NewEvent starts an event with its level derived from the id.
func NewEvent(id EventID, message string) *EventBuilder {
	return &EventBuilder{ev: Event{
		timestamp: time.Now().UTC(),
		id:        id,
		level:     id.Level(),
		message:   message,
	}}
}

func (b *EventBuilder) At(ts time.Time) *EventBuilder {
	b.ev.timestamp = ts.UTC()
	return b
}

func (b *EventBuilder) User(user string) *EventBuilder {
	b.ev.user = user
	return b
}

// Command attaches the command, truncated to MaxLoggedCommandLength runes.
func (b *EventBuilder) Command(command string) *EventBuilder {
	b.ev.command = TruncateRunes(command, MaxLoggedCommandLength)
	return b
}

func (b *EventBuilder) Risk(risk OperationRisk) *EventBuilder {
	b.ev.risk = risk
	b.ev.hasRisk = true
	return b
}

func (b *EventBuilder) Allowed(allowed bool) *EventBuilder {
	b.ev.allowed = allowed
	b.ev.hasAllow = true
	return b
}

func (b *EventBuilder) Reason(reason string) *EventBuilder {
	b.ev.reason = reason
	return b
}

func (b *EventBuilder) Session(sessionID string) *EventBuilder {
	b.ev.session = sessionID
	return b
}

// Decision copies risk, allow flag and reason from a policy decision.
func (b *EventBuilder) Decision(d Decision) *EventBuilder {
	b.Risk(d.Risk).Allowed(d.Allowed)
	if d.Reason != "" {
		b.Reason(d.Reason)
	}
	return b
}

// Build returns the sealed event. The builder may not be reused afterwards.
func (b *EventBuilder) Build() Event {
	return b.ev
}

// TruncateRunes cuts s to at most n runes without splitting a UTF-8 sequence.
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
