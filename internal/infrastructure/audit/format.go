package audit

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/gtechsd/ganesha-go/internal/domain"
)

const linePrefix = "GANESHA["

// Format renders an event as a single syslog-style line. Field order is fixed
// and absent optional fields are omitted. The timestamp is left to the sink.
func Format(e domain.Event) string {
	var b strings.Builder
	b.WriteString(linePrefix)
	b.WriteString(strconv.FormatUint(uint64(e.ID()), 10))
	b.WriteString("] level=")
	b.WriteString(e.Level().String())

	if user := e.User(); user != "" {
		b.WriteString(" user=")
		b.WriteString(sanitizeBare(user))
	}
	if cmd := e.Command(); cmd != "" {
		b.WriteString(` cmd="`)
		b.WriteString(escapeQuoted(cmd))
		b.WriteByte('"')
	}
	if risk, ok := e.Risk(); ok {
		b.WriteString(" risk=")
		b.WriteString(risk.String())
	}
	if allowed, ok := e.Allowed(); ok {
		b.WriteString(" allowed=")
		if allowed {
			b.WriteString("yes")
		} else {
			b.WriteString("no")
		}
	}
	if reason := e.Reason(); reason != "" {
		b.WriteString(` reason="`)
		b.WriteString(escapeQuoted(reason))
		b.WriteByte('"')
	}
	if session := e.SessionID(); session != "" {
		b.WriteString(" session=")
		b.WriteString(sanitizeBare(domain.TruncateRunes(session, domain.SessionPrefixLength)))
	}
	b.WriteString(" msg=")
	b.WriteString(escapeMessage(e.Message()))
	return b.String()
}

// Parse reverses Format. The timestamp is not part of the line and is left
// zero-valued on the returned event.
func Parse(line string) (domain.Event, error) {
	if !strings.HasPrefix(line, linePrefix) {
		return domain.Event{}, errors.New("missing GANESHA prefix")
	}
	rest := line[len(linePrefix):]
	end := strings.IndexByte(rest, ']')
	if end <= 0 {
		return domain.Event{}, errors.New("malformed event id")
	}
	raw, err := strconv.ParseUint(rest[:end], 10, 32)
	if err != nil {
		return domain.Event{}, fmt.Errorf("event id: %w", err)
	}
	id := domain.EventID(raw)
	if !id.Valid() {
		return domain.Event{}, fmt.Errorf("unknown event id %d", raw)
	}
	rest = rest[end+1:]

	var (
		fields  = map[string]string{}
		message string
		gotMsg  bool
	)
	for len(rest) > 0 && !gotMsg {
		rest = strings.TrimLeft(rest, " ")
		eq := strings.IndexByte(rest, '=')
		if eq <= 0 {
			return domain.Event{}, fmt.Errorf("malformed field near %q", rest)
		}
		key := rest[:eq]
		rest = rest[eq+1:]
		if key == "msg" {
			message = unescape(rest)
			gotMsg = true
			break
		}
		var value string
		if strings.HasPrefix(rest, `"`) {
			value, rest, err = readQuoted(rest[1:])
			if err != nil {
				return domain.Event{}, fmt.Errorf("field %s: %w", key, err)
			}
		} else {
			sp := strings.IndexByte(rest, ' ')
			if sp < 0 {
				sp = len(rest)
			}
			value, rest = rest[:sp], rest[sp:]
		}
		fields[key] = value
	}
	if !gotMsg {
		return domain.Event{}, errors.New("missing msg field")
	}

	level, err := domain.ParseLevel(fields["level"])
	if err != nil {
		return domain.Event{}, err
	}
	if level != id.Level() {
		return domain.Event{}, fmt.Errorf("level %s does not match event %s", level, id)
	}

	b := domain.NewEvent(id, message).At(time.Time{})
	if v, ok := fields["user"]; ok {
		b.User(v)
	}
	if v, ok := fields["cmd"]; ok {
		b.Command(v)
	}
	if v, ok := fields["risk"]; ok {
		risk, err := domain.ParseOperationRisk(v)
		if err != nil {
			return domain.Event{}, err
		}
		b.Risk(risk)
	}
	if v, ok := fields["allowed"]; ok {
		switch v {
		case "yes":
			b.Allowed(true)
		case "no":
			b.Allowed(false)
		default:
			return domain.Event{}, fmt.Errorf("allowed must be yes or no, got %q", v)
		}
	}
	if v, ok := fields["reason"]; ok {
		b.Reason(v)
	}
	if v, ok := fields["session"]; ok {
		b.Session(v)
	}
	return b.Build(), nil
}

// escapeQuoted keeps a value inside its quotes and on one line.
func escapeQuoted(s string) string {
	return escape(s, true)
}

func escapeMessage(s string) string {
	return escape(s, false)
}

// escape encodes backslashes, control characters and the Unicode line and
// paragraph separators, which some syslog readers treat as line breaks.
func escape(s string, quoted bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '"' && quoted:
			b.WriteString(`\"`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case unicode.IsControl(r) || r == '\u2028' || r == '\u2029':
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// sanitizeBare makes an unquoted value safe: no spaces, quotes, equals signs
// or control characters.
func sanitizeBare(s string) string {
	return strings.Map(func(r rune) rune {
		if r <= ' ' || r == '"' || r == '=' || r == '\\' || unicode.IsControl(r) || r == '\u2028' || r == '\u2029' {
			return '_'
		}
		return r
	}, s)
}

func readQuoted(s string) (value, rest string, err error) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return unescape(s[:i]), s[i+1:], nil
		}
	}
	return "", "", errors.New("unterminated quote")
}

func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'u':
			if i+4 < len(s) {
				if code, err := strconv.ParseUint(s[i+1:i+5], 16, 32); err == nil {
					b.WriteRune(rune(code))
					i += 4
					continue
				}
			}
			b.WriteByte(s[i])
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
