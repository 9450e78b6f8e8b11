package security

import (
	"regexp"

	"github.com/gtechsd/ganesha-go/internal/domain"
	"github.com/gtechsd/ganesha-go/internal/ports"
)

// Guard implements ports.SecurityGuard. Its tables are fixed at build time and
// cannot be relaxed by configuration.
type Guard struct {
	tables []guardTable
	text   guardTable
}

type guardTable struct {
	kind     domain.ViolationKind
	reason   string
	patterns []*regexp.Regexp
}

var (
	selfInvokePatterns = compile(
		`(?i)\bganesha\s+.*--auto\b`,
		`\b(?i:ganesha)\s+(?:.*\s)?-A\b`,
		`(?i)\bganesha\s+.*--yes\b`,
		`(?i)\bganesha\s+(?:.*\s)?-y\b`,
		`(?i)\bganesha\s+tier\s+set\s+(?:yolo|all|a)\b`,
		`(?i)\bganesha(?:-daemon)?\s+.*--tier[=\s]+(?:yolo|all)\b`,
		`(?i)\bganesha-daemon\s+.*--level\s+full\b`,
		`(?i)\bganesha-config\s+.*set-level\s+full\b`,
		`(?i)\bganesha-config\s+.*reset\b`,
	)
	tamperPatterns = compile(
		`(?i)(?:\b(?:rm|mv|cp|chmod|chown|chattr|truncate|shred|tee|ln)\b|\bsed\s+-i|>).*(?:\.ganesha\b|/etc/ganesha\b|/var/log/ganesha\b|/var/run/ganesha\b)`,
	)
	logClearPatterns = compile(
		`(?i)(?:\brm\b|\btruncate\b|/dev/null\s*>).*(?:/var/log/syslog|/var/log/messages|/var/log/auth\.log)`,
		`(?i)>\s*/var/log/(?:syslog|messages|auth\.log)\b`,
		`(?i)\bjournalctl\s+.*--(?:vacuum|rotate)`,
		`(?i)\bwevtutil(?:\.exe)?\s+cl\b`,
		`(?i)\bClear-EventLog\b`,
		`(?i)\blog\s+erase\b`,
	)
	manipulationPatterns = compile(
		`(?i)ignore\s+(?:all\s+)?(?:previous|prior|above)\s+(?:instructions?|rules?)`,
		`(?i)disregard\s+(?:the\s+)?(?:safety|security|restrictions?)`,
		`(?i)pretend\s+(?:you\s+)?(?:are|can|have)`,
		`(?i)bypass\s+(?:the\s+)?(?:safety|security|consent)`,
		`(?i)override\s+(?:the\s+)?(?:safety|security|consent)`,
		`(?i)automatically\s+(?:approve|accept|allow|run)`,
		`(?i)without\s+(?:asking|confirmation|consent)`,
		`(?i)skip\s+(?:the\s+)?(?:confirmation|consent|approval)`,
		`(?i)trust\s+me`,
		`(?i)i(?:'m|\s+am)\s+(?:the\s+)?(?:admin|root|authorized)`,
		`(?i)emergency\s+(?:override|access|mode)`,
	)
)

// NewGuard builds the guard with its fixed tables.
func NewGuard() *Guard {
	manipulation := guardTable{
		kind:     domain.ViolationManipulation,
		reason:   "manipulation indicator detected",
		patterns: manipulationPatterns,
	}
	return &Guard{
		tables: []guardTable{
			{kind: domain.ViolationSelfInvocation, reason: "self-invocation with a policy bypass flag", patterns: selfInvokePatterns},
			{kind: domain.ViolationTampering, reason: "modification of ganesha configuration or logs", patterns: tamperPatterns},
			{kind: domain.ViolationLogClearing, reason: "attempt to clear system logs", patterns: logClearPatterns},
			manipulation,
		},
		text: manipulation,
	}
}

// InspectCommand implements ports.SecurityGuard.
func (g *Guard) InspectCommand(command string) (ports.GuardFinding, bool) {
	for _, table := range g.tables {
		if finding, ok := table.match(command); ok {
			return finding, true
		}
	}
	return ports.GuardFinding{}, false
}

// InspectText implements ports.SecurityGuard.
func (g *Guard) InspectText(text string) (ports.GuardFinding, bool) {
	return g.text.match(text)
}

func (t guardTable) match(text string) (ports.GuardFinding, bool) {
	for _, re := range t.patterns {
		if re.MatchString(text) {
			return ports.GuardFinding{Kind: t.kind, Reason: t.reason, Pattern: re.String()}, true
		}
	}
	return ports.GuardFinding{}, false
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

var _ ports.SecurityGuard = (*Guard)(nil)
