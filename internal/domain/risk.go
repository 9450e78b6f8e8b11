package domain

import (
	"fmt"
	"strings"
)

// OperationRisk is the intrinsic danger of a command, independent of who asks.
// Values are totally ordered: ReadOnly < Low < Medium < High < Critical.
type OperationRisk int

const (
	RiskReadOnly OperationRisk = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

var riskNames = [...]string{"readonly", "low", "medium", "high", "critical"}
var riskLabels = [...]string{"ReadOnly", "Low", "Medium", "High", "Critical"}

// AllRisks lists every risk in ascending order.
func AllRisks() []OperationRisk {
	return []OperationRisk{RiskReadOnly, RiskLow, RiskMedium, RiskHigh, RiskCritical}
}

// Valid reports whether r is one of the defined risks.
func (r OperationRisk) Valid() bool {
	return r >= RiskReadOnly && r <= RiskCritical
}

// String returns the stable lowercase wire form (readonly|low|medium|high|critical).
func (r OperationRisk) String() string {
	if !r.Valid() {
		return fmt.Sprintf("risk(%d)", int(r))
	}
	return riskNames[r]
}

// Label returns the human-readable form used in reasons and prompts.
func (r OperationRisk) Label() string {
	if !r.Valid() {
		return r.String()
	}
	return riskLabels[r]
}

// MarshalText implements encoding.TextMarshaler.
func (r OperationRisk) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid operation risk %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *OperationRisk) UnmarshalText(text []byte) error {
	parsed, err := ParseOperationRisk(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseOperationRisk accepts the wire form or the label, case-insensitively.
func ParseOperationRisk(value string) (OperationRisk, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "readonly", "read_only", "read-only":
		return RiskReadOnly, nil
	case "low":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	case "critical":
		return RiskCritical, nil
	default:
		return RiskMedium, fmt.Errorf("unknown operation risk %q", value)
	}
}

// MaxRisk returns the more dangerous of a and b.
func MaxRisk(a, b OperationRisk) OperationRisk {
	if b > a {
		return b
	}
	return a
}

// ViolationKind names a security guard that fired. Guards deny regardless of tier.
type ViolationKind string

const (
	ViolationNone           ViolationKind = ""
	ViolationSelfInvocation ViolationKind = "self_invocation"
	ViolationManipulation   ViolationKind = "manipulation"
	ViolationTampering      ViolationKind = "tampering"
	ViolationLogClearing    ViolationKind = "log_clearing"
	// ViolationScope marks a working directory outside the permitted roots.
	// It is an ordinary policy denial, not a security block.
	ViolationScope ViolationKind = "scope"
)

// Security reports whether the violation is a security guard hit.
func (k ViolationKind) Security() bool {
	return k != ViolationNone && k != ViolationScope
}
