package domain

import (
	"fmt"
	"strings"
)

// TrustTier is the user-selected operating mode. Each tier defines which risks
// may run at all and which run without a consent step.
type TrustTier int

const (
	TierSafe TrustTier = iota
	TierNormal
	TierTrusted
	TierYolo
)

var tierNames = [...]string{"safe", "normal", "trusted", "yolo"}
var tierLabels = [...]string{"Safe", "Normal", "Trusted", "Yolo"}

// AllTiers lists the tiers from most to least cautious.
func AllTiers() []TrustTier {
	return []TrustTier{TierSafe, TierNormal, TierTrusted, TierYolo}
}

// Allows reports whether an operation of the given risk may ever proceed.
func (t TrustTier) Allows(r OperationRisk) bool {
	switch t {
	case TierSafe:
		return r == RiskReadOnly
	case TierNormal:
		return r <= RiskLow
	case TierTrusted:
		return r <= RiskMedium
	case TierYolo:
		return r.Valid()
	default:
		return false
	}
}

// AutoApproves reports whether the risk needs no consent step. Critical is
// never auto-approved, not even under Yolo.
func (t TrustTier) AutoApproves(r OperationRisk) bool {
	if r >= RiskCritical {
		return false
	}
	switch t {
	case TierSafe, TierNormal:
		return r == RiskReadOnly
	case TierTrusted:
		return r <= RiskMedium
	case TierYolo:
		return r.Valid()
	default:
		return false
	}
}

func (t TrustTier) Valid() bool {
	return t >= TierSafe && t <= TierYolo
}

func (t TrustTier) String() string {
	if !t.Valid() {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

// Label is the capitalised name used in denial reasons.
func (t TrustTier) Label() string {
	if !t.Valid() {
		return t.String()
	}
	return tierLabels[t]
}

// Description is a one-line summary for `tier show`.
func (t TrustTier) Description() string {
	switch t {
	case TierSafe:
		return "read-only inspection only, nothing else runs"
	case TierNormal:
		return "low-risk commands allowed, anything beyond read-only asks first"
	case TierTrusted:
		return "up to medium risk runs without asking"
	case TierYolo:
		return "everything allowed, critical commands still ask"
	default:
		return "unknown tier"
	}
}

func (t TrustTier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid trust tier %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *TrustTier) UnmarshalText(text []byte) error {
	parsed, err := ParseTrustTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTrustTier accepts tier names case-insensitively plus a few aliases.
func ParseTrustTier(value string) (TrustTier, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "safe", "readonly":
		return TierSafe, nil
	case "normal", "default":
		return TierNormal, nil
	case "trusted":
		return TierTrusted, nil
	case "yolo", "all", "a":
		return TierYolo, nil
	default:
		return TierNormal, fmt.Errorf("unknown trust tier %q (expected safe|normal|trusted|yolo)", value)
	}
}
