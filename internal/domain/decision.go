package domain

// Decision is the result of a single policy check. It is a value type and is
// never modified after the engine returns it.
type Decision struct {
	Allowed      bool          `json:"allowed"`
	Risk         OperationRisk `json:"risk"`
	AutoApproved bool          `json:"auto_approved"`
	Reason       string        `json:"reason"`
	Violation    ViolationKind `json:"violation,omitempty"`
	MatchedRule  string        `json:"matched_rule,omitempty"`
}

// RequiresConsent reports whether the caller must obtain consent before running.
func (d Decision) RequiresConsent() bool {
	return d.Allowed && !d.AutoApproved
}

// SecurityBlock distinguishes guard hits and Critical denials from ordinary
// tier throttling.
func (d Decision) SecurityBlock() bool {
	if d.Allowed {
		return false
	}
	return d.Violation.Security() || d.Risk == RiskCritical
}

// DenialEvent picks the audit event for a denied decision. Guard hits map to
// their dedicated critical events; tier-denied Critical commands get their
// own event so they stand out from routine throttling.
func DenialEvent(d Decision) EventID {
	switch d.Violation {
	case ViolationSelfInvocation:
		return EventSelfInvocationBlocked
	case ViolationManipulation:
		return EventManipulationDetected
	case ViolationTampering:
		return EventSecurityBreachAttempt
	case ViolationLogClearing:
		return EventLogTamperingAttempt
	case ViolationScope:
		return EventAccessViolation
	}
	if d.Risk == RiskCritical {
		return EventCriticalCommandBlocked
	}
	return EventCommandDenied
}
