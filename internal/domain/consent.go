package domain

// BatchConsent is the answer to a plan review. The zero value is Cancel so
// that an unset answer never proceeds.
type BatchConsent int

const (
	BatchCancel BatchConsent = iota
	BatchApproveAll
	BatchApproveSingle
)

func (c BatchConsent) String() string {
	switch c {
	case BatchApproveAll:
		return "approve_all"
	case BatchApproveSingle:
		return "approve_single"
	default:
		return "cancel"
	}
}

// ConsentOutcome is what gets written to the audit log for a consent step.
type ConsentOutcome string

const (
	ConsentApproved  ConsentOutcome = "approved"
	ConsentDenied    ConsentOutcome = "denied"
	ConsentCancelled ConsentOutcome = "cancelled"
	ConsentAuto      ConsentOutcome = "auto"
)
