package domain

import "time"

// AuditRecord is a persisted audit event as read back from the store.
type AuditRecord struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	EventID   EventID   `json:"event_id"`
	Level     string    `json:"level"`
	Line      string    `json:"line"`
	Command   string    `json:"command,omitempty"`
	Session   string    `json:"session,omitempty"`
	PrevHash  string    `json:"prev_hash"`
	Hash      string    `json:"hash"`
}

// ChainReport is the result of verifying the audit hash chain.
type ChainReport struct {
	Records  int
	Valid    bool
	BrokenAt int64
	Detail   string
}

// DaemonStatus answers the cheap "is the endpoint bound" health check.
type DaemonStatus struct {
	Endpoint  string
	Reachable bool
	Detail    string
}
