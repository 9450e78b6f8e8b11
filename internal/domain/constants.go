package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
	// SecureDirPermissions is used for the sandbox and audit directories (rwx------)
	SecureDirPermissions = 0o700
	// SocketPermissions restricts the daemon endpoint to owner and group (rw-rw----)
	SocketPermissions = 0o660
)

// Timeout and duration constants
const (
	// DefaultExecutionTimeout bounds a request that did not supply one
	DefaultExecutionTimeout = 300 * time.Second
	// RequestReadTimeout bounds how long a client may take to send its request line
	RequestReadTimeout = 10 * time.Second
	// ResponseWriteTimeout bounds delivery of the response
	ResponseWriteTimeout = 10 * time.Second
	// DialTimeout bounds a single connection attempt to the daemon
	DialTimeout = 3 * time.Second
)

// Limit constants
const (
	// MaxLoggedCommandLength is the rune limit for commands in audit records
	MaxLoggedCommandLength = 500
	// MaxRequestBytes caps the size of one request line
	MaxRequestBytes = 1 << 20
	// MaxOutputBytes caps each captured output stream
	MaxOutputBytes = 1 << 20
	// SessionPrefixLength is how much of a session id is printed in log lines
	SessionPrefixLength = 8
)

// Audit constants
const (
	// DefaultAuditLimit is the default number of audit events to display
	DefaultAuditLimit = 20
	// DefaultAuditSearchLimit is the default number of search results to return
	DefaultAuditSearchLimit = 50
)

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339
)
