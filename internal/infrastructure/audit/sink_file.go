package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gtechsd/ganesha-go/internal/domain"
	"github.com/gtechsd/ganesha-go/internal/ports"
)

// FileSink appends timestamped lines to a private log file.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileSink opens path for appending, creating it with 0600 permissions.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.SecureDirPermissions); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, domain.SecureFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	return &FileSink{file: f}, nil
}

func (s *FileSink) Name() string { return "file" }

func (s *FileSink) Write(event domain.Event, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.file, "%s %s\n", event.Timestamp().Format(domain.TimestampFormat), line)
	return err
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

var _ ports.AuditSink = (*FileSink)(nil)
