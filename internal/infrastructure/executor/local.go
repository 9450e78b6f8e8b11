// Package executor runs approved commands in child processes.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/gtechsd/ganesha-go/internal/domain"
	"github.com/gtechsd/ganesha-go/internal/ports"
)

// waitDelay bounds how long Wait blocks on output pipes after the process
// has been killed.
const waitDelay = 2 * time.Second

// LocalExecutor runs commands through the host shell.
type LocalExecutor struct {
	shell    []string
	maxBytes int
}

// NewLocalExecutor builds a new executor. The shell defaults to /bin/sh -c,
// or cmd /C on Windows.
func NewLocalExecutor(shell ...string) *LocalExecutor {
	if len(shell) == 0 {
		if runtime.GOOS == "windows" {
			shell = []string{"cmd", "/C"}
		} else {
			shell = []string{"/bin/sh", "-c"}
		}
	}
	return &LocalExecutor{shell: shell, maxBytes: domain.MaxOutputBytes}
}

// Execute implements ports.CommandExecutor. A non-zero exit is reported in
// the result, not as an error. Errors mean the process could not be started
// or exceeded its timeout.
func (e *LocalExecutor) Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ProcessResult, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = domain.DefaultExecutionTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string(nil), e.shell[1:]...), req.Command)
	c := exec.CommandContext(runCtx, e.shell[0], args...)
	c.Dir = req.WorkingDir
	configureProcessGroup(c)
	c.WaitDelay = waitDelay

	stdout := &cappedBuffer{limit: e.maxBytes}
	stderr := &cappedBuffer{limit: e.maxBytes}
	c.Stdout = stdout
	c.Stderr = stderr

	start := time.Now()
	err := c.Run()
	result := domain.ProcessResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMS: time.Since(start).Milliseconds(),
		Truncated:  stdout.truncated || stderr.truncated,
		ExitCode:   -1,
	}
	if c.ProcessState != nil {
		result.ExitCode = c.ProcessState.ExitCode()
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		return result, fmt.Errorf("%w after %s", domain.ErrTimeout, timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("%w: %v", domain.ErrExecution, err)
	}
	return result, nil
}

// cappedBuffer keeps the first limit bytes and silently drops the rest so the
// child never blocks on a full pipe.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	room := b.limit - b.buf.Len()
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var _ ports.CommandExecutor = (*LocalExecutor)(nil)
