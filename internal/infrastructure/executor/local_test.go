//go:build !windows

package executor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtechsd/ganesha-go/internal/domain"
)

func TestExecuteCapturesOutput(t *testing.T) {
	exec := NewLocalExecutor()
	res, err := exec.Execute(context.Background(), domain.ExecutionRequest{Command: "echo out; echo err 1>&2"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.Equal(t, "out\nerr\n", res.Combined())
}

func TestExecuteReportsExitCode(t *testing.T) {
	res, err := NewLocalExecutor().Execute(context.Background(), domain.ExecutionRequest{Command: "exit 3"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
}

func TestExecuteUsesWorkingDir(t *testing.T) {
	dir := t.TempDir()
	res, err := NewLocalExecutor().Execute(context.Background(), domain.ExecutionRequest{Command: "pwd -P", WorkingDir: dir})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(res.Stdout), strings.TrimPrefix(dir, "/private")))
}

func TestExecuteTimesOut(t *testing.T) {
	start := time.Now()
	res, err := NewLocalExecutor().Execute(context.Background(), domain.ExecutionRequest{
		Command: "sleep 30",
		Timeout: 200 * time.Millisecond,
	})
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.True(t, res.TimedOut)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecuteTruncatesOutput(t *testing.T) {
	e := NewLocalExecutor()
	e.maxBytes = 16
	res, err := e.Execute(context.Background(), domain.ExecutionRequest{Command: "printf '%0100d' 0"})
	require.NoError(t, err)
	assert.Len(t, res.Stdout, 16)
	assert.True(t, res.Truncated)
}

func TestCappedBuffer(t *testing.T) {
	b := &cappedBuffer{limit: 4}
	n, err := b.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	_, _ = b.Write([]byte("gh"))
	assert.Equal(t, "abcd", b.String())
	assert.True(t, b.truncated)
}
