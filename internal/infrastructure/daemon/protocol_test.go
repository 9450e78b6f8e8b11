package daemon

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtechsd/ganesha-go/internal/domain"
)

func TestRequestConversion(t *testing.T) {
	wire := NewRequest(domain.ExecutionRequest{Command: "ls", WorkingDir: "/tmp", Timeout: 1500 * time.Millisecond})
	require.NotNil(t, wire.WorkingDir)
	require.NotNil(t, wire.Timeout)
	assert.Equal(t, "/tmp", *wire.WorkingDir)
	assert.Equal(t, 2, *wire.Timeout)

	req, err := wire.ExecutionRequest(time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, req.Timeout)

	bare := NewRequest(domain.ExecutionRequest{Command: "ls"})
	assert.Nil(t, bare.WorkingDir)
	assert.Nil(t, bare.Timeout)
}

func TestRequestValidation(t *testing.T) {
	_, err := Request{Command: "   "}.ExecutionRequest(time.Minute)
	assert.Error(t, err)

	zero := 0
	_, err = Request{Command: "ls", Timeout: &zero}.ExecutionRequest(time.Minute)
	assert.Error(t, err)

	relative := "."
	_, err = Request{Command: "ls", WorkingDir: &relative}.ExecutionRequest(time.Minute)
	assert.ErrorContains(t, err, "absolute")

	_, err = decodeRequest([]byte(`{"command": 42}`))
	assert.Error(t, err)
}

func TestRequestTimeoutIsClamped(t *testing.T) {
	huge := math.MaxInt
	req, err := Request{Command: "ls", Timeout: &huge}.ExecutionRequest(time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, req.Timeout)

	req, err = Request{Command: "ls", Timeout: &huge}.ExecutionRequest(0)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultExecutionTimeout, req.Timeout)

	short := 30
	req, err = Request{Command: "ls", Timeout: &short}.ExecutionRequest(time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, req.Timeout)
}

func TestResponseResult(t *testing.T) {
	msg := "Access denied: explicitly denied"
	res := Response{Success: false, Error: &msg, RiskLevel: "high"}.Result()
	assert.Equal(t, domain.RiskHigh, res.Risk)
	assert.Equal(t, msg, res.Error)

	assert.Equal(t, domain.RiskMedium, Response{RiskLevel: "bogus"}.Result().Risk)
}
