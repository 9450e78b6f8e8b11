package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gtechsd/ganesha-go/internal/domain"
)

// Request is one newline-terminated JSON request line.
type Request struct {
	Command    string  `json:"command"`
	WorkingDir *string `json:"working_dir"`
	Timeout    *int    `json:"timeout"`
}

// Response is the single reply written back on the same connection.
type Response struct {
	Success   bool    `json:"success"`
	Output    string  `json:"output"`
	Error     *string `json:"error"`
	RiskLevel string  `json:"risk_level"`
}

// NewRequest converts an execution request to its wire form. Timeouts are
// sent in whole seconds.
func NewRequest(req domain.ExecutionRequest) Request {
	wire := Request{Command: req.Command}
	if req.WorkingDir != "" {
		dir := req.WorkingDir
		wire.WorkingDir = &dir
	}
	if req.Timeout > 0 {
		secs := int((req.Timeout + time.Second - 1) / time.Second)
		wire.Timeout = &secs
	}
	return wire
}

// ExecutionRequest converts the wire form back, rejecting unusable requests.
// A working directory must be absolute, since the daemon's own directory means
// nothing to the caller. Timeouts above maxExecution are clamped to it.
func (r Request) ExecutionRequest(maxExecution time.Duration) (domain.ExecutionRequest, error) {
	if strings.TrimSpace(r.Command) == "" {
		return domain.ExecutionRequest{}, errors.New("command is required")
	}
	req := domain.ExecutionRequest{Command: r.Command}
	if r.WorkingDir != nil && *r.WorkingDir != "" {
		dir := *r.WorkingDir
		if !filepath.IsAbs(dir) {
			return domain.ExecutionRequest{}, fmt.Errorf("working_dir must be an absolute path, got %q", dir)
		}
		req.WorkingDir = filepath.Clean(dir)
	}
	if r.Timeout != nil {
		secs := *r.Timeout
		if secs <= 0 {
			return domain.ExecutionRequest{}, fmt.Errorf("timeout must be positive, got %d", secs)
		}
		if maxExecution <= 0 {
			maxExecution = domain.DefaultExecutionTimeout
		}
		if int64(secs) > int64(maxExecution/time.Second) {
			req.Timeout = maxExecution
		} else {
			req.Timeout = time.Duration(secs) * time.Second
		}
	}
	return req, nil
}

func decodeRequest(line []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Request{}, fmt.Errorf("malformed request: %w", err)
	}
	return req, nil
}

func errorResponse(risk domain.OperationRisk, msg string) Response {
	return Response{Success: false, Error: &msg, RiskLevel: risk.String()}
}

// Result converts the wire response to the collaborator-facing result.
func (r Response) Result() domain.ExecutionResult {
	risk, err := domain.ParseOperationRisk(r.RiskLevel)
	if err != nil {
		risk = domain.RiskMedium
	}
	res := domain.ExecutionResult{Success: r.Success, Output: r.Output, Risk: risk}
	if r.Error != nil {
		res.Error = *r.Error
	}
	return res
}
