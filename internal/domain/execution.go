package domain

import "time"

// ExecutionRequest is what a collaborator asks the daemon to run.
type ExecutionRequest struct {
	Command    string
	WorkingDir string
	Timeout    time.Duration
}

// ExecutionResult is returned to collaborators for a submitted command.
type ExecutionResult struct {
	Success bool
	Output  string
	Error   string
	Risk    OperationRisk
}

// ProcessResult is the raw outcome of running a child process.
type ProcessResult struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	DurationMS int64
	TimedOut   bool
	Truncated  bool
}

// Combined joins stdout and stderr the way the daemon reports output.
func (r ProcessResult) Combined() string {
	switch {
	case r.Stderr == "":
		return r.Stdout
	case r.Stdout == "":
		return r.Stderr
	default:
		return r.Stdout + r.Stderr
	}
}

// ActionResult records one executed plan step.
type ActionResult struct {
	Action   Action
	Decision Decision
	Result   ExecutionResult
	Skipped  bool
	Err      error
}

// PlanReport summarises a plan run.
type PlanReport struct {
	PlanID    string
	SessionID string
	Consent   BatchConsent
	Results   []ActionResult
}

// Succeeded reports whether every non-skipped step ran successfully.
func (r PlanReport) Succeeded() bool {
	if len(r.Results) == 0 {
		return false
	}
	for _, res := range r.Results {
		if res.Skipped || !res.Result.Success {
			return false
		}
	}
	return true
}
