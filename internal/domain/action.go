package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActionType tags where an action came from. Only shell commands are executed
// by the daemon; other types must still pass through the same gate.
type ActionType string

const (
	ActionShellCommand ActionType = "shell_command"
	ActionFileWrite    ActionType = "file_write"
	ActionFileRead     ActionType = "file_read"
)

// Action is one proposed operation. Risk is the proposer's label and is only
// used for display; every check recomputes it.
type Action struct {
	ID             string        `json:"id" yaml:"id"`
	Type           ActionType    `json:"action_type,omitempty" yaml:"action_type,omitempty"`
	Command        string        `json:"command" yaml:"command"`
	Explanation    string        `json:"explanation" yaml:"explanation"`
	Risk           OperationRisk `json:"risk_level" yaml:"risk_level"`
	Reversible     bool          `json:"reversible,omitempty" yaml:"reversible,omitempty"`
	ReverseCommand string        `json:"reverse_command,omitempty" yaml:"reverse_command,omitempty"`
}

// NewAction builds a shell action with a fresh id.
func NewAction(command, explanation string, risk OperationRisk) Action {
	return Action{
		ID:          uuid.NewString(),
		Type:        ActionShellCommand,
		Command:     command,
		Explanation: explanation,
		Risk:        risk,
	}
}

// ExecutionPlan is an ordered list of actions reviewed as one unit and
// executed one action at a time.
type ExecutionPlan struct {
	ID        string    `json:"id" yaml:"id"`
	Task      string    `json:"task" yaml:"task"`
	Actions   []Action  `json:"actions" yaml:"actions"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// NewExecutionPlan assigns ids to the plan and to any action missing one.
func NewExecutionPlan(task string, actions []Action) ExecutionPlan {
	plan := ExecutionPlan{
		ID:        uuid.NewString(),
		Task:      task,
		Actions:   actions,
		CreatedAt: time.Now().UTC(),
	}
	plan.Normalize()
	return plan
}

// Normalize fills in ids, action types and the creation time when absent.
func (p *ExecutionPlan) Normalize() {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	for i := range p.Actions {
		if p.Actions[i].ID == "" {
			p.Actions[i].ID = uuid.NewString()
		}
		if p.Actions[i].Type == "" {
			p.Actions[i].Type = ActionShellCommand
		}
	}
}

// HighRiskCount counts actions labelled High or Critical.
func (p ExecutionPlan) HighRiskCount() int {
	count := 0
	for _, action := range p.Actions {
		if action.Risk >= RiskHigh {
			count++
		}
	}
	return count
}

// IsEmpty reports whether there is nothing to execute.
func (p ExecutionPlan) IsEmpty() bool {
	return len(p.Actions) == 0
}
