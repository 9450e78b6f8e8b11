// Package gate is the collaborator-facing entry point: check, consent,
// submit and trust-tier changes. Every path that can run a command goes
// through the policy engine here and again in the daemon.
package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/gtechsd/ganesha-go/internal/domain"
	"github.com/gtechsd/ganesha-go/internal/ports"
)

// Service orchestrates authorization for a single caller session.
type Service struct {
	Policy      ports.PolicyChecker
	Consent     ports.ConsentHandler
	Client      ports.DaemonClient
	Audit       ports.AuditLogger
	ConfigStore ports.ConfigStore
	Logger      ports.Logger
	// User is recorded on audit events raised by this session.
	User string
	// SessionID groups the events of one caller session.
	SessionID string

	strict atomic.Bool
}

// Strict reports whether a security violation has been seen in this session.
// Once strict, nothing is auto-approved and only interactive consent counts.
func (s *Service) Strict() bool {
	return s.strict.Load()
}

// Check runs the policy without executing anything. Security violations are
// logged and switch the session to the strict posture.
func (s *Service) Check(ctx context.Context, command string) (domain.Decision, error) {
	if s.Policy == nil {
		return domain.Decision{}, errors.New("gate.Service dependencies not satisfied")
	}
	d := s.Policy.Check(command)
	if d.Violation.Security() {
		s.recordDenial(ctx, command, d)
	}
	return s.applyPosture(d), nil
}

// RequestConsent asks for approval of one action and logs the outcome before
// returning it.
func (s *Service) RequestConsent(ctx context.Context, action domain.Action) (bool, error) {
	if s.Consent == nil {
		return false, errors.New("gate.Service consent handler not configured")
	}
	if s.Strict() && !s.Consent.Interactive() {
		s.logConsent(ctx, action, domain.ConsentDenied, "unattended consent refused after a security violation")
		return false, fmt.Errorf("%w: interactive consent required", domain.ErrConsentDeclined)
	}

	approved, err := s.Consent.RequestConsent(ctx, action)
	if err != nil {
		s.logConsent(ctx, action, domain.ConsentCancelled, err.Error())
		return false, fmt.Errorf("%w: %v", domain.ErrConsentDeclined, err)
	}
	outcome := domain.ConsentDenied
	switch {
	case approved && !s.Consent.Interactive():
		outcome = domain.ConsentAuto
	case approved:
		outcome = domain.ConsentApproved
	}
	s.logConsent(ctx, action, outcome, "")
	return approved, nil
}

// RequestBatchConsent asks for approval of a whole plan. The answer is
// logged before it is returned.
func (s *Service) RequestBatchConsent(ctx context.Context, plan domain.ExecutionPlan) (domain.BatchConsent, error) {
	if s.Consent == nil {
		return domain.BatchCancel, errors.New("gate.Service consent handler not configured")
	}
	if s.Strict() && !s.Consent.Interactive() {
		s.logBatch(ctx, plan, domain.BatchCancel, "unattended consent refused after a security violation")
		return domain.BatchCancel, fmt.Errorf("%w: interactive consent required", domain.ErrConsentDeclined)
	}

	choice, err := s.Consent.RequestBatchConsent(ctx, plan)
	if err != nil {
		s.logBatch(ctx, plan, domain.BatchCancel, err.Error())
		return domain.BatchCancel, fmt.Errorf("%w: %v", domain.ErrConsentDeclined, err)
	}
	s.logBatch(ctx, plan, choice, "")
	return choice, nil
}

// Submit checks the command, obtains consent when the policy defers, then
// hands it to the daemon, which checks it again before running it.
func (s *Service) Submit(ctx context.Context, req domain.ExecutionRequest, explanation string) (domain.ExecutionResult, error) {
	if s.Policy == nil || s.Client == nil {
		return domain.ExecutionResult{}, errors.New("gate.Service dependencies not satisfied")
	}

	d := s.applyPosture(s.Policy.CheckIn(req.Command, req.WorkingDir))
	if !d.Allowed {
		s.recordDenial(ctx, req.Command, d)
		return deniedResult(d), domain.NewDeniedError(d)
	}
	if d.RequiresConsent() {
		action := domain.NewAction(req.Command, explanation, d.Risk)
		approved, err := s.RequestConsent(ctx, action)
		if err != nil {
			return domain.ExecutionResult{Risk: d.Risk, Error: err.Error()}, err
		}
		if !approved {
			return domain.ExecutionResult{Risk: d.Risk, Error: "consent declined"}, domain.ErrConsentDeclined
		}
	}

	res, err := s.Client.Submit(ctx, req)
	if err != nil {
		return res, err
	}
	return res, resultError(res)
}

// SetTrustTier persists the new tier and then publishes it to the engine,
// which logs the change.
func (s *Service) SetTrustTier(ctx context.Context, tier domain.TrustTier, actor string) error {
	if s.Policy == nil {
		return errors.New("gate.Service dependencies not satisfied")
	}
	if s.ConfigStore != nil {
		cfg, err := s.ConfigStore.Load(ctx)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if _, err := cfg.SetTrustTier(tier); err != nil {
			return err
		}
		if err := s.ConfigStore.Save(ctx, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
	}
	if actor == "" {
		actor = s.User
	}
	return s.Policy.SetTrustTier(ctx, tier, actor)
}

// RunPlan reviews and executes a plan. Every action is checked before anyone
// is asked, a single denial blocks the plan, and execution stops at the
// first failed or declined action.
func (s *Service) RunPlan(ctx context.Context, plan domain.ExecutionPlan) (domain.PlanReport, error) {
	if s.Policy == nil || s.Client == nil || s.Consent == nil {
		return domain.PlanReport{}, errors.New("gate.Service dependencies not satisfied")
	}
	plan.Normalize()
	report := domain.PlanReport{PlanID: plan.ID, SessionID: s.session(plan.ID)}

	s.log(ctx, s.event(domain.EventSessionStart, "Plan session started", report.SessionID).
		Reason(fmt.Sprintf("%d actions", len(plan.Actions))).Build())
	defer func() {
		s.log(context.WithoutCancel(ctx), s.event(domain.EventSessionEnd, "Plan session ended", report.SessionID).Build())
	}()

	if d, flagged := s.Policy.CheckText(plan.Task); flagged {
		s.recordDenial(ctx, plan.Task, d)
		return report, domain.NewDeniedError(d)
	}
	if plan.IsEmpty() {
		return report, nil
	}

	decisions := make([]domain.Decision, len(plan.Actions))
	for i := range plan.Actions {
		action := &plan.Actions[i]
		d := s.applyPosture(s.Policy.Check(action.Command))
		if !d.Allowed {
			s.recordDenial(ctx, action.Command, d)
			return report, domain.NewDeniedError(d)
		}
		action.Risk = d.Risk
		decisions[i] = d
		s.log(ctx, s.event(domain.EventCommandPlanned, "Command planned", report.SessionID).
			Command(action.Command).Decision(d).Build())
	}

	choice, err := s.RequestBatchConsent(ctx, plan)
	report.Consent = choice
	if err != nil {
		return report, err
	}
	if choice == domain.BatchCancel {
		return report, domain.ErrConsentDeclined
	}

	var runErr error
	for i, action := range plan.Actions {
		result := domain.ActionResult{Action: action, Decision: decisions[i]}
		if runErr != nil {
			result.Skipped = true
			report.Results = append(report.Results, result)
			continue
		}
		if choice == domain.BatchApproveSingle && !decisions[i].AutoApproved {
			approved, err := s.RequestConsent(ctx, action)
			if err == nil && !approved {
				err = domain.ErrConsentDeclined
			}
			if err != nil {
				result.Skipped = true
				result.Err = err
				runErr = err
				report.Results = append(report.Results, result)
				continue
			}
		}

		res, err := s.Client.Submit(ctx, domain.ExecutionRequest{Command: action.Command})
		if err == nil {
			err = resultError(res)
		}
		result.Result = res
		result.Err = err
		runErr = err
		report.Results = append(report.Results, result)
	}
	return report, runErr
}

// applyPosture withdraws auto-approval once the session is strict.
func (s *Service) applyPosture(d domain.Decision) domain.Decision {
	if s.Strict() && d.AutoApproved {
		d.AutoApproved = false
		d.Reason += " (consent required after a security violation)"
	}
	return d
}

func (s *Service) recordDenial(ctx context.Context, subject string, d domain.Decision) {
	if d.Violation.Security() && !s.strict.Swap(true) && s.Logger != nil {
		s.Logger.Warn("security violation, session is now strict", map[string]interface{}{"violation": string(d.Violation)})
	}
	s.log(ctx, s.event(domain.DenialEvent(d), "Command denied by policy", s.SessionID).
		Command(subject).Decision(d).Build())
}

func (s *Service) logConsent(ctx context.Context, action domain.Action, outcome domain.ConsentOutcome, detail string) {
	id := domain.EventCommandDenied
	msg := "Consent " + string(outcome)
	switch outcome {
	case domain.ConsentApproved, domain.ConsentAuto:
		id = domain.EventCommandPlanned
		if action.Risk >= domain.RiskHigh {
			id = domain.EventHighRiskApproved
		}
	}
	reason := "consent " + string(outcome)
	if detail != "" {
		reason += ": " + detail
	}
	approved := outcome == domain.ConsentApproved || outcome == domain.ConsentAuto
	s.log(ctx, s.event(id, msg, s.SessionID).
		Command(action.Command).Risk(action.Risk).Allowed(approved).Reason(reason).Build())
}

func (s *Service) logBatch(ctx context.Context, plan domain.ExecutionPlan, choice domain.BatchConsent, detail string) {
	id := domain.EventCommandPlanned
	if choice == domain.BatchCancel {
		id = domain.EventCommandDenied
	} else if plan.HighRiskCount() > 0 {
		id = domain.EventHighRiskApproved
	}
	reason := fmt.Sprintf("batch consent %s for %d actions (%d high risk)", choice, len(plan.Actions), plan.HighRiskCount())
	if detail != "" {
		reason += ": " + detail
	}
	s.log(ctx, s.event(id, "Plan consent "+choice.String(), s.session(plan.ID)).
		Allowed(choice != domain.BatchCancel).Reason(reason).Build())
}

func (s *Service) event(id domain.EventID, msg, session string) *domain.EventBuilder {
	return domain.NewEvent(id, msg).User(s.User).Session(session)
}

func (s *Service) session(fallback string) string {
	if s.SessionID != "" {
		return s.SessionID
	}
	return fallback
}

func (s *Service) log(ctx context.Context, event domain.Event) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Log(ctx, event); err != nil && s.Logger != nil {
		s.Logger.Error("audit write failed", err, map[string]interface{}{"event": event.ID().String()})
	}
}

func deniedResult(d domain.Decision) domain.ExecutionResult {
	return domain.ExecutionResult{Success: false, Error: "Access denied: " + d.Reason, Risk: d.Risk}
}

// resultError maps an unsuccessful daemon result onto the error taxonomy.
func resultError(res domain.ExecutionResult) error {
	if res.Success {
		return nil
	}
	switch {
	case res.Error == "Timeout":
		return domain.ErrTimeout
	case strings.HasPrefix(res.Error, "Access denied: "):
		return fmt.Errorf("%w: %s", domain.ErrPolicyDenied, strings.TrimPrefix(res.Error, "Access denied: "))
	default:
		return fmt.Errorf("%w: %s", domain.ErrExecution, res.Error)
	}
}
