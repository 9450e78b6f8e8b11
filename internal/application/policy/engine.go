// Package policy is the policy decision point. It turns a command into a
// Decision and never executes or blocks.
package policy

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gtechsd/ganesha-go/internal/domain"
	"github.com/gtechsd/ganesha-go/internal/ports"
)

// Policy is an immutable snapshot of the access policy. The engine swaps
// whole snapshots and never edits one in place.
type Policy struct {
	tier         domain.TrustTier
	allow        []*regexp.Regexp
	deny         []*regexp.Regexp
	roots        []string
	maxExecution time.Duration
}

// NewPolicy compiles persisted settings. Invalid patterns or relative roots
// are rejected.
func NewPolicy(settings domain.PolicySettings) (*Policy, error) {
	if !settings.TrustTier.Valid() {
		return nil, fmt.Errorf("invalid trust tier %d", int(settings.TrustTier))
	}
	allow, err := compilePatterns("allow", settings.AllowPatterns)
	if err != nil {
		return nil, err
	}
	deny, err := compilePatterns("deny", settings.DenyPatterns)
	if err != nil {
		return nil, err
	}
	roots := make([]string, 0, len(settings.AllowedRoots))
	for _, root := range settings.AllowedRoots {
		if !filepath.IsAbs(root) {
			return nil, fmt.Errorf("allowed root %q must be absolute", root)
		}
		root = filepath.Clean(root)
		if resolved, err := filepath.EvalSymlinks(root); err == nil {
			root = resolved
		}
		roots = append(roots, root)
	}
	return &Policy{
		tier:         settings.TrustTier,
		allow:        allow,
		deny:         deny,
		roots:        roots,
		maxExecution: settings.MaxExecution(),
	}, nil
}

func (p *Policy) Tier() domain.TrustTier { return p.tier }
func (p *Policy) MaxExecution() time.Duration { return p.maxExecution }
func (p *Policy) AllowPatterns() []string { return patternStrings(p.allow) }
func (p *Policy) DenyPatterns() []string { return patternStrings(p.deny) }
func (p *Policy) AllowedRoots() []string { return append([]string(nil), p.roots...) }

func (p *Policy) withTier(tier domain.TrustTier) *Policy {
	next := *p
	next.tier = tier
	return &next
}

// withinRoots reports whether the absolute dir lies under a permitted root.
// No roots means no restriction.
func (p *Policy) withinRoots(dir string) bool {
	if len(p.roots) == 0 {
		return true
	}
	abs := filepath.Clean(dir)
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	for _, root := range p.roots {
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return true
		}
	}
	return false
}

func match(patterns []*regexp.Regexp, command string) (string, bool) {
	for _, re := range patterns {
		if re.MatchString(command) {
			return re.String(), true
		}
	}
	return "", false
}

// Engine implements ports.PolicyChecker. Checks read the current snapshot
// without locking; writers are serialized and publish a new snapshot.
type Engine struct {
	classifier ports.CommandClassifier
	guard      ports.SecurityGuard
	audit      ports.AuditLogger
	logger     ports.Logger

	writeMu sync.Mutex
	current atomic.Pointer[Policy]
}

// Options are the engine's collaborators.
type Options struct {
	Classifier ports.CommandClassifier
	Guard      ports.SecurityGuard
	Audit      ports.AuditLogger
	Logger     ports.Logger
}

// NewEngine builds an engine over an initial policy. Every explicit override
// is announced to the audit log as a configuration change.
func NewEngine(ctx context.Context, opts Options, initial *Policy) (*Engine, error) {
	if opts.Classifier == nil || opts.Guard == nil || initial == nil {
		return nil, errors.New("policy.Engine dependencies not satisfied")
	}
	e := &Engine{
		classifier: opts.Classifier,
		guard:      opts.Guard,
		audit:      opts.Audit,
		logger:     opts.Logger,
	}
	e.current.Store(initial)
	e.announceOverrides(ctx, initial)
	return e, nil
}

// Check implements ports.PolicyChecker.
func (e *Engine) Check(command string) domain.Decision {
	return e.CheckIn(command, "")
}

// CheckIn implements ports.PolicyChecker. The working directory is only
// checked against the permitted roots when one is given.
func (e *Engine) CheckIn(command, workingDir string) domain.Decision {
	p := e.current.Load()

	if finding, ok := e.guard.InspectCommand(command); ok {
		return domain.Decision{
			Allowed:     false,
			Risk:        domain.RiskCritical,
			Reason:      finding.Reason,
			Violation:   finding.Kind,
			MatchedRule: finding.Pattern,
		}
	}

	risk := e.classifier.Classify(command)
	trimmed := strings.TrimSpace(command)

	if workingDir != "" && !filepath.IsAbs(workingDir) {
		return domain.Decision{
			Allowed:   false,
			Risk:      risk,
			Reason:    fmt.Sprintf("working directory %s is not an absolute path", workingDir),
			Violation: domain.ViolationScope,
		}
	}
	if workingDir != "" && !p.withinRoots(workingDir) {
		return domain.Decision{
			Allowed:   false,
			Risk:      risk,
			Reason:    fmt.Sprintf("working directory %s is outside the permitted roots", workingDir),
			Violation: domain.ViolationScope,
		}
	}
	if pattern, ok := match(p.deny, trimmed); ok {
		return domain.Decision{Allowed: false, Risk: risk, Reason: "explicitly denied", MatchedRule: pattern}
	}
	if pattern, ok := match(p.allow, trimmed); ok {
		return domain.Decision{
			Allowed:      true,
			Risk:         risk,
			AutoApproved: risk < domain.RiskCritical,
			Reason:       "explicitly allowed",
			MatchedRule:  pattern,
		}
	}
	if !p.tier.Allows(risk) {
		return domain.Decision{
			Allowed: false,
			Risk:    risk,
			Reason:  fmt.Sprintf("exceeds trust tier %s for risk %s", p.tier.Label(), risk.Label()),
		}
	}
	decision := domain.Decision{
		Allowed:      true,
		Risk:         risk,
		AutoApproved: p.tier.AutoApproves(risk),
		Reason:       fmt.Sprintf("within trust tier %s", p.tier.Label()),
	}
	if decision.RequiresConsent() {
		decision.Reason = fmt.Sprintf("trust tier %s requires consent for risk %s", p.tier.Label(), risk.Label())
	}
	return decision
}

// CheckText runs the manipulation guard over free text such as a task description.
func (e *Engine) CheckText(text string) (domain.Decision, bool) {
	finding, ok := e.guard.InspectText(text)
	if !ok {
		return domain.Decision{}, false
	}
	return domain.Decision{
		Allowed:     false,
		Risk:        domain.RiskCritical,
		Reason:      finding.Reason,
		Violation:   finding.Kind,
		MatchedRule: finding.Pattern,
	}, true
}

// TrustTier implements ports.PolicyChecker.
func (e *Engine) TrustTier() domain.TrustTier {
	return e.current.Load().tier
}

// Snapshot returns the active policy.
func (e *Engine) Snapshot() *Policy {
	return e.current.Load()
}

// SetTrustTier publishes a snapshot with the new tier and logs the change.
func (e *Engine) SetTrustTier(ctx context.Context, tier domain.TrustTier, actor string) error {
	if !tier.Valid() {
		return fmt.Errorf("invalid trust tier %d", int(tier))
	}
	e.writeMu.Lock()
	previous := e.current.Load()
	e.current.Store(previous.withTier(tier))
	e.writeMu.Unlock()

	return e.log(ctx, domain.NewEvent(domain.EventAccessLevelChanged,
		fmt.Sprintf("Trust tier changed from %s to %s", previous.tier, tier)).
		User(actor).
		Reason(fmt.Sprintf("%s -> %s", previous.tier, tier)).
		Build())
}

// Replace publishes a wholly new policy, for example after a config reload.
func (e *Engine) Replace(ctx context.Context, next *Policy) error {
	if next == nil {
		return errors.New("nil policy")
	}
	e.writeMu.Lock()
	e.current.Store(next)
	e.writeMu.Unlock()

	e.announceOverrides(ctx, next)
	return e.log(ctx, domain.NewEvent(domain.EventConfigChanged, "Access policy reloaded").
		Reason(fmt.Sprintf("tier=%s allow=%d deny=%d roots=%d", next.tier, len(next.allow), len(next.deny), len(next.roots))).
		Build())
}

func (e *Engine) announceOverrides(ctx context.Context, p *Policy) {
	for _, pattern := range patternStrings(p.allow) {
		_ = e.log(ctx, domain.NewEvent(domain.EventConfigChanged, "Allow override active").
			Reason(fmt.Sprintf("allow pattern %q bypasses the trust tier", pattern)).
			Build())
	}
	for _, pattern := range patternStrings(p.deny) {
		if e.logger != nil {
			e.logger.Debug("deny override active", map[string]interface{}{"pattern": pattern})
		}
	}
}

func (e *Engine) log(ctx context.Context, event domain.Event) error {
	if e.audit == nil {
		return nil
	}
	if err := e.audit.Log(ctx, event); err != nil {
		if e.logger != nil {
			e.logger.Error("audit write failed", err, map[string]interface{}{"event": event.ID().String()})
		}
		return err
	}
	return nil
}

func compilePatterns(kind string, patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%s pattern %q: %w", kind, pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func patternStrings(patterns []*regexp.Regexp) []string {
	out := make([]string, len(patterns))
	for i, re := range patterns {
		out[i] = re.String()
	}
	return out
}

var _ ports.PolicyChecker = (*Engine)(nil)
