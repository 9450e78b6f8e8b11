package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gtechsd/ganesha-go/internal/domain"
)

// writeTestConfig keeps every path the container touches inside dir.
func writeTestConfig(t *testing.T, dir, tier string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`policy:
  trust_tier: %s
  rules_file: %s
daemon:
  socket_path: %s
audit:
  store_path: %s
  system_log: false
consent:
  mode: line
`, tier, filepath.Join(dir, "rules.yaml"), filepath.Join(dir, "d.sock"), filepath.Join(dir, "audit", "audit.db"))
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	s := newSession(context.Background(), Options{})
	defer s.Close()

	var out bytes.Buffer
	root := newRootCmd(s)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCheckCommandPrintsDecisionJSON(t *testing.T) {
	cfg := writeTestConfig(t, t.TempDir(), "normal")

	out, err := runCLI(t, "--config", cfg, "check", "--json", "ls -la")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	var decoded struct {
		Command      string `json:"command"`
		Allowed      bool   `json:"allowed"`
		AutoApproved bool   `json:"auto_approved"`
		Risk         string `json:"risk"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if decoded.Command != "ls -la" || !decoded.Allowed || decoded.Risk != "readonly" {
		t.Fatalf("unexpected decision: %+v", decoded)
	}
}

func TestCheckCommandDistinguishesSecurityBlocks(t *testing.T) {
	dir := t.TempDir()
	cfg := writeTestConfig(t, dir, "yolo")

	out, err := runCLI(t, "--config", cfg, "check", "ganesha --auto 'wipe everything'")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !strings.Contains(out, "SECURITY BLOCK") {
		t.Fatalf("self-invocation must render as a security block, got %q", out)
	}

	out, err = runCLI(t, "--config", cfg, "audit", "search", "1301")
	if err != nil {
		t.Fatalf("audit search failed: %v", err)
	}
	if !strings.Contains(out, "GANESHA[1301]") || !strings.Contains(out, "level=CRITICAL") {
		t.Fatalf("self-invocation must be audited at critical, got %q", out)
	}
}

func TestTierSetPersistsAndIsAudited(t *testing.T) {
	cfg := writeTestConfig(t, t.TempDir(), "normal")

	if _, err := runCLI(t, "--config", cfg, "tier", "set", "trusted"); err != nil {
		t.Fatalf("tier set failed: %v", err)
	}
	out, err := runCLI(t, "--config", cfg, "tier", "show")
	if err != nil {
		t.Fatalf("tier show failed: %v", err)
	}
	if !strings.Contains(out, domain.TierTrusted.Label()) {
		t.Fatalf("expected trusted tier, got %q", out)
	}

	out, err = runCLI(t, "--config", cfg, "audit", "list")
	if err != nil {
		t.Fatalf("audit list failed: %v", err)
	}
	if !strings.Contains(out, "GANESHA[1111]") || !strings.Contains(out, `normal -> trusted`) {
		t.Fatalf("tier change must be audited, got %q", out)
	}

	out, err = runCLI(t, "--config", cfg, "audit", "verify")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !strings.Contains(out, "chain intact") {
		t.Fatalf("expected intact chain, got %q", out)
	}
}

func TestTierSetRejectsUnknownTier(t *testing.T) {
	cfg := writeTestConfig(t, t.TempDir(), "normal")
	if _, err := runCLI(t, "--config", cfg, "tier", "set", "godmode"); err == nil {
		t.Fatal("expected an error for an unknown tier")
	}
}

func TestSubmitDeniedNeverReachesDaemon(t *testing.T) {
	cfg := writeTestConfig(t, t.TempDir(), "safe")

	out, err := runCLI(t, "--config", cfg, "submit", "npm install")
	if !errors.Is(err, domain.ErrPolicyDenied) {
		t.Fatalf("expected policy denial, got %v", err)
	}
	if ExitCode(err) != ExitDenied {
		t.Fatalf("expected exit code %d, got %d", ExitDenied, ExitCode(err))
	}
	if !strings.Contains(out, "DENIED") || !strings.Contains(out, "exceeds trust tier Safe") {
		t.Fatalf("denial must carry its reason, got %q", out)
	}
}

func TestSubmitReportsUnreachableDaemon(t *testing.T) {
	cfg := writeTestConfig(t, t.TempDir(), "normal")

	_, err := runCLI(t, "--config", cfg, "submit", "--yes", "ls")
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if ExitCode(err) != ExitTransport {
		t.Fatalf("expected exit code %d, got %d", ExitTransport, ExitCode(err))
	}
}

func TestAbsWorkingDirResolvesAgainstCaller(t *testing.T) {
	dir, err := absWorkingDir("")
	if err != nil || dir != "" {
		t.Fatalf("empty --cwd must stay empty, got %q %v", dir, err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	dir, err = absWorkingDir("build")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !filepath.IsAbs(dir) || dir != filepath.Join(cwd, "build") {
		t.Fatalf("expected %s, got %s", filepath.Join(cwd, "build"), dir)
	}
}

func TestPlanCheckShowsEveryAction(t *testing.T) {
	dir := t.TempDir()
	cfg := writeTestConfig(t, dir, "normal")
	planPath := filepath.Join(dir, "plan.yaml")
	plan := `task: inspect the repo
actions:
  - command: git status
    explanation: see what changed
  - command: rm -rf /
    risk_level: low
`
	if err := os.WriteFile(planPath, []byte(plan), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "--config", cfg, "plan", "check", planPath)
	if err != nil {
		t.Fatalf("plan check failed: %v", err)
	}
	if !strings.Contains(out, "git status") || !strings.Contains(out, "CRITICAL") {
		t.Fatalf("expected both actions with recomputed risk, got %q", out)
	}
}

func TestLoadPlanAcceptsYAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "plan.yaml")
	jsonPath := filepath.Join(dir, "plan.json")
	if err := os.WriteFile(yamlPath, []byte("task: t\nactions:\n  - command: ls\n    risk_level: medium\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(jsonPath, []byte(`{"task":"t","actions":[{"command":"pwd","risk_level":"high"}]}`), 0o600); err != nil {
		t.Fatal(err)
	}

	plan, err := loadPlan(nil, yamlPath)
	if err != nil {
		t.Fatalf("yaml plan: %v", err)
	}
	if plan.ID == "" || plan.Actions[0].ID == "" || plan.Actions[0].Type != domain.ActionShellCommand {
		t.Fatalf("plan must be normalized, got %+v", plan)
	}
	if plan.Actions[0].Risk != domain.RiskMedium {
		t.Fatalf("expected medium label, got %s", plan.Actions[0].Risk)
	}

	plan, err = loadPlan(nil, jsonPath)
	if err != nil {
		t.Fatalf("json plan: %v", err)
	}
	if plan.Actions[0].Command != "pwd" || plan.Actions[0].Risk != domain.RiskHigh {
		t.Fatalf("unexpected json plan: %+v", plan.Actions[0])
	}

	plan, err = loadPlan(strings.NewReader("task: piped\nactions:\n  - command: uptime\n"), "-")
	if err != nil || plan.Task != "piped" {
		t.Fatalf("stdin plan: %+v %v", plan, err)
	}
}

func TestLoadPlanRejectsEmptyPlans(t *testing.T) {
	if _, err := loadPlan(strings.NewReader("task: nothing\nactions: []\n"), "-"); err == nil {
		t.Fatal("expected an error for a plan without actions")
	}
	if _, err := loadPlan(strings.NewReader("actions:\n  - explanation: no command\n"), "-"); err == nil {
		t.Fatal("expected an error for an action without a command")
	}
}

func TestTierFlagValue(t *testing.T) {
	var v tierValue
	if v.String() != "" {
		t.Fatalf("unset flag must print empty, got %q", v.String())
	}
	if err := v.Set("Trusted"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !v.set || v.tier != domain.TierTrusted || v.String() != "trusted" {
		t.Fatalf("unexpected value %+v", v)
	}
	if err := v.Set("root"); err == nil {
		t.Fatal("expected an error for an unknown tier")
	}
}

func TestExitCodes(t *testing.T) {
	denied := domain.NewDeniedError(domain.Decision{Reason: "nope"})
	blocked := domain.NewDeniedError(domain.Decision{Reason: "self", Violation: domain.ViolationSelfInvocation})
	cases := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{errors.New("boom"), ExitFailure},
		{denied, ExitDenied},
		{blocked, ExitDenied},
		{fmt.Errorf("wrapped: %w", domain.ErrConsentDeclined), ExitDeclined},
		{domain.ErrTransport, ExitTransport},
		{domain.ErrTimeout, ExitTimeout},
		{fmt.Errorf("%w: exit status 1", domain.ErrExecution), ExitFailure},
	}
	for _, tc := range cases {
		if got := ExitCode(tc.err); got != tc.want {
			t.Fatalf("ExitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestVersionCommandNeedsNoConfig(t *testing.T) {
	t.Setenv("GANESHA_CONFIG", filepath.Join(t.TempDir(), "missing", "config.yaml"))
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "ganesha version ") {
		t.Fatalf("unexpected version output %q", out)
	}
	if _, err := os.Stat(os.Getenv("GANESHA_CONFIG")); err == nil {
		t.Fatal("version must not create a config file")
	}
}
