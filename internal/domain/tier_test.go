package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/gtechsd/ganesha-go/internal/domain"
)

func TestTrustTierAutoApproveImpliesAllow(t *testing.T) {
	for _, tier := range domain.AllTiers() {
		for _, risk := range domain.AllRisks() {
			if tier.AutoApproves(risk) && !tier.Allows(risk) {
				t.Fatalf("%s auto-approves %s but does not allow it", tier, risk)
			}
		}
	}
}

func TestTrustTierAllowsIsMonotone(t *testing.T) {
	for _, tier := range domain.AllTiers() {
		risks := domain.AllRisks()
		for i := 1; i < len(risks); i++ {
			if tier.Allows(risks[i]) && !tier.Allows(risks[i-1]) {
				t.Fatalf("%s allows %s but not the lower %s", tier, risks[i], risks[i-1])
			}
		}
	}
}

func TestOnlyYoloAllowsCriticalAndNeverAutoApproves(t *testing.T) {
	for _, tier := range domain.AllTiers() {
		if tier.AutoApproves(domain.RiskCritical) {
			t.Fatalf("%s must not auto-approve critical", tier)
		}
		allows := tier.Allows(domain.RiskCritical)
		if allows != (tier == domain.TierYolo) {
			t.Fatalf("%s allows critical = %v", tier, allows)
		}
	}
	if !domain.TierYolo.AutoApproves(domain.RiskHigh) {
		t.Fatal("yolo should auto-approve high")
	}
}

func TestTrustTierThresholds(t *testing.T) {
	tests := []struct {
		tier        domain.TrustTier
		maxAllowed  domain.OperationRisk
		maxApproved domain.OperationRisk
	}{
		{domain.TierSafe, domain.RiskReadOnly, domain.RiskReadOnly},
		{domain.TierNormal, domain.RiskLow, domain.RiskReadOnly},
		{domain.TierTrusted, domain.RiskMedium, domain.RiskMedium},
		{domain.TierYolo, domain.RiskCritical, domain.RiskHigh},
	}
	for _, tt := range tests {
		t.Run(tt.tier.String(), func(t *testing.T) {
			for _, risk := range domain.AllRisks() {
				if got, want := tt.tier.Allows(risk), risk <= tt.maxAllowed; got != want {
					t.Fatalf("Allows(%s) = %v, want %v", risk, got, want)
				}
				if got, want := tt.tier.AutoApproves(risk), risk <= tt.maxApproved; got != want {
					t.Fatalf("AutoApproves(%s) = %v, want %v", risk, got, want)
				}
			}
		})
	}
}

func TestParseTrustTier(t *testing.T) {
	tests := map[string]domain.TrustTier{
		"safe":    domain.TierSafe,
		"Normal":  domain.TierNormal,
		"default": domain.TierNormal,
		"TRUSTED": domain.TierTrusted,
		"yolo":    domain.TierYolo,
		"all":     domain.TierYolo,
	}
	for input, want := range tests {
		got, err := domain.ParseTrustTier(input)
		if err != nil || got != want {
			t.Fatalf("ParseTrustTier(%q) = %s, %v", input, got, err)
		}
	}
	if _, err := domain.ParseTrustTier("root"); err == nil {
		t.Fatal("expected error for unknown tier")
	}
}

func TestOperationRiskWireForm(t *testing.T) {
	want := []string{"readonly", "low", "medium", "high", "critical"}
	for i, risk := range domain.AllRisks() {
		if risk.String() != want[i] {
			t.Fatalf("risk %d renders %q", i, risk.String())
		}
		parsed, err := domain.ParseOperationRisk(risk.String())
		if err != nil || parsed != risk {
			t.Fatalf("ParseOperationRisk(%q) = %s, %v", risk.String(), parsed, err)
		}
	}
}

func TestDecisionJSONRoundTrip(t *testing.T) {
	original := domain.Decision{
		Allowed:     false,
		Risk:        domain.RiskCritical,
		Reason:      "self-invocation with policy bypass flag",
		Violation:   domain.ViolationSelfInvocation,
		MatchedRule: `ganesha\s+.*--auto`,
	}
	raw, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded domain.Decision
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != original {
		t.Fatalf("round trip mismatch: %+v != %+v", decoded, original)
	}
	if !decoded.SecurityBlock() {
		t.Fatal("expected security block")
	}
}

func TestExecutionPlanHighRiskCount(t *testing.T) {
	plan := domain.NewExecutionPlan("clean build", []domain.Action{
		{Command: "ls", Risk: domain.RiskReadOnly},
		{Command: "sudo make install", Risk: domain.RiskHigh},
		{Command: "rm -rf /", Risk: domain.RiskCritical},
	})
	if plan.HighRiskCount() != 2 {
		t.Fatalf("expected 2 high-risk actions, got %d", plan.HighRiskCount())
	}
	for _, action := range plan.Actions {
		if action.ID == "" || action.Type != domain.ActionShellCommand {
			t.Fatalf("action not normalized: %+v", action)
		}
	}
}
