package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/gtechsd/ganesha-go/internal/domain"
)

func TestPrompterRequiresExplicitYes(t *testing.T) {
	action := domain.NewAction("git push", "publish the branch", domain.RiskLow)
	cases := map[string]bool{
		"y\n":     true,
		"YES\n":   true,
		"\n":      false,
		"n\n":     false,
		"maybe\n": false,
		"":        false,
	}
	for input, want := range cases {
		var out bytes.Buffer
		p := NewPrompter(strings.NewReader(input), &out)
		got, err := p.RequestConsent(context.Background(), action)
		if err != nil {
			t.Fatalf("input %q: unexpected error %v", input, err)
		}
		if got != want {
			t.Fatalf("input %q: expected %v, got %v", input, want, got)
		}
		if !strings.Contains(out.String(), "git push") {
			t.Fatalf("prompt must show the command, got %q", out.String())
		}
	}
}

func TestPrompterBatchDefaultsToCancel(t *testing.T) {
	plan := domain.NewExecutionPlan("clean up", []domain.Action{
		domain.NewAction("ls", "", domain.RiskReadOnly),
		domain.NewAction("sudo rm -rf /var/cache/app", "", domain.RiskHigh),
		domain.NewAction("dd if=/dev/zero of=/dev/sdb", "", domain.RiskCritical),
	})
	cases := map[string]domain.BatchConsent{
		"\n":            domain.BatchCancel,
		"":              domain.BatchCancel,
		"yes\n":         domain.BatchCancel,
		"maybe\n":       domain.BatchCancel,
		"c\n":           domain.BatchCancel,
		"a\n":           domain.BatchApproveAll,
		"approve all\n": domain.BatchApproveAll,
		"approve_all\n": domain.BatchApproveAll,
		"s\n":           domain.BatchApproveSingle,
		" single \n":    domain.BatchApproveSingle,
	}
	for input, want := range cases {
		var out bytes.Buffer
		p := NewPrompter(strings.NewReader(input), &out)
		got, err := p.RequestBatchConsent(context.Background(), plan)
		if err != nil {
			t.Fatalf("input %q: unexpected error %v", input, err)
		}
		if got != want {
			t.Fatalf("input %q: expected %s, got %s", input, want, got)
		}
	}
}

func TestPrompterShowsHighRiskCountBeforeAsking(t *testing.T) {
	plan := domain.NewExecutionPlan("rebuild", []domain.Action{
		domain.NewAction("make clean", "", domain.RiskLow),
		domain.NewAction("sudo make install", "", domain.RiskHigh),
		domain.NewAction("rm -rf /", "", domain.RiskCritical),
	})
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("\n"), &out)
	if _, err := p.RequestBatchConsent(context.Background(), plan); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := out.String()
	count := strings.Index(text, "2 high-risk actions")
	prompt := strings.Index(text, "default cancel")
	if count < 0 || prompt < 0 || count > prompt {
		t.Fatalf("high-risk count must precede the prompt, got %q", text)
	}
}

func TestPrompterHonoursContext(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	p := NewPrompter(r, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	approved, err := p.RequestConsent(ctx, domain.NewAction("ls", "", domain.RiskReadOnly))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if approved {
		t.Fatal("a cancelled prompt must not approve")
	}
}

func TestPrompterResumesAbandonedRead(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	p := NewPrompter(r, io.Discard)
	action := domain.NewAction("ls", "", domain.RiskReadOnly)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.RequestConsent(ctx, action); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	go io.WriteString(w, "y\nn\n")

	approved, err := p.RequestConsent(context.Background(), action)
	if err != nil || !approved {
		t.Fatalf("expected the pending read to answer the next prompt, got %v %v", approved, err)
	}
	approved, err = p.RequestConsent(context.Background(), action)
	if err != nil || approved {
		t.Fatalf("expected the following line to refuse, got %v %v", approved, err)
	}
}

func TestAutoConsentApprovesAndAnnounces(t *testing.T) {
	var out bytes.Buffer
	auto := NewAutoConsent(&out)
	if auto.Interactive() {
		t.Fatal("auto consent is not interactive")
	}
	ok, err := auto.RequestConsent(context.Background(), domain.NewAction("npm install", "", domain.RiskMedium))
	if err != nil || !ok {
		t.Fatalf("expected approval, got %v %v", ok, err)
	}
	plan := domain.NewExecutionPlan("deps", []domain.Action{domain.NewAction("sudo apt upgrade", "", domain.RiskHigh)})
	choice, err := auto.RequestBatchConsent(context.Background(), plan)
	if err != nil || choice != domain.BatchApproveAll {
		t.Fatalf("expected approve all, got %s %v", choice, err)
	}
	if !strings.Contains(out.String(), "auto-approved: npm install") || !strings.Contains(out.String(), "1 high risk") {
		t.Fatalf("auto approvals must be announced, got %q", out.String())
	}
}

func TestNewConsentHandlerSelection(t *testing.T) {
	if _, ok := NewConsentHandler(domain.ConsentModeInteractive, true, nil, io.Discard).(*AutoConsent); !ok {
		t.Fatal("--yes must select the auto handler")
	}
	if _, ok := NewConsentHandler(domain.ConsentModeLine, false, nil, io.Discard).(*Prompter); !ok {
		t.Fatal("line mode must select the prompter")
	}
	if _, ok := NewConsentHandler(domain.ConsentModeInteractive, false, strings.NewReader(""), io.Discard).(*Prompter); !ok {
		t.Fatal("an explicit reader must select the prompter")
	}
}
