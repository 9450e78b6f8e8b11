package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/gtechsd/ganesha-go/internal/domain"
	"github.com/gtechsd/ganesha-go/internal/ports"
)

// Prompter implements ports.ConsentHandler with plain line input. Anything
// other than an explicit yes is a refusal.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer

	mu      sync.Mutex
	pending chan answer
}

type answer struct {
	line string
	err  error
}

// NewPrompter constructs a prompter referencing stdio.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &Prompter{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// Interactive implements ports.ConsentHandler.
func (p *Prompter) Interactive() bool {
	return true
}

// RequestConsent shows one action and asks y/N.
func (p *Prompter) RequestConsent(ctx context.Context, action domain.Action) (bool, error) {
	RenderAction(p.out, action)
	fmt.Fprint(p.out, "Run this command? [y/N]: ")
	line, err := p.readLine(ctx)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// RequestBatchConsent shows the plan with its high-risk count, then asks
// for a choice. The default is cancel.
func (p *Prompter) RequestBatchConsent(ctx context.Context, plan domain.ExecutionPlan) (domain.BatchConsent, error) {
	RenderPlan(p.out, plan)
	fmt.Fprint(p.out, "[a]pprove all, approve [s]ingle, [c]ancel (default cancel): ")
	line, err := p.readLine(ctx)
	if err != nil {
		return domain.BatchCancel, err
	}
	return parseBatchAnswer(line), nil
}

func parseBatchAnswer(line string) domain.BatchConsent {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "a", "all", "approve all", "approve_all":
		return domain.BatchApproveAll
	case "s", "single", "approve single", "approve_single":
		return domain.BatchApproveSingle
	default:
		return domain.BatchCancel
	}
}

// readLine returns the trimmed answer. End of input counts as an empty
// answer so a closed stdin never approves anything. A read left behind by a
// cancelled prompt is picked up by the next one, so at most one goroutine
// ever reads from in.
func (p *Prompter) readLine(ctx context.Context) (string, error) {
	p.mu.Lock()
	ch := p.pending
	p.pending = nil
	if ch == nil {
		ch = make(chan answer, 1)
		go func(ch chan<- answer) {
			line, err := p.in.ReadString('\n')
			ch <- answer{line: line, err: err}
		}(ch)
	}
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		p.mu.Lock()
		p.pending = ch
		p.mu.Unlock()
		return "", ctx.Err()
	case a := <-ch:
		if a.err != nil && !errors.Is(a.err, io.EOF) {
			return "", a.err
		}
		return strings.TrimSpace(a.line), nil
	}
}

// AutoConsent approves everything. It is only used when the caller asked for
// unattended operation, and the gate refuses it once a session turns strict.
type AutoConsent struct {
	out io.Writer
}

// NewAutoConsent announces each auto-approval on out when non-nil.
func NewAutoConsent(out io.Writer) *AutoConsent {
	return &AutoConsent{out: out}
}

func (a *AutoConsent) Interactive() bool { return false }

func (a *AutoConsent) RequestConsent(_ context.Context, action domain.Action) (bool, error) {
	if a.out != nil {
		fmt.Fprintf(a.out, "auto-approved: %s\n", action.Command)
	}
	return true, nil
}

func (a *AutoConsent) RequestBatchConsent(_ context.Context, plan domain.ExecutionPlan) (domain.BatchConsent, error) {
	if a.out != nil {
		fmt.Fprintf(a.out, "auto-approved plan: %d actions (%d high risk)\n", len(plan.Actions), plan.HighRiskCount())
	}
	return domain.BatchApproveAll, nil
}

var (
	_ ports.ConsentHandler = (*Prompter)(nil)
	_ ports.ConsentHandler = (*AutoConsent)(nil)
)
