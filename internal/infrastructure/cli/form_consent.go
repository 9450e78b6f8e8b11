package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/gtechsd/ganesha-go/internal/domain"
	"github.com/gtechsd/ganesha-go/internal/ports"
)

// FormConsent asks through huh forms on a terminal. Both forms start on the
// refusing choice.
type FormConsent struct {
	out io.Writer
}

// NewFormConsent renders summaries to out before each form.
func NewFormConsent(out io.Writer) *FormConsent {
	if out == nil {
		out = os.Stdout
	}
	return &FormConsent{out: out}
}

func (f *FormConsent) Interactive() bool { return true }

func (f *FormConsent) RequestConsent(ctx context.Context, action domain.Action) (bool, error) {
	RenderAction(f.out, action)
	approved := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Run %s risk command?", action.Risk.Label())).
				Affirmative("Run").
				Negative("Deny").
				Value(&approved),
		),
	).WithTheme(huh.ThemeCharm()).WithShowHelp(false)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return approved, nil
}

func (f *FormConsent) RequestBatchConsent(ctx context.Context, plan domain.ExecutionPlan) (domain.BatchConsent, error) {
	RenderPlan(f.out, plan)
	choice := domain.BatchCancel.String()
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Execute %d actions?", len(plan.Actions))).
				Options(
					huh.NewOption("Cancel", domain.BatchCancel.String()),
					huh.NewOption("Approve each action", domain.BatchApproveSingle.String()),
					huh.NewOption("Approve all", domain.BatchApproveAll.String()),
				).
				Value(&choice),
		),
	).WithTheme(huh.ThemeCharm()).WithShowHelp(false)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return domain.BatchCancel, nil
		}
		return domain.BatchCancel, err
	}
	return parseBatchAnswer(choice), nil
}

// NewConsentHandler picks the handler for the session: auto when the caller
// asked for it, huh forms on a terminal in interactive mode, line prompts
// otherwise.
func NewConsentHandler(mode string, auto bool, in io.Reader, out io.Writer) ports.ConsentHandler {
	if auto {
		return NewAutoConsent(out)
	}
	if mode != domain.ConsentModeLine && in == nil && stdinIsTerminal() {
		return NewFormConsent(out)
	}
	return NewPrompter(in, out)
}

func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var _ ports.ConsentHandler = (*FormConsent)(nil)
