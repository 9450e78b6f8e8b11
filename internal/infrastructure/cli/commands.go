package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gtechsd/ganesha-go/internal/domain"
)

func newCheckCommand(s *session) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check <command>",
		Short: "Show the policy decision for a command without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := s.Container()
			if err != nil {
				return err
			}
			command := strings.Join(args, " ")
			d, err := c.GateService.Check(cmd.Context(), command)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), struct {
					Command string `json:"command"`
					domain.Decision
				}{command, d})
			}
			RenderDecision(cmd.OutOrStdout(), command, d)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the decision as JSON")
	return cmd
}

func newSubmitCommand(s *session) *cobra.Command {
	var flags executionFlags
	cmd := &cobra.Command{
		Use:   "submit <command>",
		Short: "Check a command, ask for consent if needed and run it through the daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := s.Container()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			c.GateService.Consent = NewConsentHandler(c.Config.Consent.Mode, flags.yes, nil, out)

			workingDir, err := absWorkingDir(flags.workingDir)
			if err != nil {
				return err
			}
			req := domain.ExecutionRequest{
				Command:    strings.Join(args, " "),
				WorkingDir: workingDir,
				Timeout:    flags.timeout,
			}
			res, err := c.GateService.Submit(cmd.Context(), req, flags.explanation)

			var denied *domain.DeniedError
			switch {
			case errors.As(err, &denied):
				RenderDecision(out, req.Command, denied.Decision)
			case err == nil, errors.Is(err, domain.ErrExecution), errors.Is(err, domain.ErrTimeout), errors.Is(err, domain.ErrPolicyDenied):
				RenderResult(out, res)
			}
			return err
		},
	}
	addExecutionFlags(cmd.Flags(), &flags)
	return cmd
}

func newPlanCommand(s *session) *cobra.Command {
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Review and run multi-step execution plans",
	}

	checkCmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Show the decision for every action in a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := s.Container()
			if err != nil {
				return err
			}
			plan, err := loadPlan(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if d, flagged := c.Policy.CheckText(plan.Task); flagged {
				RenderDecision(out, plan.Task, d)
			}
			for _, action := range plan.Actions {
				d, err := c.GateService.Check(cmd.Context(), action.Command)
				if err != nil {
					return err
				}
				RenderDecision(out, action.Command, d)
			}
			return nil
		},
	}

	var yes bool
	runCmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Review a plan as one unit, then execute it action by action",
		Long:  "Reads a YAML or JSON plan (\"-\" for stdin). Every action is checked before consent is asked; execution stops at the first failure.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := s.Container()
			if err != nil {
				return err
			}
			plan, err := loadPlan(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var in io.Reader
			if args[0] == "-" {
				// stdin is spent on the plan, so line prompts read EOF and cancel.
				in = strings.NewReader("")
			}
			c.GateService.Consent = NewConsentHandler(c.Config.Consent.Mode, yes, in, out)

			report, err := c.GateService.RunPlan(cmd.Context(), plan)
			var denied *domain.DeniedError
			if errors.As(err, &denied) {
				RenderDecision(out, "plan: "+plan.Task, denied.Decision)
			}
			RenderPlanReport(out, report)
			return err
		},
	}
	addYesFlag(runCmd.Flags(), &yes)

	planCmd.AddCommand(checkCmd, runCmd)
	return planCmd
}

func newTierCommand(s *session) *cobra.Command {
	tierCmd := &cobra.Command{
		Use:   "tier",
		Short: "Show or change the trust tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTierShow(cmd, s)
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the active trust tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTierShow(cmd, s)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the trust tiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, tier := range domain.AllTiers() {
				fmt.Fprintf(out, "%-8s %s\n", tier.String(), tier.Description())
			}
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <tier>",
		Short: "Persist a new trust tier (logged as an access level change)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, err := domain.ParseTrustTier(args[0])
			if err != nil {
				return err
			}
			c, err := s.Container()
			if err != nil {
				return err
			}
			if err := c.GateService.SetTrustTier(cmd.Context(), tier, c.GateService.User); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Trust tier set to %s\n", tier.Label())
			if tier == domain.TierYolo {
				fmt.Fprintln(cmd.OutOrStdout(), "Critical commands are now allowed and still require consent.")
			}
			return nil
		},
	}

	tierCmd.AddCommand(showCmd, listCmd, setCmd)
	return tierCmd
}

func runTierShow(cmd *cobra.Command, s *session) error {
	c, err := s.Container()
	if err != nil {
		return err
	}
	tier := c.Policy.TrustTier()
	fmt.Fprintf(cmd.OutOrStdout(), "%s - %s\n", tier.Label(), tier.Description())
	return nil
}

// absWorkingDir resolves --cwd against the caller's directory so the daemon
// never sees a relative path.
func absWorkingDir(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve --cwd %s: %w", dir, err)
	}
	return abs, nil
}

// loadPlan reads a YAML (or JSON) plan from path, or from in when path is "-".
func loadPlan(in io.Reader, path string) (domain.ExecutionPlan, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return domain.ExecutionPlan{}, fmt.Errorf("read plan: %w", err)
	}

	var plan domain.ExecutionPlan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return domain.ExecutionPlan{}, fmt.Errorf("parse plan %s: %w", path, err)
	}
	if plan.IsEmpty() {
		return domain.ExecutionPlan{}, fmt.Errorf("plan %s has no actions", path)
	}
	for i, action := range plan.Actions {
		if strings.TrimSpace(action.Command) == "" {
			return domain.ExecutionPlan{}, fmt.Errorf("plan %s: action %d has no command", path, i+1)
		}
	}
	plan.Normalize()
	return plan, nil
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
