package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gtechsd/ganesha-go/internal/domain"
)

var (
	colorGreen  = lipgloss.Color("#8ec07c")
	colorBlue   = lipgloss.Color("#83a598")
	colorYellow = lipgloss.Color("#fabd2f")
	colorOrange = lipgloss.Color("#fe8019")
	colorRed    = lipgloss.Color("#fb4934")
	colorDim    = lipgloss.Color("#928374")

	styleDim    = lipgloss.NewStyle().Foreground(colorDim)
	styleBold   = lipgloss.NewStyle().Bold(true)
	styleOK     = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	styleDenied = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	// Security blocks are reversed red so they cannot be mistaken for routine throttling.
	styleBlock = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Background(colorRed).Bold(true).Padding(0, 1)
)

func riskStyle(risk domain.OperationRisk) lipgloss.Style {
	switch risk {
	case domain.RiskReadOnly:
		return lipgloss.NewStyle().Foreground(colorGreen)
	case domain.RiskLow:
		return lipgloss.NewStyle().Foreground(colorBlue)
	case domain.RiskMedium:
		return lipgloss.NewStyle().Foreground(colorYellow)
	case domain.RiskHigh:
		return lipgloss.NewStyle().Foreground(colorOrange).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	}
}

// RiskBadge renders a risk as a colored label.
func RiskBadge(risk domain.OperationRisk) string {
	return riskStyle(risk).Render(strings.ToUpper(risk.Label()))
}

// RenderDecision prints a policy decision.
func RenderDecision(out io.Writer, command string, d domain.Decision) {
	fmt.Fprintf(out, "Command: %s\n", command)
	fmt.Fprintf(out, "Risk:    %s\n", RiskBadge(d.Risk))
	switch {
	case d.SecurityBlock():
		fmt.Fprintf(out, "%s %s\n", styleBlock.Render("SECURITY BLOCK"), d.Reason)
	case !d.Allowed:
		fmt.Fprintf(out, "%s %s\n", styleDenied.Render("DENIED"), d.Reason)
	case d.AutoApproved:
		fmt.Fprintf(out, "%s %s\n", styleOK.Render("ALLOWED"), d.Reason)
	default:
		fmt.Fprintf(out, "%s %s\n", styleDenied.Render("CONSENT REQUIRED"), d.Reason)
	}
	if d.MatchedRule != "" {
		fmt.Fprintf(out, "%s\n", styleDim.Render("rule: "+d.MatchedRule))
	}
}

// RenderAction prints one action ahead of a consent prompt.
func RenderAction(out io.Writer, action domain.Action) {
	fmt.Fprintf(out, "\n%s %s\n", RiskBadge(action.Risk), styleBold.Render(action.Command))
	if action.Explanation != "" {
		fmt.Fprintf(out, "  %s\n", styleDim.Render(action.Explanation))
	}
}

// RenderPlan prints a plan summary. The high-risk count always comes first.
func RenderPlan(out io.Writer, plan domain.ExecutionPlan) {
	high := plan.HighRiskCount()
	summary := fmt.Sprintf("%d high-risk actions", high)
	if high > 0 {
		summary = riskStyle(domain.RiskHigh).Render(summary)
	}
	fmt.Fprintf(out, "\n%s  (%s)\n", styleBold.Render("Plan: "+plan.Task), summary)
	for i, action := range plan.Actions {
		fmt.Fprintf(out, "%2d. %-8s %s\n", i+1, RiskBadge(action.Risk), action.Command)
		if action.Explanation != "" {
			fmt.Fprintf(out, "    %s\n", styleDim.Render(action.Explanation))
		}
	}
}

// RenderResult prints a daemon result.
func RenderResult(out io.Writer, res domain.ExecutionResult) {
	if res.Output != "" {
		fmt.Fprint(out, res.Output)
		if !strings.HasSuffix(res.Output, "\n") {
			fmt.Fprintln(out)
		}
	}
	if res.Success {
		return
	}
	label := styleDenied.Render("FAILED")
	if strings.HasPrefix(res.Error, "Access denied") && res.Risk == domain.RiskCritical {
		label = styleBlock.Render("SECURITY BLOCK")
	}
	fmt.Fprintf(out, "%s %s (risk %s)\n", label, res.Error, RiskBadge(res.Risk))
}

// RenderPlanReport prints the outcome of every plan step.
func RenderPlanReport(out io.Writer, report domain.PlanReport) {
	for i, r := range report.Results {
		status := styleOK.Render("ok")
		switch {
		case r.Skipped:
			status = styleDim.Render("skipped")
		case r.Err != nil || !r.Result.Success:
			status = styleDenied.Render("failed")
		}
		fmt.Fprintf(out, "%2d. [%s] %s\n", i+1, status, r.Action.Command)
		if r.Result.Output != "" {
			for _, line := range strings.Split(strings.TrimRight(r.Result.Output, "\n"), "\n") {
				fmt.Fprintf(out, "    %s\n", line)
			}
		}
	}
}

// RenderAuditRecords prints stored audit lines newest first.
func RenderAuditRecords(out io.Writer, records []domain.AuditRecord) {
	for _, rec := range records {
		level := rec.Level
		switch rec.Level {
		case domain.LevelCritical.String():
			level = styleBlock.Render(level)
		case domain.LevelError.String():
			level = riskStyle(domain.RiskHigh).Render(level)
		case domain.LevelWarning.String():
			level = riskStyle(domain.RiskMedium).Render(level)
		}
		fmt.Fprintf(out, "%s %5d %s %s\n",
			styleDim.Render(rec.Timestamp.Format(domain.TimestampFormat)), rec.Seq, level, rec.Line)
	}
}

// RenderHealthReport prints doctor checks.
func RenderHealthReport(out io.Writer, report domain.HealthReport) {
	for _, check := range report.Checks {
		status := strings.ToUpper(string(check.Status))
		switch check.Status {
		case domain.HealthOK:
			status = styleOK.Render(status)
		case domain.HealthWarn:
			status = styleDenied.Render(status)
		default:
			status = styleBlock.Render(status)
		}
		fmt.Fprintf(out, "[%s] %s - %s\n", status, check.Name, check.Details)
	}
}
