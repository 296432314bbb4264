package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/nodeforge/internal/orchestration"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
	idStyle      = lipgloss.NewStyle().Width(34)
	kindStyle    = lipgloss.NewStyle().Width(16).Foreground(colorDim)
)

var statusStyles = map[orchestration.Status]lipgloss.Style{
	orchestration.StatusCreated:   lipgloss.NewStyle().Foreground(colorGreen),
	orchestration.StatusUpdated:   lipgloss.NewStyle().Foreground(colorYellow),
	orchestration.StatusUnchanged: lipgloss.NewStyle().Foreground(colorDim),
	orchestration.StatusDeleted:   lipgloss.NewStyle().Foreground(colorYellow),
	orchestration.StatusFailed:    lipgloss.NewStyle().Foreground(colorRed).Bold(true),
	orchestration.StatusBlocked:   lipgloss.NewStyle().Foreground(colorRed),
	orchestration.StatusCancelled: lipgloss.NewStyle().Foreground(colorRed),
}

var actionStyles = map[orchestration.Action]lipgloss.Style{
	orchestration.ActionCreate: lipgloss.NewStyle().Foreground(colorGreen),
	orchestration.ActionUpdate: lipgloss.NewStyle().Foreground(colorYellow),
	orchestration.ActionDelete: lipgloss.NewStyle().Foreground(colorRed),
	orchestration.ActionNoop:   lipgloss.NewStyle().Foreground(colorDim),
}

var reportStatuses = []orchestration.Status{
	orchestration.StatusCreated,
	orchestration.StatusUpdated,
	orchestration.StatusUnchanged,
	orchestration.StatusDeleted,
	orchestration.StatusFailed,
	orchestration.StatusBlocked,
	orchestration.StatusCancelled,
}

// renderReport produces a lipgloss-styled summary of a pass.
func renderReport(r *orchestration.Report) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(titleStyle.Render(fmt.Sprintf("  nodeforge %s: %s", r.Phase, r.Stack)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("  run %s, %v", r.RunID, r.Duration.Round(time.Millisecond))))
	b.WriteString("\n")

	if len(r.Nodes) > 0 {
		renderResults(&b, "Nodes", r.Nodes)
	}
	if len(r.Pruned) > 0 {
		renderResults(&b, "Pruned", r.Pruned)
	}

	b.WriteString("\n  ")
	var counts []string
	for _, s := range reportStatuses {
		if n := r.Count(s); n > 0 {
			counts = append(counts, statusStyles[s].Render(fmt.Sprintf("%d %s", n, s)))
		}
	}
	if len(counts) == 0 {
		counts = append(counts, dimStyle.Render("nothing to do"))
	}
	b.WriteString(strings.Join(counts, dimStyle.Render(", ")))
	b.WriteString("\n")
	return b.String()
}

func renderResults(b *strings.Builder, title string, results []orchestration.NodeResult) {
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("  " + title))
	b.WriteString("\n")
	for _, res := range results {
		b.WriteString("    ")
		b.WriteString(idStyle.Render(res.ID))
		b.WriteString(kindStyle.Render(string(res.Kind)))
		b.WriteString(statusStyles[res.Status].Render(string(res.Status)))
		switch {
		case res.Status == orchestration.StatusBlocked && res.Cause != "":
			b.WriteString(dimStyle.Render(" by " + res.Cause))
		case res.Err != nil:
			b.WriteString(dimStyle.Render(": " + firstLine(res.Err.Error())))
		case res.Duration > 0 && res.Status != orchestration.StatusUnchanged:
			b.WriteString(dimStyle.Render(" " + res.Duration.Round(time.Millisecond).String()))
		}
		b.WriteString("\n")
	}
}

// renderPlan lists the planned action per node.
func renderPlan(p *orchestration.Plan) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(titleStyle.Render(fmt.Sprintf("  nodeforge plan: %s", p.Stack)))
	b.WriteString("\n\n")
	for _, act := range p.Actions {
		b.WriteString("    ")
		b.WriteString(actionStyles[act.Action].Width(8).Render(string(act.Action)))
		b.WriteString(idStyle.Render(act.ID))
		b.WriteString(kindStyle.Render(string(act.Kind)))
		if act.Note != "" {
			b.WriteString(dimStyle.Render("(" + act.Note + ")"))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n  ")
	if !p.HasChanges() {
		b.WriteString(dimStyle.Render("No changes. The deployment matches the configuration."))
	} else {
		b.WriteString(fmt.Sprintf("%d to create, %d to update, %d to delete",
			p.Count(orchestration.ActionCreate), p.Count(orchestration.ActionUpdate), p.Count(orchestration.ActionDelete)))
	}
	b.WriteString("\n")
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
