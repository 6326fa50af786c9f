package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/sandevgo/mythic/internal/core"
	"github.com/sandevgo/mythic/internal/service/orchestrator"
)

// RenderStatus formats an orchestrator report for the terminal. host may be
// nil when host stats are unavailable.
func RenderStatus(r orchestrator.Report, host *HostStats) string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(core.MythicName + " " + core.MythicVersion))
	b.WriteString("\n")
	if r.Uptime > 0 {
		b.WriteString(row("uptime", r.Uptime.Round(time.Second).String()))
		b.WriteString("\n")
	}

	workers := make([]string, 0, len(r.Workers))
	for _, w := range r.Workers {
		line := LabelStyle.Render(w.Name) + stateStyle(w.State).Render(w.State.String())
		if w.LastError != "" {
			line += " " + DescStyle.Render(w.LastError)
		}
		workers = append(workers, line)
	}
	if len(workers) == 0 {
		workers = append(workers, DescStyle.Render("no workers"))
	}
	b.WriteString(section("Workers", workers))

	c := r.Conversation
	summary := "none"
	if c.HasSummary {
		summary = fmt.Sprintf("covers %d messages", c.SummarizedMessages)
	}
	b.WriteString(section("Conversation", []string{
		row("turn", r.Turn.String()),
		row("messages", fmt.Sprintf("%d (user %d, assistant %d)", c.TotalMessages, c.UserMessages, c.AssistantMessages)),
		row("raw tokens", fmt.Sprint(c.RawTokens)),
		row("summary", summary),
		row("summarizing", fmt.Sprint(c.Summarizing)),
		row("turns", fmt.Sprintf("%d completed, %d failed", r.CompletedTurns, r.FailedTurns)),
		row("handler errors", fmt.Sprint(r.HandlerErrors)),
	}))

	if host != nil {
		b.WriteString(section("Host", []string{
			row("cpu", fmt.Sprintf("%.1f%%", host.CPUPercent)),
			row("memory", fmt.Sprintf("%.1f%% of %d MiB", host.MemoryPercent, host.MemoryTotal>>20)),
		}))
	}

	if len(r.Capabilities) > 0 {
		caps := make([]string, 0, len(r.Capabilities))
		for _, c := range r.Capabilities {
			caps = append(caps, DescStyle.Render(c))
		}
		b.WriteString(section("Capabilities", caps))
	}
	return b.String()
}

func section(title string, lines []string) string {
	return UsageStyle.Render(title) + "\n" + BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)) + "\n"
}

func row(label, value string) string {
	return LabelStyle.Render(label) + value
}

func stateStyle(s core.WorkerState) lipgloss.Style {
	switch s {
	case core.StateReady:
		return OKStyle
	case core.StateDegraded, core.StateInitializing, core.StateUninitialized:
		return WarnStyle
	default:
		return ErrorStyle
	}
}
