package reporter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/termsaver/indicatord/internal/daemon"
	"github.com/termsaver/indicatord/internal/models"
	"github.com/termsaver/indicatord/internal/prefs"
	"github.com/termsaver/indicatord/pkg/utils"
)

var colors = struct {
	Subtle    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Special   lipgloss.AdaptiveColor
	Error     lipgloss.AdaptiveColor
}{
	Subtle:    lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"},
	Highlight: lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"},
	Special:   lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"},
	Error:     lipgloss.AdaptiveColor{Light: "#FF0000", Dark: "#FF4040"},
}

// Style holds the text renderers used for terminal output
type Style struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	On     lipgloss.Style
	Off    lipgloss.Style
	Subtle lipgloss.Style
	Error  lipgloss.Style
}

func DefaultStyle() Style {
	base := lipgloss.NewStyle()

	return Style{
		Title:  base.Bold(true).Foreground(colors.Highlight),
		Label:  base.Width(14),
		On:     base.Foreground(colors.Special),
		Off:    base.Foreground(colors.Subtle),
		Subtle: base.Foreground(colors.Subtle),
		Error:  base.Foreground(colors.Error),
	}
}

// Reporter renders daemon state and history for the CLI
type Reporter struct {
	style Style
}

func New() *Reporter {
	return &Reporter{style: DefaultStyle()}
}

func (r *Reporter) row(label, value string) string {
	return r.style.Label.Render(label+":") + " " + value + "\n"
}

func (r *Reporter) onOff(on bool, yes, no string) string {
	if on {
		return r.style.On.Render(yes)
	}
	return r.style.Off.Render(no)
}

// FormatStatusText formats a running daemon's status as human-readable text
func (r *Reporter) FormatStatusText(st *daemon.Status) string {
	var b strings.Builder

	b.WriteString(r.style.Title.Render("Terminal Screensaver indicator") + "\n")
	b.WriteString(r.row("Status", r.style.On.Render(fmt.Sprintf("Running (PID: %d)", st.PID))))
	b.WriteString(r.row("Uptime", utils.FormatDuration(time.Since(st.StartedAt))))
	b.WriteString(r.row("Screensaver", r.onOff(st.Enabled, "enabled", "disabled")))
	b.WriteString(r.row("Timeout", FormatTimeout(st.Timeout)))
	b.WriteString(r.row("Update", r.formatUpdate(st)))

	if !st.LastTick.Time.IsZero() {
		last := fmt.Sprintf("%s at %s", st.LastTick.Action, st.LastTick.Time.Format("15:04:05"))
		if st.LastTick.State.IdleSeconds > 0 {
			last += fmt.Sprintf(" (idle %s)", utils.FormatSeconds(st.LastTick.State.IdleSeconds))
		}
		if st.LastTick.Error != "" {
			last += " " + r.style.Error.Render(st.LastTick.Error)
		}
		b.WriteString(r.row("Last tick", last))
	}

	if st.LastLaunch != nil {
		launch := fmt.Sprintf("%s at %s", st.LastLaunch.Kind, st.LastLaunch.Timestamp.Format("2006-01-02 15:04:05"))
		if !st.LastLaunch.Success {
			launch += " " + r.style.Error.Render("failed")
		}
		b.WriteString(r.row("Last launch", launch))
	}

	if len(st.Sources) > 0 {
		b.WriteString("\n" + r.style.Title.Render("Session sources") + "\n")
		for _, src := range st.Sources {
			state := r.style.Subtle.Render("standby")
			if src.InUse {
				state = r.style.On.Render("in use")
			}
			if src.LastError != "" {
				state = r.style.Error.Render("failing: " + src.LastError)
			}
			b.WriteString(fmt.Sprintf("  %-9s %-18s %s\n", src.Capability, src.Name, state))
		}
	}

	b.WriteString(r.style.Subtle.Render("Run "+st.RunID) + "\n")
	return b.String()
}

func (r *Reporter) formatUpdate(st *daemon.Status) string {
	text := st.Update.String()
	if st.Update.IsAvailable() {
		text = r.style.On.Render(text)
	}
	if !st.LastCheck.IsZero() {
		text += r.style.Subtle.Render(" (checked " + st.LastCheck.Format("2006-01-02 15:04") + ")")
	}
	return text
}

// FormatStoppedText describes the persisted settings when no daemon answers
func (r *Reporter) FormatStoppedText(enabled bool, timeout int) string {
	var b strings.Builder
	b.WriteString(r.style.Title.Render("Terminal Screensaver indicator") + "\n")
	b.WriteString(r.row("Status", r.style.Off.Render("Not running")))
	b.WriteString(r.row("Screensaver", r.onOff(enabled, "enabled", "disabled")))
	b.WriteString(r.row("Timeout", FormatTimeout(timeout)))
	return b.String()
}

// FormatHistoryText formats recent events, newest first
func (r *Reporter) FormatHistoryText(events []*models.ActivationEvent) string {
	if len(events) == 0 {
		return "No activity recorded.\n"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-19s %-8s %-3s %-30s %8s\n", "Time", "Kind", "OK", "Detail", "Idle"))
	b.WriteString(strings.Repeat("-", 72) + "\n")

	for _, e := range events {
		ok := "yes"
		if !e.Success {
			ok = "no"
		}
		idle := "-"
		if e.IdleSeconds > 0 {
			idle = utils.FormatSeconds(e.IdleSeconds)
		}
		b.WriteString(fmt.Sprintf("%-19s %-8s %-3s %-30s %8s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.Kind,
			ok,
			truncate(e.Detail, 30),
			idle))
	}
	return b.String()
}

// FormatErrorsText formats stored daemon errors, newest first
func (r *Reporter) FormatErrorsText(logs []*models.ErrorLog) string {
	if len(logs) == 0 {
		return "No errors recorded.\n"
	}

	var b strings.Builder
	for _, l := range logs {
		b.WriteString(fmt.Sprintf("%s  %s\n",
			r.style.Subtle.Render(l.Timestamp.Format("2006-01-02 15:04:05")),
			r.style.Error.Render(l.ErrorMsg)))
	}
	return b.String()
}

// FormatSummaryText formats per kind counts of a history window
func (r *Reporter) FormatSummaryText(h *models.History) string {
	var b strings.Builder
	b.WriteString(r.style.Title.Render("Activity since "+h.Since.Format("2006-01-02 15:04")) + "\n")

	if len(h.Summaries) == 0 {
		b.WriteString("No activity recorded for this period.\n")
		return b.String()
	}

	var total int64
	for _, s := range h.Summaries {
		b.WriteString(fmt.Sprintf("  %-10s %6d\n", s.Kind, s.EventCount))
		total += s.EventCount
	}
	b.WriteString(fmt.Sprintf("  %-10s %6d\n", "total", total))
	return b.String()
}

// FormatTimeoutChoices lists the preset timeouts, marking the current one
func (r *Reporter) FormatTimeoutChoices(current int) string {
	var b strings.Builder
	for _, preset := range prefs.Presets {
		marker := " "
		if preset == current {
			marker = "*"
		}
		b.WriteString(fmt.Sprintf(" %s %-4s (%ds)\n", marker, utils.FormatSeconds(preset), preset))
	}
	if !isPreset(current) {
		b.WriteString(fmt.Sprintf(" * %-4s (%ds, custom)\n", utils.FormatSeconds(current), current))
	}
	return b.String()
}

// FormatTimeout renders seconds as both a rounded unit and the exact value
func FormatTimeout(seconds int) string {
	return fmt.Sprintf("%s (%ds)", utils.FormatSeconds(seconds), seconds)
}

// FormatJSON formats any report value as indented JSON
func FormatJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// FormatYAML formats any report value as YAML
func FormatYAML(v interface{}) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return string(data), nil
}

func isPreset(seconds int) bool {
	for _, p := range prefs.Presets {
		if p == seconds {
			return true
		}
	}
	return false
}

// truncate truncates a string to the specified length
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
