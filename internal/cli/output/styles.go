package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used by the renderer.
type Styles struct {
	Header    lipgloss.Style
	Subheader lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Info      lipgloss.Style
	Path      lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Header:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Underline(true),
		Subheader: r.NewStyle().Bold(true),
		Bold:      r.NewStyle().Bold(true),
		Muted:     r.NewStyle().Foreground(lipgloss.Color("8")),
		Success:   r.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:   r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:     r.NewStyle().Foreground(lipgloss.Color("9")),
		Info:      r.NewStyle().Foreground(lipgloss.Color("14")),
		Path:      r.NewStyle().Foreground(lipgloss.Color("13")),
	}
}

// StatusIcon returns a styled icon for a run or step status.
func (r *Renderer) StatusIcon(status string) string {
	switch status {
	case "success", "completed":
		return r.styles.Success.Render("✓")
	case "failed":
		return r.styles.Error.Render("✗")
	case "skipped", "cancelled":
		return r.styles.Muted.Render("-")
	case "running", "pending":
		return r.styles.Info.Render("…")
	default:
		return r.styles.Warning.Render("?")
	}
}
