package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for terminal summaries.
type Theme struct {
	Primary lipgloss.Color // Main accent color
	Dim     lipgloss.Color // Dimmed/help text color
	Error   lipgloss.Color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Error:   lipgloss.Color("#ff5f5f"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Border lipgloss.Style
	Help   lipgloss.Style
	Error  lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Border: lipgloss.NewStyle().Foreground(t.Primary),
		Help:   lipgloss.NewStyle().Foreground(t.Dim),
		Error:  lipgloss.NewStyle().Bold(true).Foreground(t.Error),
	}
}

// Row is one label/value line of a Summary.
type Row struct {
	Label string
	Value string
}

// Summary renders a boxed report of a finished run:
//
//	╭──────────────────────────────╮
//	│ doubaotts speak [completed]  │
//	├──────────────────────────────┤
//	│ Session   1f0c…              │
//	│ Audio     94.00 KB           │
//	╰──────────────────────────────╯
type Summary struct {
	Styles Styles
	Title  string
	Status string
	Failed bool
	Rows   []Row
}

// Render renders the summary at the given total width.
func (s Summary) Render(width int) string {
	bc := s.Styles.Border
	if width < 10 {
		width = 10
	}
	maxContentWidth := width - 4

	labelWidth := 0
	for _, r := range s.Rows {
		labelWidth = max(labelWidth, lipgloss.Width(r.Label))
	}

	var lines []string
	lines = append(lines, bc.Render("╭"+strings.Repeat("─", width-2)+"╮"))

	statusStyle := s.Styles.Help
	if s.Failed {
		statusStyle = s.Styles.Error
	}
	title := s.Styles.Title.Render(s.Title)
	status := statusStyle.Render("[" + s.Status + "]")
	padding := max(0, width-5-lipgloss.Width(title)-lipgloss.Width(status))
	lines = append(lines, bc.Render("│")+" "+title+" "+status+strings.Repeat(" ", padding)+" "+bc.Render("│"))

	if len(s.Rows) > 0 {
		lines = append(lines, bc.Render("├"+strings.Repeat("─", width-2)+"┤"))
	}
	for _, r := range s.Rows {
		label := s.Styles.Label.Render(r.Label + strings.Repeat(" ", labelWidth-lipgloss.Width(r.Label)))
		avail := maxContentWidth - lipgloss.Width(label) - 2
		value := r.Value
		if avail > 1 && lipgloss.Width(value) > avail {
			value = truncateString(value, avail-1) + "…"
		}
		text := label + "  " + value
		line := bc.Render("│") + " " + text +
			strings.Repeat(" ", max(0, maxContentWidth-lipgloss.Width(text))) + " " + bc.Render("│")
		lines = append(lines, line)
	}

	lines = append(lines, bc.Render("╰"+strings.Repeat("─", width-2)+"╯"))
	return strings.Join(lines, "\n")
}

// truncateString safely truncates a string to the given width,
// handling multi-byte characters correctly.
func truncateString(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	currentWidth := 0
	for i, r := range runes {
		w := lipgloss.Width(string(r))
		if currentWidth+w > width {
			return string(runes[:i])
		}
		currentWidth += w
	}
	return s
}
