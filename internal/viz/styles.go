package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles are the lipgloss styles derived from a Theme.
type Styles struct {
	Theme Theme

	Header  lipgloss.Style
	Node    lipgloss.Style
	Class   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Subtle  lipgloss.Style
	KeyHint lipgloss.Style
	Running lipgloss.Style
	Paused  lipgloss.Style
	Panel   lipgloss.Style
	Graph   lipgloss.Style
}

func NewStyles(t Theme) Styles {
	return Styles{
		Theme: t,
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(t.Primary).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(t.Border),
		Node:    lipgloss.NewStyle().Bold(true).Foreground(t.Text),
		Class:   lipgloss.NewStyle().Foreground(t.Primary),
		Label:   lipgloss.NewStyle().Foreground(t.Muted).Width(14),
		Value:   lipgloss.NewStyle().Foreground(t.Accent).Bold(true),
		Subtle:  lipgloss.NewStyle().Foreground(t.Muted),
		KeyHint: lipgloss.NewStyle().Foreground(t.Muted).Italic(true),
		Running: lipgloss.NewStyle().Bold(true).Foreground(t.Accent),
		Paused:  lipgloss.NewStyle().Bold(true).Foreground(t.Warning),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),
		Graph: lipgloss.NewStyle().Foreground(t.Accent),
	}
}

// DefaultStyles uses the first theme.
var DefaultStyles = NewStyles(Themes[0])

// SparklineChart renders values as a one-line sparkline at most width runes
// wide.
func SparklineChart(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	step := max(len(values)/width, 1)

	var result strings.Builder
	for i := 0; i < width && i*step < len(values); i++ {
		norm := (values[i*step] - lo) / rng
		idx := min(max(int(norm*float64(len(chars)-1)), 0), len(chars)-1)
		result.WriteRune(chars[idx])
	}
	return result.String()
}

func Separator(width int) string {
	return DefaultStyles.Subtle.Render(strings.Repeat("─", max(width, 0)))
}
