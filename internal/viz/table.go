package viz

import (
	"fmt"
	"strings"
)

// RenderValues lists names against values under a header.
func RenderValues(st Styles, title string, names []string, values []float64) string {
	var b strings.Builder
	b.WriteString(st.Header.Render(title))
	b.WriteByte('\n')
	width := 0
	for _, n := range names {
		width = max(width, len(n))
	}
	label := st.Label.Width(width + 2)
	for i, n := range names {
		v := "-"
		if i < len(values) {
			v = fmt.Sprintf("% .6g", values[i])
		}
		b.WriteString(label.Render(n))
		b.WriteString(st.Value.Render(v))
		b.WriteByte('\n')
	}
	return b.String()
}

// RenderStrings is RenderValues for preformatted values.
func RenderStrings(st Styles, title string, names, values []string) string {
	var b strings.Builder
	b.WriteString(st.Header.Render(title))
	b.WriteByte('\n')
	width := 0
	for _, n := range names {
		width = max(width, len(n))
	}
	label := st.Label.Width(width + 2)
	for i, n := range names {
		b.WriteString(label.Render(n))
		b.WriteString(st.Value.Render(values[i]))
		b.WriteByte('\n')
	}
	return b.String()
}
