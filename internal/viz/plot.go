package viz

import (
	"github.com/guptarohit/asciigraph"
)

// Plot renders one series as an ASCII line chart.
func Plot(caption string, values []float64, width, height int) string {
	if len(values) == 0 {
		return caption + ": no data"
	}
	return asciigraph.Plot(values,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// PlotMany overlays several equally long series in one chart.
func PlotMany(caption string, series [][]float64, width, height int) string {
	if len(series) == 0 || len(series[0]) == 0 {
		return caption + ": no data"
	}
	colors := []asciigraph.AnsiColor{asciigraph.Cyan, asciigraph.Yellow, asciigraph.Green, asciigraph.Magenta, asciigraph.Red}
	used := make([]asciigraph.AnsiColor, len(series))
	for i := range series {
		used[i] = colors[i%len(colors)]
	}
	return asciigraph.PlotMany(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(used...),
	)
}
