package report

import (
	"io"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/movement"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderInteractive writes an HTML line chart of the per-frame joint angles,
// with stability on a second y axis.
func RenderInteractive(w io.Writer, frames []movement.FrameAnalysis, title, subtitle string) error {
	series := Series(frames)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Angle (°)", Min: 0, Max: 180}),
	)
	line.ExtendYAxis(opts.YAxis{Name: "Stability", Min: 0, Max: 1})

	line.SetXAxis(series.Frames)
	for _, s := range series.Angles() {
		line.AddSeries(s.Name, lineData(s.Values), charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}
	line.AddSeries("Stability", lineData(series.Stability),
		charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1, ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}),
	)

	return line.Render(w)
}

func lineData(values []float64) []opts.LineData {
	out := make([]opts.LineData, len(values))
	for i, v := range values {
		out[i] = opts.LineData{Value: v}
	}
	return out
}
