// Package report renders the artifacts that accompany an analyzed video: a
// per-frame timeline chart and the files of the downloadable bundle.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"os"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/movement"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

var ErrNoFrames = errors.New("no frames with detection to plot")

var seriesColors = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
}

type Plotter struct {
	Width  vg.Length
	Height vg.Length
}

func NewPlotter() *Plotter {
	return &Plotter{Width: 12 * vg.Inch, Height: 7 * vg.Inch}
}

// RenderTimeline writes a PNG with joint angles on top and posture stability
// below, one point per frame with a detected body.
func (p *Plotter) RenderTimeline(frames []movement.FrameAnalysis, title, outputPath string) error {
	series := Series(frames)
	if len(series.Frames) == 0 {
		return ErrNoFrames
	}

	angles := plot.New()
	angles.Title.Text = title
	angles.Y.Label.Text = "Angle (°)"
	angles.Y.Min, angles.Y.Max = 0, 180
	angles.Legend.Top = true
	angles.Legend.Left = false
	angles.Legend.XOffs = -10
	angles.Legend.YOffs = -10
	angles.Add(plotter.NewGrid())

	for i, s := range series.Angles() {
		line, err := plotter.NewLine(points(series.Frames, s.Values))
		if err != nil {
			return fmt.Errorf("build %s line: %w", s.Name, err)
		}
		line.Color = seriesColors[i%len(seriesColors)]
		line.Width = vg.Points(1.5)
		angles.Add(line)
		angles.Legend.Add(s.Name, line)
	}

	stability := plot.New()
	stability.X.Label.Text = "Frame"
	stability.Y.Label.Text = "Stability"
	stability.Y.Min, stability.Y.Max = 0, 1
	stability.Add(plotter.NewGrid())

	line, err := plotter.NewLine(points(series.Frames, series.Stability))
	if err != nil {
		return fmt.Errorf("build stability line: %w", err)
	}
	line.Color = color.RGBA{R: 148, G: 103, B: 189, A: 255}
	line.Width = vg.Points(1.5)
	stability.Add(line)

	img := vgimg.New(p.Width, p.Height)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 2, Cols: 1, PadY: vg.Points(8)}
	canvases := plot.Align([][]*plot.Plot{{angles}, {stability}}, tiles, dc)
	angles.Draw(canvases[0][0])
	stability.Draw(canvases[1][0])

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		os.Remove(outputPath)
		return fmt.Errorf("write chart: %w", err)
	}
	return f.Close()
}

func points(xs []int, ys []float64) plotter.XYs {
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = float64(xs[i])
		pts[i].Y = ys[i]
	}
	return pts
}
