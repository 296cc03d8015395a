package analyzer

import (
	"image"
	"image/color"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/movement"
	"gocv.io/x/gocv"
)

const visibilityThreshold = 0.5

var (
	connectionColor = color.RGBA{R: 224, G: 224, B: 224}
	leftColor       = color.RGBA{R: 255, G: 138, B: 0}
	rightColor      = color.RGBA{R: 0, G: 217, B: 231}
	centreColor     = color.RGBA{R: 255, G: 255, B: 255}
	textColor       = color.RGBA{G: 255}
)

const (
	textX          = 10
	textY          = 30
	textLineHeight = 25
	textScale      = 0.6
	textThickness  = 2
)

// toPixel maps a normalized keypoint into the frame; points outside the frame
// are not drawn.
func toPixel(kp movement.Keypoint, cols, rows int) (image.Point, bool) {
	if kp.X < 0 || kp.X > 1 || kp.Y < 0 || kp.Y > 1 {
		return image.Point{}, false
	}
	x := int(kp.X * float64(cols-1))
	y := int(kp.Y * float64(rows-1))
	return image.Pt(x, y), true
}

func landmarkColor(idx int) color.RGBA {
	switch {
	case idx == movement.Nose:
		return centreColor
	case idx <= movement.LeftEyeOuter, idx == movement.LeftEar, idx == movement.MouthLeft:
		return leftColor
	case idx < movement.LeftShoulder:
		return rightColor
	case idx%2 == 1:
		return leftColor
	default:
		return rightColor
	}
}

// drawSkeleton draws the pose connections and landmarks onto img.
func drawSkeleton(img *gocv.Mat, kps movement.Keypoints) {
	cols, rows := img.Cols(), img.Rows()
	visible := func(idx int) (image.Point, bool) {
		kp, ok := kps[idx]
		if !ok || kp.Visibility < visibilityThreshold {
			return image.Point{}, false
		}
		return toPixel(kp, cols, rows)
	}

	for _, c := range movement.PoseConnections {
		p1, ok1 := visible(c[0])
		p2, ok2 := visible(c[1])
		if ok1 && ok2 {
			gocv.Line(img, p1, p2, connectionColor, 2)
		}
	}
	for idx := range kps {
		if p, ok := visible(idx); ok {
			gocv.Circle(img, p, 3, landmarkColor(idx), -1)
		}
	}
}

// drawMetrics burns the per-frame metric lines into the top-left corner.
func drawMetrics(img *gocv.Mat, a movement.FrameAnalysis) {
	for i, line := range movement.OverlayLines(a) {
		org := image.Pt(textX, textY+i*textLineHeight)
		gocv.PutText(img, line, org, gocv.FontHersheySimplex, textScale, textColor, textThickness)
	}
}
