// Package render - draws detections onto frames.
package render

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/robpickerill/elegoo-conquerer-vision/detector"
)

var (
	// Green marks people.
	Green = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	// Blue marks dogs.
	Blue = color.RGBA{R: 0, G: 0, B: 255, A: 0}
	// Yellow marks every other class.
	Yellow = color.RGBA{R: 255, G: 255, B: 0, A: 0}
)

// classColors maps labels to box colors.
var classColors = map[string]color.RGBA{
	"person": Green,
	"dog":    Blue,
}

// Font defines the parameters for rendering captions.
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Thickness int
	// Distance between the caption baseline and the top of the box.
	BottomPad int
}

// DefaultFont returns default font settings
func DefaultFont() Font {
	return Font{
		Face:      gocv.FontHersheySimplex,
		Scale:     0.6,
		Thickness: 2,
		BottomPad: 10,
	}
}

// ColorFor returns the box color for a label.
func ColorFor(label string) color.RGBA {
	if c, ok := classColors[label]; ok {
		return c
	}
	return Yellow
}

// CaptionOrigin returns the bottom left corner of the caption above box.
func CaptionOrigin(box image.Rectangle, font Font) image.Point {
	return image.Pt(box.Min.X, box.Min.Y-font.BottomPad)
}

// DetectionBoxes draws a rectangle and a "{label} {confidence}%" caption for
// every detection.
//
// Arguments:
//   - img: The frame to draw on.
//   - detections: The detections of the frame.
//   - font: Caption font.
//   - lineThickness: Rectangle line thickness.
func DetectionBoxes(img *gocv.Mat, detections []detector.Detection, font Font, lineThickness int) {
	for _, d := range detections {
		clr := ColorFor(d.Label)
		rect := d.Box.ToRectangle()

		gocv.Rectangle(img, rect, clr, lineThickness)
		gocv.PutText(img, d.Caption(), CaptionOrigin(rect, font), font.Face, font.Scale, clr, font.Thickness)
	}
}
