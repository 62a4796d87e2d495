// Package images - Geometry and pixel preparation for detection frames.
package images

import (
	"fmt"
	"image"
)

// Rect is a lightweight bounding box in pixel coordinates of the original frame.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1, Y1, X2, Y2 int
}

// RectFromXYWH builds a Rect from its top-left corner and size.
//
// Arguments:
//   - x, y: The top-left corner.
//   - width, height: The size of the box in pixels.
//
// Returns:
//   - Rect: The box spanning [x, x+width) by [y, y+height).
func RectFromXYWH(x, y, width, height int) Rect {
	return Rect{X1: x, Y1: y, X2: x + width, Y2: y + height}
}

// X returns the left edge.
func (r Rect) X() int { return r.X1 }

// Y returns the top edge.
func (r Rect) Y() int { return r.Y1 }

// Width returns the horizontal size of the box.
func (r Rect) Width() int { return r.X2 - r.X1 }

// Height returns the vertical size of the box.
func (r Rect) Height() int { return r.Y2 - r.Y1 }

// Area returns the area of the box, or 0 when the box is degenerate.
func (r Rect) Area() int {
	w, h := r.Width(), r.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// ToRectangle converts the box to an image.Rectangle for drawing.
func (r Rect) ToRectangle() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

func (r Rect) String() string {
	return fmt.Sprintf("(x=%d, y=%d, w=%d, h=%d)", r.X(), r.Y(), r.Width(), r.Height())
}

// CalculateIoU returns the Intersection over Union of two boxes.
//
// IoU = Area of Intersection / Area of Union, a value between 0.0 (disjoint or
// touching) and 1.0 (identical). The intersection spans from the maximum of the
// top-left corners to the minimum of the bottom-right corners; the union uses
// inclusion-exclusion: Area(A) + Area(B) - Area(Intersection).
//
// Arguments:
//   - r: The first box.
//   - o: The other box to compare against.
//
// Returns:
//   - float32: The IoU score. Degenerate boxes yield 0.
//
// Example Usage:
// ```go
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//	iou := CalculateIoU(rect1, rect2) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}

	// Cast before dividing; integer division would truncate to 0.
	return float32(interArea) / float32(unionArea)
}
