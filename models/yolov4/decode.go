package yolov4

import (
	"github.com/chewxy/math32"

	"github.com/robpickerill/elegoo-conquerer-vision/images"
)

// Decoded is one output row converted to frame coordinates.
type Decoded struct {
	// Box in pixel coordinates of the original frame.
	Box images.Rect
	// Objectness is the confidence that the cell holds any object.
	Objectness float32
	// ClassID is the index of the best class, or -1 if no score is positive.
	ClassID int
	// ClassScore is the best class score.
	ClassScore float32
}

// Decode converts one raw row into a box, objectness and best class.
//
// The geometry is relative to the network input; it is scaled by the original
// frame size because the network ran on a resized copy. Coordinates are
// truncated, never rounded.
//
// Malformed rows never panic: a row that is too short or carries non-finite
// geometry or objectness decodes with zero objectness, and non-finite class
// scores count as zero, so such rows are dropped by the filter.
//
// Arguments:
//   - row: [cx, cy, w, h, objectness, score_1 ... score_K].
//   - frameWidth, frameHeight: The size of the original frame.
//
// Returns:
//   - Decoded: The decoded row.
func Decode(row []float32, frameWidth, frameHeight int) Decoded {
	d := Decoded{ClassID: -1}
	if len(row) < ScoresOffset {
		return d
	}

	d.ClassID, d.ClassScore = bestClass(row[ScoresOffset:])

	cx := row[boxOffset+0]
	cy := row[boxOffset+1]
	w := row[boxOffset+2]
	h := row[boxOffset+3]
	objectness := row[objectnessOffset]
	if !finite(cx) || !finite(cy) || !finite(w) || !finite(h) || !finite(objectness) {
		return d
	}
	d.Objectness = objectness

	fw := float32(frameWidth)
	fh := float32(frameHeight)
	d.Box = images.RectFromXYWH(
		int((cx-w/2)*fw),
		int((cy-h/2)*fh),
		int(w*fw),
		int(h*fh),
	)
	return d
}

// bestClass scans scores left to right with a strict comparison, so the
// lowest index wins ties and a row with no positive score has no class.
func bestClass(scores []float32) (int, float32) {
	id := -1
	maxScore := float32(0)
	for i, s := range scores {
		if !finite(s) {
			continue
		}
		if s > maxScore {
			maxScore = s
			id = i
		}
	}
	return id, maxScore
}

func finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}
