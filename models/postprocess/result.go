// Package postprocess - Candidate filtering and suppression for detection results.
package postprocess

import "github.com/robpickerill/elegoo-conquerer-vision/images"

// Candidate represents a single decoded detection that passed filtering.
type Candidate struct {
	// The bounding box in pixel coordinates of the original frame.
	Box images.Rect
	// The objectness confidence of the candidate.
	Score float32
	// The predicted class index of the candidate.
	Class int
}
