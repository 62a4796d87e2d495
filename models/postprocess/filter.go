package postprocess

import (
	"sort"

	"github.com/robpickerill/elegoo-conquerer-vision/images"
)

// DefaultConfidenceThreshold is the minimum objectness and class score a row must exceed.
const DefaultConfidenceThreshold float32 = 0.5

// Whitelist is the set of class ids that may be reported.
type Whitelist map[int]struct{}

// NewWhitelist builds a whitelist from class ids.
func NewWhitelist(ids ...int) Whitelist {
	w := make(Whitelist, len(ids))
	for _, id := range ids {
		w[id] = struct{}{}
	}
	return w
}

// Contains reports whether id is whitelisted.
func (w Whitelist) Contains(id int) bool {
	_, ok := w[id]
	return ok
}

// IDs returns the whitelisted ids in ascending order.
func (w Whitelist) IDs() []int {
	ids := make([]int, 0, len(w))
	for id := range w {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Accept decides whether a decoded row becomes a candidate.
//
// A row is accepted only if objectness > threshold, classScore > threshold
// and classID is whitelisted. Values exactly at the threshold are rejected.
//
// Arguments:
//   - box: The decoded box in frame pixels.
//   - objectness: The row's objectness score.
//   - classScore: The best class score of the row.
//   - classID: The index of the best class.
//   - whitelist: The class ids that may be reported.
//   - threshold: The confidence threshold.
//
// Returns:
//   - Candidate: The candidate, scored by objectness.
//   - bool: False if the row is rejected.
func Accept(
	box images.Rect,
	objectness, classScore float32,
	classID int,
	whitelist Whitelist,
	threshold float32,
) (Candidate, bool) {
	if !(objectness > threshold) || !(classScore > threshold) {
		return Candidate{}, false
	}
	if !whitelist.Contains(classID) {
		return Candidate{}, false
	}
	return Candidate{Box: box, Score: objectness, Class: classID}, true
}
