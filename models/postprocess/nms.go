// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	"github.com/robpickerill/elegoo-conquerer-vision/images"
)

// DefaultIoUThreshold is the overlap above which the weaker box is suppressed.
const DefaultIoUThreshold float32 = 0.4

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// Candidates scoring at or below this are never selected.
	ScoreThreshold float32 `json:"score_threshold" yaml:"score_threshold"`
	// Overlap threshold for suppression.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// If true, suppress only within the same class.
	ClassAware bool `json:"class_aware" yaml:"class_aware"`
}

// DefaultNMSConfig returns the thresholds the detector ships with.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{
		ScoreThreshold: DefaultConfidenceThreshold,
		IoUThreshold:   DefaultIoUThreshold,
	}
}

// Suppress performs greedy Non-Maximum Suppression.
//
// Candidates are ordered by descending score; equal scores keep their
// original order so the result is reproducible. The highest remaining
// candidate is kept and every later candidate whose IoU with it exceeds
// config.IoUThreshold is dropped. Overlap is purely geometric: the class is
// only considered when config.ClassAware is set.
//
// Arguments:
//   - candidates: The candidates of one frame, in any order.
//   - config: NMS configuration.
//
// Returns:
//   - []int: Indices into candidates of the kept boxes, in pick order.
func Suppress(candidates []Candidate, config NMSConfig) []int {
	order := make([]int, 0, len(candidates))
	for i, c := range candidates {
		if c.Score > config.ScoreThreshold {
			order = append(order, i)
		}
	}
	if len(order) == 0 {
		return []int{}
	}

	sort.SliceStable(order, func(a, b int) bool {
		return candidates[order[a]].Score > candidates[order[b]].Score
	})

	kept := make([]int, 0, len(order))
	used := make([]bool, len(order))

	for i := 0; i < len(order); i++ {
		if used[i] {
			continue
		}

		anchor := candidates[order[i]]
		kept = append(kept, order[i])
		used[i] = true

		for j := i + 1; j < len(order); j++ {
			if used[j] {
				continue
			}
			other := candidates[order[j]]
			if config.ClassAware && anchor.Class != other.Class {
				continue
			}
			if images.CalculateIoU(anchor.Box, other.Box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return kept
}

// ApplyGreedyNMS returns the candidates kept by Suppress, in pick order.
//
// Arguments:
//   - candidates: The candidates of one frame.
//   - config: NMS configuration.
//
// Returns:
//   - Filtered slice of candidates. If no candidates survive, returns an empty slice.
func ApplyGreedyNMS(candidates []Candidate, config NMSConfig) []Candidate {
	kept := Suppress(candidates, config)
	filtered := make([]Candidate, 0, len(kept))
	for _, i := range kept {
		filtered = append(filtered, candidates[i])
	}
	return filtered
}
