package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robpickerill/elegoo-conquerer-vision/images"
)

func candidate(x1, y1, x2, y2 int, score float32, class int) Candidate {
	return Candidate{Box: images.Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}, Score: score, Class: class}
}

// TestSuppress_Overlap keeps only the stronger of two heavily overlapping boxes.
func TestSuppress_Overlap(t *testing.T) {
	tests := []struct {
		name       string
		candidates []Candidate
		expected   []int
	}{
		{
			name: "iou above threshold keeps higher confidence",
			candidates: []Candidate{
				candidate(0, 0, 100, 100, 0.6, 0),
				candidate(10, 0, 110, 100, 0.9, 0), // IoU = 9000 / 11000 ≈ 0.82
			},
			expected: []int{1},
		},
		{
			name: "iou below threshold keeps both",
			candidates: []Candidate{
				candidate(0, 0, 100, 100, 0.6, 0),
				candidate(50, 50, 150, 150, 0.9, 0), // IoU ≈ 0.14
			},
			expected: []int{1, 0},
		},
		{
			name: "iou exactly at threshold keeps both",
			candidates: []Candidate{
				candidate(0, 0, 100, 10, 0.9, 0),
				candidate(0, 0, 40, 10, 0.8, 0), // IoU = 400 / 1000 = 0.4
			},
			expected: []int{0, 1},
		},
		{
			name: "chained suppression uses picked boxes only",
			candidates: []Candidate{
				candidate(0, 0, 100, 100, 0.95, 0),
				candidate(20, 0, 120, 100, 0.9, 0),  // suppressed by 0
				candidate(60, 0, 160, 100, 0.85, 0), // IoU with 0 ≈ 0.25, kept
			},
			expected: []int{0, 2},
		},
		{
			name: "different classes still suppress each other",
			candidates: []Candidate{
				candidate(0, 0, 100, 100, 0.9, 0),
				candidate(5, 5, 105, 105, 0.8, 16),
			},
			expected: []int{0},
		},
		{
			name:       "empty input",
			candidates: nil,
			expected:   []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Suppress(tt.candidates, DefaultNMSConfig()))
		})
	}
}

// TestSuppress_StableTies breaks equal confidences by original index.
func TestSuppress_StableTies(t *testing.T) {
	candidates := []Candidate{
		candidate(300, 300, 350, 350, 0.7, 0),
		candidate(0, 0, 100, 100, 0.8, 0),
		candidate(5, 0, 105, 100, 0.8, 0),
		candidate(200, 0, 250, 50, 0.8, 1),
	}

	for i := 0; i < 10; i++ {
		assert.Equal(t, []int{1, 3, 0}, Suppress(candidates, DefaultNMSConfig()))
	}
}

// TestSuppress_Idempotent verifies suppressing the output again changes nothing.
func TestSuppress_Idempotent(t *testing.T) {
	candidates := []Candidate{
		candidate(0, 0, 100, 100, 0.55, 0),
		candidate(8, 8, 108, 108, 0.91, 0),
		candidate(150, 150, 250, 250, 0.77, 1),
		candidate(160, 140, 260, 240, 0.74, 1),
		candidate(400, 0, 480, 80, 0.66, 0),
		candidate(90, 90, 160, 160, 0.88, 1),
	}
	cfg := DefaultNMSConfig()

	first := ApplyGreedyNMS(candidates, cfg)
	require.NotEmpty(t, first)

	second := ApplyGreedyNMS(first, cfg)
	assert.Equal(t, first, second)
}

// TestSuppress_ScoreThreshold never selects candidates at or below the score threshold.
func TestSuppress_ScoreThreshold(t *testing.T) {
	candidates := []Candidate{
		candidate(0, 0, 10, 10, 0.5, 0),
		candidate(20, 20, 30, 30, 0.51, 0),
	}

	assert.Equal(t, []int{1}, Suppress(candidates, DefaultNMSConfig()))
}

// TestSuppress_ClassAware limits suppression to boxes of the same class.
func TestSuppress_ClassAware(t *testing.T) {
	candidates := []Candidate{
		candidate(0, 0, 100, 100, 0.9, 0),
		candidate(5, 5, 105, 105, 0.8, 16),
		candidate(3, 3, 103, 103, 0.7, 0),
	}
	cfg := DefaultNMSConfig()
	cfg.ClassAware = true

	assert.Equal(t, []int{0, 1}, Suppress(candidates, cfg))
}

// TestApplyGreedyNMS returns kept candidates in pick order.
func TestApplyGreedyNMS(t *testing.T) {
	candidates := []Candidate{
		candidate(0, 0, 10, 10, 0.6, 0),
		candidate(100, 100, 110, 110, 0.9, 1),
	}

	kept := ApplyGreedyNMS(candidates, DefaultNMSConfig())
	assert.Equal(t, []Candidate{candidates[1], candidates[0]}, kept)
	assert.Empty(t, ApplyGreedyNMS(nil, DefaultNMSConfig()))
}
