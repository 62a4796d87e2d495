package yolov4

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/robpickerill/elegoo-conquerer-vision/models/postprocess"
)

func dense(rows ...[]float32) *tensor.Dense {
	cols := len(rows[0])
	data := make([]float32, 0, len(rows)*cols)
	for _, r := range rows {
		data = append(data, r...)
	}
	return tensor.New(tensor.WithShape(len(rows), cols), tensor.WithBacking(data))
}

// TestRows flattens leading dimensions and rejects unusable tensors.
func TestRows(t *testing.T) {
	t.Run("matrix", func(t *testing.T) {
		rows, ok := Rows(dense(
			[]float32{1, 2, 3, 4, 5, 6},
			[]float32{7, 8, 9, 10, 11, 12},
		))
		require.True(t, ok)
		assert.Equal(t, [][]float32{{1, 2, 3, 4, 5, 6}, {7, 8, 9, 10, 11, 12}}, rows)
	})

	t.Run("batched", func(t *testing.T) {
		data := make([]float32, 3*6)
		for i := range data {
			data[i] = float32(i)
		}
		rows, ok := Rows(tensor.New(tensor.WithShape(1, 3, 6), tensor.WithBacking(data)))
		require.True(t, ok)
		require.Len(t, rows, 3)
		assert.Equal(t, []float32{12, 13, 14, 15, 16, 17}, rows[2])
	})

	t.Run("vector is one row", func(t *testing.T) {
		rows, ok := Rows(tensor.New(tensor.WithShape(7), tensor.WithBacking(make([]float32, 7))))
		require.True(t, ok)
		assert.Len(t, rows, 1)
	})

	t.Run("float64 tensor", func(t *testing.T) {
		_, ok := Rows(tensor.New(tensor.WithShape(1, 6), tensor.WithBacking(make([]float64, 6))))
		assert.False(t, ok)
	})

	t.Run("rows without class scores", func(t *testing.T) {
		_, ok := Rows(tensor.New(tensor.WithShape(2, 5), tensor.WithBacking(make([]float32, 10))))
		assert.False(t, ok)
	})

	t.Run("nil tensor", func(t *testing.T) {
		_, ok := Rows(nil)
		assert.False(t, ok)
	})
}

// TestSplitRows rejects data that does not divide into whole rows.
func TestSplitRows(t *testing.T) {
	tests := []struct {
		name     string
		length   int
		cols     int
		expected int
		ok       bool
	}{
		{name: "whole rows", length: 12, cols: 6, expected: 2, ok: true},
		{name: "empty", length: 0, cols: 6, expected: 0, ok: true},
		{name: "partial last row", length: 13, cols: 6},
		{name: "shorter than one row", length: 4, cols: 6},
		{name: "no class scores", length: 10, cols: 5},
		{name: "zero width", length: 6, cols: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, ok := splitRows(make([]float32, tt.length), tt.cols)
			assert.Equal(t, tt.ok, ok)
			assert.Len(t, rows, tt.expected)
		})
	}
}

// TestPostProcess collects whitelisted candidates across all tensors.
func TestPostProcess(t *testing.T) {
	whitelist := postprocess.NewWhitelist(0, 1)

	outputs := []*tensor.Dense{
		dense(
			[]float32{0.5, 0.5, 0.2, 0.2, 0.9, 0.8, 0.1, 0.0}, // person
			[]float32{0.5, 0.5, 0.2, 0.2, 0.4, 0.8, 0.1, 0.0}, // objectness too low
			[]float32{0.5, 0.5, 0.2, 0.2, 0.9, 0.1, 0.1, 0.95}, // cat
		),
		tensor.New(tensor.WithShape(1, 8), tensor.WithBacking(make([]float64, 8))),
		dense(
			[]float32{0.25, 0.25, 0.25, 0.25, 0.7, 0.0, 0.6, 0.0}, // dog
		),
	}

	candidates, stats := PostProcess(outputs, 416, 416, whitelist, 0.5)

	require.Len(t, candidates, 2)
	assert.Equal(t, 0, candidates[0].Class)
	assert.Equal(t, float32(0.9), candidates[0].Score)
	assert.Equal(t, 1, candidates[1].Class)
	assert.Equal(t, float32(0.7), candidates[1].Score)

	assert.Equal(t, Stats{SkippedTensors: 1, Rows: 4, Accepted: 2}, stats)
}

// TestPostProcess_Empty returns no candidates and no panic for empty input.
func TestPostProcess_Empty(t *testing.T) {
	candidates, stats := PostProcess(nil, 416, 416, postprocess.NewWhitelist(0), 0.5)
	assert.Empty(t, candidates)
	assert.Equal(t, Stats{}, stats)
}
