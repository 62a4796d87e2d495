// Package yolov4 - postprocess YOLOv4 model outputs.
package yolov4

import (
	"gorgonia.org/tensor"

	"github.com/robpickerill/elegoo-conquerer-vision/models/postprocess"
)

// Stats counts what happened to the rows of one frame.
type Stats struct {
	// Tensors that could not be read as float32 rows.
	SkippedTensors int
	// Rows decoded.
	Rows int
	// Rows that became candidates.
	Accepted int
}

// Rows returns the rows of an output tensor without copying.
//
// The last dimension is the row length; all leading dimensions are flattened,
// so (N, 5+K) and (1, N, 5+K) are both accepted.
//
// Returns:
//   - [][]float32: The rows.
//   - bool: False if the tensor is not float32 or too narrow to hold a class score.
func Rows(t *tensor.Dense) ([][]float32, bool) {
	if t == nil {
		return nil, false
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, false
	}
	shape := t.Shape()
	if shape.Dims() == 0 {
		return nil, false
	}
	return splitRows(data, shape[shape.Dims()-1])
}

// splitRows slices data into rows of cols values. It fails when a row cannot
// hold a class score or data does not divide into whole rows.
func splitRows(data []float32, cols int) ([][]float32, bool) {
	if cols <= ScoresOffset || len(data)%cols != 0 {
		return nil, false
	}

	rows := make([][]float32, 0, len(data)/cols)
	for off := 0; off < len(data); off += cols {
		rows = append(rows, data[off:off+cols:off+cols])
	}
	return rows, true
}

// PostProcess decodes and filters every row of every output tensor.
//
// Arguments:
//   - outputs: The raw output tensors of one forward pass.
//   - frameWidth, frameHeight: The size of the original frame.
//   - whitelist: The class ids that may be reported.
//   - threshold: The confidence threshold.
//
// Returns:
//   - []postprocess.Candidate: The accepted candidates of all tensors, in row order.
//   - Stats: Row accounting for the frame.
func PostProcess(
	outputs []*tensor.Dense,
	frameWidth, frameHeight int,
	whitelist postprocess.Whitelist,
	threshold float32,
) ([]postprocess.Candidate, Stats) {
	var stats Stats
	candidates := make([]postprocess.Candidate, 0)

	for _, output := range outputs {
		rows, ok := Rows(output)
		if !ok {
			stats.SkippedTensors++
			continue
		}
		for _, row := range rows {
			stats.Rows++
			d := Decode(row, frameWidth, frameHeight)
			c, ok := postprocess.Accept(d.Box, d.Objectness, d.ClassScore, d.ClassID, whitelist, threshold)
			if !ok {
				continue
			}
			stats.Accepted++
			candidates = append(candidates, c)
		}
	}

	return candidates, stats
}
