// Package yolov4 - YOLOv4-tiny model layout and output decoding.
package yolov4

import "github.com/pkg/errors"

const (
	// DefaultInputSize is the square input resolution of YOLOv4-tiny.
	DefaultInputSize = 416
	// DefaultConfigPath is the Darknet topology description.
	DefaultConfigPath = "yolov4-tiny.cfg"
	// DefaultWeightsPath is the Darknet weights file.
	DefaultWeightsPath = "yolov4-tiny.weights"
	// DefaultClassesPath is the class list the weights were trained on.
	DefaultClassesPath = "coco.names"

	// Row layout: [cx, cy, w, h, objectness, score_1 ... score_K].
	boxOffset        = 0
	objectnessOffset = 4
	// ScoresOffset is the index of the first class score in a row.
	ScoresOffset = 5
)

// Options is the options for the YOLOv4 model.
type Options struct {
	// Path to the Darknet .cfg topology.
	ConfigPath string `json:"config_path" yaml:"config_path"`
	// Path to the Darknet .weights file.
	WeightsPath string `json:"weights_path" yaml:"weights_path"`
	// Square input resolution the frame is resized to.
	InputSize int `json:"input_size" yaml:"input_size"`
}

// DefaultOptions returns the stock YOLOv4-tiny setup.
func DefaultOptions() Options {
	return Options{
		ConfigPath:  DefaultConfigPath,
		WeightsPath: DefaultWeightsPath,
		InputSize:   DefaultInputSize,
	}
}

// Validate checks that the options can describe a network.
func (o Options) Validate() error {
	if o.ConfigPath == "" {
		return errors.New("yolov4 requires config_path to be set")
	}
	if o.WeightsPath == "" {
		return errors.New("yolov4 requires weights_path to be set")
	}
	if o.InputSize <= 0 || o.InputSize%32 != 0 {
		return errors.Errorf("yolov4 input_size must be a positive multiple of 32, got %d", o.InputSize)
	}
	return nil
}

// RowLength returns the length of one output row for numClasses classes.
func RowLength(numClasses int) int {
	return ScoresOffset + numClasses
}

// OutputRows returns the number of rows YOLOv4-tiny produces for a square
// input: three anchors on the stride 32 and stride 16 grids.
func OutputRows(inputSize int) int {
	coarse := inputSize / 32
	fine := inputSize / 16
	return 3 * (coarse*coarse + fine*fine)
}
