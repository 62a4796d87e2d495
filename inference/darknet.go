// Package inference - forward pass executors for the detector.
package inference

import (
	"context"
	"image"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"

	"github.com/robpickerill/elegoo-conquerer-vision/models/yolov4"
)

// ErrEmptyFrame is returned when a frame holds no pixels.
var ErrEmptyFrame = errors.New("empty frame")

// DarknetExecutor runs a Darknet network through OpenCV DNN on the CPU.
type DarknetExecutor struct {
	net         gocv.Net
	outputNames []string
	inputSize   image.Point
	logger      *zap.SugaredLogger
}

// NewDarknetExecutor loads a Darknet network.
//
// Arguments:
//   - opts: The topology and weights files and the input size.
//   - logger: The logger.
//
// Returns:
//   - *DarknetExecutor: The executor; the caller must Close it.
//   - error: Error if the files are missing or the network cannot be loaded.
func NewDarknetExecutor(opts yolov4.Options, logger *zap.SugaredLogger) (*DarknetExecutor, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	for _, path := range []string{opts.ConfigPath, opts.WeightsPath} {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrapf(err, "model file %s", path)
		}
	}

	net := gocv.ReadNetFromDarknet(opts.ConfigPath, opts.WeightsPath)
	if net.Empty() {
		return nil, errors.Errorf("failed to load darknet network from %s and %s", opts.ConfigPath, opts.WeightsPath)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendOpenCV); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "set dnn backend")
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "set dnn target")
	}

	names, err := OutputLayerNames(net.GetLayerNames(), net.GetUnconnectedOutLayers())
	if err != nil {
		net.Close()
		return nil, err
	}

	logger.Infow("darknet network loaded",
		"config", opts.ConfigPath,
		"weights", opts.WeightsPath,
		"input_size", opts.InputSize,
		"output_layers", names,
	)

	return &DarknetExecutor{
		net:         net,
		outputNames: names,
		inputSize:   image.Pt(opts.InputSize, opts.InputSize),
		logger:      logger,
	}, nil
}

// OutputLayerNames maps the 1-based ids of unconnected output layers to names.
//
// Arguments:
//   - layerNames: All layer names of the network.
//   - unconnected: The 1-based ids of the output layers.
//
// Returns:
//   - []string: The output layer names, in id order.
//   - error: Error if an id is out of range or there are no outputs.
func OutputLayerNames(layerNames []string, unconnected []int) ([]string, error) {
	if len(unconnected) == 0 {
		return nil, errors.New("network has no output layers")
	}
	names := make([]string, 0, len(unconnected))
	for _, id := range unconnected {
		if id < 1 || id > len(layerNames) {
			return nil, errors.Errorf("output layer id %d out of range [1, %d]", id, len(layerNames))
		}
		names = append(names, layerNames[id-1])
	}
	return names, nil
}

// Forward resizes frame to the input size, scales it to [0, 1], swaps it to
// RGB and returns a copy of every output layer.
func (e *DarknetExecutor) Forward(ctx context.Context, frame *gocv.Mat) ([]*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}

	blob := gocv.BlobFromImage(*frame, 1.0/255.0, e.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	e.net.SetInput(blob, "")
	outputs := e.net.ForwardLayers(e.outputNames)
	defer func() {
		for i := range outputs {
			outputs[i].Close()
		}
	}()

	tensors := make([]*tensor.Dense, 0, len(outputs))
	for i := range outputs {
		t, err := matToTensor(outputs[i])
		if err != nil {
			e.logger.Debugw("skipping output layer", "layer", e.outputNames[i], "error", err)
			continue
		}
		tensors = append(tensors, t)
	}
	return tensors, nil
}

// matToTensor copies a 2D float32 output Mat into a tensor.
func matToTensor(m gocv.Mat) (*tensor.Dense, error) {
	if m.Empty() {
		return nil, errors.New("empty output")
	}
	data, err := m.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "read output")
	}
	rows, cols := m.Rows(), m.Cols()
	if rows*cols != len(data) {
		return nil, errors.Errorf("output of %d values is not %dx%d", len(data), rows, cols)
	}

	// The Mat owns data; it is released when the Mat is closed.
	backing := make([]float32, len(data))
	copy(backing, data)
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(backing)), nil
}

// Close releases the network.
func (e *DarknetExecutor) Close() error {
	return e.net.Close()
}
