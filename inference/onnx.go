package inference

import (
	"context"
	"os"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"

	"github.com/robpickerill/elegoo-conquerer-vision/images"
	"github.com/robpickerill/elegoo-conquerer-vision/models/yolov4"
)

// ExecutionProvider selects the onnxruntime execution provider.
type ExecutionProvider string

const (
	// ProviderCPU is the default onnxruntime CPU provider.
	ProviderCPU ExecutionProvider = "cpu"
	// ProviderCoreML runs on Apple GPUs and the Neural Engine.
	ProviderCoreML ExecutionProvider = "coreml"
	// ProviderCUDA runs on NVIDIA GPUs.
	ProviderCUDA ExecutionProvider = "cuda"
	// ProviderOpenVINO runs on Intel CPUs and GPUs.
	ProviderOpenVINO ExecutionProvider = "openvino"
)

// ONNXOptions is the options for the ONNX executor.
//
// The export must keep the Darknet row layout: a single float32 output of
// shape (1, rows, 5+K) where every row is [cx, cy, w, h, objectness, scores...]
// with coordinates as fractions of the input and rows =
// yolov4.OutputRows(InputSize). Exports that split boxes and confidences into
// separate outputs are rejected when the executor is created.
type ONNXOptions struct {
	// Path to the ONNX export of the network.
	ModelPath string
	// Path to the onnxruntime shared library; empty uses DefaultSharedLibraryPath.
	LibraryPath string
	// Graph input and output names.
	InputName  string
	OutputName string
	// Square input resolution.
	InputSize int
	// Number of classes the network scores.
	NumClasses int
	// Execution provider; empty means CPU.
	Provider ExecutionProvider
	// Threads used inside one operator; 0 lets onnxruntime decide.
	IntraOpThreads int
}

// DefaultSharedLibraryPath returns the onnxruntime library name for the current platform.
func DefaultSharedLibraryPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "libonnxruntime_arm64.so"
		}
		return "libonnxruntime.so"
	}
}

// ONNXExecutor runs an ONNX export of YOLOv4-tiny with onnxruntime.
//
// Input and output tensors are allocated once and reused for every frame.
type ONNXExecutor struct {
	session   *ort.AdvancedSession
	input     *ort.Tensor[float32]
	output    *ort.Tensor[float32]
	inputSize int
	ownsEnv   bool
	logger    *zap.SugaredLogger
}

// NewONNXExecutor creates an onnxruntime session.
//
// The onnxruntime environment is initialized if needed and destroyed on Close
// if this executor initialized it.
//
// Arguments:
//   - opts: The options for the executor.
//   - logger: The logger.
//
// Returns:
//   - *ONNXExecutor: The executor; the caller must Close it.
//   - error: Error if the runtime or the model cannot be loaded.
func NewONNXExecutor(opts ONNXOptions, logger *zap.SugaredLogger) (*ONNXExecutor, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if opts.ModelPath == "" {
		return nil, errors.New("onnx executor requires a model path")
	}
	if opts.InputSize <= 0 || opts.NumClasses <= 0 {
		return nil, errors.Errorf("onnx executor requires a positive input size and class count, got %d and %d",
			opts.InputSize, opts.NumClasses)
	}
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model file %s", opts.ModelPath)
	}

	e := &ONNXExecutor{inputSize: opts.InputSize, logger: logger}

	if !ort.IsInitialized() {
		libPath := opts.LibraryPath
		if libPath == "" {
			libPath = DefaultSharedLibraryPath()
		}
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrapf(err, "initialize onnxruntime from %s", libPath)
		}
		e.ownsEnv = true
	}

	if err := e.init(opts); err != nil {
		return nil, multierr.Append(err, e.Close())
	}

	logger.Infow("onnx session ready",
		"model", opts.ModelPath,
		"provider", providerOrDefault(opts.Provider),
		"input", opts.InputName,
		"output", opts.OutputName,
		"input_size", opts.InputSize,
	)
	return e, nil
}

func (e *ONNXExecutor) init(opts ONNXOptions) error {
	size := int64(opts.InputSize)
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return errors.Wrap(err, "allocate input tensor")
	}
	e.input = input

	rows := int64(yolov4.OutputRows(opts.InputSize))
	cols := int64(yolov4.RowLength(opts.NumClasses))

	_, outputs, err := ort.GetInputOutputInfo(opts.ModelPath)
	if err != nil {
		return errors.Wrapf(err, "inspect %s", opts.ModelPath)
	}
	if err := checkOutputLayout(outputs, opts.OutputName, rows, cols); err != nil {
		return err
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, rows, cols))
	if err != nil {
		return errors.Wrap(err, "allocate output tensor")
	}
	e.output = output

	options, err := sessionOptions(opts)
	if err != nil {
		return err
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(
		opts.ModelPath,
		[]string{opts.InputName},
		[]string{opts.OutputName},
		[]ort.ArbitraryTensor{e.input},
		[]ort.ArbitraryTensor{e.output},
		options,
	)
	if err != nil {
		return errors.Wrapf(err, "create session for %s", opts.ModelPath)
	}
	e.session = session
	return nil
}

// checkOutputLayout verifies the named output holds Darknet rows of cols
// values. Dynamic dimensions (reported as -1 or 0) match any size.
func checkOutputLayout(outputs []ort.InputOutputInfo, name string, rows, cols int64) error {
	names := make([]string, 0, len(outputs))
	for _, info := range outputs {
		names = append(names, info.Name)
		if info.Name != name {
			continue
		}

		dims := info.Dimensions
		want := ort.NewShape(1, rows, cols)
		if len(dims) != len(want) {
			return errors.Errorf("output %q has shape %v, want %v", name, dims, want)
		}
		for i, d := range dims {
			if d > 0 && d != want[i] {
				return errors.Errorf("output %q has shape %v, want %v", name, dims, want)
			}
		}
		return nil
	}
	return errors.Errorf("model has no output %q, outputs are %v", name, names)
}

// sessionOptions configures threading, graph optimization and the execution provider.
func sessionOptions(opts ONNXOptions) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "create session options")
	}

	fail := func(err error, msg string) (*ort.SessionOptions, error) {
		return nil, multierr.Append(errors.Wrap(err, msg), options.Destroy())
	}

	if err := options.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
		return fail(err, "set intra op threads")
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return fail(err, "set graph optimization level")
	}

	switch providerOrDefault(opts.Provider) {
	case ProviderCPU:
	case ProviderCoreML:
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			return fail(err, "enable CoreML")
		}
	case ProviderOpenVINO:
		if err := options.AppendExecutionProviderOpenVINO(map[string]string{"device_type": "CPU"}); err != nil {
			return fail(err, "enable OpenVINO")
		}
	case ProviderCUDA:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return fail(err, "create CUDA options")
		}
		defer cuda.Destroy()
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return fail(err, "enable CUDA")
		}
	default:
		return fail(errors.Errorf("unknown execution provider %q", opts.Provider), "select provider")
	}

	return options, nil
}

func providerOrDefault(p ExecutionProvider) ExecutionProvider {
	if p == "" {
		return ProviderCPU
	}
	return ExecutionProvider(strings.ToLower(string(p)))
}

// Forward converts frame to a planar RGB input, runs the session and returns
// a copy of the output.
func (e *ONNXExecutor) Forward(ctx context.Context, frame *gocv.Mat) ([]*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}
	if e.session == nil {
		return nil, errors.New("onnx executor is closed")
	}

	img, err := frame.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "convert frame")
	}
	if err := images.PrepareInput(img, e.inputSize, e.input.GetData()); err != nil {
		return nil, err
	}
	if err := e.session.Run(); err != nil {
		return nil, errors.Wrap(err, "run session")
	}

	shape := e.output.GetShape()
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	data := e.output.GetData()
	backing := make([]float32, len(data))
	copy(backing, data)

	return []*tensor.Dense{tensor.New(tensor.WithShape(dims...), tensor.WithBacking(backing))}, nil
}

// Close releases the session, its tensors and, if owned, the environment.
func (e *ONNXExecutor) Close() error {
	var err error
	if e.session != nil {
		err = multierr.Append(err, e.session.Destroy())
		e.session = nil
	}
	if e.input != nil {
		err = multierr.Append(err, e.input.Destroy())
		e.input = nil
	}
	if e.output != nil {
		err = multierr.Append(err, e.output.Destroy())
		e.output = nil
	}
	if e.ownsEnv {
		err = multierr.Append(err, ort.DestroyEnvironment())
		e.ownsEnv = false
	}
	return err
}
