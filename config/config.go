// Package config - runtime configuration of the vision pipeline.
package config

import (
	"bytes"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/robpickerill/elegoo-conquerer-vision/detector"
	"github.com/robpickerill/elegoo-conquerer-vision/logging"
	"github.com/robpickerill/elegoo-conquerer-vision/models/postprocess"
	"github.com/robpickerill/elegoo-conquerer-vision/models/yolov4"
)

const (
	// DefaultStreamURL is the MJPEG stream of the robot's camera.
	DefaultStreamURL = "http://192.168.4.1:81/stream"
	// DefaultWindowName is the title of the preview window.
	DefaultWindowName = "Elegoo Conquerer Vision"
	// DefaultQuitKey closes the preview window.
	DefaultQuitKey = "q"
	// DefaultReportInterval is how often performance is logged.
	DefaultReportInterval = 2 * time.Second
)

// Backend selects the forward pass implementation.
type Backend string

const (
	// BackendDarknet runs the Darknet files through OpenCV DNN.
	BackendDarknet Backend = "darknet"
	// BackendONNX runs an ONNX export through onnxruntime.
	BackendONNX Backend = "onnx"
)

// ReconnectConfig is the backoff used when the stream drops.
type ReconnectConfig struct {
	InitialInterval time.Duration `json:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `json:"max_interval" yaml:"max_interval"`
	// Zero retries forever.
	MaxElapsedTime time.Duration `json:"max_elapsed_time" yaml:"max_elapsed_time"`
}

// StreamConfig is the video source.
type StreamConfig struct {
	URL       string          `json:"url" yaml:"url"`
	Reconnect ReconnectConfig `json:"reconnect" yaml:"reconnect"`
}

// ModelConfig is the network and how to run it.
type ModelConfig struct {
	Backend     Backend `json:"backend" yaml:"backend"`
	ConfigPath  string  `json:"config_path" yaml:"config_path"`
	WeightsPath string  `json:"weights_path" yaml:"weights_path"`
	ONNXPath    string  `json:"onnx_path" yaml:"onnx_path"`
	// Path to the onnxruntime shared library; empty uses the loader's default.
	ONNXLibraryPath string `json:"onnx_library_path" yaml:"onnx_library_path"`
	// One of cpu, coreml, cuda, openvino.
	ONNXProvider string `json:"onnx_provider" yaml:"onnx_provider"`
	InputSize    int    `json:"input_size" yaml:"input_size"`
	InputName    string `json:"input_name" yaml:"input_name"`
	OutputName   string `json:"output_name" yaml:"output_name"`
}

// ClassesConfig is the class list and the classes to report.
type ClassesConfig struct {
	Path      string   `json:"path" yaml:"path"`
	Whitelist []string `json:"whitelist" yaml:"whitelist"`
}

// ThresholdsConfig holds the confidence and overlap thresholds.
type ThresholdsConfig struct {
	Confidence float32 `json:"confidence" yaml:"confidence"`
	NMS        float32 `json:"nms" yaml:"nms"`
}

// NMSConfig tunes suppression.
type NMSConfig struct {
	ClassAware bool `json:"class_aware" yaml:"class_aware"`
}

// WindowConfig is the preview window.
type WindowConfig struct {
	Name string `json:"name" yaml:"name"`
	// When false, detections are logged instead of drawn.
	Show    bool   `json:"show" yaml:"show"`
	QuitKey string `json:"quit_key" yaml:"quit_key"`
}

// ProfilingConfig is the performance report.
type ProfilingConfig struct {
	ReportInterval time.Duration `json:"report_interval" yaml:"report_interval"`
}

// Config is the configuration of the whole program.
type Config struct {
	Stream     StreamConfig     `json:"stream" yaml:"stream"`
	Model      ModelConfig      `json:"model" yaml:"model"`
	Classes    ClassesConfig    `json:"classes" yaml:"classes"`
	Thresholds ThresholdsConfig `json:"thresholds" yaml:"thresholds"`
	NMS        NMSConfig        `json:"nms" yaml:"nms"`
	Window     WindowConfig     `json:"window" yaml:"window"`
	Logging    logging.Config   `json:"logging" yaml:"logging"`
	Profiling  ProfilingConfig  `json:"profiling" yaml:"profiling"`
}

// Default returns the configuration the robot ships with.
func Default() Config {
	opts := yolov4.DefaultOptions()
	return Config{
		Stream: StreamConfig{
			URL: DefaultStreamURL,
			Reconnect: ReconnectConfig{
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     10 * time.Second,
				MaxElapsedTime:  2 * time.Minute,
			},
		},
		Model: ModelConfig{
			Backend:      BackendDarknet,
			ConfigPath:   opts.ConfigPath,
			WeightsPath:  opts.WeightsPath,
			InputSize:    opts.InputSize,
			ONNXProvider: "cpu",
			InputName:    "input",
			OutputName:   "output",
		},
		Classes: ClassesConfig{
			Path:      yolov4.DefaultClassesPath,
			Whitelist: append([]string(nil), detector.DefaultClasses...),
		},
		Thresholds: ThresholdsConfig{
			Confidence: postprocess.DefaultConfidenceThreshold,
			NMS:        postprocess.DefaultIoUThreshold,
		},
		Window: WindowConfig{
			Name:    DefaultWindowName,
			Show:    true,
			QuitKey: DefaultQuitKey,
		},
		Logging: logging.DefaultConfig(),
		Profiling: ProfilingConfig{
			ReportInterval: DefaultReportInterval,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, optional
// dotenv files and the environment, in that order. The result is not
// validated so callers can apply further overrides before calling Validate.
//
// Arguments:
//   - path: The YAML file; empty skips it.
//   - envFiles: Dotenv files loaded into the environment if they exist.
//
// Returns:
//   - Config: The configuration.
//   - error: Error if a source cannot be read or parsed.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "read config %s", path)
		}
		if err := Parse(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config %s", path)
		}
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		// Variables already set in the environment win.
		if err := godotenv.Load(file); err != nil {
			return cfg, errors.Wrapf(err, "load env file %s", file)
		}
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Parse decodes YAML over cfg. Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var err error

	if c.Stream.URL == "" {
		err = multierr.Append(err, errors.New("stream.url is required"))
	}
	r := c.Stream.Reconnect
	if r.InitialInterval <= 0 || r.MaxInterval < r.InitialInterval || r.MaxElapsedTime < 0 {
		err = multierr.Append(err, errors.Errorf(
			"stream.reconnect intervals are invalid (initial=%s max=%s max_elapsed=%s)",
			r.InitialInterval, r.MaxInterval, r.MaxElapsedTime))
	}

	switch c.Model.Backend {
	case BackendDarknet:
		opts := yolov4.Options{
			ConfigPath:  c.Model.ConfigPath,
			WeightsPath: c.Model.WeightsPath,
			InputSize:   c.Model.InputSize,
		}
		err = multierr.Append(err, opts.Validate())
	case BackendONNX:
		if c.Model.ONNXPath == "" {
			err = multierr.Append(err, errors.New("model.onnx_path is required for the onnx backend"))
		}
		if c.Model.InputName == "" || c.Model.OutputName == "" {
			err = multierr.Append(err, errors.New("model.input_name and model.output_name are required for the onnx backend"))
		}
		if c.Model.InputSize <= 0 {
			err = multierr.Append(err, errors.Errorf("model.input_size must be positive, got %d", c.Model.InputSize))
		}
	default:
		err = multierr.Append(err, errors.Errorf("unknown model.backend %q", c.Model.Backend))
	}

	if c.Classes.Path == "" {
		err = multierr.Append(err, errors.New("classes.path is required"))
	}
	if len(c.Classes.Whitelist) == 0 {
		err = multierr.Append(err, errors.New("classes.whitelist must name at least one class"))
	}

	if !inUnitRange(c.Thresholds.Confidence) {
		err = multierr.Append(err, errors.Errorf("thresholds.confidence must be in [0, 1], got %v", c.Thresholds.Confidence))
	}
	if !inUnitRange(c.Thresholds.NMS) {
		err = multierr.Append(err, errors.Errorf("thresholds.nms must be in [0, 1], got %v", c.Thresholds.NMS))
	}

	if len(c.Window.QuitKey) != 1 {
		err = multierr.Append(err, errors.Errorf("window.quit_key must be a single character, got %q", c.Window.QuitKey))
	}

	if _, lerr := logging.ParseLevel(c.Logging.Level); lerr != nil {
		err = multierr.Append(err, lerr)
	}

	if c.Profiling.ReportInterval <= 0 {
		err = multierr.Append(err, errors.Errorf("profiling.report_interval must be positive, got %s", c.Profiling.ReportInterval))
	}

	return err
}

// Detector returns the detector settings.
func (c Config) Detector() detector.Config {
	return detector.Config{
		ConfidenceThreshold: c.Thresholds.Confidence,
		NMSThreshold:        c.Thresholds.NMS,
		Classes:             append([]string(nil), c.Classes.Whitelist...),
		ClassAware:          c.NMS.ClassAware,
	}
}

// Darknet returns the Darknet model options.
func (c Config) Darknet() yolov4.Options {
	return yolov4.Options{
		ConfigPath:  c.Model.ConfigPath,
		WeightsPath: c.Model.WeightsPath,
		InputSize:   c.Model.InputSize,
	}
}

// QuitKeyCode returns the key code WaitKey reports for the quit key.
func (c Config) QuitKeyCode() int {
	if c.Window.QuitKey == "" {
		return int(DefaultQuitKey[0])
	}
	return int(c.Window.QuitKey[0])
}

func inUnitRange(v float32) bool {
	return v >= 0 && v <= 1
}
