package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "VISION_"

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with VISION_* environment variables.
//
// Recognized variables:
//
//	VISION_STREAM_URL, VISION_MODEL_BACKEND, VISION_MODEL_CONFIG_PATH,
//	VISION_MODEL_WEIGHTS_PATH, VISION_MODEL_ONNX_PATH, VISION_ONNX_LIBRARY_PATH,
//	VISION_ONNX_PROVIDER, VISION_INPUT_SIZE, VISION_CLASSES_PATH, VISION_CLASSES (comma separated),
//	VISION_CONFIDENCE_THRESHOLD, VISION_NMS_THRESHOLD, VISION_NMS_CLASS_AWARE,
//	VISION_WINDOW_SHOW, VISION_LOG_LEVEL, VISION_LOG_DEVELOPMENT,
//	VISION_REPORT_INTERVAL.
//
// Arguments:
//   - cfg: The configuration to update.
//   - lookup: Reads a variable, usually os.LookupEnv.
//
// Returns:
//   - error: Every value that could not be parsed.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("STREAM_URL", &cfg.Stream.URL)
	var backend string
	if e.str("MODEL_BACKEND", &backend) {
		cfg.Model.Backend = Backend(strings.ToLower(backend))
	}
	e.str("MODEL_CONFIG_PATH", &cfg.Model.ConfigPath)
	e.str("MODEL_WEIGHTS_PATH", &cfg.Model.WeightsPath)
	e.str("MODEL_ONNX_PATH", &cfg.Model.ONNXPath)
	e.str("ONNX_LIBRARY_PATH", &cfg.Model.ONNXLibraryPath)
	e.str("ONNX_PROVIDER", &cfg.Model.ONNXProvider)
	e.integer("INPUT_SIZE", &cfg.Model.InputSize)
	e.str("CLASSES_PATH", &cfg.Classes.Path)
	var classes string
	if e.str("CLASSES", &classes) {
		cfg.Classes.Whitelist = SplitList(classes)
	}
	e.float("CONFIDENCE_THRESHOLD", &cfg.Thresholds.Confidence)
	e.float("NMS_THRESHOLD", &cfg.Thresholds.NMS)
	e.boolean("NMS_CLASS_AWARE", &cfg.NMS.ClassAware)
	e.boolean("WINDOW_SHOW", &cfg.Window.Show)
	e.str("LOG_LEVEL", &cfg.Logging.Level)
	e.boolean("LOG_DEVELOPMENT", &cfg.Logging.Development)
	e.duration("REPORT_INTERVAL", &cfg.Profiling.ReportInterval)

	return e.err
}

// SplitList splits a comma separated list, dropping blank entries.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type envReader struct {
	lookup LookupFunc
	err    error
}

func (e *envReader) get(name string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) fail(name, value string, err error) {
	e.err = multierr.Append(e.err, errors.Wrapf(err, "%s%s=%q", EnvPrefix, name, value))
}

func (e *envReader) str(name string, dst *string) bool {
	v, ok := e.get(name)
	if ok {
		*dst = v
	}
	return ok
}

func (e *envReader) integer(name string, dst *int) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = n
}

func (e *envReader) float(name string, dst *float32) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = float32(f)
}

func (e *envReader) boolean(name string, dst *bool) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = b
}

func (e *envReader) duration(name string, dst *time.Duration) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = d
}
