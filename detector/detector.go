// Package detector - turns raw network outputs into labeled detections.
package detector

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorgonia.org/tensor"

	"github.com/robpickerill/elegoo-conquerer-vision/images"
	"github.com/robpickerill/elegoo-conquerer-vision/models"
	"github.com/robpickerill/elegoo-conquerer-vision/models/postprocess"
	"github.com/robpickerill/elegoo-conquerer-vision/models/yolov4"
)

// DefaultClasses are the class names reported when none are configured.
var DefaultClasses = []string{"person", "dog"}

// Frame is the part of a video frame the pipeline needs.
type Frame interface {
	Cols() int
	Rows() int
}

// Executor runs the network forward pass for one frame.
type Executor[F Frame] interface {
	// Forward returns the raw output tensors for frame.
	Forward(ctx context.Context, frame F) ([]*tensor.Dense, error)
	// Close releases the network.
	Close() error
}

// Stages of Detect reported to the Timer.
const (
	StageInference   = "inference"
	StagePostprocess = "postprocess"
)

// Timer times the stages of a detection.
type Timer interface {
	StartOperation(name string) func()
}

type noopTimer struct{}

func (noopTimer) StartOperation(string) func() { return func() {} }

// Config is the configuration for the detector.
type Config struct {
	// Rows at or below this objectness or class score are dropped.
	ConfidenceThreshold float32 `json:"confidence" yaml:"confidence"`
	// Overlap above which the weaker box is suppressed.
	NMSThreshold float32 `json:"nms" yaml:"nms"`
	// Class names that may be reported.
	Classes []string `json:"classes" yaml:"classes"`
	// Suppress only within the same class.
	ClassAware bool `json:"class_aware" yaml:"class_aware"`
}

// DefaultConfig returns the stock thresholds and classes.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: postprocess.DefaultConfidenceThreshold,
		NMSThreshold:        postprocess.DefaultIoUThreshold,
		Classes:             append([]string(nil), DefaultClasses...),
	}
}

// Detection is one labeled box of a frame.
type Detection struct {
	Label      string
	Confidence float32
	Box        images.Rect
	ClassID    int
}

// Caption returns the text drawn above the box, e.g. "person 90%".
func (d Detection) Caption() string {
	return fmt.Sprintf("%s %.0f%%", d.Label, d.Confidence*100)
}

// Detector decodes, filters and suppresses the outputs of an executor.
type Detector[F Frame] struct {
	catalog   *models.Catalog
	executor  Executor[F]
	whitelist postprocess.Whitelist
	threshold float32
	nms       postprocess.NMSConfig
	timer     Timer
	logger    *zap.SugaredLogger
}

// New creates a detector.
//
// Every configured class must be present in the catalog; otherwise the
// returned error wraps models.ErrClassNotFound.
//
// Arguments:
//   - catalog: The class names the network was trained on.
//   - executor: The forward pass. The detector takes ownership of it.
//   - cfg: Thresholds and class names.
//   - logger: The logger.
//
// Returns:
//   - *Detector[F]: The detector.
//   - error: Error if the configuration cannot be resolved.
func New[F Frame](
	catalog *models.Catalog,
	executor Executor[F],
	cfg Config,
	logger *zap.SugaredLogger,
) (*Detector[F], error) {
	if catalog == nil {
		return nil, errors.New("detector requires a class catalog")
	}
	if len(cfg.Classes) == 0 {
		return nil, errors.New("detector requires at least one class")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	ids, err := catalog.ResolveAll(cfg.Classes...)
	if err != nil {
		return nil, errors.Wrap(err, "resolve classes")
	}

	logger.Infow("detector ready",
		"classes", cfg.Classes,
		"class_ids", ids,
		"confidence", cfg.ConfidenceThreshold,
		"nms", cfg.NMSThreshold,
		"class_aware", cfg.ClassAware,
	)

	return &Detector[F]{
		catalog:   catalog,
		executor:  executor,
		whitelist: postprocess.NewWhitelist(ids...),
		threshold: cfg.ConfidenceThreshold,
		nms: postprocess.NMSConfig{
			ScoreThreshold: cfg.ConfidenceThreshold,
			IoUThreshold:   cfg.NMSThreshold,
			ClassAware:     cfg.ClassAware,
		},
		timer:  noopTimer{},
		logger: logger,
	}, nil
}

// Detect runs the forward pass on frame and post-processes the result.
//
// Arguments:
//   - ctx: Cancels the forward pass before it starts.
//   - frame: The frame to detect in.
//
// Returns:
//   - []Detection: The detections in confidence order.
//   - error: Error if the forward pass failed.
func (d *Detector[F]) Detect(ctx context.Context, frame F) ([]Detection, error) {
	if d.executor == nil {
		return nil, errors.New("detector has no executor")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := d.timer.StartOperation(StageInference)
	outputs, err := d.executor.Forward(ctx, frame)
	done()
	if err != nil {
		return nil, errors.Wrap(err, "forward pass")
	}

	done = d.timer.StartOperation(StagePostprocess)
	defer done()
	return d.DetectFrame(outputs, frame.Cols(), frame.Rows()), nil
}

// SetTimer records the inference and postprocess time of every Detect call.
func (d *Detector[F]) SetTimer(t Timer) {
	if t == nil {
		t = noopTimer{}
	}
	d.timer = t
}

// DetectFrame turns the outputs of one forward pass into detections.
//
// Rows of all tensors are decoded and filtered into one candidate list and
// suppressed once. Tensors or rows that cannot be decoded are dropped.
//
// Arguments:
//   - outputs: The raw output tensors.
//   - frameWidth, frameHeight: The size of the original frame.
//
// Returns:
//   - []Detection: The detections in confidence order, never nil.
func (d *Detector[F]) DetectFrame(outputs []*tensor.Dense, frameWidth, frameHeight int) []Detection {
	candidates, stats := yolov4.PostProcess(outputs, frameWidth, frameHeight, d.whitelist, d.threshold)
	if stats.SkippedTensors > 0 {
		d.logger.Debugw("skipped output tensors", "count", stats.SkippedTensors)
	}

	kept := postprocess.Suppress(candidates, d.nms)

	detections := make([]Detection, 0, len(kept))
	for _, i := range kept {
		c := candidates[i]
		label, err := d.catalog.Name(c.Class)
		if err != nil {
			// Whitelisted ids were resolved through the catalog.
			continue
		}
		detections = append(detections, Detection{
			Label:      label,
			Confidence: c.Score,
			Box:        c.Box,
			ClassID:    c.Class,
		})
	}

	d.logger.Debugw("frame processed",
		"rows", stats.Rows,
		"candidates", stats.Accepted,
		"detections", len(detections),
	)

	return detections
}

// Close releases the executor.
func (d *Detector[F]) Close() error {
	if d.executor == nil {
		return nil
	}
	err := d.executor.Close()
	d.executor = nil
	return err
}
