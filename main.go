package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/robpickerill/elegoo-conquerer-vision/config"
	"github.com/robpickerill/elegoo-conquerer-vision/detector"
	"github.com/robpickerill/elegoo-conquerer-vision/inference"
	"github.com/robpickerill/elegoo-conquerer-vision/logging"
	"github.com/robpickerill/elegoo-conquerer-vision/models"
)

const (
	flagConfig     = "config"
	flagEnvFile    = "env-file"
	flagStreamURL  = "stream-url"
	flagBackend    = "backend"
	flagClasses    = "classes"
	flagConfidence = "confidence"
	flagNMS        = "nms"
	flagClassAware = "class-aware"
	flagHeadless   = "headless"
	flagLogLevel   = "log-level"
	flagDebug      = "debug"
	flagOutput     = "output"
)

func main() {
	app := &cli.App{
		Name:  "conquerer-vision",
		Usage: "detect people and dogs on the robot's camera stream",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.StringSliceFlag{
				Name:  flagEnvFile,
				Value: cli.NewStringSlice(".env"),
				Usage: "dotenv `FILE`s loaded before reading VISION_* variables",
			},
			&cli.StringFlag{Name: flagStreamURL, Usage: "video stream `URL`, file or device"},
			&cli.StringFlag{Name: flagBackend, Usage: "forward pass backend: darknet or onnx"},
			&cli.StringFlag{Name: flagClasses, Usage: "comma separated class names to report"},
			&cli.Float64Flag{Name: flagConfidence, Usage: "confidence threshold"},
			&cli.Float64Flag{Name: flagNMS, Usage: "non-maximum suppression IoU threshold"},
			&cli.BoolFlag{Name: flagClassAware, Usage: "suppress overlapping boxes only within a class"},
			&cli.BoolFlag{Name: flagHeadless, Usage: "log detections instead of opening a window"},
			&cli.StringFlag{Name: flagLogLevel, Usage: "debug, info, warn or error"},
			&cli.BoolFlag{Name: flagDebug, Usage: "development logging at debug level"},
		},
		Action: func(c *cli.Context) error {
			return withPipeline(c, runStream)
		},
		Commands: []*cli.Command{
			{
				Name:      "image",
				Usage:     "detect on a single image and write the annotated result",
				ArgsUsage: "IMAGE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    flagOutput,
						Aliases: []string{"o"},
						Value:   "detections.jpg",
						Usage:   "write the annotated image to `FILE`",
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("image requires exactly one IMAGE argument", 2)
					}
					return withPipeline(c, func(ctx context.Context, rt *pipeline) error {
						return runImage(ctx, rt, c.Args().First(), c.String(flagOutput))
					})
				},
			},
			{
				Name:      "dir",
				Usage:     "detect on every recorded frame in a directory",
				ArgsUsage: "DIR",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    flagOutput,
						Aliases: []string{"o"},
						Value:   "detections",
						Usage:   "write annotated frames into `DIR`",
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("dir requires exactly one DIR argument", 2)
					}
					return withPipeline(c, func(ctx context.Context, rt *pipeline) error {
						return runDir(ctx, rt, c.Args().First(), c.String(flagOutput))
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// pipeline is everything a run needs, built from the configuration.
type pipeline struct {
	cfg      config.Config
	logger   *zap.SugaredLogger
	detector *detector.Detector[*gocv.Mat]
}

func (rt *pipeline) Close() error {
	err := rt.detector.Close()
	return multierr.Append(err, rt.logger.Sync())
}

// withPipeline loads the configuration, builds the detector and runs fn until
// it returns or the process is interrupted.
func withPipeline(c *cli.Context, fn func(context.Context, *pipeline) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger, err := logging.New("vision", cfg.Logging)
	if err != nil {
		return err
	}

	det, err := newDetector(cfg, logger)
	if err != nil {
		logger.Errorw("startup failed", "error", err)
		_ = logger.Sync()
		return err
	}

	rt := &pipeline{cfg: cfg, logger: logger, detector: det}
	defer func() {
		if cerr := rt.Close(); cerr != nil {
			logger.Debugw("shutdown", "error", cerr)
		}
	}()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fn(ctx, rt)
}

// loadConfig applies, in order: defaults, the YAML file, dotenv files and
// VISION_* variables, then command line flags.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String(flagConfig), c.StringSlice(flagEnvFile)...)
	if err != nil {
		return cfg, errors.Wrap(err, "load configuration")
	}

	if c.IsSet(flagStreamURL) {
		cfg.Stream.URL = c.String(flagStreamURL)
	}
	if c.IsSet(flagBackend) {
		cfg.Model.Backend = config.Backend(c.String(flagBackend))
	}
	if c.IsSet(flagClasses) {
		cfg.Classes.Whitelist = config.SplitList(c.String(flagClasses))
	}
	if c.IsSet(flagConfidence) {
		cfg.Thresholds.Confidence = float32(c.Float64(flagConfidence))
	}
	if c.IsSet(flagNMS) {
		cfg.Thresholds.NMS = float32(c.Float64(flagNMS))
	}
	if c.IsSet(flagClassAware) {
		cfg.NMS.ClassAware = c.Bool(flagClassAware)
	}
	if c.IsSet(flagHeadless) {
		cfg.Window.Show = !c.Bool(flagHeadless)
	}
	if c.IsSet(flagLogLevel) {
		cfg.Logging.Level = c.String(flagLogLevel)
	}
	if c.Bool(flagDebug) {
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
	}

	return cfg, cfg.Validate()
}

// newDetector loads the class list and the configured backend.
func newDetector(cfg config.Config, logger *zap.SugaredLogger) (*detector.Detector[*gocv.Mat], error) {
	catalog, err := models.LoadCatalog(cfg.Classes.Path)
	if err != nil {
		return nil, err
	}
	logger.Infow("classes loaded", "path", cfg.Classes.Path, "count", catalog.Len())

	var executor detector.Executor[*gocv.Mat]
	switch cfg.Model.Backend {
	case config.BackendONNX:
		executor, err = inference.NewONNXExecutor(inference.ONNXOptions{
			ModelPath:   cfg.Model.ONNXPath,
			LibraryPath: cfg.Model.ONNXLibraryPath,
			InputName:   cfg.Model.InputName,
			OutputName:  cfg.Model.OutputName,
			InputSize:   cfg.Model.InputSize,
			NumClasses:  catalog.Len(),
			Provider:    inference.ExecutionProvider(cfg.Model.ONNXProvider),
		}, logger.Named("onnx"))
	default:
		executor, err = inference.NewDarknetExecutor(cfg.Darknet(), logger.Named("darknet"))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load %s model", cfg.Model.Backend)
	}

	det, err := detector.New[*gocv.Mat](catalog, executor, cfg.Detector(), logger.Named("detector"))
	if err != nil {
		return nil, multierr.Append(err, executor.Close())
	}
	return det, nil
}
