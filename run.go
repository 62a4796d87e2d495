package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/robpickerill/elegoo-conquerer-vision/detector"
	"github.com/robpickerill/elegoo-conquerer-vision/profiler"
	"github.com/robpickerill/elegoo-conquerer-vision/render"
	"github.com/robpickerill/elegoo-conquerer-vision/stream"
	"github.com/robpickerill/elegoo-conquerer-vision/util"
)

const boxThickness = 2

// runStream detects on every frame of the stream until the quit key is
// pressed, the context ends or the stream is lost.
func runStream(ctx context.Context, rt *pipeline) error {
	src, err := stream.Open(stream.Config{
		URL:             rt.cfg.Stream.URL,
		InitialInterval: rt.cfg.Stream.Reconnect.InitialInterval,
		MaxInterval:     rt.cfg.Stream.Reconnect.MaxInterval,
		MaxElapsedTime:  rt.cfg.Stream.Reconnect.MaxElapsedTime,
	}, stream.OpenCapture, rt.logger.Named("stream"))
	if err != nil {
		return err
	}
	defer src.Close()

	prof := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{
		ReportInterval: rt.cfg.Profiling.ReportInterval,
	}, rt.logger.Named("profiler"))
	prof.Start()
	defer prof.Stop()
	rt.detector.SetTimer(prof)

	frame := gocv.NewMat()
	defer frame.Close()

	var window *gocv.Window
	if rt.cfg.Window.Show {
		window = gocv.NewWindow(rt.cfg.Window.Name)
		defer window.Close()
	}

	font := render.DefaultFont()
	quitKey := rt.cfg.QuitKeyCode()

	rt.logger.Infow("streaming", "url", rt.cfg.Stream.URL, "window", rt.cfg.Window.Show)

	for {
		if ctx.Err() != nil {
			rt.logger.Info("stopping")
			return nil
		}

		if err := src.Read(ctx, &frame); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if frame.Empty() {
			continue
		}

		done := prof.StartOperation(profiler.OperationFrame)
		detections, err := rt.detector.Detect(ctx, &frame)
		if err != nil {
			done()
			rt.logger.Warnw("frame failed", "error", err)
			continue
		}
		prof.RecordMetric("detections", float64(len(detections)))

		if window != nil {
			doneRender := prof.StartOperation(profiler.OperationRender)
			render.DetectionBoxes(&frame, detections, font, boxThickness)
			doneRender()
			window.IMShow(frame)
		} else {
			logDetections(rt, detections)
		}
		done()
		prof.MarkFrame()

		if window != nil && window.WaitKey(1) == quitKey {
			rt.logger.Info("quit key pressed")
			return nil
		}
	}
}

// runImage detects on a single image and writes the annotated copy to out.
func runImage(ctx context.Context, rt *pipeline, path, out string) error {
	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return errors.Errorf("read image %s", path)
	}

	detections, err := rt.detector.Detect(ctx, &img)
	if err != nil {
		return err
	}
	logDetections(rt, detections)

	render.DetectionBoxes(&img, detections, render.DefaultFont(), boxThickness)
	if !gocv.IMWrite(out, img) {
		return errors.Errorf("write image %s", out)
	}

	rt.logger.Infow("annotated image written", "input", path, "output", out, "detections", len(detections))
	return nil
}

// runDir detects on every frame image in dir and writes annotated copies,
// under the same names, into out.
func runDir(ctx context.Context, rt *pipeline, dir, out string) error {
	files, err := util.LoadDirectoryImageFiles(dir)
	if err != nil {
		return errors.Wrap(err, "load frames")
	}
	if len(files) == 0 {
		return errors.Errorf("no frames in %s", dir)
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}

	prof := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{
		ReportInterval: rt.cfg.Profiling.ReportInterval,
	}, rt.logger.Named("profiler"))
	rt.detector.SetTimer(prof)

	font := render.DefaultFont()
	total := 0
	for _, f := range files {
		if ctx.Err() != nil {
			break
		}

		decoded, err := f.Decode()
		if err != nil {
			rt.logger.Warnw("skipping frame", "path", f.Path, "error", err)
			continue
		}
		frame, err := gocv.ImageToMatRGB(decoded)
		if err != nil {
			rt.logger.Warnw("skipping frame", "path", f.Path, "error", err)
			continue
		}

		detections, err := rt.detector.Detect(ctx, &frame)
		if err != nil {
			frame.Close()
			rt.logger.Warnw("frame failed", "path", f.Path, "error", err)
			continue
		}
		total += len(detections)
		prof.MarkFrame()

		render.DetectionBoxes(&frame, detections, font, boxThickness)
		name := filepath.Join(out, filepath.Base(f.Path))
		if !gocv.IMWrite(name, frame) {
			rt.logger.Warnw("write failed", "path", name)
		}
		frame.Close()

		rt.logger.Debugw("frame done", "path", f.Path, "frame", f.Frame, "detections", len(detections))
	}

	report := prof.Report()
	rt.logger.Infow("directory done",
		"frames", report.Frames,
		"detections", total,
		"inference_mean", report.Operations[detector.StageInference].Mean,
		"output", out,
	)
	return ctx.Err()
}

func logDetections(rt *pipeline, detections []detector.Detection) {
	for _, d := range detections {
		rt.logger.Infow("detection",
			"label", d.Label,
			"confidence", d.Confidence,
			"x", d.Box.X(),
			"y", d.Box.Y(),
			"width", d.Box.Width(),
			"height", d.Box.Height(),
		)
	}
}
