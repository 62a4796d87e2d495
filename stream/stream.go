// Package stream - video capture with automatic reconnection.
package stream

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// ErrStreamLost is returned when the stream cannot be reopened.
var ErrStreamLost = errors.New("stream lost")

// Capture is an open video source.
type Capture interface {
	Read(frame *gocv.Mat) bool
	Close() error
}

// Opener opens a capture on a URL.
type Opener func(url string) (Capture, error)

// OpenCapture opens url with OpenCV.
func OpenCapture(url string) (Capture, error) {
	vc, err := gocv.OpenVideoCapture(url)
	if err != nil {
		return nil, err
	}
	return vc, nil
}

// Config is the configuration for a stream source.
type Config struct {
	URL string
	// Delay before the first reconnect attempt.
	InitialInterval time.Duration
	// Upper bound of the delay between attempts.
	MaxInterval time.Duration
	// Give up after this long; zero retries forever.
	MaxElapsedTime time.Duration
}

// Source reads frames from a stream and reopens it when reads fail.
// It is not safe for concurrent use.
type Source struct {
	cfg        Config
	open       Opener
	capture    Capture
	reconnects int
	logger     *zap.SugaredLogger
}

// Open opens the stream once; failing to reach it at startup is fatal.
//
// Arguments:
//   - cfg: The stream URL and reconnect backoff.
//   - open: Opens a capture; nil uses OpenCapture.
//   - logger: The logger.
//
// Returns:
//   - *Source: The source; the caller must Close it.
//   - error: Error if the stream cannot be opened.
func Open(cfg Config, open Opener, logger *zap.SugaredLogger) (*Source, error) {
	if cfg.URL == "" {
		return nil, errors.New("stream url is required")
	}
	if open == nil {
		open = OpenCapture
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	capture, err := open(cfg.URL)
	if err != nil {
		return nil, errors.Wrapf(err, "open stream %s", cfg.URL)
	}
	logger.Infow("stream opened", "url", cfg.URL)

	return &Source{cfg: cfg, open: open, capture: capture, logger: logger}, nil
}

// Read reads the next frame into frame.
//
// A failed read closes the capture and reopens it with exponential backoff.
// An attempt only succeeds once the reopened capture delivers a frame, so a
// stream that opens but stays silent keeps retrying until the backoff gives
// up. The frame may still be empty; callers skip those.
//
// Arguments:
//   - ctx: Cancels reconnection.
//   - frame: Receives the frame.
//
// Returns:
//   - error: ErrStreamLost if the stream could not be reopened.
func (s *Source) Read(ctx context.Context, frame *gocv.Mat) error {
	if s.capture != nil && s.capture.Read(frame) {
		return nil
	}

	s.logger.Warnw("stream read failed, reconnecting", "url", s.cfg.URL)
	return s.reconnect(ctx, frame)
}

// Reconnects returns how many times the stream has been reopened.
func (s *Source) Reconnects() int {
	return s.reconnects
}

func (s *Source) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(s.cfg.InitialInterval),
		backoff.WithMaxInterval(s.cfg.MaxInterval),
		backoff.WithMaxElapsedTime(s.cfg.MaxElapsedTime),
	)
	return backoff.WithContext(b, ctx)
}

func (s *Source) reconnect(ctx context.Context, frame *gocv.Mat) error {
	if err := s.closeCapture(); err != nil {
		s.logger.Debugw("closing broken capture", "error", err)
	}

	attempts := 0
	capture, err := backoff.RetryNotifyWithData[Capture](
		func() (Capture, error) {
			attempts++
			capture, err := s.open(s.cfg.URL)
			if err != nil {
				return nil, err
			}
			if !capture.Read(frame) {
				if cerr := capture.Close(); cerr != nil {
					s.logger.Debugw("closing silent capture", "error", cerr)
				}
				return nil, errors.New("reopened stream returned no frame")
			}
			return capture, nil
		},
		s.newBackOff(ctx),
		func(err error, wait time.Duration) {
			s.logger.Warnw("reconnect failed", "url", s.cfg.URL, "attempt", attempts, "retry_in", wait, "error", err)
		},
	)
	if err != nil {
		return errors.Wrapf(ErrStreamLost, "%s after %d attempts: %v", s.cfg.URL, attempts, err)
	}

	s.capture = capture
	s.reconnects++
	s.logger.Infow("stream reconnected", "url", s.cfg.URL, "attempts", attempts)
	return nil
}

func (s *Source) closeCapture() error {
	if s.capture == nil {
		return nil
	}
	err := s.capture.Close()
	s.capture = nil
	return err
}

// Close releases the capture.
func (s *Source) Close() error {
	return s.closeCapture()
}
