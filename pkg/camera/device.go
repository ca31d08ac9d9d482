package camera

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-pathsense/pkg/frame"
	"gocv.io/x/gocv"
)

// Sentinel errors.
var (
	// ErrNoCamera is returned by Probe when no index yields a frame.
	ErrNoCamera = errors.New("camera: no working camera found")

	// ErrEmptyFrame is a transient read failure.
	ErrEmptyFrame = fmt.Errorf("camera: empty read: %w", frame.ErrNoFrame)
)

// Device is an opened OpenCV capture device.
type Device struct {
	index int
	cfg   Config
	log   *slog.Logger

	mu     sync.Mutex
	cap    *gocv.VideoCapture
	mat    gocv.Mat
	closed bool
}

// Open opens the capture device at index and applies cfg.
func Open(index int, cfg Config, logger *slog.Logger) (*Device, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera: invalid config: %s", strings.Join(errs, "; "))
	}
	if logger == nil {
		logger = slog.Default()
	}

	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("camera %d: open: %w", index, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("camera %d: not opened", index)
	}

	if cfg.HasResolution() {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if cfg.FPS > 0 {
		vc.Set(gocv.VideoCaptureFPS, cfg.FPS)
	}
	if cfg.BufferSize > 0 {
		vc.Set(gocv.VideoCaptureBufferSize, float64(cfg.BufferSize))
	}

	d := &Device{
		index: index,
		cfg:   cfg,
		log:   logger.With("component", "camera", "index", index),
		cap:   vc,
		mat:   gocv.NewMat(),
	}
	d.log.Info("camera opened",
		"width", int(vc.Get(gocv.VideoCaptureFrameWidth)),
		"height", int(vc.Get(gocv.VideoCaptureFrameHeight)),
	)
	return d, nil
}

// Probe tries indices 0..cfg.ProbeCount-1 and returns the first device
// that delivers a frame.
func Probe(cfg Config, logger *slog.Logger) (*Device, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for i := 0; i < cfg.ProbeCount; i++ {
		d, err := Open(i, cfg, logger)
		if err != nil {
			logger.Debug("camera probe: skip", "index", i, "error", err)
			continue
		}
		if _, err := d.Read(); err != nil {
			logger.Debug("camera probe: no frame", "index", i, "error", err)
			d.Close()
			continue
		}
		return d, nil
	}
	return nil, ErrNoCamera
}

// Read grabs the next frame and copies its pixels out of OpenCV memory.
func (d *Device) Read() (frame.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return frame.Frame{}, frame.ErrClosed
	}
	if !d.cap.IsOpened() {
		return frame.Frame{}, fmt.Errorf("camera %d: device lost", d.index)
	}
	if ok := d.cap.Read(&d.mat); !ok || d.mat.Empty() {
		return frame.Frame{}, ErrEmptyFrame
	}
	if d.mat.Type() != gocv.MatTypeCV8UC3 {
		return frame.Frame{}, fmt.Errorf("camera %d: unsupported pixel type %v: %w", d.index, d.mat.Type(), frame.ErrNoFrame)
	}

	return frame.Frame{
		Width:      d.mat.Cols(),
		Height:     d.mat.Rows(),
		Data:       d.mat.ToBytes(),
		CapturedAt: time.Now(),
	}, nil
}

// Index returns the device index.
func (d *Device) Index() int {
	return d.index
}

// Close releases the device. It is safe to call more than once.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.mat.Close()
	return d.cap.Close()
}

var _ frame.Camera = (*Device)(nil)
