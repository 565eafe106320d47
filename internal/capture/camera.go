// Package capture provides frame acquisition from cameras, files and streams using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 15
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrEndOfStream is returned when a source has no more frames.
	ErrEndOfStream = errors.New("end of stream")
)

// Camera defines the interface for frame sources.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	// Grab discards the next frame without decoding it. Live sources use it to keep
	// their buffer fresh while frames are not being processed.
	Grab() error
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// Options configures a camera source.
type Options struct {
	// Source is a device index ("0"), a file path or a stream URL.
	Source string
	Width  int
	Height int
	FPS    int
}

// cameraImpl reads frames from a gocv.VideoCapture.
type cameraImpl struct {
	opts    Options
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
	fps     int
}

// NewCamera creates a Camera for the given options. Zero sizes and FPS use the defaults.
func NewCamera(opts Options) Camera {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	return &cameraImpl{
		opts: opts,
		fps:  opts.FPS,
	}
}

// captureTarget maps a numeric source to a device index; anything else is a path or URL.
func captureTarget(source string) interface{} {
	if source == "" {
		return 0
	}
	if id, err := strconv.Atoi(source); err == nil {
		return id
	}
	return source
}

// isLive reports whether source is a device or a network stream. Files are not live: they
// do not buffer ahead and skipping would lose footage.
func isLive(source string) bool {
	if _, ok := captureTarget(source).(int); ok {
		return true
	}
	return strings.Contains(source, "://")
}

// Open opens the source and requests the configured resolution.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(captureTarget(c.opts.Source))
	if err != nil {
		return fmt.Errorf("open video source %q: %w", c.opts.Source, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("video source %q did not open", c.opts.Source)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(c.opts.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(c.opts.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the source and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame.
// The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, ErrEndOfStream
	}

	if mat.Empty() {
		mat.Close()
		return nil, errors.New("captured frame is empty")
	}

	return &mat, nil
}

// Grab drops one buffered frame from a live source. It does nothing for files.
func (c *cameraImpl) Grab() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return ErrCameraNotOpen
	}
	if isLive(c.opts.Source) {
		c.capture.Grab(1)
	}
	return nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the source is currently open.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
