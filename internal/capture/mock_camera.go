package capture

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// MockCamera plays back pre-built frames for testing
type MockCamera struct {
	frames  []*gocv.Mat
	index   int
	loop    bool
	failAt  int
	failErr error
	reads   int
	grabs   int
	fps     int
	mu      sync.Mutex
	running bool
}

// NewMockCamera creates a camera that replays frames, optionally looping.
func NewMockCamera(frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{
		frames: frames,
		loop:   loop,
		fps:    DefaultFPS,
		failAt: -1,
	}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.index = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}

	c.reads++
	if c.failAt >= 0 && c.reads > c.failAt {
		return nil, c.failErr
	}

	if len(c.frames) == 0 {
		return nil, errors.New("no frames available")
	}

	if c.index >= len(c.frames) {
		if !c.loop {
			return nil, ErrEndOfStream
		}
		c.index = 0
	}

	// Clone the frame so the original isn't modified
	frame := c.frames[c.index].Clone()
	c.index++

	return &frame, nil
}

// Grab skips one frame, wrapping around when looping.
func (c *MockCamera) Grab() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return ErrCameraNotOpen
	}

	c.grabs++
	if c.index >= len(c.frames) {
		if !c.loop {
			return ErrEndOfStream
		}
		c.index = 0
	}
	c.index++
	return nil
}

// Grabs returns how many frames were skipped with Grab.
func (c *MockCamera) Grabs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.grabs
}

func (c *MockCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// FailAfter makes every read after the first n successful reads return err.
func (c *MockCamera) FailAfter(n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failAt = n
	c.failErr = err
}

// Reads returns how many reads were attempted.
func (c *MockCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// SetFrames replaces the frame sequence
func (c *MockCamera) SetFrames(frames []*gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = frames
	c.index = 0
}

// Reset restarts playback from the beginning
func (c *MockCamera) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 0
}
