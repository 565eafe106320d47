package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// MotionDetector reports whether anything moved inside a fixed area of the frame
// between consecutive calls, using frame differencing with Gaussian blur.
type MotionDetector struct {
	threshold   float64
	area        image.Rectangle
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// Motion detection constants
const (
	// GaussianBlurSize is the kernel size for Gaussian blur (21x21)
	GaussianBlurSize = 21
	// DiffThreshold is the binary threshold for difference detection
	DiffThreshold = 25
)

// NewMotionDetector creates a MotionDetector watching area. An empty area watches the whole frame.
// The threshold is the percentage of watched pixels that must change, e.g. 1.0 means 1%.
func NewMotionDetector(threshold float64, area image.Rectangle) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		area:      area,
		prevGray:  gocv.NewMat(),
	}
}

// Detect compares frame with the previous call and returns whether motion was seen in the
// watched area and the percentage of pixels that changed. The first call only stores a
// baseline and reports motion, so that callers never skip work before a reference exists.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	area := bounds
	if !m.area.Empty() {
		area = m.area.Intersect(bounds)
	}
	if area.Empty() {
		return false, 0
	}

	region := frame.Region(area)
	defer region.Close()

	gray := gocv.NewMat()
	defer gray.Close()

	if region.Channels() > 1 {
		gocv.CvtColor(region, &gray, gocv.ColorBGRToGray)
	} else {
		region.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: GaussianBlurSize, Y: GaussianBlurSize}, 0, 0, gocv.BorderDefault)

	if !m.initialized || m.prevGray.Rows() != blurred.Rows() || m.prevGray.Cols() != blurred.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return true, 100
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	nonZero := gocv.CountNonZero(thresh)
	totalPixels := thresh.Rows() * thresh.Cols()
	changePercent := float64(nonZero) / float64(totalPixels) * 100.0

	blurred.CopyTo(&m.prevGray)

	return changePercent > m.threshold, changePercent
}

// Reset drops the baseline so the next call starts over.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prevGray.Close()
	m.prevGray = gocv.NewMat()
	m.initialized = false
}

// Close releases resources used by the motion detector.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prevGray.Close()
	m.prevGray = gocv.NewMat()
	m.initialized = false
}

// SetThreshold sets the motion threshold percentage.
// Values less than or equal to 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.threshold = threshold
}
