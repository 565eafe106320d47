package detector

import (
	"sync"
	"time"

	"github.com/ayusman/lotwatch/internal/roi"
	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu         sync.Mutex
	detections []Detection
	script     [][]Detection
	err        error
	delay      time.Duration
	calls      int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetDetections sets the detections returned by every Detect call.
func (m *MockDetector) SetDetections(detections []Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections = detections
	m.script = nil
}

// SetScript makes the nth Detect call return script[n]. Once the script is exhausted the
// last entry repeats.
func (m *MockDetector) SetScript(script [][]Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = script
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay makes Detect block for d before returning.
func (m *MockDetector) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls returns how many times Detect was invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured detections or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Detection, error) {
	m.mu.Lock()
	n := m.calls
	m.calls++
	delay, err := m.delay, m.err
	result := m.detections
	if len(m.script) > 0 {
		result = m.script[min(n, len(m.script)-1)]
	}
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Car returns a confident car detection with the given box.
func Car(x1, y1, x2, y2 int) Detection {
	return Detection{
		Box:        roi.Box{X1: x1, Y1: y1, X2: x2, Y2: y2},
		Class:      COCOCar,
		Label:      Label(COCOCar),
		Confidence: 0.9,
	}
}

// Person returns a confident person detection, useful to check class filtering.
func Person(x1, y1, x2, y2 int) Detection {
	return Detection{
		Box:        roi.Box{X1: x1, Y1: y1, X2: x2, Y2: y2},
		Class:      COCOPerson,
		Label:      Label(COCOPerson),
		Confidence: 0.9,
	}
}
