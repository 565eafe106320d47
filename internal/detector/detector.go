// Package detector provides object detection backends and the detection types consumed by the monitor.
package detector

import (
	"slices"

	"github.com/ayusman/lotwatch/internal/roi"
	"gocv.io/x/gocv"
)

// Detection is one object found in a frame. Detections carry no identity across frames.
type Detection struct {
	Box        roi.Box `json:"box"`
	Class      int     `json:"class"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Detector defines the interface for object detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the objects found.
	// Returns an empty slice if nothing is detected.
	Detect(frame *gocv.Mat) ([]Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for detection backends.
type Config struct {
	// ModelPath is the ONNX model for the DNN backend or the helper script for the service backend.
	ModelPath string

	// InputSize is the square network input size in pixels (default: 640).
	InputSize int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// NMSThreshold is the IoU above which overlapping boxes are merged (0.0-1.0).
	NMSThreshold float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ModelPath:     "yolov8n.onnx",
		InputSize:     640,
		MinConfidence: 0.25,
		NMSThreshold:  0.45,
	}
}

// Filter keeps detections whose class is in classes and whose confidence is at least
// minConfidence. An empty class list keeps every class.
func Filter(detections []Detection, classes []int, minConfidence float64) []Detection {
	out := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if d.Confidence < minConfidence {
			continue
		}
		if len(classes) > 0 && !slices.Contains(classes, d.Class) {
			continue
		}
		out = append(out, d)
	}
	return out
}
