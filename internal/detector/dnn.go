package detector

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/ayusman/lotwatch/internal/roi"
	"gocv.io/x/gocv"
)

// yoloBoxFields is the number of leading rows in a YOLOv8 output holding cx, cy, w, h.
const yoloBoxFields = 4

// DNNDetector runs a YOLOv8 ONNX model through the OpenCV DNN module.
type DNNDetector struct {
	config Config
	net    gocv.Net
	mu     sync.Mutex
	closed bool
}

// NewDNNDetector loads the model at config.ModelPath.
func NewDNNDetector(config Config) (*DNNDetector, error) {
	if config.InputSize <= 0 {
		config.InputSize = DefaultConfig().InputSize
	}

	net := gocv.ReadNetFromONNX(config.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("load model %s: network is empty", config.ModelPath)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("set target: %w", err)
	}

	return &DNNDetector{
		config: config,
		net:    net,
	}, nil
}

// Detect runs one forward pass and returns boxes in frame coordinates after
// class-agnostic non-maximum suppression.
func (d *DNNDetector) Detect(frame *gocv.Mat) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, errors.New("detector is closed")
	}
	if frame == nil || frame.Empty() {
		return nil, errors.New("empty frame")
	}

	size := d.config.InputSize
	blob := gocv.BlobFromImage(*frame, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	dims := out.Size()
	if len(dims) != 3 || dims[1] <= yoloBoxFields {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	scaleX := float64(frame.Cols()) / float64(size)
	scaleY := float64(frame.Rows()) / float64(size)

	candidates := decodeYOLO(data, dims[1], dims[2], d.config.MinConfidence, scaleX, scaleY)
	return suppress(candidates, d.config.MinConfidence, d.config.NMSThreshold), nil
}

// Close releases the network.
func (d *DNNDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.net.Close()
}

// decodeYOLO reads a channel-major [rows x anchors] YOLOv8 output: rows 0-3 hold the box
// center and size, the remaining rows hold per-class scores.
func decodeYOLO(data []float32, rows, anchors int, minConfidence, scaleX, scaleY float64) []Detection {
	var detections []Detection

	for i := 0; i < anchors; i++ {
		bestClass := -1
		bestScore := float32(0)
		for c := yoloBoxFields; c < rows; c++ {
			if s := data[c*anchors+i]; s > bestScore {
				bestScore = s
				bestClass = c - yoloBoxFields
			}
		}
		if bestClass < 0 || float64(bestScore) < minConfidence {
			continue
		}

		cx := float64(data[0*anchors+i])
		cy := float64(data[1*anchors+i])
		w := float64(data[2*anchors+i])
		h := float64(data[3*anchors+i])

		detections = append(detections, Detection{
			Box: roi.Box{
				X1: int((cx - w/2) * scaleX),
				Y1: int((cy - h/2) * scaleY),
				X2: int((cx + w/2) * scaleX),
				Y2: int((cy + h/2) * scaleY),
			},
			Class:      bestClass,
			Label:      Label(bestClass),
			Confidence: float64(bestScore),
		})
	}

	return detections
}

// suppress applies non-maximum suppression across all classes.
func suppress(candidates []Detection, minConfidence, nmsThreshold float64) []Detection {
	if len(candidates) == 0 {
		return []Detection{}
	}

	rects := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		rects[i] = c.Box.Rect()
		scores[i] = float32(c.Confidence)
	}

	indices := gocv.NMSBoxes(rects, scores, float32(minConfidence), float32(nmsThreshold))

	kept := make([]Detection, 0, len(indices))
	for _, idx := range indices {
		kept = append(kept, candidates[idx])
	}
	return kept
}
