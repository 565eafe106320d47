// Package overlay draws the region of interest and detections onto frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"github.com/ayusman/lotwatch/internal/detector"
	"github.com/ayusman/lotwatch/internal/roi"
	"gocv.io/x/gocv"
)

var (
	regionColor     = color.RGBA{R: 255, G: 128, B: 0, A: 255}
	relevantColor   = color.RGBA{G: 255, A: 255}
	irrelevantColor = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	textColor       = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Style controls what Draw renders.
type Style struct {
	Region    roi.Region
	Threshold float64
	// Gated colors only detections relevant to Region as counted; otherwise all are.
	Gated   bool
	Caption string
}

// Draw renders the region, each detection and an optional caption onto frame in place.
// Counted detections are drawn green, the rest gray.
func Draw(frame *gocv.Mat, style Style, detections []detector.Detection) {
	if !style.Region.Empty() {
		gocv.Rectangle(frame, style.Region.Rect(), regionColor, 2)
	}

	for _, d := range detections {
		c := irrelevantColor
		if !style.Gated || roi.Relevant(d.Box, style.Region, style.Threshold) {
			c = relevantColor
		}
		gocv.Rectangle(frame, d.Box.Rect(), c, 2)
		gocv.PutText(frame, Label(d), labelOrigin(d.Box), gocv.FontHersheySimplex, 0.5, c, 2)
	}

	if style.Caption != "" {
		gocv.PutText(frame, style.Caption, image.Pt(10, 25), gocv.FontHersheySimplex, 0.7, textColor, 2)
	}
}

// Label is the text drawn above a detection box.
func Label(d detector.Detection) string {
	name := d.Label
	if name == "" {
		name = detector.Label(d.Class)
	}
	return fmt.Sprintf("%s %.0f%%", name, d.Confidence*100)
}

// labelOrigin keeps the label inside the frame when a box touches the top edge.
func labelOrigin(b roi.Box) image.Point {
	y := b.Y1 - 5
	if y < 15 {
		y = b.Y1 + 15
	}
	return image.Pt(b.X1, y)
}

// EncodeJPEG encodes frame for streaming.
func EncodeJPEG(frame gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
