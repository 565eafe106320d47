// Package fixtures builds synthetic frames for tests.
package fixtures

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Standard test frame size, matching the default camera resolution.
const (
	Width  = 640
	Height = 480
)

// BlankFrame returns a black BGR frame. The caller must Close it.
func BlankFrame(width, height int) *gocv.Mat {
	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	mat.SetTo(gocv.NewScalar(0, 0, 0, 0))
	return &mat
}

// FrameWithBlock returns a black frame with a filled white rectangle, a stand-in for a vehicle.
func FrameWithBlock(width, height int, block image.Rectangle) *gocv.Mat {
	mat := BlankFrame(width, height)
	gocv.Rectangle(mat, block, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
	return mat
}

// Sequence returns n clones of frame. The caller must Close each one with CloseAll.
func Sequence(frame *gocv.Mat, n int) []*gocv.Mat {
	frames := make([]*gocv.Mat, 0, n)
	for i := 0; i < n; i++ {
		clone := frame.Clone()
		frames = append(frames, &clone)
	}
	return frames
}

// CloseAll closes every frame.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		if f != nil {
			f.Close()
		}
	}
}
