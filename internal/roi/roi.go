// Package roi decides whether a detection box falls inside the monitored region of interest.
package roi

import (
	"fmt"
	"image"
)

// DefaultThreshold is the fraction of a box's own area that must overlap the region.
const DefaultThreshold = 0.2

// Box is an axis-aligned detection rectangle in frame pixel coordinates.
// X2 >= X1 and Y2 >= Y1 are expected but not enforced.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Area returns the box area. Inverted boxes have zero or negative area.
func (b Box) Area() int {
	return (b.X2 - b.X1) * (b.Y2 - b.Y1)
}

// Rect converts the box to an image.Rectangle for drawing.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Region is the zone of the frame where detections count. It is fixed for a session.
type Region struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// FullFrame returns a region covering a whole width x height frame.
func FullFrame(width, height int) Region {
	return Region{X: 0, Y: 0, W: width, H: height}
}

// Right returns the exclusive right edge.
func (r Region) Right() int { return r.X + r.W }

// Bottom returns the exclusive bottom edge.
func (r Region) Bottom() int { return r.Y + r.H }

// Empty reports whether the region has no area.
func (r Region) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Rect converts the region to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.Right(), r.Bottom())
}

// Validate checks that width and height are non-negative.
func (r Region) Validate() error {
	if r.W < 0 || r.H < 0 {
		return fmt.Errorf("region %dx%d has negative size", r.W, r.H)
	}
	return nil
}

// Relevant reports whether more than threshold of the box's own area lies inside the region.
//
// The ratio is normalized by the box area, not the region or the union, so a small box fully
// inside a large region passes while a box clipping the region edge does not. The comparison
// is strict: an overlap of exactly threshold is not relevant. Boxes with no area never pass.
func Relevant(box Box, region Region, threshold float64) bool {
	left := max(box.X1, region.X)
	top := max(box.Y1, region.Y)
	right := min(box.X2, region.Right())
	bottom := min(box.Y2, region.Bottom())

	if right <= left || bottom <= top {
		return false
	}

	boxArea := box.Area()
	if boxArea <= 0 {
		return false
	}

	intersection := (right - left) * (bottom - top)
	return float64(intersection)/float64(boxArea) > threshold
}
