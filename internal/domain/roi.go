package domain

import (
	"fmt"
	"image"
)

// ROI is the region of interest shared by every sample under one root directory,
// in pixel units of the binary frames.
type ROI struct {
	X int
	Y int
	W int
	H int
}

// Validate rejects empty rectangles; a cancelled interactive selection yields 0,0,0,0.
func (r ROI) Validate() error {
	if r.W <= 0 || r.H <= 0 {
		return fmt.Errorf("roi width and height must be positive, got %dx%d", r.W, r.H)
	}
	if r.X < 0 || r.Y < 0 {
		return fmt.Errorf("roi origin must not be negative, got (%d,%d)", r.X, r.Y)
	}
	return nil
}

func (r ROI) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

func (r ROI) String() string {
	return fmt.Sprintf("x=%d y=%d w=%d h=%d", r.X, r.Y, r.W, r.H)
}
