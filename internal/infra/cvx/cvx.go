// Package cvx moves rasters between imgx and OpenCV matrices and wraps the few OpenCV
// operations the stages share. Every Mat returned here is owned by the caller.
package cvx

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/John-Robertt/wormruler/internal/infra/imgx"
)

const on = 255

// FromMask returns m as a CV_8UC1 matrix with foreground 255, surrounded by pad background
// pixels on every side.
func FromMask(m *imgx.Mask, pad int) (gocv.Mat, error) {
	w, h := m.W+2*pad, m.H+2*pad
	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC1)
	px, err := mat.DataPtrUint8()
	if err != nil {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("mask matrix: %w", err)
	}
	clear(px)
	for y := 0; y < m.H; y++ {
		row := px[(y+pad)*w+pad:]
		for x, v := range m.Pix[y*m.W : (y+1)*m.W] {
			if v {
				row[x] = on
			}
		}
	}
	return mat, nil
}

// ToMask reads a CV_8UC1 matrix back, dropping pad pixels on every side. Any non-zero
// value is foreground.
func ToMask(mat gocv.Mat, pad int) (*imgx.Mask, error) {
	if mat.Type() != gocv.MatTypeCV8UC1 {
		return nil, fmt.Errorf("mask matrix has type %v, want CV_8UC1", mat.Type())
	}
	w, h := mat.Cols(), mat.Rows()
	if w-2*pad <= 0 || h-2*pad <= 0 {
		return nil, fmt.Errorf("mask matrix %dx%d is smaller than its padding %d", w, h, pad)
	}
	px := mat.ToBytes()
	m := imgx.NewMask(w-2*pad, h-2*pad)
	for y := 0; y < m.H; y++ {
		row := px[(y+pad)*w+pad:]
		for x := 0; x < m.W; x++ {
			m.Pix[y*m.W+x] = row[x] != 0
		}
	}
	return m, nil
}

// FromPlane returns p as a CV_64FC1 matrix.
func FromPlane(p *imgx.Plane) (gocv.Mat, error) {
	mat := gocv.NewMatWithSize(p.H, p.W, gocv.MatTypeCV64FC1)
	px, err := mat.DataPtrFloat64()
	if err != nil {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("plane matrix: %w", err)
	}
	copy(px, p.Pix)
	return mat, nil
}

// Close applies a morphological closing with the 3x3 cross. Pixels beyond the border never
// take part, so the frame edge neither grows nor erodes the mask.
func Close(src gocv.Mat) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphCross, image.Pt(3, 3))
	defer kernel.Close()

	dst := gocv.NewMat()
	gocv.MorphologyEx(src, &dst, gocv.MorphClose, kernel)
	return dst
}

// RemoveSmall clears, in place, every 4-connected non-zero region of m with fewer than
// floor pixels.
func RemoveSmall(m *gocv.Mat, floor int) error {
	if floor <= 1 {
		return nil
	}
	labels, stats, centroids := gocv.NewMat(), gocv.NewMat(), gocv.NewMat()
	defer labels.Close()
	defer stats.Close()
	defer centroids.Close()

	n := gocv.ConnectedComponentsWithStatsWithParams(*m, &labels, &stats, &centroids, 4, gocv.MatTypeCV32S, gocv.CCL_DEFAULT)
	small := make([]bool, n)
	found := false
	for l := 1; l < n; l++ {
		if int(stats.GetIntAt(l, int(gocv.CC_STAT_AREA))) < floor {
			small[l] = true
			found = true
		}
	}
	if !found {
		return nil
	}

	// Labels fit a float64 exactly; reading them as float keeps the copy in one call.
	lab := gocv.NewMat()
	defer lab.Close()
	if err := labels.ConvertTo(&lab, gocv.MatTypeCV64F); err != nil {
		return fmt.Errorf("component labels: %w", err)
	}
	ids, err := lab.DataPtrFloat64()
	if err != nil {
		return fmt.Errorf("component labels: %w", err)
	}
	px, err := m.DataPtrUint8()
	if err != nil {
		return fmt.Errorf("mask matrix: %w", err)
	}
	for i, id := range ids {
		if small[int(id)] {
			px[i] = 0
		}
	}
	return nil
}

// Invert flips a 0/255 matrix in place.
func Invert(m *gocv.Mat) {
	gocv.BitwiseNot(*m, m)
}
