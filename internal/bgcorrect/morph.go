package bgcorrect

import (
	"gocv.io/x/gocv"

	"github.com/John-Robertt/wormruler/internal/infra/cvx"
	"github.com/John-Robertt/wormruler/internal/infra/imgx"
)

// fillHoles sets every 4-connected background region of m smaller than area to foreground,
// including regions that touch the border.
func fillHoles(m *gocv.Mat, area int) error {
	cvx.Invert(m)
	err := cvx.RemoveSmall(m, area)
	cvx.Invert(m)
	return err
}

// RemoveSmallObjects clears 4-connected foreground components with fewer than minSize pixels.
func RemoveSmallObjects(m *imgx.Mask, minSize int) error {
	return onMat(m, func(mat *gocv.Mat) error { return cvx.RemoveSmall(mat, minSize) })
}

// RemoveSmallHoles fills 4-connected background regions with fewer than area pixels.
func RemoveSmallHoles(m *imgx.Mask, area int) error {
	return onMat(m, func(mat *gocv.Mat) error { return fillHoles(mat, area) })
}

// Close is a morphological closing with the 3x3 cross.
func Close(m *imgx.Mask) (*imgx.Mask, error) {
	src, err := cvx.FromMask(m, 0)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	dst := cvx.Close(src)
	defer dst.Close()
	return cvx.ToMask(dst, 0)
}

// onMat runs fn on a matrix copy of m and writes the result back into m.
func onMat(m *imgx.Mask, fn func(*gocv.Mat) error) error {
	mat, err := cvx.FromMask(m, 0)
	if err != nil {
		return err
	}
	defer mat.Close()
	if err := fn(&mat); err != nil {
		return err
	}
	out, err := cvx.ToMask(mat, 0)
	if err != nil {
		return err
	}
	copy(m.Pix, out.Pix)
	return nil
}
