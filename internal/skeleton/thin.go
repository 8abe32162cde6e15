package skeleton

import (
	"fmt"

	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"

	"github.com/John-Robertt/wormruler/internal/infra/cvx"
	"github.com/John-Robertt/wormruler/internal/infra/imgx"
)

// thinPad keeps foreground off the matrix border; OpenCV's thinning never visits the
// outermost ring.
const thinPad = 1

// Thin reduces m to a one-pixel-wide skeleton that preserves its topology, using two-pass
// Guo-Hall thinning run to convergence.
func Thin(m *imgx.Mask) (*imgx.Mask, error) {
	src, err := cvx.FromMask(m, thinPad)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	contrib.Thinning(src, &dst, contrib.ThinningGuoHall)

	skel, err := cvx.ToMask(dst, thinPad)
	if err != nil {
		return nil, fmt.Errorf("thin: %w", err)
	}
	return skel, nil
}
