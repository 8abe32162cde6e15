package bgcorrect

import (
	"fmt"
	"math"

	"gocv.io/x/gocv"

	"github.com/John-Robertt/wormruler/internal/infra/imgx"
)

const otsuBins = 256

// Otsu returns the global threshold maximizing between-class variance over a 256-bin
// histogram spanning the plane's own value range. The threshold is a bin centre. A constant
// plane returns its value.
//
// The plane is quantized to its bin indices and OpenCV's Otsu picks the split index; ties
// resolve to the lowest index.
func Otsu(p *imgx.Plane) (float64, error) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range p.Pix {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return lo, nil
	}

	bins := gocv.NewMatWithSize(p.H, p.W, gocv.MatTypeCV8UC1)
	defer bins.Close()
	px, err := bins.DataPtrUint8()
	if err != nil {
		return 0, fmt.Errorf("otsu: %w", err)
	}
	width := (hi - lo) / otsuBins
	for i, v := range p.Pix {
		px[i] = uint8(min(int((v-lo)/width), otsuBins-1))
	}

	dst := gocv.NewMat()
	defer dst.Close()
	split := gocv.Threshold(bins, &dst, 0, 255, gocv.ThresholdBinary+gocv.ThresholdOtsu)
	return lo + (float64(split)+0.5)*width, nil
}
