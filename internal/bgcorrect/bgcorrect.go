// Package bgcorrect turns raw frames into foreground/background masks: global Otsu
// threshold scaled by gamma, then noise removal, closing and hole filling.
package bgcorrect

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/John-Robertt/wormruler/internal/infra/cvx"
	"github.com/John-Robertt/wormruler/internal/infra/imgx"
)

const (
	DefaultMinObjectSize = 2000
	DefaultMinHoleArea   = 700
)

// ErrMissingGamma is returned by Params.Validate when no gamma was configured.
var ErrMissingGamma = errors.New("gamma is required for background correction (roughly 0.7 to 1.3)")

// Params controls the correction. Gamma scales the Otsu threshold; pixels at or below
// threshold*gamma are foreground.
type Params struct {
	Gamma         float64
	MinObjectSize int
	MinHoleArea   int
}

// DefaultParams returns the standard area floors with the given gamma.
func DefaultParams(gamma float64) Params {
	return Params{Gamma: gamma, MinObjectSize: DefaultMinObjectSize, MinHoleArea: DefaultMinHoleArea}
}

func (p Params) Validate() error {
	if p.Gamma == 0 {
		return ErrMissingGamma
	}
	if math.IsNaN(p.Gamma) || math.IsInf(p.Gamma, 0) || p.Gamma < 0 {
		return fmt.Errorf("gamma must be a finite positive number, got %v", p.Gamma)
	}
	if p.MinObjectSize < 0 || p.MinHoleArea < 0 {
		return fmt.Errorf("area floors must not be negative (objects %d, holes %d)", p.MinObjectSize, p.MinHoleArea)
	}
	return nil
}

// Corrector applies Params to frames. It holds no per-frame state.
type Corrector struct {
	p Params
}

func New(p Params) (*Corrector, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Corrector{p: p}, nil
}

func (c *Corrector) Params() Params { return c.p }

// Correct returns the binary mask of img; the organism is foreground.
func (c *Corrector) Correct(img image.Image) (*imgx.Mask, error) {
	lum, err := imgx.Luminance(img)
	if err != nil {
		return nil, err
	}
	return c.CorrectPlane(lum)
}

// CorrectPlane is Correct on an already converted luminance plane.
func (c *Corrector) CorrectPlane(lum *imgx.Plane) (*imgx.Mask, error) {
	level, err := Otsu(lum)
	if err != nil {
		return nil, err
	}
	level *= c.p.Gamma

	src, err := cvx.FromPlane(lum)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	// Bright pixels are background: foreground is everything at or below the level.
	fg64 := gocv.NewMat()
	defer fg64.Close()
	gocv.Threshold(src, &fg64, float32(level), 255, gocv.ThresholdBinaryInv)

	fg := gocv.NewMat()
	defer fg.Close()
	if err := fg64.ConvertTo(&fg, gocv.MatTypeCV8UC1); err != nil {
		return nil, fmt.Errorf("binarize: %w", err)
	}

	if err := cvx.RemoveSmall(&fg, c.p.MinObjectSize); err != nil {
		return nil, err
	}
	closed := cvx.Close(fg)
	defer closed.Close()
	if err := fillHoles(&closed, c.p.MinHoleArea); err != nil {
		return nil, err
	}
	return cvx.ToMask(closed, 0)
}
