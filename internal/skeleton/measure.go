// Package skeleton measures body length per frame: crop to the ROI, thin to a one-pixel
// skeleton, prune spurs, take the longest path of each remaining component and resolve the
// component count into one length or an unmeasurable frame.
package skeleton

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/John-Robertt/wormruler/internal/domain"
	"github.com/John-Robertt/wormruler/internal/infra/imgx"
)

const (
	DefaultBranchThreshold   = 5.0
	DefaultSkeletonThreshold = 10.0
	DefaultMaxPruneIter      = 10

	// NominalDistancePerPixel is the fixed calibration applied to path lengths. Lengths are
	// reported in pixels; the scale cancels out of every normalized ratio.
	NominalDistancePerPixel = 1.0

	// Binary frames are re-binarized at half intensity after cropping.
	binarizeLevel = 0.5
)

// Reason says why a frame could not be measured.
type Reason string

const (
	ReasonEmptyCrop  Reason = "roi_outside_frame"
	ReasonNoSkeleton Reason = "no_components"
	ReasonAmbiguous  Reason = "too_many_components"
	ReasonDegenerate Reason = "degenerate_graph"
)

// UnmeasurableError is the typed per-frame failure. Measure never returns it; it is carried
// in Result.Err so callers record a missing value and keep going.
type UnmeasurableError struct {
	Reason     Reason
	Components int
}

func (e *UnmeasurableError) Error() string {
	return fmt.Sprintf("frame unmeasurable: %s (%d components)", e.Reason, e.Components)
}

// IsUnmeasurable reports whether err is an UnmeasurableError.
func IsUnmeasurable(err error) bool {
	var e *UnmeasurableError
	return errors.As(err, &e)
}

// Params are the pruning thresholds, in pixels.
type Params struct {
	BranchThreshold   float64
	SkeletonThreshold float64
	MaxPruneIter      int
	Scale             float64
}

func DefaultParams() Params {
	return Params{
		BranchThreshold:   DefaultBranchThreshold,
		SkeletonThreshold: DefaultSkeletonThreshold,
		MaxPruneIter:      DefaultMaxPruneIter,
		Scale:             NominalDistancePerPixel,
	}
}

func (p Params) Validate() error {
	if p.BranchThreshold < 0 || p.SkeletonThreshold < 0 {
		return fmt.Errorf("skeleton thresholds must not be negative (branch %v, skeleton %v)", p.BranchThreshold, p.SkeletonThreshold)
	}
	if p.MaxPruneIter < 0 {
		return fmt.Errorf("max prune iterations must not be negative, got %d", p.MaxPruneIter)
	}
	if !(p.Scale > 0) || math.IsInf(p.Scale, 0) {
		return fmt.Errorf("scale must be a finite positive number, got %v", p.Scale)
	}
	return nil
}

// Result is the measurement of one frame.
type Result struct {
	// Components holds the longest-path length of every kept component, longest first.
	Components []float64
	Length     float64
	// Err is nil for a measured frame, an *UnmeasurableError otherwise.
	Err error
	// Skeleton is the pruned longest-path raster in crop coordinates (all background when
	// unmeasurable).
	Skeleton *imgx.Mask
}

func (r Result) Measured() bool { return r.Err == nil }

// Value maps the result onto the series value: the length or the missing marker.
func (r Result) Value() domain.Length {
	if r.Err != nil {
		return domain.Missing
	}
	return domain.Present(r.Length)
}

// Resolve applies the ambiguity policy: one component is the body, two are a body split
// into head and tail and are summed, anything else is unmeasurable.
func Resolve(lengths []float64) (float64, error) {
	switch len(lengths) {
	case 1:
		return lengths[0], nil
	case 2:
		return lengths[0] + lengths[1], nil
	case 0:
		return 0, &UnmeasurableError{Reason: ReasonNoSkeleton}
	default:
		return 0, &UnmeasurableError{Reason: ReasonAmbiguous, Components: len(lengths)}
	}
}

// Measurer measures frames of one sample against a fixed ROI.
type Measurer struct {
	p   Params
	roi image.Rectangle
}

func New(roi domain.ROI, p Params) (*Measurer, error) {
	if err := roi.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Measurer{p: p, roi: roi.Rect()}, nil
}

// Measure crops img to the ROI and measures it. The error is reserved for frames that cannot
// be read as images at all; analysis failures end up in Result.Err.
func (m *Measurer) Measure(img image.Image) (Result, error) {
	lum, err := imgx.Luminance(img)
	if err != nil {
		return Result{}, err
	}
	crop, ok := lum.Crop(m.roi)
	if !ok {
		return Result{
			Err:      &UnmeasurableError{Reason: ReasonEmptyCrop},
			Skeleton: imgx.NewMask(m.roi.Dx(), m.roi.Dy()),
		}, nil
	}
	return m.MeasureMask(crop.Threshold(binarizeLevel))
}

// MeasureMask measures an already cropped binary mask.
func (m *Measurer) MeasureMask(mask *imgx.Mask) (Result, error) {
	skel, err := Thin(mask)
	if err != nil {
		return Result{}, err
	}
	pg := buildGraph(skel)
	pg.prune(m.p.BranchThreshold, m.p.MaxPruneIter)

	out := imgx.NewMask(mask.W, mask.H)
	var lengths []float64
	for _, comp := range pg.components() {
		path, l := pg.longestPath(comp)
		if math.IsNaN(l) || math.IsInf(l, 0) || l < 0 {
			return Result{
				Err:      &UnmeasurableError{Reason: ReasonDegenerate},
				Skeleton: imgx.NewMask(mask.W, mask.H),
			}, nil
		}
		if l < m.p.SkeletonThreshold {
			continue
		}
		lengths = append(lengths, l*m.p.Scale)
		for _, id := range nodeIDs(path) {
			x, y := pg.xy(id)
			out.Set(x, y, true)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(lengths)))

	length, err := Resolve(lengths)
	if err != nil {
		var ue *UnmeasurableError
		if errors.As(err, &ue) {
			ue.Components = len(lengths)
		}
		return Result{Components: lengths, Err: err, Skeleton: imgx.NewMask(mask.W, mask.H)}, nil
	}
	return Result{Components: lengths, Length: length, Skeleton: out}, nil
}
