// Package normalize converts raw length series into baseline-relative series.
package normalize

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/John-Robertt/wormruler/internal/domain"
)

const (
	DefaultBaselineStart = 5
	DefaultOutlierLow    = 0.8
	DefaultOutlierHigh   = 1.2
)

// ErrMissingPulseStart is returned by Params.Validate when no pulse start was configured.
var ErrMissingPulseStart = errors.New("pulse start (in seconds) is required for normalization")

// ErrNoBaseline means the baseline window held no present value. The sample cannot be
// normalized; the usual cause is a gamma that lost the worm before the pulse.
var ErrNoBaseline = errors.New("no measurable frame in the baseline window")

// Params describes the baseline window and the outlier band.
//
// The window is frames [BaselineStart, p-1) with p = round(PulseStart * Framerate). Ratios
// are kept only strictly inside (OutlierLow, OutlierHigh).
type Params struct {
	PulseStart    int  // seconds
	PulseStartSet bool // false means no pulse start was configured
	Framerate     int

	BaselineStart int
	OutlierLow    float64
	OutlierHigh   float64
}

// DefaultParams returns the standard window offset and outlier band for a pulse start.
func DefaultParams(pulseStart, framerate int) Params {
	return Params{
		PulseStart:    pulseStart,
		PulseStartSet: true,
		Framerate:     framerate,
		BaselineStart: DefaultBaselineStart,
		OutlierLow:    DefaultOutlierLow,
		OutlierHigh:   DefaultOutlierHigh,
	}
}

func (p Params) Validate() error {
	if !p.PulseStartSet {
		return ErrMissingPulseStart
	}
	if p.PulseStart < 0 {
		return fmt.Errorf("pulse start must not be negative, got %d", p.PulseStart)
	}
	if p.Framerate <= 0 {
		return fmt.Errorf("framerate must be positive, got %d", p.Framerate)
	}
	if p.BaselineStart < 0 {
		return fmt.Errorf("baseline start must not be negative, got %d", p.BaselineStart)
	}
	if !(p.OutlierLow < p.OutlierHigh) {
		return fmt.Errorf("outlier band (%v, %v) is empty", p.OutlierLow, p.OutlierHigh)
	}
	return nil
}

// PulseFrame is the frame index of the pulse start.
func (p Params) PulseFrame() int {
	return int(math.Round(float64(p.PulseStart) * float64(p.Framerate)))
}

// Window returns the baseline window [start, end) clamped to a series of length n.
// end <= start means the window is empty.
func (p Params) Window(n int) (start, end int) {
	start = min(max(p.BaselineStart, 0), n)
	end = min(max(p.PulseFrame()-1, 0), n)
	return start, end
}

// Baseline is the mean of the present, positive values inside the window. A window of one
// repeated value yields exactly that value, so its frames normalize to exactly 1.
func Baseline(raw domain.Series, p Params) (float64, error) {
	start, end := p.Window(len(raw))
	var vals []float64
	if start < end {
		for _, v := range raw[start:end].PresentValues() {
			if v > 0 {
				vals = append(vals, v)
			}
		}
	}
	if len(vals) == 0 {
		return 0, fmt.Errorf("window [%d, %d) of %d frames: %w", p.BaselineStart, p.PulseFrame()-1, len(raw), ErrNoBaseline)
	}
	return mean(vals), nil
}

// mean is the two-pass corrected mean; the residual pass removes the rounding left by the
// plain sum.
func mean(xs []float64) float64 {
	m := stat.Mean(xs, nil)
	var resid float64
	same := true
	for _, x := range xs {
		resid += x - m
		same = same && x == xs[0]
	}
	if same {
		return xs[0]
	}
	return m + resid/float64(len(xs))
}

// Normalize divides every present value by the baseline and drops ratios outside the
// outlier band. Missing values stay missing; the output has the input's length.
func Normalize(raw domain.Series, p Params) (domain.Series, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	base, err := Baseline(raw, p)
	if err != nil {
		return nil, err
	}

	out := make(domain.Series, len(raw))
	for i, v := range raw {
		if !v.Valid {
			out[i] = domain.Missing
			continue
		}
		r := v.V / base
		if r > p.OutlierLow && r < p.OutlierHigh {
			out[i] = domain.Present(r)
		} else {
			out[i] = domain.Missing
		}
	}
	return out, nil
}
