package run

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/John-Robertt/wormruler/internal/app/planner"
	"github.com/John-Robertt/wormruler/internal/domain"
	"github.com/John-Robertt/wormruler/internal/infra/lengthfile"
	"github.com/John-Robertt/wormruler/internal/naming"
	"github.com/John-Robertt/wormruler/internal/normalize"
)

// normalize writes <base>_data.txt for every raw-lengths file under the root. A sample
// without a baseline fails on its own; the others continue.
func (r *runner) normalize(ctx context.Context) (domain.StageReport, error) {
	st := domain.StageNormalize
	rep := domain.StageReport{Stage: st}

	p := r.eff.NormalizeParams()
	if err := p.Validate(); err != nil {
		return rep, &StageError{Stage: st, Code: domain.ErrCodeConfigInvalid, Err: err}
	}

	_, samples, err := r.scanOrFail(st, naming.KindRawLengths)
	if err != nil {
		return rep, err
	}
	r.log.Info("normalizing",
		zap.Int("samples", len(samples)),
		zap.Int("pulse_frame", p.PulseFrame()),
		zap.Int("baseline_start", p.BaselineStart),
	)

	return r.eachSample(ctx, st, planner.PlanAll(samples), func(_ context.Context, t planner.Task) (domain.ItemResult, error) {
		return r.normalizeSample(p, t.Sample)
	})
}

func (r *runner) normalizeSample(p normalize.Params, s domain.Sample) (domain.ItemResult, error) {
	st := domain.StageNormalize
	out := naming.Derived(s.Base, naming.KindData)
	log := r.log.With(zap.String("sample", s.RelPath))

	raw, err := lengthfile.Read(s.Path)
	if err != nil {
		res := failed(s, domain.ErrCodeIOFailed, err)
		return res, &StageError{Stage: st, Code: domain.ErrCodeIOFailed, Err: err}
	}

	norm, err := normalize.Normalize(raw, p)
	if errors.Is(err, normalize.ErrNoBaseline) {
		r.deps.Metrics.BaselineFailures.Inc()
		// A data file from an earlier pulse start would otherwise be aggregated.
		if rmErr := os.Remove(out); rmErr == nil {
			log.Warn("removed stale normalized lengths", zap.String("path", out))
		} else if !os.IsNotExist(rmErr) {
			log.Warn("stale normalized lengths left in place", zap.Error(rmErr))
		}
		log.Warn("baseline estimation failed", zap.Error(err))
		res := failed(s, domain.ErrCodeBaselineFailed, err)
		res.Frames = len(raw)
		return res, nil
	}
	if err != nil {
		res := failed(s, domain.ErrCodeConfigInvalid, err)
		return res, &StageError{Stage: st, Code: domain.ErrCodeConfigInvalid, Err: err}
	}

	if err := lengthfile.Write(out, norm); err != nil {
		res := failed(s, domain.ErrCodeIOFailed, err)
		return res, &StageError{Stage: st, Code: domain.ErrCodeIOFailed, Err: fmt.Errorf("%s: %w", s.RelPath, err)}
	}

	missing := norm.CountMissing()
	r.deps.Metrics.FramesTotal.WithLabelValues(string(st), "kept").Add(float64(len(norm) - missing))
	r.deps.Metrics.FramesTotal.WithLabelValues(string(st), "missing").Add(float64(missing))
	log.Info("normalized lengths written", zap.Int("frames", len(norm)), zap.Int("missing", missing))

	res := item(s, domain.StatusProcessed)
	res.Frames = len(norm)
	res.Missing = missing
	res.Output = relTo(r.eff.Root, out)
	return res, nil
}
