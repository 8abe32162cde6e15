package run

import (
	"context"
	"errors"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/John-Robertt/wormruler/internal/app/planner"
	"github.com/John-Robertt/wormruler/internal/bgcorrect"
	"github.com/John-Robertt/wormruler/internal/domain"
	"github.com/John-Robertt/wormruler/internal/naming"
)

// correct writes <base>_bw.gif for every raw video under the root. It always reprocesses
// everything found: a new gamma overwrites earlier binary videos.
func (r *runner) correct(ctx context.Context) (domain.StageReport, error) {
	st := domain.StageCorrect
	rep := domain.StageReport{Stage: st}

	if r.deps.Raw == nil {
		return rep, &StageError{Stage: st, Code: domain.ErrCodeConfigInvalid, Err: errors.New("no decoder for raw videos")}
	}
	c, err := bgcorrect.New(r.eff.CorrectParams())
	if err != nil {
		return rep, &StageError{Stage: st, Code: domain.ErrCodeConfigInvalid, Err: err}
	}

	_, samples, err := r.scanOrFail(st, naming.KindRaw)
	if err != nil {
		return rep, err
	}
	r.log.Info("correcting", zap.Int("samples", len(samples)), zap.Float64("gamma", c.Params().Gamma))

	return r.eachSample(ctx, st, planner.PlanAll(samples), func(ctx context.Context, t planner.Task) (domain.ItemResult, error) {
		return r.correctSample(ctx, c, t.Sample)
	})
}

func (r *runner) correctSample(ctx context.Context, c *bgcorrect.Corrector, s domain.Sample) (domain.ItemResult, error) {
	st := domain.StageCorrect
	out := naming.Derived(s.Base, naming.KindBinary)

	n, err := r.transcode(ctx, st, s.RelPath, r.deps.Raw, s.Path, out, func(_ int, img image.Image) (image.Image, error) {
		m, err := c.Correct(img)
		if err != nil {
			return nil, err
		}
		return m.Paletted(), nil
	})
	r.deps.Metrics.FramesTotal.WithLabelValues(string(st), "binarized").Add(float64(n))
	if err != nil {
		res := failed(s, ioCode(err), err)
		res.Frames = n
		return res, &StageError{Stage: st, Code: res.ErrorCode, Err: fmt.Errorf("%s: %w", s.RelPath, err)}
	}

	r.log.Info("binary video written", zap.String("sample", s.RelPath), zap.Int("frames", n))
	res := item(s, domain.StatusProcessed)
	res.Frames = n
	res.Output = relTo(r.eff.Root, out)
	return res, nil
}
