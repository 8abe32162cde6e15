package run

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/John-Robertt/wormruler/internal/app/planner"
	"github.com/John-Robertt/wormruler/internal/domain"
	"github.com/John-Robertt/wormruler/internal/infra/lengthfile"
	"github.com/John-Robertt/wormruler/internal/naming"
	"github.com/John-Robertt/wormruler/internal/skeleton"
)

// skeletonize measures every binary video under the root. Without override, samples whose
// raw-lengths file has one line per binary frame are skipped.
func (r *runner) skeletonize(ctx context.Context) (domain.StageReport, error) {
	st := domain.StageSkeletonize
	rep := domain.StageReport{Stage: st}

	rect, err := r.loadROI()
	if err != nil {
		return rep, &StageError{Stage: st, Code: domain.ErrCodeROIMissing, Err: err}
	}
	m, err := skeleton.New(rect, r.eff.SkeletonParams())
	if err != nil {
		return rep, &StageError{Stage: st, Code: domain.ErrCodeConfigInvalid, Err: err}
	}

	_, samples, err := r.scanOrFail(st, naming.KindBinary)
	if err != nil {
		return rep, err
	}
	tasks := planner.PlanSkeletonize(samples, r.eff.Override, r.deps.Count)
	r.log.Info("skeletonizing",
		zap.Int("samples", len(samples)),
		zap.Int("pending", planner.Pending(tasks)),
		zap.Bool("override", r.eff.Override),
	)

	return r.eachSample(ctx, st, tasks, func(ctx context.Context, t planner.Task) (domain.ItemResult, error) {
		return r.skeletonizeSample(ctx, m, t.Sample)
	})
}

func (r *runner) skeletonizeSample(ctx context.Context, m *skeleton.Measurer, s domain.Sample) (domain.ItemResult, error) {
	st := domain.StageSkeletonize
	out := planner.SkeletonOutputs(s.Base)
	log := r.log.With(zap.String("sample", s.RelPath))

	series := make(domain.Series, 0, 512)
	unmeasurable := 0
	n, err := r.transcode(ctx, st, s.RelPath, r.deps.Video, s.Path, out.Skeleton, func(i int, img image.Image) (image.Image, error) {
		res, err := m.Measure(img)
		if err != nil {
			return nil, err
		}
		if skeleton.IsUnmeasurable(res.Err) {
			unmeasurable++
			log.Debug("frame unmeasurable", zap.Int("frame", i), zap.Error(res.Err))
		}
		series = append(series, res.Value())
		return res.Skeleton.Paletted(), nil
	})
	if err != nil {
		res := failed(s, ioCode(err), err)
		res.Frames = n
		return res, &StageError{Stage: st, Code: res.ErrorCode, Err: fmt.Errorf("%s: %w", s.RelPath, err)}
	}

	// Written last: a raw-lengths file with one line per frame marks the sample complete.
	if err := lengthfile.Write(out.RawLengths, series); err != nil {
		res := failed(s, domain.ErrCodeIOFailed, err)
		return res, &StageError{Stage: st, Code: domain.ErrCodeIOFailed, Err: fmt.Errorf("%s: %w", s.RelPath, err)}
	}

	r.deps.Metrics.FramesTotal.WithLabelValues(string(st), "measured").Add(float64(n - unmeasurable))
	r.deps.Metrics.FramesTotal.WithLabelValues(string(st), "unmeasurable").Add(float64(unmeasurable))
	log.Info("raw lengths written", zap.Int("frames", n), zap.Int("unmeasurable", unmeasurable))

	res := item(s, domain.StatusProcessed)
	res.Frames = n
	res.Unmeasurable = unmeasurable
	res.Output = relTo(r.eff.Root, out.RawLengths)
	return res, nil
}
