package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/John-Robertt/wormruler/internal/app/planner"
	"github.com/John-Robertt/wormruler/internal/config"
	"github.com/John-Robertt/wormruler/internal/domain"
	"github.com/John-Robertt/wormruler/internal/frames"
	"github.com/John-Robertt/wormruler/internal/infra/gifx"
	"github.com/John-Robertt/wormruler/internal/infra/metrics"
	"github.com/John-Robertt/wormruler/internal/naming"
	"github.com/John-Robertt/wormruler/internal/roi"
	"github.com/John-Robertt/wormruler/internal/scan"
)

// StagesAll is the composite "run everything" order.
var StagesAll = []domain.Stage{
	domain.StageCorrect,
	domain.StageROI,
	domain.StageSkeletonize,
	domain.StageNormalize,
	domain.StageAggregate,
}

// Deps are the collaborators of a run. Nil fields get defaults: GIF codec for binary and
// skeleton videos, no picker, a no-op logger, fresh metrics, no observer.
type Deps struct {
	// Raw decodes the recordings (.avi, .mov). Required by the correction and ROI stages.
	Raw frames.Source
	// Video decodes binary videos; Sink encodes binary and skeleton videos.
	Video frames.Source
	Sink  frames.Sink
	// Count returns the frame count of a binary video for the completeness check.
	Count planner.FrameCounter

	Picker   roi.Picker
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Observer Observer
}

func (d Deps) withDefaults() Deps {
	if d.Video == nil {
		d.Video = gifx.Codec{}
	}
	if d.Sink == nil {
		d.Sink = gifx.Codec{}
	}
	if d.Count == nil {
		d.Count = gifx.CountFrames
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Observer == nil {
		d.Observer = nopObserver{}
	}
	return d
}

// StageError stops a stage: the remaining units of that stage and every later stage are
// not run.
type StageError struct {
	Stage domain.Stage
	Code  string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %s: %v", e.Stage, e.Code, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Execute validates eff for the requested stages and runs them strictly in order.
//
//   - missing gamma (correction) or pulse start (normalization) fails before any file is
//     touched; the report then carries a single config item
//   - skeletonization always ensures the ROI first
//   - the first stage error ends the run; the report holds everything done until then
//
// The returned error is nil when every requested stage ran to the end. Per-frame and
// per-sample baseline failures are not errors; they show up in the report.
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps, stages ...domain.Stage) (domain.RunReport, error) {
	deps = deps.withDefaults()
	stages = expandStages(stages)

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Root:      eff.Root,
		StartedAt: time.Now().UTC(),
		Stages:    make([]domain.StageReport, 0, len(stages)),
	}
	log := deps.Logger.With(zap.String("run_id", rr.RunID))

	if err := validate(eff, stages); err != nil {
		log.Error("configuration rejected", zap.Error(err))
		rr.Stages = append(rr.Stages, configFailure(err))
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr, err
	}

	deps.Observer.OnStart(rr.RunID, eff, stages)
	log.Info("run started", zap.String("root", eff.Root), zap.Any("stages", stages))

	r := &runner{eff: eff, deps: deps, log: log}
	var runErr error
	for _, st := range stages {
		started := time.Now()
		rep, err := r.stage(ctx, st)
		dur := time.Since(started)

		deps.Metrics.StageDuration.WithLabelValues(string(st)).Observe(dur.Seconds())
		if err != nil {
			rep.Error = err.Error()
		}
		rr.Stages = append(rr.Stages, rep)
		deps.Observer.OnStageDone(st, rep, dur)

		if err != nil {
			log.Error("stage stopped", zap.String("stage", string(st)), zap.Error(err))
			runErr = err
			break
		}
		log.Info("stage done", zap.String("stage", string(st)), zap.Duration("took", dur))
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()

	deps.Metrics.LastRunTimestamp.Set(float64(rr.FinishedAt.Unix()))
	deps.Metrics.LastRunFailedItems.Set(float64(rr.Summary.Failed))
	return rr, runErr
}

// expandStages inserts the ROI step in front of skeletonization and orders the stages by
// pipeline position, dropping duplicates.
func expandStages(in []domain.Stage) []domain.Stage {
	want := make(map[domain.Stage]bool, len(in)+1)
	for _, s := range in {
		want[s] = true
	}
	if want[domain.StageSkeletonize] {
		want[domain.StageROI] = true
	}
	out := make([]domain.Stage, 0, len(want))
	for _, s := range StagesAll {
		if want[s] {
			out = append(out, s)
		}
	}
	return out
}

func validate(eff config.EffectiveConfig, stages []domain.Stage) error {
	for _, s := range stages {
		switch s {
		case domain.StageCorrect:
			if err := eff.RequireGamma(); err != nil {
				return err
			}
		case domain.StageNormalize:
			if err := eff.RequirePulseStart(); err != nil {
				return err
			}
		}
	}
	fi, err := os.Stat(eff.Root)
	if err != nil {
		return &config.Error{Code: config.ErrCodeRootNotFound, Path: eff.Root, Err: err}
	}
	if !fi.IsDir() {
		return &config.Error{Code: config.ErrCodeRootNotFound, Path: eff.Root, Err: errors.New("not a directory")}
	}
	return nil
}

// configFailure is the report entry for a run rejected before any stage.
func configFailure(err error) domain.StageReport {
	code := config.Code(err)
	if code == "" {
		code = domain.ErrCodeConfigInvalid
	}
	return domain.StageReport{
		Stage: "config",
		Error: err.Error(),
		Items: []domain.ItemResult{{
			Unit:      "config",
			Status:    domain.StatusFailed,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
		}},
	}
}

type runner struct {
	eff  config.EffectiveConfig
	deps Deps
	log  *zap.Logger

	roi    domain.ROI
	roiSet bool
}

func (r *runner) stage(ctx context.Context, st domain.Stage) (domain.StageReport, error) {
	switch st {
	case domain.StageCorrect:
		return r.correct(ctx)
	case domain.StageROI:
		return r.ensureROI(ctx)
	case domain.StageSkeletonize:
		return r.skeletonize(ctx)
	case domain.StageNormalize:
		return r.normalize(ctx)
	case domain.StageAggregate:
		return r.aggregate(ctx)
	default:
		return domain.StageReport{Stage: st}, &StageError{Stage: st, Code: domain.ErrCodeConfigInvalid, Err: fmt.Errorf("unknown stage %q", st)}
	}
}

// sampleFunc processes one sample; a non-nil error stops the stage.
type sampleFunc func(ctx context.Context, t planner.Task) (domain.ItemResult, error)

// eachSample drives a per-sample stage over tasks in order, emitting one event per unit.
func (r *runner) eachSample(ctx context.Context, st domain.Stage, tasks []planner.Task, fn sampleFunc) (domain.StageReport, error) {
	rep := domain.StageReport{Stage: st, Items: make([]domain.ItemResult, 0, len(tasks))}
	r.deps.Observer.OnStageStart(st, len(tasks), planner.Pending(tasks))

	for i, t := range tasks {
		started := time.Now()
		var (
			res domain.ItemResult
			err error
		)
		switch {
		case t.Skip:
			res = item(t.Sample, domain.StatusSkipped)
			res.Reason = t.Reason
		case ctx.Err() != nil:
			err = &StageError{Stage: st, Code: domain.ErrCodeCanceled, Err: ctx.Err()}
			res = failed(t.Sample, domain.ErrCodeCanceled, ctx.Err())
		default:
			res, err = fn(ctx, t)
		}

		rep.Items = append(rep.Items, res)
		r.deps.Metrics.ItemsTotal.WithLabelValues(string(st), res.Status).Inc()
		r.deps.Observer.OnItemDone(st, i+1, len(tasks), res, time.Since(started))
		if err != nil {
			return rep, err
		}
	}
	return rep, nil
}

// scanOrFail enumerates artefacts of kind under the root. An empty enumeration is an error:
// the stage has nothing to work on.
func (r *runner) scanOrFail(st domain.Stage, kind naming.Kind) ([]domain.Condition, []domain.Sample, error) {
	conds, samples, err := scan.All(r.eff.Root, kind)
	if err != nil {
		return nil, nil, &StageError{Stage: st, Code: domain.ErrCodeIOFailed, Err: err}
	}
	if len(samples) == 0 {
		return conds, nil, &StageError{
			Stage: st,
			Code:  domain.ErrCodeNoInputs,
			Err:   fmt.Errorf("no %s files in any condition folder under %s", kind, r.eff.Root),
		}
	}
	return conds, samples, nil
}

func item(s domain.Sample, status string) domain.ItemResult {
	return domain.ItemResult{Unit: s.RelPath, Condition: s.Condition, Status: status}
}

func failed(s domain.Sample, code string, err error) domain.ItemResult {
	res := item(s, domain.StatusFailed)
	res.ErrorCode = code
	res.ErrorMsg = err.Error()
	return res
}

// ioCode classifies a per-sample failure for the report.
func ioCode(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.ErrCodeCanceled
	case frames.IsDecode(err), errors.Is(err, frames.ErrNoFrames):
		return domain.ErrCodeDecodeFailed
	default:
		return domain.ErrCodeIOFailed
	}
}

func relTo(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return rel
	}
	return path
}
