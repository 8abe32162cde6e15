package run

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/wormruler/internal/domain"
	"github.com/John-Robertt/wormruler/internal/frames"
	"github.com/John-Robertt/wormruler/internal/naming"
	"github.com/John-Robertt/wormruler/internal/roi"
	"github.com/John-Robertt/wormruler/internal/scan"
)

// ensureROI reuses <root>/<rootname>_ROI.txt or asks the picker once. The file is complete
// before any sample reads it.
func (r *runner) ensureROI(ctx context.Context) (domain.StageReport, error) {
	st := domain.StageROI
	rep := domain.StageReport{Stage: st}
	store := roi.New(r.eff.Root)
	r.deps.Observer.OnStageStart(st, 1, 1)

	started := time.Now()
	rect, created, err := store.Ensure(ctx, r.deps.Picker, r.firstFrame)

	res := domain.ItemResult{Unit: relTo(r.eff.Root, store.Path()), Output: relTo(r.eff.Root, store.Path())}
	switch {
	case err != nil:
		res.Status = domain.StatusFailed
		res.ErrorCode = domain.ErrCodeROIMissing
		res.ErrorMsg = err.Error()
	case created:
		res.Status = domain.StatusProcessed
		res.Reason = "selected " + rect.String()
	default:
		res.Status = domain.StatusSkipped
		res.Reason = "reused " + rect.String()
	}
	rep.Items = append(rep.Items, res)
	r.deps.Metrics.ItemsTotal.WithLabelValues(string(st), res.Status).Inc()
	r.deps.Observer.OnItemDone(st, 1, 1, res, time.Since(started))

	if err != nil {
		return rep, &StageError{Stage: st, Code: domain.ErrCodeROIMissing, Err: err}
	}
	r.roi, r.roiSet = rect, true
	r.log.Info("roi ready", zap.Stringer("roi", rect), zap.Bool("created", created))
	return rep, nil
}

// firstFrame is the frame the picker is shown: the first frame of the first sample in
// discovery order, taken from its binary video when that exists.
func (r *runner) firstFrame(ctx context.Context) (image.Image, domain.Sample, error) {
	_, samples, err := scan.All(r.eff.Root, naming.KindRaw)
	if err != nil {
		return nil, domain.Sample{}, err
	}
	if len(samples) == 0 {
		if _, samples, err = scan.All(r.eff.Root, naming.KindBinary); err != nil {
			return nil, domain.Sample{}, err
		}
	}
	if len(samples) == 0 {
		return nil, domain.Sample{}, fmt.Errorf("no sample under %s to select a roi on", r.eff.Root)
	}
	s := samples[0]

	bw := naming.Derived(s.Base, naming.KindBinary)
	if _, err := os.Stat(bw); err == nil {
		img, err := frames.First(ctx, r.deps.Video, bw)
		return img, s, err
	}
	if r.deps.Raw == nil {
		return nil, s, errors.New("no binary video yet and no decoder for raw videos")
	}
	img, err := frames.First(ctx, r.deps.Raw, s.Path)
	return img, s, err
}

// loadROI is used when skeletonization runs without the ROI stage result at hand.
func (r *runner) loadROI() (domain.ROI, error) {
	if r.roiSet {
		return r.roi, nil
	}
	rect, ok, err := roi.New(r.eff.Root).Read()
	if err != nil {
		return domain.ROI{}, err
	}
	if !ok {
		return domain.ROI{}, fmt.Errorf("%s: %w", naming.ROIPath(r.eff.Root), os.ErrNotExist)
	}
	r.roi, r.roiSet = rect, true
	return rect, nil
}
