package run

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"

	"github.com/John-Robertt/wormruler/internal/config"
	"github.com/John-Robertt/wormruler/internal/domain"
	"github.com/John-Robertt/wormruler/internal/frames"
	"github.com/John-Robertt/wormruler/internal/infra/gifx"
	"github.com/John-Robertt/wormruler/internal/infra/lengthfile"
	"github.com/John-Robertt/wormruler/internal/roi"
)

const (
	frameW   = 200
	frameH   = 80
	numFrame = 12
)

// wormFrame is a dark 120x20 bar on a bright background.
func wormFrame() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, frameW, frameH))
	for y := 0; y < frameH; y++ {
		for x := 0; x < frameW; x++ {
			v := uint8(200)
			if x >= 40 && x < 160 && y >= 30 && y < 50 {
				v = 40
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("raw"), 0o644))
}

func writeSeries(t *testing.T, path string, s domain.Series) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, lengthfile.Write(path, s))
}

// fixture is a root with two conditions: wt/w1.avi, wt/sub/w2.AVI and mut/m1.mov.
type fixture struct {
	root string
	raw  *frames.Memory
	eff  config.EffectiveConfig
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := filepath.Join(t.TempDir(), "assay")
	mem := frames.NewMemory()
	for _, rel := range []string{"wt/w1.avi", "wt/sub/w2.AVI", "mut/m1.mov"} {
		p := filepath.Join(root, filepath.FromSlash(rel))
		touch(t, p)
		imgs := make([]image.Image, numFrame)
		for i := range imgs {
			imgs[i] = wormFrame()
		}
		mem.Put(p, imgs...)
	}

	eff := config.Defaults(root)
	eff.Gamma, eff.GammaSet = 1.0, true
	eff.PulseStart, eff.PulseStartSet = 1, true
	eff.Framerate = 10
	return fixture{root: root, raw: mem, eff: eff}
}

func (f fixture) deps(t *testing.T, pick roi.Picker) Deps {
	return Deps{Raw: f.raw, Picker: pick, Logger: zaptest.NewLogger(t)}
}

func (f fixture) path(rel string) string { return filepath.Join(f.root, filepath.FromSlash(rel)) }

func stageNames(rr domain.RunReport) []domain.Stage {
	out := make([]domain.Stage, 0, len(rr.Stages))
	for _, st := range rr.Stages {
		out = append(out, st.Stage)
	}
	return out
}

func TestExecute_AllStages_EndToEnd(t *testing.T) {
	f := newFixture(t)
	rr, err := Execute(context.Background(), f.eff, f.deps(t, roi.Fixed{X: 10, Y: 10, W: 180, H: 60}), StagesAll...)
	require.NoError(t, err)
	require.Equal(t, StagesAll, stageNames(rr))
	require.Zero(t, rr.Summary.Failed, "%+v", rr.Stages)
	require.NotEmpty(t, rr.RunID)

	b, err := os.ReadFile(f.path("assay_ROI.txt"))
	require.NoError(t, err)
	require.Equal(t, "10\n10\n180\n60\n", string(b))

	for _, base := range []string{"wt/w1", "wt/sub/w2", "mut/m1"} {
		n, err := gifx.CountFrames(f.path(base + "_bw.gif"))
		require.NoError(t, err)
		require.Equal(t, numFrame, n)

		n, err = gifx.CountFrames(f.path(base + "_skel.gif"))
		require.NoError(t, err)
		require.Equal(t, numFrame, n)

		raw, err := lengthfile.Read(f.path(base + "_raw_lengths.txt"))
		require.NoError(t, err)
		require.Len(t, raw, numFrame)
		for i, v := range raw {
			require.True(t, v.Valid, "frame %d of %s unmeasurable", i, base)
			require.Equal(t, raw[0].V, v.V)
		}

		data, err := lengthfile.Read(f.path(base + "_data.txt"))
		require.NoError(t, err)
		require.Len(t, data, numFrame)
		for _, v := range data {
			require.Equal(t, domain.Present(1.0), v)
		}
	}

	x, err := excelize.OpenFile(f.path("wt/wt_results.xlsx"))
	require.NoError(t, err)
	defer x.Close()
	rows, err := x.GetRows("wt")
	require.NoError(t, err)
	require.Len(t, rows, numFrame+1)
	require.Equal(t, []string{"Frame", "w1", "w2", "Mean", "SEM", "N"}, rows[0])
	require.Equal(t, "2", rows[1][5])

	_, err = os.Stat(f.path("mut/mut_results.xlsx"))
	require.NoError(t, err)

	agg, ok := rr.Stage(domain.StageAggregate)
	require.True(t, ok)
	require.Equal(t, domain.ReportSummary{Processed: 2}, agg.Summary)
}

func TestExecute_SkeletonizeSkipsCompleteUnlessOverride(t *testing.T) {
	f := newFixture(t)
	picks := 0
	pick := roi.PickerFunc(func(context.Context, image.Image, domain.Sample) (domain.ROI, error) {
		picks++
		return domain.ROI{X: 0, Y: 0, W: frameW, H: frameH}, nil
	})

	_, err := Execute(context.Background(), f.eff, f.deps(t, pick), domain.StageCorrect, domain.StageSkeletonize)
	require.NoError(t, err)
	require.Equal(t, 1, picks)

	// A truncated file from an interrupted run is not complete.
	require.NoError(t, os.WriteFile(f.path("mut/m1_raw_lengths.txt"), []byte("1.0\n"), 0o644))

	rr, err := Execute(context.Background(), f.eff, f.deps(t, pick), domain.StageSkeletonize)
	require.NoError(t, err)
	require.Equal(t, 1, picks, "stored roi must be reused")
	require.Equal(t, []domain.Stage{domain.StageROI, domain.StageSkeletonize}, stageNames(rr))

	sk, _ := rr.Stage(domain.StageSkeletonize)
	require.Equal(t, domain.ReportSummary{Processed: 1, Skipped: 2}, sk.Summary)
	n, err := lengthfile.CountLines(f.path("mut/m1_raw_lengths.txt"))
	require.NoError(t, err)
	require.Equal(t, numFrame, n)

	f.eff.Override = true
	require.NoError(t, os.WriteFile(f.path("wt/w1_raw_lengths.txt"), []byte(""), 0o644))
	rr, err = Execute(context.Background(), f.eff, f.deps(t, pick), domain.StageSkeletonize)
	require.NoError(t, err)
	sk, _ = rr.Stage(domain.StageSkeletonize)
	require.Equal(t, domain.ReportSummary{Processed: 3}, sk.Summary)
	n, err = lengthfile.CountLines(f.path("wt/w1_raw_lengths.txt"))
	require.NoError(t, err)
	require.Equal(t, numFrame, n)
}

func TestExecute_MissingParametersTouchNothing(t *testing.T) {
	f := newFixture(t)
	f.eff.GammaSet = false

	rr, err := Execute(context.Background(), f.eff, f.deps(t, nil), StagesAll...)
	require.Error(t, err)
	require.Equal(t, config.ErrCodeMissingGamma, config.Code(err))
	require.Equal(t, 1, rr.Summary.Failed)
	require.Equal(t, config.ErrCodeMissingGamma, rr.Stages[0].Items[0].ErrorCode)

	_, statErr := os.Stat(f.path("wt/w1_bw.gif"))
	require.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(f.path("assay_ROI.txt"))
	require.True(t, os.IsNotExist(statErr))

	f.eff.GammaSet = true
	f.eff.PulseStartSet = false
	_, err = Execute(context.Background(), f.eff, f.deps(t, nil), domain.StageNormalize)
	require.Equal(t, config.ErrCodeMissingPulseStart, config.Code(err))
}

func TestExecute_NormalizeIsolatesBaselineFailures(t *testing.T) {
	root := filepath.Join(t.TempDir(), "assay")
	writeSeries(t, filepath.Join(root, "wt", "a_raw_lengths.txt"), domain.Series{
		domain.Present(10), domain.Present(10), domain.Present(10), domain.Present(10), domain.Present(10),
		domain.Present(10), domain.Present(20), domain.Present(5), domain.Missing,
	})
	writeSeries(t, filepath.Join(root, "wt", "b_raw_lengths.txt"), domain.Series{
		domain.Present(10), domain.Present(10), domain.Present(10), domain.Present(10), domain.Present(10),
		domain.Missing, domain.Present(10), domain.Present(10),
	})
	stale := filepath.Join(root, "wt", "b_data.txt")
	require.NoError(t, os.WriteFile(stale, []byte("1.0\n"), 0o644))

	eff := config.Defaults(root)
	eff.Framerate = 1
	eff.PulseStart, eff.PulseStartSet = 7, true

	rr, err := Execute(context.Background(), eff, Deps{Logger: zaptest.NewLogger(t)}, domain.StageNormalize, domain.StageAggregate)
	require.NoError(t, err)

	norm, _ := rr.Stage(domain.StageNormalize)
	require.Equal(t, domain.ReportSummary{Processed: 1, Failed: 1}, norm.Summary)
	require.Equal(t, "wt/b_raw_lengths.txt", filepath.ToSlash(norm.Items[1].Unit))
	require.Equal(t, domain.ErrCodeBaselineFailed, norm.Items[1].ErrorCode)

	got, err := lengthfile.Read(filepath.Join(root, "wt", "a_data.txt"))
	require.NoError(t, err)
	one := domain.Present(1)
	require.Equal(t, domain.Series{one, one, one, one, one, one, domain.Missing, domain.Missing, domain.Missing}, got)

	_, err = os.Stat(stale)
	require.True(t, os.IsNotExist(err), "stale data file must not be aggregated")

	agg, _ := rr.Stage(domain.StageAggregate)
	require.Equal(t, domain.ReportSummary{Processed: 1}, agg.Summary)
}

func TestExecute_EmptyRootStopsStage(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "wt"), 0o755))
	eff := config.Defaults(root)
	eff.PulseStart, eff.PulseStartSet = 1, true

	rr, err := Execute(context.Background(), eff, Deps{}, domain.StageNormalize, domain.StageAggregate)
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, domain.ErrCodeNoInputs, se.Code)
	require.Equal(t, []domain.Stage{domain.StageNormalize}, stageNames(rr), "later stages must not run")
	require.NotEmpty(t, rr.Stages[0].Error)
}

func TestExecute_SkeletonizeWithoutROIOrPickerFails(t *testing.T) {
	f := newFixture(t)
	_, err := Execute(context.Background(), f.eff, f.deps(t, nil), domain.StageCorrect)
	require.NoError(t, err)

	rr, err := Execute(context.Background(), f.eff, f.deps(t, nil), domain.StageSkeletonize)
	require.ErrorIs(t, err, roi.ErrNoPicker)
	require.Equal(t, []domain.Stage{domain.StageROI}, stageNames(rr))
	require.Equal(t, domain.ErrCodeROIMissing, rr.Stages[0].Items[0].ErrorCode)

	_, statErr := os.Stat(f.path("wt/w1_raw_lengths.txt"))
	require.True(t, os.IsNotExist(statErr))
}

func TestExecute_CanceledBetweenSamples(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rr, err := Execute(ctx, f.eff, f.deps(t, nil), domain.StageCorrect)
	require.ErrorIs(t, err, context.Canceled)
	st, _ := rr.Stage(domain.StageCorrect)
	require.Equal(t, domain.ErrCodeCanceled, st.Items[0].ErrorCode)

	_, statErr := os.Stat(f.path("mut/m1_bw.gif"))
	require.True(t, os.IsNotExist(statErr))
}

func TestExecute_SkeletonizeCountsUnmeasurableFrames(t *testing.T) {
	f := newFixture(t)
	deps := f.deps(t, roi.Fixed{X: 10, Y: 10, W: 180, H: 60})
	_, err := Execute(context.Background(), f.eff, deps, domain.StageCorrect)
	require.NoError(t, err)

	// Every third binary frame of mut/m1 is blank.
	w, err := gifx.Create(f.path("mut/m1_bw.gif"), f.eff.Framerate)
	require.NoError(t, err)
	for i := 0; i < numFrame; i++ {
		img := image.NewGray(image.Rect(0, 0, frameW, frameH))
		if i%3 != 0 {
			for y := 30; y < 50; y++ {
				for x := 40; x < 160; x++ {
					img.SetGray(x, y, color.Gray{Y: 255})
				}
			}
		}
		require.NoError(t, w.Write(img))
	}
	require.NoError(t, w.Close())

	rr, err := Execute(context.Background(), f.eff, deps, domain.StageSkeletonize)
	require.NoError(t, err)
	sk, ok := rr.Stage(domain.StageSkeletonize)
	require.True(t, ok)
	require.Equal(t, domain.ReportSummary{Processed: 3}, sk.Summary)

	for _, it := range sk.Items {
		want := 0
		if it.Condition == "mut" {
			want = numFrame / 3
		}
		require.Equal(t, want, it.Unmeasurable, it.Unit)
		require.Equal(t, numFrame, it.Frames, it.Unit)
	}

	raw, err := lengthfile.Read(f.path("mut/m1_raw_lengths.txt"))
	require.NoError(t, err)
	require.Len(t, raw, numFrame)
	for i, v := range raw {
		require.Equal(t, i%3 != 0, v.Valid, "frame %d", i)
	}
}
