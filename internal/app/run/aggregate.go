package run

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/wormruler/internal/aggregate"
	"github.com/John-Robertt/wormruler/internal/app"
	"github.com/John-Robertt/wormruler/internal/domain"
	"github.com/John-Robertt/wormruler/internal/infra/lengthfile"
	"github.com/John-Robertt/wormruler/internal/infra/xlsx"
	"github.com/John-Robertt/wormruler/internal/naming"
)

// aggregate writes <condition>/<condition>_results.xlsx for every condition holding at least
// one normalized series. The unit of work is the condition.
func (r *runner) aggregate(ctx context.Context) (domain.StageReport, error) {
	st := domain.StageAggregate
	rep := domain.StageReport{Stage: st}

	conds, samples, err := r.scanOrFail(st, naming.KindData)
	if err != nil {
		return rep, err
	}
	groups := app.GroupByCondition(conds, samples)

	pending := 0
	for _, g := range groups {
		if len(g.SampleIdx) > 0 {
			pending++
		}
	}
	r.deps.Observer.OnStageStart(st, len(groups), pending)

	for i, g := range groups {
		started := time.Now()
		res, err := r.aggregateCondition(ctx, samples, g)
		rep.Items = append(rep.Items, res)
		r.deps.Metrics.ItemsTotal.WithLabelValues(string(st), res.Status).Inc()
		r.deps.Observer.OnItemDone(st, i+1, len(groups), res, time.Since(started))
		if err != nil {
			return rep, err
		}
	}
	return rep, nil
}

func (r *runner) aggregateCondition(ctx context.Context, samples []domain.Sample, g app.SampleGroup) (domain.ItemResult, error) {
	st := domain.StageAggregate
	cond := g.Condition
	res := domain.ItemResult{Unit: cond.Name, Condition: cond.Name}

	if err := ctx.Err(); err != nil {
		res.Status, res.ErrorCode, res.ErrorMsg = domain.StatusFailed, domain.ErrCodeCanceled, err.Error()
		return res, &StageError{Stage: st, Code: domain.ErrCodeCanceled, Err: err}
	}
	if len(g.SampleIdx) == 0 {
		res.Status = domain.StatusSkipped
		res.Reason = "no normalized series"
		return res, nil
	}

	names := app.ColumnNames(samples, g)
	cols := make([]aggregate.Column, 0, len(g.SampleIdx))
	for j, idx := range g.SampleIdx {
		s, err := lengthfile.Read(samples[idx].Path)
		if err != nil {
			res.Status, res.ErrorCode, res.ErrorMsg = domain.StatusFailed, domain.ErrCodeIOFailed, err.Error()
			return res, &StageError{Stage: st, Code: domain.ErrCodeIOFailed, Err: err}
		}
		cols = append(cols, aggregate.Column{Name: names[j], Series: s})
	}

	table := aggregate.Aggregate(cond.Name, cols)
	out := naming.ResultsPath(cond.Dir, cond.Name)
	if err := xlsx.Write(out, table); err != nil {
		err = fmt.Errorf("write %s: %w", out, err)
		res.Status, res.ErrorCode, res.ErrorMsg = domain.StatusFailed, domain.ErrCodeReportFailed, err.Error()
		return res, &StageError{Stage: st, Code: domain.ErrCodeReportFailed, Err: err}
	}

	r.log.Info("condition report written",
		zap.String("condition", cond.Name),
		zap.Int("samples", len(cols)),
		zap.Int("frames", len(table.Rows)),
	)
	res.Status = domain.StatusProcessed
	res.Frames = len(table.Rows)
	res.Output = relTo(r.eff.Root, out)
	return res, nil
}
