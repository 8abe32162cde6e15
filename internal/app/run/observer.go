package run

import (
	"time"

	"github.com/John-Robertt/wormruler/internal/config"
	"github.com/John-Robertt/wormruler/internal/domain"
)

// Observer receives progress events from a run.
//
// Constraints:
// - the run package only emits events and never prints; stdout belongs to the JSON report
// - events arrive from the goroutine that called Execute, in order
type Observer interface {
	// OnStart is called once, before any stage, with the stages about to run.
	OnStart(runID string, eff config.EffectiveConfig, stages []domain.Stage)
	// OnStageStart is called after the work list of a stage is known.
	OnStageStart(stage domain.Stage, total, pending int)
	// OnItemDone is called after each unit of a stage, skipped units included.
	OnItemDone(stage domain.Stage, idx, total int, res domain.ItemResult, dur time.Duration)
	// OnProgress is called after each frame of the sample being processed.
	OnProgress(stage domain.Stage, unit string, frames int)
	// OnStageDone is called when a stage ends, including when it stopped early.
	OnStageDone(stage domain.Stage, rep domain.StageReport, dur time.Duration)
}

type nopObserver struct{}

func (nopObserver) OnStart(string, config.EffectiveConfig, []domain.Stage) {}

func (nopObserver) OnStageStart(domain.Stage, int, int) {}

func (nopObserver) OnItemDone(domain.Stage, int, int, domain.ItemResult, time.Duration) {}

func (nopObserver) OnProgress(domain.Stage, string, int) {}

func (nopObserver) OnStageDone(domain.Stage, domain.StageReport, time.Duration) {}
