package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/wormruler/internal/app/run"
	"github.com/John-Robertt/wormruler/internal/config"
	"github.com/John-Robertt/wormruler/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI prints run progress for an interactive terminal.
//
//   - everything goes to w (stderr, or stdout when only stdout is a terminal)
//   - one line per finished unit with the fraction done
//   - a keepalive line with the current frame count while a long sample is in progress
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	last   domain.Stage
	stage  domain.Stage
	total  int
	done   int
	unit   string
	frames int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(runID string, eff config.EffectiveConfig, stages []domain.Stage) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.startedAt = now
	if len(stages) > 0 {
		p.last = stages[len(stages)-1]
	}

	fmt.Fprintf(p.w, "[%s] wormruler run %s\n", now.Format("15:04:05"), runID)
	fmt.Fprintln(p.w, "configuration:")
	fmt.Fprintf(p.w, "  root: %s\n", eff.Root)
	fmt.Fprintf(p.w, "  stages: %s\n", joinStages(stages))
	fmt.Fprintf(p.w, "  gamma: %s\n", optFloat(eff.Gamma, eff.GammaSet))
	fmt.Fprintf(p.w, "  framerate: %d fps\n", eff.Framerate)
	fmt.Fprintf(p.w, "  pulse_start: %s\n", optSeconds(eff.PulseStart, eff.PulseStartSet))
	fmt.Fprintf(p.w, "  override: %s\n", onOff(eff.Override))
	fmt.Fprintf(p.w, "  baseline: from frame %d, outliers outside (%g, %g)\n", eff.BaselineStart, eff.OutlierLow, eff.OutlierHigh)
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
	p.startTickerLocked()
}

func (p *progressUI) OnStageStart(stage domain.Stage, total, pending int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage, p.total, p.done = stage, total, 0
	p.unit, p.frames = "", 0
	fmt.Fprintf(p.w, "%s: %d to process, %d already complete\n", stage, pending, total-pending)
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnItemDone(stage domain.Stage, idx, total int, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done, p.total = idx, total
	p.unit, p.frames = "", 0

	prefix := fmt.Sprintf("[%s %d/%d %3.0f%%]", stage, idx, total, percent(idx, total))
	switch res.Status {
	case domain.StatusFailed:
		fmt.Fprintf(p.w, "%s %s FAIL %s: %s (%s)\n", prefix, res.Unit, res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur))
	case domain.StatusSkipped:
		fmt.Fprintf(p.w, "%s %s SKIP %s\n", prefix, res.Unit, res.Reason)
	default:
		fmt.Fprintf(p.w, "%s %s OK%s (%s)\n", prefix, res.Unit, itemDetail(res), formatShortDuration(dur))
	}
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnProgress(stage domain.Stage, unit string, frames int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unit, p.frames = unit, frames
}

func (p *progressUI) OnStageDone(stage domain.Stage, rep domain.StageReport, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "%s done: processed=%d skipped=%d failed=%d (%s)\n",
		stage, rep.Summary.Processed, rep.Summary.Skipped, rep.Summary.Failed, formatShortDuration(dur),
	)
	if rep.Error != "" {
		fmt.Fprintf(p.w, "%s stopped: %s\n", stage, truncate(rep.Error, 200))
	}
	fmt.Fprintln(p.w)
	p.lastPrinted = time.Now()

	// The last stage closes the ticker; a stage error ends the run as well.
	if p.tickerStarted && (rep.Error != "" || stage == p.last) {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) startTickerLocked() {
	if p.tickerStarted {
		return
	}
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}
	stop := p.stopCh

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.unit != "" && time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "progress: %s %d/%d, %s at frame %d, elapsed=%s\n",
						p.stage, p.done, p.total, p.unit, p.frames, formatElapsed(time.Since(p.startedAt)),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func itemDetail(res domain.ItemResult) string {
	var parts []string
	if res.Frames > 0 {
		parts = append(parts, fmt.Sprintf("frames=%d", res.Frames))
	}
	if res.Unmeasurable > 0 {
		parts = append(parts, fmt.Sprintf("unmeasurable=%d", res.Unmeasurable))
	}
	if res.Missing > 0 {
		parts = append(parts, fmt.Sprintf("missing=%d", res.Missing))
	}
	if res.Reason != "" {
		parts = append(parts, res.Reason)
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}

func joinStages(stages []domain.Stage) string {
	parts := make([]string, 0, len(stages))
	for _, s := range stages {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, " -> ")
}

func optFloat(v float64, set bool) string {
	if !set {
		return "unset"
	}
	return fmt.Sprintf("%g", v)
}

func optSeconds(v int, set bool) string {
	if !set {
		return "unset"
	}
	return fmt.Sprintf("%ds", v)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func percent(done, total int) float64 {
	if total <= 0 {
		return 100
	}
	return 100 * float64(done) / float64(total)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
