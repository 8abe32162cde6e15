package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// Stage names the pipeline steps in execution order.
type Stage string

const (
	StageCorrect     Stage = "correct"
	StageROI         Stage = "roi"
	StageSkeletonize Stage = "skeletonize"
	StageNormalize   Stage = "normalize"
	StageAggregate   Stage = "aggregate"
)

const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

const (
	ErrCodeIOFailed       = "io_failed"
	ErrCodeDecodeFailed   = "decode_failed"
	ErrCodeNoInputs       = "no_inputs"
	ErrCodeROIMissing     = "roi_missing"
	ErrCodeBaselineFailed = "baseline_failed"
	ErrCodeReportFailed   = "report_failed"
	ErrCodeCanceled       = "canceled"
	ErrCodeConfigInvalid  = "config_invalid"
)

// RunReport is the stable JSON output of one orchestrator invocation.
type RunReport struct {
	RunID string `json:"run_id"`
	Root  string `json:"root"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Stages  []StageReport `json:"stages"`
}

type ReportSummary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// StageReport collects the per-unit results of one stage. Error is set when the stage
// stopped early (I/O error, empty enumeration, cancellation).
type StageReport struct {
	Stage   Stage         `json:"stage"`
	Summary ReportSummary `json:"summary"`
	Error   string        `json:"error,omitempty"`
	Items   []ItemResult  `json:"items"`
}

// ItemResult is one unit of work: a sample for the per-sample stages, a condition for
// aggregation, the root for the ROI step.
type ItemResult struct {
	Unit      string `json:"unit"`
	Condition string `json:"condition"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
	// Reason says why a unit was skipped or reused.
	Reason string `json:"reason,omitempty"`

	Frames int `json:"frames,omitempty"`
	// Unmeasurable counts skeleton frames recorded as missing; Missing counts missing values
	// of a normalized series (unmeasurable or outside the outlier band).
	Unmeasurable int    `json:"unmeasurable,omitempty"`
	Missing      int    `json:"missing,omitempty"`
	Output       string `json:"output,omitempty"`
}

// Finalize normalizes times to UTC, sorts items by (condition, unit) and derives every summary.
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	var total ReportSummary
	for i := range r.Stages {
		st := &r.Stages[i]
		if st.Items == nil {
			st.Items = []ItemResult{}
		}
		sort.SliceStable(st.Items, func(a, b int) bool {
			x, y := st.Items[a], st.Items[b]
			if x.Condition != y.Condition {
				return x.Condition < y.Condition
			}
			return x.Unit < y.Unit
		})
		st.Summary = summarize(st.Items)
		total.Processed += st.Summary.Processed
		total.Skipped += st.Summary.Skipped
		total.Failed += st.Summary.Failed
	}
	if r.Stages == nil {
		r.Stages = []StageReport{}
	}
	r.Summary = total
}

// Stage returns the report of stage s, if it ran.
func (r *RunReport) Stage(s Stage) (StageReport, bool) {
	for _, st := range r.Stages {
		if st.Stage == s {
			return st, true
		}
	}
	return StageReport{}, false
}

func summarize(items []ItemResult) ReportSummary {
	var s ReportSummary
	for _, it := range items {
		switch it.Status {
		case StatusProcessed:
			s.Processed++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// MarshalJSON keeps the output shape in one place.
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
