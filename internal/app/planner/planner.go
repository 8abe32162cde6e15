// Package planner turns scanned samples into per-stage work lists. It only stats and counts;
// it never writes.
package planner

import (
	"fmt"
	"os"

	"github.com/John-Robertt/wormruler/internal/domain"
	"github.com/John-Robertt/wormruler/internal/infra/lengthfile"
	"github.com/John-Robertt/wormruler/internal/naming"
)

// FrameCounter returns the number of frames in a binary video.
type FrameCounter func(path string) (int, error)

// Task is one unit of a stage. Skip is set when the outputs are already complete.
type Task struct {
	Sample domain.Sample
	Skip   bool
	Reason string
}

// Outputs lists the artefacts a skeletonization of base produces.
type Outputs struct {
	RawLengths string
	Skeleton   string
}

func SkeletonOutputs(base string) Outputs {
	return Outputs{
		RawLengths: naming.Derived(base, naming.KindRawLengths),
		Skeleton:   naming.Derived(base, naming.KindSkeleton),
	}
}

// RawLengthsComplete reports whether the raw-lengths file of s holds exactly one line per
// frame of its binary video. Any read problem counts as incomplete; reason says why.
func RawLengthsComplete(s domain.Sample, count FrameCounter) (ok bool, reason string) {
	out := SkeletonOutputs(s.Base)

	lines, err := lengthfile.CountLines(out.RawLengths)
	if err != nil {
		if os.IsNotExist(err) {
			return false, "no raw lengths yet"
		}
		return false, fmt.Sprintf("raw lengths unreadable: %v", err)
	}
	frames, err := count(naming.Derived(s.Base, naming.KindBinary))
	if err != nil {
		return false, fmt.Sprintf("binary video unreadable: %v", err)
	}
	if lines != frames {
		return false, fmt.Sprintf("raw lengths has %d lines, binary video has %d frames", lines, frames)
	}
	return true, "raw lengths complete"
}

// PlanSkeletonize marks complete samples as skipped unless override is set.
func PlanSkeletonize(samples []domain.Sample, override bool, count FrameCounter) []Task {
	tasks := make([]Task, 0, len(samples))
	for _, s := range samples {
		if override {
			tasks = append(tasks, Task{Sample: s, Reason: "override"})
			continue
		}
		ok, reason := RawLengthsComplete(s, count)
		tasks = append(tasks, Task{Sample: s, Skip: ok, Reason: reason})
	}
	return tasks
}

// PlanAll is the work list of the stages that always reprocess everything found
// (correction, normalization).
func PlanAll(samples []domain.Sample) []Task {
	tasks := make([]Task, 0, len(samples))
	for _, s := range samples {
		tasks = append(tasks, Task{Sample: s})
	}
	return tasks
}

// Pending counts the tasks that will run.
func Pending(tasks []Task) int {
	n := 0
	for _, t := range tasks {
		if !t.Skip {
			n++
		}
	}
	return n
}
