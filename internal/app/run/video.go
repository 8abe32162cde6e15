package run

import (
	"context"
	"fmt"
	"image"

	"github.com/John-Robertt/wormruler/internal/domain"
	"github.com/John-Robertt/wormruler/internal/frames"
)

// frameFunc maps input frame i to the frame written to the output video.
type frameFunc func(i int, img image.Image) (image.Image, error)

// transcode streams every frame of in through fn into a new video at out, in order.
//
// The output only appears when every frame was written; on any error it is aborted so an
// interrupted sample never leaves a video that looks complete. A video without frames is an
// error.
func (r *runner) transcode(ctx context.Context, st domain.Stage, unit string, src frames.Source, in, out string, fn frameFunc) (int, error) {
	rd, err := src.Open(ctx, in)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", in, err)
	}
	defer rd.Close()

	w, err := r.deps.Sink.Create(out, r.eff.Framerate)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", out, err)
	}

	n, err := frames.Each(rd, func(i int, img image.Image) error {
		o, err := fn(i, img)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if err := w.Write(o); err != nil {
			return fmt.Errorf("write %s frame %d: %w", out, i, err)
		}
		r.deps.Observer.OnProgress(st, unit, i+1)
		return nil
	})
	if err == nil && n == 0 {
		err = fmt.Errorf("%s: %w", in, frames.ErrNoFrames)
	}
	if err != nil {
		_ = w.Abort()
		return n, err
	}
	if err := w.Close(); err != nil {
		return n, fmt.Errorf("close %s: %w", out, err)
	}
	return n, nil
}
