// Package frames defines the frame-sequence boundary of the pipeline. Video containers are
// external collaborators; stages only see ordered image.Image frames.
package frames

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
)

// Reader yields frames in order. Next returns io.EOF after the last frame.
type Reader interface {
	Next() (image.Image, error)
	Close() error
}

// Writer appends frames in order. Close commits the output; Abort discards it, so an
// interrupted sample never leaves a file that looks complete.
type Writer interface {
	Write(img image.Image) error
	Close() error
	Abort() error
}

// Source opens a video file for reading.
type Source interface {
	Open(ctx context.Context, path string) (Reader, error)
}

// Sink creates an output video at path with the given framerate (frames per second).
type Sink interface {
	Create(path string, fps int) (Writer, error)
}

// ErrNoFrames is returned when a video decodes to zero frames.
var ErrNoFrames = errors.New("video has no frames")

// DecodeError is a failure of a Source to produce frame Frame.
type DecodeError struct {
	Frame int
	Err   error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode frame %d: %v", e.Frame, e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecode reports whether err came from reading frames rather than handling them.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// First returns the first frame of the video at path.
func First(ctx context.Context, src Source, path string) (image.Image, error) {
	r, err := src.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	img, err := r.Next()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", path, ErrNoFrames)
	}
	if err != nil {
		return nil, &DecodeError{Frame: 0, Err: err}
	}
	return img, nil
}

// Each calls fn for every frame of r with its index, stopping at the first error.
func Each(r Reader, fn func(i int, img image.Image) error) (int, error) {
	n := 0
	for {
		img, err := r.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, &DecodeError{Frame: n, Err: err}
		}
		if err := fn(n, img); err != nil {
			return n, err
		}
		n++
	}
}
