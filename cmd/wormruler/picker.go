package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/wormruler/internal/domain"
	"github.com/John-Robertt/wormruler/internal/infra/fsx"
	"github.com/John-Robertt/wormruler/internal/infra/imgx"
	"github.com/John-Robertt/wormruler/internal/roi"
)

const previewMinSide = 800

var errCancelled = errors.New("roi selection cancelled")

// terminalPicker stands in for drawing a rectangle: it saves the frame as a PNG next to the
// ROI file and reads x,y,w,h from the terminal.
type terminalPicker struct {
	in  io.Reader
	out io.Writer
	dir string
}

var _ roi.Picker = (*terminalPicker)(nil)

func (p *terminalPicker) previewPath() string {
	return filepath.Join(p.dir, filepath.Base(p.dir)+"_ROI_preview.png")
}

func (p *terminalPicker) Pick(ctx context.Context, frame image.Image, sample domain.Sample) (domain.ROI, error) {
	preview, k := imgx.Preview(frame, previewMinSide)
	if err := p.savePreview(preview); err != nil {
		return domain.ROI{}, err
	}

	b := frame.Bounds()
	fmt.Fprintf(p.out, "roi: first frame of %s saved to %s", sample.RelPath, p.previewPath())
	if k > 1 {
		fmt.Fprintf(p.out, " (enlarged %dx, divide preview coordinates by %d)", k, k)
	}
	fmt.Fprintf(p.out, "\nroi: frame is %dx%d; enter x,y,w,h (empty line cancels): ", b.Dx(), b.Dy())

	line, err := readLine(ctx, p.in)
	if err != nil {
		return domain.ROI{}, err
	}
	if strings.TrimSpace(line) == "" {
		return domain.ROI{}, errCancelled
	}
	r, err := roi.ParseFlag(strings.TrimSpace(line))
	if err != nil {
		return domain.ROI{}, err
	}
	if !r.Rect().In(b.Sub(b.Min)) {
		return domain.ROI{}, fmt.Errorf("roi %s is not inside the %dx%d frame", r, b.Dx(), b.Dy())
	}

	sel := image.Rect(r.X*k, r.Y*k, (r.X+r.W)*k, (r.Y+r.H)*k)
	imgx.Outline(preview, sel, color.RGBA{R: 255, A: 255})
	if err := p.savePreview(preview); err != nil {
		return domain.ROI{}, err
	}
	return r, nil
}

func (p *terminalPicker) savePreview(img image.Image) error {
	b, err := imgx.EncodePNG(img)
	if err != nil {
		return fmt.Errorf("encode roi preview: %w", err)
	}
	return fsx.WriteFileAtomic(p.previewPath(), b)
}

// readLine reads one line from in, giving up when ctx ends.
func readLine(ctx context.Context, in io.Reader) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(in).ReadString('\n')
		if errors.Is(err, io.EOF) && line != "" {
			err = nil
		}
		ch <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if errors.Is(r.err, io.EOF) {
			return "", errCancelled
		}
		return r.line, r.err
	}
}
