package gifx

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"math"

	"github.com/John-Robertt/wormruler/internal/frames"
	"github.com/John-Robertt/wormruler/internal/infra/fsx"
	"github.com/John-Robertt/wormruler/internal/infra/imgx"
)

// netscapeLoop is the application extension for "loop forever".
var netscapeLoop = []byte{
	0x21, 0xFF, 0x0B,
	'N', 'E', 'T', 'S', 'C', 'A', 'P', 'E', '2', '.', '0',
	0x03, 0x01, 0x00, 0x00, 0x00,
}

// Writer encodes binary frames into a GIF at a fixed framerate. Frames are mapped to the
// black/white palette; the file appears at its path only on Close.
type Writer struct {
	f     *fsx.AtomicFile
	delay int
	size  image.Rectangle
	n     int
	buf   bytes.Buffer
	err   error
}

// Create opens an atomic GIF writer at path.
func Create(path string, fps int) (*Writer, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("invalid framerate %d", fps)
	}
	f, err := fsx.CreateAtomic(path)
	if err != nil {
		return nil, err
	}
	return &Writer{f: f, delay: DelayFor(fps)}, nil
}

// DelayFor converts a framerate to the GIF frame delay in hundredths of a second.
func DelayFor(fps int) int {
	d := int(math.Round(100 / float64(fps)))
	if d < 1 {
		d = 1
	}
	return d
}

func (w *Writer) Write(img image.Image) error {
	if w.err != nil {
		return w.err
	}
	pm := toBinary(img)
	if w.n == 0 {
		w.size = pm.Bounds()
	} else if pm.Bounds() != w.size {
		w.err = fmt.Errorf("frame %d is %v, want %v", w.n, pm.Bounds(), w.size)
		return w.err
	}

	w.buf.Reset()
	g := &gif.GIF{
		Image:  []*image.Paletted{pm},
		Delay:  []int{w.delay},
		Config: image.Config{ColorModel: imgx.BinaryPalette, Width: w.size.Dx(), Height: w.size.Dy()},
	}
	if err := gif.EncodeAll(&w.buf, g); err != nil {
		w.err = fmt.Errorf("encode frame %d: %w", w.n, err)
		return w.err
	}

	b := w.buf.Bytes()
	hdrLen := 13 + colorTableLen(b[10])
	if w.n == 0 {
		if _, err := w.f.Write(b[:hdrLen]); err != nil {
			w.err = err
			return err
		}
		if _, err := w.f.Write(netscapeLoop); err != nil {
			w.err = err
			return err
		}
	}
	// Drop the per-frame header and trailer; keep the control extension and image block.
	if _, err := w.f.Write(b[hdrLen : len(b)-1]); err != nil {
		w.err = err
		return err
	}
	w.n++
	return nil
}

// Close writes the trailer and commits the file. A writer with no frames is discarded.
func (w *Writer) Close() error {
	if w.err != nil {
		_ = w.f.Abort()
		return w.err
	}
	if w.n == 0 {
		_ = w.f.Abort()
		return errors.Join(frames.ErrNoFrames, fmt.Errorf("nothing written to %s", w.f.Path()))
	}
	if _, err := w.f.Write([]byte{blockTrailer}); err != nil {
		_ = w.f.Abort()
		return err
	}
	return w.f.Commit()
}

func (w *Writer) Abort() error { return w.f.Abort() }

// Frames returns how many frames were written so far.
func (w *Writer) Frames() int { return w.n }

func toBinary(img image.Image) *image.Paletted {
	if pm, ok := img.(*image.Paletted); ok && samePalette(pm) && pm.Rect.Min == (image.Point{}) {
		return pm
	}
	b := img.Bounds()
	pm := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), imgx.BinaryPalette)
	draw.Draw(pm, pm.Rect, img, b.Min, draw.Src)
	return pm
}

func samePalette(pm *image.Paletted) bool {
	if len(pm.Palette) != len(imgx.BinaryPalette) {
		return false
	}
	for i, c := range pm.Palette {
		r1, g1, b1, a1 := c.RGBA()
		r2, g2, b2, a2 := imgx.BinaryPalette[i].RGBA()
		if r1 != r2 || g1 != g2 || b1 != b2 || a1 != a2 {
			return false
		}
	}
	return true
}
