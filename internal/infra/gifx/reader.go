package gifx

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"os"

	"github.com/John-Robertt/wormruler/internal/frames"
)

// Reader decodes a GIF one frame at a time and returns fully composited frames.
type Reader struct {
	f      *os.File
	br     *bufio.Reader
	header []byte
	buf    bytes.Buffer

	canvas    *image.RGBA
	saved     *image.RGBA
	prevRect  image.Rectangle
	prevDisp  byte
	index     int
	exhausted bool
}

// Open starts reading the GIF at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReaderSize(f, 64<<10)
	hdr, err := readHeader(br)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Reader{f: f, br: br, header: hdr}, nil
}

// Next returns the next frame, or io.EOF after the last one.
func (r *Reader) Next() (image.Image, error) {
	if r.exhausted {
		return nil, io.EOF
	}

	r.buf.Reset()
	r.buf.Write(r.header)
	ok, err := readFrame(r.br, &r.buf)
	if err != nil {
		return nil, fmt.Errorf("%s: frame %d: %w", r.f.Name(), r.index, err)
	}
	if !ok {
		r.exhausted = true
		return nil, io.EOF
	}
	r.buf.WriteByte(blockTrailer)

	g, err := gif.DecodeAll(bytes.NewReader(r.buf.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("%s: frame %d: %w", r.f.Name(), r.index, err)
	}
	r.index++
	return r.composite(g.Image[0], g.Disposal[0], g.Config.Width, g.Config.Height), nil
}

func (r *Reader) composite(frame *image.Paletted, disposal byte, w, h int) image.Image {
	full := image.Rect(0, 0, w, h)
	if r.canvas == nil {
		r.canvas = image.NewRGBA(full)
	}

	switch r.prevDisp {
	case gif.DisposalBackground:
		draw.Draw(r.canvas, r.prevRect, image.Transparent, image.Point{}, draw.Src)
	case gif.DisposalPrevious:
		if r.saved != nil {
			copy(r.canvas.Pix, r.saved.Pix)
		}
	}
	if disposal == gif.DisposalPrevious {
		if r.saved == nil {
			r.saved = image.NewRGBA(full)
		}
		copy(r.saved.Pix, r.canvas.Pix)
	}
	r.prevRect, r.prevDisp = frame.Bounds(), disposal

	draw.Draw(r.canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)

	// A full opaque frame needs no compositing; hand it out as is.
	if frame.Bounds() == full && opaque(frame.Palette) {
		return frame
	}
	out := image.NewRGBA(full)
	copy(out.Pix, r.canvas.Pix)
	return out
}

func opaque(p color.Palette) bool {
	for _, c := range p {
		if _, _, _, a := c.RGBA(); a != 0xffff {
			return false
		}
	}
	return true
}

func (r *Reader) Close() error { return r.f.Close() }

// Codec is the GIF implementation of frames.Source and frames.Sink.
type Codec struct{}

var (
	_ frames.Source = Codec{}
	_ frames.Sink   = Codec{}
)

func (Codec) Open(_ context.Context, path string) (frames.Reader, error) {
	return Open(path)
}

func (Codec) Create(path string, fps int) (frames.Writer, error) {
	return Create(path, fps)
}
