// Package imgx holds the raster types shared by the pipeline stages: a float luminance plane
// and a binary mask, plus conversions to and from image.Image.
package imgx

import (
	"errors"
	"image"
	"image/color"
)

// Luminance weights (ITU-R BT.709), applied to channels scaled to [0,1].
const (
	wR = 0.2125
	wG = 0.7154
	wB = 0.0721
)

// Plane is a single-channel float raster, row-major, origin (0,0).
type Plane struct {
	W, H int
	Pix  []float64
}

func NewPlane(w, h int) *Plane {
	return &Plane{W: w, H: h, Pix: make([]float64, w*h)}
}

func (p *Plane) At(x, y int) float64 { return p.Pix[y*p.W+x] }

// Luminance converts img to a [0,1] luminance plane.
func Luminance(img image.Image) (*Plane, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("image has no pixels")
	}
	p := NewPlane(b.Dx(), b.Dy())

	switch m := img.(type) {
	case *image.Gray:
		for y := 0; y < p.H; y++ {
			row := m.Pix[(y+b.Min.Y-m.Rect.Min.Y)*m.Stride+(b.Min.X-m.Rect.Min.X):]
			for x := 0; x < p.W; x++ {
				p.Pix[y*p.W+x] = float64(row[x]) / 255
			}
		}
	case *image.RGBA:
		for y := 0; y < p.H; y++ {
			row := m.Pix[(y+b.Min.Y-m.Rect.Min.Y)*m.Stride+(b.Min.X-m.Rect.Min.X)*4:]
			for x := 0; x < p.W; x++ {
				px := row[x*4 : x*4+3]
				p.Pix[y*p.W+x] = lum8(px[0], px[1], px[2])
			}
		}
	case *image.Paletted:
		lut := make([]float64, len(m.Palette))
		for i, c := range m.Palette {
			r, g, bb, _ := c.RGBA()
			lut[i] = lum8(uint8(r>>8), uint8(g>>8), uint8(bb>>8))
		}
		for y := 0; y < p.H; y++ {
			row := m.Pix[(y+b.Min.Y-m.Rect.Min.Y)*m.Stride+(b.Min.X-m.Rect.Min.X):]
			for x := 0; x < p.W; x++ {
				p.Pix[y*p.W+x] = lut[row[x]]
			}
		}
	default:
		for y := 0; y < p.H; y++ {
			for x := 0; x < p.W; x++ {
				r, g, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				p.Pix[y*p.W+x] = lum8(uint8(r>>8), uint8(g>>8), uint8(bb>>8))
			}
		}
	}
	return p, nil
}

func lum8(r, g, b uint8) float64 {
	return wR*float64(r)/255 + wG*float64(g)/255 + wB*float64(b)/255
}

// Crop returns the part of p inside r, clamped to p's bounds. ok is false when the
// intersection is empty.
func (p *Plane) Crop(r image.Rectangle) (out *Plane, ok bool) {
	r = r.Intersect(image.Rect(0, 0, p.W, p.H))
	if r.Empty() {
		return nil, false
	}
	out = NewPlane(r.Dx(), r.Dy())
	for y := 0; y < out.H; y++ {
		copy(out.Pix[y*out.W:(y+1)*out.W], p.Pix[(r.Min.Y+y)*p.W+r.Min.X:])
	}
	return out, true
}

// Mask is a binary raster; true is foreground.
type Mask struct {
	W, H int
	Pix  []bool
}

func NewMask(w, h int) *Mask {
	return &Mask{W: w, H: h, Pix: make([]bool, w*h)}
}

func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return false
	}
	return m.Pix[y*m.W+x]
}

func (m *Mask) Set(x, y int, v bool) { m.Pix[y*m.W+x] = v }

func (m *Mask) Clone() *Mask {
	c := NewMask(m.W, m.H)
	copy(c.Pix, m.Pix)
	return c
}

// Count returns the number of foreground pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return n
}

// Threshold marks pixels with value > level as foreground.
func (p *Plane) Threshold(level float64) *Mask {
	m := NewMask(p.W, p.H)
	for i, v := range p.Pix {
		m.Pix[i] = v > level
	}
	return m
}

// BinaryPalette is the two-colour palette used for mask frames: index 0 black, 1 white.
var BinaryPalette = color.Palette{color.Gray{Y: 0}, color.Gray{Y: 255}}

// Paletted renders m as a two-colour frame (foreground white).
func (m *Mask) Paletted() *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, m.W, m.H), BinaryPalette)
	for i, v := range m.Pix {
		if v {
			img.Pix[i] = 1
		}
	}
	return img
}

// Gray renders m as an 8-bit image with values 0 and 255 only.
func (m *Mask) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.W, m.H))
	for i, v := range m.Pix {
		if v {
			img.Pix[i] = 255
		}
	}
	return img
}
