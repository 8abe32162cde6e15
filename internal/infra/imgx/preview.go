package imgx

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"
)

// Preview enlarges img by the smallest integer factor that makes its longer side at least
// minSide pixels, with nearest-neighbour sampling so each source pixel stays a sharp block.
// It returns the enlarged image and the factor (1 when img is already large enough).
func Preview(img image.Image, minSide int) (*image.RGBA, int) {
	b := img.Bounds()
	long := max(b.Dx(), b.Dy())
	k := 1
	if long > 0 && long < minSide {
		k = (minSide + long - 1) / long
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*k, b.Dy()*k))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, k
}

// Outline draws the border of r (in dst coordinates) one pixel wide. Parts outside dst are
// ignored.
func Outline(dst *image.RGBA, r image.Rectangle, c color.Color) {
	r = r.Canon()
	if r.Empty() {
		return
	}
	set := func(x, y int) {
		if (image.Point{X: x, Y: y}).In(dst.Rect) {
			dst.Set(x, y, c)
		}
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		set(x, r.Min.Y)
		set(x, r.Max.Y-1)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		set(r.Min.X, y)
		set(r.Max.X-1, y)
	}
}

// EncodePNG encodes img losslessly.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
