package imgx

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreview_IntegerUpscale(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 2))
	src.SetGray(1, 0, color.Gray{Y: 255})

	dst, k := Preview(src, 10)
	require.Equal(t, 3, k)
	require.Equal(t, image.Rect(0, 0, 12, 6), dst.Bounds())
	require.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, dst.RGBAAt(4, 2))
	require.Equal(t, color.RGBA{A: 255}, dst.RGBAAt(6, 2))

	same, k := Preview(src, 3)
	require.Equal(t, 1, k)
	require.Equal(t, src.Bounds(), same.Bounds())
}

func TestOutlineAndEncodePNG(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 5, 5))
	red := color.RGBA{R: 255, A: 255}
	Outline(dst, image.Rect(1, 1, 4, 9), red)
	require.Equal(t, red, dst.RGBAAt(1, 1))
	require.Equal(t, red, dst.RGBAAt(3, 4))
	require.Equal(t, color.RGBA{}, dst.RGBAAt(2, 2))

	b, err := EncodePNG(dst)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	require.Equal(t, dst.Bounds(), img.Bounds())
}
