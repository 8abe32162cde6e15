package imgx

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLuminance_Weights(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 1))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 0, color.RGBA{G: 255, A: 255})
	img.Set(2, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	p, err := Luminance(img)
	require.NoError(t, err)
	require.InDelta(t, 0.2125, p.At(0, 0), 1e-9)
	require.InDelta(t, 0.7154, p.At(1, 0), 1e-9)
	require.InDelta(t, 1.0, p.At(2, 0), 1e-9)
}

func TestLuminance_PalettedAndSubImage(t *testing.T) {
	m := NewMask(4, 4)
	m.Set(2, 3, true)
	pal := m.Paletted()

	p, err := Luminance(pal.SubImage(image.Rect(1, 1, 4, 4)))
	require.NoError(t, err)
	require.Equal(t, 3, p.W)
	require.Equal(t, 3, p.H)
	require.InDelta(t, 1.0, p.At(1, 2), 1e-9)
	require.Equal(t, 0.0, p.At(0, 0))
}

func TestLuminance_Empty(t *testing.T) {
	_, err := Luminance(image.NewGray(image.Rect(0, 0, 0, 0)))
	require.Error(t, err)
}

func TestPlane_CropClamps(t *testing.T) {
	p := NewPlane(5, 4)
	for i := range p.Pix {
		p.Pix[i] = float64(i)
	}

	c, ok := p.Crop(image.Rect(3, 2, 10, 10))
	require.True(t, ok)
	require.Equal(t, 2, c.W)
	require.Equal(t, 2, c.H)
	require.Equal(t, []float64{13, 14, 18, 19}, c.Pix)

	_, ok = p.Crop(image.Rect(6, 0, 9, 3))
	require.False(t, ok)
}

func TestMask_Renderings(t *testing.T) {
	p := &Plane{W: 3, H: 1, Pix: []float64{0.2, 0.5, 0.6}}
	m := p.Threshold(0.5)
	require.Equal(t, []bool{false, false, true}, m.Pix)
	require.Equal(t, 1, m.Count())
	require.False(t, m.At(-1, 0))

	require.Equal(t, []uint8{0, 0, 255}, m.Gray().Pix)
	require.Equal(t, []uint8{0, 0, 1}, m.Paletted().Pix)
}
