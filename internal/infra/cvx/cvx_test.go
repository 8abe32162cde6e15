package cvx

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/wormruler/internal/infra/imgx"
)

func TestFromMask_PaddingRoundTrip(t *testing.T) {
	m := imgx.NewMask(4, 3)
	m.Set(0, 0, true)
	m.Set(3, 2, true)
	m.Set(1, 1, true)

	mat, err := FromMask(m, 2)
	require.NoError(t, err)
	defer mat.Close()
	require.Equal(t, 8, mat.Cols())
	require.Equal(t, 7, mat.Rows())
	require.Equal(t, uint8(0), mat.GetUCharAt(0, 0))
	require.Equal(t, uint8(255), mat.GetUCharAt(2, 2))

	back, err := ToMask(mat, 2)
	require.NoError(t, err)
	require.Equal(t, m, back)

	_, err = ToMask(mat, 4)
	require.Error(t, err)
}

func TestFromPlane_CopiesValues(t *testing.T) {
	p := imgx.NewPlane(3, 2)
	for i := range p.Pix {
		p.Pix[i] = float64(i) / 10
	}
	mat, err := FromPlane(p)
	require.NoError(t, err)
	defer mat.Close()
	require.Equal(t, 0.4, mat.GetDoubleAt(1, 1))

	_, err = ToMask(mat, 0)
	require.Error(t, err)
}

func TestRemoveSmall_InPlace(t *testing.T) {
	m := imgx.NewMask(10, 10)
	for x := 0; x < 10; x++ {
		m.Set(x, 0, true)
	}
	m.Set(5, 5, true)
	m.Set(5, 6, true)

	mat, err := FromMask(m, 0)
	require.NoError(t, err)
	defer mat.Close()

	require.NoError(t, RemoveSmall(&mat, 3))
	out, err := ToMask(mat, 0)
	require.NoError(t, err)
	require.Equal(t, 10, out.Count())
	require.False(t, out.At(5, 5))

	require.NoError(t, RemoveSmall(&mat, 1))
	out, err = ToMask(mat, 0)
	require.NoError(t, err)
	require.Equal(t, 10, out.Count())
}

func TestInvertAndClose(t *testing.T) {
	m := imgx.NewMask(5, 5)
	for i := range m.Pix {
		m.Pix[i] = true
	}
	m.Set(2, 2, false)

	mat, err := FromMask(m, 0)
	require.NoError(t, err)
	defer mat.Close()

	closed := Close(mat)
	defer closed.Close()
	out, err := ToMask(closed, 0)
	require.NoError(t, err)
	require.Equal(t, 25, out.Count())

	Invert(&mat)
	out, err = ToMask(mat, 0)
	require.NoError(t, err)
	require.Equal(t, 1, out.Count())
	require.True(t, out.At(2, 2))
}
