package roi

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/wormruler/internal/domain"
)

func firstFrame(calls *int) FirstFrame {
	return func(context.Context) (image.Image, domain.Sample, error) {
		*calls++
		return image.NewGray(image.Rect(0, 0, 10, 10)), domain.Sample{Name: "w1"}, nil
	}
}

func TestStore_PathAndRoundTrip(t *testing.T) {
	root := filepath.Join(t.TempDir(), "2024-05-01")
	require.NoError(t, os.MkdirAll(root, 0o755))

	s := New(root)
	require.Equal(t, filepath.Join(root, "2024-05-01_ROI.txt"), s.Path())

	_, ok, err := s.Read()
	require.NoError(t, err)
	require.False(t, ok)

	want := domain.ROI{X: 12, Y: 8, W: 300, H: 200}
	require.NoError(t, s.Write(want))
	b, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.Equal(t, "12\n8\n300\n200\n", string(b))

	got, ok, err := s.Read()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want, got)

	require.ErrorIs(t, s.Write(domain.ROI{X: 1, Y: 1, W: 1, H: 1}), os.ErrExist)
}

func TestStore_EnsurePicksOnceAndReuses(t *testing.T) {
	s := New(t.TempDir())
	calls := 0
	picks := 0
	pick := PickerFunc(func(_ context.Context, frame image.Image, sample domain.Sample) (domain.ROI, error) {
		picks++
		require.Equal(t, "w1", sample.Name)
		require.Equal(t, 10, frame.Bounds().Dx())
		return domain.ROI{X: 1, Y: 2, W: 3, H: 4}, nil
	})

	r, created, err := s.Ensure(context.Background(), pick, firstFrame(&calls))
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, domain.ROI{X: 1, Y: 2, W: 3, H: 4}, r)

	r, created, err = s.Ensure(context.Background(), pick, firstFrame(&calls))
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, domain.ROI{X: 1, Y: 2, W: 3, H: 4}, r)
	require.Equal(t, 1, picks)
	require.Equal(t, 1, calls)
}

func TestStore_EnsureFailures(t *testing.T) {
	s := New(t.TempDir())
	calls := 0

	_, _, err := s.Ensure(context.Background(), nil, firstFrame(&calls))
	require.ErrorIs(t, err, ErrNoPicker)
	require.Equal(t, 0, calls)

	// A cancelled selection comes back as an empty rectangle and is not persisted.
	_, _, err = s.Ensure(context.Background(), Fixed{}, firstFrame(&calls))
	require.Error(t, err)
	_, ok, _ := s.Read()
	require.False(t, ok)

	boom := errors.New("no frames")
	_, _, err = s.Ensure(context.Background(), Fixed{W: 1, H: 1}, func(context.Context) (image.Image, domain.Sample, error) {
		return nil, domain.Sample{}, boom
	})
	require.ErrorIs(t, err, boom)
}

func TestStore_Reset(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Reset())
	require.NoError(t, s.Write(domain.ROI{W: 5, H: 5}))
	require.NoError(t, s.Reset())
	_, ok, err := s.Read()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestParse(t *testing.T) {
	r, err := Parse([]byte("1\n2\n3\n4"))
	require.NoError(t, err)
	require.Equal(t, domain.ROI{X: 1, Y: 2, W: 3, H: 4}, r)

	_, err = Parse([]byte("1\n2\n3\n"))
	require.Error(t, err)
	_, err = Parse([]byte("1\n2\n3.5\n4\n"))
	require.Error(t, err)
	_, err = Parse([]byte("0\n0\n0\n0\n"))
	require.Error(t, err)

	r, err = ParseFlag("5, 6 ,70,80")
	require.NoError(t, err)
	require.Equal(t, domain.ROI{X: 5, Y: 6, W: 70, H: 80}, r)
	_, err = ParseFlag("5,6,7")
	require.Error(t, err)
}

func TestStore_ReadCorrupt(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, os.WriteFile(s.Path(), []byte("x\n"), 0o644))
	_, ok, err := s.Read()
	require.Error(t, err)
	require.True(t, ok)
}
