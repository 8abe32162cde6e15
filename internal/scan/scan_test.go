package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/wormruler/internal/naming"
)

func TestConditions_OnlyDirectSubfoldersSorted(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "wt", "w1.avi"))
	touch(t, filepath.Join(root, "mut", "w1.avi"))
	touch(t, filepath.Join(root, ".hidden", "w1.avi"))
	touch(t, filepath.Join(root, "root_ROI.txt"))

	got, err := Conditions(root)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "mut", got[0].Name)
	require.Equal(t, "wt", got[1].Name)
	require.Equal(t, filepath.Join(root, "wt"), got[1].Dir)
}

func TestConditions_MissingRoot(t *testing.T) {
	_, err := Conditions(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestSamples_RecursiveByKind(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "wt", "day2", "w2.MOV"))
	touch(t, filepath.Join(root, "wt", "w1.avi"))
	touch(t, filepath.Join(root, "wt", "w1_bw.gif"))
	touch(t, filepath.Join(root, "wt", "w1_raw_lengths.txt"))
	touch(t, filepath.Join(root, "wt", "ignore.txt"))

	conds, err := Conditions(root)
	require.NoError(t, err)

	raw, err := Samples(root, conds[0], naming.KindRaw)
	require.NoError(t, err)
	require.Len(t, raw, 2)
	require.Equal(t, filepath.Join("wt", "day2", "w2.MOV"), raw[0].RelPath)
	require.Equal(t, filepath.Join(root, "wt", "day2", "w2"), raw[0].Base)
	require.Equal(t, "w2", raw[0].Name)
	require.Equal(t, "wt", raw[0].Condition)

	bw, err := Samples(root, conds[0], naming.KindBinary)
	require.NoError(t, err)
	require.Len(t, bw, 1)
	require.Equal(t, filepath.Join(root, "wt", "w1"), bw[0].Base)
}

func TestAll_CollectsAcrossConditions(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a", "x_data.txt"))
	touch(t, filepath.Join(root, "b", "y_data.txt"))
	touch(t, filepath.Join(root, "b", "y_raw_lengths.txt"))

	conds, samples, err := All(root, naming.KindData)
	require.NoError(t, err)
	require.Len(t, conds, 2)
	require.Len(t, samples, 2)
	require.Equal(t, "x", samples[0].Name)
	require.Equal(t, "y", samples[1].Name)
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}
