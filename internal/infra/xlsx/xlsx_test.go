package xlsx

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/John-Robertt/wormruler/internal/aggregate"
	"github.com/John-Robertt/wormruler/internal/domain"
)

func TestWrite_LayoutAndMissingCells(t *testing.T) {
	rep := aggregate.Aggregate("wt", []aggregate.Column{
		{Name: "w1", Series: domain.Series{domain.Present(1), domain.Present(0.9)}},
		{Name: "w2", Series: domain.Series{domain.Present(1)}},
	})
	path := filepath.Join(t.TempDir(), "wt_results.xlsx")
	require.NoError(t, Write(path, rep))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{"wt"}, f.GetSheetList())
	rows, err := f.GetRows("wt")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"Frame", "w1", "w2", "Mean", "SEM", "N"}, rows[0])

	require.Equal(t, "0", rows[1][0])
	require.Equal(t, "1", rows[1][1])
	require.Equal(t, "2", rows[1][5])

	// Frame 1: w2 missing, SEM undefined with a single value.
	require.Equal(t, "1", rows[2][0])
	require.Equal(t, "", rows[2][2])
	require.Equal(t, "", rows[2][4])
	require.Equal(t, "1", rows[2][5])
}

func TestSheetName(t *testing.T) {
	require.Equal(t, "a_b_c", SheetName("a/b:c"))
	require.Equal(t, "Sheet1", SheetName(""))
	require.Len(t, []rune(SheetName(strings.Repeat("x", 40))), 31)
}
