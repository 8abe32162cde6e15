package aggregate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/wormruler/internal/domain"
)

func TestAggregate_MeanSEMAndN(t *testing.T) {
	rep := Aggregate("wt", []Column{
		{Name: "w2", Series: domain.Series{domain.Present(1.1), domain.Present(0.9), domain.Missing}},
		{Name: "w1", Series: domain.Series{domain.Present(0.9), domain.Missing}},
		{Name: "w3", Series: domain.Series{domain.Present(1.0)}},
	})

	require.Equal(t, "wt", rep.Condition)
	require.Equal(t, []string{"w1", "w2", "w3"}, rep.Columns)
	require.Len(t, rep.Rows, 3)

	r0 := rep.Rows[0]
	require.Equal(t, 3, r0.N)
	require.InDelta(t, 1.0, r0.Mean.V, 1e-12)
	// sd of {0.9, 1.1, 1.0} with n-1 is 0.1
	require.InDelta(t, 0.1/math.Sqrt(3), r0.SEM.V, 1e-12)

	r1 := rep.Rows[1]
	require.Equal(t, 1, r1.N)
	require.Equal(t, domain.Present(0.9), r1.Mean)
	require.False(t, r1.SEM.Valid)
	require.Equal(t, []domain.Length{domain.Missing, domain.Present(0.9), domain.Missing}, r1.Values)

	r2 := rep.Rows[2]
	require.Equal(t, 0, r2.N)
	require.False(t, r2.Mean.Valid)
	require.False(t, r2.SEM.Valid)
}

func TestAggregate_MeanIsSumOverK(t *testing.T) {
	vals := []float64{0.85, 0.95, 1.05, 1.15}
	cols := make([]Column, 0, len(vals)+1)
	for i, v := range vals {
		cols = append(cols, Column{Name: string(rune('a' + i)), Series: domain.Series{domain.Present(v)}})
	}
	cols = append(cols, Column{Name: "z", Series: domain.Series{domain.Missing}})

	rep := Aggregate("c", cols)
	require.Equal(t, 4, rep.Rows[0].N)
	require.InDelta(t, (0.85+0.95+1.05+1.15)/4, rep.Rows[0].Mean.V, 1e-12)
}

func TestAggregate_Empty(t *testing.T) {
	rep := Aggregate("c", nil)
	require.Empty(t, rep.Columns)
	require.Empty(t, rep.Rows)
}
