// Package aggregate combines the normalized series of one condition into per-frame
// Mean, SEM and N.
package aggregate

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/John-Robertt/wormruler/internal/domain"
)

// Column is one sample's normalized series.
type Column struct {
	Name   string
	Series domain.Series
}

// Row is one frame index across all samples. Mean is missing when no sample is present,
// SEM when fewer than two are.
type Row struct {
	Values []domain.Length
	Mean   domain.Length
	SEM    domain.Length
	N      int
}

// Report is the condition table: one column per sample, one row per frame.
type Report struct {
	Condition string
	Columns   []string
	Rows      []Row
}

// Aggregate builds the report. Columns are ordered by name; shorter series are padded with
// missing values up to the longest one.
func Aggregate(condition string, cols []Column) Report {
	cols = append([]Column(nil), cols...)
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })

	rep := Report{Condition: condition, Columns: make([]string, len(cols))}
	rows := 0
	for i, c := range cols {
		rep.Columns[i] = c.Name
		rows = max(rows, len(c.Series))
	}

	rep.Rows = make([]Row, rows)
	present := make([]float64, 0, len(cols))
	for r := 0; r < rows; r++ {
		row := Row{Values: make([]domain.Length, len(cols))}
		present = present[:0]
		for i, c := range cols {
			if r < len(c.Series) && c.Series[r].Valid {
				row.Values[i] = c.Series[r]
				present = append(present, c.Series[r].V)
			}
		}
		row.N = len(present)
		row.Mean, row.SEM = summarize(present)
		rep.Rows[r] = row
	}
	return rep
}

// summarize returns the mean and the standard error of the mean (n-1 denominator).
func summarize(xs []float64) (mean, sem domain.Length) {
	switch len(xs) {
	case 0:
		return domain.Missing, domain.Missing
	case 1:
		return domain.Present(xs[0]), domain.Missing
	}
	m, sd := stat.MeanStdDev(xs, nil)
	return domain.Present(m), domain.Present(sd / math.Sqrt(float64(len(xs))))
}
