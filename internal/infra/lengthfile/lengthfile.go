// Package lengthfile reads and writes length series as text: one value per line, frame
// order, with the literal None as the missing marker.
package lengthfile

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/John-Robertt/wormruler/internal/domain"
	"github.com/John-Robertt/wormruler/internal/infra/fsx"
)

// MissingMarker is written for frames without a value.
const MissingMarker = "None"

// FormatValue renders the shortest representation that round-trips, always with a decimal
// point ("10.0", "0.95").
func FormatValue(l domain.Length) string {
	if !l.Valid || math.IsNaN(l.V) || math.IsInf(l.V, 0) {
		return MissingMarker
	}
	s := strconv.FormatFloat(l.V, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// ParseValue accepts any float syntax; None, nan and an empty line are missing.
func ParseValue(s string) (domain.Length, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == MissingMarker || strings.EqualFold(s, "nan") {
		return domain.Missing, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return domain.Missing, err
	}
	if math.IsNaN(v) {
		return domain.Missing, nil
	}
	return domain.Present(v), nil
}

// Encode writes s to w, one line per frame.
func Encode(w io.Writer, s domain.Series) error {
	bw := bufio.NewWriter(w)
	for _, l := range s {
		if _, err := bw.WriteString(FormatValue(l)); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Decode reads a series from r.
func Decode(r io.Reader) (domain.Series, error) {
	sc := bufio.NewScanner(r)
	var out domain.Series
	line := 0
	for sc.Scan() {
		line++
		l, err := ParseValue(sc.Text())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, l)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Write stores s at path atomically; a crash never leaves a partial series behind.
func Write(path string, s domain.Series) error {
	return fsx.WriteAtomic(path, func(w io.Writer) error { return Encode(w, s) })
}

// Read loads the series at path.
func Read(path string) (domain.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// CountLines returns the number of values at path without parsing them.
func CountLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	n := 0
	for sc.Scan() {
		n++
	}
	return n, sc.Err()
}
