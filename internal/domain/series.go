package domain

// Length is one per-frame value of a length series. Valid=false is the missing marker.
type Length struct {
	V     float64
	Valid bool
}

// Missing is the "unmeasurable" marker.
var Missing = Length{}

func Present(v float64) Length { return Length{V: v, Valid: true} }

// Series is an ordered per-frame sequence; index i is frame i of the sample.
type Series []Length

// PresentValues returns the present values of s in frame order.
func (s Series) PresentValues() []float64 {
	out := make([]float64, 0, len(s))
	for _, l := range s {
		if l.Valid {
			out = append(out, l.V)
		}
	}
	return out
}

// CountMissing returns how many frames carry the missing marker.
func (s Series) CountMissing() int {
	n := 0
	for _, l := range s {
		if !l.Valid {
			n++
		}
	}
	return n
}
