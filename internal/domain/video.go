package domain

// Condition is one experimental group: a folder directly under the root directory.
type Condition struct {
	Name string
	Dir  string // clean + absolute
}

// Sample describes one recording found during a scan.
//
// Invariants:
//   - Base is the clean absolute path of the raw video without its extension; every derived
//     artefact of the sample lives at Base + suffix (see package naming)
//   - Path is the artefact the scan actually found (raw video, _bw.gif, ...)
type Sample struct {
	Condition string
	Path      string
	RelPath   string // relative to the root directory
	Base      string
	Name      string // file name of Base, used as the report column name
}
