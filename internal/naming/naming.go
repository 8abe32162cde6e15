// Package naming holds the file-naming contract of the pipeline: every derived artefact is a
// sibling of the raw video, keyed by the raw path without its extension plus a fixed,
// case-sensitive suffix.
package naming

import (
	"path/filepath"
	"strings"
)

const (
	SuffixBinary     = "_bw.gif"
	SuffixSkeleton   = "_skel.gif"
	SuffixRawLengths = "_raw_lengths.txt"
	SuffixData       = "_data.txt"

	// Root- and condition-scoped artefacts.
	SuffixROI     = "_ROI.txt"
	SuffixResults = "_results.xlsx"
	SuffixReport  = "_report.json"

	// ConfigFile is the optional per-root configuration file.
	ConfigFile = "wormruler.json"
)

// Kind identifies which artefact of a sample a file is.
type Kind int

const (
	KindRaw Kind = iota
	KindBinary
	KindSkeleton
	KindRawLengths
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindBinary:
		return "binary"
	case KindSkeleton:
		return "skeleton"
	case KindRawLengths:
		return "raw_lengths"
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

func suffixOf(k Kind) string {
	switch k {
	case KindBinary:
		return SuffixBinary
	case KindSkeleton:
		return SuffixSkeleton
	case KindRawLengths:
		return SuffixRawLengths
	case KindData:
		return SuffixData
	default:
		return ""
	}
}

// IsRawVideo reports whether name has a recognized raw-video extension (case-insensitive).
func IsRawVideo(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".avi", ".mov":
		return true
	default:
		return false
	}
}

// Classify maps a file name to the artefact kind it represents.
func Classify(name string) (Kind, bool) {
	for _, k := range []Kind{KindBinary, KindSkeleton, KindRawLengths, KindData} {
		s := suffixOf(k)
		if strings.HasSuffix(name, s) && len(name) > len(s) {
			return k, true
		}
	}
	if IsRawVideo(name) {
		return KindRaw, true
	}
	return 0, false
}

// BaseOf strips the kind-specific suffix (or the video extension for KindRaw) from path.
func BaseOf(path string, k Kind) string {
	if k == KindRaw {
		return strings.TrimSuffix(path, filepath.Ext(path))
	}
	return strings.TrimSuffix(path, suffixOf(k))
}

// Derived returns the path of artefact k for a sample whose base path is base.
// KindRaw has no derivable path (the extension is unknown) and returns "".
func Derived(base string, k Kind) string {
	if k == KindRaw {
		return ""
	}
	return base + suffixOf(k)
}

// ROIPath is <root>/<basename(root)>_ROI.txt.
func ROIPath(root string) string {
	root = filepath.Clean(root)
	return filepath.Join(root, filepath.Base(root)+SuffixROI)
}

// ReportPath is <root>/<basename(root)>_report.json.
func ReportPath(root string) string {
	root = filepath.Clean(root)
	return filepath.Join(root, filepath.Base(root)+SuffixReport)
}

// ResultsPath is <condDir>/<condition>_results.xlsx.
func ResultsPath(condDir, condition string) string {
	return filepath.Join(condDir, condition+SuffixResults)
}
