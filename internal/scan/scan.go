package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/wormruler/internal/domain"
	"github.com/John-Robertt/wormruler/internal/naming"
)

// Conditions lists the condition folders directly under root.
//
// Rules:
//   - only directories; hidden directories (".xxx") are ignored
//   - output is sorted by name
func Conditions(root string) ([]domain.Condition, error) {
	root = filepath.Clean(root)
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read root directory %q: %w", root, err)
	}

	out := make([]domain.Condition, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, domain.Condition{
			Name: e.Name(),
			Dir:  filepath.Join(root, e.Name()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Samples walks one condition folder recursively and returns every artefact of the given kind.
//
// Scanning only stats directory entries; file contents are never read here.
func Samples(root string, cond domain.Condition, kind naming.Kind) ([]domain.Sample, error) {
	root = filepath.Clean(root)
	out := make([]domain.Sample, 0, 32)

	err := filepath.WalkDir(cond.Dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != cond.Dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		k, ok := naming.Classify(d.Name())
		if !ok || k != kind {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		base := naming.BaseOf(path, kind)
		out = append(out, domain.Sample{
			Condition: cond.Name,
			Path:      path,
			RelPath:   rel,
			Base:      base,
			Name:      filepath.Base(base),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan condition %q: %w", cond.Name, err)
	}

	// Stable order regardless of the file system's directory order.
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out, nil
}

// All scans every condition under root for artefacts of the given kind.
func All(root string, kind naming.Kind) ([]domain.Condition, []domain.Sample, error) {
	conds, err := Conditions(root)
	if err != nil {
		return nil, nil, err
	}
	var samples []domain.Sample
	for _, c := range conds {
		s, err := Samples(root, c, kind)
		if err != nil {
			return nil, nil, err
		}
		samples = append(samples, s...)
	}
	return conds, samples, nil
}
