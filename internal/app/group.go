package app

import (
	"fmt"
	"sort"

	"github.com/John-Robertt/wormruler/internal/domain"
)

// SampleGroup holds the samples of one condition as indices into the scanned slice.
type SampleGroup struct {
	Condition domain.Condition
	SampleIdx []int
}

// GroupByCondition groups samples under their conditions.
//
// - groups follow the order of conds; a condition without samples still gets a group
// - indices inside a group are ordered by RelPath
// - samples naming an unknown condition are dropped
func GroupByCondition(conds []domain.Condition, samples []domain.Sample) []SampleGroup {
	index := make(map[string]int, len(conds))
	groups := make([]SampleGroup, 0, len(conds))
	for _, c := range conds {
		if _, ok := index[c.Name]; ok {
			continue
		}
		index[c.Name] = len(groups)
		groups = append(groups, SampleGroup{Condition: c})
	}

	for i := range samples {
		g, ok := index[samples[i].Condition]
		if !ok {
			continue
		}
		groups[g].SampleIdx = append(groups[g].SampleIdx, i)
	}

	for i := range groups {
		idx := groups[i].SampleIdx
		sort.SliceStable(idx, func(a, b int) bool {
			return samples[idx[a]].RelPath < samples[idx[b]].RelPath
		})
	}
	return groups
}

// ColumnNames returns one report column name per sample of g, in the order of g.SampleIdx.
// Names are the sample names; recordings sharing a name in different subfolders get
// deterministic "__2", "__3" suffixes.
func ColumnNames(samples []domain.Sample, g SampleGroup) []string {
	used := make(map[string]struct{}, len(g.SampleIdx))
	out := make([]string, 0, len(g.SampleIdx))
	for _, i := range g.SampleIdx {
		name := allocName(samples[i].Name, used)
		used[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func allocName(name string, used map[string]struct{}) string {
	if _, ok := used[name]; !ok {
		return name
	}
	for n := 2; ; n++ {
		cand := fmt.Sprintf("%s__%d", name, n)
		if _, ok := used[cand]; !ok {
			return cand
		}
	}
}
