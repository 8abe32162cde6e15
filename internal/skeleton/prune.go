package skeleton

import (
	"sort"

	"gonum.org/v1/gonum/graph"
)

// branch is an end-point-to-junction run. nodes excludes the junction.
type branch struct {
	nodes    []int64
	length   float64
	junction int64
}

// prune removes end branches shorter than threshold, repeating until nothing changes or
// maxIter passes ran. At each junction at least two arms survive, the longest short arms
// first, so pruning never eats into the body past a fork.
func (pg *pixelGraph) prune(threshold float64, maxIter int) {
	for iter := 0; iter < maxIter; iter++ {
		byJunction := map[int64][]branch{}
		for _, b := range pg.endBranches() {
			if b.length < threshold {
				byJunction[b.junction] = append(byJunction[b.junction], b)
			}
		}
		if len(byJunction) == 0 {
			return
		}

		junctions := make([]int64, 0, len(byJunction))
		for j := range byJunction {
			junctions = append(junctions, j)
		}
		sort.Slice(junctions, func(a, b int) bool { return junctions[a] < junctions[b] })

		removed := false
		for _, j := range junctions {
			if pg.g.Node(j) == nil {
				continue
			}
			short := byJunction[j]
			allowed := pg.degree(j) - 2
			if allowed <= 0 {
				continue
			}
			// Shortest first; the longer short arms are the ones kept when the cap applies.
			sort.SliceStable(short, func(a, b int) bool { return short[a].length < short[b].length })
			if len(short) > allowed {
				short = short[:allowed]
			}
			for _, b := range short {
				for _, id := range b.nodes {
					if pg.g.Node(id) != nil {
						pg.g.RemoveNode(id)
						removed = true
					}
				}
			}
		}
		if !removed {
			return
		}
	}
}

// endBranches walks from every end point through degree-2 pixels up to the first junction.
// Runs that end in another end point are whole components and are not branches.
func (pg *pixelGraph) endBranches() []branch {
	var out []branch
	nodes := pg.g.Nodes()
	for nodes.Next() {
		start := nodes.Node().ID()
		if pg.degree(start) != 1 {
			continue
		}

		b := branch{nodes: []int64{start}}
		prev, cur := int64(-1), start
		for {
			next, ok := pg.step(prev, cur)
			if !ok {
				break
			}
			b.length += pg.weight(cur, next)
			if pg.degree(next) >= 3 {
				b.junction = next
				out = append(out, b)
				break
			}
			if pg.degree(next) == 1 {
				break
			}
			b.nodes = append(b.nodes, next)
			prev, cur = cur, next
		}
	}
	return out
}

// step returns the neighbour of cur that is not prev.
func (pg *pixelGraph) step(prev, cur int64) (int64, bool) {
	it := pg.g.From(cur)
	for it.Next() {
		if id := it.Node().ID(); id != prev {
			return id, true
		}
	}
	return 0, false
}

func (pg *pixelGraph) weight(a, b int64) float64 {
	w, _ := pg.g.Weight(a, b)
	return w
}

// nodeIDs is a small helper for tests and rasterising paths.
func nodeIDs(ns []graph.Node) []int64 {
	out := make([]int64, len(ns))
	for i, n := range ns {
		out[i] = n.ID()
	}
	return out
}
