package skeleton

import (
	"math"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/John-Robertt/wormruler/internal/infra/imgx"
)

// pixelGraph is the skeleton as a weighted undirected graph. Node ids are y*W+x.
type pixelGraph struct {
	w, h int
	g    *simple.WeightedUndirectedGraph
}

// buildGraph links 8-connected skeleton pixels: weight 1 for orthogonal steps, sqrt 2 for
// diagonal ones. A diagonal edge is omitted when the two pixels already share an orthogonal
// neighbour, which keeps staircase runs free of triangles.
func buildGraph(m *imgx.Mask) *pixelGraph {
	pg := &pixelGraph{w: m.W, h: m.H, g: simple.NewWeightedUndirectedGraph(0, math.Inf(1))}
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			if !m.At(x, y) {
				continue
			}
			id := pg.id(x, y)
			if pg.g.Node(id) == nil {
				pg.g.AddNode(simple.Node(id))
			}
			// Forward neighbours only; each edge is seen once.
			if m.At(x+1, y) {
				pg.link(id, pg.id(x+1, y), 1)
			}
			if m.At(x, y+1) {
				pg.link(id, pg.id(x, y+1), 1)
			}
			if m.At(x+1, y+1) && !m.At(x+1, y) && !m.At(x, y+1) {
				pg.link(id, pg.id(x+1, y+1), math.Sqrt2)
			}
			if m.At(x-1, y+1) && !m.At(x-1, y) && !m.At(x, y+1) {
				pg.link(id, pg.id(x-1, y+1), math.Sqrt2)
			}
		}
	}
	return pg
}

func (pg *pixelGraph) id(x, y int) int64 { return int64(y*pg.w + x) }

func (pg *pixelGraph) xy(id int64) (int, int) { return int(id) % pg.w, int(id) / pg.w }

func (pg *pixelGraph) link(a, b int64, w float64) {
	pg.g.SetWeightedEdge(pg.g.NewWeightedEdge(simple.Node(a), simple.Node(b), w))
}

func (pg *pixelGraph) degree(id int64) int { return pg.g.From(id).Len() }

func (pg *pixelGraph) components() [][]graph.Node {
	return topo.ConnectedComponents(pg.g)
}

// longestPath returns the longest shortest path within the component holding nodes, with its
// length. Sources are the component's end points; a component without end points (a closed
// loop) falls back to a double sweep from an arbitrary node.
func (pg *pixelGraph) longestPath(nodes []graph.Node) ([]graph.Node, float64) {
	if len(nodes) == 1 {
		return nodes, 0
	}

	var sources []graph.Node
	for _, n := range nodes {
		if pg.degree(n.ID()) == 1 {
			sources = append(sources, n)
		}
	}
	if len(sources) == 0 {
		far, _ := pg.farthest(nodes[0], nodes)
		sources = []graph.Node{far}
	}

	var (
		best    []graph.Node
		bestLen = -1.0
	)
	for _, s := range sources {
		tree := path.DijkstraFrom(s, pg.g)
		for _, n := range nodes {
			d := tree.WeightTo(n.ID())
			if !math.IsInf(d, 0) && d > bestLen {
				bestLen = d
				best, _ = tree.To(n.ID())
			}
		}
	}
	return best, bestLen
}

func (pg *pixelGraph) farthest(from graph.Node, nodes []graph.Node) (graph.Node, float64) {
	tree := path.DijkstraFrom(from, pg.g)
	far, dist := from, 0.0
	for _, n := range nodes {
		if d := tree.WeightTo(n.ID()); !math.IsInf(d, 0) && d > dist {
			far, dist = n, d
		}
	}
	return far, dist
}
