package graph

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/graph/topo"
)

// PruneMode selects which edges CutLongEdges may remove.
type PruneMode int

const (
	// PruneAny removes any over-length edge whose endpoints are placed.
	PruneAny PruneMode = iota
	// PruneFixedOnly removes over-length edges only between fixed nodes.
	PruneFixedOnly
)

// PruneIsolated removes all zero-degree nodes. A node whose only
// adjacency is a self loop is not isolated.
func (g *Graph) PruneIsolated() {
	for _, n := range g.Nodes() {
		if g.Degree(n) == 0 {
			g.removeNode(n)
		}
	}
}

// KeepLargestComponent drops every node outside the largest connected
// component. Ties break toward the component containing the smallest
// node name, keeping runs reproducible.
func (g *Graph) KeepLargestComponent() {
	components := topo.ConnectedComponents(g.g)
	if len(components) <= 1 {
		return
	}

	best := -1
	bestMin := ""
	for i, comp := range components {
		minName := comp[0].(*Node).Name
		for _, n := range comp[1:] {
			if name := n.(*Node).Name; name < minName {
				minName = name
			}
		}
		if best == -1 || len(comp) > len(components[best]) ||
			(len(comp) == len(components[best]) && minName < bestMin) {
			best = i
			bestMin = minName
		}
	}

	for i, comp := range components {
		if i == best {
			continue
		}
		for _, n := range comp {
			g.removeNode(n.(*Node))
		}
	}
}

// CollapseDuplicates merges fixed nodes that share an identical anchor
// coordinate into a single node. Edges are re-homed onto the surviving
// node and self loops produced by the merge are dropped.
func (g *Graph) CollapseDuplicates() {
	groups := make(map[[2]float64][]*Node)
	for _, n := range g.Nodes() {
		if n.Fixed {
			groups[[2]float64{n.Pos.X, n.Pos.Y}] = append(groups[[2]float64{n.Pos.X, n.Pos.Y}], n)
		}
	}

	keys := make([][2]float64, 0, len(groups))
	for k, nodes := range groups {
		if len(nodes) > 1 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	for _, k := range keys {
		nodes := groups[k]
		// Nodes() is name-ordered, so the first is the survivor.
		base := nodes[0]
		for _, dup := range nodes[1:] {
			for _, nb := range g.Neighbors(dup) {
				if nb.id != base.id {
					g.AddEdge(base, nb)
				}
			}
			if dup.selfLoop {
				base.selfLoop = true
			}
			g.removeNode(dup)
		}
	}
}

// CutLongEdges removes edges spanning a geographic distance of cut or
// more. Under PruneFixedOnly, only edges between two fixed anchors are
// candidates; under PruneAny, any edge whose endpoints are both placed.
func (g *Graph) CutLongEdges(cut float64, mode PruneMode) {
	for _, e := range g.edges() {
		if !e.U.HasPos || !e.V.HasPos {
			continue
		}
		if mode == PruneFixedOnly && !(e.U.Fixed && e.V.Fixed) {
			continue
		}
		if math.Hypot(e.U.Pos.X-e.V.Pos.X, e.U.Pos.Y-e.V.Pos.Y) >= cut {
			g.removeEdge(e.U, e.V)
		}
	}
}

// PruneFloating keeps only the fixed nodes and the nodes that lie on
// shortest paths between fixed nodes; everything else floats free of the
// anchored skeleton and is dropped.
func (g *Graph) PruneFloating() {
	var fixed []*Node
	for _, n := range g.Nodes() {
		if n.Fixed {
			fixed = append(fixed, n)
		}
	}

	score := g.betweennessSubset(fixed, fixed)
	for _, n := range g.Nodes() {
		if n.Fixed || score[n.id] != 0 {
			continue
		}
		g.removeNode(n)
	}
}

// betweennessSubset computes Brandes betweenness centrality restricted to
// shortest paths between the source and target node sets (unweighted
// edges).
func (g *Graph) betweennessSubset(sources, targets []*Node) map[int64]float64 {
	score := make(map[int64]float64)
	targetSet := make(map[int64]bool, len(targets))
	for _, t := range targets {
		targetSet[t.id] = true
	}

	for _, s := range sources {
		// BFS from s, recording path counts and predecessors.
		var stack []*Node
		preds := make(map[int64][]*Node)
		sigma := map[int64]float64{s.id: 1}
		dist := map[int64]int{s.id: 0}

		queue := []*Node{s}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, w := range g.Neighbors(v) {
				if _, seen := dist[w.id]; !seen {
					dist[w.id] = dist[v.id] + 1
					queue = append(queue, w)
				}
				if dist[w.id] == dist[v.id]+1 {
					sigma[w.id] += sigma[v.id]
					preds[w.id] = append(preds[w.id], v)
				}
			}
		}

		// Accumulate dependencies back toward s, counting only paths
		// that terminate at a target.
		delta := make(map[int64]float64)
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			coeff := delta[w.id] / sigma[w.id]
			if targetSet[w.id] && w.id != s.id {
				coeff = (delta[w.id] + 1) / sigma[w.id]
			}
			for _, v := range preds[w.id] {
				delta[v.id] += sigma[v.id] * coeff
			}
			if w.id != s.id {
				score[w.id] += delta[w.id]
			}
		}
	}

	return score
}
