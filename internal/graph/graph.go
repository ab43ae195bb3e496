// Package graph reconstructs the berth network from observed train
// movements and solves a force-directed layout for it. The structure is a
// gonum undirected graph; berth nodes carry the geographic state the
// generator reads back into the store.
package graph

import (
	"sort"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/spatial/r2"
)

// Node is one berth in the network. Pos is (lat, lon) in degrees; HasPos
// reports whether the node has been placed, either by a fixed anchor
// coordinate or by a previous layout pass. Fixed nodes are pinned during
// layout.
type Node struct {
	id   int64
	Name string

	Fixed  bool
	HasPos bool
	Pos    r2.Vec // X = latitude, Y = longitude

	// selfLoop records a from==to berth step. Simple graphs reject self
	// edges, so the loop is kept as node state; it contributes to the
	// degree and nothing else.
	selfLoop bool
}

// ID implements gonum's graph.Node.
func (n *Node) ID() int64 { return n.id }

// Graph wraps the gonum structure with name-keyed access and
// deterministic iteration order.
type Graph struct {
	g      *simple.WeightedUndirectedGraph
	byName map[string]*Node
	nextID int64
}

func New() *Graph {
	return &Graph{
		g:      simple.NewWeightedUndirectedGraph(0, 0),
		byName: make(map[string]*Node),
	}
}

// Node returns the named node, or nil.
func (g *Graph) Node(name string) *Node {
	return g.byName[name]
}

// AddBerth adds or returns the named node. Fixed berths are placed at
// their authoritative coordinate; a node once fixed stays fixed.
func (g *Graph) AddBerth(name string, fixed bool, lat, lon float64) *Node {
	n, ok := g.byName[name]
	if !ok {
		n = &Node{id: g.nextID, Name: name}
		g.nextID++
		g.byName[name] = n
		g.g.AddNode(n)
	}
	if fixed && !n.Fixed {
		n.Fixed = true
		n.HasPos = true
		n.Pos = r2.Vec{X: lat, Y: lon}
	}
	return n
}

// AddEdge records an undirected adjacency. Repeat observations of the
// same pair accumulate the edge weight; a self edge is kept as a loop
// flag on the node.
func (g *Graph) AddEdge(a, b *Node) {
	if a.id == b.id {
		a.selfLoop = true
		return
	}
	w := 1.0
	if g.g.HasEdgeBetween(a.id, b.id) {
		w += g.weight(a, b)
	}
	g.g.SetWeightedEdge(g.g.NewWeightedEdge(a, b, w))
}

// HasEdge reports whether the two named nodes are adjacent.
func (g *Graph) HasEdge(a, b string) bool {
	na, nb := g.byName[a], g.byName[b]
	if na == nil || nb == nil {
		return false
	}
	if na.id == nb.id {
		return na.selfLoop
	}
	return g.g.HasEdgeBetween(na.id, nb.id)
}

// Order returns the node count.
func (g *Graph) Order() int { return len(g.byName) }

// EdgeCount returns the structural edge count (self loops excluded).
func (g *Graph) EdgeCount() int {
	edges := g.g.Edges()
	count := 0
	for edges.Next() {
		count++
	}
	return count
}

// Nodes returns all nodes ordered by name, so every pipeline stage and
// the layout iterate deterministically.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.byName))
	for _, n := range g.byName {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes
}

// Neighbors returns the adjacent nodes ordered by name.
func (g *Graph) Neighbors(n *Node) []*Node {
	var adj []*Node
	it := g.g.From(n.id)
	for it.Next() {
		adj = append(adj, it.Node().(*Node))
	}
	sort.Slice(adj, func(i, j int) bool { return adj[i].Name < adj[j].Name })
	return adj
}

// Degree counts incident edges, including a recorded self loop.
func (g *Graph) Degree(n *Node) int {
	d := g.g.From(n.id).Len()
	if n.selfLoop {
		d++
	}
	return d
}

// Edge is an undirected node pair, used when stages snapshot the edge set
// before mutating it.
type Edge struct {
	U, V *Node
}

func (g *Graph) edges() []Edge {
	var out []Edge
	it := g.g.Edges()
	for it.Next() {
		e := it.Edge()
		out = append(out, Edge{U: e.From().(*Node), V: e.To().(*Node)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].U.Name != out[j].U.Name {
			return out[i].U.Name < out[j].U.Name
		}
		return out[i].V.Name < out[j].V.Name
	})
	return out
}

func (g *Graph) removeNode(n *Node) {
	g.g.RemoveNode(n.id)
	delete(g.byName, n.Name)
}

func (g *Graph) removeEdge(a, b *Node) {
	g.g.RemoveEdge(a.id, b.id)
}

// weight returns the accumulated weight of the edge between two nodes.
func (g *Graph) weight(a, b *Node) float64 {
	w, ok := g.g.Weight(a.id, b.id)
	if !ok {
		return 0
	}
	return w
}

var _ gonum.Node = (*Node)(nil)
