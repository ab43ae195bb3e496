package graph

import "testing"

func TestPruneIsolated(t *testing.T) {
	g := New()
	a := g.AddBerth("AA0001", false, 0, 0)
	b := g.AddBerth("AA0002", false, 0, 0)
	g.AddEdge(a, b)
	g.AddBerth("AA0003", false, 0, 0)
	loop := g.AddBerth("AA0004", false, 0, 0)
	g.AddEdge(loop, loop)

	g.PruneIsolated()

	if g.Node("AA0003") != nil {
		t.Error("isolated node survived")
	}
	if g.Node("AA0001") == nil || g.Node("AA0002") == nil {
		t.Error("connected nodes pruned")
	}
	if g.Node("AA0004") == nil {
		t.Error("self-loop node pruned")
	}
}

func TestKeepLargestComponent(t *testing.T) {
	g := New()
	a := g.AddBerth("AA0001", false, 0, 0)
	b := g.AddBerth("AA0002", false, 0, 0)
	c := g.AddBerth("AA0003", false, 0, 0)
	g.AddEdge(a, b)
	g.AddEdge(b, c)

	d := g.AddBerth("BB0001", false, 0, 0)
	e := g.AddBerth("BB0002", false, 0, 0)
	g.AddEdge(d, e)

	g.KeepLargestComponent()

	if g.Order() != 3 {
		t.Fatalf("order = %d, want 3", g.Order())
	}
	if g.Node("BB0001") != nil || g.Node("BB0002") != nil {
		t.Error("smaller component survived")
	}
}

func TestKeepLargestComponentTieBreak(t *testing.T) {
	g := New()
	// Two components of equal size; the one holding the smallest name wins.
	g.AddEdge(g.AddBerth("AA0001", false, 0, 0), g.AddBerth("ZZ0009", false, 0, 0))
	g.AddEdge(g.AddBerth("BB0001", false, 0, 0), g.AddBerth("BB0002", false, 0, 0))

	g.KeepLargestComponent()

	if g.Node("AA0001") == nil {
		t.Error("component with smallest name lost the tie")
	}
	if g.Node("BB0001") != nil {
		t.Error("losing component survived")
	}
}

func TestCollapseDuplicates(t *testing.T) {
	g := New()
	a := g.AddBerth("AA0001", true, 52.5, -1.9)
	b := g.AddBerth("AA0002", true, 52.5, -1.9) // co-located with a
	x := g.AddBerth("AA0003", false, 0, 0)
	y := g.AddBerth("AA0004", false, 0, 0)
	g.AddEdge(a, x)
	g.AddEdge(b, y)
	g.AddEdge(a, b) // becomes a self loop on merge and must be dropped

	g.CollapseDuplicates()

	if g.Order() != 3 {
		t.Fatalf("order = %d, want 3", g.Order())
	}
	if g.Node("AA0002") != nil {
		t.Error("duplicate node survived")
	}
	if !g.HasEdge("AA0001", "AA0003") || !g.HasEdge("AA0001", "AA0004") {
		t.Error("edges not re-homed onto survivor")
	}
	if g.HasEdge("AA0001", "AA0001") {
		t.Error("merge produced a self loop")
	}
}

func TestCutLongEdges(t *testing.T) {
	g := New()
	a := g.AddBerth("AA0001", true, 0, 0)
	b := g.AddBerth("AA0002", true, 0.3, 0)
	c := g.AddBerth("AA0003", true, 0.3, 0.1)
	g.AddEdge(a, b) // 0.3 apart, over the cut
	g.AddEdge(b, c) // 0.1 apart

	g.CutLongEdges(0.25, PruneAny)

	if g.HasEdge("AA0001", "AA0002") {
		t.Error("long edge survived")
	}
	if !g.HasEdge("AA0002", "AA0003") {
		t.Error("short edge removed")
	}
}

func TestCutLongEdgesFixedOnly(t *testing.T) {
	g := New()
	a := g.AddBerth("AA0001", true, 0, 0)
	b := g.AddBerth("AA0002", true, 0.5, 0)
	free := g.AddBerth("AA0003", false, 0, 0)
	free.HasPos = true
	free.Pos.X, free.Pos.Y = 0.5, 0.5
	g.AddEdge(a, b)
	g.AddEdge(a, free)

	g.CutLongEdges(0.25, PruneFixedOnly)

	if g.HasEdge("AA0001", "AA0002") {
		t.Error("fixed-fixed long edge survived")
	}
	if !g.HasEdge("AA0001", "AA0003") {
		t.Error("fixed-free edge removed in fixed-only mode")
	}
}

func TestCutLongEdgesSkipsUnplaced(t *testing.T) {
	g := New()
	a := g.AddBerth("AA0001", true, 0, 0)
	free := g.AddBerth("AA0002", false, 0, 0)
	g.AddEdge(a, free)

	g.CutLongEdges(0.25, PruneAny)

	if !g.HasEdge("AA0001", "AA0002") {
		t.Error("edge to unplaced node removed")
	}
}

func TestPruneFloating(t *testing.T) {
	g := New()
	a := g.AddBerth("AA0001", true, 0, 0)
	mid := g.AddBerth("AA0002", false, 0, 0)
	c := g.AddBerth("AA0003", true, 0.001, 0)
	dead := g.AddBerth("AA0004", false, 0, 0)
	g.AddEdge(a, mid)
	g.AddEdge(mid, c)
	g.AddEdge(mid, dead)

	g.PruneFloating()

	if g.Node("AA0002") == nil {
		t.Error("node on the anchor path pruned")
	}
	if g.Node("AA0004") != nil {
		t.Error("dead-end node survived")
	}
	if g.Node("AA0001") == nil || g.Node("AA0003") == nil {
		t.Error("fixed node pruned")
	}
}

func TestPruneFloatingParallelPaths(t *testing.T) {
	g := New()
	a := g.AddBerth("AA0001", true, 0, 0)
	u := g.AddBerth("AA0002", false, 0, 0)
	v := g.AddBerth("AA0003", false, 0, 0)
	c := g.AddBerth("AA0004", true, 0.001, 0)
	g.AddEdge(a, u)
	g.AddEdge(u, c)
	g.AddEdge(a, v)
	g.AddEdge(v, c)

	g.PruneFloating()

	// Both intermediates carry shortest paths between the anchors.
	if g.Node("AA0002") == nil || g.Node("AA0003") == nil {
		t.Error("parallel path node pruned")
	}
}
