package graph

import (
	"errors"
	"hash/fnv"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// LayoutParams tune the force-directed solver. K is the optimal pairwise
// distance in scaled units; Scale maps geographic degrees into the unit
// space the forces act in.
type LayoutParams struct {
	K          float64
	Iterations int
	Scale      float64
}

// ErrNoAnchors is returned when the graph holds no placed fixed node, so
// there is nothing to pin the layout to.
var ErrNoAnchors = errors.New("graph: no placed fixed nodes to anchor layout")

// Layout runs a Fruchterman-Reingold simulation over the graph. Fixed
// nodes are pinned at their anchor coordinate; every other node is seeded
// near the anchor centroid and settles under k^2/d repulsion and d^2/k
// attraction along edges. On return every node is placed and HasPos is
// set.
func (g *Graph) Layout(p LayoutParams) error {
	nodes := g.Nodes()
	if len(nodes) == 0 {
		return nil
	}

	// Work in scaled coordinates.
	pos := make(map[int64]r2.Vec, len(nodes))
	var centroid r2.Vec
	anchors := 0
	for _, n := range nodes {
		if n.HasPos {
			pos[n.id] = r2.Vec{X: n.Pos.X * p.Scale, Y: n.Pos.Y * p.Scale}
			if n.Fixed {
				centroid = r2.Add(centroid, pos[n.id])
				anchors++
			}
		}
	}
	if anchors == 0 {
		return ErrNoAnchors
	}
	centroid = r2.Scale(1/float64(anchors), centroid)

	// Unplaced nodes start near the anchor centroid, displaced by a
	// name-derived jitter so runs are reproducible and no two nodes
	// coincide.
	for _, n := range nodes {
		if !n.HasPos {
			pos[n.id] = r2.Add(centroid, jitter(n.Name))
		}
	}

	edges := g.edges()
	t := 0.1 * extent(pos)
	dt := t / float64(p.Iterations+1)
	k := p.K * p.Scale

	disp := make(map[int64]r2.Vec, len(nodes))
	for iter := 0; iter < p.Iterations; iter++ {
		for _, n := range nodes {
			disp[n.id] = r2.Vec{}
		}

		// Repulsion between every node pair.
		for i, a := range nodes {
			for _, b := range nodes[i+1:] {
				d := r2.Sub(pos[a.id], pos[b.id])
				dist := math.Hypot(d.X, d.Y)
				if dist == 0 {
					dist = 1e-9
					d = r2.Vec{X: 1e-9}
				}
				f := r2.Scale(k*k/(dist*dist), d)
				disp[a.id] = r2.Add(disp[a.id], f)
				disp[b.id] = r2.Sub(disp[b.id], f)
			}
		}

		// Attraction along edges, scaled by accumulated weight.
		for _, e := range edges {
			d := r2.Sub(pos[e.U.id], pos[e.V.id])
			dist := math.Hypot(d.X, d.Y)
			if dist == 0 {
				continue
			}
			f := r2.Scale(dist/k*g.weight(e.U, e.V), d)
			disp[e.U.id] = r2.Sub(disp[e.U.id], f)
			disp[e.V.id] = r2.Add(disp[e.V.id], f)
		}

		// Move free nodes, capping each step at the temperature.
		for _, n := range nodes {
			if n.Fixed {
				continue
			}
			d := disp[n.id]
			dist := math.Hypot(d.X, d.Y)
			if dist > t {
				d = r2.Scale(t/dist, d)
			}
			pos[n.id] = r2.Add(pos[n.id], d)
		}

		t -= dt
	}

	for _, n := range nodes {
		n.Pos = r2.Scale(1/p.Scale, pos[n.id])
		n.HasPos = true
	}
	return nil
}

// extent returns the larger span of the placed coordinates, used as the
// starting temperature scale.
func extent(pos map[int64]r2.Vec) float64 {
	first := true
	var minX, maxX, minY, maxY float64
	for _, v := range pos {
		if first {
			minX, maxX, minY, maxY = v.X, v.X, v.Y, v.Y
			first = false
			continue
		}
		minX = math.Min(minX, v.X)
		maxX = math.Max(maxX, v.X)
		minY = math.Min(minY, v.Y)
		maxY = math.Max(maxY, v.Y)
	}
	e := math.Max(maxX-minX, maxY-minY)
	if e == 0 {
		return 1
	}
	return e
}

// jitter maps a berth name onto a small deterministic offset.
func jitter(name string) r2.Vec {
	h := fnv.New64a()
	h.Write([]byte(name))
	sum := h.Sum64()
	x := float64(sum&0xffffffff)/float64(1<<32) - 0.5
	y := float64(sum>>32)/float64(1<<32) - 0.5
	return r2.Vec{X: x, Y: y}
}
