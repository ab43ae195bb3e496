package graph

import (
	"strings"
	"time"
)

// Berth is the store-side view of a berth the builder needs.
type Berth struct {
	Name     string
	Fixed    bool
	Lat, Lon float64
}

// Train is one reporting number's accumulated berth history. Berths and
// Times are index-aligned.
type Train struct {
	Name   string
	Berths []string
	Times  []time.Time
}

// BuildParams tune the movement filters. DeltaB is the minimum gap
// between successive berth reports (shorter gaps are the same physical
// step reported by adjacent signalling areas); DeltaT is the gap that
// splits a reporting number's history into distinct journeys.
type BuildParams struct {
	DeltaB time.Duration
	DeltaT time.Duration
}

// Build assembles the undirected berth network from every train's berth
// sequence. Nodes take their fixed flag and anchor coordinate from the
// BERTH collection; each consecutive pair within a journey contributes a
// weight-1 edge.
func Build(berths map[string]Berth, trains []Train, p BuildParams) *Graph {
	g := New()

	for _, tr := range trains {
		for _, journey := range journeys(tr, p) {
			if len(journey) < 2 {
				continue
			}
			for i := 1; i < len(journey); i++ {
				from := addBerth(g, berths, journey[i-1])
				to := addBerth(g, berths, journey[i])
				g.AddEdge(from, to)
			}
		}
	}

	return g
}

func addBerth(g *Graph, berths map[string]Berth, name string) *Node {
	if b, ok := berths[name]; ok && b.Fixed {
		return g.AddBerth(name, true, b.Lat, b.Lon)
	}
	return g.AddBerth(name, false, 0, 0)
}

type row struct {
	name  string
	delta time.Duration
	first bool // head of the sequence; has no delta context
}

// journeys turns one train's history into filtered berth sequences.
func journeys(tr Train, p BuildParams) [][]string {
	if len(tr.Berths) != len(tr.Times) {
		return nil
	}

	// Filter berths by code shape, then compute each row's gap to the
	// previous kept row. The head row has no gap context and is exempt
	// from the delta filters.
	var rows []row
	var prev time.Time
	for i, name := range tr.Berths {
		if !validBerthName(name) {
			continue
		}
		r := row{name: name, first: len(rows) == 0}
		if !r.first {
			r.delta = tr.Times[i].Sub(prev)
		}
		prev = tr.Times[i]
		rows = append(rows, r)
	}

	// Drop steps reported faster than delta_b: the same physical move
	// seen from two signalling areas.
	kept := rows[:0]
	for _, r := range rows {
		if !r.first && r.delta < p.DeltaB {
			continue
		}
		kept = append(kept, r)
	}
	rows = kept

	// Collapse consecutive duplicates, keeping the later report.
	kept = rows[:0]
	for i, r := range rows {
		if i+1 < len(rows) && rows[i+1].name == r.name {
			continue
		}
		kept = append(kept, r)
	}
	rows = kept

	// Split into journeys wherever the gap reaches delta_t.
	var out [][]string
	var cur []string
	for _, r := range rows {
		if !r.first && r.delta >= p.DeltaT && len(cur) > 0 {
			out = append(out, cur)
			cur = nil
		}
		cur = append(cur, r.name)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// pseudoBerthSuffixes mark berths that describe signalling equipment
// rather than track occupancy (clocks, transition records and the like).
var pseudoBerthSuffixes = []string{"STIN", "COUT", "DATE", "TIME", "CLCK", "LS"}

// validBerthName keeps only well-formed 6-character berth names whose
// berth code looks like a real occupancy slot.
func validBerthName(name string) bool {
	if len(name) != 6 {
		return false
	}
	code := name[2:]
	for _, suffix := range pseudoBerthSuffixes {
		if strings.HasSuffix(code, suffix) {
			return false
		}
	}
	switch code[1:3] {
	case "LS", "TR":
		return false
	}
	if code[1:] == "SMT" {
		return false
	}
	return true
}
