// Package generator periodically rebuilds the berth network from the
// collected movements and solves a pinned force-directed layout, writing
// the selected berths and their display coordinates back to the store.
package generator

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/joshtingey/the-trains/internal/config"
	"github.com/joshtingey/the-trains/internal/graph"
	"github.com/joshtingey/the-trains/internal/metrics"
	"github.com/joshtingey/the-trains/internal/store"
)

// staleAfter bounds how long a berth keeps showing its last train after
// reports for it stop arriving.
const staleAfter = 2 * time.Hour

// secondCut is the tighter distance threshold applied after the second
// layout pass, once the first pass has pulled free nodes near their true
// position.
const secondCut = 0.15

// Generator owns one rebuild pipeline over the shared store.
type Generator struct {
	st     store.Store
	cfg    config.GeneratorConfig
	logger *zap.Logger

	now func() time.Time
}

func New(st store.Store, cfg config.GeneratorConfig, logger *zap.Logger) *Generator {
	return &Generator{st: st, cfg: cfg, logger: logger, now: time.Now}
}

// Loop runs the pipeline, sleeps for the configured rate, and repeats
// until the context is cancelled. A failed run is logged and does not
// stop the loop.
func (g *Generator) Loop(ctx context.Context) error {
	rate := time.Duration(g.cfg.RateSeconds) * time.Second
	for {
		if err := g.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			g.logger.Error("generator run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(rate):
		}
	}
}

// Run executes one full rebuild: reset stale berths, load the collected
// state, build and clean the network, alternate layout and long-edge
// pruning, then write the surviving berths back.
func (g *Generator) Run(ctx context.Context) error {
	start := g.now()

	if err := g.cleanStale(ctx); err != nil {
		return err
	}

	berths, trains, err := g.load(ctx)
	if err != nil {
		return err
	}
	if len(berths) == 0 {
		g.logger.Info("no berths collected yet, skipping run")
		return nil
	}

	gr := g.stageGraph("build", func() *graph.Graph {
		return graph.Build(berths, trains, graph.BuildParams{
			DeltaB: time.Duration(g.cfg.DeltaBSeconds) * time.Second,
			DeltaT: time.Duration(g.cfg.DeltaTHours) * time.Hour,
		})
	})

	g.stage("clean", func() {
		gr.PruneIsolated()
		gr.KeepLargestComponent()
		gr.CollapseDuplicates()
		gr.CutLongEdges(g.cfg.CutDistance, graph.PruneFixedOnly)
		gr.PruneFloating()
		gr.PruneIsolated()
		gr.KeepLargestComponent()
	})
	metrics.GraphNodes.WithLabelValues("clean").Set(float64(gr.Order()))

	params := graph.LayoutParams{
		K:          g.cfg.K,
		Iterations: g.cfg.Iterations,
		Scale:      g.cfg.Scale,
	}

	if err := g.stageLayout("layout_1", gr, params); err != nil {
		return err
	}

	g.stage("cut_1", func() {
		gr.CutLongEdges(g.cfg.CutDistance, graph.PruneAny)
		gr.PruneIsolated()
		gr.KeepLargestComponent()
	})

	if err := g.stageLayout("layout_2", gr, params); err != nil {
		return err
	}

	g.stage("cut_2", func() {
		gr.CutLongEdges(secondCut, graph.PruneAny)
		gr.PruneIsolated()
		gr.KeepLargestComponent()
	})

	if err := g.stageLayout("layout_3", gr, params); err != nil {
		return err
	}

	g.writeBack(ctx, gr)

	g.logger.Info("generator run complete",
		zap.Int("selected", gr.Order()),
		zap.Duration("took", g.now().Sub(start)))
	return nil
}

func (g *Generator) stage(name string, fn func()) {
	start := g.now()
	fn()
	metrics.GeneratorStageDuration.WithLabelValues(name).Observe(g.now().Sub(start).Seconds())
}

func (g *Generator) stageGraph(name string, fn func() *graph.Graph) *graph.Graph {
	start := g.now()
	gr := fn()
	metrics.GeneratorStageDuration.WithLabelValues(name).Observe(g.now().Sub(start).Seconds())
	metrics.GraphNodes.WithLabelValues(name).Set(float64(gr.Order()))
	g.logger.Debug("graph built", zap.Int("nodes", gr.Order()), zap.Int("edges", gr.EdgeCount()))
	return gr
}

func (g *Generator) stageLayout(name string, gr *graph.Graph, p graph.LayoutParams) error {
	start := g.now()
	if err := gr.Layout(p); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	metrics.GeneratorStageDuration.WithLabelValues(name).Observe(g.now().Sub(start).Seconds())
	metrics.GraphNodes.WithLabelValues(name).Set(float64(gr.Order()))
	return nil
}

// cleanStale resets LATEST_TRAIN on berths whose last report is old
// enough that the train has certainly moved on. LATEST_TIME is left in
// place so the staleness of the berth itself stays visible.
func (g *Generator) cleanStale(ctx context.Context) error {
	docs, err := g.st.Scan(ctx, "BERTHS")
	if err != nil {
		return fmt.Errorf("scanning berths: %w", err)
	}

	cutoff := g.now().Add(-staleAfter)
	reset := 0
	for _, doc := range docs {
		name, _ := doc["NAME"].(string)
		train, _ := doc["LATEST_TRAIN"].(string)
		at, ok := asTime(doc["LATEST_TIME"])
		if name == "" || train == "" || train == "0000" || !ok {
			continue
		}
		if at.Before(cutoff) {
			g.st.Upsert(ctx, "BERTHS", "NAME", name, store.Update{
				Set: map[string]any{"LATEST_TRAIN": "0000"},
			})
			reset++
		}
	}
	if reset > 0 {
		g.logger.Debug("reset stale berths", zap.Int("count", reset))
	}
	return nil
}

// load reads the collected berths and train histories into builder
// inputs.
func (g *Generator) load(ctx context.Context) (map[string]graph.Berth, []graph.Train, error) {
	berthDocs, err := g.st.Scan(ctx, "BERTHS")
	if err != nil {
		return nil, nil, fmt.Errorf("scanning berths: %w", err)
	}

	berths := make(map[string]graph.Berth, len(berthDocs))
	for _, doc := range berthDocs {
		name, _ := doc["NAME"].(string)
		if name == "" {
			continue
		}
		b := graph.Berth{Name: name}
		b.Fixed, _ = doc["FIXED"].(bool)
		b.Lat, _ = asFloat(doc["LATITUDE"])
		b.Lon, _ = asFloat(doc["LONGITUDE"])
		berths[name] = b
	}

	trainDocs, err := g.st.Scan(ctx, "TRAINS")
	if err != nil {
		return nil, nil, fmt.Errorf("scanning trains: %w", err)
	}

	trains := make([]graph.Train, 0, len(trainDocs))
	for _, doc := range trainDocs {
		name, _ := doc["NAME"].(string)
		names := asStrings(doc["BERTHS"])
		times := asTimes(doc["TIMES"])
		if name == "" || len(names) == 0 || len(names) != len(times) {
			continue
		}
		trains = append(trains, graph.Train{Name: name, Berths: names, Times: times})
	}

	return berths, trains, nil
}

// writeBack clears every berth's selection then marks the survivors with
// their solved coordinate and remaining adjacency.
func (g *Generator) writeBack(ctx context.Context, gr *graph.Graph) {
	g.st.SetAll(ctx, "BERTHS", map[string]any{"SELECTED": false})

	for _, n := range gr.Nodes() {
		edges := make([][]string, 0, len(gr.Neighbors(n)))
		for _, nb := range gr.Neighbors(n) {
			edges = append(edges, []string{n.Name, nb.Name})
		}
		g.st.Upsert(ctx, "BERTHS", "NAME", n.Name, store.Update{
			Set: map[string]any{
				"LATITUDE":  n.Pos.X,
				"LONGITUDE": n.Pos.Y,
				"SELECTED":  true,
				"EDGES":     edges,
			},
		})
	}
	metrics.SelectedBerths.Set(float64(gr.Order()))
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	}
	return 0, false
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case primitive.DateTime:
		return t.Time().UTC(), true
	}
	return time.Time{}, false
}

func asStrings(v any) []string {
	var raw []any
	switch t := v.(type) {
	case []any:
		raw = t
	case primitive.A:
		raw = t
	case []string:
		return t
	default:
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		s, ok := e.(string)
		if !ok {
			return nil
		}
		out = append(out, s)
	}
	return out
}

func asTimes(v any) []time.Time {
	var raw []any
	switch t := v.(type) {
	case []any:
		raw = t
	case primitive.A:
		raw = t
	case []time.Time:
		return t
	default:
		return nil
	}
	out := make([]time.Time, 0, len(raw))
	for _, e := range raw {
		at, ok := asTime(e)
		if !ok {
			return nil
		}
		out = append(out, at)
	}
	return out
}
