// Package berths loads the static description of known berths into the
// store. These are the berths with authoritative coordinates that anchor
// the layout.
package berths

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/joshtingey/the-trains/internal/store"
)

//go:embed berths.json.gz
var berthsGz []byte

// Bootstrap upserts every known berth with FIXED=true and its static
// metadata, but only when the BERTHS collection does not exist yet. The
// upserts are idempotent, so a partially-applied bootstrap reconverges on
// the next fresh start.
func Bootstrap(ctx context.Context, st store.Store, logger *zap.Logger) error {
	for _, name := range st.Collections(ctx) {
		if name == "BERTHS" {
			logger.Debug("known berths already loaded")
			return nil
		}
	}

	known, err := load()
	if err != nil {
		return err
	}

	logger.Info("loading known berths into store", zap.Int("count", len(known)))
	for name, fields := range known {
		st.Upsert(ctx, "BERTHS", "NAME", name, store.Update{Set: fields})
	}
	return nil
}

func load() (map[string]map[string]any, error) {
	gz, err := gzip.NewReader(bytes.NewReader(berthsGz))
	if err != nil {
		return nil, fmt.Errorf("opening bundled berth data: %w", err)
	}
	defer gz.Close()

	var known map[string]map[string]any
	if err := json.NewDecoder(gz).Decode(&known); err != nil {
		return nil, fmt.Errorf("decoding bundled berth data: %w", err)
	}
	return known, nil
}
