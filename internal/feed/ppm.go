package feed

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/joshtingey/the-trains/internal/metrics"
	"github.com/joshtingey/the-trains/internal/store"
)

// PPMDecoder handles the public performance measure feed. Each message
// carries a national aggregate snapshot which is appended to the ppm time
// series. The document layout follows the RTPPM schema on the openraildata
// wiki.
type PPMDecoder struct {
	st     store.Store
	logger *zap.Logger
}

// NewPPM returns the PPM feed with its durable subscription.
func NewPPM(st store.Store, logger *zap.Logger) *Feed {
	return &Feed{
		Name: "ppm",
		Subscriptions: []Subscription{
			{Topic: "/topic/RTPPM_ALL", Durable: "thetrains-ppm"},
		},
		Decoder: &PPMDecoder{st: st, logger: logger},
	}
}

func (d *PPMDecoder) Decode(ctx context.Context, payload []byte) {
	metrics.MessagesTotal.WithLabelValues("ppm").Inc()

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		metrics.ParseErrorsTotal.WithLabelValues("ppm", "json").Inc()
		d.logger.Warn("can't decode PPM message", zap.Error(err))
		return
	}

	msg := mapField(raw, "RTPPMDataMsgV1")
	nat := mapField(mapField(mapField(msg, "RTPPMData"), "NationalPage"), "NationalPPM")
	if nat == nil {
		metrics.ParseErrorsTotal.WithLabelValues("ppm", "shape").Inc()
		d.logger.Warn("PPM message missing national page")
		return
	}

	date := msTime(int64Field(msg, "timestamp"))
	doc := map[string]any{
		"date":        date,
		"total":       intField(nat, "Total"),
		"on_time":     intField(nat, "OnTime"),
		"late":        intField(nat, "Late"),
		"ppm":         floatField(mapField(nat, "PPM"), "text"),
		"rolling_ppm": floatField(mapField(nat, "RollingPPM"), "text"),
	}

	d.logger.Debug("ppm snapshot",
		zap.String("date", date.Format(time.RFC3339)),
		zap.Int("total", doc["total"].(int)),
		zap.Float64("ppm", doc["ppm"].(float64)),
	)

	d.st.Insert(ctx, "ppm", doc)
}
