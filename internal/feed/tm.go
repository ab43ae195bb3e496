package feed

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/joshtingey/the-trains/internal/metrics"
	"github.com/joshtingey/the-trains/internal/store"
)

// TMDecoder handles the train movements feed. The subscription exists so
// the broker keeps a durable buffer of movement messages; none of the
// sub-types currently mutate store state.
type TMDecoder struct {
	logger *zap.Logger
}

// knownTMTypes are the TRUST movement sub-types: activation, cancellation,
// movement, unidentified, reinstatement, change of origin, change of
// identity, change of location.
var knownTMTypes = map[string]bool{
	"0001": true,
	"0002": true,
	"0003": true,
	"0004": true,
	"0005": true,
	"0006": true,
	"0007": true,
	"0008": true,
}

type tmEnvelope struct {
	Header struct {
		MsgType string `json:"msg_type"`
	} `json:"header"`
	Body json.RawMessage `json:"body"`
}

// NewTM returns the TM feed with its durable subscription. The store is
// accepted for parity with the other feeds; movement handling that writes
// through it can slot into Decode without touching the manager.
func NewTM(st store.Store, logger *zap.Logger) *Feed {
	return &Feed{
		Name: "tm",
		Subscriptions: []Subscription{
			{Topic: "/topic/TRAIN_MVT_ED_TOC", Durable: "thetrains-tm"},
		},
		Decoder: &TMDecoder{logger: logger},
	}
}

func (d *TMDecoder) Decode(ctx context.Context, payload []byte) {
	metrics.MessagesTotal.WithLabelValues("tm").Inc()

	var envelopes []tmEnvelope
	if err := json.Unmarshal(payload, &envelopes); err != nil {
		metrics.ParseErrorsTotal.WithLabelValues("tm", "json").Inc()
		d.logger.Warn("can't decode TM message", zap.Error(err))
		return
	}

	for _, env := range envelopes {
		if !knownTMTypes[env.Header.MsgType] {
			metrics.ParseErrorsTotal.WithLabelValues("tm", "unknown_type").Inc()
			d.logger.Warn("unknown TM message type", zap.String("msg_type", env.Header.MsgType))
		}
	}
}
