package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/joshtingey/the-trains/internal/metrics"
	"github.com/joshtingey/the-trains/internal/store"
)

// TDDecoder handles the train describer feed. A payload is a JSON array of
// single-key envelopes; the key names the message sub-type. Berth steps
// (CA_MSG) and interposes (CC_MSG) mutate the BERTHS and TRAINS
// collections; the remaining signalling sub-types carry no berth state.
//
// A berth name is the 2-character describer area code concatenated with the
// 4-character berth code. The sentinel train "0000" means the berth is
// empty.
type TDDecoder struct {
	st     store.Store
	logger *zap.Logger
}

// ignoredTDTypes are known sub-types that carry no berth occupancy state.
var ignoredTDTypes = map[string]bool{
	"CB_MSG": true, // berth cancel
	"CT_MSG": true, // heartbeat
	"SF_MSG": true, // signalling update
	"SG_MSG": true, // signalling refresh
	"SH_MSG": true, // signalling refresh finished
}

// NewTD returns the TD feed. By default it follows the LNW central
// signalling area; extra topics each get their own durable name so the
// broker buffers all of them across disconnects.
func NewTD(st store.Store, logger *zap.Logger, extraTopics []string) *Feed {
	subs := []Subscription{
		{Topic: "/topic/TD_LNW_C_SIG_AREA", Durable: "thetrains-td"},
	}
	for i, topic := range extraTopics {
		if topic == "" || topic == subs[0].Topic {
			continue
		}
		subs = append(subs, Subscription{
			Topic:   topic,
			Durable: fmt.Sprintf("thetrains-td-%d", i+1),
		})
	}
	return &Feed{
		Name:          "td",
		Subscriptions: subs,
		Decoder:       &TDDecoder{st: st, logger: logger},
	}
}

func (d *TDDecoder) Decode(ctx context.Context, payload []byte) {
	metrics.MessagesTotal.WithLabelValues("td").Inc()

	var envelopes []map[string]json.RawMessage
	if err := json.Unmarshal(payload, &envelopes); err != nil {
		metrics.ParseErrorsTotal.WithLabelValues("td", "json").Inc()
		d.logger.Warn("can't decode TD message", zap.Error(err))
		return
	}

	for _, env := range envelopes {
		for msgType, body := range env {
			switch {
			case msgType == "CA_MSG":
				d.berthStep(ctx, body)
			case msgType == "CC_MSG":
				d.berthInterpose(ctx, body)
			case ignoredTDTypes[msgType]:
				// no berth state
			default:
				metrics.ParseErrorsTotal.WithLabelValues("td", "unknown_type").Inc()
				d.logger.Warn("unknown TD message type", zap.String("msg_type", msgType))
			}
		}
	}
}

// berthStep handles CA_MSG: a train left one berth and entered another.
func (d *TDDecoder) berthStep(ctx context.Context, body json.RawMessage) {
	m, ok := d.fields(body, "descr", "area_id", "from", "to", "time")
	if !ok {
		return
	}

	descr := stringField(m, "descr")
	area := stringField(m, "area_id")
	fromName := area + stringField(m, "from")
	toName := area + stringField(m, "to")
	at := msTime(int64Field(m, "time"))

	d.logger.Debug("berth step",
		zap.String("descr", descr),
		zap.String("from", fromName),
		zap.String("to", toName),
		zap.Time("time", at),
	)

	// The vacated berth empties and records its adjacency to the entered
	// berth; the entered berth records the reverse adjacency.
	d.st.Upsert(ctx, "BERTHS", "NAME", fromName, store.Update{
		Set: map[string]any{
			"TD":           area,
			"BERTH":        stringField(m, "from"),
			"LATEST_TRAIN": "0000",
			"LATEST_TIME":  at,
		},
		AddToSet:    map[string]any{"CONNECTIONS": toName},
		SetOnInsert: map[string]any{"FIXED": false},
	})
	d.st.Upsert(ctx, "BERTHS", "NAME", toName, store.Update{
		Set: map[string]any{
			"TD":           area,
			"BERTH":        stringField(m, "to"),
			"LATEST_TRAIN": descr,
			"LATEST_TIME":  at,
		},
		AddToSet:    map[string]any{"CONNECTIONS": fromName},
		SetOnInsert: map[string]any{"FIXED": false},
	})
	d.appendTrain(ctx, descr, toName, at)
}

// berthInterpose handles CC_MSG: a train appears in a berth without a
// prior step.
func (d *TDDecoder) berthInterpose(ctx context.Context, body json.RawMessage) {
	m, ok := d.fields(body, "descr", "area_id", "to", "time")
	if !ok {
		return
	}

	descr := stringField(m, "descr")
	area := stringField(m, "area_id")
	toName := area + stringField(m, "to")
	at := msTime(int64Field(m, "time"))

	d.logger.Debug("berth interpose",
		zap.String("descr", descr),
		zap.String("to", toName),
		zap.Time("time", at),
	)

	d.st.Upsert(ctx, "BERTHS", "NAME", toName, store.Update{
		Set: map[string]any{
			"TD":           area,
			"BERTH":        stringField(m, "to"),
			"LATEST_TRAIN": descr,
			"LATEST_TIME":  at,
		},
		SetOnInsert: map[string]any{"FIXED": false},
	})
	d.appendTrain(ctx, descr, toName, at)
}

// appendTrain extends the train's berth history; BERTHS and TIMES stay the
// same length because they are pushed together.
func (d *TDDecoder) appendTrain(ctx context.Context, descr, berth string, at time.Time) {
	d.st.Append(ctx, "TRAINS", "NAME", descr, map[string]any{
		"BERTHS": berth,
		"TIMES":  at,
	})
}

// fields decodes a sub-type body and checks its required fields. The
// feed encodes numbers as strings or JSON numbers interchangeably;
// stringField tolerates both, so presence of either form passes.
func (d *TDDecoder) fields(body json.RawMessage, required ...string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		metrics.ParseErrorsTotal.WithLabelValues("td", "json").Inc()
		d.logger.Warn("can't decode TD sub-message", zap.Error(err))
		return nil, false
	}
	for _, key := range required {
		if stringField(m, key) == "" {
			metrics.ParseErrorsTotal.WithLabelValues("td", "missing_field").Inc()
			d.logger.Warn("TD message missing field", zap.String("field", key))
			return nil, false
		}
	}
	return m, true
}
