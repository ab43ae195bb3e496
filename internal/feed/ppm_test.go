package feed

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPPMDecode(t *testing.T) {
	st := &memStore{}
	f := NewPPM(st, zap.NewNop())

	payload := []byte(`{
		"RTPPMDataMsgV1": {
			"timestamp": "1609459200000",
			"RTPPMData": {
				"NationalPage": {
					"NationalPPM": {
						"Total": "1000",
						"OnTime": "900",
						"Late": "100",
						"PPM": {"text": "90.0"},
						"RollingPPM": {"text": "92.5"}
					}
				}
			}
		}
	}`)
	f.Decoder.Decode(context.Background(), payload)

	if len(st.inserts) != 1 {
		t.Fatalf("got %d inserts, want 1", len(st.inserts))
	}
	ins := st.inserts[0]
	if ins.collection != "ppm" {
		t.Errorf("collection = %q, want ppm", ins.collection)
	}

	wantDate := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := ins.doc["date"].(time.Time); !got.Equal(wantDate) {
		t.Errorf("date = %v, want %v", got, wantDate)
	}
	if got := ins.doc["total"].(int); got != 1000 {
		t.Errorf("total = %d, want 1000", got)
	}
	if got := ins.doc["on_time"].(int); got != 900 {
		t.Errorf("on_time = %d, want 900", got)
	}
	if got := ins.doc["late"].(int); got != 100 {
		t.Errorf("late = %d, want 100", got)
	}
	if got := ins.doc["ppm"].(float64); got != 90.0 {
		t.Errorf("ppm = %g, want 90.0", got)
	}
	if got := ins.doc["rolling_ppm"].(float64); got != 92.5 {
		t.Errorf("rolling_ppm = %g, want 92.5", got)
	}
}

func TestPPMDecodeNumericTimestamp(t *testing.T) {
	st := &memStore{}
	f := NewPPM(st, zap.NewNop())

	f.Decoder.Decode(context.Background(), []byte(`{
		"RTPPMDataMsgV1": {
			"timestamp": 1609459200000,
			"RTPPMData": {"NationalPage": {"NationalPPM": {"Total": 10}}}
		}
	}`))

	if len(st.inserts) != 1 {
		t.Fatalf("got %d inserts, want 1", len(st.inserts))
	}
	wantDate := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := st.inserts[0].doc["date"].(time.Time); !got.Equal(wantDate) {
		t.Errorf("date = %v, want %v", got, wantDate)
	}
}

func TestPPMDecodeMalformed(t *testing.T) {
	st := &memStore{}
	f := NewPPM(st, zap.NewNop())

	f.Decoder.Decode(context.Background(), []byte(`not json`))
	f.Decoder.Decode(context.Background(), []byte(`{"RTPPMDataMsgV1": {}}`))

	if len(st.inserts) != 0 {
		t.Fatalf("got %d inserts, want 0", len(st.inserts))
	}
}
