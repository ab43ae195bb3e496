package feed

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestTMDecode(t *testing.T) {
	st := &memStore{}
	f := NewTM(st, zap.NewNop())

	payload := []byte(`[
		{"header": {"msg_type": "0003"}, "body": {"train_id": "172N37MW01"}},
		{"header": {"msg_type": "0001"}, "body": {}},
		{"header": {"msg_type": "9999"}, "body": {}}
	]`)
	f.Decoder.Decode(context.Background(), payload)

	// Movement sub-types carry no berth state yet, so nothing is written.
	if len(st.inserts) != 0 || len(st.upserts) != 0 {
		t.Fatalf("got %d inserts and %d upserts, want none", len(st.inserts), len(st.upserts))
	}
}

func TestTMDecodeMalformed(t *testing.T) {
	st := &memStore{}
	f := NewTM(st, zap.NewNop())

	f.Decoder.Decode(context.Background(), []byte(`{`))

	if len(st.inserts) != 0 {
		t.Fatalf("got %d inserts, want 0", len(st.inserts))
	}
}
