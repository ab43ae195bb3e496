package feed

import (
	"context"

	"github.com/joshtingey/the-trains/internal/store"
)

// memStore records every mutation so decoder tests can assert on the
// exact writes.
type memStore struct {
	collections []string

	inserts []insertOp
	upserts []upsertOp
	appends []appendOp
}

type insertOp struct {
	collection string
	doc        map[string]any
}

type upsertOp struct {
	collection string
	keyField   string
	key        string
	u          store.Update
}

type appendOp struct {
	collection string
	keyField   string
	key        string
	fields     map[string]any
}

func (s *memStore) Collections(context.Context) []string { return s.collections }

func (s *memStore) Drop(context.Context, string) {}

func (s *memStore) Insert(_ context.Context, collection string, doc map[string]any) {
	s.inserts = append(s.inserts, insertOp{collection, doc})
}

func (s *memStore) Upsert(_ context.Context, collection, keyField, key string, u store.Update) {
	s.upserts = append(s.upserts, upsertOp{collection, keyField, key, u})
}

func (s *memStore) Append(_ context.Context, collection, keyField, key string, fields map[string]any) {
	s.appends = append(s.appends, appendOp{collection, keyField, key, fields})
}

func (s *memStore) SetAll(context.Context, string, map[string]any) {}

func (s *memStore) Scan(context.Context, string) ([]map[string]any, error) { return nil, nil }

var _ store.Store = (*memStore)(nil)
