// Package store is a thin facade over the shared document store. The
// collector and generator are its only writers; both rely on upsert-by-key
// merge semantics, so writes are idempotent with the exception of Append.
package store

import "context"

// Update describes a field-level merge applied by Upsert. Set overwrites,
// SetOnInsert applies only when the upsert creates the document, AddToSet
// inserts into a set-valued field without duplicates, and Push appends to
// an ordered sequence field (the one non-idempotent operator).
type Update struct {
	Set         map[string]any
	SetOnInsert map[string]any
	AddToSet    map[string]any
	Push        map[string]any
}

// Store is the operation set the pipelines need. Write operations log and
// swallow failures: the collector tolerates lost writes as long as the feed
// continues, and every write except Push reconverges on re-delivery. Scan
// reports its error because the generator must abort a run on it.
type Store interface {
	// Collections returns the names of all collections, or nil on failure.
	Collections(ctx context.Context) []string

	// Drop removes a collection.
	Drop(ctx context.Context, name string)

	// Insert appends a document to a collection.
	Insert(ctx context.Context, collection string, doc map[string]any)

	// Upsert merges an update into the document matching {keyField: key},
	// creating it if absent.
	Upsert(ctx context.Context, collection, keyField, key string, u Update)

	// Append pushes values onto ordered sequence fields of the document
	// matching {keyField: key}, creating it if absent.
	Append(ctx context.Context, collection, keyField, key string, fields map[string]any)

	// SetAll applies a field set to every document in a collection.
	SetAll(ctx context.Context, collection string, set map[string]any)

	// Scan returns every document in a collection.
	Scan(ctx context.Context, collection string) ([]map[string]any, error)
}
