package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/joshtingey/the-trains/internal/metrics"
)

// Database is the shared database name used by both services.
const Database = "thetrains"

// Mongo implements Store on a MongoDB database.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

func Connect(ctx context.Context, uri string, logger *zap.Logger) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	return &Mongo{
		client: client,
		db:     client.Database(Database),
		logger: logger,
	}, nil
}

func (m *Mongo) Close(ctx context.Context) {
	if err := m.client.Disconnect(ctx); err != nil {
		m.logger.Warn("mongo disconnect error", zap.Error(err))
	}
}

// Ping reports store reachability for readiness checks.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *Mongo) Collections(ctx context.Context) []string {
	names, err := m.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		m.logger.Warn("mongo collections error", zap.Error(err))
		return nil
	}
	return names
}

func (m *Mongo) Drop(ctx context.Context, name string) {
	if err := m.db.Collection(name).Drop(ctx); err != nil {
		m.count(name, "drop", "error")
		m.logger.Warn("mongo drop error", zap.String("collection", name), zap.Error(err))
		return
	}
	m.count(name, "drop", "ok")
}

func (m *Mongo) Insert(ctx context.Context, collection string, doc map[string]any) {
	if _, err := m.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		m.count(collection, "insert", "error")
		m.logger.Warn("mongo insert error", zap.String("collection", collection), zap.Error(err))
		return
	}
	m.count(collection, "insert", "ok")
}

func (m *Mongo) Upsert(ctx context.Context, collection, keyField, key string, u Update) {
	update := buildUpdate(u)
	if len(update) == 0 {
		return
	}
	_, err := m.db.Collection(collection).UpdateOne(ctx,
		bson.M{keyField: key}, update, options.Update().SetUpsert(true))
	if err != nil {
		m.count(collection, "upsert", "error")
		m.logger.Warn("mongo upsert error",
			zap.String("collection", collection),
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}
	m.count(collection, "upsert", "ok")
}

func (m *Mongo) Append(ctx context.Context, collection, keyField, key string, fields map[string]any) {
	m.Upsert(ctx, collection, keyField, key, Update{Push: fields})
}

func (m *Mongo) SetAll(ctx context.Context, collection string, set map[string]any) {
	_, err := m.db.Collection(collection).UpdateMany(ctx, bson.M{}, bson.M{"$set": set})
	if err != nil {
		m.count(collection, "set_all", "error")
		m.logger.Warn("mongo update-many error", zap.String("collection", collection), zap.Error(err))
		return
	}
	m.count(collection, "set_all", "ok")
}

func (m *Mongo) Scan(ctx context.Context, collection string) ([]map[string]any, error) {
	cur, err := m.db.Collection(collection).Find(ctx, bson.M{})
	if err != nil {
		m.count(collection, "scan", "error")
		return nil, fmt.Errorf("scanning %s: %w", collection, err)
	}
	var docs []map[string]any
	if err := cur.All(ctx, &docs); err != nil {
		m.count(collection, "scan", "error")
		return nil, fmt.Errorf("decoding %s scan: %w", collection, err)
	}
	m.count(collection, "scan", "ok")
	return docs, nil
}

func (m *Mongo) count(collection, op, status string) {
	metrics.StoreOpsTotal.WithLabelValues(collection, op, status).Inc()
}

// buildUpdate translates an Update into the operator document MongoDB
// applies atomically for the matched document.
func buildUpdate(u Update) bson.M {
	update := bson.M{}
	if len(u.Set) > 0 {
		update["$set"] = bson.M(u.Set)
	}
	if len(u.SetOnInsert) > 0 {
		update["$setOnInsert"] = bson.M(u.SetOnInsert)
	}
	if len(u.AddToSet) > 0 {
		update["$addToSet"] = bson.M(u.AddToSet)
	}
	if len(u.Push) > 0 {
		update["$push"] = bson.M(u.Push)
	}
	return update
}
