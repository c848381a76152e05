package kv

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo is a Store over a collection with a TTL index. Expired documents are
// reaped by the server eventually, so every read also filters on expiry.
type Mongo struct {
	col *mongo.Collection
	now func() time.Time
}

var _ Store = (*Mongo)(nil)

type entryDoc struct {
	Key       string     `bson:"_id"`
	Value     []byte     `bson:"value"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
}

// NewMongo uses col, creating the TTL index if needed.
func NewMongo(ctx context.Context, col *mongo.Collection) (*Mongo, error) {
	_, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return nil, fmt.Errorf("kv ttl index: %w", err)
	}
	return &Mongo{col: col, now: time.Now}, nil
}

func (m *Mongo) expiry(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := m.now().Add(ttl).UTC()
	return &t
}

func (m *Mongo) live() bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"expires_at": bson.M{"$exists": false}},
		bson.M{"expires_at": bson.M{"$gt": m.now().UTC()}},
	}}
}

// SetNX matches only an expired document for key. A live one makes the
// upsert collide on _id, which means the key was already taken.
func (m *Mongo) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	set := bson.M{"value": value}
	update := bson.M{"$set": set}
	if exp := m.expiry(ttl); exp != nil {
		set["expires_at"] = *exp
	} else {
		update["$unset"] = bson.M{"expires_at": ""}
	}
	_, err := m.col.UpdateOne(ctx,
		bson.M{"_id": key, "expires_at": bson.M{"$lte": m.now().UTC()}},
		update,
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (m *Mongo) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := m.col.ReplaceOne(ctx,
		bson.M{"_id": key},
		entryDoc{Key: key, Value: value, ExpiresAt: m.expiry(ttl)},
		options.Replace().SetUpsert(true),
	)
	return err
}

func (m *Mongo) Get(ctx context.Context, key string) ([]byte, error) {
	filter := m.live()
	filter["_id"] = key
	var d entryDoc
	err := m.col.FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d.Value, nil
}

func (m *Mongo) Delete(ctx context.Context, key string) error {
	_, err := m.col.DeleteOne(ctx, bson.M{"_id": key})
	return err
}

func (m *Mongo) DeletePrefix(ctx context.Context, prefix string) error {
	_, err := m.col.DeleteMany(ctx, bson.M{"_id": primitive.Regex{Pattern: "^" + regexp.QuoteMeta(prefix)}})
	return err
}

// Close is a no-op; the client belongs to whoever opened it.
func (m *Mongo) Close() error { return nil }
