package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/layer-3/beatauth/core"
	"github.com/layer-3/beatauth/ports"
)

const identityCollection = "identities"

// MongoIdentityStore keeps profiles in a MongoDB collection keyed by _id
type MongoIdentityStore struct {
	coll *mongo.Collection
}

// NewMongoIdentityStore wraps the identities collection of db
func NewMongoIdentityStore(db *mongo.Database) *MongoIdentityStore {
	return &MongoIdentityStore{coll: db.Collection(identityCollection)}
}

var _ ports.IdentityStore = (*MongoIdentityStore)(nil)

type mongoIdentity struct {
	ID          string `bson:"_id"`
	Scheme      string `bson:"scheme"`
	DisplayName string `bson:"display_name"`
	Role        string `bson:"role"`
	IsVerified  bool   `bson:"is_verified"`
	CreatedAt   int64  `bson:"created_at"`
	UpdatedAt   int64  `bson:"updated_at"`
}

// Get loads the identity stored under key
func (s *MongoIdentityStore) Get(ctx context.Context, key string) (*core.Identity, error) {
	var doc mongoIdentity
	if err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, core.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	return fromMongo(doc), nil
}

// Set upserts identity under key. The key must equal the identity's
// primary key; it is never rewritten.
func (s *MongoIdentityStore) Set(ctx context.Context, key string, identity *core.Identity) error {
	if identity == nil || identity.PrimaryKey != key {
		return fmt.Errorf("set identity %q: %w", key, core.ErrImmutableField)
	}
	doc := toMongo(identity)
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert identity: %w", err)
	}
	return nil
}

func toMongo(i *core.Identity) mongoIdentity {
	return mongoIdentity{
		ID:          i.PrimaryKey,
		Scheme:      string(i.Scheme),
		DisplayName: i.DisplayName,
		Role:        string(i.Role),
		IsVerified:  i.IsVerified,
		CreatedAt:   i.CreatedAt.UnixMilli(),
		UpdatedAt:   i.UpdatedAt.UnixMilli(),
	}
}

func fromMongo(d mongoIdentity) *core.Identity {
	return &core.Identity{
		PrimaryKey:  d.ID,
		Scheme:      core.IdentityScheme(d.Scheme),
		DisplayName: d.DisplayName,
		Role:        core.Role(d.Role),
		IsVerified:  d.IsVerified,
		CreatedAt:   millisToTime(d.CreatedAt),
		UpdatedAt:   millisToTime(d.UpdatedAt),
	}
}

func millisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// ConnectMongo connects, pings and returns the client and selected database.
func ConnectMongo(ctx context.Context, uri, database string, timeout time.Duration) (*mongo.Client, *mongo.Database, error) {
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, client.Database(database), nil
}
