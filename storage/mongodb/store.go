// Package mongodb implements the storage port on MongoDB. Per-realm
// uniqueness is enforced by the realm core before insert; the indexes
// created here are a backstop against concurrent writers racing the
// query-before-insert check.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	"go.pilab.hu/realm/domain"
	"go.pilab.hu/realm/storage"
)

const connectTimeout = 10 * time.Second

// Store is a MongoDB-backed document store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ storage.Store = (*Store)(nil)

// NewStore connects to MongoDB and prepares the realm collections.
func NewStore(ctx context.Context, uri, dbName string) (*Store, error) {
	log.Info().Str("db", dbName).Msg("connecting realm store to MongoDB")

	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(connectTimeout).
		SetMonitor(otelmongo.NewMonitor())

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: connect: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName)}
	if err := s.createIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.db.Collection(domain.UsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "realm_id", Value: 1}, {Key: "login_name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongodb: create user index: %w", err)
	}

	_, err = s.db.Collection(domain.RolesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongodb: create role index: %w", err)
	}

	_, err = s.db.Collection(domain.SocialLinksCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "realm_id", Value: 1}, {Key: "provider", Value: 1}, {Key: "username", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("mongodb: create social link index: %w", err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, rec storage.Record) error {
	if rec.RecordID() == "" {
		rec.SetRecordID(primitive.NewObjectID().Hex())
	}
	_, err := s.db.Collection(rec.CollectionName()).ReplaceOne(ctx,
		bson.M{"_id": rec.RecordID()}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb: save %s record: %w", rec.CollectionName(), err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, rec storage.Record, id string) error {
	err := s.db.Collection(rec.CollectionName()).FindOne(ctx, bson.M{"_id": id}).Decode(rec)
	if err == mongo.ErrNoDocuments {
		return storage.ErrNotFound
	}
	return err
}

func (s *Store) FindOne(ctx context.Context, rec storage.Record, q *storage.Query) error {
	err := s.db.Collection(rec.CollectionName()).FindOne(ctx, filterFor(q)).Decode(rec)
	if err == mongo.ErrNoDocuments {
		return storage.ErrNotFound
	}
	return err
}

func (s *Store) FindAll(ctx context.Context, out any, q *storage.Query) error {
	collection, err := storage.CollectionFor(out)
	if err != nil {
		return err
	}
	cursor, err := s.db.Collection(collection).Find(ctx, filterFor(q))
	if err != nil {
		return fmt.Errorf("mongodb: find %s records: %w", collection, err)
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}

func (s *Store) Delete(ctx context.Context, rec storage.Record) error {
	_, err := s.db.Collection(rec.CollectionName()).DeleteOne(ctx, bson.M{"_id": rec.RecordID()})
	return err
}

func (s *Store) DeleteAll(ctx context.Context, collection string, q *storage.Query) error {
	_, err := s.db.Collection(collection).DeleteMany(ctx, filterFor(q))
	return err
}

func (s *Store) PushToList(ctx context.Context, rec storage.Record, field, value string) error {
	res, err := s.db.Collection(rec.CollectionName()).UpdateByID(ctx,
		rec.RecordID(), bson.M{"$push": bson.M{field: value}})
	if err != nil {
		return fmt.Errorf("mongodb: push to %s.%s: %w", rec.CollectionName(), field, err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return storage.MirrorPush(rec, field, value)
}

func filterFor(q *storage.Query) bson.M {
	filter := bson.M{}
	if q == nil {
		return filter
	}
	for field, value := range q.EqConditions() {
		filter[field] = value
	}
	if field, values, ok := q.InCondition(); ok {
		filter[field] = bson.M{"$in": values}
	}
	return filter
}
