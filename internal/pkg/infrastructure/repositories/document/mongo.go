package document

import (
	"context"
	"errors"

	"github.com/optimade-org/optimade-gateway/internal/pkg/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoStore is the mongo-driver-backed Store implementation bound to
// one collection.
type mongoStore[T any] struct {
	collection *mongo.Collection
}

// Connect opens a client against uri and returns the named database,
// separating "connect" from "build the façade on top of it" so callers
// can share one connection across several stores.
func Connect(ctx context.Context, uri, databaseName string) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	return client.Database(databaseName), nil
}

// NewMongoStore binds a Store[T] to db's named collection, creating a
// unique index on "id" and, for each of extraUniqueIndexKeys, an
// additional unique index (the gateway registry uses this for the
// flat "database_id_set" field).
func NewMongoStore[T any](ctx context.Context, db *mongo.Database, collectionName string, extraUniqueIndexKeys ...string) (Store[T], error) {
	collection := db.Collection(collectionName)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	for _, key := range extraUniqueIndexKeys {
		indexes = append(indexes, mongo.IndexModel{
			Keys:    bson.D{{Key: key, Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		})
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, err
	}

	return &mongoStore[T]{collection: collection}, nil
}

func (s *mongoStore[T]) Get(ctx context.Context, id string) (T, error) {
	return s.FindOne(ctx, bson.M{"id": id})
}

func (s *mongoStore[T]) FindOne(ctx context.Context, filter bson.M) (T, error) {
	var doc T
	err := s.collection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return notFound[T]()
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return doc, nil
}

func (s *mongoStore[T]) Insert(ctx context.Context, doc T) error {
	_, err := s.collection.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrIDConflict
	}
	return err
}

func (s *mongoStore[T]) Update(ctx context.Context, id string, patch bson.M) error {
	res, err := s.collection.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": patch})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *mongoStore[T]) UpdateWhere(ctx context.Context, id string, filter bson.M, patch bson.M) error {
	fullFilter := bson.M{"id": id}
	for k, v := range filter {
		fullFilter[k] = v
	}

	res, err := s.collection.UpdateOne(ctx, fullFilter, bson.M{"$set": patch})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *mongoStore[T]) List(ctx context.Context, filter bson.M, sort bson.D, skip, limit int64) ([]T, int64, error) {
	if filter == nil {
		filter = bson.M{}
	}

	total, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find()
	if len(sort) > 0 {
		opts.SetSort(sort)
	}
	if skip > 0 {
		opts.SetSkip(skip)
	}
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	docs := make([]T, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}

	return docs, total, nil
}
