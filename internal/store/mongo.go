package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"dwetl/internal/model"
)

// Client is the subset of MongoDB operations MongoStore needs. Every call
// names its database and collection.
type Client interface {
	UpdateOne(ctx context.Context, database, coll string, filter, update any,
		opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	CountDocuments(ctx context.Context, database, coll string, filter any,
		opts ...*options.CountOptions) (int64, error)
	DeleteMany(ctx context.Context, database, coll string, filter any,
		opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	Find(ctx context.Context, database, coll string, filter any,
		opts ...*options.FindOptions) (*mongo.Cursor, error)
	CreateIndex(ctx context.Context, database, coll string, m mongo.IndexModel) (string, error)
	ListIndexes(ctx context.Context, database, coll string) ([]*mongo.IndexSpecification, error)
	DropIndex(ctx context.Context, database, coll, name string) error
	Disconnect(ctx context.Context) error
}

// ConnectMongo dials uri and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri string) (Client, error) {
	if uri == "" {
		return nil, errors.New("mongodb: URI is empty")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb: connect failed: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb: ping failed: %w", err)
	}
	return &nativeClient{client: client}, nil
}

// nativeClient wraps *mongo.Client to implement Client.
type nativeClient struct {
	client *mongo.Client
}

func (c *nativeClient) coll(database, coll string) *mongo.Collection {
	return c.client.Database(database).Collection(coll)
}

func (c *nativeClient) UpdateOne(ctx context.Context, database, coll string, filter, update any,
	opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return c.coll(database, coll).UpdateOne(ctx, filter, update, opts...)
}

func (c *nativeClient) CountDocuments(ctx context.Context, database, coll string, filter any,
	opts ...*options.CountOptions) (int64, error) {
	return c.coll(database, coll).CountDocuments(ctx, filter, opts...)
}

func (c *nativeClient) DeleteMany(ctx context.Context, database, coll string, filter any,
	opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	return c.coll(database, coll).DeleteMany(ctx, filter, opts...)
}

func (c *nativeClient) Find(ctx context.Context, database, coll string, filter any,
	opts ...*options.FindOptions) (*mongo.Cursor, error) {
	return c.coll(database, coll).Find(ctx, filter, opts...)
}

func (c *nativeClient) CreateIndex(ctx context.Context, database, coll string, m mongo.IndexModel) (string, error) {
	return c.coll(database, coll).Indexes().CreateOne(ctx, m)
}

func (c *nativeClient) ListIndexes(ctx context.Context, database, coll string) ([]*mongo.IndexSpecification, error) {
	return c.coll(database, coll).Indexes().ListSpecifications(ctx)
}

func (c *nativeClient) DropIndex(ctx context.Context, database, coll, name string) error {
	_, err := c.coll(database, coll).Indexes().DropOne(ctx, name)
	return err
}

func (c *nativeClient) Disconnect(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// MongoStore implements Store on a MongoDB database.
type MongoStore struct {
	client   Client
	database string
}

func NewMongoStore(client Client, database string) *MongoStore {
	return &MongoStore{client: client, database: database}
}

const codeIndexNotFound = 27

func (s *MongoStore) Upsert(ctx context.Context, coll string, filter, doc model.Document) (UpsertResult, error) {
	if err := checkFilter(filter); err != nil {
		return UpsertResult{}, err
	}
	res, err := s.client.UpdateOne(ctx, s.database, coll,
		EncodeBSON(filter),
		bson.M{"$set": EncodeBSON(doc)},
		options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return UpsertResult{}, fmt.Errorf("%w: %v", ErrDuplicateKey, err)
		}
		return UpsertResult{}, fmt.Errorf("mongodb: upsert %s: %w", coll, err)
	}
	return UpsertResult{
		Inserted: res.UpsertedCount > 0,
		Matched:  res.MatchedCount > 0,
		Modified: res.ModifiedCount > 0,
	}, nil
}

func (s *MongoStore) Count(ctx context.Context, coll string) (int64, error) {
	n, err := s.client.CountDocuments(ctx, s.database, coll, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("mongodb: count %s: %w", coll, err)
	}
	return n, nil
}

func (s *MongoStore) DeleteAll(ctx context.Context, coll string) (int64, error) {
	res, err := s.client.DeleteMany(ctx, s.database, coll, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("mongodb: delete %s: %w", coll, err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) CreateIndex(ctx context.Context, coll string, ix Index) (string, error) {
	ix = ix.withName()
	if err := checkIndex(ix); err != nil {
		return "", err
	}
	keys := bson.D{}
	for _, f := range ix.Fields {
		dir := 1
		if f.Desc {
			dir = -1
		}
		keys = append(keys, bson.E{Key: f.Name, Value: dir})
	}
	name, err := s.client.CreateIndex(ctx, s.database, coll, mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetName(ix.Name).SetUnique(ix.Unique),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("%w: %v", ErrDuplicateKey, err)
		}
		return "", fmt.Errorf("mongodb: create index %s on %s: %w", ix.Name, coll, err)
	}
	return name, nil
}

func (s *MongoStore) ListIndexes(ctx context.Context, coll string) ([]Index, error) {
	specs, err := s.client.ListIndexes(ctx, s.database, coll)
	if err != nil {
		return nil, fmt.Errorf("mongodb: list indexes %s: %w", coll, err)
	}
	out := make([]Index, 0, len(specs))
	for _, info := range specs {
		ix := Index{Name: info.Name, Unique: info.Unique != nil && *info.Unique}
		var keys bson.D
		if err := bson.Unmarshal(info.KeysDocument, &keys); err != nil {
			return nil, fmt.Errorf("mongodb: decode index %s: %w", info.Name, err)
		}
		for _, e := range keys {
			ix.Fields = append(ix.Fields, IndexField{Name: e.Key, Desc: negative(e.Value)})
		}
		if ix.Name == IDIndexName {
			ix.Unique = true
		}
		out = append(out, ix)
	}
	return out, nil
}

func negative(v any) bool {
	switch n := v.(type) {
	case int32:
		return n < 0
	case int64:
		return n < 0
	case float64:
		return n < 0
	}
	return false
}

func (s *MongoStore) DropIndex(ctx context.Context, coll string, name string) error {
	if name == IDIndexName {
		return errors.New("store: cannot drop _id_ index")
	}
	if err := s.client.DropIndex(ctx, s.database, coll, name); err != nil {
		var ce mongo.CommandError
		if errors.As(err, &ce) && ce.Code == codeIndexNotFound {
			return fmt.Errorf("%w: %s.%s", ErrIndexNotFound, coll, name)
		}
		return fmt.Errorf("mongodb: drop index %s on %s: %w", name, coll, err)
	}
	return nil
}

func (s *MongoStore) Scan(ctx context.Context, coll string, fn func(model.Document) error) error {
	cur, err := s.client.Find(ctx, s.database, coll, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return fmt.Errorf("mongodb: find %s: %w", coll, err)
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var m bson.M
		if err := cur.Decode(&m); err != nil {
			return fmt.Errorf("mongodb: decode %s: %w", coll, err)
		}
		if err := fn(DecodeBSON(m)); err != nil {
			return err
		}
	}
	return cur.Err()
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}
