// Package mongostore implements store.Store on MongoDB. Transactions need a
// replica set deployment.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"oktel-timekeeper/internal/store"
)

type MongoDB struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoDB(uri, database string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	slog.Info("connected to mongodb", "database", database)

	return &MongoDB{
		client: client,
		db:     client.Database(database),
	}, nil
}

func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.db.Collection(name)
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Store is the MongoDB-backed store.Store.
type Store struct {
	db       *MongoDB
	shifts   *mongo.Collection
	policies *mongo.Collection
	agents   *mongo.Collection
	sessions *mongo.Collection
	breaks   *mongo.Collection
	activity *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// New wraps db and makes sure the indexes exist.
func New(ctx context.Context, db *MongoDB) (*Store, error) {
	s := &Store{
		db:       db,
		shifts:   db.Collection("shifts"),
		policies: db.Collection("break_policies"),
		agents:   db.Collection("agents"),
		sessions: db.Collection("agent_sessions"),
		breaks:   db.Collection("break_requests"),
		activity: db.Collection("activity_logs"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	if _, err := s.policies.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "shift_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create break_policies indexes: %w", err)
	}

	if _, err := s.sessions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// One open session per agent per day; completed sessions drop out of the index.
			Keys: bson.D{{Key: "agent_id", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("agent_date_open").
				SetPartialFilterExpression(bson.M{"open": true}),
		},
		{Keys: bson.D{{Key: "agent_id", Value: 1}, {Key: "check_in", Value: -1}}},
		{Keys: bson.D{{Key: "date", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create agent_sessions indexes: %w", err)
	}

	if _, err := s.breaks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "agent_id", Value: 1}, {Key: "date", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "department_id", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create break_requests indexes: %w", err)
	}

	if _, err := s.activity.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "agent_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "type", Value: 1}, {Key: "timestamp", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("create activity_logs indexes: %w", err)
	}
	return nil
}

// WithTx runs fn inside a multi-document transaction. Calls nested inside an
// existing transaction reuse it.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	sess, err := s.db.client.StartSession()
	if err != nil {
		return fmt.Errorf("start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Close(ctx)
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter any, what string, opts ...options.Lister[options.FindOneOptions]) (*T, error) {
	var v T
	err := coll.FindOne(ctx, filter, opts...).Decode(&v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", what, err)
	}
	return &v, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, what string, opts ...options.Lister[options.FindOptions]) ([]*T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", what, err)
	}
	var results []*T
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decode %s: %w", what, err)
	}
	return results, nil
}

func insert(ctx context.Context, coll *mongo.Collection, doc any, what string) error {
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert %s: %w", what, store.ErrDuplicate)
		}
		return fmt.Errorf("insert %s: %w", what, err)
	}
	return nil
}

// replaceIf replaces the document only while its status still matches.
func replaceIf(ctx context.Context, coll *mongo.Collection, id, status string, doc any, what string) error {
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": id, "status": status}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("update %s: %w", what, store.ErrDuplicate)
		}
		return fmt.Errorf("update %s: %w", what, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update %s %s: %w", what, id, store.ErrStale)
	}
	return nil
}

func upsert(ctx context.Context, coll *mongo.Collection, id string, doc any, what string) error {
	if _, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("upsert %s: %w", what, err)
	}
	return nil
}
