// Package mongodb implements the repository interfaces on top of MongoDB.
//
// The layout matches the collections the LearnLoop frontend already writes:
// "users", "courses" and "enrollments" in one database. Course and user ids
// are ObjectIDs for documents created here, but older documents may carry a
// plain string _id, so every lookup by id accepts both forms.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/sakif/learnloop/internal/repository"
)

const (
	usersCollection       = "users"
	coursesCollection     = "courses"
	enrollmentsCollection = "enrollments"
)

// Store owns the MongoDB session shared by every request.
//
// The session is opened lazily on first use. Database is safe to call from
// many goroutines at once: the first successful connect is cached and every
// later call returns the same handle. A failed connect is not cached, so the
// next request tries again.
type Store struct {
	uri            string
	dbName         string
	connectTimeout time.Duration

	mu     sync.Mutex
	client *mongo.Client
	db     *mongo.Database
}

// New prepares a Store. No network traffic happens until the first
// repository call.
func New(uri, dbName string) *Store {
	return &Store{
		uri:            uri,
		dbName:         dbName,
		connectTimeout: 10 * time.Second,
	}
}

// Repositories returns the repository bundle backed by this store.
func (s *Store) Repositories() *repository.Store {
	return &repository.Store{
		Users:       s,
		Courses:     s,
		Enrollments: s,
		Closer:      s,
	}
}

// Database returns the cached database handle, connecting on first use.
func (s *Store) Database(ctx context.Context) (*mongo.Database, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(s.uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	s.client = client
	s.db = client.Database(s.dbName)
	return s.db, nil
}

func (s *Store) collection(ctx context.Context, name string) (*mongo.Collection, error) {
	db, err := s.Database(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(name), nil
}

// EnsureIndexes creates the unique indexes the services rely on:
// one user per email, one enrollment per (userEmail, courseId).
// It fails if existing data already violates them.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	db, err := s.Database(ctx)
	if err != nil {
		return err
	}

	_, err = db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_email"),
	})
	if err != nil {
		return fmt.Errorf("mongo: creating users email index: %w", err)
	}

	_, err = db.Collection(enrollmentsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userEmail", Value: 1}, {Key: "courseId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_user_course"),
	})
	if err != nil {
		return fmt.Errorf("mongo: creating enrollments index: %w", err)
	}

	_, err = db.Collection(coursesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "status", Value: 1}, {Key: "category", Value: 1}},
		Options: options.Index().SetName("status_category"),
	})
	if err != nil {
		return fmt.Errorf("mongo: creating courses status index: %w", err)
	}

	return nil
}

// Close disconnects the session if one was ever opened.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.client.Disconnect(ctx)
	s.client, s.db = nil, nil
	if err != nil {
		return fmt.Errorf("mongo: disconnecting: %w", err)
	}
	return nil
}

// idFilter matches a document by id in either representation. A 24-hex id
// may belong to an ObjectID document or to one whose _id is that same
// string, so both are tried.
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{oid, id}}}
	}
	return bson.M{"_id": id}
}

// idString renders a decoded _id as the string the API exposes.
func idString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

// toFloat reads a numeric field that older clients may have written as an
// int, a double, or not at all.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case primitive.Decimal128:
		f, err := decimalToFloat(n)
		return f, err == nil
	}
	return 0, false
}

func decimalToFloat(d primitive.Decimal128) (float64, error) {
	var f float64
	_, err := fmt.Sscan(d.String(), &f)
	return f, err
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
