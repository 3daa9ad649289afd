package rawstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Collection names in the raw store.
const (
	MoviesCollection    = "raw_movies"
	CreditsCollection   = "raw_credits"
	GenresCollection    = "raw_genres"
	CompaniesCollection = "raw_companies"
)

// Collections lists every raw collection in sync order.
var Collections = []string{GenresCollection, CompaniesCollection, MoviesCollection, CreditsCollection}

const DefaultConnectTimeout = 5 * time.Second

// Collection is the part of *mongo.Collection the store relies on.
type Collection interface {
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type Store struct {
	client      *mongo.Client
	db          *mongo.Database
	collections map[string]Collection
	log         *zap.Logger
	now         func() time.Time
}

// Open connects to MongoDB and verifies the connection with a ping.
func Open(ctx context.Context, cfg Config, log *zap.Logger) (*Store, error) {
	if cfg.URI == "" || cfg.Database == "" {
		return nil, errors.New("mongo uri and database name are required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(cfg.ConnectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	collections := make(map[string]Collection, len(Collections))
	for _, name := range Collections {
		collections[name] = db.Collection(name)
	}

	s := NewWithCollections(collections, log)
	s.client = client
	s.db = db
	s.log.Info("connected to raw store", zap.String("database", cfg.Database))

	return s, nil
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the clock used for loaded_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewWithCollections builds a store over already-open collections.
func NewWithCollections(collections map[string]Collection, log *zap.Logger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		collections: collections,
		log:         log.Named("rawstore"),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnecting from mongo: %w", err)
	}
	s.log.Info("raw store connection closed")
	return nil
}

func (s *Store) collection(name string) (Collection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", name)
	}
	return c, nil
}

// EnsureIndexes creates the natural-key indexes on every raw collection.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if s.db == nil {
		return errors.New("raw store is not connected")
	}

	unique := options.Index().SetUnique(true)
	specs := map[string][]mongo.IndexModel{
		MoviesCollection:    {{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique}},
		GenresCollection:    {{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique}},
		CompaniesCollection: {{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique}},
		CreditsCollection: {
			{Keys: bson.D{{Key: "movie_id", Value: 1}}},
			{Keys: bson.D{{Key: "credit_id", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
	}

	for _, name := range Collections {
		created, err := s.db.Collection(name).Indexes().CreateMany(ctx, specs[name])
		if err != nil {
			return fmt.Errorf("creating indexes on %s: %w", name, err)
		}
		s.log.Info("indexes ready", zap.String("collection", name), zap.Strings("indexes", created))
	}

	return nil
}

// Counts returns the number of documents in every raw collection.
func (s *Store) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(Collections))
	for _, name := range Collections {
		c, err := s.collection(name)
		if err != nil {
			return nil, err
		}
		n, err := c.CountDocuments(ctx, bson.D{})
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", name, err)
		}
		counts[name] = n
	}
	return counts, nil
}
