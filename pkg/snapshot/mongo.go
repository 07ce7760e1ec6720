package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/kintree/pkg/layout"
	"github.com/matzehuels/kintree/pkg/lineage"
)

// MongoConfig configures the MongoDB-backed store.
type MongoConfig struct {
	// URI is the connection string, e.g. mongodb://localhost:27017
	URI string
	// Database name. Defaults to "kintree".
	Database string
	// ConnectTimeout bounds the initial connection. Defaults to 10s.
	ConnectTimeout time.Duration
}

// MongoStore persists snapshots in MongoDB, one collection for trees and
// one for position sets.
type MongoStore struct {
	client    *mongo.Client
	trees     *mongo.Collection
	positions *mongo.Collection
}

type treeDoc struct {
	Name    string          `bson:"_id"`
	Hash    string          `bson:"hash"`
	Persons int             `bson:"persons"`
	Record  *lineage.Record `bson:"record"`
	SavedAt time.Time       `bson:"saved_at"`
}

type positionsDoc struct {
	TreeHash string       `bson:"_id"`
	Points   []PointEntry `bson:"points"`
	SavedAt  time.Time    `bson:"saved_at"`
}

// NewMongoStore connects to MongoDB and verifies the connection with a ping.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo URI is required")
	}
	if cfg.Database == "" {
		cfg.Database = "kintree"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	return &MongoStore{
		client:    client,
		trees:     db.Collection("trees"),
		positions: db.Collection("positions"),
	}, nil
}

func (s *MongoStore) SaveTree(ctx context.Context, name string, t *lineage.Tree) error {
	if err := validName(name); err != nil {
		return err
	}
	if t == nil || t.Len() == 0 {
		return lineage.ErrEmptyTree
	}

	doc := treeDoc{
		Name:    name,
		Hash:    t.Hash(),
		Persons: t.Len(),
		Record:  t.ToRecord(),
		SavedAt: time.Now().UTC(),
	}
	_, err := s.trees.ReplaceOne(ctx, bson.M{"_id": name}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save tree %q: %w", name, err)
	}
	return nil
}

func (s *MongoStore) LoadTree(ctx context.Context, name string) (*lineage.Tree, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	var doc treeDoc
	err := s.trees.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("tree %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load tree %q: %w", name, err)
	}
	return lineage.FromRecord(doc.Record)
}

func (s *MongoStore) DeleteTree(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}

	var doc treeDoc
	if err := s.trees.FindOne(ctx, bson.M{"_id": name}).Decode(&doc); err == nil {
		s.positions.DeleteOne(ctx, bson.M{"_id": doc.Hash})
	}
	if _, err := s.trees.DeleteOne(ctx, bson.M{"_id": name}); err != nil {
		return fmt.Errorf("delete tree %q: %w", name, err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context) ([]Entry, error) {
	cur, err := s.trees.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("list trees: %w", err)
	}
	defer cur.Close(ctx)

	var entries []Entry
	for cur.Next(ctx) {
		var doc treeDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode tree entry: %w", err)
		}
		n, err := s.positions.CountDocuments(ctx, bson.M{"_id": doc.Hash})
		if err != nil {
			return nil, fmt.Errorf("count positions: %w", err)
		}
		entries = append(entries, Entry{
			Name:      doc.Name,
			TreeHash:  doc.Hash,
			Persons:   doc.Persons,
			SavedAt:   doc.SavedAt,
			Positions: n > 0,
		})
	}
	return entries, cur.Err()
}

func (s *MongoStore) SavePositions(ctx context.Context, treeHash string, ov layout.Overrides) error {
	if treeHash == "" {
		return fmt.Errorf("empty tree hash")
	}
	if ov.Len() == 0 {
		_, err := s.positions.DeleteOne(ctx, bson.M{"_id": treeHash})
		if err != nil {
			return fmt.Errorf("clear positions: %w", err)
		}
		return nil
	}

	p := newPositions(treeHash, ov)
	doc := positionsDoc{TreeHash: treeHash, Points: p.Points, SavedAt: p.SavedAt}
	_, err := s.positions.ReplaceOne(ctx, bson.M{"_id": treeHash}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save positions: %w", err)
	}
	return nil
}

func (s *MongoStore) LoadPositions(ctx context.Context, treeHash string) (layout.Overrides, error) {
	var doc positionsDoc
	err := s.positions.FindOne(ctx, bson.M{"_id": treeHash}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return layout.Overrides{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	return (&Positions{Points: doc.Points}).overrides(), nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
