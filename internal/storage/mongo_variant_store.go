package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/blockbase/internal/world/block"
	"github.com/ethaniccc/float32-cube/cube"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig contains connection settings for the MongoDB variant store.
type MongoConfig struct {
	URI        string `yaml:"uri"`        // e.g. mongodb://localhost:27017
	Database   string `yaml:"database"`   // e.g. blockbase
	Collection string `yaml:"collection"` // e.g. variants
}

// variantDoc is a single block position in the collection.
type variantDoc struct {
	X       int `bson:"x"`
	Y       int `bson:"y"`
	Z       int `bson:"z"`
	Variant int `bson:"variant"`
}

// MongoVariantStore implements VariantStore on MongoDB backend.
type MongoVariantStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	ctxTimeout time.Duration
}

// NewMongoVariantStore establishes connection and returns the store.
func NewMongoVariantStore(cfg MongoConfig) (*MongoVariantStore, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "blockbase"
	}
	if cfg.Collection == "" {
		cfg.Collection = "variants"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	// ping
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	store := &MongoVariantStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		ctxTimeout: 5 * time.Second,
	}

	// Ensure indexes
	if err := store.ensureIndexes(); err != nil {
		return nil, err
	}
	return store, nil
}

func (m *MongoVariantStore) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	posIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "x", Value: 1}, {Key: "y", Value: 1}, {Key: "z", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("pos_unique"),
	}
	_, err := m.collection.Indexes().CreateOne(ctx, posIdx)
	return err
}

func posFilter(pos cube.Pos) bson.M {
	return bson.M{"x": pos[0], "y": pos[1], "z": pos[2]}
}

// Save implements VariantStore (upsert by position).
func (m *MongoVariantStore) Save(ctx context.Context, pos cube.Pos, id block.VariantID) error {
	if err := checkVariant(id); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	_, err := m.collection.UpdateOne(ctx, posFilter(pos),
		bson.M{"$set": bson.M{"variant": int(id)}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save variant %v: %w", pos, err)
	}
	return nil
}

// Load implements VariantStore.
func (m *MongoVariantStore) Load(ctx context.Context, pos cube.Pos) (block.VariantID, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	var doc variantDoc
	err := m.collection.FindOne(ctx, posFilter(pos)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load variant %v: %w", pos, err)
	}
	return block.VariantID(doc.Variant), true, nil
}

// Delete implements VariantStore.
func (m *MongoVariantStore) Delete(ctx context.Context, pos cube.Pos) error {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	_, err := m.collection.DeleteOne(ctx, posFilter(pos))
	return err
}

// BatchSave upserts all positions with a single unordered bulk write.
func (m *MongoVariantStore) BatchSave(ctx context.Context, variants map[cube.Pos]block.VariantID) error {
	if len(variants) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(variants))
	for pos, id := range variants {
		if err := checkVariant(id); err != nil {
			return err
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(posFilter(pos)).
			SetUpdate(bson.M{"$set": bson.M{"variant": int(id)}}).
			SetUpsert(true))
	}
	_, err := m.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("bulk save variants: %w", err)
	}
	return nil
}

// Scan implements VariantStore.
func (m *MongoVariantStore) Scan(ctx context.Context, fn func(pos cube.Pos, id block.VariantID) error) error {
	cur, err := m.collection.Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var doc variantDoc
		if err := cur.Decode(&doc); err != nil {
			return err
		}
		if err := fn(cube.Pos{doc.X, doc.Y, doc.Z}, block.VariantID(doc.Variant)); err != nil {
			return err
		}
	}
	return cur.Err()
}

// Close disconnects the client.
func (m *MongoVariantStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
