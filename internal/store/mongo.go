package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ai-voice-bridge-service/internal/models"
)

// MongoConfig holds connection settings.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// Mongo stores outcomes as documents in a single collection.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongo connects, pings and ensures the list/sort indexes exist.
func NewMongo(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "sessionId", Value: 1}}},
	})
	if err != nil {
		log.Warn().Err(err).Str("collection", cfg.Collection).Msg("Failed to ensure call log indexes")
	}

	log.Info().
		Str("database", cfg.Database).
		Str("collection", cfg.Collection).
		Msg("MongoDB outcome store initialized")

	return &Mongo{client: client, coll: coll}, nil
}

func (m *Mongo) Insert(ctx context.Context, o *models.Outcome) (string, error) {
	o.ID = primitive.NewObjectID().Hex()
	o.CreatedAt = time.Now().UTC()
	if _, err := m.coll.InsertOne(ctx, o); err != nil {
		return "", fmt.Errorf("insert outcome: %w", err)
	}
	return o.ID, nil
}

func (m *Mongo) List(ctx context.Context, limit int) ([]models.Outcome, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(ClampLimit(limit)))

	cur, err := m.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	out := []models.Outcome{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode outcomes: %w", err)
	}
	return out, nil
}

func (m *Mongo) Get(ctx context.Context, id string) (models.Outcome, error) {
	var o models.Outcome
	err := m.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return o, ErrNotFound
	}
	if err != nil {
		return o, fmt.Errorf("get outcome: %w", err)
	}
	return o, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
