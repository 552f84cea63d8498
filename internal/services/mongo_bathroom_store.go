package services

import (
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/spotloo/backend/internal/models"
)

// MongoBathroomStore reads the bathrooms and ratings collections written by
// the web client.
type MongoBathroomStore struct {
	bathroomsCol *mongo.Collection
	ratingsCol   *mongo.Collection
}

func NewMongoBathroomStore(db *mongo.Database) *MongoBathroomStore {
	slog.Info("mongo store ready", "collections", "bathrooms,ratings", "db", db.Name())
	return &MongoBathroomStore{
		bathroomsCol: db.Collection("bathrooms"),
		ratingsCol:   db.Collection("ratings"),
	}
}

func (s *MongoBathroomStore) GetBathroom(ctx context.Context, id string) (*models.Bathroom, error) {
	var b models.Bathroom
	if err := s.bathroomsCol.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrBathroomNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *MongoBathroomStore) ListBathrooms(ctx context.Context) ([]models.Bathroom, error) {
	return findAll[models.Bathroom](ctx, s.bathroomsCol)
}

func (s *MongoBathroomStore) ListRatings(ctx context.Context) ([]models.Rating, error) {
	return findAll[models.Rating](ctx, s.ratingsCol)
}

func findAll[T any](ctx context.Context, col *mongo.Collection) ([]T, error) {
	cur, err := col.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]T, 0)
	for cur.Next(ctx) {
		var doc T
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
