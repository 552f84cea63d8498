package services

import (
	"context"
	"crypto/tls"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spotloo/backend/internal/models"
)

// ConnectMongo opens and pings a client.
func ConnectMongo(ctx context.Context, mongoURI string) (*mongo.Client, error) {
	// Atlas occasionally fails TLS negotiation in some environments unless we force TLS 1.2.
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS12,
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI).SetTLSConfig(tlsCfg))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return client, nil
}

// MongoProfileStore keeps user ledgers in the "users" collection, _id = uid.
type MongoProfileStore struct {
	usersCol *mongo.Collection
}

func NewMongoProfileStore(ctx context.Context, db *mongo.Database) *MongoProfileStore {
	col := db.Collection("users")

	// Best-effort indexes.
	_, _ = col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "points", Value: -1}},
	})

	slog.Info("mongo store ready", "collections", "users", "db", db.Name())
	return &MongoProfileStore{usersCol: col}
}

func (s *MongoProfileStore) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var prof models.UserProfile
	if err := s.usersCol.FindOne(ctx, bson.M{"_id": userID}).Decode(&prof); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &prof, nil
}

func (s *MongoProfileStore) ApplyAward(ctx context.Context, w LedgerWrite) error {
	_, err := s.usersCol.UpdateOne(
		ctx,
		bson.M{"_id": w.UserID},
		awardUpdate(w),
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoProfileStore) ReplaceTotals(ctx context.Context, w TotalsWrite) error {
	_, err := s.usersCol.UpdateOne(
		ctx,
		bson.M{"_id": w.UserID},
		totalsUpdate(w),
		options.Update().SetUpsert(true),
	)
	return err
}

// awardUpdate builds the merge-upsert for one award: server-side increments
// for the counters, daily_stats replaced wholesale on reset.
func awardUpdate(w LedgerWrite) bson.M {
	inc := bson.M{
		"points":        w.Points,
		"contributions": 1,
	}
	set := bson.M{"last_activity": w.Now}
	// created_at only ever lands through $setOnInsert.
	setOnInsert := bson.M{"created_at": w.Now}

	if w.ResetDaily {
		set["daily_stats"] = bson.M{
			"last_reset":     w.Now,
			string(w.Action): 1,
		}
	} else {
		inc["daily_stats."+string(w.Action)] = 1
	}
	applyFill(set, setOnInsert, w.Insert, w.Fill)

	return bson.M{"$inc": inc, "$set": set, "$setOnInsert": setOnInsert}
}

// totalsUpdate overwrites the recomputed totals.
func totalsUpdate(w TotalsWrite) bson.M {
	set := bson.M{
		"points":        w.Points,
		"contributions": w.Stats.Contributions(),
		"stats":         w.Stats,
		"last_activity": w.Now,
	}
	setOnInsert := bson.M{"created_at": w.Now}
	applyFill(set, setOnInsert, w.Insert, w.Fill)

	return bson.M{"$set": set, "$setOnInsert": setOnInsert}
}

func (s *MongoProfileStore) TopProfiles(ctx context.Context, limit int) ([]models.UserProfile, error) {
	cur, err := s.usersCol.Find(
		ctx,
		bson.M{},
		options.Find().SetSort(bson.D{{Key: "points", Value: -1}}).SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]models.UserProfile, 0, limit)
	for cur.Next(ctx) {
		var p models.UserProfile
		if err := cur.Decode(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, cur.Err()
}

// applyFill routes identity fields. MongoDB forbids updating the same path in
// both $set and $setOnInsert, so each field goes to exactly one of them.
func applyFill(set, setOnInsert bson.M, insert bool, fill ProfileFill) {
	target := set
	if insert {
		target = setOnInsert
	}
	if fill.UID != "" {
		target["uid"] = fill.UID
	}
	if fill.DisplayName != "" {
		target["display_name"] = fill.DisplayName
	}
	if fill.Email != "" {
		target["email"] = fill.Email
	}
}
