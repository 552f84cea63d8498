package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/spotloo/backend/internal/models"
)

type changeEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument             bson.Raw `bson:"fullDocument"`
	FullDocumentBeforeChange bson.Raw `bson:"fullDocumentBeforeChange"`
}

// ResumeTokenStore remembers how far each stream has been processed.
type ResumeTokenStore interface {
	// LoadToken returns nil when the stream has never been processed.
	LoadToken(ctx context.Context, stream string) (bson.Raw, error)
	SaveToken(ctx context.Context, stream string, token bson.Raw) error
}

// MongoResumeTokenStore keeps resume tokens in the "stream_tokens" collection,
// _id = stream name.
type MongoResumeTokenStore struct {
	col *mongo.Collection
}

func NewMongoResumeTokenStore(db *mongo.Database) *MongoResumeTokenStore {
	return &MongoResumeTokenStore{col: db.Collection("stream_tokens")}
}

func (s *MongoResumeTokenStore) LoadToken(ctx context.Context, stream string) (bson.Raw, error) {
	var doc struct {
		Token bson.Raw `bson:"token"`
	}
	err := s.col.FindOne(ctx, bson.M{"_id": stream}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Token, nil
}

func (s *MongoResumeTokenStore) SaveToken(ctx context.Context, stream string, token bson.Raw) error {
	_, err := s.col.UpdateOne(
		ctx,
		bson.M{"_id": stream},
		bson.M{"$set": bson.M{"token": token}},
		options.Update().SetUpsert(true),
	)
	return err
}

// ChangeStreamSource feeds the reactors from MongoDB change streams instead
// of Eventarc pushes. Pre-images must be enabled on the bathrooms collection
// (changeStreamPreAndPostImages) for validation diffs to work.
//
// The resume token is saved only after an event is handled. A storage
// failure stops the source without saving, so the next start replays the
// failed event.
type ChangeStreamSource struct {
	db       *mongo.Database
	reactors *Reactors
	tokens   ResumeTokenStore
	logger   *slog.Logger
}

func NewChangeStreamSource(db *mongo.Database, reactors *Reactors, tokens ResumeTokenStore, logger *slog.Logger) *ChangeStreamSource {
	return &ChangeStreamSource{db: db, reactors: reactors, tokens: tokens, logger: logger}
}

// Run watches bathrooms and ratings until ctx is done or a stream fails.
func (s *ChangeStreamSource) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.watch(gctx, "bathrooms", s.handleBathroom) })
	g.Go(func() error { return s.watch(gctx, "ratings", s.handleRating) })
	return g.Wait()
}

type changeHandler func(context.Context, changeEvent) error

func (s *ChangeStreamSource) watch(ctx context.Context, collection string, handle changeHandler) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"operationType": bson.M{"$in": bson.A{"insert", "update", "replace"}}}}},
	}
	opts := options.ChangeStream().
		SetFullDocument(options.UpdateLookup).
		SetFullDocumentBeforeChange(options.WhenAvailable)

	token, err := s.tokens.LoadToken(ctx, collection)
	if err != nil {
		return fmt.Errorf("load resume token %s: %w", collection, err)
	}
	if token != nil {
		opts.SetStartAfter(token)
	}

	cs, err := s.db.Collection(collection).Watch(ctx, pipeline, opts)
	if err != nil {
		return fmt.Errorf("watch %s: %w", collection, err)
	}
	defer cs.Close(context.Background())

	resolveLogger(s.logger).Info("watching change stream", "collection", collection, "resumed", token != nil)
	for cs.Next(ctx) {
		var ev changeEvent
		if err := cs.Decode(&ev); err != nil {
			resolveLogger(s.logger).Warn("undecodable change event", "collection", collection, "error", err)
			ev = changeEvent{}
		}
		if err := s.dispatch(ctx, collection, ev, cs.ResumeToken(), handle); err != nil {
			return err
		}
	}
	if err := cs.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("change stream %s: %w", collection, err)
	}
	return nil
}

// dispatch handles one event and then records its token. A handler error
// leaves the token where it was.
func (s *ChangeStreamSource) dispatch(ctx context.Context, collection string, ev changeEvent, token bson.Raw, handle changeHandler) error {
	if ev.OperationType != "" {
		if err := handle(ctx, ev); err != nil {
			return fmt.Errorf("%s event %s: %w", collection, ev.DocumentKey.ID, err)
		}
	}
	if err := s.tokens.SaveToken(ctx, collection, token); err != nil {
		return fmt.Errorf("save resume token %s: %w", collection, err)
	}
	return nil
}

func (s *ChangeStreamSource) handleBathroom(ctx context.Context, ev changeEvent) error {
	logger := resolveLogger(s.logger).With("bathroom_id", ev.DocumentKey.ID, "operation", ev.OperationType)

	after, err := decodeRaw[models.Bathroom](ev.FullDocument)
	if err != nil {
		logger.Warn("undecodable bathroom document", "error", err)
		return nil
	}

	if ev.OperationType == "insert" {
		_, err := s.reactors.OnBathroomCreated(ctx, ev.DocumentKey.ID, after)
		return err
	}

	if ev.FullDocumentBeforeChange == nil {
		logger.Warn("bathroom update without pre-image, skipping")
		return nil
	}
	before, err := decodeRaw[models.Bathroom](ev.FullDocumentBeforeChange)
	if err != nil {
		logger.Warn("undecodable bathroom pre-image", "error", err)
		return nil
	}
	report, err := s.reactors.OnBathroomUpdated(ctx, ev.DocumentKey.ID, before, after)
	if err != nil && report.Failed() < report.Attempted() {
		// Replaying would pay the validators that succeeded a second time.
		logger.Error("validation awards partially failed, not replaying",
			"failed", report.Failed(),
			"attempted", report.Attempted(),
			"error", err,
		)
		return nil
	}
	return err
}

func (s *ChangeStreamSource) handleRating(ctx context.Context, ev changeEvent) error {
	if ev.OperationType != "insert" {
		return nil
	}
	rt, err := decodeRaw[models.Rating](ev.FullDocument)
	if err != nil {
		resolveLogger(s.logger).Warn("undecodable rating document", "rating_id", ev.DocumentKey.ID, "error", err)
		return nil
	}
	_, err = s.reactors.OnRatingCreated(ctx, ev.DocumentKey.ID, rt)
	return err
}

// decodeRaw returns nil for an absent document.
func decodeRaw[T any](raw bson.Raw) (*T, error) {
	if raw == nil {
		return nil, nil
	}
	var out T
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
