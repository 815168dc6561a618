package checkpoint

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is a Store backed by a MongoDB collection, one document per
// thread id.
type MongoStore struct {
	coll *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

type mongoCheckpoint struct {
	ThreadID  string    `bson:"_id"`
	Workflow  string    `bson:"workflow_name"`
	Step      string    `bson:"step_name"`
	State     []byte    `bson:"state"`
	Reason    string    `bson:"reason"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at,omitempty"`
}

// NewMongoStore creates a MongoStore over the "checkpoints" collection of
// the given database.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection("checkpoints")}
}

func (s *MongoStore) Put(ctx context.Context, ckpt *Checkpoint) error {
	state, err := encodeState(ckpt.State)
	if err != nil {
		return err
	}

	doc := mongoCheckpoint{
		ThreadID:  ckpt.ThreadID,
		Workflow:  ckpt.Workflow,
		Step:      ckpt.Step,
		State:     state,
		Reason:    ckpt.Reason,
		CreatedAt: ckpt.CreatedAt,
		ExpiresAt: ckpt.ExpiresAt,
	}

	_, err = s.coll.ReplaceOne(ctx,
		bson.M{"_id": ckpt.ThreadID},
		doc,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) Get(ctx context.Context, threadID string) (*Checkpoint, error) {
	var doc mongoCheckpoint
	err := s.coll.FindOne(ctx, bson.M{"_id": threadID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	st, err := decodeState(doc.State)
	if err != nil {
		return nil, err
	}

	ckpt := &Checkpoint{
		ThreadID:  doc.ThreadID,
		Workflow:  doc.Workflow,
		Step:      doc.Step,
		State:     st,
		Reason:    doc.Reason,
		CreatedAt: doc.CreatedAt,
		ExpiresAt: doc.ExpiresAt,
	}

	if ckpt.Expired(time.Now()) {
		return nil, ErrNotFound
	}

	return ckpt, nil
}

func (s *MongoStore) Delete(ctx context.Context, threadID string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": threadID})
	return err
}
