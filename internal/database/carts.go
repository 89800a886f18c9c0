package database

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/cart"
	"storefront/internal/models"
)

// CartStore is the MongoDB cart.Store. Every write is conditional on the
// revision the caller read.
type CartStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewCartStore(db *mongo.Database) *CartStore {
	return &CartStore{client: db.Client(), coll: db.Collection(cartsCollection)}
}

func (s *CartStore) FindActive(ctx context.Context, key cart.Key) (*models.Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var c models.Cart
	err := s.coll.FindOne(ctx, activeFilter(key)).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, cart.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CartStore) Insert(ctx context.Context, c *models.Cart) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	c.Revision = 0

	if _, err := s.coll.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return cart.ErrRevisionConflict
		}
		return err
	}
	return nil
}

func (s *CartStore) Update(ctx context.Context, c *models.Cart) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	expected := c.Revision
	next := *c
	next.Revision = expected + 1

	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": c.ID, "revision": expected}, next)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return cart.ErrRevisionConflict
		}
		return err
	}
	if res.MatchedCount == 0 {
		return cart.ErrRevisionConflict
	}
	c.Revision = next.Revision
	return nil
}

func (s *CartStore) Delete(ctx context.Context, c *models.Cart) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": c.ID, "revision": c.Revision})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return cart.ErrRevisionConflict
	}
	return nil
}

// WithTransaction runs fn in a multi-document transaction. The context passed
// to fn carries the session, so store calls made with it join the transaction.
func (s *CartStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}

func activeFilter(key cart.Key) bson.M {
	filter := bson.M{"status": models.CartActive}
	if key.User != "" {
		filter["user"] = key.User
	} else {
		filter["sessionId"] = key.SessionID
	}
	return filter
}
