// Package carttest provides an in-memory cart.Store with the same revision
// semantics as the MongoDB store.
package carttest

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/cart"
	"storefront/internal/models"
)

type Store struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	carts map[primitive.ObjectID]models.Cart
}

func NewStore() *Store {
	return &Store{carts: make(map[primitive.ObjectID]models.Cart)}
}

func (s *Store) FindActive(_ context.Context, key cart.Key) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, ok := s.findActiveLocked(key); ok {
		out := stored.Clone()
		return &out, nil
	}
	return nil, cart.ErrNotFound
}

func (s *Store) Insert(_ context.Context, c *models.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Status == models.CartActive {
		if _, exists := s.findActiveLocked(cart.Key{User: c.User, SessionID: c.SessionID}); exists {
			return cart.ErrRevisionConflict
		}
	}
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	c.Revision = 0
	s.carts[c.ID] = c.Clone()
	return nil
}

func (s *Store) Update(_ context.Context, c *models.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.carts[c.ID]
	if !ok || stored.Revision != c.Revision {
		return cart.ErrRevisionConflict
	}
	if c.Status == models.CartActive {
		if other, exists := s.findActiveLocked(cart.Key{User: c.User, SessionID: c.SessionID}); exists && other.ID != c.ID {
			return cart.ErrRevisionConflict
		}
	}
	c.Revision++
	s.carts[c.ID] = c.Clone()
	return nil
}

func (s *Store) Delete(_ context.Context, c *models.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.carts[c.ID]
	if !ok || stored.Revision != c.Revision {
		return cart.ErrRevisionConflict
	}
	delete(s.carts, c.ID)
	return nil
}

// WithTransaction serializes transactions and rolls back every write made by
// fn when it fails.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snapshot := s.snapshot()
	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.carts = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// All returns a copy of every stored cart, in no particular order.
func (s *Store) All() []models.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Cart, 0, len(s.carts))
	for _, c := range s.carts {
		out = append(out, c.Clone())
	}
	return out
}

// Get returns the stored cart with id regardless of status.
func (s *Store) Get(id primitive.ObjectID) (models.Cart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[id]
	return c.Clone(), ok
}

func (s *Store) findActiveLocked(key cart.Key) (models.Cart, bool) {
	for _, c := range s.carts {
		if c.Status != models.CartActive {
			continue
		}
		if key.User != "" && c.User == key.User {
			return c, true
		}
		if key.User == "" && key.SessionID != "" && c.SessionID == key.SessionID {
			return c, true
		}
	}
	return models.Cart{}, false
}

func (s *Store) snapshot() map[primitive.ObjectID]models.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[primitive.ObjectID]models.Cart, len(s.carts))
	for id, c := range s.carts {
		out[id] = c.Clone()
	}
	return out
}
