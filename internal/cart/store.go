package cart

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/models"
)

var (
	// ErrNotFound is returned by Store.FindActive when the key has no active cart.
	ErrNotFound = errors.New("cart: no active cart")
	// ErrRevisionConflict is returned when a write raced with another writer.
	ErrRevisionConflict = errors.New("cart: revision conflict")
)

// Key identifies a cart owner. User takes precedence when both are set.
type Key struct {
	User      string
	SessionID string
}

func NewKey(user, sessionID string) Key {
	user = strings.TrimSpace(user)
	sessionID = strings.TrimSpace(sessionID)
	if user != "" {
		return Key{User: user}
	}
	return Key{SessionID: sessionID}
}

func (k Key) IsZero() bool {
	return k.User == "" && k.SessionID == ""
}

func (k Key) String() string {
	if k.User != "" {
		return "user:" + k.User
	}
	return "session:" + k.SessionID
}

// Store persists carts.
//
// Update and Delete must only succeed when the stored revision equals
// cart.Revision; on success Update stores and sets cart.Revision+1. Insert
// must fail with ErrRevisionConflict if the key already has an active cart.
type Store interface {
	FindActive(ctx context.Context, key Key) (*models.Cart, error)
	Insert(ctx context.Context, cart *models.Cart) error
	Update(ctx context.Context, cart *models.Cart) error
	Delete(ctx context.Context, cart *models.Cart) error
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
