// Package cart implements the shopping cart rules: line merging by name,
// derived totals, guest-to-user merge and checkout, over a revisioned Store.
package cart

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/models"
)

const defaultMaxAttempts = 3

// ItemInput is an add request. Nil Price means the caller sent no price; nil
// Quantity defaults to one.
type ItemInput struct {
	Name     string
	Price    *float64
	Image    string
	Quantity *int
}

type Engine struct {
	store       Store
	now         func() time.Time
	maxAttempts int
}

type Option func(*Engine)

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMaxAttempts bounds how many times a mutation is retried after a
// revision conflict.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		now:         time.Now,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) AddItem(ctx context.Context, key Key, in ItemInput) (*models.Cart, error) {
	if key.IsZero() {
		return nil, apperror.New(apperror.BadRequest, "user or sessionId is required")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || in.Price == nil {
		return nil, apperror.New(apperror.BadRequest, "name and price are required")
	}
	if *in.Price < 0 {
		return nil, apperror.New(apperror.BadRequest, "price must be zero or greater")
	}
	quantity := 1
	if in.Quantity != nil {
		quantity = *in.Quantity
	}
	if quantity < 1 {
		return nil, apperror.New(apperror.BadRequest, "quantity must be at least 1")
	}

	item := models.CartItem{
		Name:     name,
		Price:    *in.Price,
		Image:    strings.TrimSpace(in.Image),
		Quantity: quantity,
	}

	cart, err := e.mutate(ctx, key, true, func(c *models.Cart) error {
		c.Items = addLine(c.Items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[CART] [INFO] %s added %dx %q", key, quantity, name)
	return cart, nil
}

// Get returns the active cart for key, or an empty unsaved view when there is
// none.
func (e *Engine) Get(ctx context.Context, key Key) (*models.Cart, error) {
	if key.IsZero() {
		return nil, apperror.New(apperror.BadRequest, "user or sessionId is required")
	}
	cart, err := e.store.FindActive(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return emptyCart(key), nil
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.ServerError, "cart lookup failed", err)
	}
	normalize(cart)
	return cart, nil
}

func (e *Engine) UpdateQuantity(ctx context.Context, key Key, name string, quantity int) (*models.Cart, error) {
	if key.IsZero() {
		return nil, apperror.New(apperror.BadRequest, "user or sessionId is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.New(apperror.BadRequest, "name is required")
	}
	if quantity < 1 {
		return nil, apperror.New(apperror.BadRequest, "quantity must be at least 1")
	}
	return e.mutate(ctx, key, false, func(c *models.Cart) error {
		if !setQuantity(c.Items, name, quantity) {
			return apperror.New(apperror.NotFound, "item not found in cart")
		}
		return nil
	})
}

// RemoveItem drops every line named name. A missing name leaves the cart
// unchanged.
func (e *Engine) RemoveItem(ctx context.Context, key Key, name string) (*models.Cart, error) {
	if key.IsZero() {
		return nil, apperror.New(apperror.BadRequest, "user or sessionId is required")
	}
	name = strings.TrimSpace(name)
	return e.mutate(ctx, key, false, func(c *models.Cart) error {
		c.Items = removeLines(c.Items, name)
		return nil
	})
}

func (e *Engine) Clear(ctx context.Context, key Key) (*models.Cart, error) {
	if key.IsZero() {
		return nil, apperror.New(apperror.BadRequest, "user or sessionId is required")
	}
	return e.mutate(ctx, key, false, func(c *models.Cart) error {
		c.Items = []models.CartItem{}
		return nil
	})
}

// Checkout moves the active cart to ordered. A cart that was already checked
// out is no longer active, so a repeat call reports NotFound.
func (e *Engine) Checkout(ctx context.Context, key Key) (*models.Cart, error) {
	if key.IsZero() {
		return nil, apperror.New(apperror.BadRequest, "user or sessionId is required")
	}
	cart, err := e.mutate(ctx, key, false, func(c *models.Cart) error {
		c.Status = models.CartOrdered
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[CART] [INFO] %s checked out cart %s", key, cart.ID.Hex())
	return cart, nil
}

// Merge folds the guest cart of sessionID into the active cart of user. It
// returns nil when the session has no active cart.
func (e *Engine) Merge(ctx context.Context, user, sessionID string) (*models.Cart, error) {
	user = strings.TrimSpace(user)
	sessionID = strings.TrimSpace(sessionID)
	if user == "" || sessionID == "" {
		return nil, apperror.New(apperror.BadRequest, "user and sessionId are required")
	}
	userKey := Key{User: user}
	guestKey := Key{SessionID: sessionID}

	var result *models.Cart
	err := e.retry(ctx, "merge", func() error {
		return e.store.WithTransaction(ctx, func(ctx context.Context) error {
			result = nil

			guest, err := e.store.FindActive(ctx, guestKey)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			normalize(guest)

			owned, err := e.store.FindActive(ctx, userKey)
			if errors.Is(err, ErrNotFound) {
				guest.User = user
				guest.SessionID = ""
				guest.TotalPrice = Total(guest.Items)
				guest.UpdatedAt = e.now()
				if err := e.store.Update(ctx, guest); err != nil {
					return err
				}
				result = guest
				return nil
			}
			if err != nil {
				return err
			}
			normalize(owned)

			owned.Items = mergeLines(owned.Items, guest.Items)
			owned.TotalPrice = Total(owned.Items)
			owned.UpdatedAt = e.now()
			if err := e.store.Update(ctx, owned); err != nil {
				return err
			}
			if err := e.store.Delete(ctx, guest); err != nil {
				return err
			}
			result = owned
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if result == nil {
		log.Printf("[CART] [INFO] merge %s into user %s: no guest cart", sessionID, user)
	} else {
		log.Printf("[CART] [INFO] merged session %s into user %s (%d lines)", sessionID, user, len(result.Items))
	}
	return result, nil
}

// mutate loads (or creates) the active cart for key, applies fn, recomputes
// the total and writes it back with a revision check.
func (e *Engine) mutate(ctx context.Context, key Key, create bool, fn func(*models.Cart) error) (*models.Cart, error) {
	var result *models.Cart
	err := e.retry(ctx, key.String(), func() error {
		cart, err := e.store.FindActive(ctx, key)
		isNew := false
		switch {
		case errors.Is(err, ErrNotFound):
			if !create {
				return apperror.New(apperror.NotFound, "cart not found")
			}
			cart = newCart(key, e.now())
			isNew = true
		case err != nil:
			return err
		}
		normalize(cart)

		if err := fn(cart); err != nil {
			return err
		}
		cart.TotalPrice = Total(cart.Items)
		cart.UpdatedAt = e.now()

		if isNew {
			err = e.store.Insert(ctx, cart)
		} else {
			err = e.store.Update(ctx, cart)
		}
		if err != nil {
			return err
		}
		result = cart
		return nil
	})
	return result, err
}

// retry runs op until it succeeds, fails with something other than a
// revision conflict, or runs out of attempts. Errors leave classified.
func (e *Engine) retry(ctx context.Context, label string, op func() error) error {
	var err error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		err = op()
		if !errors.Is(err, ErrRevisionConflict) {
			break
		}
		log.Printf("[CART] [WARN] %s revision conflict (attempt %d/%d)", label, attempt, e.maxAttempts)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return apperror.Wrap(apperror.ServerError, "request cancelled", ctxErr)
		}
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRevisionConflict):
		return apperror.Wrap(apperror.Conflict, "cart was modified concurrently, retry the request", err)
	default:
		var appErr *apperror.Error
		if errors.As(err, &appErr) {
			return err
		}
		log.Printf("[CART] [ERROR] %s store failure: %v", label, err)
		return apperror.Wrap(apperror.ServerError, "cart store error", err)
	}
}

func newCart(key Key, now time.Time) *models.Cart {
	return &models.Cart{
		User:      key.User,
		SessionID: key.SessionID,
		Items:     []models.CartItem{},
		Status:    models.CartActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func emptyCart(key Key) *models.Cart {
	return &models.Cart{
		User:      key.User,
		SessionID: key.SessionID,
		Items:     []models.CartItem{},
		Status:    models.CartActive,
	}
}

func normalize(c *models.Cart) {
	if c.Items == nil {
		c.Items = []models.CartItem{}
	}
}
