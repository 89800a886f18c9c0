package cart_test

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/apperror"
	"storefront/internal/cart"
	"storefront/internal/cart/carttest"
	"storefront/internal/models"
)

func price(v float64) *float64 { return &v }
func qty(v int) *int           { return &v }

func assertTotal(t *testing.T, c *models.Cart) {
	t.Helper()
	if want := cart.Total(c.Items); c.TotalPrice != want {
		t.Fatalf("totalPrice %v does not match lines (%v)", c.TotalPrice, want)
	}
}

func TestAddItemMergesSameName(t *testing.T) {
	ctx := context.Background()
	engine := cart.NewEngine(carttest.NewStore())
	key := cart.NewKey("", "s1")

	if _, err := engine.AddItem(ctx, key, cart.ItemInput{Name: "Pen", Price: price(2), Quantity: qty(3)}); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	c, err := engine.AddItem(ctx, key, cart.ItemInput{Name: "Pen", Price: price(2), Quantity: qty(2)})
	if err != nil {
		t.Fatalf("second add failed: %v", err)
	}

	if len(c.Items) != 1 || c.Items[0].Quantity != 5 {
		t.Fatalf("expected one Pen line with quantity 5, got %+v", c.Items)
	}
	if c.TotalPrice != 10 {
		t.Fatalf("expected total 10, got %v", c.TotalPrice)
	}
	assertTotal(t, c)
}

func TestAddItemNewNameAppendsOneLine(t *testing.T) {
	ctx := context.Background()
	engine := cart.NewEngine(carttest.NewStore())
	key := cart.NewKey("u1", "")

	engine.AddItem(ctx, key, cart.ItemInput{Name: "Pen", Price: price(2)})
	c, err := engine.AddItem(ctx, key, cart.ItemInput{Name: "Ink", Price: price(4.25), Image: "ink.png"})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if len(c.Items) != 2 {
		t.Fatalf("expected 2 lines, got %+v", c.Items)
	}
	if c.Items[1].Quantity != 1 || c.Items[1].Image != "ink.png" {
		t.Fatalf("unexpected appended line %+v", c.Items[1])
	}
	assertTotal(t, c)
}

func TestAddItemValidation(t *testing.T) {
	ctx := context.Background()
	engine := cart.NewEngine(carttest.NewStore())
	key := cart.NewKey("", "s1")

	cases := map[string]cart.ItemInput{
		"missing name":      {Price: price(1)},
		"missing price":     {Name: "Pen"},
		"negative price":    {Name: "Pen", Price: price(-1)},
		"zero quantity":     {Name: "Pen", Price: price(1), Quantity: qty(0)},
		"negative quantity": {Name: "Pen", Price: price(1), Quantity: qty(-2)},
	}
	for name, in := range cases {
		if _, err := engine.AddItem(ctx, key, in); !apperror.Is(err, apperror.BadRequest) {
			t.Fatalf("%s: expected bad_request, got %v", name, err)
		}
	}

	if _, err := engine.AddItem(ctx, cart.Key{}, cart.ItemInput{Name: "Pen", Price: price(1)}); !apperror.Is(err, apperror.BadRequest) {
		t.Fatalf("expected bad_request without a key, got %v", err)
	}
}

func TestGetUnknownSessionReturnsEmptyView(t *testing.T) {
	engine := cart.NewEngine(carttest.NewStore())

	c, err := engine.Get(context.Background(), cart.NewKey("", "unknown"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Items == nil || len(c.Items) != 0 || c.TotalPrice != 0 {
		t.Fatalf("expected empty view, got %+v", c)
	}
}

func TestUpdateQuantitySetsValue(t *testing.T) {
	ctx := context.Background()
	engine := cart.NewEngine(carttest.NewStore())
	key := cart.NewKey("", "s1")

	if _, err := engine.UpdateQuantity(ctx, key, "Pen", 2); !apperror.Is(err, apperror.NotFound) {
		t.Fatalf("expected not_found without a cart, got %v", err)
	}

	engine.AddItem(ctx, key, cart.ItemInput{Name: "Pen", Price: price(2), Quantity: qty(3)})

	c, err := engine.UpdateQuantity(ctx, key, "Pen", 7)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if c.Items[0].Quantity != 7 || c.TotalPrice != 14 {
		t.Fatalf("expected quantity 7 total 14, got %+v", c)
	}

	if _, err := engine.UpdateQuantity(ctx, key, "Ink", 1); !apperror.Is(err, apperror.NotFound) {
		t.Fatalf("expected not_found for missing line, got %v", err)
	}
	if _, err := engine.UpdateQuantity(ctx, key, "Pen", 0); !apperror.Is(err, apperror.BadRequest) {
		t.Fatalf("expected bad_request for zero quantity, got %v", err)
	}
}

func TestRemoveItem(t *testing.T) {
	ctx := context.Background()
	engine := cart.NewEngine(carttest.NewStore())
	key := cart.NewKey("", "s1")

	if _, err := engine.RemoveItem(ctx, key, "Pen"); !apperror.Is(err, apperror.NotFound) {
		t.Fatalf("expected not_found without a cart, got %v", err)
	}

	engine.AddItem(ctx, key, cart.ItemInput{Name: "Pen", Price: price(2), Quantity: qty(3)})
	engine.AddItem(ctx, key, cart.ItemInput{Name: "Ink", Price: price(4)})

	c, err := engine.RemoveItem(ctx, key, "Eraser")
	if err != nil {
		t.Fatalf("removing an absent name should succeed, got %v", err)
	}
	if len(c.Items) != 2 || c.TotalPrice != 10 {
		t.Fatalf("cart changed after removing absent name: %+v", c)
	}

	c, err = engine.RemoveItem(ctx, key, "Pen")
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if len(c.Items) != 1 || c.Items[0].Name != "Ink" || c.TotalPrice != 4 {
		t.Fatalf("unexpected cart after remove: %+v", c)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	engine := cart.NewEngine(carttest.NewStore())
	key := cart.NewKey("u1", "")

	if _, err := engine.Clear(ctx, key); !apperror.Is(err, apperror.NotFound) {
		t.Fatalf("expected not_found without a cart, got %v", err)
	}

	engine.AddItem(ctx, key, cart.ItemInput{Name: "Pen", Price: price(2), Quantity: qty(3)})
	c, err := engine.Clear(ctx, key)
	if err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if len(c.Items) != 0 || c.TotalPrice != 0 {
		t.Fatalf("expected empty cart, got %+v", c)
	}
}

func TestMergeWithoutGuestCartIsNoop(t *testing.T) {
	ctx := context.Background()
	store := carttest.NewStore()
	engine := cart.NewEngine(store)

	engine.AddItem(ctx, cart.NewKey("u1", ""), cart.ItemInput{Name: "Pen", Price: price(2)})

	merged, err := engine.Merge(ctx, "u1", "s-none")
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if merged != nil {
		t.Fatalf("expected nil result for missing guest cart, got %+v", merged)
	}
	if n := len(store.All()); n != 1 {
		t.Fatalf("expected store untouched, found %d carts", n)
	}
}

func TestMergeRequiresBothKeys(t *testing.T) {
	engine := cart.NewEngine(carttest.NewStore())
	if _, err := engine.Merge(context.Background(), "", "s1"); !apperror.Is(err, apperror.BadRequest) {
		t.Fatalf("expected bad_request, got %v", err)
	}
	if _, err := engine.Merge(context.Background(), "u1", " "); !apperror.Is(err, apperror.BadRequest) {
		t.Fatalf("expected bad_request, got %v", err)
	}
}

func TestMergeReownsGuestCart(t *testing.T) {
	ctx := context.Background()
	store := carttest.NewStore()
	engine := cart.NewEngine(store)

	guest, _ := engine.AddItem(ctx, cart.NewKey("", "s1"), cart.ItemInput{Name: "Pen", Price: price(2), Quantity: qty(3)})

	merged, err := engine.Merge(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if merged.ID != guest.ID {
		t.Fatal("expected the guest cart to be re-owned, not copied")
	}
	if merged.User != "u1" || merged.SessionID != "" {
		t.Fatalf("unexpected ownership user=%q session=%q", merged.User, merged.SessionID)
	}
	if len(merged.Items) != 1 || merged.Items[0].Quantity != 3 {
		t.Fatalf("expected guest lines preserved, got %+v", merged.Items)
	}

	all := store.All()
	if len(all) != 1 {
		t.Fatalf("expected exactly one cart, got %d", len(all))
	}
	if c, _ := engine.Get(ctx, cart.NewKey("", "s1")); len(c.Items) != 0 {
		t.Fatal("session key still resolves to a cart after merge")
	}
}

func TestMergeCombinesBothCarts(t *testing.T) {
	ctx := context.Background()
	store := carttest.NewStore()
	engine := cart.NewEngine(store)

	userKey := cart.NewKey("u1", "")
	guestKey := cart.NewKey("", "s1")

	engine.AddItem(ctx, userKey, cart.ItemInput{Name: "Pen", Price: price(2), Quantity: qty(1)})
	engine.AddItem(ctx, userKey, cart.ItemInput{Name: "Ink", Price: price(4), Quantity: qty(1)})
	guest, _ := engine.AddItem(ctx, guestKey, cart.ItemInput{Name: "Pen", Price: price(2), Quantity: qty(2)})
	engine.AddItem(ctx, guestKey, cart.ItemInput{Name: "Ruler", Price: price(1), Quantity: qty(3)})

	merged, err := engine.Merge(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	if len(merged.Items) != 3 {
		t.Fatalf("expected 3 lines, got %+v", merged.Items)
	}
	quantities := map[string]int{}
	for _, item := range merged.Items {
		quantities[item.Name] = item.Quantity
	}
	if quantities["Pen"] != 3 || quantities["Ink"] != 1 || quantities["Ruler"] != 3 {
		t.Fatalf("unexpected quantities %v", quantities)
	}
	if merged.TotalPrice != 13 {
		t.Fatalf("expected total 13, got %v", merged.TotalPrice)
	}
	assertTotal(t, merged)

	if _, ok := store.Get(guest.ID); ok {
		t.Fatal("guest cart still exists after merge")
	}
}

func TestCheckoutTransitionsOnce(t *testing.T) {
	ctx := context.Background()
	store := carttest.NewStore()
	engine := cart.NewEngine(store)
	key := cart.NewKey("", "s1")

	if _, err := engine.Checkout(ctx, key); !apperror.Is(err, apperror.NotFound) {
		t.Fatalf("expected not_found without a cart, got %v", err)
	}

	added, _ := engine.AddItem(ctx, key, cart.ItemInput{Name: "Pen", Price: price(2)})
	c, err := engine.Checkout(ctx, key)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if c.Status != models.CartOrdered {
		t.Fatalf("expected ordered, got %s", c.Status)
	}

	if _, err := engine.Checkout(ctx, key); !apperror.Is(err, apperror.NotFound) {
		t.Fatalf("expected not_found on second checkout, got %v", err)
	}

	stored, ok := store.Get(added.ID)
	if !ok || stored.Status != models.CartOrdered {
		t.Fatalf("expected stored cart to stay ordered, got %+v", stored)
	}

	fresh, err := engine.AddItem(ctx, key, cart.ItemInput{Name: "Ink", Price: price(4)})
	if err != nil {
		t.Fatalf("add after checkout failed: %v", err)
	}
	if fresh.ID == added.ID || len(fresh.Items) != 1 {
		t.Fatalf("expected a new active cart after checkout, got %+v", fresh)
	}
}

// racingStore lets another writer commit between the engine's read and write.
type racingStore struct {
	*carttest.Store
	races int
}

func (r *racingStore) Update(ctx context.Context, c *models.Cart) error {
	if r.races > 0 {
		r.races--
		current, err := r.Store.FindActive(ctx, cart.Key{User: c.User, SessionID: c.SessionID})
		if err != nil {
			return err
		}
		current.Items = append(current.Items, models.CartItem{Name: "Concurrent", Price: 1, Quantity: 1})
		current.TotalPrice = cart.Total(current.Items)
		if err := r.Store.Update(ctx, current); err != nil {
			return err
		}
	}
	return r.Store.Update(ctx, c)
}

func TestConcurrentWriteIsRetriedNotLost(t *testing.T) {
	ctx := context.Background()
	store := &racingStore{Store: carttest.NewStore()}
	engine := cart.NewEngine(store)
	key := cart.NewKey("", "s1")

	engine.AddItem(ctx, key, cart.ItemInput{Name: "Pen", Price: price(2)})

	store.races = 1
	c, err := engine.AddItem(ctx, key, cart.ItemInput{Name: "Ink", Price: price(4)})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	names := map[string]bool{}
	for _, item := range c.Items {
		names[item.Name] = true
	}
	if !names["Pen"] || !names["Ink"] || !names["Concurrent"] {
		t.Fatalf("an update was lost: %+v", c.Items)
	}
	assertTotal(t, c)
}

func TestPersistentConflictSurfacesAsConflict(t *testing.T) {
	ctx := context.Background()
	store := &racingStore{Store: carttest.NewStore()}
	engine := cart.NewEngine(store, cart.WithMaxAttempts(2))
	key := cart.NewKey("", "s1")

	engine.AddItem(ctx, key, cart.ItemInput{Name: "Pen", Price: price(2)})

	store.races = 5
	_, err := engine.AddItem(ctx, key, cart.ItemInput{Name: "Ink", Price: price(4)})
	if !apperror.Is(err, apperror.Conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !errors.Is(err, cart.ErrRevisionConflict) {
		t.Fatal("expected the revision conflict to be wrapped")
	}
}

// insertRaceStore creates the same key's cart just before the engine's first
// insert lands.
type insertRaceStore struct {
	*carttest.Store
	races   int
	inserts int
}

func (r *insertRaceStore) Insert(ctx context.Context, c *models.Cart) error {
	r.inserts++
	if r.races > 0 {
		r.races--
		winner := &models.Cart{
			User:       c.User,
			SessionID:  c.SessionID,
			Items:      []models.CartItem{{Name: "Concurrent", Price: 1, Quantity: 1}},
			TotalPrice: 1,
			Status:     models.CartActive,
		}
		if err := r.Store.Insert(ctx, winner); err != nil {
			return err
		}
	}
	return r.Store.Insert(ctx, c)
}

func TestRacingFirstInsertRetriesAsUpdate(t *testing.T) {
	ctx := context.Background()
	store := &insertRaceStore{Store: carttest.NewStore(), races: 1}
	engine := cart.NewEngine(store)
	key := cart.NewKey("", "s1")

	c, err := engine.AddItem(ctx, key, cart.ItemInput{Name: "Pen", Price: price(2)})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if store.inserts != 1 {
		t.Fatalf("expected the retry to update, not insert again; saw %d inserts", store.inserts)
	}

	names := map[string]bool{}
	for _, item := range c.Items {
		names[item.Name] = true
	}
	if !names["Pen"] || !names["Concurrent"] {
		t.Fatalf("expected both writers' lines, got %+v", c.Items)
	}
	if c.Revision != 1 {
		t.Fatalf("expected the retry to update revision 0, got %d", c.Revision)
	}
	assertTotal(t, c)

	if n := len(store.All()); n != 1 {
		t.Fatalf("expected one active cart for the session, found %d", n)
	}
}
