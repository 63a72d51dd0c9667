// Package cart implements the client cart: a mapping from book ID to
// quantity, keyed by the caller's device identity.  Every mutation
// persists the full mapping through a Store.  Persistence failures are
// logged and swallowed so a flaky store never breaks the in-memory
// session state; the caller keeps a correct cart until the process
// exits.
package cart

import (
	"context"
	"log"
)

// Store persists the full cart mapping for a device key.  Load returns
// an empty map (not an error) when no cart has been saved yet.
type Store interface {
	Load(ctx context.Context, key string) (map[uint64]int, error)
	Save(ctx context.Context, key string, items map[uint64]int) error
}

// Cart holds the per-device quantities.  It is not safe for concurrent
// use; handlers load, mutate and save within a single request.
type Cart struct {
	store Store
	key   string
	items map[uint64]int
}

// Load reads the saved cart for the given device key.  A load failure
// yields an empty cart rather than an error.
func Load(ctx context.Context, store Store, key string) *Cart {
	items, err := store.Load(ctx, key)
	if err != nil {
		log.Printf("cart: load %q failed: %v", key, err)
		items = nil
	}
	if items == nil {
		items = make(map[uint64]int)
	}
	return &Cart{store: store, key: key, items: items}
}

// Add increments the quantity for the given book by one, creating the
// entry when absent, and persists the mapping.
func (c *Cart) Add(ctx context.Context, bookID uint64) {
	c.items[bookID]++
	c.save(ctx)
}

// Remove decrements the quantity for the given book, deleting the
// entry when it would reach zero.  A quantity below one is never
// stored.  Removing an absent book is a no-op.
func (c *Cart) Remove(ctx context.Context, bookID uint64) {
	q, ok := c.items[bookID]
	if !ok {
		return
	}
	if q > 1 {
		c.items[bookID] = q - 1
	} else {
		delete(c.items, bookID)
	}
	c.save(ctx)
}

// Clear empties the cart and persists the empty mapping.
func (c *Cart) Clear(ctx context.Context) {
	c.items = make(map[uint64]int)
	c.save(ctx)
}

// TotalCount returns the sum of all quantities.
func (c *Cart) TotalCount() int {
	total := 0
	for _, q := range c.items {
		total += q
	}
	return total
}

// Quantity returns the current quantity for a book, zero when absent.
func (c *Cart) Quantity(bookID uint64) int { return c.items[bookID] }

// Items returns a copy of the mapping.
func (c *Cart) Items() map[uint64]int {
	out := make(map[uint64]int, len(c.items))
	for id, q := range c.items {
		out[id] = q
	}
	return out
}

// save persists the full mapping.  Errors are logged, never returned:
// losing the cart on a crash is an accepted tradeoff, interrupting the
// user for it is not.
func (c *Cart) save(ctx context.Context) {
	if err := c.store.Save(ctx, c.key, c.items); err != nil {
		log.Printf("cart: save %q failed: %v", c.key, err)
	}
}
