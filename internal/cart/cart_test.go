package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore accepts loads but rejects every save.
type failingStore struct{ saves int }

func (f *failingStore) Load(context.Context, string) (map[uint64]int, error) {
	return map[uint64]int{}, nil
}
func (f *failingStore) Save(context.Context, string, map[uint64]int) error {
	f.saves++
	return errors.New("disk full")
}

func TestTotalCountMatchesQuantities(t *testing.T) {
	ctx := context.Background()
	c := Load(ctx, NewMemoryStore(), "dev-1")

	c.Add(ctx, 1)
	c.Add(ctx, 1)
	c.Add(ctx, 2)
	c.Add(ctx, 3)
	c.Remove(ctx, 3)

	sum := 0
	for _, q := range c.Items() {
		sum += q
		assert.GreaterOrEqual(t, q, 1, "stored quantity must never drop below 1")
	}
	assert.Equal(t, sum, c.TotalCount())
	assert.Equal(t, 3, c.TotalCount())
}

func TestAddThenRemoveRestoresPriorState(t *testing.T) {
	ctx := context.Background()
	c := Load(ctx, NewMemoryStore(), "dev-1")
	c.Add(ctx, 7)
	c.Add(ctx, 7)
	before := c.Items()

	c.Add(ctx, 9)
	c.Remove(ctx, 9)

	assert.Equal(t, before, c.Items())
}

func TestRemoveDeletesAtZero(t *testing.T) {
	ctx := context.Background()
	c := Load(ctx, NewMemoryStore(), "dev-1")
	c.Add(ctx, 5)
	c.Remove(ctx, 5)

	assert.Zero(t, c.Quantity(5))
	_, present := c.Items()[5]
	assert.False(t, present, "entry must be deleted, not stored as zero")

	// Removing an absent book stays a no-op.
	c.Remove(ctx, 5)
	assert.Zero(t, c.TotalCount())
}

func TestMutationsPersistAcrossLoads(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	c := Load(ctx, store, "dev-1")
	c.Add(ctx, 4)
	c.Add(ctx, 4)
	c.Add(ctx, 8)

	again := Load(ctx, store, "dev-1")
	assert.Equal(t, map[uint64]int{4: 2, 8: 1}, again.Items())

	again.Clear(ctx)
	third := Load(ctx, store, "dev-1")
	assert.Zero(t, third.TotalCount())
}

func TestCartsAreIsolatedPerDevice(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	Load(ctx, store, "dev-a").Add(ctx, 1)

	other := Load(ctx, store, "dev-b")
	assert.Zero(t, other.TotalCount())
}

func TestSaveFailureDoesNotDisturbMemoryState(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{}
	c := Load(ctx, store, "dev-1")

	c.Add(ctx, 1)
	c.Add(ctx, 1)
	c.Remove(ctx, 1)

	require.Equal(t, 3, store.saves, "every mutation attempts a save")
	assert.Equal(t, 1, c.TotalCount(), "in-memory state stays correct when saves fail")
}
