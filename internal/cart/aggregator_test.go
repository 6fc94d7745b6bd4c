package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chowline/internal/domain"
	"chowline/internal/logger"
)

type memStore struct {
	saved   map[string]domain.CartSnapshot
	saveErr error
	saves   int
}

func newMemStore() *memStore { return &memStore{saved: map[string]domain.CartSnapshot{}} }

func (m *memStore) Save(_ context.Context, userID string, snap domain.CartSnapshot) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[userID] = snap
	return nil
}

func (m *memStore) Load(_ context.Context, userID string) (domain.CartSnapshot, bool, error) {
	snap, ok := m.saved[userID]
	return snap, ok, nil
}

func (m *memStore) Delete(_ context.Context, userID string) error {
	delete(m.saved, userID)
	return nil
}

func item(id, restaurantID, name string, cents int64) domain.MenuItem {
	return domain.MenuItem{ID: id, RestaurantID: restaurantID, Name: name, UnitPrice: decimal.NewFromInt(cents)}
}

func newAggregator(t *testing.T, store Store) *Aggregator {
	t.Helper()
	return New("u1", store, logger.Nop())
}

func TestAddLineMergesSameMenuItem(t *testing.T) {
	ctx := context.Background()
	a := newAggregator(t, newMemStore())

	require.NoError(t, a.AddLine(ctx, item("bb1", "2", "Burger", 1099), 2, "no onions"))
	require.NoError(t, a.AddLine(ctx, item("bb1", "2", "Burger", 1099), 1, ""))

	lines := a.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
	// no new instructions supplied, prior value kept
	assert.Equal(t, "no onions", lines[0].SpecialInstructions)

	require.NoError(t, a.AddLine(ctx, item("bb1", "2", "Burger", 1099), 1, "extra cheese"))
	lines = a.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 4, lines[0].Quantity)
	assert.Equal(t, "extra cheese", lines[0].SpecialInstructions)
}

func TestAddLineRejectsZeroQuantity(t *testing.T) {
	a := newAggregator(t, newMemStore())
	err := a.AddLine(context.Background(), item("bb1", "2", "Burger", 1099), 0, "")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, a.IsEmpty())
}

func TestRestaurantSwitchClearsCart(t *testing.T) {
	ctx := context.Background()
	a := newAggregator(t, newMemStore())

	require.NoError(t, a.AddLine(ctx, item("bb1", "2", "Burger", 1099), 2, ""))
	require.Equal(t, decimal.NewFromInt(2198).String(), a.Total().String())

	require.NoError(t, a.AddLine(ctx, item("pz9", "1", "Pizza", 1450), 1, ""))

	lines := a.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "pz9", lines[0].MenuItemID)
	assert.Equal(t, "1", a.RestaurantID())
	assert.Equal(t, decimal.NewFromInt(1450).String(), a.Total().String())
}

// For any mutation sequence the cart holds lines from at most one restaurant.
func TestSingleRestaurantInvariant(t *testing.T) {
	ctx := context.Background()
	a := newAggregator(t, newMemStore())

	require.NoError(t, a.AddLine(ctx, item("a1", "1", "Fries", 300), 1, ""))
	require.NoError(t, a.AddLine(ctx, item("b1", "2", "Wings", 900), 2, ""))
	require.NoError(t, a.AddLine(ctx, item("b2", "2", "Soda", 150), 1, ""))
	a.RemoveLine(ctx, "missing")
	require.NoError(t, a.AddLine(ctx, item("c1", "3", "Salad", 700), 1, ""))

	for _, l := range a.Lines() {
		assert.Equal(t, "c1", l.MenuItemID)
	}
	assert.Equal(t, "3", a.RestaurantID())
}

func TestUpdateLineZeroQuantityRemoves(t *testing.T) {
	ctx := context.Background()
	a := newAggregator(t, newMemStore())

	require.NoError(t, a.AddLine(ctx, item("a1", "1", "Fries", 300), 2, ""))
	lineID := a.Lines()[0].LineID

	a.UpdateLine(ctx, lineID, 5, "salt")
	lines := a.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.Equal(t, "salt", lines[0].SpecialInstructions)

	a.UpdateLine(ctx, lineID, 0, "")
	assert.True(t, a.IsEmpty())

	// removing again is a no-op
	a.RemoveLine(ctx, lineID)
	assert.True(t, a.IsEmpty())
}

func TestTotalTracksMutations(t *testing.T) {
	ctx := context.Background()
	a := newAggregator(t, newMemStore())
	assert.True(t, a.Total().IsZero())

	require.NoError(t, a.AddLine(ctx, item("a1", "1", "Fries", 300), 2, ""))
	require.NoError(t, a.AddLine(ctx, item("a2", "1", "Burger", 1099), 1, ""))
	assert.Equal(t, "1699", a.Total().String())

	a.Clear(ctx)
	assert.True(t, a.Total().IsZero())
	assert.Equal(t, "", a.RestaurantID())
}

func TestPersistFailureDoesNotBlockMutation(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.saveErr = errors.New("redis down")
	a := newAggregator(t, store)

	require.NoError(t, a.AddLine(ctx, item("a1", "1", "Fries", 300), 1, ""))
	assert.Len(t, a.Lines(), 1)
	assert.Equal(t, 1, store.saves)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	a := newAggregator(t, store)
	require.NoError(t, a.AddLine(ctx, item("a1", "1", "Fries", 300), 2, ""))

	b := newAggregator(t, store)
	require.NoError(t, b.Restore(ctx))
	assert.Equal(t, "1", b.RestaurantID())
	require.Len(t, b.Lines(), 1)
	assert.Equal(t, "600", b.Total().String())
}
