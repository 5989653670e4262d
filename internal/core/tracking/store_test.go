package tracking

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestInsertAndRecent(t *testing.T) {
	store := openTestStore(t)

	start := time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)
	_, err := store.Insert(Attempt{
		OrderID: "ord_1", Side: "buy", InstanceType: "h100i",
		Nodes: 2, GPUs: 16,
		StartAt: start, EndAt: start.Add(2 * time.Hour),
		LimitPrice: 640_000, Outcome: "open",
		PlacedAt: time.Now(),
	})
	require.NoError(t, err)

	_, err = store.Insert(Attempt{
		Side: "sell", Nodes: 1, GPUs: 8,
		LimitPrice: 100_000, Outcome: "ambiguous",
		PlacedAt: time.Now(),
	})
	require.NoError(t, err)

	attempts, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, attempts, 2)

	// newest first; the ambiguous attempt has no order id
	assert.Equal(t, "ambiguous", attempts[0].Outcome)
	assert.Empty(t, attempts[0].OrderID)
	assert.Equal(t, "ord_1", attempts[1].OrderID)
	assert.Equal(t, start, attempts[1].StartAt)
	assert.Nil(t, attempts[1].ExecutedPrice)
}

func TestUpdateOutcomeResolvesAmbiguity(t *testing.T) {
	store := openTestStore(t)

	id, err := store.Insert(Attempt{
		OrderID: "ord_2", Side: "buy", Nodes: 1, GPUs: 8,
		LimitPrice: 200_000, Outcome: "ambiguous", PlacedAt: time.Now(),
	})
	require.NoError(t, err)

	executed := int64(180_000)
	require.NoError(t, store.UpdateOutcome(id, "filled", &executed))

	attempts, err := store.Recent(1)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, "filled", attempts[0].Outcome)
	require.NotNil(t, attempts[0].ExecutedPrice)
	assert.Equal(t, executed, *attempts[0].ExecutedPrice)
}

func TestRecentLimit(t *testing.T) {
	store := openTestStore(t)
	for i := 0; i < 5; i++ {
		_, err := store.Insert(Attempt{
			Side: "buy", Nodes: 1, GPUs: 8, LimitPrice: 1,
			Outcome: "open", PlacedAt: time.Now(),
		})
		require.NoError(t, err)
	}
	attempts, err := store.Recent(3)
	require.NoError(t, err)
	assert.Len(t, attempts, 3)
}
