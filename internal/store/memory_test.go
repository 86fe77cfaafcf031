package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-widget/internal/channel"
	"payment-widget/internal/domain"
	"payment-widget/internal/widget"
)

func newEntry(id string) *Entry {
	q := channel.NewQueueTransport()
	return &Entry{ID: id, Widget: widget.New(q, widget.Config{}), Outbox: q}
}

func TestMemoryStore_SaveAndGet(t *testing.T) {
	store := NewMemoryStore()
	entry := newEntry("S001")

	require.NoError(t, store.Save(entry))

	got, err := store.Get("S001")
	require.NoError(t, err)
	assert.Same(t, entry, got)
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get("NONEXISTENT")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMemoryStore_List(t *testing.T) {
	store := NewMemoryStore()

	// Add entries in non-sorted order
	for _, id := range []string{"S003", "S001", "S002"} {
		require.NoError(t, store.Save(newEntry(id)))
	}

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 3)

	expected := []string{"S001", "S002", "S003"}
	for i, e := range list {
		assert.Equal(t, expected[i], e.ID)
	}
}

func TestMemoryStore_Exists(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(newEntry("S001")))

	assert.True(t, store.Exists("S001"))
	assert.False(t, store.Exists("S002"))
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(newEntry("S001")))

	require.NoError(t, store.Delete("S001"))
	assert.False(t, store.Exists("S001"))
	assert.ErrorIs(t, store.Delete("S001"), domain.ErrSessionNotFound)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("S%03d", id%40)
			_ = store.Save(newEntry(key))
			_, _ = store.Get(key)
			_ = store.Exists(key)
		}(i)
	}
	wg.Wait()

	list, err := store.List()
	require.NoError(t, err)
	assert.Len(t, list, 40)
}

func TestMemoryStore_Replace(t *testing.T) {
	store := NewMemoryStore()
	first := newEntry("S001")
	second := newEntry("S001")
	require.NoError(t, store.Save(first))
	require.NoError(t, store.Save(second))

	got, err := store.Get("S001")
	require.NoError(t, err)
	assert.Same(t, second, got)
}

func TestEntry_LastSeen(t *testing.T) {
	created := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	entry := newEntry("S001")
	entry.CreatedAt = created
	assert.True(t, entry.LastSeen().Equal(created), "falls back to creation time")

	entry.Touch(created.Add(time.Minute))
	assert.True(t, entry.LastSeen().Equal(created.Add(time.Minute)))
}
