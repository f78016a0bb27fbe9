package knowledge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/upb/character-chat/internal/rag"
)

func TestCollectionCache_GetSet(t *testing.T) {
	cache := NewCollectionCache(10, 5*time.Minute)

	// miss
	_, ok := cache.Get("tran_hung_dao")
	assert.False(t, ok)

	want := rag.Collection{Name: "tran_hung_dao_info", ShortName: "tran_hung_dao"}
	cache.Set("tran_hung_dao", want)

	got, ok := cache.Get("tran_hung_dao")
	assert.True(t, ok)
	assert.Equal(t, want, got)

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 0.5, stats.HitRate)
}

func TestCollectionCache_TTLExpiration(t *testing.T) {
	cache := NewCollectionCache(10, 50*time.Millisecond)
	cache.Set("le_loi", rag.Collection{Name: "le_loi_info", ShortName: "le_loi"})

	_, ok := cache.Get("le_loi")
	assert.True(t, ok)

	time.Sleep(80 * time.Millisecond)

	_, ok = cache.Get("le_loi")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Stats().Size)
}

func TestCollectionCache_ZeroTTLNeverExpires(t *testing.T) {
	cache := NewCollectionCache(10, 0)
	cache.Set("le_loi", rag.Collection{Name: "le_loi_info"})

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, cache.CleanupExpired())

	_, ok := cache.Get("le_loi")
	assert.True(t, ok)
}

func TestCollectionCache_LRUEviction(t *testing.T) {
	cache := NewCollectionCache(2, time.Minute)

	cache.Set("a", rag.Collection{Name: "a_info"})
	cache.Set("b", rag.Collection{Name: "b_info"})

	// touch a so b becomes least recently used
	_, _ = cache.Get("a")
	cache.Set("c", rag.Collection{Name: "c_info"})

	_, ok := cache.Get("b")
	assert.False(t, ok)
	_, ok = cache.Get("a")
	assert.True(t, ok)
	_, ok = cache.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, cache.Stats().Size)
}

func TestCollectionCache_InvalidateAndClear(t *testing.T) {
	cache := NewCollectionCache(10, time.Minute)
	cache.Set("a", rag.Collection{Name: "a_info"})
	cache.Set("b", rag.Collection{Name: "b_info"})

	cache.Invalidate("a")
	_, ok := cache.Get("a")
	assert.False(t, ok)

	cache.Clear()
	assert.Equal(t, 0, cache.Stats().Size)
}

func TestCollectionCache_CleanupExpired(t *testing.T) {
	cache := NewCollectionCache(10, 30*time.Millisecond)
	cache.Set("a", rag.Collection{Name: "a_info"})
	cache.Set("b", rag.Collection{Name: "b_info"})

	time.Sleep(50 * time.Millisecond)
	cache.Set("c", rag.Collection{Name: "c_info"})

	assert.Equal(t, 2, cache.CleanupExpired())
	assert.Equal(t, 1, cache.Stats().Size)
}

func TestCollectionCache_CleanupWorkerStops(t *testing.T) {
	cache := NewCollectionCache(10, time.Millisecond)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		cache.StartCleanupWorker(5*time.Millisecond, stop)
		close(done)
	}()

	cache.Set("a", rag.Collection{Name: "a_info"})
	time.Sleep(30 * time.Millisecond)
	close(stop)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup worker did not stop")
	}
	assert.Equal(t, 0, cache.Stats().Size)
}
