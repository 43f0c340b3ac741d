package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func entry(key string, size int) Entry {
	return Entry{Key: key, Payload: Payload{Data: make([]byte, size)}, Duration: 1}
}

func TestMemoryStore_BasicOperations(t *testing.T) {
	store := NewMemoryStore(0, 1024)

	if _, err := store.Put(entry("a", 10)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := store.Get("a")
	if !ok {
		t.Fatal("Get failed: key not found")
	}
	if got.Payload.Size() != 10 {
		t.Errorf("payload size = %d, want 10", got.Payload.Size())
	}
	if store.Size() != 10 || store.Len() != 1 {
		t.Errorf("size/len = %d/%d, want 10/1", store.Size(), store.Len())
	}

	if _, ok := store.Delete("a"); !ok {
		t.Error("Delete reported missing key")
	}
	if store.Size() != 0 {
		t.Errorf("Size not zero after delete: %d", store.Size())
	}
}

func TestMemoryStore_EvictsOldestByCount(t *testing.T) {
	store := NewMemoryStore(3, 0)

	for i := 0; i < 3; i++ {
		store.Put(entry(fmt.Sprintf("k%d", i), 1))
	}
	// Reading k0 does not refresh it: eviction is by insertion order.
	store.Get("k0")

	out, err := store.Put(entry("k3", 1))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if len(out) != 1 || out[0].Key != "k0" {
		t.Fatalf("evicted = %+v, want k0", out)
	}
	if store.Evictions() != 1 {
		t.Errorf("Evictions = %d, want 1", store.Evictions())
	}

	want := []string{"k1", "k2", "k3"}
	keys := store.Keys()
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Keys = %v, want %v", keys, want)
		}
	}
}

func TestMemoryStore_EvictsOldestByBytes(t *testing.T) {
	store := NewMemoryStore(0, 100)
	store.Put(entry("a", 40))
	store.Put(entry("b", 40))

	out, _ := store.Put(entry("c", 40))
	if len(out) != 1 || out[0].Key != "a" {
		t.Fatalf("evicted = %+v, want a", out)
	}
	if store.Size() != 80 {
		t.Errorf("Size = %d, want 80", store.Size())
	}
}

func TestMemoryStore_ItemTooLarge(t *testing.T) {
	store := NewMemoryStore(0, 10)
	if _, err := store.Put(entry("big", 11)); err != ErrItemTooLarge {
		t.Errorf("err = %v, want ErrItemTooLarge", err)
	}
}

func TestMemoryStore_PutReplaces(t *testing.T) {
	store := NewMemoryStore(0, 0)
	store.Put(entry("a", 10))
	store.Put(entry("b", 10))

	out, _ := store.Put(entry("a", 20))
	if len(out) != 1 || out[0].Payload.Size() != 10 {
		t.Fatalf("displaced = %+v", out)
	}
	if store.Size() != 30 {
		t.Errorf("Size = %d, want 30", store.Size())
	}
	// A replaced entry becomes the newest.
	if keys := store.Keys(); keys[0] != "b" {
		t.Errorf("Keys = %v", keys)
	}
}

func TestMemoryStore_ReplaceKeepsSlot(t *testing.T) {
	store := NewMemoryStore(0, 0)
	store.Put(entry("a", 10))
	store.Put(entry("b", 10))

	e, _ := store.Get("a")
	old, ok := store.Replace(e.WithDuration(2.5))
	if !ok || old.Duration != 1 {
		t.Fatalf("Replace = %+v, %v", old, ok)
	}
	got, _ := store.Get("a")
	if got.Duration != 2.5 {
		t.Errorf("Duration = %v, want 2.5", got.Duration)
	}
	if keys := store.Keys(); keys[0] != "a" {
		t.Errorf("Keys = %v", keys)
	}

	if _, ok := store.Replace(entry("missing", 1)); ok {
		t.Error("Replace of a missing key should fail")
	}
}

func TestMemoryStore_Clear(t *testing.T) {
	store := NewMemoryStore(0, 0)
	store.Put(entry("a", 1))
	store.Put(entry("b", 1))

	if out := store.Clear(); len(out) != 2 {
		t.Errorf("Clear returned %d entries", len(out))
	}
	if store.Len() != 0 || store.Size() != 0 {
		t.Error("store not empty after Clear")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore(50, 10240)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				store.Put(entry(fmt.Sprintf("w%d-%d", id, j), 8))
			}
		}(i)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				store.Get(fmt.Sprintf("w%d-%d", id, j))
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Test timed out")
	}

	if store.Len() > 50 {
		t.Errorf("Len = %d exceeds bound", store.Len())
	}
}
