package cache

import (
	"container/list"
	"sync"
)

// MemoryStore is the L1 tier. It is bounded by entry count and bytes and
// evicts the oldest insertion first.
type MemoryStore struct {
	maxEntries int
	maxBytes   int64
	size       int64

	items    map[string]*list.Element
	eviction *list.List

	mu sync.RWMutex

	evictions int64
}

// NewMemoryStore creates a store. Zero limits are unbounded.
func NewMemoryStore(maxEntries int, maxBytes int64) *MemoryStore {
	return &MemoryStore{
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		items:      make(map[string]*list.Element),
		eviction:   list.New(),
	}
}

// Get returns the entry stored under key.
func (m *MemoryStore) Get(key string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	elem, ok := m.items[key]
	if !ok {
		return Entry{}, false
	}
	return elem.Value.(Entry), true
}

// Put inserts e as the newest entry. It returns the entries that left the
// store: the one e replaced, if any, followed by evictions.
func (m *MemoryStore) Put(e Entry) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := e.Payload.Size()
	if m.maxBytes > 0 && size > m.maxBytes {
		return nil, ErrItemTooLarge
	}

	var out []Entry
	if elem, ok := m.items[e.Key]; ok {
		out = append(out, m.removeElement(elem))
	}

	for m.overflows(size) && m.eviction.Len() > 0 {
		out = append(out, m.evictOldest())
	}

	m.items[e.Key] = m.eviction.PushBack(e)
	m.size += size
	return out, nil
}

// Replace swaps the entry under e.Key in place, keeping its eviction slot.
// It returns the previous entry.
func (m *MemoryStore) Replace(e Entry) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[e.Key]
	if !ok {
		return Entry{}, false
	}
	old := elem.Value.(Entry)
	m.size += e.Payload.Size() - old.Payload.Size()
	elem.Value = e
	return old, true
}

// Delete removes key and returns the removed entry.
func (m *MemoryStore) Delete(key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		return Entry{}, false
	}
	return m.removeElement(elem), true
}

// Clear removes every entry and returns them.
func (m *MemoryStore) Clear() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Entry, 0, m.eviction.Len())
	for elem := m.eviction.Front(); elem != nil; elem = elem.Next() {
		out = append(out, elem.Value.(Entry))
	}
	m.items = make(map[string]*list.Element)
	m.eviction.Init()
	m.size = 0
	return out
}

// Len returns the number of entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Size returns the payload bytes held.
func (m *MemoryStore) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// Evictions returns the number of entries evicted for space.
func (m *MemoryStore) Evictions() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.evictions
}

// Keys returns keys oldest first.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.items))
	for elem := m.eviction.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(Entry).Key)
	}
	return keys
}

// Spooled counts entries whose payload lives in a file.
func (m *MemoryStore) Spooled() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for elem := m.eviction.Front(); elem != nil; elem = elem.Next() {
		if elem.Value.(Entry).Payload.URL != "" {
			n++
		}
	}
	return n
}

func (m *MemoryStore) overflows(incoming int64) bool {
	if m.maxEntries > 0 && m.eviction.Len()+1 > m.maxEntries {
		return true
	}
	return m.maxBytes > 0 && m.size+incoming > m.maxBytes
}

// evictOldest must be called with the lock held.
func (m *MemoryStore) evictOldest() Entry {
	m.evictions++
	return m.removeElement(m.eviction.Front())
}

// removeElement must be called with the lock held.
func (m *MemoryStore) removeElement(elem *list.Element) Entry {
	m.eviction.Remove(elem)
	e := elem.Value.(Entry)
	delete(m.items, e.Key)
	m.size -= e.Payload.Size()
	return e
}
