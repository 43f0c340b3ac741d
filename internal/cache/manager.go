package cache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Cache is the synthesis cache: an L1 memory store in front of an optional
// L2 disk store. L2 writes happen in order on a background goroutine.
type Cache struct {
	cfg  Config
	mem  *MemoryStore
	disk *DiskStore

	// mu serializes mutations of mem together with payload spooling.
	mu sync.Mutex

	statsMu sync.Mutex
	stats   Stats

	qmu    sync.RWMutex
	closed bool
	writes chan diskOp

	cleanupStop chan struct{}
	wg          sync.WaitGroup
}

type diskOp struct {
	key    string
	data   []byte
	delete bool
	done   chan struct{}
}

// diskEntry is the L2 encoding of an Entry.
type diskEntry struct {
	Voice    string
	Markup   string
	Duration float64
	Created  time.Time
	Audio    []byte
}

// New creates a cache. The disk tier is opened when cfg.DiskPath is set.
func New(cfg Config) (*Cache, error) {
	c := &Cache{
		cfg:         cfg,
		mem:         NewMemoryStore(cfg.MaxEntries, cfg.MaxBytes),
		cleanupStop: make(chan struct{}),
	}

	if cfg.SpoolDir != "" {
		if err := os.MkdirAll(cfg.SpoolDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create spool directory: %w", err)
		}
	}

	if cfg.DiskPath != "" {
		disk, err := NewDiskStore(cfg.DiskPath, cfg.DiskCapacity, cfg.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to create disk cache: %w", err)
		}
		c.disk = disk
		c.writes = make(chan diskOp, 64)
		c.wg.Add(1)
		go c.writeLoop()

		if cfg.CleanupInterval > 0 && cfg.TTL > 0 {
			c.startCleanupRoutine()
		}
	}

	return c, nil
}

// Get returns the entry for key, promoting L2 hits into memory.
func (c *Cache) Get(key string) (Entry, bool) {
	if e, ok := c.mem.Get(key); ok {
		c.count(func(s *Stats) { s.Hits++ })
		return e, true
	}

	if c.disk != nil {
		if data, ok := c.disk.Get(key); ok {
			e, err := decodeEntry(key, data)
			if err == nil {
				if stored, err := c.store(e); err == nil {
					c.count(func(s *Stats) { s.Hits++; s.DiskHits++ })
					log.Debug("cache promoted", "key", key)
					return stored, true
				}
			} else {
				log.Warn("dropping unreadable cache entry", "key", key, "error", err)
				c.enqueue(diskOp{key: key, delete: true})
			}
		}
	}

	c.count(func(s *Stats) { s.Misses++ })
	return Entry{}, false
}

// Lookup returns the entry for a voice and markup pair.
func (c *Cache) Lookup(voice, markup string) (Entry, bool) {
	return c.Get(Key(voice, markup))
}

// Put stores e, replacing any entry under the same key. An empty key is
// derived from the entry's voice and markup. The stored entry is returned;
// its payload may have been spooled to a file.
func (c *Cache) Put(e Entry) (Entry, error) {
	if e.Key == "" {
		e.Key = Key(e.Voice, e.Markup)
	}
	if e.Payload.Empty() {
		return Entry{}, ErrEmptyPayload
	}
	if e.Created.IsZero() {
		e.Created = time.Now()
	}

	var record []byte
	if c.disk != nil {
		var err error
		if record, err = encodeEntry(e); err != nil {
			log.Warn("unable to encode cache entry", "key", e.Key, "error", err)
		}
	}

	stored, err := c.store(e)
	if err != nil {
		return Entry{}, err
	}
	if record != nil {
		c.enqueue(diskOp{key: e.Key, data: record})
	}
	return stored, nil
}

// CorrectDuration replaces the entry under key with a copy carrying the
// measured duration d. The payload is shared, not copied.
func (c *Cache) CorrectDuration(key string, d float64) (Entry, bool) {
	c.mu.Lock()
	old, ok := c.mem.Get(key)
	if !ok {
		c.mu.Unlock()
		return Entry{}, false
	}
	e := old.WithDuration(d)
	c.mem.Replace(e)
	c.mu.Unlock()

	c.count(func(s *Stats) { s.Corrections++ })
	log.Debug("corrected cached duration", "key", key, "from", old.Duration, "to", d)

	if c.disk != nil {
		if record, err := encodeEntry(e); err == nil {
			c.enqueue(diskOp{key: key, data: record})
		}
	}
	return e, true
}

// Delete removes key from every tier.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	if old, ok := c.mem.Delete(key); ok {
		release(old)
	}
	c.mu.Unlock()
	c.enqueue(diskOp{key: key, delete: true})
}

// Clear empties every tier.
func (c *Cache) Clear() error {
	c.mu.Lock()
	for _, old := range c.mem.Clear() {
		release(old)
	}
	c.mu.Unlock()

	if c.disk == nil {
		return nil
	}
	c.Flush()
	return c.disk.Clear()
}

// Flush blocks until queued disk writes have been applied.
func (c *Cache) Flush() {
	done := make(chan struct{})
	if !c.enqueue(diskOp{done: done}) {
		return
	}
	<-done
}

// Cleanup removes disk entries older than the configured TTL.
func (c *Cache) Cleanup() int {
	c.count(func(s *Stats) {
		s.CleanupRuns++
		s.LastCleanup = time.Now()
	})
	if c.disk == nil || c.cfg.TTL <= 0 {
		return 0
	}
	removed := c.disk.RemoveOlderThan(time.Now().Add(-c.cfg.TTL))
	if removed > 0 {
		log.Debug("expired disk cache entries", "removed", removed)
	}
	return removed
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.statsMu.Lock()
	s := c.stats
	c.statsMu.Unlock()

	s.Entries = c.mem.Len()
	s.Bytes = c.mem.Size()
	s.Spooled = c.mem.Spooled()
	s.Evictions = c.mem.Evictions()
	if c.disk != nil {
		s.DiskEntries = c.disk.Len()
		s.DiskBytes = c.disk.Size()
	}
	return s
}

// Close drains disk writes, stops the cleanup routine, deletes spooled
// files and saves the disk index.
func (c *Cache) Close() error {
	c.qmu.Lock()
	if c.closed {
		c.qmu.Unlock()
		return nil
	}
	c.closed = true
	if c.writes != nil {
		close(c.writes)
	}
	close(c.cleanupStop)
	c.qmu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	for _, old := range c.mem.Clear() {
		release(old)
	}
	c.mu.Unlock()

	if c.disk != nil {
		if err := c.disk.Close(); err != nil {
			return fmt.Errorf("failed to close disk cache: %w", err)
		}
	}
	return nil
}

// store spools e if needed and inserts it into memory, releasing whatever
// it displaced.
func (c *Cache) store(e Entry) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e = c.spool(e)
	out, err := c.mem.Put(e)
	if err != nil {
		release(e)
		return Entry{}, err
	}
	for _, old := range out {
		if old.Payload.URL != "" && old.Payload.URL == e.Payload.URL {
			continue
		}
		if old.Key != e.Key {
			log.Debug("cache evicted", "key", old.Key)
		}
		release(old)
	}
	return e, nil
}

// spool must be called with mu held.
func (c *Cache) spool(e Entry) Entry {
	if c.cfg.SpoolThreshold <= 0 || int64(len(e.Payload.Data)) <= c.cfg.SpoolThreshold {
		return e
	}

	f, err := os.CreateTemp(c.cfg.SpoolDir, "scenecast-*.wav")
	if err != nil {
		log.Warn("unable to spool payload", "key", e.Key, "error", err)
		return e
	}
	n, err := f.Write(e.Payload.Data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		log.Warn("unable to spool payload", "key", e.Key, "error", err)
		return e
	}

	e.Payload = Payload{URL: f.Name(), Length: int64(n), Temporary: true}
	return e
}

func release(e Entry) {
	if err := e.Payload.Release(); err != nil {
		log.Debug("unable to release payload", "key", e.Key, "error", err)
	}
}

func (c *Cache) count(fn func(*Stats)) {
	c.statsMu.Lock()
	fn(&c.stats)
	c.statsMu.Unlock()
}

// enqueue reports whether op was queued.
func (c *Cache) enqueue(op diskOp) bool {
	c.qmu.RLock()
	defer c.qmu.RUnlock()

	if c.closed || c.writes == nil {
		return false
	}
	c.writes <- op
	return true
}

func (c *Cache) writeLoop() {
	defer c.wg.Done()

	for op := range c.writes {
		switch {
		case op.done != nil:
			close(op.done)
		case op.delete:
			c.disk.Delete(op.key)
		default:
			if err := c.disk.Put(op.key, op.data); err != nil {
				log.Debug("disk cache write failed", "key", op.key, "error", err)
			}
		}
	}
}

func (c *Cache) startCleanupRoutine() {
	ticker := time.NewTicker(c.cfg.CleanupInterval)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.Cleanup()
			case <-c.cleanupStop:
				return
			}
		}
	}()
}

func encodeEntry(e Entry) ([]byte, error) {
	audio, err := e.Payload.Bytes()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = gob.NewEncoder(&buf).Encode(diskEntry{
		Voice:    e.Voice,
		Markup:   e.Markup,
		Duration: e.Duration,
		Created:  e.Created,
		Audio:    audio,
	})
	return buf.Bytes(), err
}

func decodeEntry(key string, data []byte) (Entry, error) {
	var d diskEntry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&d); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrCacheCorrupted, err)
	}
	if len(d.Audio) == 0 {
		return Entry{}, ErrCacheCorrupted
	}
	return Entry{
		Key:      key,
		Voice:    d.Voice,
		Markup:   d.Markup,
		Payload:  Payload{Data: d.Audio},
		Duration: d.Duration,
		Created:  d.Created,
	}, nil
}
