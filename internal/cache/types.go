package cache

import (
	"errors"
	"time"
)

var (
	// ErrItemTooLarge is returned when an item exceeds a tier's capacity.
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheMiss is returned when a key is not cached.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheCorrupted is returned when stored data cannot be decoded.
	ErrCacheCorrupted = errors.New("cache data corrupted")

	// ErrEmptyPayload is returned when storing an entry without audio.
	ErrEmptyPayload = errors.New("entry has no payload")

	// ErrClosed is returned by operations on a closed cache.
	ErrClosed = errors.New("cache closed")
)

// Stats holds cache counters.
type Stats struct {
	Entries int
	Bytes   int64
	Spooled int

	Hits        int64
	Misses      int64
	Evictions   int64
	Corrections int64
	DiskHits    int64

	DiskEntries int
	DiskBytes   int64
	CleanupRuns int64
	LastCleanup time.Time
}

// HitRate returns hits / (hits + misses).
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Config holds configuration for a Cache.
type Config struct {
	// L1 bounds. Zero means unbounded.
	MaxEntries int
	MaxBytes   int64

	// Payloads larger than SpoolThreshold are written to temporary files in
	// SpoolDir. Zero keeps every payload in memory.
	SpoolThreshold int64
	SpoolDir       string

	// L2 disk tier. An empty DiskPath disables it.
	DiskPath         string
	DiskCapacity     int64
	CompressionLevel int

	// TTL expires disk entries; CleanupInterval schedules the sweep.
	TTL             time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns a memory-only configuration.
func DefaultConfig() Config {
	return Config{
		MaxEntries:       512,
		MaxBytes:         256 * 1024 * 1024,
		SpoolThreshold:   4 * 1024 * 1024,
		DiskCapacity:     1024 * 1024 * 1024,
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}
