package cache

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

const indexFile = "cache.index"

// DiskStore is the persistent L2 tier. Values are zstd compressed when that
// makes them smaller, and an index of entries is kept beside them.
type DiskStore struct {
	basePath string
	capacity int64
	size     int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskRecord

	mu sync.RWMutex
}

type diskRecord struct {
	Key          string
	FilePath     string
	Size         int64
	OriginalSize int64
	Timestamp    time.Time
	Compressed   bool
}

// NewDiskStore opens or creates a disk store under basePath. A compression
// level of zero stores values as-is.
func NewDiskStore(basePath string, capacity int64, compressionLevel int) (*DiskStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	ds := &DiskStore{
		basePath: basePath,
		capacity: capacity,
		index:    make(map[string]*diskRecord),
	}

	if compressionLevel > 0 {
		var err error
		ds.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	ds.decoder = decoder

	if err := ds.loadIndex(); err != nil {
		log.Warn("discarding unreadable cache index", "path", basePath, "error", err)
		ds.index = make(map[string]*diskRecord)
	}
	for _, rec := range ds.index {
		ds.size += rec.Size
	}

	return ds, nil
}

// Get reads the value stored under key. Unreadable files are dropped.
func (ds *DiskStore) Get(key string) ([]byte, bool) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	rec, ok := ds.index[key]
	if !ok {
		return nil, false
	}

	data, err := os.ReadFile(rec.FilePath)
	if err != nil {
		ds.drop(key, rec)
		return nil, false
	}
	if rec.Compressed {
		data, err = ds.decoder.DecodeAll(data, nil)
		if err != nil {
			log.Warn("corrupt cache file", "key", key, "error", err)
			ds.drop(key, rec)
			return nil, false
		}
	}

	return data, true
}

// Put writes value under key, evicting the oldest records to make room.
func (ds *DiskStore) Put(key string, value []byte) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	data, compressed := value, false
	if ds.encoder != nil && len(value) > 1024 {
		if enc := ds.encoder.EncodeAll(value, nil); len(enc) < len(value) {
			data, compressed = enc, true
		}
	}
	size := int64(len(data))

	if ds.capacity > 0 && size > ds.capacity {
		return ErrItemTooLarge
	}
	if old, ok := ds.index[key]; ok {
		ds.size -= old.Size
		delete(ds.index, key)
	}
	for ds.capacity > 0 && ds.size+size > ds.capacity && len(ds.index) > 0 {
		ds.evictOldest()
	}

	path := filepath.Join(ds.basePath, key+".cache")
	if err := writeFile(path, data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	ds.index[key] = &diskRecord{
		Key:          key,
		FilePath:     path,
		Size:         size,
		OriginalSize: int64(len(value)),
		Timestamp:    time.Now(),
		Compressed:   compressed,
	}
	ds.size += size
	return nil
}

// Delete removes key.
func (ds *DiskStore) Delete(key string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if rec, ok := ds.index[key]; ok {
		ds.drop(key, rec)
	}
}

// Clear removes every record and rewrites the empty index.
func (ds *DiskStore) Clear() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	for key, rec := range ds.index {
		ds.drop(key, rec)
	}
	ds.size = 0
	return ds.saveIndex()
}

// RemoveOlderThan drops records written before cutoff.
func (ds *DiskStore) RemoveOlderThan(cutoff time.Time) int {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	removed := 0
	for key, rec := range ds.index {
		if rec.Timestamp.Before(cutoff) {
			ds.drop(key, rec)
			removed++
		}
	}
	return removed
}

// Len returns the number of records.
func (ds *DiskStore) Len() int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return len(ds.index)
}

// Size returns bytes on disk.
func (ds *DiskStore) Size() int64 {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.size
}

// Close saves the index.
func (ds *DiskStore) Close() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.encoder != nil {
		_ = ds.encoder.Close()
	}
	ds.decoder.Close()
	return ds.saveIndex()
}

// drop must be called with the lock held.
func (ds *DiskStore) drop(key string, rec *diskRecord) {
	if err := os.Remove(rec.FilePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Debug("unable to remove cache file", "path", rec.FilePath, "error", err)
	}
	delete(ds.index, key)
	ds.size -= rec.Size
}

// evictOldest must be called with the lock held.
func (ds *DiskStore) evictOldest() {
	var oldest *diskRecord
	for _, rec := range ds.index {
		if oldest == nil || rec.Timestamp.Before(oldest.Timestamp) {
			oldest = rec
		}
	}
	if oldest != nil {
		ds.drop(oldest.Key, oldest)
	}
}

func (ds *DiskStore) loadIndex() error {
	file, err := os.Open(filepath.Join(ds.basePath, indexFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	defer file.Close()

	return gob.NewDecoder(file).Decode(&ds.index)
}

func (ds *DiskStore) saveIndex() error {
	path := filepath.Join(ds.basePath, indexFile)
	tmp := path + ".tmp"

	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	err = gob.NewEncoder(file).Encode(ds.index)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// writeFile writes through a temporary file and renames it into place.
func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
