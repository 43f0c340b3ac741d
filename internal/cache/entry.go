package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/dgnsrekt/scenecast/internal/markup"
)

// keyVersion is bumped whenever the key derivation changes.
const keyVersion = "v1"

// Key derives the cache key for a voice and a piece of markup. Markup is
// normalized first so that equivalent inputs share a key.
func Key(voice, m string) string {
	data := keyVersion + "\x00" + voice + "\x00" + markup.Normalize(m)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}

// Payload holds audio bytes, either inline or in a spooled file.
type Payload struct {
	Data []byte
	URL  string

	// Length is the byte size of the file at URL.
	Length int64

	// Temporary payloads are owned by the cache and deleted on release.
	Temporary bool
}

// Empty reports whether the payload carries no audio.
func (p Payload) Empty() bool {
	return len(p.Data) == 0 && (p.URL == "" || p.Length == 0)
}

// Size returns the payload size in bytes.
func (p Payload) Size() int64 {
	if len(p.Data) > 0 {
		return int64(len(p.Data))
	}
	return p.Length
}

// Bytes returns the audio bytes, reading the spooled file if needed.
func (p Payload) Bytes() ([]byte, error) {
	if len(p.Data) > 0 || p.URL == "" {
		return p.Data, nil
	}
	data, err := os.ReadFile(p.URL)
	if err != nil {
		return nil, fmt.Errorf("unable to read spooled payload: %w", err)
	}
	return data, nil
}

// Release deletes a temporary spooled file.
func (p Payload) Release() error {
	if !p.Temporary || p.URL == "" {
		return nil
	}
	if err := os.Remove(p.URL); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Entry is an immutable synthesis result.
type Entry struct {
	Key      string
	Voice    string
	Markup   string
	Payload  Payload
	Duration float64
	Created  time.Time
}

// Ready reports whether the entry can be played.
func (e Entry) Ready() bool {
	return !e.Payload.Empty() && e.Duration > 0
}

// WithDuration returns a copy of e with a corrected duration.
func (e Entry) WithDuration(d float64) Entry {
	e.Duration = d
	return e
}
