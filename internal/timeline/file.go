package timeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// Load reads a timeline from a YAML project file.
func Load(path string) (*Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read project: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML project, then normalizes and validates it.
func Parse(data []byte) (*Timeline, error) {
	tl, _, err := decode(data)
	return tl, err
}

// Open loads a project and writes back any scene ids it had to assign, so
// measured durations can later be matched by id.
func Open(path string) (*Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read project: %w", err)
	}
	tl, assigned, err := decode(data)
	if err != nil {
		return nil, err
	}
	if assigned {
		log.Debug("assigned scene ids", "path", path)
		if err := Save(path, tl); err != nil {
			return nil, err
		}
	}
	return tl, nil
}

func decode(data []byte) (*Timeline, bool, error) {
	var tl Timeline
	if err := yaml.Unmarshal(data, &tl); err != nil {
		return nil, false, fmt.Errorf("unable to parse project: %w", err)
	}
	assigned := tl.Normalize()
	if err := tl.Validate(); err != nil {
		return nil, false, err
	}
	return &tl, assigned, nil
}

// Save writes the timeline to path atomically.
func Save(path string, tl *Timeline) error {
	data, err := yaml.Marshal(tl)
	if err != nil {
		return fmt.Errorf("unable to encode project: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".scenecast-*.yml")
	if err != nil {
		return fmt.Errorf("unable to write project: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("unable to write project: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("unable to write project: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// FileStore persists measured scene durations back into a project file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store that rewrites the project at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the project file path.
func (s *FileStore) Path() string { return s.path }

// SaveMeasured merges measured durations, keyed by scene id, into the file.
// Scenes that no longer exist are ignored.
func (s *FileStore) SaveMeasured(ctx context.Context, measured map[string]float64) error {
	if len(measured) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tl, err := Load(s.path)
	if err != nil {
		return err
	}

	updated := 0
	for id, d := range measured {
		if i := tl.IndexOf(id); i >= 0 {
			tl.SetMeasured(i, d)
			updated++
		}
	}
	if updated == 0 {
		return nil
	}

	log.Debug("saving measured durations", "path", s.path, "scenes", updated)
	return Save(s.path, tl)
}
