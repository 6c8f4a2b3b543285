package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/qualia-lab/qualia/internal/model"
)

// Store persists project state between pipeline runs
type Store interface {
	Save(state *model.ProjectState) error
	Load(id string) (*model.ProjectState, error)
	List() ([]string, error)
	Delete(id string) error
}

// DiskStore keeps each project as a JSON file under a directory.
// Writes go through a temp file and rename so an interrupted save never
// leaves a truncated project behind.
type DiskStore struct {
	dir string
}

// NewDiskStore creates a disk-backed store rooted at dir
func NewDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("project directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create project directory: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Save writes the project to disk, stamping UpdatedAt
func (s *DiskStore) Save(state *model.ProjectState) error {
	if state.ID == "" {
		return fmt.Errorf("project has no id")
	}
	state.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project %s: %w", state.ID, err)
	}

	path := s.path(state.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write project %s: %w", state.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write project %s: %w", state.ID, err)
	}
	return nil
}

// Load reads a project by id
func (s *DiskStore) Load(id string) (*model.ProjectState, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("project %s not found in %s", id, s.dir)
		}
		return nil, fmt.Errorf("failed to read project %s: %w", id, err)
	}

	var state model.ProjectState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("project %s is corrupt: %w", id, err)
	}
	return &state, nil
}

// List returns the ids of all stored projects, sorted
func (s *DiskStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read project directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes a stored project. Deleting a missing project is not an error.
func (s *DiskStore) Delete(id string) error {
	err := os.Remove(s.path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	return nil
}

func (s *DiskStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
