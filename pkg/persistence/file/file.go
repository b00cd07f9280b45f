// Package file provides file-based persistence implementation for scenarios and jobs.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/scenarios/pkg/persistence"
)

const (
	scenariosDir = "scenarios"
	jobsDir      = "jobs"
)

// Persistence implements the persistence.Persistence interface using the file system.
// Each scenario is stored with its elements and edges in one document; each job in its own file.
type Persistence struct {
	store        *store
	jobRepo      *JobRepository
	elementRepo  *ElementRepository
	scenarioRepo *ScenarioRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	s := &store{root: strings.Replace(root, "file://", "", 1)}

	return &Persistence{
		store:        s,
		jobRepo:      &JobRepository{store: s},
		elementRepo:  &ElementRepository{store: s},
		scenarioRepo: &ScenarioRepository{store: s},
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.store.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) JobRepository() persistence.JobRepository {
	return fp.jobRepo
}

func (fp *Persistence) ElementRepository() persistence.ElementRepository {
	return fp.elementRepo
}

func (fp *Persistence) ScenarioRepository() persistence.ScenarioRepository {
	return fp.scenarioRepo
}

func (fp *Persistence) GraphRepository() persistence.GraphRepository {
	return fp.scenarioRepo
}

// store serializes every file access of one Persistence.
type store struct {
	mu   sync.Mutex
	root string
}

// validateID rejects identifiers that could escape the storage directory.
func validateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}

	if strings.Contains(id, "..") || strings.Contains(id, "/") || strings.Contains(id, "\\") {
		return fmt.Errorf("id %q contains invalid characters", id)
	}

	return nil
}

func (s *store) path(dir, id string) string {
	return filepath.Join(s.root, dir, id+".json")
}

// read decodes the document; a missing file reports fs.ErrNotExist.
func (s *store) read(dir, id string, target any) error {
	if err := validateID(id); err != nil {
		return err
	}

	body, err := os.ReadFile(s.path(dir, id))
	if err != nil {
		return err
	}

	err = json.Unmarshal(body, target)
	if err != nil {
		return fmt.Errorf("failed to unmarshal %s/%s: %w", dir, id, err)
	}

	return nil
}

func (s *store) write(dir, id string, value any) error {
	if err := validateID(id); err != nil {
		return err
	}

	err := os.MkdirAll(filepath.Join(s.root, dir), 0750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", dir, id, err)
	}

	return os.WriteFile(s.path(dir, id), data, 0600)
}

func (s *store) remove(dir, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	return os.Remove(s.path(dir, id))
}

// ids lists the document ids of dir. A missing directory is empty.
func (s *store) ids(dir string) ([]string, error) {
	files, err := fs.Glob(os.DirFS(filepath.Join(s.root, dir)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	ids := make([]string, 0, len(files))
	for _, file := range files {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}
