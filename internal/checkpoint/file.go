package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const checkpointFileName = "checkpoint.yaml"

// fileStore implements Store using per-provider YAML files. Writes go
// through a temp file and rename so a crash never leaves a torn file.
type fileStore struct {
	basePath string

	mu sync.Mutex
}

// NewFileStore creates a file-backed checkpoint store rooted at basePath
func NewFileStore(basePath string) Store {
	return &fileStore{basePath: basePath}
}

func (f *fileStore) Get(_ context.Context, providerID string) (*Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load(providerID)
}

func (f *fileStore) Upsert(_ context.Context, providerID string, patch Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp, err := f.load(providerID)
	if err != nil {
		return err
	}
	if cp == nil {
		cp = &Checkpoint{}
	}
	cp.Apply(patch)

	return f.save(providerID, cp)
}

func (f *fileStore) Reset(_ context.Context, providerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.path(providerID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove checkpoint for provider '%s': %w", providerID, err)
	}
	return nil
}

func (f *fileStore) path(providerID string) string {
	return filepath.Join(f.basePath, providerID, checkpointFileName)
}

func (f *fileStore) load(providerID string) (*Checkpoint, error) {
	// #nosec G304 -- path is constructed from trusted internal sources
	data, err := os.ReadFile(f.path(providerID))
	if err != nil {
		if os.IsNotExist(err) {
			// No checkpoint yet - this is OK for first run
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint for provider '%s': %w", providerID, err)
	}

	var cp Checkpoint
	if err := yaml.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint for provider '%s': %w", providerID, err)
	}
	return &cp, nil
}

func (f *fileStore) save(providerID string, cp *Checkpoint) error {
	dir := filepath.Join(f.basePath, providerID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create checkpoint directory for provider '%s': %w", providerID, err)
	}

	data, err := yaml.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint for provider '%s': %w", providerID, err)
	}

	path := f.path(providerID)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary checkpoint for provider '%s': %w", providerID, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename checkpoint for provider '%s': %w", providerID, err)
	}

	return nil
}
