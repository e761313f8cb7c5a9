// Copyright (c) 2026 AetherCore contributors.

/*
Package dataloader defines the DataLoader collaborator the engine consumes
for static content packs — mob, item, and card templates keyed by category
and id — plus a reference implementation that reads them from YAML files on
disk.
*/
package dataloader

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// DataLoader resolves static content records by category and id.
type DataLoader interface {
	// Get returns the record for id within category, or false if absent.
	Get(category, id string) (map[string]any, bool)
	// GetAll returns every record in category, keyed by id.
	GetAll(category string) map[string]map[string]any
}

// FileLoader is a [DataLoader] backed by one YAML file per category,
// loaded once from dir and cached in memory.
type FileLoader struct {
	mu   sync.RWMutex
	data map[string]map[string]map[string]any // category -> id -> record
	dir  string
}

// NewFileLoader constructs a FileLoader rooted at dir. It does not read
// any files until the first Load call, so callers can construct it before
// the content directory is guaranteed to exist.
func NewFileLoader(dir string) *FileLoader {
	return &FileLoader{dir: dir, data: make(map[string]map[string]map[string]any)}
}

// Load reads <dir>/<category>.yaml and caches its contents. The YAML file
// must be a mapping of id to record. Calling Load again for the same
// category replaces its cached contents.
func (l *FileLoader) Load(category string) error {
	path := filepath.Join(l.dir, category+".yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("dataloader: failed to read %q: %w", path, err)
	}

	var records map[string]map[string]any
	if err := yaml.Unmarshal(raw, &records); err != nil {
		return fmt.Errorf("dataloader: failed to parse %q: %w", path, err)
	}

	l.mu.Lock()
	l.data[category] = records
	l.mu.Unlock()
	return nil
}

// Get returns the record for id within category, or false if the category
// has not been loaded or does not contain id.
func (l *FileLoader) Get(category, id string) (map[string]any, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	records, ok := l.data[category]
	if !ok {
		return nil, false
	}
	record, ok := records[id]
	return record, ok
}

// GetAll returns every record in category, keyed by id. It returns an
// empty map if category has not been loaded.
func (l *FileLoader) GetAll(category string) map[string]map[string]any {
	l.mu.RLock()
	defer l.mu.RUnlock()
	records := l.data[category]
	out := make(map[string]map[string]any, len(records))
	for id, record := range records {
		out[id] = record
	}
	return out
}
