package local

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// LocalStorage persists string values by key in a single JSON file.
type LocalStorage struct {
	mu   sync.Mutex
	path string
}

func NewLocalStorage(path string) *LocalStorage {
	return &LocalStorage{
		path: path,
	}
}

func (l *LocalStorage) GetItem(key string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := l.read()
	if err != nil {
		return "", false, err
	}
	value, ok := items[key]
	return value, ok, nil
}

func (l *LocalStorage) SetItem(key, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := l.read()
	if err != nil {
		// a corrupt file is replaced rather than blocking writes
		items = make(map[string]string)
	}
	items[key] = value
	return l.write(items)
}

func (l *LocalStorage) read() (map[string]string, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("failed to read local storage %s: %w", l.path, err)
	}
	items := make(map[string]string)
	if len(raw) == 0 {
		return items, nil
	}
	if err = json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal local storage %s: %w", l.path, err)
	}
	return items, nil
}

func (l *LocalStorage) write(items map[string]string) error {
	raw, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal local storage: %w", err)
	}
	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, ".local-storage-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err = tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write local storage: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close local storage: %w", err)
	}
	if err = os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("failed to replace local storage %s: %w", l.path, err)
	}
	return nil
}
