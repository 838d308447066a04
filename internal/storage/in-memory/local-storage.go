package in_memory

import "sync"

// LocalStorage is a process-local key-value store with string values.
type LocalStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewLocalStorage() *LocalStorage {
	return &LocalStorage{
		items: make(map[string]string),
	}
}

func (l *LocalStorage) GetItem(key string) (string, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	value, ok := l.items[key]
	return value, ok, nil
}

func (l *LocalStorage) SetItem(key, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.items[key] = value
	return nil
}
