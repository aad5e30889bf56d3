// Package store provides key-value snapshot stores used as a convenience
// cache for uptime status between probe cycles.
package store

import "sync"

// MemoryStore snapshot store em memória, usado em testes e em deployments
// sem persistência local
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore cria um snapshot store em memória
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// Get retorna o valor armazenado para a chave
func (ms *MemoryStore) Get(key string) (string, bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	value, ok := ms.data[key]
	return value, ok, nil
}

// Set grava o valor para a chave
func (ms *MemoryStore) Set(key, value string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.data[key] = value
	return nil
}

// Close libera recursos (no-op para o store em memória)
func (ms *MemoryStore) Close() error {
	return nil
}
