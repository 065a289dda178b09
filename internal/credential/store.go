// Package credential keeps connection passwords out of the config file
package credential

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

// Service is the keychain namespace every secret is filed under
const Service = "db-sight"

// ErrNotFound is returned by Get and Delete when no secret exists for the key
var ErrNotFound = errors.New("credential not found")

// Store is a key to secret map backed by some secure storage.
// Keys are connection ids.
type Store interface {
	Set(key, secret string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// KeyringStore saves secrets in the operating system keychain
type KeyringStore struct {
	service string
}

// NewKeyringStore returns a store under the db-sight service namespace
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{service: Service}
}

func (s *KeyringStore) Set(key, secret string) error {
	if err := keyring.Set(s.service, key, secret); err != nil {
		return fmt.Errorf("storing secret for %s: %w", key, err)
	}
	return nil
}

func (s *KeyringStore) Get(key string) (string, error) {
	secret, err := keyring.Get(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading secret for %s: %w", key, err)
	}
	return secret, nil
}

func (s *KeyringStore) Delete(key string) error {
	err := keyring.Delete(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("deleting secret for %s: %w", key, err)
	}
	return nil
}

// MemoryStore keeps secrets in process memory only
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]string)}
}

func (s *MemoryStore) Set(key, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[key] = secret
	return nil
}

func (s *MemoryStore) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	secret, ok := s.secrets[key]
	if !ok {
		return "", ErrNotFound
	}
	return secret, nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.secrets[key]; !ok {
		return ErrNotFound
	}
	delete(s.secrets, key)
	return nil
}

// Len reports how many secrets are held
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.secrets)
}
