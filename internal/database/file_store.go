package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
)

// FileStore is a JSON file-backed key/value store. Every Set rewrites the
// file atomically (temp file then rename).
type FileStore struct {
	filePath string
	data     map[string]string
	mu       sync.RWMutex
}

// NewFileStore creates a file store at the default session path
func NewFileStore() (*FileStore, error) {
	filePath, err := GetSessionFilePath()
	if err != nil {
		return nil, err
	}
	return NewFileStoreAt(filePath)
}

// NewFileStoreAt creates a file store backed by the given path
func NewFileStoreAt(filePath string) (*FileStore, error) {
	store := &FileStore{
		filePath: filePath,
		data:     make(map[string]string),
	}

	if err := store.load(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *FileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return s.saveUnlocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read store file: %w", err)
	}

	if err := json.Unmarshal(data, &s.data); err != nil {
		return fmt.Errorf("failed to parse store file: %w", err)
	}

	if s.data == nil {
		s.data = make(map[string]string)
	}

	log.Printf("Loaded session store: %d keys from %s", len(s.data), s.filePath)
	return nil
}

func (s *FileStore) saveUnlocked() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store data: %w", err)
	}

	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp store file: %w", err)
	}

	if err := os.Rename(tmpFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp store file: %w", err)
	}

	return nil
}

// Get returns the stored value for key, or empty string if unset
func (s *FileStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[key], nil
}

// Set stores value under key and persists immediately
func (s *FileStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return s.saveUnlocked()
}

// Close is a no-op; data is saved after each Set
func (s *FileStore) Close() error {
	return nil
}
