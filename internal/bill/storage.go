package bill

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Storage keeps the original documents bills were extracted from
type Storage interface {
	// Save stores a document under name and returns the path to reference it by
	Save(name string, data []byte) (string, error)

	// Get retrieves a document by path
	Get(path string) ([]byte, error)

	// Delete removes a document
	Delete(path string) error
}

// LocalStorage implements Storage on the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates the storage directory if needed
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// resolve maps a stored path into the base directory. Paths escaping it are rejected.
func (l *LocalStorage) resolve(path string) (string, error) {
	clean := filepath.Clean(string(filepath.Separator) + path)
	full := filepath.Join(l.basePath, clean)
	if !strings.HasPrefix(full, filepath.Clean(l.basePath)+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid document path: %s", path)
	}
	return full, nil
}

// Save writes a document to disk
func (l *LocalStorage) Save(name string, data []byte) (string, error) {
	full, err := l.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("creating document directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return name, nil
}

// Get reads a document from disk
func (l *LocalStorage) Get(path string) ([]byte, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a document from disk
func (l *LocalStorage) Delete(path string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
