// Package blob stores uploaded voice samples. Object storage itself is an
// external collaborator; the local-directory implementation covers development
// and self-hosted deployments.
package blob

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

// Store persists a voice sample and returns its storage path.
type Store interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
}

type localStore struct {
	root string
}

func NewLocalStore(root string) Store {
	return &localStore{root: root}
}

func (s *localStore) Put(_ context.Context, key string, data []byte) (string, error) {
	if key == "" {
		return "", errors.New("blob key is empty")
	}
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
