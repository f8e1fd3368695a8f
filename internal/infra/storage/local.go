package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalStore keeps saved image copies in a directory on disk, created on first
// write. File names get a random prefix so rapid successive saves of the same
// upload never collide.
type LocalStore struct {
	dir string
}

func NewLocal(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// Save writes the original upload bytes and returns the path stored in
// ruta_imagen.
func (s *LocalStore) Save(ctx context.Context, fileName string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create storage dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(fileName))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write image copy: %w", err)
	}
	return path, nil
}

// Remove deletes a previously saved copy. Used to undo writes when a batch
// fails to commit.
func (s *LocalStore) Remove(ctx context.Context, path string) error {
	return os.Remove(path)
}
