package stage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DirStore keeps snapshots as files in an organization directory.
type DirStore struct {
	dir string
}

// NewDirStore returns a store rooted at root/organization.
// The directory is created on first Save.
func NewDirStore(root, organization string) (*DirStore, error) {
	if err := validName(organization); err != nil {
		return nil, err
	}
	return &DirStore{dir: filepath.Join(root, filepath.FromSlash(organization))}, nil
}

// Dir returns the organization directory.
func (s *DirStore) Dir() string {
	return s.dir
}

// Location implements Store.
func (s *DirStore) Location(name string) string {
	return filepath.Join(s.dir, filepath.FromSlash(name))
}

// Exists implements Store.
func (s *DirStore) Exists(_ context.Context, name string) (bool, error) {
	if err := validName(name); err != nil {
		return false, err
	}
	_, err := os.Stat(s.Location(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Load implements Store.
func (s *DirStore) Load(_ context.Context, name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Location(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Save implements Store. The file is written next to its final path and
// renamed into place so a crash never leaves a partial snapshot.
func (s *DirStore) Save(_ context.Context, name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	target := s.Location(name)
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // Already renamed on success

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}
