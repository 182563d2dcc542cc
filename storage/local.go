// Package storage holds uploaded event images. The service only ever stores
// and echoes the location string, so any store that can save a multipart file
// and return a retrievable path satisfies the interface.
package storage

import (
	"errors"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type Store interface {
	// Save persists the uploaded file and returns its public location.
	Save(fh *multipart.FileHeader) (string, error)
	// Remove deletes the asset behind a previously returned location.
	// Unknown locations are not an error.
	Remove(location string) error
}

// LocalStore writes files under dir and serves them at publicPrefix.
type LocalStore struct {
	dir          string
	publicPrefix string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{dir: dir, publicPrefix: "/uploads/"}, nil
}

// Dir is the filesystem root to mount as a static route.
func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Save(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	name := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return s.publicPrefix + name, nil
}

func (s *LocalStore) Remove(location string) error {
	name, ok := strings.CutPrefix(location, s.publicPrefix)
	if !ok || name == "" || strings.Contains(name, "/") {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
