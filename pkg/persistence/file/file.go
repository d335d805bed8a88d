// Package file provides a file-system Store: one JSON document per key under a root directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
)

const ext = ".json"

// Persistence implements persistence.Store on the file system.
type Persistence struct {
	root string
}

// NewPersistence creates a store rooted at root; a "file://" scheme prefix is accepted.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: strings.Replace(root, "file://", "", 1)}
}

func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// path maps a key to a file path, escaping each segment so no key can leave the root.
func (fp *Persistence) path(key string) (string, error) {
	if key == "" {
		return "", persistence.NewKeyError("resolve", key, persistence.ErrInvalidKey)
	}

	segments := strings.Split(key, "/")
	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, fp.root)

	for _, s := range segments {
		if s == "" || s == "." || s == ".." {
			return "", persistence.NewKeyError("resolve", key, persistence.ErrInvalidKey)
		}

		parts = append(parts, url.PathEscape(s))
	}

	return filepath.Join(parts...) + ext, nil
}

func (fp *Persistence) Get(_ context.Context, key string) ([]byte, error) {
	path, err := fp.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path segments are escaped and validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewKeyError("get", key, persistence.ErrNotFound)
		}

		return nil, persistence.NewKeyError("get", key, err)
	}

	return data, nil
}

// Put writes through a temp file and rename so readers never see a partial record.
func (fp *Persistence) Put(_ context.Context, key string, value []byte) error {
	path, err := fp.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return persistence.NewKeyError("put", key, err)
	}

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return persistence.NewKeyError("put", key, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return persistence.NewKeyError("put", key, err)
	}

	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		_ = os.Remove(tmp.Name())

		return persistence.NewKeyError("put", key, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())

		return persistence.NewKeyError("put", key, err)
	}

	return nil
}

func (fp *Persistence) Delete(_ context.Context, key string) error {
	path, err := fp.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return persistence.NewKeyError("delete", key, err)
	}

	return nil
}

func (fp *Persistence) List(_ context.Context, prefix string) ([]string, error) {
	dir := fp.root
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		for _, s := range strings.Split(prefix[:i], "/") {
			if s == "" || s == "." || s == ".." {
				return nil, persistence.NewKeyError("list", prefix, persistence.ErrInvalidKey)
			}

			dir = filepath.Join(dir, url.PathEscape(s))
		}
	}

	var keys []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !strings.HasSuffix(d.Name(), ext) {
			return nil
		}

		key, err := fp.keyOf(path)
		if err != nil {
			return err
		}

		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}

		return nil, persistence.NewKeyError("list", prefix, err)
	}

	sort.Strings(keys)

	return keys, nil
}

func (fp *Persistence) keyOf(path string) (string, error) {
	rel, err := filepath.Rel(fp.root, strings.TrimSuffix(path, ext))
	if err != nil {
		return "", err
	}

	segments := strings.Split(filepath.ToSlash(rel), "/")
	for i, s := range segments {
		decoded, err := url.PathUnescape(s)
		if err != nil {
			return "", err
		}

		segments[i] = decoded
	}

	return strings.Join(segments, "/"), nil
}
