// Package blob is a filesystem-backed object store for paper assets: source
// image archives under papers/ and extracted figure images under images/.
// Keys are slash-separated paths relative to the store root.
package blob

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"xplorer/internal/apperr"
)

// Store reads and writes objects under a root directory and renders public
// URLs under a base URL.
type Store struct {
	root    string
	baseURL string
}

// New creates a store rooted at dir. baseURL is prefixed to keys by
// PublicURL and may be empty.
func New(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Store{root: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *Store) pathFor(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+key)))
}

// Upload writes an object, creating parent directories as needed.
func (s *Store) Upload(key string, data []byte) error {
	dst := s.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// UploadFile copies a local file into the store.
func (s *Store) UploadFile(key, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	defer f.Close()

	dst := s.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, f); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// Download reads an object.
func (s *Store) Download(key string) ([]byte, error) {
	data, err := os.ReadFile(s.pathFor(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.New(apperr.NotFound, "blob.Store.Download", "object %s not in store", key)
	}
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	return data, nil
}

// Exists reports whether an object is present.
func (s *Store) Exists(key string) bool {
	_, err := os.Stat(s.pathFor(key))
	return err == nil
}

// List returns the keys of all objects whose key starts with prefix,
// sorted.
func (s *Store) List(prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes an object. Removing an absent object succeeds, so
// eviction cascades can retry safely.
func (s *Store) Delete(key string) error {
	err := os.Remove(s.pathFor(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes all objects under a prefix.
func (s *Store) DeletePrefix(prefix string) error {
	keys, err := s.List(prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// PublicURL renders the externally reachable URL for a key.
func (s *Store) PublicURL(key string) string {
	if s.baseURL == "" {
		return key
	}
	return s.baseURL + "/" + key
}
