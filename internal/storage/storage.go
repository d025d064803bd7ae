// Package storage implements the artifact storage port. Snapshots are
// canonical pretty-printed UTF-8 JSON documents inside a run directory;
// binary artifacts (release assets) are stored verbatim.
package storage

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/repovault/repovault/pkg/errors"
)

// Store is the contract the strategies persist through
type Store interface {
	// WriteJSON marshals v as an indented JSON document at the relative path
	WriteJSON(path string, v any) error

	// ReadJSON decodes the JSON document at the relative path into out.
	// A top-level value that is neither array nor object is a validation error.
	ReadJSON(path string, out any) error

	// WriteFile streams binary content to the relative path
	WriteFile(path string, r io.Reader) (int64, error)

	// Open opens a stored artifact for reading
	Open(path string) (io.ReadCloser, error)

	// Exists reports whether the relative path exists
	Exists(path string) bool

	// Abs resolves a relative artifact path to an absolute filesystem
	// path, for callers that must hand a real file to an upload API.
	Abs(path string) string
}

// FileStore is the on-disk Store rooted at the run directory
type FileStore struct {
	root string
}

// NewFileStore creates a Store rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Root returns the run directory
func (s *FileStore) Root() string {
	return s.root
}

// Abs implements Store
func (s *FileStore) Abs(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

// WriteJSON implements Store. Parent directories are created.
func (s *FileStore) WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.ErrIO("failed to encode "+path, err)
	}
	data = append(data, '\n')

	target := s.Abs(path)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.ErrIO("failed to create directory for "+path, err)
	}
	if err := os.WriteFile(target, data, 0644); err != nil {
		return errors.ErrIO("failed to write "+path, err)
	}
	return nil
}

// ReadJSON implements Store
func (s *FileStore) ReadJSON(path string, out any) error {
	data, err := os.ReadFile(s.Abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return errors.ErrNotFound(path)
		}
		return errors.ErrIO("failed to read "+path, err)
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 || (trimmed[0] != '[' && trimmed[0] != '{') {
		return errors.ErrValidation("malformed document " + path + ": top-level value must be an array or object")
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.ErrValidation("malformed document " + path + ": " + err.Error())
	}
	return nil
}

// WriteFile implements Store. Parent directories are created.
func (s *FileStore) WriteFile(path string, r io.Reader) (int64, error) {
	target := s.Abs(path)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return 0, errors.ErrIO("failed to create directory for "+path, err)
	}
	f, err := os.Create(target)
	if err != nil {
		return 0, errors.ErrIO("failed to create "+path, err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return n, errors.ErrIO("failed to write "+path, err)
	}
	return n, nil
}

// Open implements Store
func (s *FileStore) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(s.Abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrNotFound(path)
		}
		return nil, errors.ErrIO("failed to open "+path, err)
	}
	return f, nil
}

// Exists implements Store
func (s *FileStore) Exists(path string) bool {
	_, err := os.Stat(s.Abs(path))
	return err == nil
}
