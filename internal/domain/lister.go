package domain

import (
	"errors"
	"io/fs"
	"path/filepath"
	"slices"
)

// Lister reads directory listings. Implementations return fs.ErrNotExist
// (possibly wrapped) for an absent directory.
type Lister interface {
	ListNames(dir string) ([]string, error)
}

// FileExists reports whether path is present in its parent's listing. An
// absent parent directory means the file is absent too.
func FileExists(l Lister, path string) (bool, error) {
	names, err := l.ListNames(filepath.Dir(path))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return slices.Contains(names, filepath.Base(path)), nil
}
