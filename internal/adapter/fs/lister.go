// Package fs reads and writes the local output trees.
package fs

import (
	"fmt"
	"os"
	"sort"
)

// OSLister lists directories on the local filesystem.
// It implements domain.Lister.
type OSLister struct{}

// ListNames returns the entry names of dir, sorted. A missing directory
// yields an error wrapping fs.ErrNotExist.
func (OSLister) ListNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)
	return names, nil
}
