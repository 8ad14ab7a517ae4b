package cmdfile

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/wrf-postprocess/internal/adapter/fs"
)

// File is one command file: its base name and its lines.
type File struct {
	Name  string
	Lines []string
}

// FileName is the command file of one (variable, frequency) pair,
// "cmdfile.<variable>.<frequency>".
func FileName(parts ...string) string {
	return "cmdfile." + strings.Join(parts, ".")
}

// Content renders the file, one command per line.
func (f File) Content() []byte {
	if len(f.Lines) == 0 {
		return nil
	}
	return []byte(strings.Join(f.Lines, "\n") + "\n")
}

// WriteFiles writes every file into dir atomically and returns their paths.
// Two files with one name are refused before anything is written.
func WriteFiles(dir string, files []File) ([]string, error) {
	names := make(map[string]bool, len(files))
	for _, f := range files {
		if names[f.Name] {
			return nil, fmt.Errorf("command file %s listed twice", f.Name)
		}
		names[f.Name] = true
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		p := filepath.Join(dir, f.Name)
		if err := fs.WriteFileAtomic(p, f.Content(), 0o644); err != nil {
			return paths, fmt.Errorf("write command file %s: %w", f.Name, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
