// Package settings merges run-derived overrides into the plotting
// configuration document.
package settings

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/couchcryptid/wrf-postprocess/internal/adapter/fs"
	"github.com/couchcryptid/wrf-postprocess/internal/domain"
	"gopkg.in/yaml.v3"
)

// Store writes per-chunk plot settings derived from a base YAML document.
// The base is read once and reused. It implements pipeline.SettingsWriter.
type Store struct {
	basePath string

	once sync.Once
	base []byte
	err  error
}

// NewStore creates a Store over the PLOT_CONFIG document at basePath.
func NewStore(basePath string) *Store {
	return &Store{basePath: basePath}
}

// Check reads the base document so a missing or malformed PLOT_CONFIG is
// reported before any work starts.
func (s *Store) Check() error {
	base, err := s.load()
	if err != nil {
		return err
	}
	_, err = Merge(base, domain.PlotOverrides{})
	return err
}

// WriteSettings merges o into the base document and writes the result
// atomically to path.
func (s *Store) WriteSettings(path string, o domain.PlotOverrides) error {
	base, err := s.load()
	if err != nil {
		return err
	}
	out, err := Merge(base, o)
	if err != nil {
		return fmt.Errorf("merge %s: %w", s.basePath, err)
	}
	return fs.WriteFileAtomic(path, out, 0o644)
}

func (s *Store) load() ([]byte, error) {
	s.once.Do(func() {
		data, err := os.ReadFile(s.basePath)
		if err != nil {
			s.err = &domain.ConfigError{Path: s.basePath, Reason: "cannot read plot configuration", Err: err}
			return
		}
		s.base = data
	})
	return s.base, s.err
}

// Merge replaces the override keys of a YAML mapping document and leaves
// every other key, comment and ordering as it was. Keys absent from the
// base are appended.
func Merge(base []byte, o domain.PlotOverrides) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(base, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, errors.New("expected a single YAML document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping at the top level, got %s", kindName(root.Kind))
	}

	for _, kv := range o.Keys() {
		var value yaml.Node
		if err := value.Encode(kv.Value); err != nil {
			return nil, fmt.Errorf("encode %s: %w", kv.Key, err)
		}
		setKey(root, kv.Key, &value)
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	return out, nil
}

func setKey(mapping *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			// Keep the line comment of the replaced value.
			value.LineComment = mapping.Content[i+1].LineComment
			mapping.Content[i+1] = value
			return
		}
	}
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return fmt.Sprintf("kind %d", k)
	}
}
