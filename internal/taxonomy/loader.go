package taxonomy

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/sponsorship-analyzer/constants"
)

//go:embed default.yaml
var defaultYAML []byte

// File is the on-disk taxonomy format.
type File struct {
	Placements []FileEntry `yaml:"placements"`
}

// FileEntry is one placement in a taxonomy file.
type FileEntry struct {
	Name     string   `yaml:"name"`
	Category string   `yaml:"category"`
	Popular  bool     `yaml:"popular"`
	Aliases  []string `yaml:"aliases"`
}

// Parse decodes a taxonomy YAML document. IDs are assigned 1..n in file order;
// a database-backed source replaces them with row ids.
func Parse(data []byte) ([]Entry, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	out := make([]Entry, 0, len(f.Placements))
	for i, p := range f.Placements {
		cat, ok := constants.Canonicalize(p.Category)
		if !ok {
			return nil, fmt.Errorf("parse taxonomy: placement %q: unknown category %q (want one of %s)",
				p.Name, p.Category, strings.Join(constants.AsStringSlice(), ", "))
		}
		out = append(out, Entry{
			ID:            int64(i + 1),
			CanonicalName: p.Name,
			Category:      cat,
			IsPopular:     p.Popular,
			Aliases:       p.Aliases,
		})
	}
	return out, nil
}

// LoadFile reads a taxonomy YAML file.
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Default returns the taxonomy bundled with the binary.
func Default() ([]Entry, error) {
	return Parse(defaultYAML)
}

// LoadEntries reads path, or the bundled taxonomy when path is empty.
func LoadEntries(path string) ([]Entry, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}
