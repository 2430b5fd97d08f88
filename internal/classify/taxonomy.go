package classify

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultTaxonomy []byte

// Category is one top-level folder of the filing taxonomy.
type Category struct {
	Folder     string   `yaml:"folder"`
	Tag        string   `yaml:"tag"`
	Subfolders []string `yaml:"subfolders"`
}

// Taxonomy is the fixed folder tree the classifier chooses from.
type Taxonomy struct {
	CatchAll           string     `yaml:"catch_all"`
	CatchAllConfidence float64    `yaml:"catch_all_confidence"`
	Categories         []Category `yaml:"categories"`
}

// DefaultTaxonomy returns the embedded taxonomy.
func DefaultTaxonomy() (Taxonomy, error) {
	return ParseTaxonomy(defaultTaxonomy)
}

// LoadTaxonomy reads path when set, otherwise the embedded default.
func LoadTaxonomy(path string) (Taxonomy, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultTaxonomy()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Taxonomy{}, fmt.Errorf("read taxonomy %s: %w", path, err)
	}
	return ParseTaxonomy(raw)
}

// ParseTaxonomy decodes and validates a YAML taxonomy.
func ParseTaxonomy(raw []byte) (Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Taxonomy{}, fmt.Errorf("parse taxonomy: %w", err)
	}
	if len(t.Categories) == 0 {
		return Taxonomy{}, fmt.Errorf("taxonomy has no categories")
	}
	seen := make(map[string]struct{}, len(t.Categories))
	for i, c := range t.Categories {
		name := strings.TrimSpace(c.Folder)
		if name == "" {
			return Taxonomy{}, fmt.Errorf("taxonomy category %d has no folder", i)
		}
		if strings.Contains(name, "/") {
			return Taxonomy{}, fmt.Errorf("taxonomy folder %q contains '/'", name)
		}
		if _, dup := seen[name]; dup {
			return Taxonomy{}, fmt.Errorf("taxonomy folder %q listed twice", name)
		}
		seen[name] = struct{}{}
	}
	if t.CatchAll == "" {
		t.CatchAll = t.Categories[len(t.Categories)-1].Folder
	}
	if t.CatchAllConfidence <= 0 || t.CatchAllConfidence > 1 {
		t.CatchAllConfidence = 0.95
	}
	return t, nil
}

// Tags lists the category tags in taxonomy order.
func (t Taxonomy) Tags() []string {
	out := make([]string, 0, len(t.Categories))
	for _, c := range t.Categories {
		if c.Tag != "" {
			out = append(out, c.Tag)
		}
	}
	return out
}
