package species

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

type Type string

const (
	TypeFish Type = "fish"
	TypeBird Type = "bird"
)

type Category string

const (
	CategoryRiver         Category = "river"
	CategoryMediterranean Category = "mediterranean"
	CategoryTropical      Category = "tropical"
	CategoryEuropean      Category = "european"
	CategoryTropicalBird  Category = "tropical_bird"
)

// knownCategories in display order
var knownCategories = []Category{
	CategoryRiver,
	CategoryMediterranean,
	CategoryTropical,
	CategoryEuropean,
	CategoryTropicalBird,
}

// Species is one entry of the catalog
type Species struct {
	ID             string   `yaml:"id" json:"id"`
	Name           string   `yaml:"name" json:"name"`
	ScientificName string   `yaml:"scientificName" json:"scientificName"`
	Category       Category `yaml:"category" json:"category"`
	Type           Type     `yaml:"type" json:"type"`
	Description    string   `yaml:"description" json:"description"`
	ImageURL       string   `yaml:"imageUrl" json:"imageUrl"`
	Habitat        string   `yaml:"habitat" json:"habitat"`
	Size           string   `yaml:"size" json:"size"`
	Diet           string   `yaml:"diet" json:"diet"`
}

// Catalog is a read-only, in-memory set of species.
// It is safe for concurrent use since it is never modified after loading.
type Catalog struct {
	species []Species
	byID    map[string]int
}

type catalogFile struct {
	Species []Species `yaml:"species"`
}

// --------------------------------------------------------------------------
// Loading
// --------------------------------------------------------------------------

// Default returns the catalog compiled into the binary
func Default() *Catalog {
	c, err := Load(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded species catalog is invalid: %v", err))
	}
	return c
}

// LoadFile reads a catalog from a YAML file
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read species catalog: %w", err)
	}
	return Load(data)
}

// Load parses and validates a YAML catalog
func Load(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse species catalog: %w", err)
	}

	c := &Catalog{
		species: make([]Species, 0, len(file.Species)),
		byID:    make(map[string]int, len(file.Species)),
	}
	for i, s := range file.Species {
		if s.ID == "" {
			return nil, fmt.Errorf("species #%d: id is required", i)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("species %s: duplicate id", s.ID)
		}
		if s.Type != TypeFish && s.Type != TypeBird {
			return nil, fmt.Errorf("species %s: unknown type %q", s.ID, s.Type)
		}
		if !s.Category.valid() {
			return nil, fmt.Errorf("species %s: unknown category %q", s.ID, s.Category)
		}
		c.byID[s.ID] = len(c.species)
		c.species = append(c.species, s)
	}
	return c, nil
}

func (c Category) valid() bool {
	for _, k := range knownCategories {
		if c == k {
			return true
		}
	}
	return false
}

// --------------------------------------------------------------------------
// Lookups
// --------------------------------------------------------------------------

// All returns all species in catalog order
func (c *Catalog) All() []Species {
	out := make([]Species, len(c.species))
	copy(out, c.species)
	return out
}

// Lookup returns the species with the given id
func (c *Catalog) Lookup(id string) (Species, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Species{}, false
	}
	return c.species[i], true
}

func (c *Catalog) ByType(t Type) []Species {
	return c.filter(func(s Species) bool { return s.Type == t })
}

func (c *Catalog) ByCategory(category Category) []Species {
	return c.filter(func(s Species) bool { return s.Category == category })
}

// Categories returns the categories that have at least one species, in display order.
// Unknown categories can't occur since Load rejects them.
func (c *Catalog) Categories() []Category {
	seen := make(map[Category]bool)
	for _, s := range c.species {
		seen[s.Category] = true
	}
	out := make([]Category, 0, len(seen))
	for _, k := range knownCategories {
		if seen[k] {
			out = append(out, k)
		}
	}
	return out
}

// IDs returns all species ids sorted alphabetically
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Catalog) filter(keep func(Species) bool) []Species {
	var out []Species
	for _, s := range c.species {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}
