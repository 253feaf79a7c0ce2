package species

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	if n := len(c.All()); n != 20 {
		t.Errorf("Expected 20 species, got %d", n)
	}
	if n := len(c.ByType(TypeFish)); n != 12 {
		t.Errorf("Expected 12 fish, got %d", n)
	}
	if n := len(c.ByType(TypeBird)); n != 8 {
		t.Errorf("Expected 8 birds, got %d", n)
	}

	for _, category := range knownCategories {
		if n := len(c.ByCategory(category)); n != 4 {
			t.Errorf("Expected 4 species in category %s, got %d", category, n)
		}
	}

	if got := c.Categories(); len(got) != len(knownCategories) || got[0] != CategoryRiver {
		t.Errorf("Unexpected categories %v", got)
	}
}

func TestLookup(t *testing.T) {
	c := Default()

	s, ok := c.Lookup("pike")
	if !ok {
		t.Fatalf("Expected pike to exist")
	}
	if s.ScientificName != "Esox lucius" || s.Type != TypeFish || s.Category != CategoryRiver {
		t.Errorf("Unexpected species %+v", s)
	}
	if !strings.Contains(s.Description, `"water wolf"`) {
		t.Errorf("Expected quotes in description to survive, got %q", s.Description)
	}

	if _, ok := c.Lookup("unicorn"); ok {
		t.Errorf("Expected unknown species to be absent")
	}
}

func TestAllReturnsCopy(t *testing.T) {
	c := Default()
	all := c.All()
	all[0].Name = "changed"

	if s, _ := c.Lookup(all[0].ID); s.Name == "changed" {
		t.Errorf("All should return a copy")
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing id", "species:\n  - name: x\n    type: fish\n    category: river\n"},
		{"duplicate id", "species:\n  - id: a\n    type: fish\n    category: river\n  - id: a\n    type: bird\n    category: european\n"},
		{"unknown type", "species:\n  - id: a\n    type: reptile\n    category: river\n"},
		{"unknown category", "species:\n  - id: a\n    type: fish\n    category: arctic\n"},
		{"not yaml", "species: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load([]byte(tt.yaml)); err == nil {
				t.Errorf("Expected an error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := "species:\n  - id: carp\n    name: Common Carp\n    type: fish\n    category: european\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ids := c.IDs(); len(ids) != 1 || ids[0] != "carp" {
		t.Errorf("Expected [carp], got %v", ids)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("Expected an error for a missing file")
	}
}
