package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"ms-events/internal/models"
)

//go:embed sports.yaml
var defaultSports []byte

// Catalog is the fixed set of sport types. It is built once at start and
// never changes afterwards, so it is safe to share between requests.
type Catalog struct {
	sports []models.Sport
	byName map[string]models.Sport
	byID   map[int]models.Sport
}

type file struct {
	Sports []models.Sport `yaml:"sports"`
}

// Default returns the catalog bundled with the binary.
func Default() (*Catalog, error) {
	return Parse(defaultSports)
}

// Load reads the catalog from path, or the bundled one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sport catalog %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sport catalog: %w", err)
	}
	return New(f.Sports)
}

func New(sports []models.Sport) (*Catalog, error) {
	if len(sports) == 0 {
		return nil, errors.New("sport catalog is empty")
	}
	c := &Catalog{
		sports: make([]models.Sport, 0, len(sports)),
		byName: make(map[string]models.Sport, len(sports)),
		byID:   make(map[int]models.Sport, len(sports)),
	}
	for _, s := range sports {
		s.Name = strings.TrimSpace(s.Name)
		if s.ID <= 0 {
			return nil, fmt.Errorf("sport %q has invalid id %d", s.Name, s.ID)
		}
		if s.Name == "" {
			return nil, fmt.Errorf("sport %d has no name", s.ID)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate sport id %d", s.ID)
		}
		if _, dup := c.byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate sport name %q", s.Name)
		}
		c.sports = append(c.sports, s)
		c.byName[s.Name] = s
		c.byID[s.ID] = s
	}
	return c, nil
}

// ByName matches the display name exactly.
func (c *Catalog) ByName(name string) (models.Sport, bool) {
	s, ok := c.byName[name]
	return s, ok
}

func (c *Catalog) ByID(id int) (models.Sport, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// All returns a copy in catalog order.
func (c *Catalog) All() []models.Sport {
	out := make([]models.Sport, len(c.sports))
	copy(out, c.sports)
	return out
}
