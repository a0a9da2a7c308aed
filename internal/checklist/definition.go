package checklist

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/danceforge/backoffice/internal/models"
)

//go:embed default.yaml
var defaultDefinition []byte

// ErrInvalidDefinition is returned when a checklist definition fails validation
var ErrInvalidDefinition = errors.New("invalid checklist definition")

// Definition is the static category/item tree plus the test id mapping
type Definition struct {
	Categories []CategoryDefinition `yaml:"categories"`
}

// CategoryDefinition describes one category and its items in display order
type CategoryDefinition struct {
	ID    string           `yaml:"id"`
	Title string           `yaml:"title"`
	Items []ItemDefinition `yaml:"items"`
}

// ItemDefinition describes one checklist item. TestIDs[0] is canonical.
type ItemDefinition struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	TestIDs     []string `yaml:"test_ids"`
}

// DefaultDefinition returns the built-in readiness checklist
func DefaultDefinition() (*Definition, error) {
	return ParseDefinition(defaultDefinition)
}

// LoadDefinition loads path, or the built-in checklist when path is empty
func LoadDefinition(path string) (*Definition, error) {
	if path == "" {
		return DefaultDefinition()
	}
	return LoadDefinitionFile(path)
}

// LoadDefinitionFile loads a checklist definition from a YAML file
func LoadDefinitionFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseDefinition(data)
}

// ParseDefinition parses and validates a YAML checklist definition
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}

	return &def, nil
}

// Validate checks ids are present and unique and every test id has one owner
func (d *Definition) Validate() error {
	if len(d.Categories) == 0 {
		return fmt.Errorf("%w: no categories", ErrInvalidDefinition)
	}

	categoryIDs := make(map[string]bool)
	itemIDs := make(map[string]bool)
	testOwners := make(map[string]string)

	for _, cat := range d.Categories {
		if cat.ID == "" {
			return fmt.Errorf("%w: category id is required", ErrInvalidDefinition)
		}
		if categoryIDs[cat.ID] {
			return fmt.Errorf("%w: duplicate category %q", ErrInvalidDefinition, cat.ID)
		}
		categoryIDs[cat.ID] = true

		for _, item := range cat.Items {
			if item.ID == "" {
				return fmt.Errorf("%w: item id is required in category %q", ErrInvalidDefinition, cat.ID)
			}
			if itemIDs[item.ID] {
				return fmt.Errorf("%w: duplicate item %q", ErrInvalidDefinition, item.ID)
			}
			itemIDs[item.ID] = true

			for _, testID := range item.TestIDs {
				if testID == "" {
					return fmt.Errorf("%w: empty test id on item %q", ErrInvalidDefinition, item.ID)
				}
				if owner, ok := testOwners[testID]; ok && owner != item.ID {
					return fmt.Errorf("%w: test id %q maps to both %q and %q",
						ErrInvalidDefinition, testID, owner, item.ID)
				}
				testOwners[testID] = item.ID
			}
		}
	}

	return nil
}

// Tree builds a fresh tree with every item pending and no result
func (d *Definition) Tree() []*models.ChecklistCategory {
	out := make([]*models.ChecklistCategory, 0, len(d.Categories))
	for _, cat := range d.Categories {
		c := &models.ChecklistCategory{
			ID:    cat.ID,
			Title: cat.Title,
			Items: make([]*models.ChecklistItem, 0, len(cat.Items)),
		}
		for _, item := range cat.Items {
			c.Items = append(c.Items, &models.ChecklistItem{
				ID:          item.ID,
				Title:       item.Title,
				Description: item.Description,
				Status:      models.ItemPending,
			})
		}
		out = append(out, c)
	}
	return out
}

// TestIDMap builds the test id mapping declared by the definition
func (d *Definition) TestIDMap() *TestIDMap {
	m := NewTestIDMap()
	for _, cat := range d.Categories {
		for _, item := range cat.Items {
			for _, testID := range item.TestIDs {
				m.Add(testID, item.ID)
			}
		}
	}
	return m
}
