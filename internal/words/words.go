// Package words provides the pre-loaded word-pair catalog that rooms draw
// from when assigning secret words. The catalog is read-only after load and
// safe to share across rooms without synchronization.
package words

import (
	"fmt"
	"math/rand"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Pair struct {
	Civilian   string `yaml:"civilian" json:"civilian"`
	Undercover string `yaml:"undercover" json:"undercover"`
}

type Category struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Pairs       []Pair `yaml:"pairs" json:"pairs"`
}

type catalog struct {
	Categories []Category `yaml:"categories"`
}

// Provider serves categories and random pairs from the loaded catalog.
type Provider struct {
	categories []Category
}

// Load reads the YAML catalog at path. A missing or unreadable file is not
// fatal: the built-in default category is used instead, matching how the
// catalog behaves when content seeding has not run yet.
func Load(path string, logger *zap.Logger) *Provider {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("word pair catalog not readable, using defaults",
			zap.String("path", path), zap.Error(err))
		return &Provider{categories: defaultCategories()}
	}

	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil || len(c.Categories) == 0 {
		logger.Warn("word pair catalog invalid, using defaults",
			zap.String("path", path), zap.Error(err))
		return &Provider{categories: defaultCategories()}
	}

	logger.Info("loaded word pair catalog",
		zap.String("path", path), zap.Int("categories", len(c.Categories)))
	return &Provider{categories: c.Categories}
}

func defaultCategories() []Category {
	return []Category{
		{
			Name:        "Everyday Words",
			Description: "Common everyday objects and concepts",
			Pairs: []Pair{
				{Civilian: "Coffee", Undercover: "Tea"},
				{Civilian: "Dog", Undercover: "Cat"},
				{Civilian: "Car", Undercover: "Bus"},
				{Civilian: "Apple", Undercover: "Orange"},
				{Civilian: "Summer", Undercover: "Winter"},
			},
		},
	}
}

// Categories returns every loaded category.
func (p *Provider) Categories() []Category {
	return p.categories
}

// Category looks a category up by name, case-insensitively.
func (p *Provider) Category(name string) (Category, bool) {
	for _, c := range p.categories {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Category{}, false
}

// RandomPair draws a pair from the named category, or from the first category
// when name is empty.
func (p *Provider) RandomPair(name string) (Pair, error) {
	var cat Category
	if name == "" {
		cat = p.categories[0]
	} else {
		c, ok := p.Category(name)
		if !ok {
			return Pair{}, fmt.Errorf("word pair category %q not found", name)
		}
		cat = c
	}
	if len(cat.Pairs) == 0 {
		return Pair{}, fmt.Errorf("word pair category %q has no pairs", cat.Name)
	}
	return cat.Pairs[rand.Intn(len(cat.Pairs))], nil
}
