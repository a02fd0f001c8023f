// Package catalog holds the registry of AAC categories and the table and
// template generators that produce their scenarios.
package catalog

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/valter-silva-au/tinkybink/pkg/models"
)

// Generator produces the scenarios of one category. A generator is pure:
// the same seed yields the same scenarios in the same order.
type Generator interface {
	Generate(ctx context.Context, seed uint64) ([]models.Scenario, error)
}

// Category is a registry entry: metadata plus its ordered generators.
type Category struct {
	models.CategoryInfo
	Generators []Generator
}

// Registry maps category tags to their definitions.
type Registry struct {
	cats map[string]*Category
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{cats: make(map[string]*Category)}
}

// Register adds a category. Registering a tag twice is an error.
func (r *Registry) Register(c *Category) error {
	if c.Tag == "" {
		return fmt.Errorf("registering category: empty tag")
	}
	if _, exists := r.cats[c.Tag]; exists {
		return fmt.Errorf("registering category %s: already registered", c.Tag)
	}
	r.cats[c.Tag] = c
	return nil
}

// Replace adds or overwrites a category.
func (r *Registry) Replace(c *Category) {
	r.cats[c.Tag] = c
}

// Tags returns every registered tag in sorted order.
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.cats))
	for t := range r.cats {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// Len returns the number of registered categories.
func (r *Registry) Len() int { return len(r.cats) }

// Get returns the category registered under tag.
func (r *Registry) Get(tag string) (*Category, bool) {
	c, ok := r.cats[tag]
	return c, ok
}

// Info returns the metadata of tag.
func (r *Registry) Info(tag string) (models.CategoryInfo, bool) {
	c, ok := r.cats[tag]
	if !ok {
		return models.CategoryInfo{}, false
	}
	return c.CategoryInfo, true
}

// Generate runs the generators of tag in order. Each generator receives a
// seed derived from the build seed, the tag and its position.
func (r *Registry) Generate(ctx context.Context, tag string, seed uint64) ([]models.Scenario, error) {
	c, ok := r.cats[tag]
	if !ok {
		return nil, fmt.Errorf("generating %s: unknown category", tag)
	}
	var out []models.Scenario
	for i, g := range c.Generators {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scenarios, err := g.Generate(ctx, deriveSeed(seed, tag, i))
		if err != nil {
			return nil, fmt.Errorf("generating %s (generator %d): %w", tag, i, err)
		}
		for j := range scenarios {
			scenarios[j].Category = tag
		}
		out = append(out, scenarios...)
	}
	return out, nil
}

func deriveSeed(seed uint64, tag string, index int) uint64 {
	h := fnv.New64a()
	h.Write([]byte(tag))
	return seed ^ h.Sum64() ^ (uint64(index) * 0x9e3779b97f4a7c15)
}
