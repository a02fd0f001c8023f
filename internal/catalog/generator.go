package catalog

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/valter-silva-au/tinkybink/pkg/models"
)

// TableGenerator emits a fixed list of curated scenarios in order.
type TableGenerator struct {
	Rows []models.Scenario
}

// Generate returns a copy of the rows; the seed is ignored.
func (g *TableGenerator) Generate(_ context.Context, _ uint64) ([]models.Scenario, error) {
	out := make([]models.Scenario, len(g.Rows))
	copy(out, g.Rows)
	return out, nil
}

// Slot is one placeholder of a template and its candidate values.
type Slot struct {
	Name   string   `yaml:"name"`
	Values []string `yaml:"values"`
}

// TemplateSpec describes a templated generator: an input pattern expanded
// over the cross product of its slots, with the response chosen by the value
// of the key slot. {name} inserts a value verbatim and {Name} title-cases it.
type TemplateSpec struct {
	Pattern   string            `yaml:"pattern"`
	Key       string            `yaml:"key,omitempty"`
	Slots     []Slot            `yaml:"slots"`
	Responses map[string]string `yaml:"responses,omitempty"`
	Default   string            `yaml:"default,omitempty"`
	Sample    int               `yaml:"sample,omitempty"`
	Layer     int               `yaml:"layer,omitempty"`
	Weight    float64           `yaml:"weight,omitempty"`
}

// Validate reports structural problems in the template.
func (s *TemplateSpec) Validate() error {
	if strings.TrimSpace(s.Pattern) == "" {
		return fmt.Errorf("template has no pattern")
	}
	if len(s.Slots) == 0 {
		return fmt.Errorf("template %q has no slots", s.Pattern)
	}
	names := make(map[string]bool, len(s.Slots))
	for _, slot := range s.Slots {
		if slot.Name == "" || len(slot.Values) == 0 {
			return fmt.Errorf("template %q has an empty slot", s.Pattern)
		}
		if names[slot.Name] {
			return fmt.Errorf("template %q repeats slot %s", s.Pattern, slot.Name)
		}
		names[slot.Name] = true
	}
	if s.Key != "" && !names[s.Key] {
		return fmt.Errorf("template %q keys on unknown slot %s", s.Pattern, s.Key)
	}
	if s.Sample < 0 {
		return fmt.Errorf("template %q has negative sample size", s.Pattern)
	}
	return nil
}

// TemplateGenerator expands a TemplateSpec.
type TemplateGenerator struct {
	Spec TemplateSpec
}

// Combinations returns the size of the full cross product.
func (g *TemplateGenerator) Combinations() int {
	n := 1
	for _, s := range g.Spec.Slots {
		n *= len(s.Values)
	}
	return n
}

// Generate expands every combination in slot order, first slot outermost.
// With a sample size below the cross-product size, a seeded subset is drawn
// and kept in combination order.
func (g *TemplateGenerator) Generate(ctx context.Context, seed uint64) ([]models.Scenario, error) {
	if err := g.Spec.Validate(); err != nil {
		return nil, err
	}
	total := g.Combinations()
	indexes := make([]int, 0, total)
	if g.Spec.Sample > 0 && g.Spec.Sample < total {
		rng := rand.New(rand.NewPCG(seed, seed>>1|1))
		indexes = append(indexes, rng.Perm(total)[:g.Spec.Sample]...)
		sort.Ints(indexes)
	} else {
		for i := 0; i < total; i++ {
			indexes = append(indexes, i)
		}
	}

	key := g.Spec.Key
	if key == "" {
		key = g.Spec.Slots[0].Name
	}

	out := make([]models.Scenario, 0, len(indexes))
	values := make(map[string]string, len(g.Spec.Slots))
	for n, idx := range indexes {
		if n%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		g.decode(idx, values)
		response, ok := g.Spec.Responses[values[key]]
		if !ok {
			response = g.Spec.Default
		}
		out = append(out, models.Scenario{
			Input:     render(g.Spec.Pattern, values),
			RawOutput: render(response, values),
			Layer:     g.Spec.Layer,
			Weight:    g.Spec.Weight,
		})
	}
	return out, nil
}

// decode maps a combination index to slot values, last slot varying fastest.
func (g *TemplateGenerator) decode(idx int, values map[string]string) {
	for i := len(g.Spec.Slots) - 1; i >= 0; i-- {
		slot := g.Spec.Slots[i]
		values[slot.Name] = slot.Values[idx%len(slot.Values)]
		idx /= len(slot.Values)
	}
}

func render(text string, values map[string]string) string {
	if text == "" {
		return ""
	}
	title := cases.Title(language.English, cases.NoLower)
	pairs := make([]string, 0, len(values)*4)
	for name, v := range values {
		pairs = append(pairs, "{"+name+"}", v, "{"+capitalize(name)+"}", title.String(v))
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
