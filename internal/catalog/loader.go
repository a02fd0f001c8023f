package catalog

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"

	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/tinkybink/pkg/models"
)

//go:embed data/*.yaml
var embedded embed.FS

// categoryFile is the on-disk shape of one category definition.
type categoryFile struct {
	models.CategoryInfo `yaml:",inline"`
	Scenarios           []models.Scenario `yaml:"scenarios"`
	Templates           []TemplateSpec    `yaml:"templates"`
}

// Load returns the embedded catalog, overlaid with the definitions found in
// dataDir when it is not empty. A file in dataDir replaces the embedded
// category with the same tag.
func Load(dataDir string) (*Registry, error) {
	reg := NewRegistry()
	if err := LoadFS(reg, embedded, "data", false); err != nil {
		return nil, fmt.Errorf("loading embedded catalog: %w", err)
	}
	if dataDir == "" {
		return reg, nil
	}
	info, err := os.Stat(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening catalog.data_dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog.data_dir %s is not a directory", dataDir)
	}
	if err := LoadFS(reg, os.DirFS(dataDir), ".", true); err != nil {
		return nil, fmt.Errorf("loading %s: %w", dataDir, err)
	}
	return reg, nil
}

// LoadFS decodes every *.yaml file in dir, in name order, into reg. With
// replace set, an existing tag is overwritten instead of rejected.
func LoadFS(reg *Registry, fsys fs.FS, dir string, replace bool) error {
	matches, err := fs.Glob(fsys, path.Join(dir, "*.yaml"))
	if err != nil {
		return fmt.Errorf("listing category files: %w", err)
	}
	for _, name := range matches {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		cat, err := decodeCategory(data)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", name, err)
		}
		if replace {
			reg.Replace(cat)
			continue
		}
		if err := reg.Register(cat); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func decodeCategory(data []byte) (*Category, error) {
	var f categoryFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if f.Tag == "" {
		return nil, fmt.Errorf("missing tag")
	}
	if f.EmotionLevel == "" {
		f.EmotionLevel = models.EmotionMedium
	}
	if !f.EmotionLevel.Valid() {
		return nil, fmt.Errorf("category %s: emotion_level %q", f.Tag, f.EmotionLevel)
	}
	if f.Weight == 0 {
		f.Weight = 1.0
	}
	if f.Weight < 0 || f.Weight > 1 {
		return nil, fmt.Errorf("category %s: weight %v outside (0, 1]", f.Tag, f.Weight)
	}

	cat := &Category{CategoryInfo: f.CategoryInfo}
	if len(f.Scenarios) > 0 {
		cat.Generators = append(cat.Generators, &TableGenerator{Rows: f.Scenarios})
	}
	for i := range f.Templates {
		if err := f.Templates[i].Validate(); err != nil {
			return nil, fmt.Errorf("category %s: %w", f.Tag, err)
		}
		cat.Generators = append(cat.Generators, &TemplateGenerator{Spec: f.Templates[i]})
	}
	return cat, nil
}
