package plugin

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var builtinTemplates []byte

// Template is a named config skeleton for the create flow.
type Template struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Config      map[string]any `yaml:"config"`
}

type templateFile struct {
	Templates []Template `yaml:"templates"`
}

// TemplateCatalog holds templates in declaration order. It is read-only
// after loading.
type TemplateCatalog struct {
	order  []string
	byName map[string]Template
	docs   map[string][]byte
}

// ParseTemplates decodes a templates YAML document.
func ParseTemplates(data []byte) ([]Template, error) {
	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	for i, t := range f.Templates {
		if strings.TrimSpace(t.Name) == "" {
			return nil, fmt.Errorf("template %d has no name", i)
		}
	}
	return f.Templates, nil
}

// LoadTemplates returns the embedded templates, extended or overridden by the
// templates in userFile when it is not empty.
func LoadTemplates(userFile string) (*TemplateCatalog, error) {
	base, err := ParseTemplates(builtinTemplates)
	if err != nil {
		return nil, err
	}
	all := base
	if userFile != "" {
		data, err := os.ReadFile(userFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read templates file: %w", err)
		}
		extra, err := ParseTemplates(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", userFile, err)
		}
		all = append(all, extra...)
	}
	return NewTemplateCatalog(all)
}

// NewTemplateCatalog indexes templates by lowercase name. A later template
// replaces an earlier one with the same name but keeps its position.
func NewTemplateCatalog(templates []Template) (*TemplateCatalog, error) {
	c := &TemplateCatalog{
		byName: make(map[string]Template, len(templates)),
		docs:   make(map[string][]byte, len(templates)),
	}
	for _, t := range templates {
		key := strings.ToLower(strings.TrimSpace(t.Name))
		cfg := t.Config
		if cfg == nil {
			cfg = map[string]any{}
		}
		doc, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", t.Name, err)
		}
		if _, ok := c.byName[key]; !ok {
			c.order = append(c.order, key)
		}
		c.byName[key] = t
		c.docs[key] = doc
	}
	return c, nil
}

// Names returns template names in declaration order.
func (c *TemplateCatalog) Names() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.order...)
}

// Describe returns the description of a template.
func (c *TemplateCatalog) Describe(name string) string {
	if c == nil {
		return ""
	}
	return c.byName[strings.ToLower(name)].Description
}

// Config returns a fresh copy of the template's config document.
func (c *TemplateCatalog) Config(name string) (json.RawMessage, bool) {
	if c == nil {
		return nil, false
	}
	doc, ok := c.docs[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), doc...), true
}

// Len returns the number of templates.
func (c *TemplateCatalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// sortedNames is used in error messages.
func (c *TemplateCatalog) sortedNames() []string {
	names := c.Names()
	sort.Strings(names)
	return names
}
