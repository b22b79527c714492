package prompt

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Template is a system/user prompt pair with {{variable}} placeholders.
type Template struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// Render fills both halves of the template.
func (t Template) Render(vars map[string]string) (system, user string, err error) {
	if t.System != "" {
		if system, err = Render(t.System, vars); err != nil {
			return "", "", fmt.Errorf("system prompt: %w", err)
		}
	}
	if user, err = Render(t.User, vars); err != nil {
		return "", "", fmt.Errorf("user prompt: %w", err)
	}
	return system, user, nil
}

// Catalog is a named set of templates loaded from YAML:
//
//	script.english:
//	  system: ...
//	  user: ...
type Catalog struct {
	templates map[string]Template
}

func LoadCatalog(data []byte) (*Catalog, error) {
	var templates map[string]Template
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("parse prompt catalog: %w", err)
	}
	for name, t := range templates {
		if t.User == "" {
			return nil, fmt.Errorf("prompt %q has no user template", name)
		}
	}
	return &Catalog{templates: templates}, nil
}

func (c *Catalog) Get(name string) (Template, bool) {
	t, ok := c.templates[name]
	return t, ok
}

// Names lists template names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.templates))
	for n := range c.templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
