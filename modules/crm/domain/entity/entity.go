package entity

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field is a target field a source column can be mapped to.
type Field struct {
	Name  string `yaml:"name" json:"name"`
	Label string `yaml:"label" json:"label"`
}

// Entity describes one CRM table: the remote document kind plus the
// field list used for local mapping suggestions.
type Entity struct {
	Name    string  `yaml:"name" json:"name"`
	Doctype string  `yaml:"doctype" json:"doctype"`
	Slug    string  `yaml:"slug" json:"slug"`
	Fields  []Field `yaml:"fields" json:"fields"`
}

func (e Entity) FieldNames() []string {
	out := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, f.Name)
	}
	return out
}

func (e Entity) HasField(name string) bool {
	for _, f := range e.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

type registryFile struct {
	Entities []Entity `yaml:"entities"`
}

// Registry resolves entities by name or slug.
type Registry struct {
	ordered []Entity
	byName  map[string]Entity
	bySlug  map[string]Entity
}

func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode entity registry: %w", err)
	}
	return NewRegistry(file.Entities...)
}

func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entity registry %s: %w", path, err)
	}
	return ParseRegistry(data)
}

func NewRegistry(entities ...Entity) (*Registry, error) {
	if len(entities) == 0 {
		return nil, fmt.Errorf("entity registry is empty")
	}
	r := &Registry{
		byName: make(map[string]Entity, len(entities)),
		bySlug: make(map[string]Entity, len(entities)),
	}
	for i, e := range entities {
		e.Name = strings.TrimSpace(e.Name)
		e.Doctype = strings.TrimSpace(e.Doctype)
		e.Slug = strings.ToLower(strings.TrimSpace(e.Slug))
		if e.Name == "" || e.Doctype == "" || e.Slug == "" {
			return nil, fmt.Errorf("entity #%d: name, doctype and slug are required", i+1)
		}
		if _, dup := r.byName[strings.ToLower(e.Name)]; dup {
			return nil, fmt.Errorf("entity %q declared twice", e.Name)
		}
		if _, dup := r.bySlug[e.Slug]; dup {
			return nil, fmt.Errorf("entity slug %q declared twice", e.Slug)
		}
		r.byName[strings.ToLower(e.Name)] = e
		r.bySlug[e.Slug] = e
		r.ordered = append(r.ordered, e)
	}
	return r, nil
}

// Lookup accepts the entity name ("Lead"), its doctype ("CRM Lead") or its slug ("leads").
func (r *Registry) Lookup(key string) (Entity, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	if e, ok := r.byName[key]; ok {
		return e, true
	}
	if e, ok := r.bySlug[key]; ok {
		return e, true
	}
	for _, e := range r.ordered {
		if strings.EqualFold(e.Doctype, key) {
			return e, true
		}
	}
	return Entity{}, false
}

func (r *Registry) All() []Entity {
	out := make([]Entity, len(r.ordered))
	copy(out, r.ordered)
	return out
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ordered))
	for _, e := range r.ordered {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}
