// Package indicator holds the static indicator catalog and the per-session
// selection state built on top of it.
package indicator

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Kind string

const (
	KindNumber Kind = "number"
	KindText   Kind = "text"
)

// ParamSpec describes one tunable parameter. Bounds are advisory: they feed
// the input widget and Check, never the store.
type ParamSpec struct {
	Name    string     `yaml:"name" json:"name"`
	Label   string     `yaml:"label" json:"label"`
	Kind    Kind       `yaml:"kind" json:"kind"`
	Default ParamValue `yaml:"default" json:"default"`
	Min     *float64   `yaml:"min" json:"min,omitempty"`
	Max     *float64   `yaml:"max" json:"max,omitempty"`
	Step    *float64   `yaml:"step" json:"step,omitempty"`
}

// Check reports whether v is outside the advertised bounds.
func (p ParamSpec) Check(v ParamValue) error {
	if p.Kind != KindNumber {
		return nil
	}
	f, ok := v.Float()
	if !ok {
		return fmt.Errorf("%s: %q is not a number", p.Name, v.String())
	}
	if p.Min != nil && f < *p.Min {
		return fmt.Errorf("%s: %v is below the minimum %v", p.Name, f, *p.Min)
	}
	if p.Max != nil && f > *p.Max {
		return fmt.Errorf("%s: %v is above the maximum %v", p.Name, f, *p.Max)
	}
	return nil
}

type Descriptor struct {
	ID          string      `yaml:"id" json:"id"`
	Label       string      `yaml:"label" json:"label"`
	Description string      `yaml:"description" json:"description"`
	Params      []ParamSpec `yaml:"params" json:"params"`
}

func (d Descriptor) Param(name string) (ParamSpec, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// Catalog is read-only after construction.
type Catalog struct {
	items []Descriptor
	index map[string]int
}

type catalogFile struct {
	Indicators []Descriptor `yaml:"indicators"`
}

func NewCatalog(items []Descriptor) (*Catalog, error) {
	if len(items) == 0 {
		return nil, errors.New("indicator catalog is empty")
	}
	c := &Catalog{items: make([]Descriptor, 0, len(items)), index: make(map[string]int, len(items))}
	for i, d := range items {
		d.ID = strings.ToLower(strings.TrimSpace(d.ID))
		if d.ID == "" {
			return nil, fmt.Errorf("indicator #%d: id is required", i)
		}
		if _, dup := c.index[d.ID]; dup {
			return nil, fmt.Errorf("indicator %s: duplicate id", d.ID)
		}
		if d.Label == "" {
			d.Label = strings.ToUpper(d.ID)
		}
		params, err := normalizeParams(d.ID, d.Params)
		if err != nil {
			return nil, err
		}
		d.Params = params
		c.index[d.ID] = len(c.items)
		c.items = append(c.items, d)
	}
	return c, nil
}

func normalizeParams(id string, in []ParamSpec) ([]ParamSpec, error) {
	seen := make(map[string]struct{}, len(in))
	out := make([]ParamSpec, 0, len(in))
	for _, p := range in {
		p.Name = strings.TrimSpace(p.Name)
		switch {
		case p.Name == "":
			return nil, fmt.Errorf("indicator %s: param name is required", id)
		case strings.EqualFold(p.Name, "type"):
			return nil, fmt.Errorf("indicator %s: param name %q is reserved", id, p.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("indicator %s: duplicate param %s", id, p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.Kind == "" {
			p.Kind = KindNumber
		}
		if p.Kind != KindNumber && p.Kind != KindText {
			return nil, fmt.Errorf("indicator %s: param %s has unknown kind %q", id, p.Name, p.Kind)
		}
		if p.Kind == KindNumber && !p.Default.IsNumeric() {
			return nil, fmt.Errorf("indicator %s: param %s needs a numeric default", id, p.Name)
		}
		if p.Min != nil && p.Max != nil && *p.Min > *p.Max {
			return nil, fmt.Errorf("indicator %s: param %s has min > max", id, p.Name)
		}
		if p.Label == "" {
			p.Label = p.Name
		}
		out = append(out, p)
	}
	return out, nil
}

// LoadCatalog reads a YAML catalog; unknown fields are rejected.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read indicator catalog failed: %w", err)
	}
	var file catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse indicator catalog failed: %w", err)
	}
	return NewCatalog(file.Indicators)
}

// List returns a copy of the descriptors in catalog order.
func (c *Catalog) List() []Descriptor {
	out := make([]Descriptor, len(c.items))
	for i, d := range c.items {
		d.Params = append([]ParamSpec(nil), d.Params...)
		out[i] = d
	}
	return out
}

func (c *Catalog) Lookup(id string) (Descriptor, bool) {
	i, ok := c.index[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Descriptor{}, false
	}
	d := c.items[i]
	d.Params = append([]ParamSpec(nil), d.Params...)
	return d, true
}
