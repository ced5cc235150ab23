package indicator

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownIndicator = errors.New("unknown indicator")
	ErrNotSelected      = errors.New("indicator is not selected")
	ErrUnknownParam     = errors.New("unknown parameter")
)

// Selection is one chosen indicator. Params always holds exactly the names
// declared by the descriptor.
type Selection struct {
	ID     string                `json:"id"`
	Type   string                `json:"type"`
	Params map[string]ParamValue `json:"params"`
	order  []string
}

// Names returns the param names in catalog order.
func (s Selection) Names() []string {
	return append([]string(nil), s.order...)
}

func (s Selection) clone() Selection {
	out := s
	out.Params = make(map[string]ParamValue, len(s.Params))
	for k, v := range s.Params {
		out.Params[k] = v
	}
	out.order = append([]string(nil), s.order...)
	return out
}

func newSelection(d Descriptor) Selection {
	sel := Selection{
		ID:     d.ID,
		Type:   strings.ToUpper(d.ID),
		Params: make(map[string]ParamValue, len(d.Params)),
		order:  make([]string, 0, len(d.Params)),
	}
	for _, p := range d.Params {
		sel.Params[p.Name] = p.Default
		sel.order = append(sel.order, p.Name)
	}
	return sel
}

// DatasetProbe reports whether a dataset is currently loaded.
type DatasetProbe func() bool

type parkedSelection struct {
	sel   Selection
	index int
}

// Store is the selection state of one session. It is not safe for
// concurrent use; the owning session serializes access.
type Store struct {
	catalog  *Catalog
	probe    DatasetProbe
	selected []Selection
	// parked holds the last removed selection so that an immediate second
	// toggle of the same id restores it in place with its edited params.
	parked *parkedSelection
}

func NewStore(catalog *Catalog, probe DatasetProbe) *Store {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Store{catalog: catalog, probe: probe}
}

// ListAvailable returns copies of the catalog entries; editing them does not
// change the catalog.
func (s *Store) ListAvailable() []Descriptor {
	return s.catalog.List()
}

func (s *Store) Catalog() *Catalog { return s.catalog }

func (s *Store) indexOf(id string) int {
	for i, sel := range s.selected {
		if sel.ID == id {
			return i
		}
	}
	return -1
}

// Toggle adds id with default params or removes it, returning whether it is
// selected afterwards.
func (s *Store) Toggle(id string) (bool, error) {
	d, ok := s.catalog.Lookup(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownIndicator, id)
	}
	if i := s.indexOf(d.ID); i >= 0 {
		s.parked = &parkedSelection{sel: s.selected[i], index: i}
		s.selected = append(s.selected[:i:i], s.selected[i+1:]...)
		return false, nil
	}
	sel := newSelection(d)
	index := len(s.selected)
	if s.parked != nil && s.parked.sel.ID == d.ID {
		sel = s.parked.sel
		if s.parked.index < index {
			index = s.parked.index
		}
	}
	s.parked = nil
	s.selected = append(s.selected, Selection{})
	copy(s.selected[index+1:], s.selected[index:])
	s.selected[index] = sel
	return true, nil
}

// SetParam stores value for a selected indicator. A numeric param given text
// that does not parse keeps the raw text; that is tolerated, not rejected.
func (s *Store) SetParam(id, name string, value any) error {
	d, ok := s.catalog.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownIndicator, id)
	}
	i := s.indexOf(d.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotSelected, d.ID)
	}
	spec, ok := d.Param(name)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownParam, d.ID, name)
	}
	s.parked = nil
	s.selected[i].Params[spec.Name] = coerce(spec.Kind, value)
	return nil
}

// Selections returns deep copies in insertion order.
func (s *Store) Selections() []Selection {
	out := make([]Selection, len(s.selected))
	for i, sel := range s.selected {
		out[i] = sel.clone()
	}
	return out
}

func (s *Store) IsRunnable() bool {
	return s.probe != nil && s.probe() && len(s.selected) > 0
}

// Warnings lists params currently outside their advertised bounds.
func (s *Store) Warnings() []string {
	var out []string
	for _, sel := range s.selected {
		d, ok := s.catalog.Lookup(sel.ID)
		if !ok {
			continue
		}
		for _, name := range sel.order {
			spec, _ := d.Param(name)
			if err := spec.Check(sel.Params[name]); err != nil {
				out = append(out, fmt.Sprintf("%s.%s", sel.ID, err.Error()))
			}
		}
	}
	return out
}
