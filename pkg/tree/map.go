package tree

import (
	"sort"

	"github.com/vanderheijden86/dirtree/pkg/model"
)

// Map is an id-keyed collection of entities that remembers insertion order.
// Scans (Values, IDs) always visit entities in the order they were first
// inserted; re-setting an existing id keeps its position.
//
// Delete leaves a hole in the order and the holes are squeezed out once
// they outnumber the live entries, so cascading deletes stay linear.
type Map struct {
	items map[int]*model.Entity
	pos   map[int]int
	order []slot
	holes int
}

type slot struct {
	id   int
	gone bool
}

// minCompact keeps small maps from compacting on every other Delete.
const minCompact = 32

// NewMap creates an empty map.
func NewMap() *Map {
	return &Map{
		items: make(map[int]*model.Entity),
		pos:   make(map[int]int),
	}
}

// Len returns the number of entities.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.items)
}

// Has reports whether id is present.
func (m *Map) Has(id int) bool {
	if m == nil {
		return false
	}
	_, ok := m.items[id]
	return ok
}

// Get returns the stored entity for id. The pointer aliases the map's copy;
// mutating it mutates the map.
func (m *Map) Get(id int) (*model.Entity, bool) {
	if m == nil {
		return nil, false
	}
	e, ok := m.items[id]
	return e, ok
}

// Set stores e under e.ID.
func (m *Map) Set(e *model.Entity) {
	if _, exists := m.items[e.ID]; !exists {
		m.pos[e.ID] = len(m.order)
		m.order = append(m.order, slot{id: e.ID})
	}
	m.items[e.ID] = e
}

// Delete removes id. It reports whether anything was removed.
func (m *Map) Delete(id int) bool {
	if _, ok := m.items[id]; !ok {
		return false
	}
	delete(m.items, id)
	m.order[m.pos[id]].gone = true
	delete(m.pos, id)
	m.holes++
	if m.holes >= minCompact && m.holes > len(m.items) {
		m.compact()
	}
	return true
}

// compact drops the holes left by Delete.
func (m *Map) compact() {
	live := m.order[:0]
	for _, s := range m.order {
		if s.gone {
			continue
		}
		m.pos[s.id] = len(live)
		live = append(live, s)
	}
	clear(m.order[len(live):])
	m.order = live
	m.holes = 0
}

// Clear removes every entity.
func (m *Map) Clear() {
	clear(m.items)
	clear(m.pos)
	m.order = m.order[:0]
	m.holes = 0
}

// IDs returns the ids in scan order.
func (m *Map) IDs() []int {
	if m == nil {
		return nil
	}
	ids := make([]int, 0, len(m.items))
	for _, s := range m.order {
		if !s.gone {
			ids = append(ids, s.id)
		}
	}
	return ids
}

// Values returns the stored entities in scan order. The pointers alias the
// map's copies.
func (m *Map) Values() []*model.Entity {
	if m == nil {
		return nil
	}
	values := make([]*model.Entity, 0, len(m.items))
	for _, s := range m.order {
		if !s.gone {
			values = append(values, m.items[s.id])
		}
	}
	return values
}

// Clone returns a deep copy of the map.
func (m *Map) Clone() *Map {
	c := NewMap()
	if m == nil {
		return c
	}
	for _, s := range m.order {
		if s.gone {
			continue
		}
		e := m.items[s.id].Clone()
		c.Set(&e)
	}
	return c
}

// Snapshot returns deep copies of every entity sorted by id.
func (m *Map) Snapshot() []model.Entity {
	if m == nil {
		return nil
	}
	out := make([]model.Entity, 0, len(m.items))
	for _, e := range m.items {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
