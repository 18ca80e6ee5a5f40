// Package tree holds the directory tree engine: the canonical tree of every
// known entity, the filtered tree derived from the active search, and the
// queries and mutations over both.
//
// The engine is driven by a single control flow (one UI event at a time) and
// does no locking. After any call returns, the affected map already holds
// the new state.
package tree

import (
	"sort"
	"strings"

	"github.com/vanderheijden86/dirtree/pkg/debug"
	"github.com/vanderheijden86/dirtree/pkg/metrics"
	"github.com/vanderheijden86/dirtree/pkg/model"
)

// CascadeMode selects how Delete finds the descendants of a folder.
type CascadeMode int

const (
	// CascadeLive derives descendants from the current parent links.
	CascadeLive CascadeMode = iota
	// CascadeSeed follows the Children lists captured when the tree was
	// fetched. Entities reparented after construction are not followed.
	CascadeSeed
)

// String returns the config spelling of the mode.
func (c CascadeMode) String() string {
	if c == CascadeSeed {
		return "seed"
	}
	return "live"
}

// ParseCascadeMode parses "live" or "seed". Anything else is live.
func ParseCascadeMode(s string) CascadeMode {
	if strings.EqualFold(strings.TrimSpace(s), "seed") {
		return CascadeSeed
	}
	return CascadeLive
}

// Option configures an Engine.
type Option func(*Engine)

// WithCascade sets the cascade mode used by Delete.
func WithCascade(mode CascadeMode) Option {
	return func(e *Engine) {
		e.cascade = mode
	}
}

// WithListener registers a listener before construction completes.
func WithListener(fn func(Event)) Option {
	return func(e *Engine) {
		e.Subscribe(fn)
	}
}

// Engine owns the canonical and filtered trees.
type Engine struct {
	tree     *Map
	filtered *Map
	query    string
	cascade  CascadeMode

	listeners map[int]func(Event)
	nextSub   int
}

// New builds an engine from a flat list of entities. Every entity is stored
// collapsed, and the filtered tree starts as an independent copy of the
// canonical tree. The input is not validated; see Validate.
func New(entities []model.Entity, opts ...Option) *Engine {
	e := &Engine{
		listeners: make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.load(entities)
	return e
}

func (e *Engine) load(entities []model.Entity) {
	canonical := NewMap()
	for _, ent := range entities {
		c := ent.Clone()
		c.IsOpened = false
		canonical.Set(&c)
	}
	e.tree = canonical
	e.filtered = canonical.Clone()
	debug.Log("tree: loaded %d entities (cascade=%s)", canonical.Len(), e.cascade)
}

// Tree returns the canonical tree. Callers must treat it as read-only.
func (e *Engine) Tree() *Map { return e.tree }

// Filtered returns the filtered tree rendered by the presentation layer.
// Callers must treat it as read-only; use Toggle to change open state.
func (e *Engine) Filtered() *Map { return e.filtered }

// Query returns the search string of the last successful Filter call.
func (e *Engine) Query() string { return e.query }

// Cascade returns the engine's cascade mode.
func (e *Engine) Cascade() CascadeMode { return e.cascade }

// Get returns a copy of the canonical entity for id.
func (e *Engine) Get(id int) (model.Entity, bool) {
	ent, ok := e.tree.Get(id)
	if !ok {
		return model.Entity{}, false
	}
	return ent.Clone(), true
}

// Snapshot returns deep copies of the filtered tree sorted by id.
func (e *Engine) Snapshot() []model.Entity {
	return e.filtered.Snapshot()
}

// ParentDirectoriesOf returns the folders from the root down to the
// immediate parent of ent, root first. The result is empty when ent is the
// root. A parent link that leaves the canonical tree yields ErrNotFound and
// a chain longer than the tree yields ErrCycle.
func (e *Engine) ParentDirectoriesOf(ent model.Entity) (chain []model.Entity, err error) {
	done := metrics.Start(metrics.ParentChain)
	defer func() { done(len(chain)) }()

	current := ent
	for current.ParentID != nil {
		if len(chain) >= e.tree.Len() {
			return nil, &LookupError{Op: "parents", ID: ent.ID, Err: ErrCycle}
		}
		parent, ok := e.tree.Get(*current.ParentID)
		if !ok {
			return nil, notFound("parents", *current.ParentID)
		}
		chain = append(chain, parent.Clone())
		current = *parent
	}

	// Walked leaf-to-root; reverse into root-first order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Filter recomputes the filtered tree for input.
//
// An empty input restores a full copy of the canonical tree. Otherwise the
// filtered tree holds every entity whose title starts with input
// (case-sensitive) plus each match's ancestor folders, opened so the match
// is visible. Ancestors are always rewritten as opened; a match is inserted
// as-is only if no earlier match already placed it.
//
// The new tree is swapped in only after every ancestor chain resolved, so
// on error the previous filtered tree is left untouched.
func (e *Engine) Filter(input string) error {
	done := metrics.Start(metrics.Filter)
	visible := 0
	defer func() { done(visible) }()

	next := NewMap()
	if input == "" {
		next = e.tree.Clone()
	} else {
		for _, match := range e.findMatches(input) {
			parents, err := e.ParentDirectoriesOf(*match)
			if err != nil {
				return err
			}
			for i := range parents {
				parents[i].IsOpened = true
				next.Set(&parents[i])
			}
			if !next.Has(match.ID) {
				c := match.Clone()
				next.Set(&c)
			}
		}
	}

	e.filtered = next
	e.query = input
	visible = next.Len()
	debug.Log("tree: filter %q -> %d of %d entities", input, next.Len(), e.tree.Len())
	e.emit(Event{Op: OpFilter, Query: input, IDs: next.IDs()})
	return nil
}

// Refresh re-runs the last filter against the current canonical tree.
// Delete and Move leave the filtered tree stale until this is called.
func (e *Engine) Refresh() error {
	return e.Filter(e.query)
}

// findMatches scans the canonical tree once, in insertion order, for titles
// prefixed by input.
func (e *Engine) findMatches(input string) []*model.Entity {
	var matches []*model.Entity
	for _, ent := range e.tree.Values() {
		if strings.HasPrefix(ent.Title, input) {
			matches = append(matches, ent)
		}
	}
	return matches
}

// NextChildrenLayerOf returns the immediate children of folderID as they
// currently stand in the filtered tree, folders first. Order within each
// group follows scan order. The folder itself is looked up in the canonical
// tree and need not be visible.
func (e *Engine) NextChildrenLayerOf(folderID int) (children []model.Entity, err error) {
	done := metrics.Start(metrics.ChildLayer)
	defer func() { done(len(children)) }()

	target, ok := e.tree.Get(folderID)
	if !ok {
		return nil, notFound("children", folderID)
	}
	if target.IsFile() {
		return nil, &TargetError{Op: "children", ID: target.ID, Title: target.Title, Err: ErrInvalidFolderTarget}
	}

	for _, ent := range e.filtered.Values() {
		if ent.HasParent(folderID) {
			children = append(children, ent.Clone())
		}
	}

	sort.SliceStable(children, func(i, j int) bool {
		return children[i].IsFolder() && children[j].IsFile()
	})
	return children, nil
}

// RootOf returns the first entity without a parent in m.
func RootOf(m *Map) (model.Entity, bool) {
	for _, ent := range m.Values() {
		if ent.IsRoot() {
			return ent.Clone(), true
		}
	}
	return model.Entity{}, false
}

// Root returns the root of the filtered tree. It is absent when the filtered
// tree is empty, e.g. when the search matched nothing.
func (e *Engine) Root() (model.Entity, bool) {
	return RootOf(e.filtered)
}

// Toggle flips the open state of id in the filtered tree. It reports false
// when id is not currently visible.
//
// Without a query the filtered tree mirrors the canonical one, so the new
// state is also recorded on the canonical entity. It then survives Refresh
// and clearing a later search. Toggles made on search results stay local
// to that result.
func (e *Engine) Toggle(id int) bool {
	ent, ok := e.filtered.Get(id)
	if !ok {
		return false
	}
	ent.IsOpened = !ent.IsOpened
	if e.query == "" {
		if c, ok := e.tree.Get(id); ok {
			c.IsOpened = ent.IsOpened
		}
	}
	e.emit(Event{Op: OpToggle, IDs: []int{id}, Query: e.query})
	return true
}

// Delete removes id and its descendants from the canonical tree and returns
// the removed ids. Absent ids are a silent no-op. The filtered tree is not
// touched; call Refresh to resynchronize it.
func (e *Engine) Delete(id int) (removed []int) {
	done := metrics.Start(metrics.Delete)
	defer func() { done(len(removed)) }()

	if !e.tree.Has(id) {
		return nil
	}

	switch e.cascade {
	case CascadeSeed:
		removed = e.deleteSeed(id, removed)
	default:
		removed = e.deleteLive(id)
	}

	debug.Log("tree: delete %d removed %v", id, removed)
	e.emit(Event{Op: OpDelete, IDs: removed, Query: e.query})
	return removed
}

// deleteSeed removes id, then recurses through its seed Children list.
func (e *Engine) deleteSeed(id int, removed []int) []int {
	ent, ok := e.tree.Get(id)
	if !ok {
		return removed
	}
	e.tree.Delete(id)
	removed = append(removed, id)
	if ent.IsFolder() {
		for _, child := range ent.Children {
			removed = e.deleteSeed(child, removed)
		}
	}
	return removed
}

// deleteLive removes id and everything whose parent chain passes through it.
func (e *Engine) deleteLive(id int) []int {
	byParent := make(map[int][]int)
	for _, ent := range e.tree.Values() {
		if ent.ParentID != nil {
			byParent[*ent.ParentID] = append(byParent[*ent.ParentID], ent.ID)
		}
	}

	removed := []int{id}
	seen := map[int]bool{id: true}
	for i := 0; i < len(removed); i++ {
		for _, child := range byParent[removed[i]] {
			if !seen[child] {
				seen[child] = true
				removed = append(removed, child)
			}
		}
	}
	for _, rid := range removed {
		e.tree.Delete(rid)
	}
	return removed
}

// Move reparents targetID under destinationID. The destination must be a
// folder outside the target's own subtree. Nothing changes when an error is
// returned. The filtered tree is stale until Refresh.
func (e *Engine) Move(targetID, destinationID int) (err error) {
	done := metrics.Start(metrics.Move)
	defer func() {
		if err == nil {
			done(1)
		} else {
			done(0)
		}
	}()

	target, ok := e.tree.Get(targetID)
	if !ok {
		return notFound("move", targetID)
	}
	dest, ok := e.tree.Get(destinationID)
	if !ok {
		return notFound("move", destinationID)
	}
	if dest.IsFile() {
		return &TargetError{Op: "move", ID: dest.ID, Title: dest.Title, Err: ErrInvalidParentTarget}
	}
	if e.isWithin(destinationID, targetID) {
		return &TargetError{Op: "move", ID: target.ID, Title: target.Title, Err: ErrCyclicMove}
	}

	target.ParentID = model.ParentOf(destinationID)
	debug.Log("tree: moved %d under %d", targetID, destinationID)
	e.emit(Event{Op: OpMove, IDs: []int{targetID, destinationID}, Query: e.query})
	return nil
}

// isWithin reports whether ancestor is id itself or lies on id's parent
// chain. Broken or looping chains stop the walk.
func (e *Engine) isWithin(id, ancestor int) bool {
	current := id
	for steps := 0; steps <= e.tree.Len(); steps++ {
		if current == ancestor {
			return true
		}
		ent, ok := e.tree.Get(current)
		if !ok || ent.ParentID == nil {
			return false
		}
		current = *ent.ParentID
	}
	return false
}

// Replace rebuilds both trees from a fresh fetch and re-applies the current
// query. Folders that were open and still exist stay open. If the query
// cannot be applied to the new tree, the full tree is shown and the error is
// returned.
func (e *Engine) Replace(entities []model.Entity) error {
	prev := e.tree
	e.load(entities)
	for _, ent := range e.tree.Values() {
		if old, ok := prev.Get(ent.ID); ok && old.IsOpened && ent.IsFolder() {
			ent.IsOpened = true
		}
	}
	e.filtered = e.tree.Clone()
	err := e.Filter(e.query)
	if err != nil {
		e.query = ""
	}
	e.emit(Event{Op: OpReload, IDs: e.tree.IDs(), Query: e.query})
	return err
}
