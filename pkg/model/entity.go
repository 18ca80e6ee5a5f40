// Package model defines the entities that make up a directory tree.
package model

import (
	"fmt"
	"strconv"
)

// Kind distinguishes folders from files.
type Kind string

const (
	KindFolder Kind = "folder"
	KindFile   Kind = "file"
)

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindFolder, KindFile:
		return true
	}
	return false
}

// Entity is a single node (file or folder) of the tree.
//
// Entities reference each other by id only. ParentID is nil for the single
// root. Children is seed data captured when the tree was fetched; it is not
// kept in sync with ParentID afterwards.
type Entity struct {
	ID       int    `json:"id"`
	ParentID *int   `json:"parentId"`
	Kind     Kind   `json:"type"`
	Title    string `json:"title"`
	IsOpened bool   `json:"isOpened"`
	Children []int  `json:"children,omitempty"`
}

// ParentOf returns a pointer suitable for Entity.ParentID.
func ParentOf(id int) *int {
	return &id
}

// IsRoot reports whether the entity has no parent.
func (e Entity) IsRoot() bool {
	return e.ParentID == nil
}

// IsFolder reports whether the entity may contain other entities.
func (e Entity) IsFolder() bool {
	return e.Kind == KindFolder
}

// IsFile reports whether the entity is a file.
func (e Entity) IsFile() bool {
	return e.Kind == KindFile
}

// HasParent reports whether the entity's parent is id.
func (e Entity) HasParent(id int) bool {
	return e.ParentID != nil && *e.ParentID == id
}

// ParentString renders the parent id, or "null" for the root.
func (e Entity) ParentString() string {
	if e.ParentID == nil {
		return "null"
	}
	return strconv.Itoa(*e.ParentID)
}

// Clone returns a deep copy; the copy shares no memory with e.
func (e Entity) Clone() Entity {
	c := e
	if e.ParentID != nil {
		c.ParentID = ParentOf(*e.ParentID)
	}
	if e.Children != nil {
		c.Children = make([]int, len(e.Children))
		copy(c.Children, e.Children)
	}
	return c
}

// Validate checks the fields of a single entity. Relationships between
// entities are checked by tree.Validate.
func (e Entity) Validate() error {
	if !e.Kind.IsValid() {
		return fmt.Errorf("entity %d: unknown type %q", e.ID, e.Kind)
	}
	if e.ParentID != nil && *e.ParentID == e.ID {
		return fmt.Errorf("entity %d: is its own parent", e.ID)
	}
	if e.IsFile() && len(e.Children) > 0 {
		return fmt.Errorf("entity %d: file %q lists children", e.ID, e.Title)
	}
	return nil
}
