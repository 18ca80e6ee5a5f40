package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/dirtree/pkg/model"
	"github.com/vanderheijden86/dirtree/pkg/tree"
)

// Row is one visible line of the tree.
type Row struct {
	Entity model.Entity
	Depth  int
	// Guide holds the connector columns drawn before the title, e.g. "│   ├── ".
	Guide string
	// Expanded is set for folders whose children follow.
	Expanded bool
}

// Rows lays out the filtered tree depth-first from the root. The root is
// always expanded; other folders are descended into when opened, or always
// when expandAll is set. An empty filtered tree yields no rows.
func Rows(eng *tree.Engine, expandAll bool) ([]Row, error) {
	root, ok := eng.Root()
	if !ok {
		return nil, nil
	}
	rows := []Row{{Entity: root, Expanded: true}}
	return appendChildren(eng, rows, root.ID, "", 1, expandAll)
}

func appendChildren(eng *tree.Engine, rows []Row, folderID int, prefix string, depth int, expandAll bool) ([]Row, error) {
	children, err := eng.NextChildrenLayerOf(folderID)
	if err != nil {
		return rows, err
	}
	for i, child := range children {
		last := i == len(children)-1
		connector, childPrefix := "├── ", prefix+"│   "
		if last {
			connector, childPrefix = "└── ", prefix+"    "
		}
		expand := child.IsFolder() && (child.IsOpened || expandAll)
		rows = append(rows, Row{Entity: child, Depth: depth, Guide: prefix + connector, Expanded: expand})
		if expand {
			if rows, err = appendChildren(eng, rows, child.ID, childPrefix, depth+1, expandAll); err != nil {
				return rows, err
			}
		}
	}
	return rows, nil
}

// Label is the display text of an entity: folders end in a slash and ids
// are prefixed when showIDs is set.
func Label(e model.Entity, showIDs bool) string {
	title := e.Title
	if e.IsFolder() {
		title += "/"
	}
	if showIDs {
		return fmt.Sprintf("[%d] %s", e.ID, title)
	}
	return title
}

// EntityPath joins the titles from the root down to e with slashes.
func EntityPath(eng *tree.Engine, e model.Entity) (string, error) {
	parents, err := eng.ParentDirectoriesOf(e)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(parents)+1)
	for _, p := range parents {
		parts = append(parts, p.Title)
	}
	parts = append(parts, e.Title)
	return strings.Join(parts, "/"), nil
}

// RenderOptions controls plain-text output.
type RenderOptions struct {
	ExpandAll bool
	ShowIDs   bool
	// Width truncates each line to this many cells; 0 disables truncation.
	Width int
}

// Render writes the filtered tree as plain text, one entity per line.
func Render(w io.Writer, eng *tree.Engine, opts RenderOptions) error {
	rows, err := Rows(eng, opts.ExpandAll)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintf(w, "(no entities match %q)\n", eng.Query())
		return err
	}
	for _, r := range rows {
		label := Label(r.Entity, opts.ShowIDs)
		if opts.Width > 0 {
			label = truncate(label, opts.Width-runewidth.StringWidth(r.Guide))
		}
		if _, err := fmt.Fprintf(w, "%s%s\n", r.Guide, label); err != nil {
			return err
		}
	}
	return nil
}
