package ui

import (
	"github.com/charmbracelet/glamour"

	"github.com/vanderheijden86/dirtree/pkg/debug"
)

const helpMarkdown = `## Keys

| Key | Action |
|---|---|
| **/** | search titles by prefix |
| **esc** | leave search, clear the query or drop the mark |
| **j / k** | move down / up |
| **g / G** | jump to first / last row |
| **enter**, **space** | open or close a folder |
| **d** | delete the selected entity and its contents |
| **m** | mark the selected entity for a move |
| **p** | move the marked entity into the selected folder |
| **y** | copy the selected path |
| **r** | reload from the source |
| **?** | toggle this help |
| **q** | quit |

A search keeps the folders leading to every match and opens them.
`

// renderHelp renders the key reference for width columns. The raw markdown
// is returned when glamour cannot render it.
func renderHelp(width int) string {
	wrap := 80
	if width > 0 && width < wrap {
		wrap = width
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		debug.Log("ui: help renderer: %v", err)
		return helpMarkdown
	}
	out, err := r.Render(helpMarkdown)
	if err != nil {
		debug.Log("ui: help render: %v", err)
		return helpMarkdown
	}
	return out
}
