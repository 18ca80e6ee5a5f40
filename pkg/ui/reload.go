package ui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/dirtree/internal/datasource"
	"github.com/vanderheijden86/dirtree/pkg/debug"
	"github.com/vanderheijden86/dirtree/pkg/loader"
	"github.com/vanderheijden86/dirtree/pkg/model"
	"github.com/vanderheijden86/dirtree/pkg/watcher"
)

// reloadTimeout bounds a single fetch triggered from the UI.
const reloadTimeout = 30 * time.Second

// sourceChangedMsg is sent when the watcher reports a settled change.
type sourceChangedMsg struct {
	path string
}

// reloadedMsg carries the result of a background fetch.
type reloadedMsg struct {
	entities []model.Entity
	err      error
}

// waitForChange blocks on the watcher's change channel. The returned command
// is re-issued after every change so the model keeps listening.
func waitForChange(w *watcher.Watcher) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		return sourceChangedMsg{path: <-w.Changed()}
	}
}

// reloadCmd fetches a fresh entity list off the UI goroutine.
func reloadCmd(f loader.Fetcher) tea.Cmd {
	if f == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		defer cancel()
		entities, err := f.Fetch(ctx)
		return reloadedMsg{entities: entities, err: err}
	}
}

// applyReload swaps a fetched tree into the engine. A failed fetch leaves
// the current tree in place.
func (m *Model) applyReload(msg reloadedMsg) {
	if msg.err != nil {
		m.setError(fmt.Sprintf("Reload failed: %v", msg.err))
		return
	}

	keep := -1
	if sel, ok := m.selected(); ok {
		keep = sel.Entity.ID
	}

	before := m.eng.Tree().Snapshot()
	err := m.eng.Replace(msg.entities)
	diff := datasource.DiffEntities(before, msg.entities, "previous", "reloaded", datasource.DefaultDiffOptions())
	debug.Log("ui: reload: %s", diff.Summary())

	m.search.SetValue(m.eng.Query())
	m.rebuild(keep)
	if err != nil {
		m.setError(fmt.Sprintf("Search cleared after reload: %v", err))
		return
	}
	m.setStatus(fmt.Sprintf("Reloaded %d entities (+%d -%d ~%d)",
		m.eng.Tree().Len(), len(diff.MissingInA), len(diff.MissingInB), len(diff.Reparented)+len(diff.Renamed)))
}
