package ui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/dirtree/pkg/loader"
	"github.com/vanderheijden86/dirtree/pkg/model"
	"github.com/vanderheijden86/dirtree/pkg/testutil"
	"github.com/vanderheijden86/dirtree/pkg/tree"
	"github.com/vanderheijden86/dirtree/pkg/watcher"
)

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// press feeds keys to m one at a time and returns the final model and the
// last command produced.
func press(m Model, keys ...string) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(keyMsg(k))
		m = next.(Model)
	}
	return m, cmd
}

// typeText enters search mode and types s rune by rune.
func typeText(m Model, s string) Model {
	m, _ = press(m, "/")
	for _, r := range s {
		m, _ = press(m, string(r))
	}
	return m
}

func newSampleModel(opts Options) (Model, *tree.Engine) {
	eng := tree.New(testutil.Sample())
	return NewModel(eng, opts), eng
}

func selectedID(t *testing.T, m Model) int {
	t.Helper()
	sel, ok := m.selected()
	if !ok {
		t.Fatal("no selection")
	}
	return sel.Entity.ID
}

func TestModelInitialRows(t *testing.T) {
	m, _ := newSampleModel(Options{})
	testutil.AssertIDSet(t, rowIDs(m.rows), 0, 1, 3, 9)
	if selectedID(t, m) != 0 {
		t.Error("cursor should start on the root")
	}
	if cmd := m.Init(); cmd != nil {
		t.Error("Init without a watcher should return nil")
	}
}

func TestModelSearchFiltersOnEveryKeystroke(t *testing.T) {
	m, eng := newSampleModel(Options{})

	m = typeText(m, "mob")
	if eng.Query() != "mob" {
		t.Errorf("query = %q", eng.Query())
	}
	m, _ = press(m, "x")
	if eng.Query() != "mobx" || len(m.rows) != 6 {
		t.Errorf("query %q, %d rows", eng.Query(), len(m.rows))
	}

	m, _ = press(m, "enter")
	if m.searching {
		t.Error("enter should leave the search box")
	}
	if !strings.Contains(m.View(), "mobx") {
		t.Error("view should keep showing the active query")
	}

	m, _ = press(m, "esc")
	if eng.Query() != "" || len(m.rows) != 4 {
		t.Errorf("esc should clear the filter, query %q rows %d", eng.Query(), len(m.rows))
	}
}

func TestModelSearchLimit(t *testing.T) {
	m, eng := newSampleModel(Options{})

	m = typeText(m, "abcdefghijk")
	if eng.Query() != "abcdefghij" {
		t.Errorf("query = %q, want the first 10 characters", eng.Query())
	}
	msg, isErr := m.Status()
	if !isErr || msg != "Can't exceed 10 characters" {
		t.Errorf("status = %q (error=%v)", msg, isErr)
	}
	if m.search.Value() != "abcdefghij" {
		t.Errorf("search box kept %q", m.search.Value())
	}
}

func TestModelSearchLimitFromOptions(t *testing.T) {
	m, eng := newSampleModel(Options{SearchLimit: 3})
	m = typeText(m, "Home")
	if eng.Query() != "Hom" {
		t.Errorf("query = %q", eng.Query())
	}
	if msg, _ := m.Status(); msg != "Can't exceed 3 characters" {
		t.Errorf("status = %q", msg)
	}
}

func TestModelToggleFolder(t *testing.T) {
	m, _ := newSampleModel(Options{})

	m, _ = press(m, "j", "enter")
	if selectedID(t, m) != 1 {
		t.Fatalf("cursor on %d", selectedID(t, m))
	}
	if len(m.rows) != 8 {
		t.Errorf("expanded Documents should show 8 rows, got %d", len(m.rows))
	}

	m, _ = press(m, " ")
	if len(m.rows) != 4 {
		t.Errorf("collapsing should restore 4 rows, got %d", len(m.rows))
	}

	// Toggling a file does nothing.
	m, _ = press(m, "G", "enter")
	if len(m.rows) != 4 || selectedID(t, m) != 9 {
		t.Errorf("toggle on a file changed the view")
	}
}

func TestModelCursorBounds(t *testing.T) {
	m, _ := newSampleModel(Options{})
	m, _ = press(m, "k", "up")
	if m.cursor != 0 {
		t.Errorf("cursor = %d above the top", m.cursor)
	}
	m, _ = press(m, "j", "j", "j", "j", "j", "down")
	if m.cursor != 3 {
		t.Errorf("cursor = %d past the bottom", m.cursor)
	}
	m, _ = press(m, "g")
	if m.cursor != 0 {
		t.Errorf("g should jump to the top")
	}
}

func TestModelDeleteConfirm(t *testing.T) {
	m, eng := newSampleModel(Options{})

	m, _ = press(m, "j", "d")
	if msg, _ := m.Status(); msg != "Delete Documents/? (y/n)" {
		t.Errorf("confirm prompt = %q", msg)
	}
	m, _ = press(m, "n")
	if eng.Tree().Len() != 14 {
		t.Error("cancelled delete removed entities")
	}
	if msg, _ := m.Status(); msg != "Delete cancelled" {
		t.Errorf("status = %q", msg)
	}

	m, _ = press(m, "d", "y")
	if eng.Tree().Len() != 6 {
		t.Errorf("expected 6 entities left, got %d", eng.Tree().Len())
	}
	if msg, _ := m.Status(); msg != "Deleted 8 entities" {
		t.Errorf("status = %q", msg)
	}
	testutil.AssertIDSet(t, rowIDs(m.rows), 0, 3, 9)
}

func TestModelMoveIntoFileShowsError(t *testing.T) {
	m, eng := newSampleModel(Options{})

	m, _ = press(m, "j", "j", "m", "j", "p")
	msg, isErr := m.Status()
	if !isErr || msg != "Attempt to select file readme.md as a destination" {
		t.Errorf("status = %q (error=%v)", msg, isErr)
	}
	if e, _ := eng.Get(3); !e.HasParent(0) {
		t.Error("failed move changed the tree")
	}
	if !m.hasMark {
		t.Error("mark should survive a failed move")
	}
}

func TestModelMoveIntoFolder(t *testing.T) {
	m, eng := newSampleModel(Options{})

	m, _ = press(m, "G", "m", "g", "j", "p")
	if msg, isErr := m.Status(); isErr || msg != "Moved readme.md into Documents/" {
		t.Errorf("status = %q (error=%v)", msg, isErr)
	}
	if e, _ := eng.Get(9); !e.HasParent(1) {
		t.Errorf("readme.md parent = %s", e.ParentString())
	}
	if selectedID(t, m) != 1 {
		t.Error("cursor should stay on the destination")
	}
	testutil.AssertIDSet(t, rowIDs(m.rows), 0, 1, 3)
}

func TestModelMoveIntoOwnSubtree(t *testing.T) {
	m, eng := newSampleModel(Options{})

	m, _ = press(m, "j", "m", "enter", "j", "p")
	if selectedID(t, m) != 2 {
		t.Fatalf("expected folder_photos selected, got %d", selectedID(t, m))
	}
	msg, isErr := m.Status()
	if !isErr || msg != "Attempt to move Documents into its own subtree" {
		t.Errorf("status = %q (error=%v)", msg, isErr)
	}
	if e, _ := eng.Get(1); !e.HasParent(0) {
		t.Error("cyclic move was applied")
	}

	m, _ = press(m, "esc")
	if m.hasMark {
		t.Error("esc should drop the mark")
	}
}

func TestModelPasteWithoutMark(t *testing.T) {
	m, _ := newSampleModel(Options{})
	m, _ = press(m, "p")
	if _, isErr := m.Status(); !isErr {
		t.Error("p without a mark should report an error")
	}
}

func TestModelCopyPath(t *testing.T) {
	m, _ := newSampleModel(Options{})
	m, _ = press(m, "j", "y")
	msg, isErr := m.Status()
	// Headless environments have no clipboard; either outcome is reported.
	if isErr {
		if !strings.HasPrefix(msg, "Clipboard error") {
			t.Errorf("status = %q", msg)
		}
		return
	}
	if msg != "Copied Home/Documents" {
		t.Errorf("status = %q", msg)
	}
}

func TestModelReload(t *testing.T) {
	m, eng := newSampleModel(Options{Fetcher: loader.Static(testutil.Sample()[:10])})

	m, cmd := press(m, "r")
	if cmd == nil {
		t.Fatal("r should return a reload command")
	}
	next, _ := m.Update(cmd())
	m = next.(Model)

	if eng.Tree().Len() != 10 {
		t.Errorf("engine holds %d entities after reload", eng.Tree().Len())
	}
	if msg, isErr := m.Status(); isErr || msg != "Reloaded 10 entities (+0 -4 ~0)" {
		t.Errorf("status = %q (error=%v)", msg, isErr)
	}
}

func TestModelReloadKeepsQuery(t *testing.T) {
	m, eng := newSampleModel(Options{Fetcher: loader.Static(testutil.Sample())})
	m = typeText(m, "mobx")
	m, _ = press(m, "enter")

	m, cmd := press(m, "r")
	next, _ := m.Update(cmd())
	m = next.(Model)

	if eng.Query() != "mobx" || len(m.rows) != 6 {
		t.Errorf("query %q rows %d after reload", eng.Query(), len(m.rows))
	}
}

func TestModelReloadFailure(t *testing.T) {
	boom := loader.FetcherFunc(func(context.Context) ([]model.Entity, error) {
		return nil, errors.New("boom")
	})
	m, eng := newSampleModel(Options{Fetcher: boom})

	m, cmd := press(m, "r")
	next, _ := m.Update(cmd())
	m = next.(Model)

	if msg, isErr := m.Status(); !isErr || msg != "Reload failed: boom" {
		t.Errorf("status = %q (error=%v)", msg, isErr)
	}
	if eng.Tree().Len() != 14 {
		t.Error("failed reload replaced the tree")
	}
}

func TestModelReloadWithoutFetcher(t *testing.T) {
	m, _ := newSampleModel(Options{})
	m, cmd := press(m, "r")
	if cmd != nil {
		t.Error("expected no command without a fetcher")
	}
	if msg, _ := m.Status(); msg != "No source to reload from" {
		t.Errorf("status = %q", msg)
	}
}

func TestModelQuit(t *testing.T) {
	m, _ := newSampleModel(Options{})
	for _, k := range []string{"q", "ctrl+c"} {
		_, cmd := press(m, k)
		if cmd == nil {
			t.Fatalf("%s returned no command", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s did not quit", k)
		}
	}
}

func TestModelViewScrolls(t *testing.T) {
	eng := tree.New(testutil.Sample(), tree.WithCascade(tree.CascadeLive))
	if err := eng.Filter(""); err != nil {
		t.Fatal(err)
	}
	m := NewModel(eng, Options{})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 40, Height: 5})
	m = next.(Model)

	m, _ = press(m, "G")
	view := m.View()
	if !strings.Contains(view, "readme.md") {
		t.Errorf("last row not visible after G:\n%s", view)
	}
	if strings.Contains(view, "Home/") {
		t.Errorf("root should have scrolled out of a 2-row window:\n%s", view)
	}
}

func TestModelWatcherTriggersReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tree.jsonl")
	testutil.WriteEntitiesFile(t, path, testutil.Sample())

	w, err := watcher.New(path, watcher.WithDebounceDuration(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	m, eng := newSampleModel(Options{Fetcher: loader.FileFetcher{Path: path}, Watcher: w})

	done := make(chan tea.Msg, 1)
	go func() { done <- m.Init()() }()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(testutil.ToJSONL(testutil.Single())), 0644); err != nil {
		t.Fatal(err)
	}

	var msg tea.Msg
	select {
	case msg = <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher never reported the change")
	}
	next, cmd := m.Update(msg)
	m = next.(Model)
	if status, _ := m.Status(); status != "Source changed, reloading…" {
		t.Errorf("status = %q", status)
	}
	if cmd == nil {
		t.Fatal("expected reload and re-listen commands")
	}

	next, _ = m.Update(reloadCmd(m.fetcher)())
	m = next.(Model)
	if eng.Tree().Len() != 1 {
		t.Errorf("engine holds %d entities after watched reload", eng.Tree().Len())
	}
}

func TestModelHelpOverlay(t *testing.T) {
	m, _ := newSampleModel(Options{})
	m, _ = press(m, "?")
	if !m.showHelp || m.help == "" {
		t.Fatal("? should open the rendered help")
	}
	if !strings.Contains(m.View(), "? or esc to close") {
		t.Error("help view missing close hint")
	}

	// Tree keys are swallowed while help is open.
	before := selectedID(t, m)
	m, cmd := press(m, "j", "q")
	if cmd != nil {
		t.Error("q inside help must close help, not quit")
	}
	if m.showHelp {
		t.Error("q should close help")
	}
	if got := selectedID(t, m); got != before {
		t.Errorf("cursor moved under help: %d -> %d", before, got)
	}
}

func TestRenderHelpMentionsKeys(t *testing.T) {
	out := renderHelp(60)
	for _, word := range []string{"search", "delete", "reload"} {
		if !strings.Contains(out, word) {
			t.Errorf("help missing %q", word)
		}
	}
}

func TestModelDeleteKeepsOpenFolders(t *testing.T) {
	m, eng := newSampleModel(Options{})

	// Open Documents: rows are Home, Documents, folder_photos, folder_work,
	// notes.txt, example.png, Downloads, readme.md.
	m, _ = press(m, "down", "enter")
	if len(m.rows) != 8 {
		t.Fatalf("expanded Documents should show 8 rows, got %d", len(m.rows))
	}
	m, _ = press(m, "j", "j", "j")
	if selectedID(t, m) != 4 {
		t.Fatalf("expected notes.txt selected, got %d", selectedID(t, m))
	}

	m, _ = press(m, "d", "y")
	if eng.Tree().Has(4) {
		t.Fatal("notes.txt was not deleted")
	}
	if len(m.rows) != 7 {
		t.Errorf("rows after delete = %d, want 7", len(m.rows))
	}
	if docs, ok := eng.Filtered().Get(1); !ok || !docs.IsOpened {
		t.Error("Documents collapsed after deleting a file inside it")
	}
}

func TestModelClearSearchKeepsOpenFolders(t *testing.T) {
	m, eng := newSampleModel(Options{})
	m, _ = press(m, "down", "enter")

	m = typeText(m, "user")
	m, _ = press(m, "enter", "esc")
	if eng.Query() != "" {
		t.Fatalf("esc should clear the query, got %q", eng.Query())
	}
	if docs, ok := eng.Filtered().Get(1); !ok || !docs.IsOpened {
		t.Error("Documents collapsed after clearing the search")
	}
	if len(m.rows) != 8 {
		t.Errorf("rows after clearing the search = %d, want 8", len(m.rows))
	}
}
