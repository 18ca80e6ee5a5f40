// Package ui is the interactive tree browser. Every view is rendered from
// the engine's filtered tree; engine errors land in the status bar and never
// end the program.
package ui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/dirtree/pkg/config"
	"github.com/vanderheijden86/dirtree/pkg/debug"
	"github.com/vanderheijden86/dirtree/pkg/loader"
	"github.com/vanderheijden86/dirtree/pkg/metrics"
	"github.com/vanderheijden86/dirtree/pkg/tree"
	"github.com/vanderheijden86/dirtree/pkg/watcher"
)

// Options wires the model to its collaborators. All fields are optional.
type Options struct {
	// Fetcher is used by reload; without it reload reports an error.
	Fetcher loader.Fetcher
	// Watcher triggers reloads when the source changes.
	Watcher *watcher.Watcher
	// SearchLimit caps the search input length (default config.DefaultSearchLimit).
	SearchLimit int
	ShowIDs     bool
	Theme       *Theme
}

// Model is the bubbletea model of the tree browser.
type Model struct {
	eng     *tree.Engine
	fetcher loader.Fetcher
	watcher *watcher.Watcher
	theme   Theme

	search      textinput.Model
	searching   bool
	searchLimit int
	showIDs     bool

	rows   []Row
	cursor int
	offset int

	marked    int
	hasMark   bool
	pendingID int
	confirm   bool

	statusMsg     string
	statusIsError bool

	showHelp bool
	help     string

	width, height int
}

// NewModel builds the browser over eng.
func NewModel(eng *tree.Engine, opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "search titles"
	ti.SetValue(eng.Query())

	limit := opts.SearchLimit
	if limit <= 0 {
		limit = config.DefaultSearchLimit
	}

	theme := TestTheme()
	if opts.Theme != nil {
		theme = *opts.Theme
	}

	m := Model{
		eng:         eng,
		fetcher:     opts.Fetcher,
		watcher:     opts.Watcher,
		theme:       theme,
		search:      ti,
		searchLimit: limit,
		showIDs:     opts.ShowIDs,
	}
	m.rebuild(-1)
	return m
}

// Init starts listening for source changes.
func (m Model) Init() tea.Cmd {
	return waitForChange(m.watcher)
}

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.search.Width = max(10, msg.Width-4)
		m.help = ""
		if m.showHelp {
			m.help = renderHelp(m.width)
		}
		m.scrollToCursor()
		return m, nil

	case sourceChangedMsg:
		m.setStatus("Source changed, reloading…")
		return m, tea.Batch(reloadCmd(m.fetcher), waitForChange(m.watcher))

	case reloadedMsg:
		m.applyReload(msg)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.searching {
			return m.updateSearch(msg)
		}
		if m.confirm {
			return m.handleConfirm(msg), nil
		}
		if m.showHelp {
			switch msg.String() {
			case "?", "esc", "q":
				m.showHelp = false
			}
			return m, nil
		}
		return m.handleTreeKeys(msg)
	}
	return m, nil
}

// updateSearch routes keys to the search box and refilters on every change.
func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	}

	prev := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	value := m.search.Value()
	if value == prev {
		return m, cmd
	}

	if utf8.RuneCountInString(value) > m.searchLimit {
		m.search.SetValue(prev)
		m.setError(fmt.Sprintf("Can't exceed %d characters", m.searchLimit))
		return m, cmd
	}
	m.applyFilter(value)
	return m, cmd
}

func (m *Model) applyFilter(query string) {
	if err := m.eng.Filter(query); err != nil {
		m.setError(err.Error())
		return
	}
	m.clearStatus()
	m.cursor, m.offset = 0, 0
	m.rebuild(-1)
}

// handleConfirm resolves a pending delete.
func (m Model) handleConfirm(msg tea.KeyMsg) Model {
	m.confirm = false
	switch msg.String() {
	case "y", "Y":
		removed := m.eng.Delete(m.pendingID)
		if m.hasMark {
			for _, id := range removed {
				if id == m.marked {
					m.hasMark = false
				}
			}
		}
		m.refresh()
		m.setStatus(fmt.Sprintf("Deleted %d %s", len(removed), plural(len(removed), "entity", "entities")))
	default:
		m.setStatus("Delete cancelled")
	}
	return m
}

// handleTreeKeys handles navigation and tree mutations.
func (m Model) handleTreeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "?":
		m.showHelp = true
		if m.help == "" {
			m.help = renderHelp(m.width)
		}
		return m, nil

	case "/":
		m.searching = true
		m.clearStatus()
		return m, m.search.Focus()

	case "esc":
		if m.hasMark {
			m.hasMark = false
			m.setStatus("Move cancelled")
			return m, nil
		}
		if m.eng.Query() != "" {
			m.search.SetValue("")
			m.applyFilter("")
		}
		m.clearStatus()

	case "j", "down":
		m.moveCursor(1)
	case "k", "up":
		m.moveCursor(-1)
	case "g", "home":
		m.cursor = 0
		m.scrollToCursor()
	case "G", "end":
		m.cursor = len(m.rows) - 1
		m.scrollToCursor()

	case "enter", " ", "space":
		if sel, ok := m.selected(); ok && sel.Entity.IsFolder() {
			m.eng.Toggle(sel.Entity.ID)
			m.rebuild(sel.Entity.ID)
		}

	case "d":
		if sel, ok := m.selected(); ok {
			m.confirm = true
			m.pendingID = sel.Entity.ID
			m.setStatus(fmt.Sprintf("Delete %s? (y/n)", Label(sel.Entity, false)))
		}

	case "m":
		if sel, ok := m.selected(); ok {
			m.marked, m.hasMark = sel.Entity.ID, true
			m.setStatus(fmt.Sprintf("Marked %s; select a folder and press p", Label(sel.Entity, false)))
		}

	case "p":
		m.moveMarked()

	case "y":
		m.copyPath()

	case "r":
		if m.fetcher == nil {
			m.setError("No source to reload from")
			return m, nil
		}
		m.setStatus("Reloading…")
		return m, reloadCmd(m.fetcher)
	}
	return m, nil
}

func (m *Model) moveMarked() {
	if !m.hasMark {
		m.setError("Nothing marked; press m on an entity first")
		return
	}
	sel, ok := m.selected()
	if !ok {
		return
	}
	if err := m.eng.Move(m.marked, sel.Entity.ID); err != nil {
		m.setError(err.Error())
		return
	}
	target, _ := m.eng.Get(m.marked)
	m.hasMark = false
	m.refresh()
	m.setStatus(fmt.Sprintf("Moved %s into %s", Label(target, false), Label(sel.Entity, false)))
}

func (m *Model) copyPath() {
	sel, ok := m.selected()
	if !ok {
		return
	}
	path, err := EntityPath(m.eng, sel.Entity)
	if err != nil {
		m.setError(err.Error())
		return
	}
	if err := clipboard.WriteAll(path); err != nil {
		m.setError(fmt.Sprintf("Clipboard error: %v", err))
		return
	}
	m.setStatus(fmt.Sprintf("Copied %s", path))
}

// refresh resynchronizes the filtered tree after a canonical mutation and
// keeps the cursor on the same entity when it is still visible.
func (m *Model) refresh() {
	keep := -1
	if sel, ok := m.selected(); ok {
		keep = sel.Entity.ID
	}
	if err := m.eng.Refresh(); err != nil {
		m.setError(err.Error())
	}
	m.rebuild(keep)
}

// rebuild recomputes the visible rows. When keepID is visible the cursor
// follows it; otherwise the cursor is clamped.
func (m *Model) rebuild(keepID int) {
	rows, err := Rows(m.eng, false)
	if err != nil {
		m.setError(err.Error())
	}
	m.rows = rows
	if keepID >= 0 {
		for i, r := range rows {
			if r.Entity.ID == keepID {
				m.cursor = i
				break
			}
		}
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.scrollToCursor()
}

func (m *Model) moveCursor(delta int) {
	if len(m.rows) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.rows)-1)
	m.scrollToCursor()
}

func (m *Model) scrollToCursor() {
	visible := m.visibleRows()
	if visible <= 0 {
		m.offset = 0
		return
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
}

// visibleRows is the number of tree lines that fit; 0 means unbounded.
func (m Model) visibleRows() int {
	if m.height <= 0 {
		return 0
	}
	// Header, search line, status bar.
	return max(1, m.height-3)
}

func (m Model) selected() (Row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return Row{}, false
	}
	return m.rows[m.cursor], true
}

func (m *Model) setStatus(msg string) {
	m.statusMsg, m.statusIsError = msg, false
}

func (m *Model) setError(msg string) {
	debug.Log("ui: %s", msg)
	m.statusMsg, m.statusIsError = msg, true
}

func (m *Model) clearStatus() {
	m.statusMsg, m.statusIsError = "", false
}

// Status returns the status bar text and whether it reports an error.
func (m Model) Status() (string, bool) {
	return m.statusMsg, m.statusIsError
}

// View renders the browser.
func (m Model) View() string {
	defer metrics.Timer(metrics.UIRender)()

	var b strings.Builder

	header := m.theme.Header.Render("dt")
	info := fmt.Sprintf(" %d entities", m.eng.Tree().Len())
	if q := m.eng.Query(); q != "" {
		info += fmt.Sprintf(", %d shown for %q", m.eng.Filtered().Len(), q)
	}
	b.WriteString(header + m.theme.Muted.Render(info) + "\n")

	if m.showHelp {
		b.WriteString(m.help)
		b.WriteString(m.theme.Muted.Render("? or esc to close"))
		return b.String()
	}

	if m.searching || m.eng.Query() != "" {
		b.WriteString(m.search.View())
	}
	b.WriteString("\n")

	end := len(m.rows)
	if v := m.visibleRows(); v > 0 {
		end = min(end, m.offset+v)
	}
	if len(m.rows) == 0 {
		b.WriteString(m.theme.Muted.Render("  nothing matches") + "\n")
	}
	for i := m.offset; i < end; i++ {
		b.WriteString(m.renderRow(m.rows[i], i == m.cursor) + "\n")
	}

	b.WriteString(m.renderStatus())
	return b.String()
}

func (m Model) renderRow(r Row, selected bool) string {
	marker := "  "
	if r.Entity.IsFolder() {
		marker = "▸ "
		if r.Expanded {
			marker = "▾ "
		}
	}

	label := Label(r.Entity, m.showIDs)
	if m.width > 0 {
		label = truncate(label, m.width-lipgloss.Width(r.Guide)-lipgloss.Width(marker)-2)
	}

	style := m.theme.File
	if r.Entity.IsFolder() {
		style = m.theme.Folder
	}
	if m.hasMark && r.Entity.ID == m.marked {
		style = m.theme.Marked
	}

	var text string
	if q := m.eng.Query(); q != "" && strings.HasPrefix(label, q) && !m.showIDs {
		text = m.theme.Match.Render(q) + style.Render(label[len(q):])
	} else {
		text = style.Render(label)
	}

	line := m.theme.Guide.Render(r.Guide) + marker + text
	if selected {
		return m.theme.Selected.Render(line)
	}
	return " " + line
}

func (m Model) renderStatus() string {
	help := "/ search  enter toggle  d delete  m mark  p move here  y copy  r reload  ? help  q quit"
	if m.statusMsg == "" {
		return m.theme.Muted.Render(help)
	}
	style := m.theme.Status
	if m.statusIsError {
		style = m.theme.Error
	}
	msg := m.statusMsg
	if m.width > 0 {
		msg = padRight(truncate(msg, m.width), m.width)
	}
	return style.Render(msg)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
