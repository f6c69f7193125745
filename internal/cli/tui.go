package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/curator/pkg/catalog"
	"github.com/matzehuels/curator/pkg/curate"
	"github.com/matzehuels/curator/pkg/manifest"
	"github.com/matzehuels/curator/pkg/search"
)

func (c *CLI) tuiCommand() *cobra.Command {
	var (
		manifestPath string
		dev          bool
	)

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Search npm and curate packages interactively",
		Long: `Open an interactive session with a debounced search box, the search
results and the working table.

Select a result to add it (the version can be edited first), then accept
or reject packages in the table. Press i in the table to import a
package.json.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cur, closeFn, err := c.newCurator(ctx, dev, 0)
			if err != nil {
				return err
			}
			defer closeFn()

			m := newCurateModel(ctx, cur)
			if manifestPath != "" {
				m.pending = importCmd(ctx, cur, manifestPath)
			}
			if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
				return err
			}

			printRecords(cur.Table(), true)
			printDetail("%s", statusSummary(cur.Counts()))
			return nil
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "package.json to import on start")
	cmd.Flags().BoolVar(&dev, "dev", false, "also import devDependencies")
	return cmd
}

// =============================================================================
// Keys
// =============================================================================

type curateKeys struct {
	Up       key.Binding
	Down     key.Binding
	Next     key.Binding
	Select   key.Binding
	Accept   key.Binding
	Reject   key.Binding
	Import   key.Binding
	Search   key.Binding
	Back     key.Binding
	Quit     key.Binding
	ForceEnd key.Binding
}

func defaultCurateKeys() curateKeys {
	return curateKeys{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Next:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch pane")),
		Select:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("⏎", "select")),
		Accept:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "accept")),
		Reject:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reject")),
		Import:   key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "import")),
		Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Quit:     key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		ForceEnd: key.NewBinding(key.WithKeys("ctrl+c")),
	}
}

// =============================================================================
// Model
// =============================================================================

type pane int

const (
	paneSearch pane = iota
	paneResults
	paneVersion
	paneTable
	panePath
)

type (
	sessionMsg search.Session
	addedMsg   struct {
		rec   catalog.Record
		added bool
		name  string
		err   error
	}
	importedMsg struct {
		file string
		res  curate.ImportResult
		err  error
	}
)

// curateModel is the bubbletea model behind `curator tui`.
type curateModel struct {
	ctx     context.Context
	cur     *curate.Curator
	updates chan struct{}
	keys    curateKeys
	pending tea.Cmd

	query   textinput.Model
	version textinput.Model
	path    textinput.Model
	spin    spinner.Model

	focus       pane
	session     search.Session
	table       []catalog.Record
	resultIdx   int
	tableIdx    int
	selected    string
	notice      string
	noticeIsErr bool
}

func newCurateModel(ctx context.Context, cur *curate.Curator) curateModel {
	query := textinput.New()
	query.Placeholder = "Search npm packages..."
	query.Prompt = "search: "
	query.CharLimit = 214
	query.Width = 40
	query.Focus()

	version := textinput.New()
	version.Prompt = "version: "
	version.CharLimit = 64

	path := textinput.New()
	path.Prompt = "manifest: "
	path.Placeholder = "package.json"

	// Listeners run on the publishing goroutine, so only signal here; the
	// model reads the snapshot itself.
	updates := make(chan struct{}, 1)
	cur.OnSearchUpdate(func(search.Session) {
		select {
		case updates <- struct{}{}:
		default:
		}
	})

	return curateModel{
		ctx:     ctx,
		cur:     cur,
		updates: updates,
		keys:    defaultCurateKeys(),
		query:   query,
		version: version,
		path:    path,
		spin:    spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(styleIconSpinner)),
		table:   cur.Table(),
	}
}

func (m curateModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick, m.waitForSession(), m.pending)
}

func (m curateModel) waitForSession() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.updates:
			return sessionMsg(m.cur.Search())
		case <-m.ctx.Done():
			return nil
		}
	}
}

func addCmd(ctx context.Context, cur *curate.Curator, name, version string) tea.Cmd {
	return func() tea.Msg {
		rec, added, err := cur.AddSelected(ctx, name, version)
		return addedMsg{rec: rec, added: added, name: name, err: err}
	}
}

func importCmd(ctx context.Context, cur *curate.Curator, file string) tea.Cmd {
	return func() tea.Msg {
		doc, err := manifest.ReadFile(file)
		if err != nil {
			return importedMsg{file: file, err: err}
		}
		res, err := cur.Import(ctx, doc)
		return importedMsg{file: file, res: res, err: err}
	}
}

// =============================================================================
// Update
// =============================================================================

func (m curateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case sessionMsg:
		m.session = search.Session(msg)
		if m.resultIdx >= len(m.session.Records) {
			m.resultIdx = max(0, len(m.session.Records)-1)
		}
		if m.session.Err != nil {
			m.setNotice(true, "Search failed: %v", m.session.Err)
		}
		return m, m.waitForSession()

	case addedMsg:
		if msg.err != nil {
			m.setNotice(true, "Could not fetch %s: %v", msg.name, msg.err)
			return m, nil
		}
		if msg.added {
			m.setNotice(false, "Added %s@%s", msg.rec.Name, msg.rec.Version)
		} else {
			m.setNotice(false, "%s is already in the table", msg.rec.Name)
		}
		m.table = m.cur.Table()
		return m, nil

	case importedMsg:
		if msg.err != nil {
			if notice, ok := importNotice(msg.err); ok {
				m.setNotice(true, "%s: %s", msg.file, notice)
			} else {
				m.setNotice(true, "Import failed: %v", msg.err)
			}
			return m, nil
		}
		m.setNotice(false, "Imported %d of %d dependencies from %s", msg.res.Added, len(msg.res.Entries), msg.file)
		m.table = m.cur.Table()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.ForceEnd) {
			return m, tea.Quit
		}
		switch m.focus {
		case paneSearch:
			return m.updateSearch(msg)
		case paneResults:
			return m.updateResults(msg)
		case paneVersion:
			return m.updateVersion(msg)
		case paneTable:
			return m.updateTable(msg)
		case panePath:
			return m.updatePath(msg)
		}
	}
	return m, nil
}

func (m curateModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Next), key.Matches(msg, m.keys.Back):
		m.query.Blur()
		m.focus = paneResults
		return m, nil
	case key.Matches(msg, m.keys.Select):
		m.cur.CommitQuery(m.query.Value())
		m.query.Blur()
		m.focus = paneResults
		return m, nil
	}

	before := m.query.Value()
	var cmd tea.Cmd
	m.query, cmd = m.query.Update(msg)
	if after := m.query.Value(); after != before {
		m.cur.Input(after)
	}
	return m, cmd
}

func (m curateModel) updateResults(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.resultIdx > 0 {
			m.resultIdx--
		}
	case key.Matches(msg, m.keys.Down):
		if m.resultIdx < len(m.session.Records)-1 {
			m.resultIdx++
		}
	case key.Matches(msg, m.keys.Search), key.Matches(msg, m.keys.Back):
		m.focus = paneSearch
		return m, m.query.Focus()
	case key.Matches(msg, m.keys.Next):
		m.focus = paneTable
	case key.Matches(msg, m.keys.Select):
		if m.resultIdx >= len(m.session.Records) {
			return m, nil
		}
		rec := m.session.Records[m.resultIdx]
		m.selected = rec.Name
		m.version.SetValue(rec.Version)
		m.version.CursorEnd()
		m.focus = paneVersion
		return m, m.version.Focus()
	}
	return m, nil
}

func (m curateModel) updateVersion(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.version.Blur()
		m.focus = paneResults
		return m, nil
	case key.Matches(msg, m.keys.Select):
		m.version.Blur()
		m.focus = paneResults
		m.setNotice(false, "Fetching %s...", m.selected)
		return m, addCmd(m.ctx, m.cur, m.selected, strings.TrimSpace(m.version.Value()))
	}
	var cmd tea.Cmd
	m.version, cmd = m.version.Update(msg)
	return m, cmd
}

func (m curateModel) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.syncKeys()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.tableIdx > 0 {
			m.tableIdx--
		}
	case key.Matches(msg, m.keys.Down):
		if m.tableIdx < len(m.table)-1 {
			m.tableIdx++
		}
	case key.Matches(msg, m.keys.Accept), key.Matches(msg, m.keys.Reject):
		if m.tableIdx >= len(m.table) {
			return m, nil
		}
		name := m.table[m.tableIdx].Name
		set, verb := m.cur.Accept, "Accepted"
		if key.Matches(msg, m.keys.Reject) {
			set, verb = m.cur.Reject, "Rejected"
		}
		if err := set(name); err != nil {
			m.setNotice(true, "%s: %v", name, err)
		} else {
			m.setNotice(false, "%s %s", verb, name)
		}
		m.table = m.cur.Table()
	case key.Matches(msg, m.keys.Import):
		m.focus = panePath
		return m, m.path.Focus()
	case key.Matches(msg, m.keys.Next):
		m.focus = paneSearch
		return m, m.query.Focus()
	case key.Matches(msg, m.keys.Search):
		m.focus = paneSearch
		return m, m.query.Focus()
	}
	return m, nil
}

func (m curateModel) updatePath(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.path.Blur()
		m.focus = paneTable
		return m, nil
	case key.Matches(msg, m.keys.Select):
		file := strings.TrimSpace(m.path.Value())
		if file == "" {
			file = m.path.Placeholder
		}
		m.path.Blur()
		m.path.SetValue("")
		m.focus = paneTable
		m.setNotice(false, "Importing %s...", file)
		return m, importCmd(m.ctx, m.cur, file)
	}
	var cmd tea.Cmd
	m.path, cmd = m.path.Update(msg)
	return m, cmd
}

// syncKeys offers accept and reject only while the selected row is pending.
func (m *curateModel) syncKeys() {
	pending := m.tableIdx < len(m.table) && !m.table[m.tableIdx].Status.Terminal()
	m.keys.Accept.SetEnabled(pending)
	m.keys.Reject.SetEnabled(pending)
}

func (m *curateModel) setNotice(isErr bool, format string, args ...any) {
	m.notice = fmt.Sprintf(format, args...)
	m.noticeIsErr = isErr
}

// =============================================================================
// View
// =============================================================================

var (
	paneTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorGray)
	paneActiveStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	cursorStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
)

func (m curateModel) title(label string, panes ...pane) string {
	for _, p := range panes {
		if m.focus == p {
			return paneActiveStyle.Render("▸ " + label)
		}
	}
	return paneTitleStyle.Render("  " + label)
}

func (m curateModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("curator"))
	b.WriteString("\n\n")
	b.WriteString(m.query.View())
	if m.session.Loading {
		b.WriteString("  " + m.spin.View() + StyleDim.Render(" searching"))
	}
	b.WriteString("\n\n")

	b.WriteString(m.title("Results", paneResults, paneVersion))
	b.WriteString("\n")
	if len(m.session.Records) == 0 && !m.session.Loading {
		b.WriteString(StyleDim.Render("    no results"))
		b.WriteString("\n")
	}
	for i, r := range m.session.Records {
		line := fmt.Sprintf("%-28s %-12s %-12s %s", r.Name, r.Version, r.Licence, truncate(r.Description, 40))
		if m.focus == paneResults && i == m.resultIdx {
			b.WriteString(cursorStyle.Render("  › " + line))
		} else {
			b.WriteString("    " + StyleValue.Render(line))
		}
		b.WriteString("\n")
	}
	if m.focus == paneVersion {
		b.WriteString("    " + StyleDim.Render(m.selected+" ") + m.version.View() + "\n")
	}
	b.WriteString("\n")

	b.WriteString(m.title("Working set", paneTable, panePath))
	b.WriteString("  " + statusSummary(m.cur.Counts()))
	b.WriteString("\n")
	if len(m.table) > 0 {
		selected := -1
		if m.focus == paneTable {
			selected = m.tableIdx
		}
		b.WriteString(recordTable(m.table, true, selected))
		b.WriteString("\n")
	}
	if m.focus == panePath {
		b.WriteString("  " + m.path.View() + "\n")
	}

	if m.notice != "" {
		b.WriteString("\n")
		if m.noticeIsErr {
			b.WriteString(styleIconError.Render(iconError) + " " + m.notice)
		} else {
			b.WriteString(styleIconInfo.Render(iconInfo) + " " + m.notice)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(StyleDim.Render(m.help()))
	return b.String()
}

func (m curateModel) help() string {
	m.syncKeys()
	var bindings []key.Binding
	switch m.focus {
	case paneSearch:
		bindings = []key.Binding{m.keys.Select, m.keys.Next}
	case paneResults:
		bindings = []key.Binding{m.keys.Up, m.keys.Down, m.keys.Select, m.keys.Search, m.keys.Next, m.keys.Quit}
	case paneVersion, panePath:
		bindings = []key.Binding{m.keys.Select, m.keys.Back}
	case paneTable:
		bindings = []key.Binding{m.keys.Up, m.keys.Down, m.keys.Accept, m.keys.Reject, m.keys.Import, m.keys.Next, m.keys.Quit}
	}
	parts := make([]string, 0, len(bindings))
	for _, k := range bindings {
		if !k.Enabled() {
			continue
		}
		h := k.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, "  ")
}
