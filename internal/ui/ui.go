package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/tapedeck/internal/library"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/playback"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// Tab is the visible list.
type Tab int

const (
	LibraryTab Tab = iota
	SearchTab
)

func (t Tab) String() string {
	if t == SearchTab {
		return "Search"
	}
	return "Library"
}

// Player is the playback surface used by the TUI.
type Player interface {
	Play(ctx context.Context, track models.TrackRef) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Snapshot() playback.Snapshot
	Subscribe() (<-chan playback.Snapshot, func())
}

// Library exposes the reconciled saved-audio collection.
type Library interface {
	Store() *library.Store
	Refresh(ctx context.Context) error
}

// History stores recent search queries. Optional.
type History interface {
	Add(ctx context.Context, query string) error
	Queries(ctx context.Context, limit int) ([]string, error)
}

// Deps are the collaborators of [Model].
type Deps struct {
	Player   Player
	Library  Library
	Searcher services.Searcher
	History  History
	Alerts   <-chan Alert
}

// Model represents the TUI application state.
type Model struct {
	ctx  context.Context
	deps Deps
	tab  Tab

	width  int
	height int

	libraryList list.Model
	searchList  list.Model
	input       textinput.Model
	spinner     spinner.Model
	help        help.Model
	keys        keyMap

	playbackCh  <-chan playback.Snapshot
	libraryCh   <-chan library.Snapshot
	unsubscribe []func()

	playback  playback.Snapshot
	library   library.Snapshot
	results   []models.VideoResult
	history   []string
	searching bool
	status    string
	statusErr bool
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, deps Deps) *Model {
	input := textinput.New()
	input.Placeholder = "Search YouTube..."
	input.CharLimit = 200

	s := spinner.New()
	s.Spinner = spinner.Dot

	m := &Model{
		ctx:         ctx,
		deps:        deps,
		libraryList: newList("Library"),
		searchList:  newList("Search"),
		input:       input,
		spinner:     s,
		help:        help.New(),
		keys:        newKeyMap(),
	}

	if deps.Player != nil {
		ch, cancel := deps.Player.Subscribe()
		m.playbackCh = ch
		m.unsubscribe = append(m.unsubscribe, cancel)
	}
	if deps.Library != nil {
		ch, cancel := deps.Library.Store().Subscribe()
		m.libraryCh = ch
		m.unsubscribe = append(m.unsubscribe, cancel)
	}
	return m
}

func newList(title string) list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowTitle(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.DisableQuitKeybindings()
	return l
}

// Close releases the snapshot subscriptions.
func (m *Model) Close() {
	for _, cancel := range m.unsubscribe {
		cancel()
	}
	m.unsubscribe = nil
}

// Init starts listening for snapshots and alerts.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.waitForPlayback(),
		m.waitForLibrary(),
		m.waitForAlert(),
		m.loadHistory(),
		m.spinner.Tick,
	)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateActive(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlayback:
		m.playback = msg.data.(playback.Snapshot)
		m.refreshLibraryItems()
		m.refreshSearchItems()
		return m, m.waitForPlayback()

	case MsgLibrary:
		m.library = msg.data.(library.Snapshot)
		m.refreshLibraryItems()
		return m, m.waitForLibrary()

	case MsgSearchResults:
		res := msg.data.(searchResult)
		m.searching = false
		if res.err != nil {
			m.setStatus(fmt.Sprintf("Search failed: %v", res.err), true)
			return m, nil
		}
		m.results = res.response.Results
		m.refreshSearchItems()
		m.setStatus(fmt.Sprintf("%d results for %q", len(m.results), res.response.Query), false)
		return m, m.loadHistory()

	case MsgHistory:
		m.history = msg.data.([]string)
		m.refreshSearchItems()
		return m, nil

	case MsgAlert:
		a := msg.data.(Alert)
		m.setStatus(fmt.Sprintf("%s: %s", a.Title, a.Message), true)
		return m, m.waitForAlert()

	case MsgActionDone:
		err, _ := msg.data.(error)
		switch {
		case err == nil:
		case errors.Is(err, shared.ErrNothingLoaded):
			m.setStatus("Nothing is playing", false)
		case playback.KindOf(err) != 0:
			// already alerted by the orchestrator, or superseded
		default:
			m.setStatus(err.Error(), true)
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.Close()
		return m, tea.Quit
	}

	if m.input.Focused() {
		switch msg.String() {
		case "enter":
			return m, m.submitSearch()
		case "esc":
			m.input.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	m.status = ""
	switch {
	case key.Matches(msg, m.keys.quit):
		m.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.tab):
		m.switchTab()
		return m, nil
	case key.Matches(msg, m.keys.search):
		m.tab = SearchTab
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.enter):
		return m, m.activateSelected()
	case key.Matches(msg, m.keys.pause):
		return m, m.togglePause()
	case key.Matches(msg, m.keys.refresh):
		return m, m.refresh()
	case key.Matches(msg, m.keys.back):
		if m.tab == SearchTab && len(m.results) > 0 {
			m.results = nil
			m.refreshSearchItems()
		}
		return m, nil
	}
	return m.updateActive(msg)
}

func (m *Model) switchTab() {
	if m.tab == LibraryTab {
		m.tab = SearchTab
	} else {
		m.tab = LibraryTab
		m.input.Blur()
	}
}

func (m *Model) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.tab {
	case LibraryTab:
		m.libraryList, cmd = m.libraryList.Update(msg)
	case SearchTab:
		m.searchList, cmd = m.searchList.Update(msg)
	}
	return m, cmd
}

// activateSelected plays or toggles the highlighted track, or re-runs a recent search.
func (m *Model) activateSelected() tea.Cmd {
	l := m.libraryList
	if m.tab == SearchTab {
		l = m.searchList
	}

	switch it := l.SelectedItem().(type) {
	case libraryItem:
		return m.play(it.item)
	case videoItem:
		return m.play(it.video)
	case historyItem:
		m.input.SetValue(string(it))
		return m.submitSearch()
	}
	return nil
}

func (m *Model) play(track models.TrackRef) tea.Cmd {
	if m.deps.Player == nil {
		return nil
	}
	player := m.deps.Player
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg(player.Play(ctx, track))
	}
}

func (m *Model) togglePause() tea.Cmd {
	if m.deps.Player == nil {
		return nil
	}
	player := m.deps.Player
	ctx := m.ctx
	playing := m.playback.IsPlaying
	return func() tea.Msg {
		if playing {
			return actionDoneMsg(player.Pause(ctx))
		}
		return actionDoneMsg(player.Resume(ctx))
	}
}

func (m *Model) refresh() tea.Cmd {
	if m.tab != LibraryTab || m.deps.Library == nil {
		return nil
	}
	m.setStatus("Refreshing library...", false)
	lib := m.deps.Library
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg(lib.Refresh(ctx))
	}
}

func (m *Model) submitSearch() tea.Cmd {
	query := strings.TrimSpace(m.input.Value())
	if query == "" || m.deps.Searcher == nil {
		return nil
	}
	m.input.Blur()
	m.searching = true
	m.setStatus(fmt.Sprintf("Searching for %q...", query), false)

	searcher := m.deps.Searcher
	history := m.deps.History
	ctx := m.ctx
	return func() tea.Msg {
		resp, err := searcher.Search(ctx, query)
		if err == nil && history != nil {
			_ = history.Add(ctx, query)
		}
		return searchResultsMsg(resp, err)
	}
}

func (m *Model) loadHistory() tea.Cmd {
	if m.deps.History == nil {
		return nil
	}
	history := m.deps.History
	ctx := m.ctx
	return func() tea.Msg {
		queries, err := history.Queries(ctx, 0)
		if err != nil {
			return nil
		}
		return historyMsg(queries)
	}
}

func (m *Model) waitForPlayback() tea.Cmd {
	ch := m.playbackCh
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return playbackMsg(snap)
	}
}

func (m *Model) waitForLibrary() tea.Cmd {
	ch := m.libraryCh
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return libraryMsg(snap)
	}
}

func (m *Model) waitForAlert() tea.Cmd {
	ch := m.deps.Alerts
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		a, ok := <-ch
		if !ok {
			return nil
		}
		return alertMsg(a)
	}
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

func (m *Model) marker(id string) string {
	switch {
	case id == "":
		return ""
	case m.playback.ActiveTrackID == id && m.playback.IsPlaying:
		return "▶"
	case m.playback.ActiveTrackID == id:
		return "⏸"
	case m.playback.PendingTrackID == id:
		return "…"
	}
	return ""
}

func (m *Model) refreshLibraryItems() {
	src := m.library.Collection.Items()
	items := make([]list.Item, len(src))
	for i, it := range src {
		items[i] = libraryItem{item: it, marker: m.marker(it.TrackID())}
	}
	m.libraryList.SetItems(items)
}

func (m *Model) refreshSearchItems() {
	var items []list.Item
	if len(m.results) > 0 {
		items = make([]list.Item, len(m.results))
		for i, v := range m.results {
			items[i] = videoItem{video: v, marker: m.marker(v.TrackID())}
		}
	} else {
		items = make([]list.Item, len(m.history))
		for i, q := range m.history {
			items[i] = historyItem(q)
		}
	}
	m.searchList.SetItems(items)
}

func (m *Model) resize() {
	// tabs, input, now-playing bar, status and help
	h := m.height - 10
	if h < 3 {
		h = 3
	}
	m.libraryList.SetSize(m.width, h)
	m.searchList.SetSize(m.width, h-2)
	m.input.Width = max(m.width-4, 10)
}

// View renders the tabs, the active list and the now-playing bar.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	switch m.tab {
	case LibraryTab:
		if m.library.Collection.Len() == 0 {
			b.WriteString(styles.help.Render(m.emptyLibraryText()))
			b.WriteString("\n")
		} else {
			b.WriteString(m.libraryList.View())
		}
	case SearchTab:
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		if m.searching {
			b.WriteString(fmt.Sprintf("%s searching...\n", m.spinner.View()))
		} else {
			b.WriteString(m.searchList.View())
		}
	}

	b.WriteString("\n")
	b.WriteString(m.renderNowPlaying())
	b.WriteString("\n")
	if m.status != "" {
		if m.statusErr {
			b.WriteString(styles.err.Render(m.status))
		} else {
			b.WriteString(styles.ok.Render(m.status))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.help.ShortHelpView(m.helpKeys()))
	return b.String()
}

func (m *Model) emptyLibraryText() string {
	if !m.library.Loaded {
		return "Loading library..."
	}
	return "No saved audio yet. Press tab to search."
}

func (m *Model) helpKeys() []key.Binding {
	if m.tab == SearchTab {
		if m.input.Focused() {
			return []key.Binding{
				key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "search")),
				m.keys.back,
			}
		}
		return []key.Binding{m.keys.enter, m.keys.pause, m.keys.search, m.keys.back, m.keys.tab, m.keys.quit}
	}
	return []key.Binding{m.keys.enter, m.keys.pause, m.keys.refresh, m.keys.tab, m.keys.quit}
}

func (m *Model) renderTabs() string {
	tabs := make([]string, 0, 2)
	for _, t := range []Tab{LibraryTab, SearchTab} {
		label := t.String()
		if t == LibraryTab && m.library.Collection.Len() > 0 {
			label = fmt.Sprintf("%s (%d)", label, m.library.Collection.Len())
		}
		if t == m.tab {
			tabs = append(tabs, styles.activeTab.Render(label))
		} else {
			tabs = append(tabs, styles.tab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *Model) renderNowPlaying() string {
	var parts []string

	p := m.playback
	switch {
	case p.ActiveTrackID != "" && p.IsPlaying:
		parts = append(parts, styles.ok.Render("▶ "+p.ActiveTitle))
	case p.ActiveTrackID != "":
		parts = append(parts, styles.warn.Render("⏸ "+p.ActiveTitle))
	case p.State == playback.Loading:
		parts = append(parts, fmt.Sprintf("%s loading...", m.spinner.View()))
	default:
		parts = append(parts, styles.help.Render("Nothing playing"))
	}

	if p.Conversion.InFlight {
		parts = append(parts, fmt.Sprintf("%s converting %s", m.spinner.View(), p.Conversion.Title))
	}

	switch m.library.Channel {
	case library.ChannelConnected:
		parts = append(parts, styles.ok.Render("● live"))
	case library.ChannelDisconnected:
		parts = append(parts, styles.warn.Render("○ offline"))
	}

	return styles.bar.Width(max(m.width, 20)).Render(strings.Join(parts, "  │  "))
}
