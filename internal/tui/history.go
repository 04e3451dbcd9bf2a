package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/avelichko/clip-keeper/internal/deletion"
	"github.com/avelichko/clip-keeper/internal/store"
	"github.com/avelichko/clip-keeper/internal/syncer"
	"github.com/avelichko/clip-keeper/models"
)

const historyPageSize = 20

type (
	itemsLoadedMsg struct{ items []models.ClipboardItem }
	syncDoneMsg    struct{ report models.SyncReport }
	actionErrMsg   struct{ err error }
	copiedMsg      struct{ id string }
)

type historyModel struct {
	ctx          context.Context
	store        store.LocalStore
	deletions    *deletion.Manager
	orchestrator *syncer.Orchestrator

	search textinput.Model

	items     []models.ClipboardItem
	idx       int
	searching bool
	syncing   bool
	status    string
	errText   string
}

func newHistoryModel(ctx context.Context, localStore store.LocalStore, deletions *deletion.Manager, o *syncer.Orchestrator) historyModel {
	search := textinput.New()
	search.Placeholder = "search"
	search.CharLimit = 128

	return historyModel{
		ctx:          ctx,
		store:        localStore,
		deletions:    deletions,
		orchestrator: o,
		search:       search,
	}
}

func (m historyModel) Init() tea.Cmd {
	return m.loadItems()
}

func (m historyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case itemsLoadedMsg:
		m.items = msg.items
		if m.idx >= len(m.items) {
			m.idx = 0
		}
		return m, nil

	case syncDoneMsg:
		m.syncing = false
		m.status = fmt.Sprintf("synced: %d up, %d down, %d deleted, %d conflicts",
			msg.report.Uploaded, msg.report.Downloaded, msg.report.Deleted, len(msg.report.Conflicts))
		if n := len(msg.report.Errors); n > 0 {
			m.status += fmt.Sprintf(" (%d errors)", n)
		}
		return m, m.loadItems()

	case copiedMsg:
		m.status = "copied to clipboard"
		m.errText = ""
		return m, nil

	case actionErrMsg:
		m.syncing = false
		m.errText = msg.err.Error()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m historyModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		switch msg.String() {
		case "enter", "esc":
			m.searching = false
			m.search.Blur()
			return m, m.loadItems()
		default:
			var cmd tea.Cmd
			m.search, cmd = m.search.Update(msg)
			return m, cmd
		}
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.idx > 0 {
			m.idx--
		}

	case "down", "j":
		if m.idx < len(m.items)-1 {
			m.idx++
		}

	case "/":
		m.searching = true
		m.search.Focus()
		return m, textinput.Blink

	case "enter", "c":
		if item, ok := m.selected(); ok {
			return m, m.copyItem(item)
		}

	case "f":
		if item, ok := m.selected(); ok {
			return m, m.toggleFavorite(item)
		}

	case "d":
		if item, ok := m.selected(); ok {
			return m, m.deleteItem(item.ID)
		}

	case "s":
		if !m.syncing {
			m.syncing = true
			m.status = "syncing..."
			m.errText = ""
			return m, m.runSync()
		}

	case "r":
		return m, m.loadItems()
	}

	return m, nil
}

func (m historyModel) View() string {
	var b strings.Builder

	if m.searching || m.search.Value() != "" {
		b.WriteString("filter: ")
		b.WriteString(m.search.View())
		b.WriteString("\n\n")
	}

	if len(m.items) == 0 {
		b.WriteString("history is empty\n")
	}

	start := 0
	if m.idx >= historyPageSize {
		start = m.idx - historyPageSize + 1
	}
	end := start + historyPageSize
	if end > len(m.items) {
		end = len(m.items)
	}

	for i := start; i < end; i++ {
		item := m.items[i]

		marker := " "
		if item.Favorite {
			marker = "*"
		}
		line := fmt.Sprintf("%s [%-5s] %s", marker, item.Type, preview(item.Value))
		if i == m.idx {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.status)
	}
	if m.errText != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("error: " + m.errText))
	}

	return renderPage(
		"CLIPBOARD HISTORY",
		strings.TrimRight(b.String(), "\n"),
		"enter: copy │ f: favorite │ d: delete │ s: sync │ /: search │ ↑/↓: navigate",
	)
}

func (m historyModel) selected() (models.ClipboardItem, bool) {
	if m.idx < 0 || m.idx >= len(m.items) {
		return models.ClipboardItem{}, false
	}
	return m.items[m.idx], true
}

func (m historyModel) loadItems() tea.Cmd {
	filter := store.Filter{Search: strings.TrimSpace(m.search.Value()), Limit: 500}
	return func() tea.Msg {
		items, err := m.store.Query(m.ctx, filter)
		if err != nil {
			return actionErrMsg{err: err}
		}
		return itemsLoadedMsg{items: items}
	}
}

func (m historyModel) copyItem(item models.ClipboardItem) tea.Cmd {
	return func() tea.Msg {
		value := item.Value
		if item.LazyDownload {
			fetched, err := m.orchestrator.EnsureContent(m.ctx, item.ID)
			if err != nil {
				return actionErrMsg{err: err}
			}
			value = fetched.Value
		}
		if err := clipboard.WriteAll(value); err != nil {
			return actionErrMsg{err: err}
		}
		return copiedMsg{id: item.ID}
	}
}

func (m historyModel) toggleFavorite(item models.ClipboardItem) tea.Cmd {
	return func() tea.Msg {
		favorite := !item.Favorite
		status := models.SyncStatusPending
		update := models.ItemUpdate{Favorite: &favorite, SyncStatus: &status}
		if err := m.store.Update(m.ctx, item.ID, update); err != nil {
			return actionErrMsg{err: err}
		}
		items, err := m.store.Query(m.ctx, store.Filter{Limit: 500})
		if err != nil {
			return actionErrMsg{err: err}
		}
		return itemsLoadedMsg{items: items}
	}
}

func (m historyModel) deleteItem(id string) tea.Cmd {
	return func() tea.Msg {
		if _, err := m.deletions.Delete(m.ctx, id); err != nil {
			return actionErrMsg{err: err}
		}
		items, err := m.store.Query(m.ctx, store.Filter{Limit: 500})
		if err != nil {
			return actionErrMsg{err: err}
		}
		return itemsLoadedMsg{items: items}
	}
}

func (m historyModel) runSync() tea.Cmd {
	return func() tea.Msg {
		report, err := m.orchestrator.Run(m.ctx)
		if err != nil {
			return actionErrMsg{err: err}
		}
		return syncDoneMsg{report: report}
	}
}
