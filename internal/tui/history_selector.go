package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/techtouch/internal/history"
)

// HistoryStore defines the history operations needed by the selector
type HistoryStore interface {
	ListConversations() ([]*history.Conversation, error)
	DeleteConversation(id string) error
	UpdateTitle(id, title string) error
	ToggleFavorite(id string) (bool, error)
	SwapConversations(id1, id2 string) error
}

type selectorMode int

const (
	modeBrowse selectorMode = iota
	modeRename
	modeConfirmDelete
)

// historyLoadedMsg is sent when conversations are loaded
type historyLoadedMsg struct {
	conversations []*history.Conversation
	err           error
}

// HistorySelectorModel lets the user resume, rename, favorite, reorder or
// delete stored conversations. Row 0 is always "New conversation".
type HistorySelectorModel struct {
	store HistoryStore
	kind  history.Kind
	lang  string

	conversations []*history.Conversation
	cursor        int

	mode        selectorMode
	renameInput textinput.Model

	loading  bool
	err      error
	feedback string

	confirmed    bool
	selectedConv *history.Conversation
	isNewConv    bool

	width  int
	height int
	ready  bool
}

// NewHistorySelectorModel creates a selector for conversations of kind; an empty kind lists all
func NewHistorySelectorModel(store HistoryStore, kind history.Kind, lang string) HistorySelectorModel {
	input := textinput.New()
	input.Placeholder = "New title..."
	input.CharLimit = 100

	return HistorySelectorModel{
		store:       store,
		kind:        kind,
		lang:        lang,
		loading:     true,
		renameInput: input,
	}
}

// Init starts loading conversations
func (m HistorySelectorModel) Init() tea.Cmd {
	return m.loadConversations()
}

func (m HistorySelectorModel) loadConversations() tea.Cmd {
	store, kind := m.store, m.kind
	return func() tea.Msg {
		all, err := store.ListConversations()
		if err != nil {
			return historyLoadedMsg{err: err}
		}
		if kind == "" {
			return historyLoadedMsg{conversations: all}
		}
		var filtered []*history.Conversation
		for _, conv := range all {
			if conv.Kind == kind {
				filtered = append(filtered, conv)
			}
		}
		return historyLoadedMsg{conversations: filtered}
	}
}

// selected returns the conversation under the cursor, or nil on the "new" row
func (m HistorySelectorModel) selected() *history.Conversation {
	if m.cursor == 0 || m.cursor > len(m.conversations) {
		return nil
	}
	return m.conversations[m.cursor-1]
}

// Update handles messages and updates the model
func (m HistorySelectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case historyLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.conversations = msg.conversations
		m.cursor = min(m.cursor, len(m.conversations))

	case tea.KeyMsg:
		if m.loading {
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		}
		switch m.mode {
		case modeRename:
			return m.updateRename(msg)
		case modeConfirmDelete:
			return m.updateConfirmDelete(msg)
		}
		return m.updateBrowse(msg)
	}

	return m, nil
}

func (m HistorySelectorModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := len(m.conversations) + 1

	switch msg.String() {
	case "ctrl+c", "esc", "q":
		return m, tea.Quit

	case "up", "k":
		m.cursor = (m.cursor - 1 + rows) % rows

	case "down", "j":
		m.cursor = (m.cursor + 1) % rows

	case "home", "g":
		m.cursor = 0

	case "end", "G":
		m.cursor = rows - 1

	case "enter":
		m.confirmed = true
		m.selectedConv = m.selected()
		m.isNewConv = m.selectedConv == nil
		return m, tea.Quit

	case "f":
		conv := m.selected()
		if conv == nil {
			return m, nil
		}
		fav, err := m.store.ToggleFavorite(conv.ID)
		if err != nil {
			m.err = err
			return m, nil
		}
		if fav {
			m.feedback = fmt.Sprintf("★ '%s' added to favorites", truncateTitle(conv.Title, 30))
		} else {
			m.feedback = fmt.Sprintf("☆ '%s' removed from favorites", truncateTitle(conv.Title, 30))
		}
		return m, m.loadConversations()

	case "ctrl+up", "ctrl+k", "ctrl+down", "ctrl+j":
		conv := m.selected()
		if conv == nil {
			return m, nil
		}
		other := m.cursor - 1
		if s := msg.String(); s == "ctrl+down" || s == "ctrl+j" {
			other = m.cursor + 1
		}
		if other < 1 || other > len(m.conversations) {
			return m, nil
		}
		if err := m.store.SwapConversations(conv.ID, m.conversations[other-1].ID); err != nil {
			m.err = err
			return m, nil
		}
		m.cursor = other
		return m, m.loadConversations()

	case "r":
		conv := m.selected()
		if conv == nil {
			return m, nil
		}
		m.mode = modeRename
		m.renameInput.SetValue(conv.Title)
		m.renameInput.Focus()
		return m, textinput.Blink

	case "d":
		if m.selected() != nil {
			m.mode = modeConfirmDelete
		}
	}

	return m, nil
}

func (m HistorySelectorModel) updateRename(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeBrowse
		m.renameInput.Blur()
		return m, nil

	case "enter":
		m.mode = modeBrowse
		m.renameInput.Blur()
		title := strings.TrimSpace(m.renameInput.Value())
		conv := m.selected()
		if title == "" || conv == nil {
			return m, nil
		}
		if err := m.store.UpdateTitle(conv.ID, title); err != nil {
			m.err = err
			return m, nil
		}
		m.feedback = fmt.Sprintf("Renamed to '%s'", truncateTitle(title, 30))
		return m, m.loadConversations()
	}

	var cmd tea.Cmd
	m.renameInput, cmd = m.renameInput.Update(msg)
	return m, cmd
}

func (m HistorySelectorModel) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.mode = modeBrowse
		conv := m.selected()
		if conv == nil {
			return m, nil
		}
		if err := m.store.DeleteConversation(conv.ID); err != nil {
			m.err = err
			return m, nil
		}
		m.feedback = fmt.Sprintf("Deleted '%s'", truncateTitle(conv.Title, 30))
		m.cursor = max(m.cursor-1, 0)
		return m, m.loadConversations()

	case "n", "N", "esc":
		m.mode = modeBrowse
	}
	return m, nil
}

// View renders the selector
func (m HistorySelectorModel) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}
	if m.loading {
		return loadingStyle.Render("  Loading conversations...")
	}

	contentWidth := max(m.width-4, 40)
	sections := []string{
		configHeaderStyle.Width(contentWidth).Render(configTitleStyle.Render("✦ Conversations")),
		configPanelStyle.Width(contentWidth).Render(m.renderList(contentWidth - 6)),
	}

	switch {
	case m.err != nil:
		sections = append(sections, FormatError(m.err))
	case m.mode == modeRename:
		sections = append(sections, inputLabelStyle.Render("Rename:")+" "+m.renameInput.View())
	case m.mode == modeConfirmDelete:
		if conv := m.selected(); conv != nil {
			sections = append(sections, errorStyle.Render(fmt.Sprintf("Delete '%s'? (y/n)", truncateTitle(conv.Title, 40))))
		}
	case m.feedback != "":
		sections = append(sections, feedbackStyle.Render(m.feedback))
	}

	sections = append(sections, configStatusBarStyle.Width(contentWidth).Render(renderShortcuts([]shortcut{
		{"↑↓", "Navigate"}, {"Enter", "Open"}, {"f", "Favorite"}, {"r", "Rename"},
		{"d", "Delete"}, {"Ctrl+↑↓", "Move"}, {"Esc", "Quit"},
	})))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m HistorySelectorModel) renderList(width int) string {
	items := []string{m.renderRow(0, "+ New conversation", "")}

	if len(m.conversations) == 0 {
		items = append(items, hintStyle.Render("  No saved conversations"))
		return strings.Join(items, "\n")
	}

	maxItems := max(5, m.height-12)
	offset := 0
	if m.cursor >= maxItems {
		offset = m.cursor - maxItems + 1
	}
	end := min(offset+maxItems, len(m.conversations)+1)

	if offset > 1 {
		items = append(items, hintStyle.Render("  ..."))
	}
	for i := max(offset, 1); i < end; i++ {
		conv := m.conversations[i-1]
		title := conv.Title
		if conv.Favorite {
			title = "★ " + title
		}
		info := fmt.Sprintf(" [%s, %d msgs] %s", conv.Kind, len(conv.Messages), history.FormatRelativeTime(conv.UpdatedAt, m.lang))
		items = append(items, m.renderRow(i, truncateTitle(title, width-len(info)-4), info))
	}
	if end < len(m.conversations)+1 {
		items = append(items, hintStyle.Render("  ..."))
	}
	return strings.Join(items, "\n")
}

func (m HistorySelectorModel) renderRow(index int, title, info string) string {
	cursor, style := "  ", configMenuItemStyle
	if index == m.cursor {
		cursor, style = configCursorStyle.Render("▸ "), configMenuSelectedStyle
	}
	return cursor + style.Render(title) + configValueStyle.Render(info)
}

// truncateTitle shortens s to at most n runes
func truncateTitle(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// Result returns the selected conversation (nil for new), whether new was picked and whether confirmed
func (m HistorySelectorModel) Result() (*history.Conversation, bool, bool) {
	return m.selectedConv, m.isNewConv, m.confirmed
}

// HistorySelectorResult contains the result of running the history selector
type HistorySelectorResult struct {
	Conversation *history.Conversation
	IsNew        bool
	Confirmed    bool
}

// RunHistorySelector starts the selector and returns the choice
func RunHistorySelector(store HistoryStore, kind history.Kind, lang string) (HistorySelectorResult, error) {
	p := tea.NewProgram(NewHistorySelectorModel(store, kind, lang), tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return HistorySelectorResult{}, err
	}

	if hm, ok := finalModel.(HistorySelectorModel); ok {
		conv, isNew, confirmed := hm.Result()
		return HistorySelectorResult{Conversation: conv, IsNew: isNew, Confirmed: confirmed}, nil
	}
	return HistorySelectorResult{}, nil
}
