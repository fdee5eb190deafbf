package tui

import (
	"context"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/techtouch/internal/chat"
	"github.com/diogo/techtouch/internal/feeds"
	"github.com/diogo/techtouch/internal/history"
	"github.com/diogo/techtouch/internal/models"
	"github.com/diogo/techtouch/internal/personal"
	"github.com/diogo/techtouch/internal/render"
)

// tab identifies a top-level view
type tab int

const (
	tabHome tab = iota
	tabChat
	tabNews
	tabPhones
	tabInfo
	tabCount
)

var tabNames = [tabCount]string{"Home", "Chat", "AI News", "Phones", "Info"}

func (t tab) String() string {
	if t < 0 || t >= tabCount {
		return "unknown"
	}
	return tabNames[t]
}

// ChatService is the part of chat.Service used by the Chat and Info tabs
type ChatService interface {
	Send(ctx context.Context, convID string, in chat.Input, sink chat.Sink) error
	AskPersonal(ctx context.Context, convID, question string, sink chat.Sink) (models.ChatMessage, error)
	NewConversation(kind history.Kind) (*history.Conversation, error)
	Reset(convID string)
}

// FeedService is the part of feeds.Service used by the news tabs
type FeedService interface {
	AINews(ctx context.Context, refresh bool) ([]models.NewsItem, error)
	PhoneNews(ctx context.Context, refresh bool) ([]models.PhoneNewsItem, error)
	ClearCache(ctx context.Context, kind feeds.Kind) error
}

// Deps wires the app to its services
type Deps struct {
	Chat     ChatService
	Feeds    FeedService
	Personal *personal.Directory

	// Conversation resumes a stored chat in the Chat tab
	Conversation *history.Conversation

	ModelName string
	Lang      string
	Render    render.Options

	// Copy writes to the system clipboard; defaults to atotto/clipboard
	Copy func(string) error

	// StartTab names the initial tab: home, chat, news, phones or info
	StartTab string
}

// App is the root bubbletea model
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	modelName string
	active    tab

	home   homeTab
	chat   chatTab
	news   feedTab
	phones feedTab
	info   chatTab

	width  int
	height int
	ready  bool
}

// NewApp creates the root model
func NewApp(ctx context.Context, deps Deps) App {
	if deps.Copy == nil {
		deps.Copy = clipboard.WriteAll
	}
	if deps.Personal == nil {
		deps.Personal = personal.Default()
	}
	ctx, cancel := context.WithCancel(ctx)

	return App{
		ctx:       ctx,
		cancel:    cancel,
		modelName: deps.ModelName,
		active:    parseTab(deps.StartTab),
		chat:      newChatTab(deps),
		news:      newFeedTab(tabNews, feeds.KindAINews, deps),
		phones:    newFeedTab(tabPhones, feeds.KindPhones, deps),
		info:      newInfoTab(deps),
	}
}

// Init initializes the model
func (m App) Init() tea.Cmd {
	return m.activate()
}

// activate runs the on-show hook of the active tab
func (m *App) activate() tea.Cmd {
	var cmd tea.Cmd
	switch m.active {
	case tabNews:
		m.news, cmd = m.news.activate(m.ctx)
	case tabPhones:
		m.phones, cmd = m.phones.activate(m.ctx)
	}
	return cmd
}

func (m App) switchTo(t tab) (tea.Model, tea.Cmd) {
	m.active = (t + tabCount) % tabCount
	cmd := m.activate()
	return m, cmd
}

// typing reports whether the active tab has a text input
func (m App) typing() bool {
	return m.active == tabChat || m.active == tabInfo
}

// Update handles messages and updates the model
func (m App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		bodyHeight := m.height - 4
		m.home.setSize(m.width, bodyHeight)
		m.chat.setSize(m.width, bodyHeight)
		m.news.setSize(m.width, bodyHeight)
		m.phones.setSize(m.width, bodyHeight)
		m.info.setSize(m.width, bodyHeight)
		return m, nil

	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit
		case "tab":
			return m.switchTo(m.active + 1)
		case "shift+tab":
			return m.switchTo(m.active - 1)
		case "alt+1", "alt+2", "alt+3", "alt+4", "alt+5":
			return m.switchTo(tab(key[len(key)-1] - '1'))
		case "1", "2", "3", "4", "5":
			if !m.typing() {
				return m.switchTo(tab(key[0] - '1'))
			}
		case "q":
			if !m.typing() {
				m.cancel()
				return m, tea.Quit
			}
		case "esc":
			if m.active == tabHome {
				m.cancel()
				return m, tea.Quit
			}
			if !(m.typing() && m.activeLoading()) {
				return m.switchTo(tabHome)
			}
		}
		return m.updateActive(msg)

	case switchTabMsg:
		return m.switchTo(msg.to)

	case streamEventMsg, streamDoneMsg, feedLoadedMsg, cacheClearedMsg, feedbackClearMsg:
		return m.route(msg)

	case animationTickMsg:
		// forwarded to every loading tab; a single ticker is kept alive
		var cmds []tea.Cmd
		var cmd tea.Cmd
		if m.chat.loading {
			m.chat, cmd = m.chat.update(m.ctx, msg)
			cmds = append(cmds, cmd)
		}
		if m.info.loading {
			m.info, cmd = m.info.update(m.ctx, msg)
			cmds = append(cmds, cmd)
		}
		if m.news.loading {
			m.news, cmd = m.news.update(m.ctx, msg)
			cmds = append(cmds, cmd)
		}
		if m.phones.loading {
			m.phones, cmd = m.phones.update(m.ctx, msg)
			cmds = append(cmds, cmd)
		}
		return m, firstCmd(cmds)
	}

	return m.updateActive(msg)
}

// firstCmd keeps a single animation ticker alive
func firstCmd(cmds []tea.Cmd) tea.Cmd {
	for _, c := range cmds {
		if c != nil {
			return c
		}
	}
	return nil
}

func (m App) activeLoading() bool {
	switch m.active {
	case tabChat:
		return m.chat.loading
	case tabInfo:
		return m.info.loading
	}
	return false
}

// route delivers a message addressed to a specific tab
func (m App) route(msg tea.Msg) (tea.Model, tea.Cmd) {
	var target tab
	switch msg := msg.(type) {
	case streamEventMsg:
		target = msg.target
	case streamDoneMsg:
		target = msg.target
	case feedLoadedMsg:
		target = msg.target
	case cacheClearedMsg:
		target = msg.target
	case feedbackClearMsg:
		target = msg.target
	}

	var cmd tea.Cmd
	switch target {
	case tabChat:
		m.chat, cmd = m.chat.update(m.ctx, msg)
	case tabInfo:
		m.info, cmd = m.info.update(m.ctx, msg)
	case tabNews:
		m.news, cmd = m.news.update(m.ctx, msg)
	case tabPhones:
		m.phones, cmd = m.phones.update(m.ctx, msg)
	}
	return m, cmd
}

func (m App) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.active {
	case tabHome:
		m.home, cmd = m.home.update(msg)
	case tabChat:
		m.chat, cmd = m.chat.update(m.ctx, msg)
	case tabNews:
		m.news, cmd = m.news.update(m.ctx, msg)
	case tabPhones:
		m.phones, cmd = m.phones.update(m.ctx, msg)
	case tabInfo:
		m.info, cmd = m.info.update(m.ctx, msg)
	}
	return m, cmd
}

// View renders the TUI
func (m App) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}

	var body string
	switch m.active {
	case tabHome:
		body = m.home.view()
	case tabChat:
		body = m.chat.view()
	case tabNews:
		body = m.news.view()
	case tabPhones:
		body = m.phones.view()
	case tabInfo:
		body = m.info.view()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderTabs(),
		body,
		m.renderStatusBar(),
	)
}

func (m App) renderTabs() string {
	parts := make([]string, 0, tabCount+2)
	parts = append(parts, titleStyle.Render("✦ TechTouch "))
	for t := tabHome; t < tabCount; t++ {
		label := string(rune('1'+t)) + " " + t.String()
		if t == m.active {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, tabStyle.Render(label))
		}
	}
	if m.modelName != "" {
		parts = append(parts, subtitleStyle.Render("  "+m.modelName))
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Center, parts...)
	line := tabGapStyle.Render(strings.Repeat("─", max(m.width, lipgloss.Width(bar))))
	return lipgloss.JoinVertical(lipgloss.Left, bar, line)
}

func (m App) renderStatusBar() string {
	var shortcuts []shortcut
	switch m.active {
	case tabHome:
		shortcuts = []shortcut{{"←→", "Move"}, {"Enter", "Open"}, {"1-5", "Tabs"}, {"q", "Quit"}}
	case tabChat:
		shortcuts = []shortcut{{"Enter", "Send"}, {"Tab", "Next tab"}, {"Esc", "Stop/Home"}, {"/attach /copy /new", "Commands"}}
	case tabInfo:
		shortcuts = []shortcut{{"Enter", "Ask"}, {"Tab", "Next tab"}, {"Esc", "Home"}, {"/copy /new", "Commands"}}
	default:
		shortcuts = []shortcut{{"↑↓", "Move"}, {"Enter", "Details"}, {"r", "Refresh"}, {"d", "Clear cache"}, {"s", "Share"}}
	}
	return statusBarStyle.Width(max(m.width, 1)).Align(lipgloss.Center).Render(renderShortcuts(shortcuts))
}

// Run starts the TUI
func Run(ctx context.Context, deps Deps) error {
	p := tea.NewProgram(NewApp(ctx, deps), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func parseTab(name string) tab {
	switch strings.ToLower(name) {
	case "chat":
		return tabChat
	case "news":
		return tabNews
	case "phones":
		return tabPhones
	case "info":
		return tabInfo
	}
	return tabHome
}
