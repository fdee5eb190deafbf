package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/techtouch/internal/config"
	"github.com/diogo/techtouch/internal/render"
)

// setting is a row of the config menu. Rows with choices open a
// selection list; rows without choices toggle a boolean.
type setting struct {
	label   string
	value   func(config.Config) string
	choices func() []string
	set     func(*config.Config, string)
	toggle  func(*config.Config) bool
}

func settings() []setting {
	return []setting{
		{
			label:   "Default Model",
			value:   func(c config.Config) string { return c.DefaultModel },
			choices: config.AvailableModels,
			set:     func(c *config.Config, v string) { c.DefaultModel = v },
		},
		{
			label:   "Language",
			value:   func(c config.Config) string { return c.Language },
			choices: func() []string { return []string{"ar", "en"} },
			set:     func(c *config.Config, v string) { c.Language = v },
		},
		{
			label: "Persona",
			value: func(c config.Config) string { return c.Persona },
			choices: func() []string {
				names, err := config.ListPersonaNames()
				if err != nil {
					return []string{config.DefaultPersonaName}
				}
				return names
			},
			set: func(c *config.Config, v string) { c.Persona = v },
		},
		{
			label:  "Fetch Links",
			toggle: func(c *config.Config) bool { c.FetchLinks = !c.FetchLinks; return c.FetchLinks },
			value:  func(c config.Config) string { return boolLabel(c.FetchLinks) },
		},
		{
			label:  "Copy to Clipboard",
			toggle: func(c *config.Config) bool { c.CopyToClipboard = !c.CopyToClipboard; return c.CopyToClipboard },
			value:  func(c config.Config) string { return boolLabel(c.CopyToClipboard) },
		},
		{
			label:  "Verbose Logging",
			toggle: func(c *config.Config) bool { c.Verbose = !c.Verbose; return c.Verbose },
			value:  func(c config.Config) string { return boolLabel(c.Verbose) },
		},
		{
			label:   "Markdown Theme",
			value:   func(c config.Config) string { return c.Markdown.Style },
			choices: render.ThemeNames,
			set:     func(c *config.Config, v string) { c.Markdown.Style = v },
		},
		{
			label:   "TUI Theme",
			value:   func(c config.Config) string { return c.TUITheme },
			choices: render.TUIThemeNames,
			set: func(c *config.Config, v string) {
				c.TUITheme = v
				ApplyTheme(v)
			},
		},
	}
}

func boolLabel(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

// ConfigModel is the interactive settings editor
type ConfigModel struct {
	config    config.Config
	settings  []setting
	configDir string

	keySource config.KeySource
	keyMasked string

	// choosing is the index of the setting whose choices are shown, or -1
	choosing     int
	cursor       int
	choiceCursor int

	feedback string
	save     func(config.Config) error

	width  int
	height int
	ready  bool
}

// NewConfigModel creates a config editor for cfg
func NewConfigModel(cfg config.Config) ConfigModel {
	configDir, _ := config.GetConfigDir()

	m := ConfigModel{
		config:    cfg,
		settings:  settings(),
		configDir: configDir,
		choosing:  -1,
		save:      config.SaveConfig,
	}
	if key, source, err := config.LoadAPIKey(); err == nil {
		m.keySource = source
		m.keyMasked = config.MaskKey(key)
	}
	return m
}

// Init initializes the model
func (m ConfigModel) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model
func (m ConfigModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case feedbackClearMsg:
		m.feedback = ""

	case tea.KeyMsg:
		// the Exit row follows the settings
		rows := len(m.settings) + 1

		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "esc", "q":
			if m.choosing >= 0 {
				m.choosing = -1
				return m, nil
			}
			return m, tea.Quit

		case "up", "k":
			if m.choosing >= 0 {
				n := len(m.settings[m.choosing].choices())
				m.choiceCursor = (m.choiceCursor - 1 + n) % n
			} else {
				m.cursor = (m.cursor - 1 + rows) % rows
			}

		case "down", "j":
			if m.choosing >= 0 {
				n := len(m.settings[m.choosing].choices())
				m.choiceCursor = (m.choiceCursor + 1) % n
			} else {
				m.cursor = (m.cursor + 1) % rows
			}

		case "enter", " ":
			return m.handleSelect()
		}
	}

	return m, nil
}

func (m ConfigModel) handleSelect() (tea.Model, tea.Cmd) {
	if m.choosing >= 0 {
		s := m.settings[m.choosing]
		choice := s.choices()[m.choiceCursor]
		s.set(&m.config, choice)
		m.choosing = -1
		return m.persist(fmt.Sprintf("%s set to %s", s.label, choice))
	}

	if m.cursor == len(m.settings) {
		return m, tea.Quit
	}

	s := m.settings[m.cursor]
	if s.toggle != nil {
		on := s.toggle(&m.config)
		return m.persist(fmt.Sprintf("%s %s", s.label, boolLabel(on)))
	}

	m.choosing = m.cursor
	m.choiceCursor = 0
	current := s.value(m.config)
	for i, c := range s.choices() {
		if c == current {
			m.choiceCursor = i
			break
		}
	}
	return m, nil
}

func (m ConfigModel) persist(feedback string) (tea.Model, tea.Cmd) {
	if err := m.save(m.config); err != nil {
		m.feedback = fmt.Sprintf("Error: %v", err)
	} else {
		m.feedback = feedback
	}
	return m, clearFeedback(tabHome, feedbackTimeout)
}

// Config returns the edited configuration
func (m ConfigModel) Config() config.Config {
	return m.config
}

// View renders the TUI
func (m ConfigModel) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}

	contentWidth := max(m.width-4, 40)
	sections := []string{
		configHeaderStyle.Width(contentWidth).Render(configTitleStyle.Render("✦ Configuration")),
		configPanelStyle.Width(contentWidth).Render(m.renderPaths()),
	}

	var body string
	if m.choosing >= 0 {
		body = m.renderChoices()
	} else {
		body = m.renderMenu()
	}
	sections = append(sections, configPanelStyle.Width(contentWidth).Render(body))

	if m.feedback != "" {
		sections = append(sections, feedbackStyle.Render("✓ "+m.feedback))
	}

	back := "Exit"
	if m.choosing >= 0 {
		back = "Back"
	}
	sections = append(sections, configStatusBarStyle.Width(contentWidth).Render(renderShortcuts([]shortcut{
		{"↑↓", "Navigate"}, {"Enter", "Select"}, {"Esc", back},
	})))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m ConfigModel) renderPaths() string {
	keyStatus := configStatusErrorStyle.Render("✗ not set (run 'techtouch login')")
	if m.keyMasked != "" {
		keyStatus = configStatusOkStyle.Render(fmt.Sprintf("✓ %s (%s)", m.keyMasked, m.keySource))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		configSectionTitleStyle.Render("📁 Paths"),
		fmt.Sprintf("   Config:  %s", configPathStyle.Render(m.configDir+"/config.json")),
		fmt.Sprintf("   API key: %s", keyStatus),
	)
}

func (m ConfigModel) renderMenu() string {
	lines := []string{configSectionTitleStyle.Render("⚙ Settings"), ""}
	for i, s := range m.settings {
		cursor, style := "  ", configMenuItemStyle
		if i == m.cursor {
			cursor, style = configCursorStyle.Render("▸ "), configMenuSelectedStyle
		}

		value := configValueStyle.Render(s.value(m.config))
		if s.toggle != nil {
			value = configDisabledStyle.Render("disabled")
			if s.value(m.config) == "enabled" {
				value = configEnabledStyle.Render("enabled")
			}
		}
		lines = append(lines, cursor+style.Width(20).Render(s.label)+value)
	}

	lines = append(lines, "")
	cursor, style := "  ", configMenuItemStyle
	if m.cursor == len(m.settings) {
		cursor, style = configCursorStyle.Render("▸ "), configMenuSelectedStyle
	}
	lines = append(lines, cursor+style.Render("Exit"))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m ConfigModel) renderChoices() string {
	s := m.settings[m.choosing]
	current := s.value(m.config)

	lines := []string{configSectionTitleStyle.Render("Select " + s.label), ""}
	for i, choice := range s.choices() {
		cursor, style := "  ", configMenuItemStyle
		if i == m.choiceCursor {
			cursor, style = configCursorStyle.Render("▸ "), configMenuSelectedStyle
		}
		mark := ""
		if choice == current {
			mark = configStatusOkStyle.Render(" (current)")
		}
		lines = append(lines, cursor+style.Render(choice)+mark)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// RunConfig starts the config editor
func RunConfig(cfg config.Config) error {
	p := tea.NewProgram(NewConfigModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
