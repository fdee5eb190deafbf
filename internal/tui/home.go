package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// switchTabMsg asks the app to show another tab
type switchTabMsg struct {
	to tab
}

type card struct {
	to    tab
	icon  string
	title string
	desc  string
}

var homeCards = []card{
	{tabChat, "💬", "المحادثة", "اسأل، قارن، ترجم الملفات"},
	{tabNews, "🤖", "أخبار الذكاء الاصطناعي", "آخر الأخبار مع البحث"},
	{tabPhones, "📱", "الهواتف", "أحدث الإصدارات والمواصفات"},
	{tabInfo, "ℹ", "معلومات", "القنوات والمشاريع والروابط"},
}

// homeTab shows one card per feature
type homeTab struct {
	cursor int
	width  int
	height int
}

func (m *homeTab) setSize(width, height int) {
	m.width = width
	m.height = height
}

func (m homeTab) update(msg tea.Msg) (homeTab, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "left", "h", "up", "k":
		m.cursor = (m.cursor - 1 + len(homeCards)) % len(homeCards)
	case "right", "l", "down", "j":
		m.cursor = (m.cursor + 1) % len(homeCards)
	case "enter", " ":
		to := homeCards[m.cursor].to
		return m, func() tea.Msg { return switchTabMsg{to: to} }
	}
	return m, nil
}

func (m homeTab) view() string {
	rendered := make([]string, len(homeCards))
	for i, c := range homeCards {
		style := cardStyle
		if i == m.cursor {
			style = selectedCardStyle
		}
		rendered[i] = style.Render(lipgloss.JoinVertical(lipgloss.Left,
			cardTitleStyle.Render(c.icon+"  "+c.title),
			"",
			subtitleStyle.Render(c.desc),
		))
	}

	// two cards per row when the terminal is wide enough
	var grid string
	if m.width >= 2*lipgloss.Width(rendered[0])+2 {
		grid = lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.JoinHorizontal(lipgloss.Top, rendered[0], "  ", rendered[1]),
			lipgloss.JoinHorizontal(lipgloss.Top, rendered[2], "  ", rendered[3]),
		)
	} else {
		grid = lipgloss.JoinVertical(lipgloss.Left, rendered...)
	}

	title := welcomeTitleStyle.Render("✦ TechTouch")
	subtitle := welcomeStyle.Render("مساعدك التقني")
	return lipgloss.Place(max(m.width, 1), max(m.height, 1), lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, title, subtitle, "", grid))
}
