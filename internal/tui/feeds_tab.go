package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/techtouch/internal/feeds"
	"github.com/diogo/techtouch/internal/models"
)

// feedItem is the display form of a news or phone entry
type feedItem struct {
	title   string
	summary string
	details []string
	link    string
	share   string
}

func newsItems(items []models.NewsItem) []feedItem {
	out := make([]feedItem, 0, len(items))
	for _, item := range items {
		fi := feedItem{
			title:   item.Title,
			summary: item.Summary,
			link:    item.Link,
			share:   feeds.ShareText(item),
		}
		if item.Details != "" {
			fi.details = []string{item.Details}
		}
		out = append(out, fi)
	}
	return out
}

func phoneItems(items []models.PhoneNewsItem) []feedItem {
	out := make([]feedItem, 0, len(items))
	for _, item := range items {
		details := make([]string, 0, len(item.Specs))
		for _, spec := range item.Specs {
			details = append(details, "• "+spec)
		}
		out = append(out, feedItem{
			title:   item.ModelName,
			summary: item.Summary,
			details: details,
			share:   feeds.PhoneShareText(item),
		})
	}
	return out
}

// feedLoadedMsg delivers a feed fetch result
type feedLoadedMsg struct {
	target tab
	items  []feedItem
	err    error
}

// cacheClearedMsg reports the result of clearing a feed cache
type cacheClearedMsg struct {
	target tab
	err    error
}

// feedTab lists AI news or phone releases
type feedTab struct {
	id     tab
	kind   feeds.Kind
	svc    FeedService
	copyFn func(string) error

	items    []feedItem
	cursor   int
	expanded map[int]bool
	loaded   bool
	loading  bool

	animationFrame int
	feedback       string
	err            error

	width  int
	height int
}

func newFeedTab(id tab, kind feeds.Kind, deps Deps) feedTab {
	return feedTab{
		id:       id,
		kind:     kind,
		svc:      deps.Feeds,
		copyFn:   deps.Copy,
		expanded: make(map[int]bool),
	}
}

func (m *feedTab) setSize(width, height int) {
	m.width = width
	m.height = height
}

// activate loads the feed the first time the tab is shown
func (m feedTab) activate(ctx context.Context) (feedTab, tea.Cmd) {
	if m.loaded || m.loading {
		return m, nil
	}
	return m.load(ctx, false)
}

func (m feedTab) load(ctx context.Context, refresh bool) (feedTab, tea.Cmd) {
	m.loading = true
	m.err = nil
	m.animationFrame = 0

	svc, kind, target := m.svc, m.kind, m.id
	fetch := func() tea.Msg {
		switch kind {
		case feeds.KindPhones:
			items, err := svc.PhoneNews(ctx, refresh)
			return feedLoadedMsg{target: target, items: phoneItems(items), err: err}
		default:
			items, err := svc.AINews(ctx, refresh)
			return feedLoadedMsg{target: target, items: newsItems(items), err: err}
		}
	}
	return m, tea.Batch(fetch, animationTick())
}

func (m feedTab) clearCache(ctx context.Context) tea.Cmd {
	svc, kind, target := m.svc, m.kind, m.id
	return func() tea.Msg {
		return cacheClearedMsg{target: target, err: svc.ClearCache(ctx, kind)}
	}
}

func (m feedTab) update(ctx context.Context, msg tea.Msg) (feedTab, tea.Cmd) {
	switch msg := msg.(type) {
	case feedLoadedMsg:
		m.loading = false
		m.loaded = true
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.items = msg.items
		m.cursor = 0
		m.expanded = make(map[int]bool)

	case cacheClearedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.items = nil
		m.loaded = false
		m.feedback = "Cache cleared. Press r to fetch again"
		return m, clearFeedback(m.id, feedbackTimeout)

	case animationTickMsg:
		if m.loading {
			m.animationFrame++
			return m, animationTick()
		}

	case feedbackClearMsg:
		m.feedback = ""

	case tea.KeyMsg:
		if m.loading {
			return m, nil
		}
		switch msg.String() {
		case "up", "k":
			if len(m.items) > 0 {
				m.cursor--
				if m.cursor < 0 {
					m.cursor = len(m.items) - 1
				}
			}
		case "down", "j":
			if len(m.items) > 0 {
				m.cursor++
				if m.cursor >= len(m.items) {
					m.cursor = 0
				}
			}
		case "home", "g":
			m.cursor = 0
		case "end", "G":
			m.cursor = max(len(m.items)-1, 0)
		case "enter", " ":
			if len(m.items) > 0 {
				m.expanded[m.cursor] = !m.expanded[m.cursor]
			}
		case "r":
			return m.load(ctx, true)
		case "d":
			return m, m.clearCache(ctx)
		case "s":
			if len(m.items) == 0 {
				return m, nil
			}
			if err := m.copyFn(m.items[m.cursor].share); err != nil {
				m.err = fmt.Errorf("failed to copy to clipboard: %w", err)
				return m, nil
			}
			m.feedback = "Copied to clipboard"
			return m, clearFeedback(m.id, feedbackTimeout)
		}
	}
	return m, nil
}

func (m feedTab) view() string {
	contentWidth := max(m.width-2, 30)

	title := "🤖 أخبار الذكاء الاصطناعي"
	if m.kind == feeds.KindPhones {
		title = "📱 أحدث الهواتف"
	}

	var lines []string
	lines = append(lines, configSectionTitleStyle.Render(title), "")

	switch {
	case m.loading:
		lines = append(lines, renderLoadingAnimation(m.animationFrame))
	case len(m.items) == 0 && m.err == nil:
		lines = append(lines, hintStyle.Render("  No items. Press r to fetch"))
	default:
		lines = append(lines, m.renderItems(contentWidth-6)...)
	}

	panel := configPanelStyle.Width(contentWidth).Height(max(m.height-4, 5)).Render(strings.Join(lines, "\n"))
	sections := []string{panel}

	switch {
	case m.err != nil:
		sections = append(sections, FormatError(m.err))
	case m.feedback != "":
		sections = append(sections, feedbackStyle.Render("✓ "+m.feedback))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderItems renders a window of items around the cursor
func (m feedTab) renderItems(width int) []string {
	maxItems := max((m.height-10)/2, 3)
	start := 0
	if m.cursor >= maxItems {
		start = m.cursor - maxItems + 1
	}
	end := min(start+maxItems, len(m.items))

	var lines []string
	if start > 0 {
		lines = append(lines, hintStyle.Render("  ↑ more above"))
	}
	for i := start; i < end; i++ {
		item := m.items[i]
		cursor, style := "  ", itemTitleStyle
		if i == m.cursor {
			cursor, style = configCursorStyle.Render("▸ "), itemSelectedStyle
		}
		lines = append(lines, fmt.Sprintf("%s%d. %s", cursor, i+1, style.Render(item.title)))
		if item.summary != "" {
			lines = append(lines, itemSummaryStyle.Width(width).Render(item.summary))
		}
		if m.expanded[i] {
			body := strings.Join(item.details, "\n")
			if item.link != "" {
				body = strings.TrimSpace(body + "\n" + linkStyle.Render(item.link))
			}
			if body == "" {
				body = hintStyle.Render("No details")
			}
			lines = append(lines, detailsStyle.Width(width-4).Render(body))
		}
	}
	if end < len(m.items) {
		lines = append(lines, hintStyle.Render("  ↓ more below"))
	}
	return lines
}
