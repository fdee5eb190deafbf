package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/techtouch/internal/chat"
	"github.com/diogo/techtouch/internal/history"
	"github.com/diogo/techtouch/internal/models"
)

// animationTickMsg advances the loading animation
type animationTickMsg time.Time

func animationTick() tea.Cmd {
	return tea.Tick(time.Millisecond*80, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

// feedbackClearMsg clears the transient feedback line of a tab
type feedbackClearMsg struct {
	target tab
}

func clearFeedback(target tab, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return feedbackClearMsg{target: target}
	})
}

const feedbackTimeout = 2 * time.Second

// chatTab is a conversation view. The Chat tab streams replies; the Info
// tab answers questions about the personal directory and lists its links.
type chatTab struct {
	id   tab
	kind history.Kind

	svc    ChatService
	copyFn func(string) error

	convID     string
	transcript transcript
	links      []models.PersonalInfoItem

	viewport viewport.Model
	textarea textarea.Model

	attachment     string
	loading        bool
	cancel         context.CancelFunc
	animationFrame int
	feedback       string
	err            error

	width  int
	height int
}

func newTextarea(placeholder string) textarea.Model {
	ta := textarea.New()
	ta.Placeholder = placeholder
	ta.CharLimit = 4000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.Focus()

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(colorText)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(colorTextDim)
	ta.BlurredStyle = ta.FocusedStyle
	return ta
}

func newChatTab(deps Deps) chatTab {
	m := chatTab{
		id:         tabChat,
		kind:       history.KindChat,
		svc:        deps.Chat,
		copyFn:     deps.Copy,
		transcript: transcript{lang: deps.Lang, render: deps.Render},
		viewport:   viewport.New(80, 10),
		textarea:   newTextarea("اكتب رسالتك هنا... (/attach <path>, /copy, /new)"),
	}
	if deps.Conversation != nil && deps.Conversation.Kind == history.KindChat {
		m.convID = deps.Conversation.ID
		m.transcript.messages = append(m.transcript.messages, deps.Conversation.Messages...)
	}
	return m
}

func newInfoTab(deps Deps) chatTab {
	m := chatTab{
		id:         tabInfo,
		kind:       history.KindInfo,
		svc:        deps.Chat,
		copyFn:     deps.Copy,
		transcript: transcript{lang: deps.Lang, render: deps.Render},
		viewport:   viewport.New(80, 10),
		textarea:   newTextarea("اسأل عن القنوات والروابط..."),
	}
	if deps.Personal != nil {
		m.links = deps.Personal.Items()
	}
	return m
}

func (m *chatTab) setSize(width, height int) {
	m.width = width
	m.height = height

	inputHeight := 6
	linksHeight := 0
	if m.id == tabInfo {
		linksHeight = min(len(m.links), 6) + 3
	}
	vpHeight := max(height-inputHeight-linksHeight-3, 5)

	m.viewport.Width = max(width-4, 20)
	m.viewport.Height = vpHeight
	m.textarea.SetWidth(max(width-8, 10))
	m.refresh()
}

// refresh re-renders the transcript into the viewport
func (m *chatTab) refresh() {
	m.viewport.SetContent(m.transcript.view(m.viewport.Width))
	m.viewport.GotoBottom()
}

func (m chatTab) update(ctx context.Context, msg tea.Msg) (chatTab, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			if m.loading {
				m.stop()
				return m, nil
			}
		case "enter":
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" && m.attachment == "" {
				return m, nil
			}
			m.textarea.Reset()
			return m.submit(ctx, input)
		}

		if !m.loading {
			m.textarea, cmd = m.textarea.Update(msg)
			cmds = append(cmds, cmd)
		}

	case streamEventMsg:
		if msg.event.ConversationID == m.convID {
			m.transcript.upsert(msg.event.Message)
			m.refresh()
		}
		if msg.event.Type == chat.EventError {
			m.err = msg.event.Err
		}
		return m, waitForStream(msg.ch)

	case streamDoneMsg:
		m.finish()
		if msg.err != nil && m.err == nil && !errors.Is(msg.err, context.Canceled) {
			m.err = msg.err
		}
		return m, nil

	case animationTickMsg:
		if m.loading {
			m.animationFrame++
			return m, animationTick()
		}
		return m, nil

	case feedbackClearMsg:
		m.feedback = ""
		return m, nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit handles slash commands or sends the input
func (m chatTab) submit(ctx context.Context, input string) (chatTab, tea.Cmd) {
	m.err = nil

	switch {
	case input == "/new":
		m.stop()
		if m.convID != "" {
			m.svc.Reset(m.convID)
		}
		m.convID = ""
		m.attachment = ""
		m.transcript.reset()
		m.refresh()
		return m.notify("New conversation")

	case input == "/copy":
		last, ok := m.transcript.lastAI()
		if !ok {
			return m.notify("Nothing to copy yet")
		}
		if err := m.copyFn(last.Text); err != nil {
			m.err = fmt.Errorf("failed to copy to clipboard: %w", err)
			return m, nil
		}
		return m.notify("Copied last reply to clipboard")

	case strings.HasPrefix(input, "/attach"):
		if m.id != tabChat {
			return m.notify("Attachments are only available in Chat")
		}
		path := strings.TrimSpace(strings.TrimPrefix(input, "/attach"))
		if path == "" {
			m.attachment = ""
			return m.notify("Attachment removed")
		}
		if _, err := os.Stat(path); err != nil {
			m.err = fmt.Errorf("cannot attach %s: %w", path, err)
			return m, nil
		}
		m.attachment = path
		return m.notify("Attached " + path)
	}

	if m.convID == "" {
		conv, err := m.svc.NewConversation(m.kind)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.convID = conv.ID
	}

	reqCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.loading = true
	m.animationFrame = 0

	svc, convID, target := m.svc, m.convID, m.id
	var run func(context.Context, chat.Sink) error
	if m.id == tabInfo {
		run = func(ctx context.Context, sink chat.Sink) error {
			_, err := svc.AskPersonal(ctx, convID, input, sink)
			return err
		}
	} else {
		in := chat.Input{Text: input, Attachment: m.attachment}
		m.attachment = ""
		run = func(ctx context.Context, sink chat.Sink) error {
			return svc.Send(ctx, convID, in, sink)
		}
	}

	return m, tea.Batch(startStream(reqCtx, target, run), animationTick())
}

func (m chatTab) notify(text string) (chatTab, tea.Cmd) {
	m.feedback = text
	return m, clearFeedback(m.id, feedbackTimeout)
}

// stop cancels the running request
func (m *chatTab) stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.finish()
}

func (m *chatTab) finish() {
	m.loading = false
	m.cancel = nil
}

func (m chatTab) view() string {
	contentWidth := max(m.width-2, 20)
	var sections []string

	var messages string
	if len(m.transcript.messages) == 0 {
		messages = m.renderWelcome()
	} else {
		messages = m.viewport.View()
	}
	sections = append(sections, messagesAreaStyle.Width(contentWidth).Height(m.viewport.Height).Render(messages))

	if m.id == tabInfo && len(m.links) > 0 {
		sections = append(sections, m.renderLinks(contentWidth))
	}

	var input string
	if m.loading {
		input = renderLoadingAnimation(m.animationFrame)
	} else {
		label := "You"
		if m.attachment != "" {
			label += attachmentStyle.Render("  📎 " + m.attachment)
		}
		input = lipgloss.JoinVertical(lipgloss.Left, inputLabelStyle.Render(label), m.textarea.View())
	}
	sections = append(sections, inputPanelStyle.Width(contentWidth).Render(input))

	switch {
	case m.err != nil:
		sections = append(sections, FormatError(m.err))
	case m.feedback != "":
		sections = append(sections, feedbackStyle.Render("✓ "+m.feedback))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m chatTab) renderWelcome() string {
	width := max(m.viewport.Width-4, 10)

	icon, title, subtitle := "✦", "TechTouch", "ابدأ المحادثة بكتابة رسالتك بالأسفل"
	if m.id == tabInfo {
		icon, title, subtitle = "ℹ", "معلومات شخصية", "اسأل عن القنوات والمشاريع والروابط"
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		welcomeIconStyle.Width(width).Render(icon),
		"",
		welcomeTitleStyle.Width(width).Render(title),
		"",
		welcomeStyle.Width(width).Render(subtitle),
	)

	topPadding := max((m.viewport.Height-lipgloss.Height(content))/2, 0)
	return strings.Repeat("\n", topPadding) + content
}

func (m chatTab) renderLinks(width int) string {
	var lines []string
	lines = append(lines, configSectionTitleStyle.Render("🔗 الروابط"))
	limit := min(len(m.links), 6)
	for _, item := range m.links[:limit] {
		lines = append(lines, fmt.Sprintf("  %s  %s", itemTitleStyle.Render(item.Name), linkStyle.Render(item.URL)))
	}
	if len(m.links) > limit {
		lines = append(lines, hintStyle.Render(fmt.Sprintf("  … %d more", len(m.links)-limit)))
	}
	return inputPanelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

// renderLoadingAnimation renders a colorful animated loading indicator
func renderLoadingAnimation(frame int) string {
	chars := []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}
	barChars := []string{"█", "█", "█", "█", "█", "█", "█", "█", "▓", "▒", "░"}

	spinColor := gradientColors[frame%len(gradientColors)]
	spin := lipgloss.NewStyle().Foreground(spinColor).Bold(true).Render(chars[frame%len(chars)])

	const barWidth = 20
	var bar strings.Builder
	for i := 0; i < barWidth; i++ {
		style := lipgloss.NewStyle().Foreground(gradientColors[(i+frame)%len(gradientColors)])
		bar.WriteString(style.Render(barChars[(i+frame/2)%len(barChars)]))
	}

	var dots strings.Builder
	numDots := (frame / 3) % 4
	for i := 0; i < 3; i++ {
		if i < numDots {
			dots.WriteString(lipgloss.NewStyle().Foreground(gradientColors[(frame+i)%len(gradientColors)]).Render("●"))
		} else {
			dots.WriteString(lipgloss.NewStyle().Foreground(colorTextMute).Render("○"))
		}
	}

	text := lipgloss.NewStyle().Foreground(colorText).Render(" TechTouch is thinking ")
	return fmt.Sprintf("%s %s %s %s", spin, bar.String(), text, dots.String())
}
