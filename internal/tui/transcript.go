package tui

import (
	"strings"

	"github.com/diogo/techtouch/internal/models"
	"github.com/diogo/techtouch/internal/render"
)

// transcript holds the messages shown by a conversation tab
type transcript struct {
	messages []models.ChatMessage
	lang     string
	render   render.Options
}

// upsert appends msg or replaces the message with the same ID
func (t *transcript) upsert(msg models.ChatMessage) {
	for i := range t.messages {
		if t.messages[i].ID == msg.ID {
			t.messages[i] = msg
			return
		}
	}
	t.messages = append(t.messages, msg)
}

func (t *transcript) reset() {
	t.messages = nil
}

// lastAI returns the newest AI message with text
func (t transcript) lastAI() (models.ChatMessage, bool) {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Sender == models.SenderAI && strings.TrimSpace(t.messages[i].Text) != "" {
			return t.messages[i], true
		}
	}
	return models.ChatMessage{}, false
}

// view renders all messages for a viewport of the given width
func (t transcript) view(width int) string {
	bubbleWidth := max(width-6, 20)

	var content strings.Builder
	for i, msg := range t.messages {
		if i > 0 {
			content.WriteString("\n")
		}

		switch msg.Sender {
		case models.SenderUser:
			body := msg.Text
			if msg.ImagePreview != "" {
				body = strings.TrimSpace(attachmentStyle.Render("🖼 image") + "\n" + body)
			}
			if msg.FileInfo != nil {
				body = strings.TrimSpace(attachmentStyle.Render("📎 "+msg.FileInfo.Name) + "\n" + body)
			}
			content.WriteString(userLabelStyle.Render("⬤ You") + "\n")
			content.WriteString(userBubbleStyle.Width(bubbleWidth).Render(body))

		case models.SenderAI:
			content.WriteString(assistantLabelStyle.Render("✦ TechTouch") + "\n")
			if msg.Text == "" {
				content.WriteString(assistantBubbleStyle.Width(bubbleWidth).Render(hintStyle.Render("…")))
				break
			}
			rendered, err := render.Message(msg, t.lang, t.render.WithWidth(bubbleWidth-4))
			if err != nil {
				rendered = msg.Text
			}
			rendered = strings.TrimRight(rendered, "\n")
			content.WriteString(assistantBubbleStyle.Width(bubbleWidth).Render(rendered))

		case models.SenderSystem:
			content.WriteString(systemStyle.Width(bubbleWidth).Render("• " + msg.Text))
		}
		content.WriteString("\n")
	}
	return content.String()
}
