package render

import (
	"strings"

	"github.com/diogo/techtouch/internal/models"
)

// Markdown renders markdown content for terminal display.
// Uses a pooled renderer for better performance and thread safety.
func Markdown(content string, opts Options) (string, error) {
	renderer, err := globalPool.get(opts)
	if err != nil {
		return "", err
	}
	defer globalPool.put(opts, renderer)

	return renderer.Render(content)
}

// MarkdownWithWidth renders with default options at the given width.
func MarkdownWithWidth(content string, width int) (string, error) {
	return Markdown(content, DefaultOptions().WithWidth(width))
}

// WithSources appends grounding sources to a reply as a markdown list
func WithSources(text string, sources []string, lang string) string {
	if len(sources) == 0 {
		return text
	}
	label := "المصادر"
	if lang == "en" {
		label = "Sources"
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimRight(text, "\n"))
	sb.WriteString("\n\n**")
	sb.WriteString(label)
	sb.WriteString(":**\n")
	for _, src := range sources {
		sb.WriteString("- ")
		sb.WriteString(src)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Message renders a chat message body, including links and sources
func Message(msg models.ChatMessage, lang string, opts Options) (string, error) {
	var sb strings.Builder
	sb.WriteString(msg.Text)
	for _, item := range msg.StructuredData {
		sb.WriteString("\n- [")
		sb.WriteString(item.Name)
		sb.WriteString("](")
		sb.WriteString(item.URL)
		sb.WriteString(")")
	}
	if msg.DownloadLink != nil {
		sb.WriteString("\n\n📄 ")
		sb.WriteString(msg.DownloadLink.URL)
	}

	content := WithSources(sb.String(), msg.Sources, lang)
	if msg.Sender != models.SenderAI {
		return content, nil
	}
	return Markdown(content, opts)
}
