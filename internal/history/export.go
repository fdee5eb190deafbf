package history

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apierrors "github.com/diogo/techtouch/internal/errors"
	"github.com/diogo/techtouch/internal/models"
)

// ExportFormat represents the format for exporting conversations
type ExportFormat string

const (
	ExportFormatMarkdown ExportFormat = "markdown"
	ExportFormatJSON     ExportFormat = "json"
)

// ParseExportFormat accepts "markdown", "md" or "json"
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return ExportFormatMarkdown, nil
	case "json":
		return ExportFormatJSON, nil
	}
	return "", fmt.Errorf("unknown export format %q (use markdown or json)", s)
}

// ExportOptions configures how conversations are exported
type ExportOptions struct {
	Format        ExportFormat
	IncludeSystem bool // Include status messages such as "extracting text..."
}

// DefaultExportOptions returns the options used by the CLI
func DefaultExportOptions() ExportOptions {
	return ExportOptions{Format: ExportFormatMarkdown}
}

func (o ExportOptions) keep(m models.ChatMessage) bool {
	return o.IncludeSystem || m.Sender != models.SenderSystem
}

// Export renders a conversation in the requested format
func (s *Store) Export(id string, opts ExportOptions) ([]byte, error) {
	switch opts.Format {
	case ExportFormatJSON:
		return s.ExportToJSON(id, opts)
	default:
		md, err := s.ExportToMarkdown(id, opts)
		return []byte(md), err
	}
}

// ExportToMarkdown exports a conversation to Markdown
func (s *Store) ExportToMarkdown(id string, opts ExportOptions) (string, error) {
	conv, err := s.GetConversation(id)
	if err != nil {
		return "", err
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", conv.Title)
	fmt.Fprintf(&sb, "**Model:** %s\n", conv.Model)
	fmt.Fprintf(&sb, "**Created:** %s\n", conv.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "**Updated:** %s\n", conv.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "**Messages:** %d\n\n---\n\n", len(conv.Messages))

	first := true
	for _, msg := range conv.Messages {
		if !opts.keep(msg) {
			continue
		}
		if !first {
			sb.WriteString("\n---\n\n")
		}
		first = false

		sb.WriteString("## ")
		sb.WriteString(senderLabel(msg.Sender))
		if !msg.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, " (%s)", msg.CreatedAt.Format("15:04:05"))
		}
		sb.WriteString("\n\n")

		if msg.FileInfo != nil {
			fmt.Fprintf(&sb, "📎 %s (%s)\n\n", msg.FileInfo.Name, msg.FileInfo.Type)
		}

		sb.WriteString(msg.Text)
		sb.WriteString("\n")

		for _, item := range msg.StructuredData {
			fmt.Fprintf(&sb, "- [%s](%s)\n", item.Name, item.URL)
		}
		if len(msg.Sources) > 0 {
			sb.WriteString("\n**Sources:**\n")
			for _, src := range msg.Sources {
				fmt.Fprintf(&sb, "- %s\n", src)
			}
		}
		if msg.DownloadLink != nil {
			fmt.Fprintf(&sb, "\n[%s](%s)\n", msg.DownloadLink.Filename, msg.DownloadLink.URL)
		}
	}

	return sb.String(), nil
}

// ExportToJSON exports a conversation to indented JSON. Image previews are dropped.
func (s *Store) ExportToJSON(id string, opts ExportOptions) ([]byte, error) {
	conv, err := s.GetConversation(id)
	if err != nil {
		return nil, err
	}

	messages := make([]models.ChatMessage, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		if !opts.keep(msg) {
			continue
		}
		msg.ImagePreview = ""
		messages = append(messages, msg)
	}
	conv.Messages = messages

	return json.MarshalIndent(conv, "", "  ")
}

func senderLabel(s models.Sender) string {
	switch s {
	case models.SenderUser:
		return "User"
	case models.SenderAI:
		return "Assistant"
	default:
		return "System"
	}
}

// SearchResult represents a search match in conversations
type SearchResult struct {
	Conversation *Conversation
	MatchSnippet string // Snippet where the term was found
	MatchField   string // "title" or "content"
	MatchIndex   int    // Message index if MatchField is "content", -1 for title
}

// SearchConversations searches titles and, optionally, message text
func (s *Store) SearchConversations(query string, searchContent bool) ([]*SearchResult, error) {
	conversations, err := s.ListConversations()
	if err != nil {
		return nil, err
	}

	queryLower := strings.ToLower(query)
	var results []*SearchResult

	for _, conv := range conversations {
		if strings.Contains(strings.ToLower(conv.Title), queryLower) {
			results = append(results, &SearchResult{
				Conversation: conv,
				MatchSnippet: conv.Title,
				MatchField:   "title",
				MatchIndex:   -1,
			})
			continue
		}

		if !searchContent {
			continue
		}
		for i, msg := range conv.Messages {
			if strings.Contains(strings.ToLower(msg.Text), queryLower) {
				results = append(results, &SearchResult{
					Conversation: conv,
					MatchSnippet: extractSnippet(msg.Text, query, 100),
					MatchField:   "content",
					MatchIndex:   i,
				})
				break // one match per conversation
			}
		}
	}

	return results, nil
}

// extractSnippet returns up to maxLen runes around the first occurrence of query
func extractSnippet(content, query string, maxLen int) string {
	runes := []rune(content)
	idx := strings.Index(strings.ToLower(content), strings.ToLower(query))
	if idx == -1 {
		if len(runes) > maxLen {
			return string(runes[:maxLen]) + "..."
		}
		return content
	}

	pos := len([]rune(content[:idx]))
	half := maxLen / 2
	start := max(0, pos-half)
	end := min(len(runes), start+maxLen)
	start = max(0, end-maxLen)

	snippet := string(runes[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(runes) {
		snippet += "..."
	}
	return snippet
}

// FormatRelativeTime formats t relative to now, e.g. "منذ 3 ساعات" or "3h ago"
func FormatRelativeTime(t time.Time, lang string) string {
	return formatRelative(time.Since(t), t, lang)
}

func formatRelative(diff time.Duration, t time.Time, lang string) string {
	ar := lang != apierrors.LangEnglish

	switch {
	case diff < time.Minute:
		if ar {
			return "الآن"
		}
		return "just now"
	case diff < time.Hour:
		n := int(diff.Minutes())
		if ar {
			return fmt.Sprintf("منذ %d دقيقة", n)
		}
		return fmt.Sprintf("%d min ago", n)
	case diff < 24*time.Hour:
		n := int(diff.Hours())
		if ar {
			return fmt.Sprintf("منذ %d ساعة", n)
		}
		return fmt.Sprintf("%dh ago", n)
	case diff < 48*time.Hour:
		if ar {
			return "أمس"
		}
		return "yesterday"
	case diff < 7*24*time.Hour:
		n := int(diff.Hours() / 24)
		if ar {
			return fmt.Sprintf("منذ %d أيام", n)
		}
		return fmt.Sprintf("%d days ago", n)
	default:
		return t.Format("2006-01-02")
	}
}
