package models

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who produced a chat message
type Sender string

const (
	SenderUser   Sender = "user"
	SenderAI     Sender = "ai"
	SenderSystem Sender = "system"
)

// Valid reports whether s is a known sender
func (s Sender) Valid() bool {
	switch s {
	case SenderUser, SenderAI, SenderSystem:
		return true
	}
	return false
}

// FileInfo describes a non-image attachment sent with a user message
type FileInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// DownloadType is the kind of file offered by a DownloadLink
type DownloadType string

const (
	DownloadPDF  DownloadType = "pdf"
	DownloadTXT  DownloadType = "txt"
	DownloadDOCX DownloadType = "docx"
	DownloadPNG  DownloadType = "png"
	DownloadJPG  DownloadType = "jpg"
)

// DownloadLink points at a file produced for the user (translated document, edited image)
type DownloadLink struct {
	URL      string       `json:"url"`
	Filename string       `json:"filename"`
	Type     DownloadType `json:"type"`
}

// ChatMessage is a single entry of a conversation.
// Messages are appended in order; the slice order is the display order.
type ChatMessage struct {
	ID             string             `json:"id"`
	Sender         Sender             `json:"sender"`
	Text           string             `json:"text"`
	ImagePreview   string             `json:"image_preview,omitempty"`
	FileInfo       *FileInfo          `json:"file_info,omitempty"`
	DownloadLink   *DownloadLink      `json:"download_link,omitempty"`
	StructuredData []PersonalInfoItem `json:"structured_data,omitempty"`
	Sources        []string           `json:"sources,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

// NewID returns a fresh message identifier
func NewID() string {
	return uuid.NewString()
}

// NewMessage creates a message with a fresh ID and timestamp
func NewMessage(sender Sender, text string) ChatMessage {
	return ChatMessage{
		ID:        NewID(),
		Sender:    sender,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// NewsItem is a single AI news entry
type NewsItem struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Link    string `json:"link"`
	Details string `json:"details"`
}

// Valid reports whether the item carries a title and a summary
func (n NewsItem) Valid() bool {
	return n.Title != "" && n.Summary != ""
}

// PhoneNewsItem is a single phone release entry
type PhoneNewsItem struct {
	ModelName string   `json:"modelName"`
	Summary   string   `json:"summary"`
	Specs     []string `json:"specs"`
}

// Valid reports whether the item names a phone
func (p PhoneNewsItem) Valid() bool {
	return p.ModelName != ""
}

// InfoCategory groups personal directory links
type InfoCategory string

const (
	CategoryTelegram       InfoCategory = "telegram"
	CategoryYouTube        InfoCategory = "youtube"
	CategoryTikTok         InfoCategory = "tiktok"
	CategoryTelegramFolder InfoCategory = "telegram-folder"
	CategoryProject        InfoCategory = "project"
)

// PersonalInfoItem is an entry of the static personal directory
type PersonalInfoItem struct {
	Name     string       `json:"name" yaml:"name"`
	URL      string       `json:"url" yaml:"url"`
	Category InfoCategory `json:"category" yaml:"category"`
	Keywords []string     `json:"keywords" yaml:"keywords"`
}
