// Package history provides local conversation history storage.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/diogo/techtouch/internal/config"
	"github.com/diogo/techtouch/internal/models"
)

// Kind distinguishes the chat tab from the personal info tab
type Kind string

const (
	KindChat Kind = "chat"
	KindInfo Kind = "info"
)

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	return k == KindChat || k == KindInfo
}

// MaxTitleRunes bounds titles derived from the first user message
const MaxTitleRunes = 50

// idPrefix marks conversation IDs so the resolver can tell them from titles
const idPrefix = "conv-"

// Conversation represents a complete chat conversation
type Conversation struct {
	ID        string               `json:"id"`
	Kind      Kind                 `json:"kind"`
	Title     string               `json:"title"`
	Model     string               `json:"model"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
	Messages  []models.ChatMessage `json:"messages"`

	// Favorite is filled by ListConversations from the metadata file
	Favorite bool `json:"-"`

	titled bool
}

// Message returns the message with the given ID
func (c *Conversation) Message(msgID string) (*models.ChatMessage, bool) {
	for i := range c.Messages {
		if c.Messages[i].ID == msgID {
			return &c.Messages[i], true
		}
	}
	return nil, false
}

// Store manages conversation history persistence
type Store struct {
	baseDir string
	mu      sync.RWMutex
	now     func() time.Time
}

// NewStore creates a new history store under baseDir/history
func NewStore(baseDir string) (*Store, error) {
	historyDir := filepath.Join(baseDir, "history")
	if err := os.MkdirAll(historyDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	return &Store{
		baseDir: historyDir,
		now:     time.Now,
	}, nil
}

// CreateConversation creates a new conversation and places it at the top of the order
func (s *Store) CreateConversation(kind Kind, model string) (*Conversation, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid conversation kind: %q", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	conv := &Conversation{
		ID:        idPrefix + uuid.NewString(),
		Kind:      kind,
		Title:     defaultTitle(kind, now),
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []models.ChatMessage{},
	}

	if err := s.saveConversation(conv); err != nil {
		return nil, err
	}
	if err := s.addToMeta(conv); err != nil {
		return nil, err
	}

	return conv, nil
}

// GetConversation retrieves a conversation by ID
func (s *Store) GetConversation(id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadConversation(id)
}

// ListConversations returns all conversations, favorites first, then in display order.
// Conversations missing from the order follow, most recently updated first.
func (s *Store) ListConversations() ([]*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	byID := make(map[string]*Conversation)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, idPrefix) || filepath.Ext(name) != ".json" {
			continue
		}

		conv, err := s.loadConversation(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue // Skip corrupted files
		}
		byID[conv.ID] = conv
	}

	meta, err := s.loadMeta()
	if err != nil {
		return nil, err
	}

	existing := make(map[string]bool, len(byID))
	for id := range byID {
		existing[id] = true
	}
	if s.cleanOrphanedMeta(meta, existing) {
		if err := s.saveMeta(meta); err != nil {
			return nil, err
		}
	}

	ordered := make([]*Conversation, 0, len(byID))
	for _, id := range meta.Order {
		ordered = append(ordered, byID[id])
		delete(byID, id)
	}

	var rest []*Conversation
	for _, conv := range byID {
		rest = append(rest, conv)
	}
	sort.Slice(rest, func(i, j int) bool {
		return rest[i].UpdatedAt.After(rest[j].UpdatedAt)
	})
	ordered = append(ordered, rest...)

	for _, conv := range ordered {
		conv.Favorite = meta.isFavorite(conv.ID)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Favorite && !ordered[j].Favorite
	})

	return ordered, nil
}

// Latest returns the most recently updated conversation of the given kind, or nil
func (s *Store) Latest(kind Kind) (*Conversation, error) {
	conversations, err := s.ListConversations()
	if err != nil {
		return nil, err
	}

	var latest *Conversation
	for _, conv := range conversations {
		if conv.Kind != kind {
			continue
		}
		if latest == nil || conv.UpdatedAt.After(latest.UpdatedAt) {
			latest = conv
		}
	}
	return latest, nil
}

// AppendMessage adds a message at the end of a conversation.
// The first user message names the conversation.
func (s *Store) AppendMessage(id string, msg models.ChatMessage) (models.ChatMessage, error) {
	if !msg.Sender.Valid() {
		return msg, fmt.Errorf("invalid sender: %q", msg.Sender)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.loadConversation(id)
	if err != nil {
		return msg, err
	}

	now := s.now()
	if msg.ID == "" {
		msg.ID = models.NewID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	if _, dup := conv.Message(msg.ID); dup {
		return msg, fmt.Errorf("message %s already exists in %s", msg.ID, id)
	}

	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = now

	if msg.Sender == models.SenderUser && !conv.titled {
		if title := titleFrom(msg); title != "" {
			conv.Title = title
			if err := s.updateTitleInMeta(id, title); err != nil {
				return msg, err
			}
		}
	}

	return msg, s.saveConversation(conv)
}

// UpdateMessage replaces the text of an existing message
func (s *Store) UpdateMessage(id, msgID, text string) error {
	return s.ModifyMessage(id, msgID, func(m *models.ChatMessage) {
		m.Text = text
	})
}

// ModifyMessage applies fn to an existing message and saves the conversation
func (s *Store) ModifyMessage(id, msgID string, fn func(*models.ChatMessage)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.loadConversation(id)
	if err != nil {
		return err
	}

	msg, ok := conv.Message(msgID)
	if !ok {
		return fmt.Errorf("message not found: %s", msgID)
	}
	fn(msg)
	msg.ID = msgID
	conv.UpdatedAt = s.now()

	return s.saveConversation(conv)
}

// DeleteConversation removes a conversation
func (s *Store) DeleteConversation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.conversationPath(id)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("conversation not found: %s", id)
		}
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	return s.removeFromMeta(id)
}

// UpdateTitle updates the title of a conversation
func (s *Store) UpdateTitle(id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.loadConversation(id)
	if err != nil {
		return err
	}

	conv.Title = title
	conv.UpdatedAt = s.now()

	if err := s.saveConversation(conv); err != nil {
		return err
	}
	return s.updateTitleInMeta(id, title)
}

// ClearAll deletes all conversations and their metadata
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to read history directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		path := filepath.Join(s.baseDir, entry.Name())
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to delete %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// Internal methods

func (s *Store) conversationPath(id string) string {
	return filepath.Join(s.baseDir, filepath.Base(id)+".json")
}

func (s *Store) loadConversation(id string) (*Conversation, error) {
	data, err := os.ReadFile(s.conversationPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("conversation not found: %s", id)
		}
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}

	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to parse conversation: %w", err)
	}
	if conv.Messages == nil {
		conv.Messages = []models.ChatMessage{}
	}
	for _, m := range conv.Messages {
		if m.Sender == models.SenderUser {
			conv.titled = true
			break
		}
	}

	return &conv, nil
}

func (s *Store) saveConversation(conv *Conversation) error {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	path := s.conversationPath(conv.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write conversation: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write conversation: %w", err)
	}

	return nil
}

func defaultTitle(kind Kind, now time.Time) string {
	label := "Chat"
	if kind == KindInfo {
		label = "Info"
	}
	return fmt.Sprintf("%s %s", label, now.Format("2006-01-02 15:04"))
}

// titleFrom derives a title from a user message, falling back to the attachment name
func titleFrom(msg models.ChatMessage) string {
	text := strings.Join(strings.Fields(msg.Text), " ")
	if text == "" && msg.FileInfo != nil {
		text = msg.FileInfo.Name
	}
	if utf8.RuneCountInString(text) > MaxTitleRunes {
		text = string([]rune(text)[:MaxTitleRunes]) + "..."
	}
	return text
}

// GetHistoryDir returns the default history base directory
func GetHistoryDir() (string, error) {
	return config.GetConfigDir()
}

// DefaultStore creates a store using the default location
func DefaultStore() (*Store, error) {
	dir, err := GetHistoryDir()
	if err != nil {
		return nil, err
	}
	return NewStore(dir)
}
