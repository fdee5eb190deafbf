package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

const (
	metaFileName = "meta.json"
	metaVersion  = 1
)

// ConversationMeta stores global metadata per conversation
type ConversationMeta struct {
	ID         string `json:"id"`
	Title      string `json:"title"` // Cached title for quick listing
	Kind       Kind   `json:"kind"`
	IsFavorite bool   `json:"is_favorite"`
}

// HistoryMeta stores the order and favorites for all conversations
type HistoryMeta struct {
	Version int                          `json:"version"`
	Order   []string                     `json:"order"` // IDs in display order
	Meta    map[string]*ConversationMeta `json:"meta"`
}

func newHistoryMeta() *HistoryMeta {
	return &HistoryMeta{
		Version: metaVersion,
		Order:   []string{},
		Meta:    make(map[string]*ConversationMeta),
	}
}

func (m *HistoryMeta) isFavorite(id string) bool {
	cm, ok := m.Meta[id]
	return ok && cm.IsFavorite
}

func (m *HistoryMeta) indexOf(id string) int {
	return slices.Index(m.Order, id)
}

// track makes sure conv has an entry and a place in the order
func (m *HistoryMeta) track(conv *Conversation) *ConversationMeta {
	cm, ok := m.Meta[conv.ID]
	if !ok {
		cm = &ConversationMeta{ID: conv.ID, Title: conv.Title, Kind: conv.Kind}
		m.Meta[conv.ID] = cm
	}
	if m.indexOf(conv.ID) == -1 {
		m.Order = append(m.Order, conv.ID)
	}
	return cm
}

func (s *Store) metaPath() string {
	return filepath.Join(s.baseDir, metaFileName)
}

// loadMeta returns an empty HistoryMeta when meta.json doesn't exist
func (s *Store) loadMeta() (*HistoryMeta, error) {
	data, err := os.ReadFile(s.metaPath())
	if err != nil {
		if os.IsNotExist(err) {
			return newHistoryMeta(), nil
		}
		return nil, fmt.Errorf("failed to read meta file: %w", err)
	}

	var meta HistoryMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse meta file: %w", err)
	}

	if meta.Meta == nil {
		meta.Meta = make(map[string]*ConversationMeta)
	}
	if meta.Order == nil {
		meta.Order = []string{}
	}

	return &meta, nil
}

func (s *Store) saveMeta(meta *HistoryMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal meta: %w", err)
	}

	if err := os.WriteFile(s.metaPath(), data, 0o600); err != nil {
		return fmt.Errorf("failed to write meta file: %w", err)
	}

	return nil
}

// addToMeta puts a new conversation at the top of the order
func (s *Store) addToMeta(conv *Conversation) error {
	meta, err := s.loadMeta()
	if err != nil {
		return err
	}

	meta.Meta[conv.ID] = &ConversationMeta{ID: conv.ID, Title: conv.Title, Kind: conv.Kind}
	meta.Order = slices.DeleteFunc(meta.Order, func(id string) bool { return id == conv.ID })
	meta.Order = append([]string{conv.ID}, meta.Order...)

	return s.saveMeta(meta)
}

func (s *Store) removeFromMeta(id string) error {
	meta, err := s.loadMeta()
	if err != nil {
		return err
	}

	meta.Order = slices.DeleteFunc(meta.Order, func(oid string) bool { return oid == id })
	delete(meta.Meta, id)

	return s.saveMeta(meta)
}

func (s *Store) updateTitleInMeta(id, title string) error {
	meta, err := s.loadMeta()
	if err != nil {
		return err
	}

	if m, exists := meta.Meta[id]; exists {
		m.Title = title
		return s.saveMeta(meta)
	}

	return nil
}

// IsFavorite returns whether a conversation is marked as favorite
func (s *Store) IsFavorite(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, err := s.loadMeta()
	if err != nil {
		return false, err
	}

	return meta.isFavorite(id), nil
}

// ToggleFavorite flips the favorite status of a conversation and returns the new status
func (s *Store) ToggleFavorite(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.loadConversation(id)
	if err != nil {
		return false, err
	}

	meta, err := s.loadMeta()
	if err != nil {
		return false, err
	}

	cm := meta.track(conv)
	cm.IsFavorite = !cm.IsFavorite

	if err := s.saveMeta(meta); err != nil {
		return false, err
	}

	return cm.IsFavorite, nil
}

// SetFavorite sets the favorite status of a conversation
func (s *Store) SetFavorite(id string, isFavorite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.loadConversation(id)
	if err != nil {
		return err
	}

	meta, err := s.loadMeta()
	if err != nil {
		return err
	}

	meta.track(conv).IsFavorite = isFavorite

	return s.saveMeta(meta)
}

// MoveConversation moves a conversation to a new 0-based position in the order.
// Out of range positions are clamped.
func (s *Store) MoveConversation(id string, newIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.loadMeta()
	if err != nil {
		return err
	}

	currentIndex := meta.indexOf(id)
	if currentIndex == -1 {
		return fmt.Errorf("conversation not found in order: %s", id)
	}

	newIndex = max(0, min(newIndex, len(meta.Order)-1))
	if currentIndex == newIndex {
		return nil
	}

	meta.Order = slices.Delete(meta.Order, currentIndex, currentIndex+1)
	meta.Order = slices.Insert(meta.Order, newIndex, id)

	return s.saveMeta(meta)
}

// SwapConversations swaps the positions of two conversations
func (s *Store) SwapConversations(id1, id2 string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.loadMeta()
	if err != nil {
		return err
	}

	idx1, idx2 := meta.indexOf(id1), meta.indexOf(id2)
	if idx1 == -1 {
		return fmt.Errorf("conversation not found: %s", id1)
	}
	if idx2 == -1 {
		return fmt.Errorf("conversation not found: %s", id2)
	}

	meta.Order[idx1], meta.Order[idx2] = meta.Order[idx2], meta.Order[idx1]

	return s.saveMeta(meta)
}

// GetOrderIndex returns the 0-based position of a conversation, or -1
func (s *Store) GetOrderIndex(id string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, err := s.loadMeta()
	if err != nil {
		return -1, err
	}

	return meta.indexOf(id), nil
}

// cleanOrphanedMeta drops entries without a conversation file and reports whether anything changed
func (s *Store) cleanOrphanedMeta(meta *HistoryMeta, existingIDs map[string]bool) bool {
	before := len(meta.Order)
	meta.Order = slices.DeleteFunc(meta.Order, func(id string) bool { return !existingIDs[id] })
	changed := len(meta.Order) != before

	for id := range meta.Meta {
		if !existingIDs[id] {
			delete(meta.Meta, id)
			changed = true
		}
	}

	return changed
}
