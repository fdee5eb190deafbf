package history

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestToggleFavorite(t *testing.T) {
	s := newTestStore(t)
	conv := mustCreate(t, s, KindChat)

	for _, want := range []bool{true, false} {
		got, err := s.ToggleFavorite(conv.ID)
		if err != nil {
			t.Fatalf("ToggleFavorite failed: %v", err)
		}
		if got != want {
			t.Errorf("ToggleFavorite = %v, want %v", got, want)
		}
		fav, _ := s.IsFavorite(conv.ID)
		if fav != want {
			t.Errorf("IsFavorite = %v, want %v", fav, want)
		}
	}

	if _, err := s.ToggleFavorite("conv-missing"); err == nil {
		t.Error("expected error for missing conversation")
	}
}

func TestSetFavorite_TracksUnknownConversation(t *testing.T) {
	s := newTestStore(t)
	conv := mustCreate(t, s, KindInfo)

	// simulate a conversation written before meta.json existed
	if err := os.Remove(s.metaPath()); err != nil {
		t.Fatal(err)
	}

	if err := s.SetFavorite(conv.ID, true); err != nil {
		t.Fatalf("SetFavorite failed: %v", err)
	}
	meta, _ := s.loadMeta()
	cm := meta.Meta[conv.ID]
	if cm == nil || !cm.IsFavorite || cm.Kind != KindInfo {
		t.Errorf("unexpected meta entry: %+v", cm)
	}
	if meta.indexOf(conv.ID) != 0 {
		t.Errorf("conversation should be added to order")
	}
}

func TestMoveConversation(t *testing.T) {
	s := newTestStore(t)
	a := mustCreate(t, s, KindChat)
	b := mustCreate(t, s, KindChat)
	c := mustCreate(t, s, KindChat)

	tests := []struct {
		name  string
		id    string
		index int
		want  []string
	}{
		{"to end", c.ID, 2, []string{b.ID, a.ID, c.ID}},
		{"clamped low", a.ID, -5, []string{a.ID, b.ID, c.ID}},
		{"clamped high", a.ID, 99, []string{b.ID, c.ID, a.ID}},
		{"no-op", c.ID, 1, []string{b.ID, c.ID, a.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.MoveConversation(tt.id, tt.index); err != nil {
				t.Fatalf("MoveConversation failed: %v", err)
			}
			meta, _ := s.loadMeta()
			if diff := cmp.Diff(tt.want, meta.Order); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if err := s.MoveConversation("conv-missing", 0); err == nil {
		t.Error("expected error for unknown conversation")
	}
}

func TestSwapConversations(t *testing.T) {
	s := newTestStore(t)
	a := mustCreate(t, s, KindChat)
	b := mustCreate(t, s, KindChat)

	if err := s.SwapConversations(a.ID, b.ID); err != nil {
		t.Fatalf("SwapConversations failed: %v", err)
	}
	if idx, _ := s.GetOrderIndex(a.ID); idx != 0 {
		t.Errorf("index of a = %d, want 0", idx)
	}
	if err := s.SwapConversations(a.ID, "conv-missing"); err == nil {
		t.Error("expected error for unknown conversation")
	}
}

func TestCleanOrphanedMeta(t *testing.T) {
	s := newTestStore(t)
	meta := newHistoryMeta()
	meta.Order = []string{"conv-a", "conv-b"}
	meta.Meta["conv-a"] = &ConversationMeta{ID: "conv-a"}
	meta.Meta["conv-b"] = &ConversationMeta{ID: "conv-b"}

	if !s.cleanOrphanedMeta(meta, map[string]bool{"conv-a": true}) {
		t.Error("expected a change")
	}
	if diff := cmp.Diff([]string{"conv-a"}, meta.Order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if _, ok := meta.Meta["conv-b"]; ok {
		t.Error("orphan meta entry kept")
	}
	if s.cleanOrphanedMeta(meta, map[string]bool{"conv-a": true}) {
		t.Error("second clean should be a no-op")
	}
}
