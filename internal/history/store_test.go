package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/diogo/techtouch/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	clock := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return store
}

func mustCreate(t *testing.T, s *Store, kind Kind) *Conversation {
	t.Helper()
	conv, err := s.CreateConversation(kind, "flash")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	return conv
}

func TestCreateConversation(t *testing.T) {
	s := newTestStore(t)

	conv := mustCreate(t, s, KindChat)
	if !strings.HasPrefix(conv.ID, idPrefix) {
		t.Errorf("ID = %s, want %s prefix", conv.ID, idPrefix)
	}
	if conv.Kind != KindChat || conv.Model != "flash" {
		t.Errorf("unexpected conversation: %+v", conv)
	}

	got, err := s.GetConversation(conv.ID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if diff := cmp.Diff(conv, got, cmp.AllowUnexported(Conversation{})); diff != "" {
		t.Errorf("stored conversation mismatch (-want +got):\n%s", diff)
	}

	info, err := os.Stat(filepath.Join(s.baseDir, conv.ID+".json"))
	if err != nil {
		t.Fatalf("conversation file missing: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestCreateConversation_InvalidKind(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateConversation("news", "flash"); err == nil {
		t.Error("expected error for invalid kind")
	}
}

func TestGetConversation_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetConversation("conv-missing"); err == nil {
		t.Error("expected error for missing conversation")
	}
}

func TestAppendMessage_OrderAndTitle(t *testing.T) {
	s := newTestStore(t)
	conv := mustCreate(t, s, KindChat)

	long := strings.Repeat("ب", 60)
	inputs := []models.ChatMessage{
		{Sender: models.SenderSystem, Text: "جاري المعالجة"},
		{Sender: models.SenderUser, Text: "  " + long + "  "},
		{Sender: models.SenderAI, Text: "رد"},
		{Sender: models.SenderUser, Text: "second question"},
	}
	var ids []string
	for _, in := range inputs {
		msg, err := s.AppendMessage(conv.ID, in)
		if err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
		if msg.ID == "" || msg.CreatedAt.IsZero() {
			t.Errorf("message not stamped: %+v", msg)
		}
		ids = append(ids, msg.ID)
	}

	got, err := s.GetConversation(conv.ID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}

	var gotIDs []string
	for _, m := range got.Messages {
		gotIDs = append(gotIDs, m.ID)
	}
	if diff := cmp.Diff(ids, gotIDs); diff != "" {
		t.Errorf("message order mismatch (-want +got):\n%s", diff)
	}

	wantTitle := strings.Repeat("ب", MaxTitleRunes) + "..."
	if got.Title != wantTitle {
		t.Errorf("Title = %q, want %q", got.Title, wantTitle)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Error("UpdatedAt should advance")
	}
}

func TestAppendMessage_AttachmentTitle(t *testing.T) {
	s := newTestStore(t)
	conv := mustCreate(t, s, KindChat)

	_, err := s.AppendMessage(conv.ID, models.ChatMessage{
		Sender:   models.SenderUser,
		FileInfo: &models.FileInfo{Name: "report.docx", Type: "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	})
	if err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	got, _ := s.GetConversation(conv.ID)
	if got.Title != "report.docx" {
		t.Errorf("Title = %q, want report.docx", got.Title)
	}
}

func TestAppendMessage_Errors(t *testing.T) {
	s := newTestStore(t)
	conv := mustCreate(t, s, KindChat)

	if _, err := s.AppendMessage(conv.ID, models.ChatMessage{Sender: "bot"}); err == nil {
		t.Error("expected error for invalid sender")
	}
	if _, err := s.AppendMessage("conv-missing", models.NewMessage(models.SenderUser, "hi")); err == nil {
		t.Error("expected error for missing conversation")
	}

	msg := models.NewMessage(models.SenderUser, "hi")
	if _, err := s.AppendMessage(conv.ID, msg); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if _, err := s.AppendMessage(conv.ID, msg); err == nil {
		t.Error("expected error for duplicate message ID")
	}
}

func TestUpdateMessage(t *testing.T) {
	s := newTestStore(t)
	conv := mustCreate(t, s, KindChat)

	ai, err := s.AppendMessage(conv.ID, models.ChatMessage{Sender: models.SenderAI})
	if err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	if err := s.UpdateMessage(conv.ID, ai.ID, "partial"); err != nil {
		t.Fatalf("UpdateMessage failed: %v", err)
	}
	err = s.ModifyMessage(conv.ID, ai.ID, func(m *models.ChatMessage) {
		m.Text += " reply"
		m.Sources = []string{"https://example.com"}
		m.ID = "ignored"
	})
	if err != nil {
		t.Fatalf("ModifyMessage failed: %v", err)
	}

	got, _ := s.GetConversation(conv.ID)
	msg, ok := got.Message(ai.ID)
	if !ok {
		t.Fatal("message lost after update")
	}
	if msg.Text != "partial reply" || len(msg.Sources) != 1 {
		t.Errorf("unexpected message: %+v", msg)
	}

	if err := s.UpdateMessage(conv.ID, "nope", "x"); err == nil {
		t.Error("expected error for unknown message")
	}
}

func TestListConversations_Order(t *testing.T) {
	s := newTestStore(t)

	a := mustCreate(t, s, KindChat)
	b := mustCreate(t, s, KindInfo)
	c := mustCreate(t, s, KindChat)

	list, err := s.ListConversations()
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if diff := cmp.Diff([]string{c.ID, b.ID, a.ID}, ids(list)); diff != "" {
		t.Errorf("newest first order mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.ToggleFavorite(a.ID); err != nil {
		t.Fatalf("ToggleFavorite failed: %v", err)
	}
	list, _ = s.ListConversations()
	if diff := cmp.Diff([]string{a.ID, c.ID, b.ID}, ids(list)); diff != "" {
		t.Errorf("favorites first order mismatch (-want +got):\n%s", diff)
	}
}

func TestListConversations_SkipsCorrupted(t *testing.T) {
	s := newTestStore(t)
	conv := mustCreate(t, s, KindChat)

	if err := os.WriteFile(filepath.Join(s.baseDir, "conv-broken.json"), []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListConversations()
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if diff := cmp.Diff([]string{conv.ID}, ids(list)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestLatest(t *testing.T) {
	s := newTestStore(t)

	chat1 := mustCreate(t, s, KindChat)
	mustCreate(t, s, KindInfo)
	chat2 := mustCreate(t, s, KindChat)

	if _, err := s.AppendMessage(chat1.ID, models.NewMessage(models.SenderUser, "newer")); err != nil {
		t.Fatal(err)
	}

	latest, err := s.Latest(KindChat)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.ID != chat1.ID {
		t.Errorf("Latest = %s, want %s (not %s)", latest.ID, chat1.ID, chat2.ID)
	}

	empty := newTestStore(t)
	if latest, _ := empty.Latest(KindInfo); latest != nil {
		t.Errorf("Latest on empty store = %+v, want nil", latest)
	}
}

func TestDeleteConversation(t *testing.T) {
	s := newTestStore(t)
	conv := mustCreate(t, s, KindChat)

	if err := s.DeleteConversation(conv.ID); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}
	if _, err := s.GetConversation(conv.ID); err == nil {
		t.Error("conversation should be gone")
	}
	if idx, _ := s.GetOrderIndex(conv.ID); idx != -1 {
		t.Errorf("order index = %d, want -1", idx)
	}
	if err := s.DeleteConversation(conv.ID); err == nil {
		t.Error("deleting twice should fail")
	}
}

func TestUpdateTitle(t *testing.T) {
	s := newTestStore(t)
	conv := mustCreate(t, s, KindChat)

	if err := s.UpdateTitle(conv.ID, "  هواتف 2025 "); err != nil {
		t.Fatalf("UpdateTitle failed: %v", err)
	}
	got, _ := s.GetConversation(conv.ID)
	if got.Title != "هواتف 2025" {
		t.Errorf("Title = %q", got.Title)
	}

	meta, _ := s.loadMeta()
	if meta.Meta[conv.ID].Title != "هواتف 2025" {
		t.Errorf("meta title = %q", meta.Meta[conv.ID].Title)
	}

	if err := s.UpdateTitle(conv.ID, " "); err == nil {
		t.Error("expected error for empty title")
	}
}

func TestClearAll(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, KindChat)
	mustCreate(t, s, KindInfo)

	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	list, err := s.ListConversations()
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("got %d conversations after ClearAll", len(list))
	}
}

func ids(list []*Conversation) []string {
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.ID
	}
	return out
}
