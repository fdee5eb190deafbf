package chat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/diogo/techtouch/internal/api"
	apierrors "github.com/diogo/techtouch/internal/errors"
	"github.com/diogo/techtouch/internal/fetch"
	"github.com/diogo/techtouch/internal/history"
	"github.com/diogo/techtouch/internal/memory"
	"github.com/diogo/techtouch/internal/models"
)

var pngData = []byte("\x89PNG\r\n\x1a\n0000IHDR")

type fakeFetcher struct {
	page  *fetch.Page
	err   error
	calls []string
}

func (f *fakeFetcher) Page(ctx context.Context, url string) (*fetch.Page, error) {
	f.calls = append(f.calls, url)
	return f.page, f.err
}

type recorder struct {
	events []Event
}

func (r *recorder) sink(e Event) {
	r.events = append(r.events, e)
}

func (r *recorder) types() []EventType {
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	svc    *Service
	client *api.MockGeminiClient
	store  *history.Store
	conv   *history.Conversation
	dir    string
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := history.NewStore(dir)
	if err != nil {
		t.Fatalf("history.NewStore failed: %v", err)
	}
	client := &api.MockGeminiClient{}
	opts = append([]Option{WithDownloadDir(filepath.Join(dir, "downloads"))}, opts...)
	svc := NewService(client, store, opts...)
	conv, err := svc.NewConversation(history.KindChat)
	if err != nil {
		t.Fatalf("NewConversation failed: %v", err)
	}
	return &fixture{svc: svc, client: client, store: store, conv: conv, dir: dir}
}

func (f *fixture) messages(t *testing.T) []models.ChatMessage {
	t.Helper()
	conv, err := f.store.GetConversation(f.conv.ID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	return conv.Messages
}

func senders(msgs []models.ChatMessage) []models.Sender {
	out := make([]models.Sender, len(msgs))
	for i, m := range msgs {
		out[i] = m.Sender
	}
	return out
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSend_EmptyInput(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.Send(context.Background(), f.conv.ID, Input{Text: "  "}, nil); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
	if len(f.messages(t)) != 0 {
		t.Error("nothing should be stored")
	}
}

func TestSend_StreamsReply(t *testing.T) {
	f := newFixture(t, WithSystemInstruction("be brief"))
	f.client.StreamChunks = []string{"Hello ", "world"}

	var rec recorder
	if err := f.svc.Send(context.Background(), f.conv.ID, Input{Text: "hello"}, rec.sink); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	want := []EventType{EventMessage, EventMessage, EventChunk, EventChunk, EventDone}
	if diff := cmp.Diff(want, rec.types()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if got := rec.events[2].Message.Text; got != "Hello " {
		t.Errorf("first chunk text = %q", got)
	}
	if got := rec.events[3].Delta; got != "world" {
		t.Errorf("second delta = %q", got)
	}

	msgs := f.messages(t)
	if diff := cmp.Diff([]models.Sender{models.SenderUser, models.SenderAI}, senders(msgs)); diff != "" {
		t.Errorf("senders mismatch (-want +got):\n%s", diff)
	}
	if msgs[1].Text != "Hello world" {
		t.Errorf("AI text = %q", msgs[1].Text)
	}
	if msgs[1].ID != rec.events[4].Message.ID {
		t.Error("done event should carry the stored AI message")
	}

	if f.client.LastPrompt != "hello" {
		t.Errorf("prompt = %q, want hello", f.client.LastPrompt)
	}
	if f.client.LastOptions.UseSearch {
		t.Error("plain messages should not use search")
	}
	if f.client.LastOptions.SystemInstruction != "be brief" {
		t.Errorf("system instruction = %q", f.client.LastOptions.SystemInstruction)
	}
}

func TestSend_KeepsSessionHistory(t *testing.T) {
	f := newFixture(t)
	f.client.StreamChunks = []string{"first answer"}
	ctx := context.Background()

	if err := f.svc.Send(ctx, f.conv.ID, Input{Text: "one"}, nil); err != nil {
		t.Fatal(err)
	}
	f.client.StreamChunks = []string{"second answer"}
	if err := f.svc.Send(ctx, f.conv.ID, Input{Text: "two"}, nil); err != nil {
		t.Fatal(err)
	}

	want := []api.Turn{{Role: "user", Text: "one"}, {Role: "model", Text: "first answer"}}
	if diff := cmp.Diff(want, f.client.LastOptions.History); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestSend_ResumesFromStoredMessages(t *testing.T) {
	f := newFixture(t)
	for _, m := range []models.ChatMessage{
		models.NewMessage(models.SenderUser, "old question"),
		models.NewMessage(models.SenderAI, "old answer"),
	} {
		if _, err := f.store.AppendMessage(f.conv.ID, m); err != nil {
			t.Fatal(err)
		}
	}
	f.client.StreamChunks = []string{"ok"}

	if err := f.svc.Send(context.Background(), f.conv.ID, Input{Text: "new"}, nil); err != nil {
		t.Fatal(err)
	}
	if got := len(f.client.LastOptions.History); got != 2 {
		t.Errorf("history turns = %d, want 2", got)
	}
}

func TestSend_LinkIntent(t *testing.T) {
	fetcher := &fakeFetcher{page: &fetch.Page{URL: "https://example.com/a", Title: "Pixel 9", Text: "battery 5000mAh"}}
	f := newFixture(t, WithFetcher(fetcher))
	f.client.StreamChunks = []string{"summary"}

	if err := f.svc.Send(context.Background(), f.conv.ID, Input{Text: "https://example.com/a"}, nil); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	prompt := f.client.LastPrompt
	for _, want := range []string{"Use Google Search", "in Arabic", "battery 5000mAh", "Pixel 9"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q: %s", want, prompt)
		}
	}
	if !f.client.LastOptions.UseSearch {
		t.Error("link prompts should use search")
	}
	if diff := cmp.Diff([]string{"https://example.com/a"}, fetcher.calls); diff != "" {
		t.Errorf("fetch calls mismatch (-want +got):\n%s", diff)
	}
}

func TestSend_LinkFetchFailureFallsBack(t *testing.T) {
	fetcher := &fakeFetcher{err: apierrors.NewDownloadErrorWithStatus("https://example.com", 403)}
	f := newFixture(t, WithFetcher(fetcher), WithLanguage(apierrors.LangEnglish))
	f.client.StreamChunks = []string{"summary"}

	if err := f.svc.Send(context.Background(), f.conv.ID, Input{Text: "read https://example.com"}, nil); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if strings.Contains(f.client.LastPrompt, "Page content") {
		t.Errorf("prompt should not carry an excerpt: %s", f.client.LastPrompt)
	}
	if !strings.Contains(f.client.LastPrompt, "in English") {
		t.Errorf("prompt should request English: %s", f.client.LastPrompt)
	}
}

func TestSend_ComparisonIntent(t *testing.T) {
	f := newFixture(t)
	f.client.StreamChunks = []string{"| a | b |"}

	if err := f.svc.Send(context.Background(), f.conv.ID, Input{Text: "iPhone 16 vs Pixel 9"}, nil); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !strings.Contains(f.client.LastPrompt, "comparison table") || !f.client.LastOptions.UseSearch {
		t.Errorf("comparison not detected: %q", f.client.LastPrompt)
	}
}

func TestSend_RemembersStatements(t *testing.T) {
	dir := t.TempDir()
	mem, err := memory.NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, WithMemory(mem))
	f.client.StreamChunks = []string{"أهلاً"}

	if err := f.svc.Send(context.Background(), f.conv.ID, Input{Text: "اسمي سارة"}, nil); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if diff := cmp.Diff([]string{"اسمي سارة"}, mem.Lines()); diff != "" {
		t.Errorf("memory mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(f.client.LastOptions.SystemInstruction, "اسمي سارة") {
		t.Errorf("memory not in system instruction: %q", f.client.LastOptions.SystemInstruction)
	}
}

func TestSend_StreamError(t *testing.T) {
	f := newFixture(t)
	f.client.StreamErr = apierrors.NewUsageLimitError("quota")

	var rec recorder
	err := f.svc.Send(context.Background(), f.conv.ID, Input{Text: "hi"}, rec.sink)
	if !apierrors.IsRateLimitError(err) {
		t.Fatalf("err = %v, want usage limit", err)
	}

	last := rec.events[len(rec.events)-1]
	if last.Type != EventError {
		t.Fatalf("last event = %s, want error", last.Type)
	}
	want := apierrors.UserMessage(err, apierrors.LangArabic)
	if last.Message.Text != want {
		t.Errorf("error text = %q, want %q", last.Message.Text, want)
	}

	msgs := f.messages(t)
	if msgs[len(msgs)-1].Text != want {
		t.Errorf("stored AI text = %q, want %q", msgs[len(msgs)-1].Text, want)
	}
}

func TestSend_EmptyReply(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Send(context.Background(), f.conv.ID, Input{Text: "hi"}, nil)
	if !errors.Is(err, apierrors.ErrNoContent) {
		t.Fatalf("err = %v, want ErrNoContent", err)
	}
}

func TestSend_ImageAttachment(t *testing.T) {
	f := newFixture(t)
	f.client.StreamChunks = []string{"a cat"}
	path := writeFile(t, "cat.png", pngData)

	if err := f.svc.Send(context.Background(), f.conv.ID, Input{Text: "what is this?", Attachment: path}, nil); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if got := len(f.client.LastOptions.Images); got != 1 {
		t.Fatalf("images = %d, want 1", got)
	}
	user := f.messages(t)[0]
	if !strings.HasPrefix(user.ImagePreview, "data:image/png;base64,") {
		t.Errorf("preview = %q", user.ImagePreview)
	}
	if user.FileInfo != nil {
		t.Error("images should not carry FileInfo")
	}
}

func TestSend_UnreadableImage(t *testing.T) {
	f := newFixture(t)

	var rec recorder
	err := f.svc.Send(context.Background(), f.conv.ID, Input{Attachment: filepath.Join(t.TempDir(), "missing.png")}, rec.sink)
	if err == nil {
		t.Fatal("expected error")
	}
	if f.client.StreamCalls != 0 {
		t.Error("no request should be sent")
	}

	msgs := f.messages(t)
	if diff := cmp.Diff([]models.Sender{models.SenderUser, models.SenderSystem}, senders(msgs)); diff != "" {
		t.Errorf("senders mismatch (-want +got):\n%s", diff)
	}
	if msgs[1].Text != "خطأ في معالجة الصورة." {
		t.Errorf("system text = %q", msgs[1].Text)
	}
	if rec.events[len(rec.events)-1].Type != EventError {
		t.Error("last event should be an error")
	}
}

func TestTurnsFrom(t *testing.T) {
	msgs := []models.ChatMessage{
		{Sender: models.SenderUser, Text: "q1"},
		{Sender: models.SenderSystem, Text: "status"},
		{Sender: models.SenderAI, Text: "a1"},
		{Sender: models.SenderUser, Text: "q2"},
		{Sender: models.SenderAI, Text: ""},
		{Sender: models.SenderAI, Text: "orphan"},
	}
	want := []api.Turn{{Role: "user", Text: "q1"}, {Role: "model", Text: "a1"}, {Role: "user", Text: "q2"}, {Role: "model", Text: "orphan"}}
	if diff := cmp.Diff(want, turnsFrom(msgs)); diff != "" {
		t.Errorf("turns mismatch (-want +got):\n%s", diff)
	}
}
