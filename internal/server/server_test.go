package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/diogo/techtouch/internal/api"
	"github.com/diogo/techtouch/internal/cache"
	"github.com/diogo/techtouch/internal/chat"
	apierrors "github.com/diogo/techtouch/internal/errors"
	"github.com/diogo/techtouch/internal/feeds"
	"github.com/diogo/techtouch/internal/history"
	"github.com/diogo/techtouch/internal/models"
)

var pngData = []byte("\x89PNG\r\n\x1a\n0000IHDR")

type fixture struct {
	srv    *Server
	client *api.MockGeminiClient
	store  *history.Store
	cache  *cache.Cache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	store, err := history.NewStore(filepath.Join(dir, "history"))
	if err != nil {
		t.Fatalf("history.NewStore failed: %v", err)
	}
	c, err := cache.Open(filepath.Join(dir, "feeds.db"))
	if err != nil {
		t.Fatalf("cache.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	client := &api.MockGeminiClient{}
	chatSvc := chat.NewService(client, store, chat.WithDownloadDir(filepath.Join(dir, "downloads")))
	feedSvc := feeds.NewService(client, c)

	srv := New(Config{ModelName: "Gemini Flash"}, chatSvc, feedSvc, nil)
	return &fixture{srv: srv, client: client, store: store, cache: c}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type sseEvent struct {
	name string
	data string
}

func parseEvents(t *testing.T, body string) []sseEvent {
	t.Helper()
	var out []sseEvent
	for _, block := range strings.Split(body, "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			}
		}
		out = append(out, ev)
	}
	return out
}

func names(events []sseEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.name
	}
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["model"] != "Gemini Flash" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestChat_StreamsEvents(t *testing.T) {
	f := newFixture(t)
	f.client.StreamChunks = []string{"Hello ", "world"}

	rec := f.do(jsonRequest(http.MethodPost, "/api/chat", `{"text":"hi"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	events := parseEvents(t, rec.Body.String())
	want := []string{"message", "message", "chunk", "chunk", "done"}
	if diff := cmp.Diff(want, names(events)); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}

	var done chat.Event
	if err := json.Unmarshal([]byte(events[4].data), &done); err != nil {
		t.Fatalf("done payload: %v", err)
	}
	if done.Message.Text != "Hello world" {
		t.Errorf("done text = %q", done.Message.Text)
	}

	conv, err := f.store.GetConversation(done.ConversationID)
	if err != nil {
		t.Fatalf("conversation not stored: %v", err)
	}
	if conv.Kind != history.KindChat || len(conv.Messages) != 2 {
		t.Errorf("stored conversation = %s with %d messages", conv.Kind, len(conv.Messages))
	}
}

func TestChat_ContinuesConversation(t *testing.T) {
	f := newFixture(t)
	f.client.StreamChunks = []string{"again"}
	conv, err := f.store.CreateConversation(history.KindChat, "")
	if err != nil {
		t.Fatal(err)
	}

	rec := f.do(jsonRequest(http.MethodPost, "/api/chat", `{"conversation_id":"`+conv.ID+`","text":"hi"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	got, err := f.store.GetConversation(conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Messages) != 2 {
		t.Errorf("messages = %d, want 2", len(got.Messages))
	}
}

func TestChat_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty text", `{"text":"   "}`, http.StatusBadRequest},
		{"unknown conversation", `{"conversation_id":"nope","text":"hi"}`, http.StatusNotFound},
		{"malformed json", `{"text":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(jsonRequest(http.MethodPost, "/api/chat", tt.body))
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
			if f.client.StreamCalls != 0 {
				t.Error("model should not be called")
			}
		})
	}
}

func TestChat_ModelErrorEndsWithErrorEvent(t *testing.T) {
	f := newFixture(t)
	f.client.StreamErr = apierrors.NewUsageLimitError("quota")

	rec := f.do(jsonRequest(http.MethodPost, "/api/chat", `{"text":"hi"}`))

	events := parseEvents(t, rec.Body.String())
	if len(events) == 0 {
		t.Fatal("no events")
	}
	last := events[len(events)-1]
	if last.name != "error" {
		t.Fatalf("last event = %s, want error", last.name)
	}
	if !strings.Contains(last.data, apierrors.UserMessage(apierrors.NewUsageLimitError("quota"), apierrors.LangArabic)) {
		t.Errorf("error payload = %s", last.data)
	}
}

func TestChat_MultipartImage(t *testing.T) {
	f := newFixture(t)
	f.client.StreamChunks = []string{"a cat"}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("text", "what is this?"); err != nil {
		t.Fatal(err)
	}
	fw, err := mw.CreateFormFile("file", "cat.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(pngData); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/chat", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := f.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := len(f.client.LastOptions.Images); got != 1 {
		t.Fatalf("images sent = %d, want 1", got)
	}

	events := parseEvents(t, rec.Body.String())
	var first chat.Event
	if err := json.Unmarshal([]byte(events[0].data), &first); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(first.Message.ImagePreview, "data:image/png;base64,") {
		t.Errorf("preview = %q", first.Message.ImagePreview)
	}
}

func multipartRequest(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/chat", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestChat_TranslatedDocumentIsDownloadable(t *testing.T) {
	f := newFixture(t)
	f.client.GenerateContentVal = &models.ModelOutput{Text: "مرحبا بالعالم"}

	rec := f.do(multipartRequest(t, "notes.txt", []byte("Hello world")))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	events := parseEvents(t, rec.Body.String())
	last := events[len(events)-1]
	if last.name != "done" {
		t.Fatalf("last event = %s, want done (events %v)", last.name, names(events))
	}
	var done chat.Event
	if err := json.Unmarshal([]byte(last.data), &done); err != nil {
		t.Fatal(err)
	}
	link := done.Message.DownloadLink
	if link == nil {
		t.Fatal("done message should carry a download link")
	}
	if want := "/api/downloads/translated-notes.docx"; link.URL != want {
		t.Fatalf("link URL = %q, want %q", link.URL, want)
	}

	dl := f.do(httptest.NewRequest(http.MethodGet, link.URL, nil))
	if dl.Code != http.StatusOK {
		t.Fatalf("download: expected 200, got %d", dl.Code)
	}
	if dl.Body.Len() == 0 {
		t.Error("download body is empty")
	}
	if cd := dl.Header().Get("Content-Disposition"); !strings.Contains(cd, "translated-notes.docx") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/conversations/"+done.ConversationID, nil))
	var conv history.Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &conv); err != nil {
		t.Fatal(err)
	}
	lastMsg := conv.Messages[len(conv.Messages)-1]
	if lastMsg.DownloadLink == nil || lastMsg.DownloadLink.URL != link.URL {
		t.Errorf("stored conversation link = %+v", lastMsg.DownloadLink)
	}
}

func TestDownload_StaysInDownloadDir(t *testing.T) {
	f := newFixture(t)
	dir := f.srv.chat.DownloadDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "edited.png"), pngData, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(filepath.Dir(dir), "secret.txt"), []byte("secret"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want int
	}{
		{"file", "/api/downloads/edited.png", http.StatusOK},
		{"missing", "/api/downloads/nope.png", http.StatusNotFound},
		{"parent", "/api/downloads/..", http.StatusNotFound},
		{"escaped traversal", "/api/downloads/..%2Fsecret.txt", http.StatusNotFound},
		{"backslash", "/api/downloads/..%5Csecret.txt", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
			if tt.want == http.StatusOK {
				body, _ := io.ReadAll(rec.Body)
				if !bytes.Equal(body, pngData) {
					t.Errorf("body = %q", body)
				}
			} else if strings.Contains(rec.Body.String(), "secret") {
				t.Error("file outside the download directory was served")
			}
		})
	}
}

func TestCORS_Origins(t *testing.T) {
	tests := []struct {
		name       string
		allow      []string
		origin     string
		wantStatus int
		wantACAO   string
	}{
		{"no origin", nil, "", http.StatusOK, ""},
		{"foreign site", nil, "https://evil.example", http.StatusForbidden, ""},
		{"same origin", nil, "http://example.com", http.StatusOK, ""},
		{"loopback on server port", nil, "http://localhost:8787", http.StatusOK, "http://localhost:8787"},
		{"loopback ip on server port", nil, "http://127.0.0.1:8787", http.StatusOK, "http://127.0.0.1:8787"},
		{"loopback on another port", nil, "http://localhost:3000", http.StatusForbidden, ""},
		{"configured origin", []string{"http://localhost:3000"}, "http://localhost:3000", http.StatusOK, "http://localhost:3000"},
		{"configured list excludes others", []string{"http://localhost:3000"}, "https://evil.example", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.srv.cfg.AllowOrigins = tt.allow

			req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := f.do(req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantACAO {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantACAO)
			}
		})
	}
}

func TestCORS_ForeignChatNeverReachesModel(t *testing.T) {
	f := newFixture(t)
	f.client.StreamChunks = []string{"hi"}

	req := jsonRequest(http.MethodPost, "/api/chat", `{"text":"hi"}`)
	req.Header.Set("Origin", "https://evil.example")
	rec := f.do(req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	if f.client.StreamCalls != 0 {
		t.Errorf("StreamCalls = %d, want 0", f.client.StreamCalls)
	}
}

func TestInfo(t *testing.T) {
	f := newFixture(t)
	f.client.GenerateContentVal = &models.ModelOutput{Text: "قناة التليجرام هي ..."}

	rec := f.do(jsonRequest(http.MethodPost, "/api/info", `{"question":"telegram"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp InfoResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Message.Text != "قناة التليجرام هي ..." || resp.Error != "" {
		t.Errorf("unexpected response: %+v", resp)
	}

	conv, err := f.store.GetConversation(resp.ConversationID)
	if err != nil {
		t.Fatal(err)
	}
	if conv.Kind != history.KindInfo {
		t.Errorf("kind = %s, want info", conv.Kind)
	}
}

func TestInfo_Errors(t *testing.T) {
	t.Run("empty question", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(jsonRequest(http.MethodPost, "/api/info", `{"question":""}`))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("model failure", func(t *testing.T) {
		f := newFixture(t)
		f.client.GenerateContentErr = apierrors.NewOverloadedError("busy")
		rec := f.do(jsonRequest(http.MethodPost, "/api/info", `{"question":"youtube"}`))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
		var resp InfoResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Error == "" || resp.Message.Text == "" {
			t.Errorf("error response should carry the stored message: %+v", resp)
		}
	})
}

func TestPersonal(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/personal", nil))
	var all []models.PersonalInfoItem
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatal(err)
	}
	if len(all) == 0 {
		t.Fatal("directory should not be empty")
	}

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/personal?q=zzzz-no-match", nil))
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("no-match body = %s, want []", rec.Body.String())
	}
}

func TestNewsAndPhones(t *testing.T) {
	news := []models.NewsItem{
		{Title: "Gemini", Summary: "s1", Link: "https://blog.google"},
		{Title: "Claude", Summary: "s2", Link: "https://anthropic.com"},
	}
	f := newFixture(t)
	f.client.JSONVal = news

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/news", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []models.NewsItem
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(news, got); diff != "" {
		t.Errorf("news mismatch (-want +got):\n%s", diff)
	}

	// cached, then refreshed
	f.do(httptest.NewRequest(http.MethodGet, "/api/news", nil))
	f.do(httptest.NewRequest(http.MethodGet, "/api/news?refresh=1", nil))
	if f.client.JSONCalls != 2 {
		t.Errorf("JSONCalls = %d, want 2", f.client.JSONCalls)
	}

	phones := []models.PhoneNewsItem{{ModelName: "Pixel 10", Summary: "s", Specs: []string{"Tensor G5"}}}
	f.client.JSONVal = phones
	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/phones", nil))
	var gotPhones []models.PhoneNewsItem
	if err := json.Unmarshal(rec.Body.Bytes(), &gotPhones); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(phones, gotPhones); diff != "" {
		t.Errorf("phones mismatch (-want +got):\n%s", diff)
	}
}

func TestNews_ErrorStatus(t *testing.T) {
	f := newFixture(t)
	f.client.JSONErr = apierrors.NewUsageLimitError("quota")

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/news", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
}

func TestNewsStream(t *testing.T) {
	f := newFixture(t)
	f.client.StreamChunks = api.Lines(
		models.NewsItem{Title: "A", Summary: "a"},
		models.NewsItem{Title: "B", Summary: "b"},
	)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/news/stream", nil))

	events := parseEvents(t, rec.Body.String())
	if diff := cmp.Diff([]string{"item", "item", "done"}, names(events)); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
	var item models.NewsItem
	if err := json.Unmarshal([]byte(events[1].data), &item); err != nil {
		t.Fatal(err)
	}
	if item.Title != "B" {
		t.Errorf("second item = %+v", item)
	}
	if events[2].data != `{"count":2}` {
		t.Errorf("done payload = %s", events[2].data)
	}
}

func TestNewsStream_Error(t *testing.T) {
	f := newFixture(t)
	f.client.StreamOpenErr = apierrors.NewOverloadedError("busy")

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/news/stream", nil))

	events := parseEvents(t, rec.Body.String())
	if diff := cmp.Diff([]string{"error"}, names(events)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestClearCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, k := range feeds.Kinds() {
		if err := f.cache.Put(ctx, string(k), []string{"x"}); err != nil {
			t.Fatal(err)
		}
	}

	rec := f.do(httptest.NewRequest(http.MethodDelete, "/api/cache/news", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	entries, err := f.cache.Entries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Key != string(feeds.KindPhones) {
		t.Errorf("entries after clearing news = %+v", entries)
	}

	rec = f.do(httptest.NewRequest(http.MethodDelete, "/api/cache/weather", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown kind: expected 400, got %d", rec.Code)
	}

	rec = f.do(httptest.NewRequest(http.MethodDelete, "/api/cache", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	entries, _ = f.cache.Entries(ctx)
	if len(entries) != 0 {
		t.Errorf("entries after clearing all = %+v", entries)
	}
}

func TestConversations(t *testing.T) {
	f := newFixture(t)
	chatConv, _ := f.store.CreateConversation(history.KindChat, "")
	infoConv, _ := f.store.CreateConversation(history.KindInfo, "")

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/conversations?kind=info", nil))
	var list []ConversationSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != infoConv.ID {
		t.Errorf("info list = %+v", list)
	}

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/conversations/"+chatConv.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}

	rec = f.do(httptest.NewRequest(http.MethodDelete, "/api/conversations/"+chatConv.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	rec = f.do(httptest.NewRequest(http.MethodDelete, "/api/conversations/"+chatConv.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{chat.ErrEmptyInput, http.StatusBadRequest},
		{apierrors.NewUsageLimitError("quota"), http.StatusTooManyRequests},
		{apierrors.NewOverloadedError("busy"), http.StatusServiceUnavailable},
		{apierrors.NewTimeoutError("slow"), http.StatusGatewayTimeout},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{apierrors.NewAPIError(500, "generate", "boom"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.srv.cfg.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- f.srv.Start(ctx) }()
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
