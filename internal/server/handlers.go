package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/diogo/techtouch/internal/chat"
	apierrors "github.com/diogo/techtouch/internal/errors"
	"github.com/diogo/techtouch/internal/feeds"
	"github.com/diogo/techtouch/internal/history"
	"github.com/diogo/techtouch/internal/models"
)

const downloadsRoute = "/api/downloads/"

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// ChatRequest is the body of POST /api/chat. Multipart requests may
// carry the attachment in a "file" field.
type ChatRequest struct {
	ConversationID string `json:"conversation_id" form:"conversation_id"`
	Text           string `json:"text" form:"text"`
}

// InfoRequest is the body of POST /api/info
type InfoRequest struct {
	ConversationID string `json:"conversation_id"`
	Question       string `json:"question"`
}

// InfoResponse carries the stored answer; Error is set when the model failed
type InfoResponse struct {
	ConversationID string             `json:"conversation_id"`
	Message        models.ChatMessage `json:"message"`
	Error          string             `json:"error,omitempty"`
}

// ConversationSummary is a list entry of GET /api/conversations
type ConversationSummary struct {
	ID        string       `json:"id"`
	Kind      history.Kind `json:"kind"`
	Title     string       `json:"title"`
	Favorite  bool         `json:"favorite"`
	Messages  int          `json:"messages"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Health returns health status
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"model":  s.cfg.ModelName,
	})
}

// Chat streams the answer to a user message as events named after
// chat.EventType: message, chunk, done and error.
func (s *Server) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, http.StatusBadRequest, err)
	}

	attachment, cleanup, err := saveUpload(c)
	if err != nil {
		return s.fail(c, http.StatusBadRequest, err)
	}
	defer cleanup()

	if strings.TrimSpace(req.Text) == "" && attachment == "" {
		return s.fail(c, http.StatusBadRequest, chat.ErrEmptyInput)
	}

	convID, err := s.conversation(req.ConversationID, history.KindChat)
	if err != nil {
		return s.fail(c, http.StatusNotFound, err)
	}

	events := startEvents(c)
	failed := false
	sink := func(e chat.Event) {
		if e.Type == chat.EventError {
			failed = true
		}
		e.Message = s.publicMessage(e.Message)
		if err := events.send(string(e.Type), e); err != nil {
			s.logger.Debug("event write failed", zap.Error(err))
		}
	}

	err = s.chat.Send(c.Request().Context(), convID, chat.Input{Text: req.Text, Attachment: attachment}, sink)
	if err != nil && !failed && !errors.Is(err, context.Canceled) {
		_ = events.send(string(chat.EventError), ErrorResponse{Error: s.userMessage(err)})
	}
	return nil
}

// Info answers a question about the channels directory
func (s *Server) Info(c echo.Context) error {
	var req InfoRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, http.StatusBadRequest, err)
	}
	if strings.TrimSpace(req.Question) == "" {
		return s.fail(c, http.StatusBadRequest, chat.ErrEmptyQuestion)
	}

	convID, err := s.conversation(req.ConversationID, history.KindInfo)
	if err != nil {
		return s.fail(c, http.StatusNotFound, err)
	}

	msg, err := s.chat.AskPersonal(c.Request().Context(), convID, req.Question, nil)
	resp := InfoResponse{ConversationID: convID, Message: s.publicMessage(msg)}
	if err != nil {
		resp.Error = s.userMessage(err)
		return c.JSON(statusFor(err), resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// Personal lists directory links, filtered by the q query parameter
func (s *Server) Personal(c echo.Context) error {
	dir := s.chat.Personal()
	q := strings.TrimSpace(c.QueryParam("q"))
	items := dir.Items()
	if q != "" {
		items = dir.Search(q)
	}
	if items == nil {
		items = []models.PersonalInfoItem{}
	}
	return c.JSON(http.StatusOK, items)
}

// News returns the AI news list; ?refresh=1 bypasses the cache
func (s *Server) News(c echo.Context) error {
	items, err := s.feeds.AINews(c.Request().Context(), refresh(c))
	if err != nil {
		return s.fail(c, statusFor(err), err)
	}
	return c.JSON(http.StatusOK, items)
}

// NewsStream sends one "item" event per news entry, then "done"
func (s *Server) NewsStream(c echo.Context) error {
	events := startEvents(c)
	count := 0
	err := s.feeds.StreamAINews(c.Request().Context(), func(item models.NewsItem) error {
		count++
		return events.send("item", item)
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			_ = events.send("error", ErrorResponse{Error: s.userMessage(err)})
		}
		return nil
	}
	return events.send("done", map[string]int{"count": count})
}

// Phones returns the phone news list; ?refresh=1 bypasses the cache
func (s *Server) Phones(c echo.Context) error {
	items, err := s.feeds.PhoneNews(c.Request().Context(), refresh(c))
	if err != nil {
		return s.fail(c, statusFor(err), err)
	}
	return c.JSON(http.StatusOK, items)
}

// ClearCache drops one cached feed, or all of them without a kind
func (s *Server) ClearCache(c echo.Context) error {
	var kind feeds.Kind
	if raw := c.Param("kind"); raw != "" {
		k, err := feeds.ParseKind(raw)
		if err != nil {
			return s.fail(c, http.StatusBadRequest, err)
		}
		kind = k
	}
	if err := s.feeds.ClearCache(c.Request().Context(), kind); err != nil {
		return s.fail(c, http.StatusInternalServerError, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListConversations returns conversation summaries in display order;
// ?kind=chat|info filters them
func (s *Server) ListConversations(c echo.Context) error {
	convs, err := s.chat.History().ListConversations()
	if err != nil {
		return s.fail(c, http.StatusInternalServerError, err)
	}
	kind := history.Kind(c.QueryParam("kind"))
	out := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		if kind != "" && conv.Kind != kind {
			continue
		}
		out = append(out, ConversationSummary{
			ID:        conv.ID,
			Kind:      conv.Kind,
			Title:     conv.Title,
			Favorite:  conv.Favorite,
			Messages:  len(conv.Messages),
			UpdatedAt: conv.UpdatedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// GetConversation returns a conversation with its messages
func (s *Server) GetConversation(c echo.Context) error {
	conv, err := s.chat.History().GetConversation(c.Param("id"))
	if err != nil {
		return s.fail(c, http.StatusNotFound, err)
	}
	out := *conv
	out.Messages = make([]models.ChatMessage, len(conv.Messages))
	for i, m := range conv.Messages {
		out.Messages[i] = s.publicMessage(m)
	}
	return c.JSON(http.StatusOK, out)
}

// Download serves a generated file (translated document, edited image)
// from the download directory
func (s *Server) Download(c echo.Context) error {
	name := c.Param("name")
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return s.fail(c, http.StatusNotFound, errors.New("file not found"))
	}
	path := filepath.Join(s.chat.DownloadDir(), name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return s.fail(c, http.StatusNotFound, errors.New("file not found"))
	}
	return c.Attachment(path, name)
}

// DeleteConversation removes a conversation
func (s *Server) DeleteConversation(c echo.Context) error {
	id := c.Param("id")
	if _, err := s.chat.History().GetConversation(id); err != nil {
		return s.fail(c, http.StatusNotFound, err)
	}
	if err := s.chat.History().DeleteConversation(id); err != nil {
		return s.fail(c, http.StatusInternalServerError, err)
	}
	s.chat.Reset(id)
	return c.NoContent(http.StatusNoContent)
}

// conversation returns id when it exists, or a new conversation of kind
// when id is empty
func (s *Server) conversation(id string, kind history.Kind) (string, error) {
	if id == "" {
		conv, err := s.chat.NewConversation(kind)
		if err != nil {
			return "", err
		}
		return conv.ID, nil
	}
	conv, err := s.chat.History().GetConversation(id)
	if err != nil {
		return "", err
	}
	return conv.ID, nil
}

// publicMessage points a download link inside the download directory at
// GET /api/downloads/:name. Other links are left as they are.
func (s *Server) publicMessage(m models.ChatMessage) models.ChatMessage {
	if m.DownloadLink == nil || strings.HasPrefix(m.DownloadLink.URL, downloadsRoute) {
		return m
	}
	dir, err := filepath.Abs(s.chat.DownloadDir())
	if err != nil {
		return m
	}
	path, err := filepath.Abs(m.DownloadLink.URL)
	if err != nil || filepath.Dir(path) != dir {
		return m
	}
	link := *m.DownloadLink
	link.URL = downloadsRoute + url.PathEscape(filepath.Base(path))
	m.DownloadLink = &link
	return m
}

func (s *Server) fail(c echo.Context, status int, err error) error {
	msg := err.Error()
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		msg = s.userMessage(err)
		s.logger.Error("request error", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.JSON(status, ErrorResponse{Error: msg})
}

func (s *Server) userMessage(err error) string {
	return apierrors.UserMessage(err, s.chat.Language())
}

// statusFor maps model errors to HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrEmptyInput), errors.Is(err, chat.ErrEmptyQuestion):
		return http.StatusBadRequest
	case apierrors.IsRateLimitError(err):
		return http.StatusTooManyRequests
	case apierrors.IsOverloaded(err):
		return http.StatusServiceUnavailable
	case apierrors.IsTimeoutError(err), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func refresh(c echo.Context) bool {
	v, _ := strconv.ParseBool(c.QueryParam("refresh"))
	return v
}

// saveUpload writes a multipart "file" field to a temporary directory.
// It returns an empty path when the request carries no file.
func saveUpload(c echo.Context) (string, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return "", noop, nil
	}
	fh, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return "", noop, nil
	}
	if err != nil {
		return "", noop, err
	}

	src, err := fh.Open()
	if err != nil {
		return "", noop, err
	}
	defer src.Close()

	dir, err := os.MkdirTemp("", "techtouch-upload-*")
	if err != nil {
		return "", noop, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	path := filepath.Join(dir, filepath.Base(fh.Filename))
	dst, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", noop, err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		cleanup()
		return "", noop, err
	}
	if err := dst.Close(); err != nil {
		cleanup()
		return "", noop, err
	}
	return path, cleanup, nil
}
