// Package chat orchestrates conversations: intent detection, memory,
// document translation, personal info answers and image editing on top of
// the Gemini client and the history store.
package chat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/diogo/techtouch/internal/api"
	apierrors "github.com/diogo/techtouch/internal/errors"
	"github.com/diogo/techtouch/internal/fetch"
	"github.com/diogo/techtouch/internal/history"
	"github.com/diogo/techtouch/internal/intent"
	"github.com/diogo/techtouch/internal/memory"
	"github.com/diogo/techtouch/internal/models"
	"github.com/diogo/techtouch/internal/personal"
)

// ErrEmptyInput is returned when a message has neither text nor attachment
var ErrEmptyInput = errors.New("message has no text and no attachment")

// Client is the subset of the Gemini client used by the service
type Client interface {
	api.ContentGenerator
	EditImage(ctx context.Context, prompt string, image api.InlineFile) (*models.ModelOutput, error)
}

// PageFetcher downloads pages mentioned in link prompts
type PageFetcher interface {
	Page(ctx context.Context, url string) (*fetch.Page, error)
}

// Input is a user message. Attachment is a local file path.
type Input struct {
	Text       string
	Attachment string
}

// Service runs chat requests against a conversation store
type Service struct {
	client            Client
	history           *history.Store
	memory            *memory.Store
	personal          *personal.Directory
	fetcher           PageFetcher
	downloadDir       string
	lang              string
	model             models.Model
	systemInstruction string
	logger            *zap.Logger

	mu       sync.Mutex
	sessions map[string]*api.ChatSession
}

// Option configures a Service
type Option func(*Service)

// WithMemory enables remembering user statements across conversations
func WithMemory(m *memory.Store) Option {
	return func(s *Service) { s.memory = m }
}

// WithPersonal sets the directory used by AskPersonal
func WithPersonal(d *personal.Directory) Option {
	return func(s *Service) { s.personal = d }
}

// WithFetcher enables fetching linked pages
func WithFetcher(f PageFetcher) Option {
	return func(s *Service) { s.fetcher = f }
}

// WithDownloadDir sets where translated documents and edited images are written
func WithDownloadDir(dir string) Option {
	return func(s *Service) { s.downloadDir = dir }
}

// WithLanguage sets the reply and error language ("ar" or "en")
func WithLanguage(lang string) Option {
	return func(s *Service) { s.lang = lang }
}

// WithModel sets the chat model
func WithModel(m models.Model) Option {
	return func(s *Service) { s.model = m }
}

// WithSystemInstruction sets the persona prompt for new chat sessions
func WithSystemInstruction(si string) Option {
	return func(s *Service) { s.systemInstruction = si }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a chat service
func NewService(client Client, store *history.Store, opts ...Option) *Service {
	s := &Service{
		client:      client,
		history:     store,
		personal:    personal.Default(),
		downloadDir: ".",
		lang:        apierrors.LangArabic,
		model:       models.DefaultModel,
		logger:      zap.NewNop(),
		sessions:    make(map[string]*api.ChatSession),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// History returns the conversation store
func (s *Service) History() *history.Store {
	return s.history
}

// DownloadDir returns the directory generated files are written to
func (s *Service) DownloadDir() string {
	return s.downloadDir
}

// Language returns the configured language
func (s *Service) Language() string {
	return s.lang
}

// Personal returns the personal info directory
func (s *Service) Personal() *personal.Directory {
	return s.personal
}

// NewConversation creates a conversation of the given kind
func (s *Service) NewConversation(kind history.Kind) (*history.Conversation, error) {
	return s.history.CreateConversation(kind, s.model.Name)
}

// Reset forgets the in-memory session of a conversation. The stored messages are kept.
func (s *Service) Reset(convID string) {
	s.mu.Lock()
	delete(s.sessions, convID)
	s.mu.Unlock()
}

// Send processes a user message: document attachments are translated,
// everything else is answered by streaming.
func (s *Service) Send(ctx context.Context, convID string, in Input, sink Sink) error {
	text := strings.TrimSpace(in.Text)
	if text == "" && in.Attachment == "" {
		return ErrEmptyInput
	}

	conv, err := s.history.GetConversation(convID)
	if err != nil {
		return err
	}

	user := models.NewMessage(models.SenderUser, in.Text)
	var image *api.InlineFile
	var imageErr error
	if in.Attachment != "" {
		name := filepath.Base(in.Attachment)
		mimeType := api.DetectMIMEType(name, nil)
		if intent.IsImage(mimeType) {
			f, err := api.LoadInlineFile(in.Attachment)
			if err == nil && !f.IsImage() {
				err = fmt.Errorf("unsupported image type %s", f.MIMEType)
			}
			if err != nil {
				imageErr = err
			} else {
				image = &f
				user.ImagePreview = f.DataURL()
			}
		} else {
			user.FileInfo = &models.FileInfo{Name: name, Type: mimeType}
		}
	}

	if err := s.append(conv.ID, user, sink); err != nil {
		return err
	}

	if imageErr != nil {
		s.logger.Warn("failed to read image attachment", zap.String("path", in.Attachment), zap.Error(imageErr))
		msg := s.system(conv.ID, s.text(msgImageFailed), sink)
		sink.emit(Event{Type: EventError, ConversationID: conv.ID, Message: msg, Err: imageErr})
		return imageErr
	}

	if user.FileInfo != nil {
		return s.translateDocument(ctx, conv.ID, in.Attachment, sink)
	}

	return s.reply(ctx, conv, text, image, sink)
}

// reply streams an answer into a new AI message
func (s *Service) reply(ctx context.Context, conv *history.Conversation, text string, image *api.InlineFile, sink Sink) error {
	in := intent.Analyze(text)
	prompt := intent.BuildPrompt(in, text, s.lang)
	if in.Kind == intent.KindLink {
		prompt = s.enrichLink(ctx, prompt, in.URLs[0])
	}

	if s.memory != nil && intent.IsMemoryStatement(text) {
		if _, err := s.memory.Remember(text); err != nil {
			s.logger.Warn("failed to update memory", zap.Error(err))
		}
	}

	opts := &api.MessageOptions{UseSearch: in.UseSearch}
	if image != nil {
		opts.Images = []api.InlineFile{*image}
	}
	if s.memory != nil {
		opts.SystemSuffix = s.memory.SystemContext()
	}

	ai := models.NewMessage(models.SenderAI, "")
	if err := s.append(conv.ID, ai, sink); err != nil {
		return err
	}

	s.logger.Debug("chat request",
		zap.String("conversation", conv.ID),
		zap.String("intent", string(in.Kind)),
		zap.Bool("search", in.UseSearch),
		zap.Bool("image", image != nil))

	stream, err := s.session(conv).SendMessageStream(ctx, prompt, opts)
	if err != nil {
		return s.fail(conv.ID, ai, err, sink)
	}
	defer stream.Close()

	for stream.Next() {
		ai.Text += stream.Chunk()
		sink.emit(Event{Type: EventChunk, ConversationID: conv.ID, Message: ai, Delta: stream.Chunk()})
	}
	if err := stream.Err(); err != nil {
		return s.fail(conv.ID, ai, err, sink)
	}
	if strings.TrimSpace(ai.Text) == "" {
		return s.fail(conv.ID, ai, apierrors.ErrNoContent, sink)
	}

	ai.Sources = stream.Sources()
	if err := s.history.ModifyMessage(conv.ID, ai.ID, func(m *models.ChatMessage) {
		m.Text = ai.Text
		m.Sources = ai.Sources
	}); err != nil {
		return err
	}
	sink.emit(Event{Type: EventDone, ConversationID: conv.ID, Message: ai})
	return nil
}

// enrichLink appends the fetched page text; fetch failures keep the search-only prompt
func (s *Service) enrichLink(ctx context.Context, prompt, url string) string {
	if s.fetcher == nil {
		return prompt
	}
	page, err := s.fetcher.Page(ctx, url)
	if err != nil {
		s.logger.Info("link fetch failed, relying on search", zap.String("url", url), zap.Error(err))
		return prompt
	}
	return intent.WithPageExcerpt(prompt, page.URL, page.Title, page.Text)
}

// session returns the chat session for a conversation, seeding it from stored messages
func (s *Service) session(conv *history.Conversation) *api.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cs, ok := s.sessions[conv.ID]; ok {
		return cs
	}
	cs := api.NewChatSession(s.client, s.model,
		api.WithSystemInstruction(s.systemInstruction),
		api.WithHistory(turnsFrom(conv.Messages)),
	)
	s.sessions[conv.ID] = cs
	return cs
}

// turnsFrom rebuilds model history from completed user/AI exchanges
func turnsFrom(messages []models.ChatMessage) []api.Turn {
	var turns []api.Turn
	var pending string
	for _, m := range messages {
		switch m.Sender {
		case models.SenderUser:
			pending = m.Text
		case models.SenderAI:
			if pending == "" || m.Text == "" {
				continue
			}
			turns = append(turns,
				api.Turn{Role: "user", Text: pending},
				api.Turn{Role: "model", Text: m.Text},
			)
			pending = ""
		}
	}
	return turns
}

// fail replaces the AI message text with a user-facing error
func (s *Service) fail(convID string, ai models.ChatMessage, err error, sink Sink) error {
	s.logger.Error("chat request failed", zap.String("conversation", convID), zap.Error(err))

	ai.Text = apierrors.UserMessage(err, s.lang)
	if uerr := s.history.UpdateMessage(convID, ai.ID, ai.Text); uerr != nil {
		s.logger.Warn("failed to store error message", zap.Error(uerr))
	}
	sink.emit(Event{Type: EventError, ConversationID: convID, Message: ai, Err: err})
	return err
}

func (s *Service) append(convID string, msg models.ChatMessage, sink Sink) error {
	stored, err := s.history.AppendMessage(convID, msg)
	if err != nil {
		return err
	}
	sink.emit(Event{Type: EventMessage, ConversationID: convID, Message: stored})
	return nil
}

func (s *Service) system(convID, text string, sink Sink) models.ChatMessage {
	msg := models.NewMessage(models.SenderSystem, text)
	if err := s.append(convID, msg, sink); err != nil {
		s.logger.Warn("failed to store system message", zap.Error(err))
	}
	return msg
}
