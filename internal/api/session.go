package api

import (
	"context"
	"sync"

	"github.com/diogo/techtouch/internal/models"
)

// ContentGenerator is what a ChatSession needs from a client
type ContentGenerator interface {
	GenerateContent(ctx context.Context, prompt string, opts *GenerateOptions) (*models.ModelOutput, error)
	GenerateContentStream(ctx context.Context, prompt string, opts *GenerateOptions) (*Stream, error)
}

// ChatSession maintains conversation context across messages
type ChatSession struct {
	client            ContentGenerator
	mu                sync.RWMutex // Protects model, history, systemInstruction, useSearch
	model             models.Model
	history           []Turn
	systemInstruction string
	useSearch         bool
	lastOutput        *models.ModelOutput
}

// ChatOption configures a ChatSession
type ChatOption func(*ChatSession)

// WithSystemInstruction sets the session system instruction
func WithSystemInstruction(s string) ChatOption {
	return func(cs *ChatSession) {
		cs.systemInstruction = s
	}
}

// WithHistory seeds the session with prior turns
func WithHistory(turns []Turn) ChatOption {
	return func(cs *ChatSession) {
		cs.history = copyTurns(turns)
	}
}

// WithSearch enables search grounding for every message
func WithSearch(enabled bool) ChatOption {
	return func(cs *ChatSession) {
		cs.useSearch = enabled
	}
}

// WithSessionModel overrides the client default model for the session
func WithSessionModel(model models.Model) ChatOption {
	return func(cs *ChatSession) {
		cs.model = model
	}
}

// NewChatSession creates a session on top of any client implementation
func NewChatSession(client ContentGenerator, model models.Model, opts ...ChatOption) *ChatSession {
	return newChatSession(client, model, opts...)
}

func newChatSession(client ContentGenerator, model models.Model, opts ...ChatOption) *ChatSession {
	cs := &ChatSession{
		client: client,
		model:  model,
	}
	for _, opt := range opts {
		opt(cs)
	}
	return cs
}

// copyTurns creates a copy of the history slice to avoid races
func copyTurns(t []Turn) []Turn {
	if t == nil {
		return nil
	}
	result := make([]Turn, len(t))
	copy(result, t)
	return result
}

// MessageOptions are per-message overrides
type MessageOptions struct {
	Images []InlineFile
	Files  []InlineFile
	// UseSearch enables search for this message only
	UseSearch bool
	// SystemSuffix is appended to the session system instruction
	SystemSuffix string
}

func (s *ChatSession) options(msg *MessageOptions) *GenerateOptions {
	s.mu.RLock()
	defer s.mu.RUnlock()

	opts := &GenerateOptions{
		Model:             s.model,
		SystemInstruction: s.systemInstruction,
		History:           copyTurns(s.history), // Copy to avoid race
		UseSearch:         s.useSearch,
	}
	if msg != nil {
		opts.Images = msg.Images
		opts.Files = msg.Files
		opts.UseSearch = opts.UseSearch || msg.UseSearch
		if msg.SystemSuffix != "" {
			opts.SystemInstruction += "\n\n" + msg.SystemSuffix
		}
	}
	return opts
}

// SendMessage sends a message in the chat session and updates context.
// msg is optional.
func (s *ChatSession) SendMessage(ctx context.Context, prompt string, msg *MessageOptions) (*models.ModelOutput, error) {
	output, err := s.client.GenerateContent(ctx, prompt, s.options(msg))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastOutput = output
	s.appendLocked(prompt, output.Text)
	s.mu.Unlock()

	return output, nil
}

// SendMessageStream streams a reply. The exchange is added to the history
// only when the stream completes without error.
func (s *ChatSession) SendMessageStream(ctx context.Context, prompt string, msg *MessageOptions) (*Stream, error) {
	stream, err := s.client.GenerateContentStream(ctx, prompt, s.options(msg))
	if err != nil {
		return nil, err
	}

	stream.onDone = func(text string, err error) {
		if err != nil || text == "" {
			return
		}
		s.mu.Lock()
		s.lastOutput = &models.ModelOutput{Text: text, Sources: stream.Sources()}
		s.appendLocked(prompt, text)
		s.mu.Unlock()
	}
	return stream, nil
}

// appendLocked records one exchange
// MUST be called with s.mu.Lock() held
func (s *ChatSession) appendLocked(prompt, reply string) {
	s.history = append(s.history,
		Turn{Role: "user", Text: prompt},
		Turn{Role: "model", Text: reply},
	)
}

// History returns a copy of the conversation turns
func (s *ChatSession) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTurns(s.history)
}

// SetHistory replaces the conversation turns (for resuming conversations)
func (s *ChatSession) SetHistory(turns []Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = copyTurns(turns)
}

// Reset forgets the conversation
func (s *ChatSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.lastOutput = nil
}

// GetModel returns the session's model
func (s *ChatSession) GetModel() models.Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// SetModel changes the session's model
func (s *ChatSession) SetModel(model models.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
}

// SetSystemInstruction replaces the session system instruction
func (s *ChatSession) SetSystemInstruction(si string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systemInstruction = si
}

// LastOutput returns the last response from the session
func (s *ChatSession) LastOutput() *models.ModelOutput {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastOutput
}
