package api

import (
	"context"
	"encoding/json"
	"sync"

	"google.golang.org/genai"

	"github.com/diogo/techtouch/internal/models"
)

// MockGeminiClient is a mock implementation of GeminiClientInterface for testing
type MockGeminiClient struct {
	mu sync.Mutex

	// Mock return values
	Model              models.Model
	IsClosedVal        bool
	GenerateContentVal *models.ModelOutput
	GenerateContentErr error
	// StreamChunks are yielded by GenerateContentStream and StreamJSONLines
	StreamChunks []string
	StreamErr    error
	// StreamOpenErr fails GenerateContentStream before any chunk
	StreamOpenErr error
	// JSONVal is marshalled into the out argument of GenerateJSON
	JSONVal      any
	JSONErr      error
	EditImageVal *models.ModelOutput
	EditImageErr error

	// Call counters/recorders
	CloseCalled          bool
	GenerateContentCalls int
	StreamCalls          int
	JSONCalls            int
	EditImageCalls       int
	LastPrompt           string
	LastOptions          *GenerateOptions
	LastSchema           *genai.Schema
	LastImage            InlineFile
}

// Ensure MockGeminiClient implements GeminiClientInterface
var _ GeminiClientInterface = (*MockGeminiClient)(nil)

func (m *MockGeminiClient) record(prompt string, opts *GenerateOptions) {
	m.LastPrompt = prompt
	m.LastOptions = opts
}

func (m *MockGeminiClient) GenerateContent(ctx context.Context, prompt string, opts *GenerateOptions) (*models.ModelOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateContentCalls++
	m.record(prompt, opts)
	if m.GenerateContentErr != nil {
		return nil, m.GenerateContentErr
	}
	if m.GenerateContentVal == nil {
		return &models.ModelOutput{}, nil
	}
	out := *m.GenerateContentVal
	return &out, nil
}

func (m *MockGeminiClient) GenerateContentStream(ctx context.Context, prompt string, opts *GenerateOptions) (*Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StreamCalls++
	m.record(prompt, opts)
	if m.StreamOpenErr != nil {
		return nil, m.StreamOpenErr
	}
	return NewStaticStream(m.StreamChunks, m.StreamErr), nil
}

func (m *MockGeminiClient) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, out any, opts *GenerateOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.JSONCalls++
	m.record(prompt, opts)
	m.LastSchema = schema
	if m.JSONErr != nil {
		return m.JSONErr
	}
	if m.JSONVal == nil {
		return nil
	}
	data, err := json.Marshal(m.JSONVal)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (m *MockGeminiClient) StreamJSONLines(ctx context.Context, prompt string, opts *GenerateOptions, fn func(raw []byte) error) error {
	stream, err := m.GenerateContentStream(ctx, prompt, opts)
	if err != nil {
		return err
	}
	return DecodeStream(stream, fn)
}

func (m *MockGeminiClient) EditImage(ctx context.Context, prompt string, image InlineFile) (*models.ModelOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EditImageCalls++
	m.LastPrompt = prompt
	m.LastImage = image
	return m.EditImageVal, m.EditImageErr
}

func (m *MockGeminiClient) StartChat(opts ...ChatOption) *ChatSession {
	return NewChatSession(m, m.GetModel(), opts...)
}

func (m *MockGeminiClient) GetModel() models.Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Model.Name == "" {
		return models.DefaultModel
	}
	return m.Model
}

func (m *MockGeminiClient) SetModel(model models.Model) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Model = model
}

func (m *MockGeminiClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.IsClosedVal
}

func (m *MockGeminiClient) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalled = true
	m.IsClosedVal = true
}

// Lines is a helper that renders values as JSON lines for StreamChunks
func Lines(values ...any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		data, _ := json.Marshal(v)
		out = append(out, string(data)+"\n")
	}
	return out
}
