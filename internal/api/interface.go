package api

import (
	"context"

	"google.golang.org/genai"

	"github.com/diogo/techtouch/internal/models"
)

// GeminiClientInterface defines the client surface used by services and UIs
type GeminiClientInterface interface {
	ContentGenerator
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, out any, opts *GenerateOptions) error
	StreamJSONLines(ctx context.Context, prompt string, opts *GenerateOptions, fn func(raw []byte) error) error
	EditImage(ctx context.Context, prompt string, image InlineFile) (*models.ModelOutput, error)
	StartChat(opts ...ChatOption) *ChatSession
	GetModel() models.Model
	SetModel(model models.Model)
	IsClosed() bool
	Close()
}

// Ensure GeminiClient implements GeminiClientInterface
var _ GeminiClientInterface = (*GeminiClient)(nil)
