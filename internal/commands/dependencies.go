package commands

import (
	"context"

	"github.com/diogo/techtouch/internal/api"
	"github.com/diogo/techtouch/internal/config"
	"github.com/diogo/techtouch/internal/history"
	"github.com/diogo/techtouch/internal/tui"
)

// TUIInterface defines the methods required from the TUI package.
type TUIInterface interface {
	Run(ctx context.Context, deps tui.Deps) error
	RunConfig(cfg config.Config) error
	RunHistorySelector(store tui.HistoryStore, kind history.Kind, lang string) (tui.HistorySelectorResult, error)
}

// ClientFactory creates the Gemini client used by a command
type ClientFactory func(ctx context.Context, apiKey string, opts ...api.ClientOption) (api.GeminiClientInterface, error)

// Dependencies holds the external dependencies for the commands.
// This allows for dependency injection and easier testing.
type Dependencies struct {
	// NewClient creates the Gemini API client.
	NewClient ClientFactory

	// LoadAPIKey resolves the API key and where it came from.
	LoadAPIKey func() (string, config.KeySource, error)

	// TUI is the terminal user interface.
	TUI TUIInterface
}

// DefaultTUI is the production implementation of TUIInterface.
type DefaultTUI struct{}

func (d *DefaultTUI) Run(ctx context.Context, deps tui.Deps) error {
	return tui.Run(ctx, deps)
}

func (d *DefaultTUI) RunConfig(cfg config.Config) error {
	return tui.RunConfig(cfg)
}

func (d *DefaultTUI) RunHistorySelector(store tui.HistoryStore, kind history.Kind, lang string) (tui.HistorySelectorResult, error) {
	return tui.RunHistorySelector(store, kind, lang)
}

// NewDependencies creates a new Dependencies struct with default implementations.
func NewDependencies() *Dependencies {
	return &Dependencies{
		NewClient: func(ctx context.Context, apiKey string, opts ...api.ClientOption) (api.GeminiClientInterface, error) {
			return api.NewClient(ctx, apiKey, opts...)
		},
		LoadAPIKey: config.LoadAPIKey,
		TUI:        &DefaultTUI{},
	}
}

// deps is replaced by tests
var deps = NewDependencies()
