package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/diogo/techtouch/internal/api"
	"github.com/diogo/techtouch/internal/cache"
	"github.com/diogo/techtouch/internal/chat"
	"github.com/diogo/techtouch/internal/config"
	"github.com/diogo/techtouch/internal/feeds"
	"github.com/diogo/techtouch/internal/fetch"
	"github.com/diogo/techtouch/internal/history"
	"github.com/diogo/techtouch/internal/logging"
	"github.com/diogo/techtouch/internal/memory"
	"github.com/diogo/techtouch/internal/models"
	"github.com/diogo/techtouch/internal/personal"
	"github.com/diogo/techtouch/internal/render"
)

// app holds the services shared by the commands of one run
type app struct {
	cfg       config.Config
	configDir string
	model     models.Model
	persona   *config.Persona
	logger    *zap.Logger

	client   api.GeminiClientInterface
	history  *history.Store
	cache    *cache.Cache
	memory   *memory.Store
	personal *personal.Directory

	chat  *chat.Service
	feeds *feeds.Service
}

// newApp loads the configuration and the API key and builds every service.
// Callers must Close the returned app.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	configDir, err := config.EnsureConfigDir()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Dir:     filepath.Join(configDir, "logs"),
		Verbose: cfg.Verbose || verboseFlag,
	})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, configDir: configDir, logger: logger}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	persona, err := config.ResolvePersona(firstNonEmpty(personaFlag, a.cfg.Persona))
	if err != nil {
		return fmt.Errorf("failed to load persona: %w", err)
	}
	a.persona = persona
	a.model = models.ModelFromName(firstNonEmpty(modelFlag, persona.Model, a.cfg.DefaultModel))

	key, source, err := deps.LoadAPIKey()
	if err != nil {
		return err
	}
	a.logger.Debug("api key loaded", zap.String("source", string(source)), zap.String("model", a.model.Name))

	a.client, err = deps.NewClient(ctx, key,
		api.WithModel(a.model),
		api.WithGenerationConfig(generationConfig(a.cfg, persona)),
		api.WithRetryPolicy(retryPolicy(a.cfg.Retry)),
		api.WithLogger(a.logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	if a.history, err = history.DefaultStore(); err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	if a.memory, err = memory.NewStore(a.configDir); err != nil {
		return fmt.Errorf("failed to open memory: %w", err)
	}

	cachePath, err := config.GetCachePath()
	if err != nil {
		return err
	}
	if a.cache, err = cache.Open(cachePath); err != nil {
		return err
	}

	a.personal, err = personal.Load(a.configDir)
	if err != nil {
		a.logger.Warn("personal directory override ignored", zap.Error(err))
		a.personal = personal.Default()
	}

	downloadDir, err := config.GetDownloadDir(a.cfg)
	if err != nil {
		return err
	}

	opts := []chat.Option{
		chat.WithMemory(a.memory),
		chat.WithPersonal(a.personal),
		chat.WithDownloadDir(downloadDir),
		chat.WithLanguage(a.cfg.Language),
		chat.WithModel(a.model),
		chat.WithSystemInstruction(persona.SystemInstruction()),
		chat.WithLogger(a.logger),
	}
	if a.cfg.FetchLinks {
		f, err := fetch.New(fetch.WithLogger(a.logger))
		if err != nil {
			a.logger.Warn("link fetching disabled", zap.Error(err))
		} else {
			opts = append(opts, chat.WithFetcher(f))
		}
	}
	a.chat = chat.NewService(a.client, a.history, opts...)

	a.feeds = feeds.NewService(a.client, a.cache,
		feeds.WithTTL(a.cfg.FeedTTL()),
		feeds.WithLogger(a.logger),
	)
	return nil
}

// renderOptions returns markdown options from the config for width
func (a *app) renderOptions(width int) render.Options {
	return render.FromConfig(a.cfg.Markdown).WithWidth(width)
}

// Close releases the client, the cache and flushes the logger
func (a *app) Close() {
	if a.client != nil {
		a.client.Close()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("failed to close cache", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func generationConfig(cfg config.Config, persona *config.Persona) api.GenerationConfig {
	gc := api.DefaultGenerationConfig()
	if cfg.Temperature > 0 {
		gc.Temperature = cfg.Temperature
	}
	if cfg.TopP > 0 {
		gc.TopP = cfg.TopP
	}
	if cfg.TopK > 0 {
		gc.TopK = cfg.TopK
	}
	if cfg.MaxOutputTokens > 0 {
		gc.MaxOutputTokens = cfg.MaxOutputTokens
	}
	if persona != nil && persona.Temperature > 0 {
		gc.Temperature = persona.Temperature
	}
	return gc
}

func retryPolicy(rc config.RetryConfig) api.RetryPolicy {
	p := api.DefaultRetryPolicy()
	if rc.MaxAttempts > 0 {
		p.MaxAttempts = rc.MaxAttempts
	}
	if rc.InitialDelayMS > 0 {
		p.InitialDelay = time.Duration(rc.InitialDelayMS) * time.Millisecond
	}
	if rc.MaxDelayMS > 0 {
		p.MaxDelay = time.Duration(rc.MaxDelayMS) * time.Millisecond
	}
	return p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
