// Package feeds produces the AI news and phone news lists, caching them
// between runs.
package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"github.com/diogo/techtouch/internal/api"
	"github.com/diogo/techtouch/internal/jsonl"
	"github.com/diogo/techtouch/internal/models"
)

// Kind identifies a feed; its value is the cache key
type Kind string

const (
	KindAINews Kind = "ai_news"
	KindPhones Kind = "phone_news"
)

// Kinds returns every feed kind
func Kinds() []Kind {
	return []Kind{KindAINews, KindPhones}
}

// ParseKind accepts the cache key or a short alias
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ai_news", "news", "ai":
		return KindAINews, nil
	case "phone_news", "phones", "phone":
		return KindPhones, nil
	}
	return "", fmt.Errorf("unknown feed %q (use news or phones)", s)
}

// DefaultTTL is how long a cached feed is served before regenerating
const DefaultTTL = 6 * time.Hour

// DefaultCount is how many items each feed asks for
const DefaultCount = 10

// Error messages shown when a feed cannot be produced
const (
	msgAINewsFailed = "فشل في جلب أخبار الذكاء الاصطناعي."
	msgPhonesFailed = "فشل في جلب أخبار الهواتف."
)

// Store is the cache the service reads and writes
type Store interface {
	GetFresh(ctx context.Context, key string, ttl time.Duration, dst any) (bool, error)
	Put(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
}

// Client is the subset of the API client used by feeds
type Client interface {
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, out any, opts *api.GenerateOptions) error
	StreamJSONLines(ctx context.Context, prompt string, opts *api.GenerateOptions, fn func(raw []byte) error) error
}

// Service fetches and caches feeds
type Service struct {
	client Client
	store  Store
	ttl    time.Duration
	count  int
	model  models.Model
	logger *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithTTL sets the cache lifetime. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithCount sets how many items to request
func WithCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.count = n
		}
	}
}

// WithModel overrides the model used for feeds
func WithModel(m models.Model) Option {
	return func(s *Service) {
		s.model = m
	}
}

// WithLogger sets the service logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a feed service. store may be nil to disable caching.
func NewService(client Client, store Store, opts ...Option) *Service {
	s := &Service{
		client: client,
		store:  store,
		ttl:    DefaultTTL,
		count:  DefaultCount,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) options() *api.GenerateOptions {
	return &api.GenerateOptions{Model: s.model}
}

// AINews returns the AI news list, from cache unless refresh is set
func (s *Service) AINews(ctx context.Context, refresh bool) ([]models.NewsItem, error) {
	var items []models.NewsItem
	if !refresh && s.cached(ctx, KindAINews, &items) {
		return items, nil
	}

	items, err := fetchList[models.NewsItem](ctx, s, aiNewsPrompt(s.count), newsSchema())
	if err != nil {
		s.logger.Error("ai news fetch failed", zap.Error(err))
		return nil, fmt.Errorf("%s: %w", msgAINewsFailed, err)
	}

	if len(items) > 0 {
		s.save(ctx, KindAINews, items)
	}
	return items, nil
}

// StreamAINews delivers news items one by one as the model writes them.
// The items received are cached once the stream completes.
func (s *Service) StreamAINews(ctx context.Context, fn func(models.NewsItem) error) error {
	var items []models.NewsItem
	err := s.client.StreamJSONLines(ctx, aiNewsStreamPrompt(s.count), s.options(), jsonl.Each(func(item models.NewsItem) error {
		items = append(items, item)
		return fn(item)
	}))
	if err != nil {
		s.logger.Error("ai news stream failed", zap.Int("received", len(items)), zap.Error(err))
		return fmt.Errorf("%s: %w", msgAINewsFailed, err)
	}

	if len(items) > 0 {
		s.save(ctx, KindAINews, items)
	}
	return nil
}

// PhoneNews returns the phone news list, from cache unless refresh is set
func (s *Service) PhoneNews(ctx context.Context, refresh bool) ([]models.PhoneNewsItem, error) {
	var items []models.PhoneNewsItem
	if !refresh && s.cached(ctx, KindPhones, &items) {
		return items, nil
	}

	items, err := fetchList[models.PhoneNewsItem](ctx, s, phoneNewsPrompt(s.count), phoneSchema())
	if err != nil {
		s.logger.Error("phone news fetch failed", zap.Error(err))
		return nil, fmt.Errorf("%s: %w", msgPhonesFailed, err)
	}

	if len(items) > 0 {
		s.save(ctx, KindPhones, items)
	}
	return items, nil
}

// Snapshot holds both feeds
type Snapshot struct {
	News   []models.NewsItem      `json:"news"`
	Phones []models.PhoneNewsItem `json:"phones"`
}

// RefreshAll regenerates both feeds concurrently
func (s *Service) RefreshAll(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		items, err := s.AINews(gctx, true)
		snap.News = items
		return err
	})
	g.Go(func() error {
		items, err := s.PhoneNews(gctx, true)
		snap.Phones = items
		return err
	})

	if err := g.Wait(); err != nil {
		return &snap, err
	}
	return &snap, nil
}

// ClearCache drops the cached copy of kind, or of every feed when kind
// is empty
func (s *Service) ClearCache(ctx context.Context, kind Kind) error {
	if s.store == nil {
		return nil
	}

	kinds := []Kind{kind}
	if kind == "" {
		kinds = Kinds()
	}
	for _, k := range kinds {
		if err := s.store.Delete(ctx, string(k)); err != nil {
			return err
		}
	}
	s.logger.Info("feed cache cleared", zap.String("kind", string(kind)))
	return nil
}

func (s *Service) cached(ctx context.Context, kind Kind, dst any) bool {
	if s.store == nil {
		return false
	}
	found, err := s.store.GetFresh(ctx, string(kind), s.ttl, dst)
	if err != nil {
		s.logger.Warn("feed cache read failed", zap.String("kind", string(kind)), zap.Error(err))
		return false
	}
	if found {
		s.logger.Debug("feed served from cache", zap.String("kind", string(kind)))
	}
	return found
}

func (s *Service) save(ctx context.Context, kind Kind, v any) {
	if s.store == nil {
		return
	}
	if err := s.store.Put(ctx, string(kind), v); err != nil {
		s.logger.Warn("feed cache write failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}

// validator is implemented by the feed DTOs
type validator interface {
	Valid() bool
}

// fetchList runs a schema-constrained request and returns the valid items.
// The model sometimes wraps the array in an object; the first array found
// is used in that case.
func fetchList[T validator](ctx context.Context, s *Service, prompt string, schema *genai.Schema) ([]T, error) {
	var raw json.RawMessage
	if err := s.client.GenerateJSON(ctx, prompt, schema, &raw, s.options()); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return []T{}, nil
	}

	arr := findArray(gjson.ParseBytes(raw))
	items := make([]T, 0, len(arr))
	for _, el := range arr {
		var item T
		if err := json.Unmarshal([]byte(el.Raw), &item); err != nil {
			continue
		}
		if item.Valid() {
			items = append(items, item)
		}
		if len(items) == s.count {
			break
		}
	}
	return items, nil
}

func findArray(res gjson.Result) []gjson.Result {
	if res.IsArray() {
		return res.Array()
	}
	if !res.IsObject() {
		return nil
	}

	var found []gjson.Result
	res.ForEach(func(_, value gjson.Result) bool {
		if value.IsArray() {
			found = value.Array()
			return false
		}
		return true
	})
	return found
}

// ShareText formats a news item for sharing
func ShareText(item models.NewsItem) string {
	var sb strings.Builder
	sb.WriteString("خبر تقني: ")
	sb.WriteString(item.Title)
	sb.WriteString("\n\n")
	sb.WriteString(item.Summary)
	if item.Link != "" {
		sb.WriteString("\n\n")
		sb.WriteString(item.Link)
	}
	return sb.String()
}

// PhoneShareText formats a phone entry for sharing
func PhoneShareText(item models.PhoneNewsItem) string {
	var sb strings.Builder
	sb.WriteString(item.ModelName)
	if item.Summary != "" {
		sb.WriteString("\n\n")
		sb.WriteString(item.Summary)
	}
	for _, spec := range item.Specs {
		sb.WriteString("\n• ")
		sb.WriteString(spec)
	}
	return sb.String()
}
