// Package fetch downloads web pages with a browser TLS fingerprint and
// reduces them to readable text for link prompts.
package fetch

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	apierrors "github.com/diogo/techtouch/internal/errors"
)

const (
	// DefaultMaxRunes caps the text returned for one page
	DefaultMaxRunes = 20_000
	// maxBodyBytes caps how much of a response is read
	maxBodyBytes = 5 * 1024 * 1024

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36"
)

// Doer executes HTTP requests; tls_client.HttpClient satisfies it
type Doer interface {
	Do(req *fhttp.Request) (*fhttp.Response, error)
}

// Page is the readable content of a fetched URL
type Page struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Fetcher downloads pages
type Fetcher struct {
	client   Doer
	maxRunes int
	logger   *zap.Logger
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithMaxRunes caps the extracted text
func WithMaxRunes(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxRunes = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithDoer replaces the HTTP client
func WithDoer(d Doer) Option {
	return func(f *Fetcher) {
		f.client = d
	}
}

// New creates a Fetcher using a Chrome TLS profile
func New(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		maxRunes: DefaultMaxRunes,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.client == nil {
		options := []tls_client.HttpClientOption{
			tls_client.WithTimeoutSeconds(20),
			tls_client.WithClientProfile(profiles.Chrome_120),
		}
		client, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		f.client = client
	}
	return f, nil
}

// Page downloads url and returns its title and visible text
func (f *Fetcher) Page(ctx context.Context, url string) (*Page, error) {
	req, err := fhttp.NewRequestWithContext(ctx, fhttp.MethodGet, url, nil)
	if err != nil {
		return nil, apierrors.NewDownloadError("failed to create request: "+err.Error(), url)
	}
	req.Header = fhttp.Header{
		"User-Agent":      {userAgent},
		"Accept":          {"text/html,application/xhtml+xml;q=0.9,*/*;q=0.8"},
		"Accept-Language": {"ar,en-US;q=0.9,en;q=0.8"},
		fhttp.HeaderOrderKey: {
			"user-agent",
			"accept",
			"accept-language",
		},
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apierrors.NewNetworkErrorWithEndpoint("fetch page", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != fhttp.StatusOK {
		return nil, apierrors.NewDownloadErrorWithStatus(url, resp.StatusCode)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	isHTML := strings.Contains(contentType, "html")
	if !isHTML && !strings.HasPrefix(contentType, "text/") {
		return nil, apierrors.NewDownloadError("response is not a web page: "+contentType, url)
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	page := &Page{URL: url}
	if isHTML {
		page.Title, page.Text, err = Extract(body, f.maxRunes)
	} else {
		var data []byte
		data, err = io.ReadAll(body)
		page.Text = truncateRunes(collapse(string(data)), f.maxRunes)
	}
	if err != nil {
		return nil, apierrors.NewDownloadError("failed to read page: "+err.Error(), url)
	}

	f.logger.Debug("page fetched",
		zap.String("url", url),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("runes", len([]rune(page.Text))),
	)
	return page, nil
}

// skipped elements never carry readable text
var skipped = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"svg": true, "iframe": true, "head": true, "nav": true, "footer": true,
}

// block elements end a line of text
var block = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "section": true,
	"article": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "blockquote": true, "pre": true, "table": true, "ul": true, "ol": true,
}

// Extract parses HTML from r and returns the page title and its visible
// text, whitespace collapsed and capped at maxRunes
func Extract(r io.Reader, maxRunes int) (title, text string, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", "", err
	}

	title = findTitle(doc)

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipped[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(collapse(n.Data))
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && block[n.Data] {
			sb.WriteByte('\n')
		}
	}
	walk(doc)

	lines := strings.Split(sb.String(), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l = collapse(l); l != "" {
			kept = append(kept, l)
		}
	}
	return title, truncateRunes(strings.Join(kept, "\n"), maxRunes), nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		return collapse(n.FirstChild.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
