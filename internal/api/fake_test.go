package api

import (
	"context"
	"iter"
	"sync"
	"time"

	"google.golang.org/genai"
)

type fakeResult struct {
	resp *genai.GenerateContentResponse
	err  error
}

// fakeGenerator replays canned results. Each generate call consumes one
// result; each stream call consumes one script.
type fakeGenerator struct {
	mu      sync.Mutex
	results []fakeResult
	scripts [][]fakeResult

	calls       int
	streamCalls int
	model       string
	contents    []*genai.Content
	config      *genai.GenerateContentConfig
}

func (f *fakeGenerator) generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.model, f.contents, f.config = model, contents, cfg
	if len(f.results) == 0 {
		return textResponse(""), nil
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.resp, r.err
}

func (f *fakeGenerator) stream(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.mu.Lock()
	f.streamCalls++
	f.model, f.contents, f.config = model, contents, cfg
	var script []fakeResult
	if len(f.scripts) > 0 {
		script = f.scripts[0]
		f.scripts = f.scripts[1:]
	}
	f.mu.Unlock()

	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, r := range script {
			if !yield(r.resp, r.err) {
				return
			}
		}
	}
}

func ok(text string) fakeResult {
	return fakeResult{resp: textResponse(text)}
}

func fail(err error) fakeResult {
	return fakeResult{err: err}
}

// recordingSleep captures requested delays without waiting
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func testPolicy(rs *recordingSleep) RetryPolicy {
	p := DefaultRetryPolicy()
	p.Sleep = rs.sleep
	return p
}

func newTestClient(gen *fakeGenerator, rs *recordingSleep, opts ...ClientOption) *GeminiClient {
	all := append([]ClientOption{withGenerator(gen), WithRetryPolicy(testPolicy(rs))}, opts...)
	return newClient(all...)
}
