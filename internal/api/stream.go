package api

import (
	"context"
	"errors"
	"iter"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	apierrors "github.com/diogo/techtouch/internal/errors"
)

// ErrStreamClosed ends a stream closed by its caller before the response
// was complete
var ErrStreamClosed = errors.New("stream closed before completion")

// Stream iterates over the text chunks of a streamed response.
//
// Failures before the first chunk are retried under the client policy.
// Once text has been delivered the stream is never restarted, so callers
// never see duplicated output.
type Stream struct {
	ctx    context.Context
	policy RetryPolicy
	logger *zap.Logger
	open   func(ctx context.Context) iter.Seq2[*genai.GenerateContentResponse, error]
	onDone func(text string, err error)

	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()

	chunk   string
	text    strings.Builder
	sources []string
	seen    map[string]bool
	err     error
	started bool
	attempt int
	done    bool
}

// GenerateContentStream sends a prompt and returns a Stream of text chunks
func (c *GeminiClient) GenerateContentStream(ctx context.Context, prompt string, opts *GenerateOptions) (*Stream, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &GenerateOptions{}
	}

	contents, err := buildContents(prompt, opts)
	if err != nil {
		return nil, err
	}
	cfg := c.buildConfig(opts)
	model := c.modelFor(opts)

	c.logger.Debug("opening stream", zap.String("model", model))

	return &Stream{
		ctx:    ctx,
		policy: c.policy("stream"),
		logger: c.logger,
		open: func(ctx context.Context) iter.Seq2[*genai.GenerateContentResponse, error] {
			return c.gen.stream(ctx, model, contents, cfg)
		},
	}, nil
}

// NewStaticStream returns a Stream that yields the given chunks and then
// fails with err, if non-nil. It is used by mocks and offline surfaces.
func NewStaticStream(chunks []string, err error) *Stream {
	return &Stream{
		ctx:    context.Background(),
		policy: NoRetry(),
		logger: zap.NewNop(),
		open: func(ctx context.Context) iter.Seq2[*genai.GenerateContentResponse, error] {
			return func(yield func(*genai.GenerateContentResponse, error) bool) {
				for _, chunk := range chunks {
					if !yield(textResponse(chunk), nil) {
						return
					}
				}
				if err != nil {
					yield(nil, err)
				}
			}
		},
	}
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(text, genai.RoleModel),
		}},
	}
}

// Next advances to the next non-empty chunk. It returns false when the
// stream ends or fails; check Err afterwards.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}

	for {
		if s.next == nil {
			s.next, s.stop = iter.Pull2(s.open(s.ctx))
		}

		resp, err, ok := s.next()
		if !ok {
			s.finish(nil)
			return false
		}

		if err == nil {
			err = streamBlocked(resp)
		}
		if err != nil {
			err = apierrors.Classify(err)
			if s.canRetry(err) {
				s.stop()
				s.next, s.stop = nil, nil

				delay := s.policy.Delay(s.attempt)
				s.attempt++
				if s.policy.OnRetry != nil {
					s.policy.OnRetry(s.attempt, delay, err)
				}
				if werr := s.policy.wait(s.ctx, delay); werr != nil {
					s.finish(werr)
					return false
				}
				continue
			}
			if !s.started && apierrors.IsRetryable(err) {
				err = exhausted(s.policy.attempts(), err)
			}
			s.finish(err)
			return false
		}

		s.collectSources(resp)
		text := chunkText(resp)
		if text == "" {
			continue
		}

		s.started = true
		s.chunk = text
		s.text.WriteString(text)
		return true
	}
}

func (s *Stream) canRetry(err error) bool {
	return !s.started &&
		s.attempt+1 < s.policy.attempts() &&
		apierrors.IsRetryable(err)
}

func (s *Stream) finish(err error) {
	s.done = true
	s.chunk = ""
	s.err = err
	if s.stop != nil {
		s.stop()
	}
	switch {
	case errors.Is(err, ErrStreamClosed):
		s.logger.Debug("stream closed early", zap.Int("received", s.text.Len()))
	case err != nil:
		s.logger.Warn("stream failed", zap.Bool("partial", s.started), zap.Error(err))
	}
	if s.onDone != nil {
		s.onDone(s.text.String(), err)
		s.onDone = nil
	}
}

// Chunk returns the text delivered by the last successful Next
func (s *Stream) Chunk() string {
	return s.chunk
}

// Text returns all text delivered so far
func (s *Stream) Text() string {
	return s.text.String()
}

// Sources returns the grounding URIs seen so far
func (s *Stream) Sources() []string {
	return s.sources
}

// Err returns the error that ended the stream, if any
func (s *Stream) Err() error {
	return s.err
}

// Close releases the underlying connection. It is safe to call twice.
// Closing a stream that has not ended sets Err to ErrStreamClosed.
func (s *Stream) Close() {
	if s.done {
		return
	}
	s.finish(ErrStreamClosed)
}

// Collect drains the stream and returns the concatenated text
func (s *Stream) Collect() (string, error) {
	defer s.Close()
	for s.Next() {
	}
	return s.Text(), s.Err()
}

func (s *Stream) collectSources(resp *genai.GenerateContentResponse) {
	if resp == nil || len(resp.Candidates) == 0 {
		return
	}
	for _, uri := range groundingSources(resp.Candidates[0]) {
		if s.seen == nil {
			s.seen = make(map[string]bool)
		}
		if s.seen[uri] {
			continue
		}
		s.seen[uri] = true
		s.sources = append(s.sources, uri)
	}
}

func streamBlocked(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return nil
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return apierrors.NewBlockedError(string(fb.BlockReason))
	}
	return nil
}

// chunkText returns the visible text of a streamed response
func chunkText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}
