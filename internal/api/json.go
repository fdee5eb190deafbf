package api

import (
	"context"
	"encoding/json"
	"strings"

	"google.golang.org/genai"

	apierrors "github.com/diogo/techtouch/internal/errors"
	"github.com/diogo/techtouch/internal/jsonl"
)

// GenerateJSON requests a schema-constrained JSON response and decodes it
// into out. An empty response leaves out untouched.
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, out any, opts *GenerateOptions) error {
	output, err := c.generate(ctx, "generate_json", prompt, opts, func(cfg *genai.GenerateContentConfig) {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = schema
	})
	if err != nil {
		return err
	}

	body := stripFence(output.Text)
	if body == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return apierrors.NewParseError("invalid JSON response: "+err.Error(), truncate(body, 200))
	}
	return nil
}

// StreamJSONLines streams a response and calls fn with every complete JSON
// object line as soon as it arrives. Objects delivered before a stream
// failure are not retracted.
func (c *GeminiClient) StreamJSONLines(ctx context.Context, prompt string, opts *GenerateOptions, fn func(raw []byte) error) error {
	stream, err := c.GenerateContentStream(ctx, prompt, opts)
	if err != nil {
		return err
	}
	return DecodeStream(stream, fn)
}

// DecodeStream feeds a Stream into a jsonl decoder until it ends
func DecodeStream(stream *Stream, fn func(raw []byte) error) error {
	defer stream.Close()

	dec := jsonl.NewDecoder(fn)
	for stream.Next() {
		if _, err := dec.WriteString(stream.Chunk()); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return err
	}
	return dec.Flush()
}

// stripFence removes a surrounding ```json fence some models add
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
