package api

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	apierrors "github.com/diogo/techtouch/internal/errors"
	"github.com/diogo/techtouch/internal/models"
)

// Turn is a prior message replayed as conversation context
type Turn struct {
	// Role is "user" or "model"
	Role string
	Text string
}

// GenerateOptions contains options for content generation
type GenerateOptions struct {
	Model             models.Model
	SystemInstruction string
	// Images and Files are sent inline ahead of the prompt text, images first
	Images []InlineFile
	Files  []InlineFile
	// History is replayed before the prompt
	History []Turn
	// UseSearch enables the Google Search grounding tool
	UseSearch bool
	// URLContext lets the model read URLs mentioned in the prompt
	URLContext bool
	// Temperature overrides the client default when non-nil
	Temperature *float32
}

// GenerateContent sends a prompt and returns the complete response
func (c *GeminiClient) GenerateContent(ctx context.Context, prompt string, opts *GenerateOptions) (*models.ModelOutput, error) {
	return c.generate(ctx, "generate", prompt, opts, nil)
}

// generate runs one request under the retry policy. tweak may adjust the
// request config after the defaults are applied.
func (c *GeminiClient) generate(ctx context.Context, op, prompt string, opts *GenerateOptions, tweak func(*genai.GenerateContentConfig)) (*models.ModelOutput, error) {
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
	if tweak != nil {
		tweak(cfg)
	}
	model := c.modelFor(opts)

	start := time.Now()
	output, err := Retry(ctx, c.policy(op), func(ctx context.Context, attempt int) (*models.ModelOutput, error) {
		resp, err := c.gen.generate(ctx, model, contents, cfg)
		if err != nil {
			return nil, err
		}
		return outputFromResponse(resp)
	})
	if err != nil {
		c.logger.Error("request failed",
			zap.String("op", op),
			zap.String("model", model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	c.logger.Debug("request completed",
		zap.String("op", op),
		zap.String("model", model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("chars", len(output.Text)),
		zap.Int("images", len(output.Images)),
	)
	return output, nil
}

func (c *GeminiClient) modelFor(opts *GenerateOptions) string {
	if opts != nil && opts.Model.Name != "" {
		return opts.Model.Name
	}
	return c.GetModel().Name
}

// buildContents assembles history plus the final user turn. Inline files
// precede the prompt text.
func buildContents(prompt string, opts *GenerateOptions) ([]*genai.Content, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" && len(opts.Images) == 0 && len(opts.Files) == 0 {
		return nil, apierrors.ErrEmptyPrompt
	}

	contents := make([]*genai.Content, 0, len(opts.History)+1)
	for _, turn := range opts.History {
		if strings.TrimSpace(turn.Text) == "" {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if turn.Role == "model" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}

	parts := make([]*genai.Part, 0, len(opts.Images)+len(opts.Files)+1)
	for _, img := range opts.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	for _, f := range opts.Files {
		parts = append(parts, genai.NewPartFromBytes(f.Data, f.MIMEType))
	}
	if prompt != "" {
		parts = append(parts, genai.NewPartFromText(prompt))
	}
	contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))

	return contents, nil
}

func (c *GeminiClient) buildConfig(opts *GenerateOptions) *genai.GenerateContentConfig {
	c.mu.RLock()
	gc := c.genCfg
	c.mu.RUnlock()

	temp := gc.Temperature
	if opts.Temperature != nil {
		temp = *opts.Temperature
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temp),
		TopP:            genai.Ptr(gc.TopP),
		TopK:            genai.Ptr(gc.TopK),
		MaxOutputTokens: gc.MaxOutputTokens,
	}

	if si := strings.TrimSpace(opts.SystemInstruction); si != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(si)}}
	}
	if opts.UseSearch {
		cfg.Tools = append(cfg.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	if opts.URLContext {
		cfg.Tools = append(cfg.Tools, &genai.Tool{URLContext: &genai.URLContext{}})
	}

	return cfg
}

// outputFromResponse flattens the first candidate into a ModelOutput
func outputFromResponse(resp *genai.GenerateContentResponse) (*models.ModelOutput, error) {
	if resp == nil {
		return nil, apierrors.ErrInvalidResponse
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return nil, apierrors.NewBlockedError(string(fb.BlockReason))
	}
	if len(resp.Candidates) == 0 {
		return nil, apierrors.ErrNoContent
	}

	output := &models.ModelOutput{}
	cand := resp.Candidates[0]
	output.FinishReason = string(cand.FinishReason)
	if output.FinishReason == "SAFETY" {
		return nil, apierrors.NewBlockedError("response blocked by safety filters")
	}

	var text, thoughts strings.Builder
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			switch {
			case part.InlineData != nil && len(part.InlineData.Data) > 0:
				output.Images = append(output.Images, models.GeneratedImage{
					MIMEType: part.InlineData.MIMEType,
					Data:     part.InlineData.Data,
				})
			case part.Thought:
				thoughts.WriteString(part.Text)
			default:
				text.WriteString(part.Text)
			}
		}
	}
	output.Text = text.String()
	output.Thoughts = thoughts.String()
	output.Sources = groundingSources(cand)

	return output, nil
}

// groundingSources returns the unique web URIs cited by search grounding
func groundingSources(cand *genai.Candidate) []string {
	if cand == nil || cand.GroundingMetadata == nil {
		return nil
	}

	var sources []string
	seen := make(map[string]bool)
	for _, chunk := range cand.GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		if seen[chunk.Web.URI] {
			continue
		}
		seen[chunk.Web.URI] = true
		sources = append(sources, chunk.Web.URI)
	}
	return sources
}
