package api

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/genai"

	apierrors "github.com/diogo/techtouch/internal/errors"
	"github.com/diogo/techtouch/internal/models"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000IHDR")

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(context.Background(), "")
	if !errors.Is(err, apierrors.ErrNoAPIKey) {
		t.Fatalf("NewClient() error = %v, want ErrNoAPIKey", err)
	}
	if !apierrors.IsAuthError(err) {
		t.Error("missing key should count as an auth error")
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := newClient()
	if c.GetModel() != models.DefaultModel {
		t.Errorf("model = %v, want %v", c.GetModel(), models.DefaultModel)
	}
	if diff := cmp.Diff(DefaultGenerationConfig(), c.genCfg); diff != "" {
		t.Errorf("generation config mismatch (-want +got):\n%s", diff)
	}
	if c.GetRetryPolicy().MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", c.GetRetryPolicy().MaxAttempts)
	}
}

func TestClient_SetModel(t *testing.T) {
	c := newClient(WithModel(models.ModelPro))
	if c.GetModel() != models.ModelPro {
		t.Fatalf("GetModel() = %v, want pro", c.GetModel())
	}
	c.SetModel(models.ModelFlashLite)
	if c.GetModel() != models.ModelFlashLite {
		t.Errorf("GetModel() = %v, want lite", c.GetModel())
	}
}

func TestClient_ClosedRejectsCalls(t *testing.T) {
	c := newTestClient(&fakeGenerator{}, &recordingSleep{})
	c.Close()
	if !c.IsClosed() {
		t.Fatal("IsClosed() = false after Close")
	}
	if _, err := c.GenerateContent(context.Background(), "hi", nil); err == nil {
		t.Error("GenerateContent on closed client should fail")
	}
	if _, err := c.GenerateContentStream(context.Background(), "hi", nil); err == nil {
		t.Error("GenerateContentStream on closed client should fail")
	}
}

func TestGenerateContent_RequestShape(t *testing.T) {
	gen := &fakeGenerator{results: []fakeResult{ok("answer")}}
	c := newTestClient(gen, &recordingSleep{})

	img := InlineFile{Name: "a.png", MIMEType: "image/png", Data: pngHeader}
	out, err := c.GenerateContent(context.Background(), "  describe this  ", &GenerateOptions{
		SystemInstruction: "be brief",
		Images:            []InlineFile{img},
		UseSearch:         true,
		History: []Turn{
			{Role: "user", Text: "hello"},
			{Role: "model", Text: "hi there"},
			{Role: "user", Text: "   "},
		},
	})
	if err != nil {
		t.Fatalf("GenerateContent() error = %v", err)
	}
	if out.Text != "answer" {
		t.Errorf("Text = %q, want answer", out.Text)
	}
	if gen.model != models.DefaultModel.Name {
		t.Errorf("model = %q, want %q", gen.model, models.DefaultModel.Name)
	}

	if len(gen.contents) != 3 {
		t.Fatalf("contents = %d, want 3 (two history turns + prompt)", len(gen.contents))
	}
	if gen.contents[1].Role != "model" {
		t.Errorf("history role = %q, want model", gen.contents[1].Role)
	}

	last := gen.contents[2]
	if len(last.Parts) != 2 {
		t.Fatalf("final parts = %d, want 2", len(last.Parts))
	}
	if last.Parts[0].InlineData == nil || !bytes.Equal(last.Parts[0].InlineData.Data, pngHeader) {
		t.Error("image part should come first")
	}
	if last.Parts[1].Text != "describe this" {
		t.Errorf("text part = %q, want trimmed prompt", last.Parts[1].Text)
	}

	cfg := gen.config
	if cfg.Temperature == nil || *cfg.Temperature != models.DefaultTemperature {
		t.Errorf("Temperature = %v, want %v", cfg.Temperature, models.DefaultTemperature)
	}
	if cfg.TopK == nil || *cfg.TopK != models.DefaultTopK {
		t.Errorf("TopK = %v, want %v", cfg.TopK, models.DefaultTopK)
	}
	if cfg.MaxOutputTokens != models.DefaultMaxOutputTokens {
		t.Errorf("MaxOutputTokens = %d, want %d", cfg.MaxOutputTokens, models.DefaultMaxOutputTokens)
	}
	if cfg.SystemInstruction == nil || cfg.SystemInstruction.Parts[0].Text != "be brief" {
		t.Error("system instruction not set")
	}
	if len(cfg.Tools) != 1 || cfg.Tools[0].GoogleSearch == nil {
		t.Errorf("tools = %+v, want google search", cfg.Tools)
	}
}

func TestGenerateContent_TemperatureOverride(t *testing.T) {
	gen := &fakeGenerator{results: []fakeResult{ok("x")}}
	c := newTestClient(gen, &recordingSleep{})

	temp := float32(0.2)
	if _, err := c.GenerateContent(context.Background(), "x", &GenerateOptions{Temperature: &temp, Model: models.ModelPro}); err != nil {
		t.Fatal(err)
	}
	if *gen.config.Temperature != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", *gen.config.Temperature)
	}
	if gen.model != models.ModelPro.Name {
		t.Errorf("model = %q, want pro", gen.model)
	}
}

func TestGenerateContent_EmptyPrompt(t *testing.T) {
	gen := &fakeGenerator{}
	c := newTestClient(gen, &recordingSleep{})

	_, err := c.GenerateContent(context.Background(), "   ", nil)
	if !errors.Is(err, apierrors.ErrEmptyPrompt) {
		t.Fatalf("error = %v, want ErrEmptyPrompt", err)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times, want 0", gen.calls)
	}
}

func TestGenerateContent_RetriesOverloaded(t *testing.T) {
	gen := &fakeGenerator{results: []fakeResult{
		fail(genai.APIError{Code: 503, Status: "UNAVAILABLE", Message: "The model is overloaded."}),
		fail(errors.New("read tcp: connection reset by peer")),
		ok("finally"),
	}}
	rs := &recordingSleep{}
	c := newTestClient(gen, rs)

	out, err := c.GenerateContent(context.Background(), "hi", nil)
	if err != nil {
		t.Fatalf("GenerateContent() error = %v", err)
	}
	if out.Text != "finally" {
		t.Errorf("Text = %q", out.Text)
	}
	if gen.calls != 3 {
		t.Errorf("calls = %d, want 3", gen.calls)
	}
	if len(rs.delays) != 2 {
		t.Errorf("sleeps = %d, want 2", len(rs.delays))
	}
}

func TestGenerateContent_QuotaExhaustion(t *testing.T) {
	quota := genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "Quota exceeded"}
	gen := &fakeGenerator{results: []fakeResult{fail(quota), fail(quota), fail(quota), ok("never")}}
	c := newTestClient(gen, &recordingSleep{})

	_, err := c.GenerateContent(context.Background(), "hi", nil)
	if !apierrors.IsRateLimitError(err) {
		t.Fatalf("error = %v, want rate limit", err)
	}
	if gen.calls != 3 {
		t.Errorf("calls = %d, want 3", gen.calls)
	}
	if msg := apierrors.UserMessage(err, apierrors.LangArabic); !strings.Contains(msg, "Quota Exceeded") {
		t.Errorf("UserMessage = %q, want quota message", msg)
	}
}

func TestGenerateContent_Blocked(t *testing.T) {
	gen := &fakeGenerator{results: []fakeResult{{resp: &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: "SAFETY"},
	}}}}
	c := newTestClient(gen, &recordingSleep{})

	_, err := c.GenerateContent(context.Background(), "hi", nil)
	if !apierrors.IsBlockedError(err) {
		t.Fatalf("error = %v, want blocked", err)
	}
	if gen.calls != 1 {
		t.Errorf("blocked responses must not be retried, calls = %d", gen.calls)
	}
}

func TestOutputFromResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			FinishReason: "STOP",
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: "Hello "},
				{InlineData: &genai.Blob{MIMEType: "image/png", Data: pngHeader}},
				{Text: "world"},
			}},
			GroundingMetadata: &genai.GroundingMetadata{GroundingChunks: []*genai.GroundingChunk{
				{Web: &genai.GroundingChunkWeb{URI: "https://a.example"}},
				{Web: &genai.GroundingChunkWeb{URI: "https://a.example"}},
				{Web: &genai.GroundingChunkWeb{URI: "https://b.example"}},
				{},
			}},
		}},
	}

	out, err := outputFromResponse(resp)
	if err != nil {
		t.Fatalf("outputFromResponse() error = %v", err)
	}
	if out.Text != "Hello world" {
		t.Errorf("Text = %q", out.Text)
	}
	if out.Thoughts != "thinking..." {
		t.Errorf("Thoughts = %q", out.Thoughts)
	}
	if len(out.Images) != 1 || out.Images[0].MIMEType != "image/png" {
		t.Errorf("Images = %+v", out.Images)
	}
	if diff := cmp.Diff([]string{"https://a.example", "https://b.example"}, out.Sources); diff != "" {
		t.Errorf("Sources mismatch (-want +got):\n%s", diff)
	}
	if out.FinishReason != "STOP" {
		t.Errorf("FinishReason = %q", out.FinishReason)
	}
}

func TestOutputFromResponse_NoCandidates(t *testing.T) {
	if _, err := outputFromResponse(&genai.GenerateContentResponse{}); !errors.Is(err, apierrors.ErrNoContent) {
		t.Errorf("error = %v, want ErrNoContent", err)
	}
	if _, err := outputFromResponse(nil); !errors.Is(err, apierrors.ErrInvalidResponse) {
		t.Errorf("error = %v, want ErrInvalidResponse", err)
	}
}

func TestEditImage(t *testing.T) {
	edited := []byte("edited-bytes")
	gen := &fakeGenerator{results: []fakeResult{{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{
			{Text: "Here you go"},
			{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: edited}},
		}}}},
	}}}}
	c := newTestClient(gen, &recordingSleep{})

	img := InlineFile{Name: "cat.png", MIMEType: "image/png", Data: pngHeader}
	out, err := c.EditImage(context.Background(), "make it blue", img)
	if err != nil {
		t.Fatalf("EditImage() error = %v", err)
	}
	if !out.HasImages() || !bytes.Equal(out.Images[0].Data, edited) {
		t.Errorf("Images = %+v", out.Images)
	}
	if gen.model != models.DefaultImageModel.Name {
		t.Errorf("model = %q, want image model", gen.model)
	}
	if diff := cmp.Diff([]string{"TEXT", "IMAGE"}, gen.config.ResponseModalities); diff != "" {
		t.Errorf("modalities mismatch (-want +got):\n%s", diff)
	}
}

func TestEditImage_RejectsNonImage(t *testing.T) {
	c := newTestClient(&fakeGenerator{}, &recordingSleep{})
	_, err := c.EditImage(context.Background(), "x", InlineFile{Name: "a.pdf", MIMEType: "application/pdf", Data: []byte("%PDF")})
	if err == nil {
		t.Fatal("EditImage() with pdf should fail")
	}
}

func TestEditImage_EmptyResult(t *testing.T) {
	gen := &fakeGenerator{results: []fakeResult{ok("")}}
	c := newTestClient(gen, &recordingSleep{})
	img := InlineFile{Name: "cat.png", MIMEType: "image/png", Data: pngHeader}
	if _, err := c.EditImage(context.Background(), "x", img); !errors.Is(err, apierrors.ErrNoContent) {
		t.Errorf("error = %v, want ErrNoContent", err)
	}
}

func TestSaveImages(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	out := &models.ModelOutput{Images: []models.GeneratedImage{
		{MIMEType: "image/png", Data: []byte("one")},
		{MIMEType: "image/jpeg", Data: []byte("two")},
	}}

	paths, err := SaveImages(out, dir, "edit: cat?")
	if err != nil {
		t.Fatalf("SaveImages() error = %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("paths = %v", paths)
	}
	if filepath.Ext(paths[0]) != ".png" || filepath.Ext(paths[1]) != ".jpg" {
		t.Errorf("extensions = %v", paths)
	}
	if strings.ContainsAny(filepath.Base(paths[0]), ":?") {
		t.Errorf("unsanitized filename %q", paths[0])
	}
	data, err := os.ReadFile(paths[1])
	if err != nil || string(data) != "two" {
		t.Errorf("ReadFile = %q, %v", data, err)
	}

	if paths, err := SaveImages(&models.ModelOutput{}, dir, "x"); paths != nil || err != nil {
		t.Errorf("SaveImages(no images) = %v, %v", paths, err)
	}
}
