package chat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/diogo/techtouch/internal/api"
	"github.com/diogo/techtouch/internal/document"
	apierrors "github.com/diogo/techtouch/internal/errors"
	"github.com/diogo/techtouch/internal/models"
)

// Translation is the result of TranslateFile
type Translation struct {
	Text string
	Path string
}

// translateDocument runs the document flow inside a conversation
func (s *Service) translateDocument(ctx context.Context, convID, path string, sink Sink) error {
	name := filepath.Base(path)
	s.system(convID, s.text(msgExtracting, name), sink)

	result, err := s.translate(ctx, path, func() {
		s.system(convID, s.text(msgExtracted), sink)
	})
	if err != nil {
		s.logger.Error("document translation failed", zap.String("file", name), zap.Error(err))
		text := apierrors.UserMessage(err, s.lang)
		if errors.Is(err, document.ErrNoText) || errors.Is(err, document.ErrUnsupported) {
			text = s.text(msgUnexpected)
		}
		msg := s.system(convID, text, sink)
		sink.emit(Event{Type: EventError, ConversationID: convID, Message: msg, Err: err})
		return err
	}

	ai := models.NewMessage(models.SenderAI, s.text(msgTranslated))
	ai.DownloadLink = &models.DownloadLink{
		URL:      result.Path,
		Filename: filepath.Base(result.Path),
		Type:     models.DownloadDOCX,
	}
	if err := s.append(convID, ai, sink); err != nil {
		return err
	}
	sink.emit(Event{Type: EventDone, ConversationID: convID, Message: ai})
	return nil
}

// TranslateFile translates a document to Arabic and writes a .docx next to
// the other downloads. It is used by the translate command.
func (s *Service) TranslateFile(ctx context.Context, path string) (*Translation, error) {
	return s.translate(ctx, path, nil)
}

func (s *Service) translate(ctx context.Context, path string, extracted func()) (*Translation, error) {
	doc, err := document.ExtractText(path)
	if err != nil {
		return nil, err
	}

	var prompt string
	opts := &api.GenerateOptions{Model: s.model}
	if doc.NeedsModel {
		f, err := api.LoadInlineFile(path)
		if err != nil {
			return nil, err
		}
		prompt = document.TranslationPromptForAttachment(doc.Name)
		opts.Files = []api.InlineFile{f}
	} else {
		prompt = document.TranslationPrompt(doc.Text)
	}
	if extracted != nil {
		extracted()
	}

	output, err := s.client.GenerateContent(ctx, prompt, opts)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(output.Text)
	if text == "" {
		return nil, document.ErrNoText
	}

	if err := os.MkdirAll(s.downloadDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	dest := filepath.Join(s.downloadDir, document.OutputName(path, ".docx"))
	if err := document.WriteDocx(dest, text); err != nil {
		return nil, err
	}
	if abs, err := filepath.Abs(dest); err == nil {
		dest = abs
	}

	s.logger.Info("document translated", zap.String("file", doc.Name), zap.String("output", dest))
	return &Translation{Text: text, Path: dest}, nil
}
