package chat

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/diogo/techtouch/internal/api"
	apierrors "github.com/diogo/techtouch/internal/errors"
	"github.com/diogo/techtouch/internal/models"
)

// ImageEdit is the result of EditImage
type ImageEdit struct {
	Text  string
	Paths []string
}

// EditImage asks the image model to edit the picture at imagePath and saves
// the results into the download directory
func (s *Service) EditImage(ctx context.Context, prompt, imagePath string) (*ImageEdit, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, apierrors.ErrEmptyPrompt
	}

	img, err := api.LoadInlineFile(imagePath)
	if err != nil {
		return nil, err
	}
	if !img.IsImage() {
		return nil, fmt.Errorf("%s is not a supported image (%s)", img.Name, img.MIMEType)
	}

	output, err := s.client.EditImage(ctx, prompt, img)
	if err != nil {
		return nil, err
	}
	if output.IsEmpty() {
		return nil, apierrors.ErrNoContent
	}

	prefix := "edited-" + strings.TrimSuffix(img.Name, filepath.Ext(img.Name))
	paths, err := api.SaveImages(output, s.downloadDir, prefix)
	if err != nil {
		return nil, err
	}

	s.logger.Info("image edited", zap.String("source", img.Name), zap.Int("images", len(paths)))
	return &ImageEdit{Text: strings.TrimSpace(output.Text), Paths: paths}, nil
}

// EditImageInConversation runs EditImage and records the exchange in a conversation
func (s *Service) EditImageInConversation(ctx context.Context, convID, prompt, imagePath string, sink Sink) error {
	user := models.NewMessage(models.SenderUser, prompt)
	if img, err := api.LoadInlineFile(imagePath); err == nil && img.IsImage() {
		user.ImagePreview = img.DataURL()
	}
	if err := s.append(convID, user, sink); err != nil {
		return err
	}

	result, err := s.EditImage(ctx, prompt, imagePath)
	if err != nil {
		s.logger.Error("image edit failed", zap.Error(err))
		ai := models.NewMessage(models.SenderAI, apierrors.UserMessage(err, s.lang))
		if aerr := s.append(convID, ai, sink); aerr != nil {
			return aerr
		}
		sink.emit(Event{Type: EventError, ConversationID: convID, Message: ai, Err: err})
		return err
	}

	text := result.Text
	if text == "" {
		text = s.text(msgImageEdited)
	}
	ai := models.NewMessage(models.SenderAI, text)
	if len(result.Paths) > 0 {
		ai.DownloadLink = &models.DownloadLink{
			URL:      result.Paths[0],
			Filename: filepath.Base(result.Paths[0]),
			Type:     downloadType(result.Paths[0]),
		}
	}
	if err := s.append(convID, ai, sink); err != nil {
		return err
	}
	sink.emit(Event{Type: EventDone, ConversationID: convID, Message: ai})
	return nil
}

func downloadType(path string) models.DownloadType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return models.DownloadJPG
	default:
		return models.DownloadPNG
	}
}
