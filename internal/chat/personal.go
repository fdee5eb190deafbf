package chat

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/diogo/techtouch/internal/api"
	apierrors "github.com/diogo/techtouch/internal/errors"
	"github.com/diogo/techtouch/internal/models"
)

// ErrEmptyQuestion is returned by AskPersonal for blank questions
var ErrEmptyQuestion = errors.New("question cannot be empty")

const personalSystemInstruction = "You are a helpful assistant answering questions based only on provided data."

// AskPersonal answers a question about the personal directory in a single
// request. The AI message lists the local search hits as StructuredData.
func (s *Service) AskPersonal(ctx context.Context, convID, question string, sink Sink) (models.ChatMessage, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return models.ChatMessage{}, ErrEmptyQuestion
	}

	if err := s.append(convID, models.NewMessage(models.SenderUser, question), sink); err != nil {
		return models.ChatMessage{}, err
	}

	ai := models.NewMessage(models.SenderAI, "")
	ai.StructuredData = s.personal.Search(question)

	prompt, err := s.personal.Prompt(question)
	if err == nil {
		var output *models.ModelOutput
		output, err = s.client.GenerateContent(ctx, prompt, &api.GenerateOptions{
			Model:             s.model,
			SystemInstruction: personalSystemInstruction,
		})
		if err == nil {
			ai.Text = strings.TrimSpace(output.Text)
			if ai.Text == "" {
				err = apierrors.ErrNoContent
			}
		}
	}

	if err != nil {
		s.logger.Error("personal info request failed", zap.Error(err))
		ai.Text = apierrors.UserMessage(err, s.lang)
		if aerr := s.append(convID, ai, sink); aerr != nil {
			return ai, aerr
		}
		sink.emit(Event{Type: EventError, ConversationID: convID, Message: ai, Err: err})
		return ai, err
	}

	if err := s.append(convID, ai, sink); err != nil {
		return ai, err
	}
	sink.emit(Event{Type: EventDone, ConversationID: convID, Message: ai})
	return ai, nil
}
