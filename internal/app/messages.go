package app

import (
	"context"
	"strings"

	"github.com/angelurano/tr3s/internal/apperr"
	"github.com/angelurano/tr3s/internal/feed"
	"github.com/angelurano/tr3s/internal/store"
	"github.com/angelurano/tr3s/internal/util"
)

type MessageInput struct {
	Body string `json:"body" validate:"min=1,max=500"`
}

func (s *Service) SendMessage(ctx context.Context, callerID, spaceID string, input MessageInput) (MessageView, error) {
	if err := requireCaller(callerID); err != nil {
		return MessageView{}, err
	}
	input.Body = strings.TrimSpace(input.Body)
	if err := validateInput("Invalid message", input); err != nil {
		return MessageView{}, err
	}
	res, err := s.participant(ctx, callerID, spaceID)
	if err != nil {
		return MessageView{}, err
	}
	saved, err := s.store.InsertMessage(ctx, store.Message{
		AuthorID:  callerID,
		SpaceID:   res.SpaceID,
		Body:      input.Body,
		CreatedAt: s.now(),
	})
	if err != nil {
		return MessageView{}, err
	}
	author, err := s.store.GetUserByID(ctx, callerID)
	var profile *store.Profile
	if err == nil {
		p := author.Profile()
		profile = &p
	}
	s.publish(ctx, feed.KindMessageCreated, res.SpaceID, callerID)
	return messageView(saved, profile), nil
}

// GetSpaceMessages returns recent messages, newest first.
func (s *Service) GetSpaceMessages(ctx context.Context, callerID, spaceID string) ([]MessageView, error) {
	res, err := s.participant(ctx, callerID, spaceID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListMessages(ctx, res.SpaceID, s.now().Add(-s.cfg.MessageWindow), s.cfg.MessageLimit)
	if err != nil {
		return nil, err
	}
	out := make([]MessageView, 0, len(rows))
	for _, row := range rows {
		out = append(out, messageView(row.Message, row.Author))
	}
	return out, nil
}

func (s *Service) DeleteMessage(ctx context.Context, callerID, messageID string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	id, ok := util.NormalizeID(messageID)
	if !ok {
		return apperr.NotFound("Message not found")
	}
	message, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	if message.AuthorID != callerID {
		return apperr.AccessDenied("Only the author can delete a message")
	}
	if err := s.store.DeleteMessage(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, feed.KindMessageDeleted, message.SpaceID, callerID)
	return nil
}
