package services

import (
	"context"

	"github.com/techagentng/citizenchat/config"
	"github.com/techagentng/citizenchat/db"
	errs "github.com/techagentng/citizenchat/errors"
	"github.com/techagentng/citizenchat/events"
	"github.com/techagentng/citizenchat/metrics"
	"github.com/techagentng/citizenchat/models"
	"go.uber.org/zap"
)

// MessageService is the direct-messaging surface used by both the REST
// handlers and the realtime gateway.
type MessageService interface {
	Send(ctx context.Context, senderID uint, req *models.SendMessageRequest) (*models.Message, error)
	StartConversation(ctx context.Context, callerID, otherID uint) (*models.ConversationView, error)
	ListConversations(ctx context.Context, userID uint, page models.Page) ([]models.ConversationView, int64, error)
	ListMessages(ctx context.Context, callerID uint, key string, page models.Page) (*models.MessagePage, error)
	ListMessagesWith(ctx context.Context, callerID, otherID uint, page models.Page) (*models.MessagePage, error)
	MarkRead(ctx context.Context, callerID uint, key string) error
	UnreadCount(ctx context.Context, userID uint) (int64, error)
	ReconcileUnread(ctx context.Context, key string) ([]models.UnreadDrift, error)
}

type messageService struct {
	Config *config.Config
	repo   db.ConversationRepository
	bus    events.Publisher
	log    *zap.SugaredLogger
}

func NewMessageService(repo db.ConversationRepository, bus events.Publisher, conf *config.Config, log *zap.SugaredLogger) MessageService {
	return &messageService{
		Config: conf,
		repo:   repo,
		bus:    bus,
		log:    log,
	}
}

// Send validates and persists the message. The MessageSent event is published
// only once the write has committed.
func (s *messageService) Send(ctx context.Context, senderID uint, req *models.SendMessageRequest) (*models.Message, error) {
	if err := errs.ValidateStruct(req); err != nil {
		return nil, err
	}
	if req.ReceiverID == senderID {
		return nil, errs.Validation("cannot send a message to yourself",
			errs.FieldError{Field: "receiver_id", Message: "receiver_id must differ from the sender"})
	}

	msg, conv, err := s.repo.AppendMessage(ctx, senderID, req.ReceiverID, req.Content)
	if err != nil {
		return nil, err
	}
	metrics.MessagesSent.Inc()
	s.bus.Publish(ctx, events.Event{
		Type:            events.MessageSent,
		ConversationKey: conv.Key,
		Message:         msg,
	})
	return msg, nil
}

func (s *messageService) StartConversation(ctx context.Context, callerID, otherID uint) (*models.ConversationView, error) {
	if callerID == otherID {
		return nil, errs.Validation("cannot start a conversation with yourself")
	}
	conv, err := s.repo.ResolveOrCreate(ctx, callerID, otherID)
	if err != nil {
		return nil, err
	}
	view := conv.ViewFor(callerID)
	return &view, nil
}

func (s *messageService) ListConversations(ctx context.Context, userID uint, page models.Page) ([]models.ConversationView, int64, error) {
	page = s.normalize(page)
	convs, total, err := s.repo.ListForUser(ctx, userID, page)
	if err != nil {
		return nil, 0, err
	}
	views := make([]models.ConversationView, 0, len(convs))
	for i := range convs {
		views = append(views, convs[i].ViewFor(userID))
	}
	return views, total, nil
}

// ListMessages returns a page of the conversation oldest first and marks it
// read for the caller. Callers outside the conversation are forbidden.
func (s *messageService) ListMessages(ctx context.Context, callerID uint, key string, page models.Page) (*models.MessagePage, error) {
	if err := authorizeKey(key, callerID); err != nil {
		return nil, err
	}
	return s.listAndMarkRead(ctx, callerID, key, page)
}

func (s *messageService) ListMessagesWith(ctx context.Context, callerID, otherID uint, page models.Page) (*models.MessagePage, error) {
	if callerID == otherID {
		return nil, errs.Validation("cannot list messages with yourself")
	}
	return s.listAndMarkRead(ctx, callerID, models.CanonicalKey(callerID, otherID), page)
}

func (s *messageService) listAndMarkRead(ctx context.Context, callerID uint, key string, page models.Page) (*models.MessagePage, error) {
	page = s.normalize(page)
	msgs, total, err := s.repo.ListMessages(ctx, key, page)
	if err != nil {
		return nil, err
	}
	if err := s.markRead(ctx, callerID, key); err != nil {
		return nil, err
	}
	return &models.MessagePage{
		Messages: msgs,
		Page:     page.Number,
		Size:     page.Size,
		Total:    total,
	}, nil
}

func (s *messageService) MarkRead(ctx context.Context, callerID uint, key string) error {
	if err := authorizeKey(key, callerID); err != nil {
		return err
	}
	return s.markRead(ctx, callerID, key)
}

func (s *messageService) markRead(ctx context.Context, callerID uint, key string) error {
	flipped, err := s.repo.MarkRead(ctx, key, callerID)
	if err != nil {
		return err
	}
	s.bus.Publish(ctx, events.Event{
		Type:            events.ConversationRead,
		ConversationKey: key,
		ReaderID:        callerID,
	})
	if flipped > 0 {
		s.log.Debugw("conversation marked read", "conversation_key", key, "reader", callerID, "messages", flipped)
	}
	return nil
}

func (s *messageService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.UnreadTotal(ctx, userID)
}

func (s *messageService) ReconcileUnread(ctx context.Context, key string) ([]models.UnreadDrift, error) {
	drifts, err := s.repo.Reconcile(ctx, key)
	if err != nil {
		return nil, err
	}
	for _, d := range drifts {
		s.log.Warnw("unread counter drift repaired", "conversation_key", d.ConversationKey, "user", d.UserID, "counter", d.Counter, "actual", d.Actual)
	}
	return drifts, nil
}

func (s *messageService) normalize(page models.Page) models.Page {
	return page.Normalize(s.Config.DefaultPageSize, s.Config.MaxPageSize)
}

// authorizeKey rejects malformed keys as not found and keys the caller is not
// part of as forbidden. Membership is derivable from the key alone.
func authorizeKey(key string, callerID uint) error {
	a, b, err := models.ParseKey(key)
	if err != nil {
		return errs.NotFound("conversation not found")
	}
	if a != callerID && b != callerID {
		return errs.Forbidden("you are not a participant of this conversation")
	}
	return nil
}
