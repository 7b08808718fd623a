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

// NotificationService creates, retracts and serves per-user notifications.
type NotificationService interface {
	Notify(ctx context.Context, t models.NotificationType, sourceID, targetID uint, postID *uint, content *string) (*models.Notification, error)
	RetractLike(ctx context.Context, sourceID, targetID uint, postID *uint) error
	RetractFollow(ctx context.Context, sourceID, targetID uint) error
	List(ctx context.Context, targetID uint, page models.Page) (*models.NotificationPage, error)
	UnreadCount(ctx context.Context, targetID uint) (int64, error)
	MarkRead(ctx context.Context, id, targetID uint) error
	MarkAllRead(ctx context.Context, targetID uint) (int64, error)
	Delete(ctx context.Context, id, targetID uint) error
	DeleteAll(ctx context.Context, targetID uint) (int64, error)
	PurgeByRelatedPost(ctx context.Context, postID uint) (int64, error)
}

type notificationService struct {
	Config *config.Config
	repo   db.NotificationRepository
	bus    events.Publisher
	log    *zap.SugaredLogger
}

func NewNotificationService(repo db.NotificationRepository, bus events.Publisher, conf *config.Config, log *zap.SugaredLogger) NotificationService {
	return &notificationService{
		Config: conf,
		repo:   repo,
		bus:    bus,
		log:    log,
	}
}

// Notify records a notification for targetID. Self-actions and duplicates of
// an outstanding LIKE or FOLLOW are skipped; both return a nil notification.
func (s *notificationService) Notify(ctx context.Context, t models.NotificationType, sourceID, targetID uint, postID *uint, content *string) (*models.Notification, error) {
	if !t.Valid() {
		return nil, errs.Validation("unknown notification type", errs.FieldError{Field: "type", Message: string(t) + " is not a notification type"})
	}
	if sourceID == targetID {
		return nil, nil
	}

	n := &models.Notification{
		Type:     t,
		Status:   models.NotificationUnread,
		SourceID: sourceID,
		TargetID: targetID,
		PostID:   postID,
		Content:  content,
		DedupKey: t.DedupKey(sourceID, targetID, postID),
	}
	created, err := s.repo.Create(ctx, n)
	if err != nil {
		return nil, err
	}
	if !created {
		s.log.Debugw("duplicate notification skipped", "type", t, "source", sourceID, "target", targetID)
		return nil, nil
	}

	metrics.NotificationsCreated.WithLabelValues(string(t)).Inc()
	s.bus.Publish(ctx, events.Event{Type: events.NotificationCreated, Notification: n})
	return n, nil
}

func (s *notificationService) RetractLike(ctx context.Context, sourceID, targetID uint, postID *uint) error {
	return s.retract(ctx, models.NotificationLike.DedupKey(sourceID, targetID, postID))
}

func (s *notificationService) RetractFollow(ctx context.Context, sourceID, targetID uint) error {
	return s.retract(ctx, models.NotificationFollow.DedupKey(sourceID, targetID, nil))
}

func (s *notificationService) retract(ctx context.Context, key *string) error {
	if key == nil {
		return nil
	}
	_, err := s.repo.DeleteByDedupKey(ctx, *key)
	return err
}

func (s *notificationService) List(ctx context.Context, targetID uint, page models.Page) (*models.NotificationPage, error) {
	page = page.Normalize(s.Config.DefaultPageSize, s.Config.MaxPageSize)
	list, total, err := s.repo.List(ctx, targetID, page)
	if err != nil {
		return nil, err
	}
	return &models.NotificationPage{
		Notifications: list,
		Page:          page.Number,
		Size:          page.Size,
		Total:         total,
	}, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, targetID uint) (int64, error) {
	return s.repo.CountUnread(ctx, targetID)
}

func (s *notificationService) MarkRead(ctx context.Context, id, targetID uint) error {
	return s.repo.MarkRead(ctx, id, targetID)
}

func (s *notificationService) MarkAllRead(ctx context.Context, targetID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, targetID)
}

func (s *notificationService) Delete(ctx context.Context, id, targetID uint) error {
	return s.repo.Delete(ctx, id, targetID)
}

func (s *notificationService) DeleteAll(ctx context.Context, targetID uint) (int64, error) {
	return s.repo.DeleteAll(ctx, targetID)
}

func (s *notificationService) PurgeByRelatedPost(ctx context.Context, postID uint) (int64, error) {
	removed, err := s.repo.DeleteByPost(ctx, postID)
	if err != nil {
		return 0, err
	}
	s.log.Infow("purged notifications for deleted post", "post_id", postID, "count", removed)
	return removed, nil
}
