package db

import (
	"context"

	errs "github.com/techagentng/citizenchat/errors"
	"github.com/techagentng/citizenchat/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) (bool, error)
	DeleteByDedupKey(ctx context.Context, key string) (int64, error)
	List(ctx context.Context, targetID uint, page models.Page) ([]models.Notification, int64, error)
	CountUnread(ctx context.Context, targetID uint) (int64, error)
	MarkRead(ctx context.Context, id, targetID uint) error
	MarkAllRead(ctx context.Context, targetID uint) (int64, error)
	Delete(ctx context.Context, id, targetID uint) error
	DeleteAll(ctx context.Context, targetID uint) (int64, error)
	DeleteByPost(ctx context.Context, postID uint) (int64, error)
}

type notificationRepo struct {
	DB *gorm.DB
}

func NewNotificationRepo(db *GormDB) NotificationRepository {
	return &notificationRepo{db.DB}
}

// Create inserts n unless a notification with the same dedup key already
// exists. The existence check and the insert are a single statement, so two
// racing likes produce exactly one row. It reports whether a row was written.
func (r *notificationRepo) Create(ctx context.Context, n *models.Notification) (bool, error) {
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedup_key"}},
		DoNothing: true,
	}).Create(n)
	if res.Error != nil {
		return false, storageErr(res.Error, "notification")
	}
	return res.RowsAffected == 1, nil
}

func (r *notificationRepo) DeleteByDedupKey(ctx context.Context, key string) (int64, error) {
	res := r.DB.WithContext(ctx).Where("dedup_key = ?", key).Delete(&models.Notification{})
	if res.Error != nil {
		return 0, storageErr(res.Error, "notification")
	}
	return res.RowsAffected, nil
}

func (r *notificationRepo) List(ctx context.Context, targetID uint, page models.Page) ([]models.Notification, int64, error) {
	var (
		notifications []models.Notification
		total         int64
	)
	q := r.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("target_id = ?", targetID).
		Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, storageErr(err, "notifications")
	}
	err := q.Order("created_at DESC, id DESC").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, storageErr(err, "notifications")
	}
	return notifications, total, nil
}

func (r *notificationRepo) CountUnread(ctx context.Context, targetID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("target_id = ? AND status = ?", targetID, models.NotificationUnread).
		Count(&count).Error
	if err != nil {
		return 0, storageErr(err, "notifications")
	}
	return count, nil
}

// MarkRead is scoped to the owner: a notification that exists but targets
// someone else is reported as not found.
func (r *notificationRepo) MarkRead(ctx context.Context, id, targetID uint) error {
	res := r.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND target_id = ?", id, targetID).
		Update("status", models.NotificationRead)
	if res.Error != nil {
		return storageErr(res.Error, "notification")
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("notification not found")
	}
	return nil
}

func (r *notificationRepo) MarkAllRead(ctx context.Context, targetID uint) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("target_id = ? AND status = ?", targetID, models.NotificationUnread).
		Update("status", models.NotificationRead)
	if res.Error != nil {
		return 0, storageErr(res.Error, "notifications")
	}
	return res.RowsAffected, nil
}

func (r *notificationRepo) Delete(ctx context.Context, id, targetID uint) error {
	res := r.DB.WithContext(ctx).
		Where("id = ? AND target_id = ?", id, targetID).
		Delete(&models.Notification{})
	if res.Error != nil {
		return storageErr(res.Error, "notification")
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("notification not found")
	}
	return nil
}

func (r *notificationRepo) DeleteAll(ctx context.Context, targetID uint) (int64, error) {
	res := r.DB.WithContext(ctx).Where("target_id = ?", targetID).Delete(&models.Notification{})
	if res.Error != nil {
		return 0, storageErr(res.Error, "notifications")
	}
	return res.RowsAffected, nil
}

func (r *notificationRepo) DeleteByPost(ctx context.Context, postID uint) (int64, error) {
	res := r.DB.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.Notification{})
	if res.Error != nil {
		return 0, storageErr(res.Error, "notifications")
	}
	return res.RowsAffected, nil
}
