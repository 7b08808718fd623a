package db

import (
	"context"

	"github.com/techagentng/citizenchat/models"
	"gorm.io/gorm"
)

// PurgeReport counts what an account purge removed.
type PurgeReport struct {
	Messages      int64 `json:"messages"`
	Conversations int64 `json:"conversations"`
	Notifications int64 `json:"notifications"`
	Follows       int64 `json:"follows"`
	Likes         int64 `json:"likes"`
}

type PurgeRepository interface {
	PurgeAccount(ctx context.Context, userID uint) (*PurgeReport, error)
}

type purgeRepo struct {
	DB *gorm.DB
}

func NewPurgeRepo(db *GormDB) PurgeRepository {
	return &purgeRepo{db.DB}
}

// PurgeAccount removes every record this service holds for a deleted account
// in one transaction. Counters on the other party's side stay consistent:
// conversations go with their messages, and like counts on posts and comments
// the account had liked are decremented before the like rows are dropped.
func (r *purgeRepo) PurgeAccount(ctx context.Context, userID uint) (*PurgeReport, error) {
	report := &PurgeReport{}
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("sender_id = ? OR receiver_id = ?", userID, userID).Delete(&models.Message{})
		if res.Error != nil {
			return res.Error
		}
		report.Messages = res.RowsAffected

		res = tx.Where("participant_a = ? OR participant_b = ?", userID, userID).Delete(&models.Conversation{})
		if res.Error != nil {
			return res.Error
		}
		report.Conversations = res.RowsAffected

		res = tx.Where("source_id = ? OR target_id = ?", userID, userID).Delete(&models.Notification{})
		if res.Error != nil {
			return res.Error
		}
		report.Notifications = res.RowsAffected

		res = tx.Where("follower_id = ? OR followee_id = ?", userID, userID).Delete(&models.Follow{})
		if res.Error != nil {
			return res.Error
		}
		report.Follows = res.RowsAffected

		for kind, model := range map[models.TargetKind]interface{}{
			models.TargetPost:    &models.Post{},
			models.TargetComment: &models.Comment{},
		} {
			liked := tx.Model(&models.EngagementLike{}).
				Select("target_id").
				Where("target_kind = ? AND user_id = ?", kind, userID)
			err := tx.Model(model).
				Where("id IN (?)", liked).
				Update("like_count", gorm.Expr("like_count - 1")).Error
			if err != nil {
				return err
			}
		}

		res = tx.Where("user_id = ?", userID).Delete(&models.EngagementLike{})
		if res.Error != nil {
			return res.Error
		}
		report.Likes = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, storageErr(err, "account purge")
	}
	return report, nil
}
