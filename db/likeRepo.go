package db

import (
	"context"
	"errors"
	"fmt"

	errs "github.com/techagentng/citizenchat/errors"
	"github.com/techagentng/citizenchat/models"
	"gorm.io/gorm"
)

// LikeRepository keeps like rows and the like_count cache on posts and
// comments in step.
type LikeRepository interface {
	Toggle(ctx context.Context, kind models.TargetKind, targetID, userID uint) (*models.ToggleResult, error)
	IsLiked(ctx context.Context, kind models.TargetKind, targetID, userID uint) (bool, error)
	Count(ctx context.Context, kind models.TargetKind, targetID uint) (int, error)
	Reconcile(ctx context.Context, kind models.TargetKind, targetID uint) (*models.LikeDrift, error)
}

type likeRepo struct {
	DB *gorm.DB
}

func NewLikeRepo(db *GormDB) LikeRepository {
	return &likeRepo{db.DB}
}

func targetModel(kind models.TargetKind) (interface{}, error) {
	switch kind {
	case models.TargetPost:
		return &models.Post{}, nil
	case models.TargetComment:
		return &models.Comment{}, nil
	}
	return nil, errs.Validation(fmt.Sprintf("unknown like target %q", kind))
}

// lockTarget locks the liked entity row and returns its cached like count.
func lockTarget(tx *gorm.DB, kind models.TargetKind, targetID uint) (int, error) {
	return readTarget(tx.Clauses(forUpdate), kind, targetID)
}

func readTarget(tx *gorm.DB, kind models.TargetKind, targetID uint) (int, error) {
	switch kind {
	case models.TargetPost:
		var post models.Post
		if err := tx.Select("id", "like_count").First(&post, targetID).Error; err != nil {
			return 0, err
		}
		return post.LikeCount, nil
	case models.TargetComment:
		var comment models.Comment
		if err := tx.Select("id", "like_count").First(&comment, targetID).Error; err != nil {
			return 0, err
		}
		return comment.LikeCount, nil
	}
	return 0, errs.Validation(fmt.Sprintf("unknown like target %q", kind))
}

// Toggle flips the user's like on the target. The like row and the counter
// change together under a lock on the target row, so concurrent toggles by
// different users serialise and the counter always equals the row count.
func (lk *likeRepo) Toggle(ctx context.Context, kind models.TargetKind, targetID, userID uint) (*models.ToggleResult, error) {
	model, err := targetModel(kind)
	if err != nil {
		return nil, err
	}

	// Start a transaction to keep the like row and the counter consistent
	tx := lk.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, storageErr(tx.Error, "like")
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	count, err := lockTarget(tx, kind, targetID)
	if err != nil {
		tx.Rollback()
		return nil, storageErr(err, string(kind))
	}

	var existing models.EngagementLike
	err = tx.Where("target_kind = ? AND target_id = ? AND user_id = ?", kind, targetID, userID).Take(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		tx.Rollback()
		return nil, storageErr(err, "like")
	}

	result := &models.ToggleResult{}
	if err == nil {
		// Already liked: remove the row and decrement
		if err := tx.Delete(&existing).Error; err != nil {
			tx.Rollback()
			return nil, storageErr(err, "like")
		}
		count--
	} else {
		like := models.EngagementLike{TargetKind: kind, TargetID: targetID, UserID: userID}
		if err := tx.Create(&like).Error; err != nil {
			tx.Rollback()
			return nil, storageErr(err, "like")
		}
		count++
		result.Liked = true
	}

	if err := tx.Model(model).Where("id = ?", targetID).Update("like_count", count).Error; err != nil {
		tx.Rollback()
		return nil, storageErr(err, "like count")
	}

	if err := tx.Commit().Error; err != nil {
		return nil, storageErr(err, "like")
	}
	result.LikeCount = count
	return result, nil
}

func (lk *likeRepo) IsLiked(ctx context.Context, kind models.TargetKind, targetID, userID uint) (bool, error) {
	var n int64
	err := lk.DB.WithContext(ctx).Model(&models.EngagementLike{}).
		Where("target_kind = ? AND target_id = ? AND user_id = ?", kind, targetID, userID).
		Count(&n).Error
	if err != nil {
		return false, storageErr(err, "like")
	}
	return n > 0, nil
}

// Count returns the cached like count of the target.
func (lk *likeRepo) Count(ctx context.Context, kind models.TargetKind, targetID uint) (int, error) {
	count, err := readTarget(lk.DB.WithContext(ctx), kind, targetID)
	if err != nil {
		return 0, storageErr(err, string(kind))
	}
	return count, nil
}

// Reconcile recomputes the target's like_count from its like rows, repairing
// the counter when it drifted. It returns nil when no repair was needed.
func (lk *likeRepo) Reconcile(ctx context.Context, kind models.TargetKind, targetID uint) (*models.LikeDrift, error) {
	model, err := targetModel(kind)
	if err != nil {
		return nil, err
	}
	var drift *models.LikeDrift
	err = lk.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		counter, err := lockTarget(tx, kind, targetID)
		if err != nil {
			return err
		}
		var actual int64
		err = tx.Model(&models.EngagementLike{}).
			Where("target_kind = ? AND target_id = ?", kind, targetID).
			Count(&actual).Error
		if err != nil {
			return err
		}
		if int64(counter) == actual {
			return nil
		}
		drift = &models.LikeDrift{Kind: kind, ID: targetID, Counter: counter, Actual: int(actual)}
		return tx.Model(model).Where("id = ?", targetID).Update("like_count", actual).Error
	})
	if err != nil {
		return nil, storageErr(err, string(kind))
	}
	return drift, nil
}
