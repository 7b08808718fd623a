package db

import (
	"context"

	errs "github.com/techagentng/citizenchat/errors"
	"github.com/techagentng/citizenchat/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FollowRepository interface {
	Create(ctx context.Context, followerID, followeeID uint) error
	Delete(ctx context.Context, followerID, followeeID uint) error
	Exists(ctx context.Context, followerID, followeeID uint) (bool, error)
	Followers(ctx context.Context, userID uint, page models.Page) ([]uint, int64, error)
	Following(ctx context.Context, userID uint, page models.Page) ([]uint, int64, error)
}

type followRepo struct {
	DB *gorm.DB
}

func NewFollowRepo(db *GormDB) FollowRepository {
	return &followRepo{db.DB}
}

// Create records the edge. A second follow of the same pair is a conflict.
func (r *followRepo) Create(ctx context.Context, followerID, followeeID uint) error {
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Follow{FollowerID: followerID, FolloweeID: followeeID})
	if res.Error != nil {
		return storageErr(res.Error, "follow")
	}
	if res.RowsAffected == 0 {
		return errs.Conflict("already following this user")
	}
	return nil
}

func (r *followRepo) Delete(ctx context.Context, followerID, followeeID uint) error {
	res := r.DB.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return storageErr(res.Error, "follow")
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("not following this user")
	}
	return nil
}

func (r *followRepo) Exists(ctx context.Context, followerID, followeeID uint) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&n).Error
	if err != nil {
		return false, storageErr(err, "follow")
	}
	return n > 0, nil
}

func (r *followRepo) Followers(ctx context.Context, userID uint, page models.Page) ([]uint, int64, error) {
	return r.edges(ctx, "followee_id", "follower_id", userID, page)
}

func (r *followRepo) Following(ctx context.Context, userID uint, page models.Page) ([]uint, int64, error) {
	return r.edges(ctx, "follower_id", "followee_id", userID, page)
}

func (r *followRepo) edges(ctx context.Context, match, pluck string, userID uint, page models.Page) ([]uint, int64, error) {
	var (
		ids   []uint
		total int64
	)
	q := r.DB.WithContext(ctx).Model(&models.Follow{}).
		Where(match+" = ?", userID).
		Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, storageErr(err, "follows")
	}
	err := q.Order("created_at DESC, id DESC").
		Offset(page.Offset()).
		Limit(page.Size).
		Pluck(pluck, &ids).Error
	if err != nil {
		return nil, 0, storageErr(err, "follows")
	}
	return ids, total, nil
}
