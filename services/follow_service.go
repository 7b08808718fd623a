package services

import (
	"context"

	"github.com/techagentng/citizenchat/config"
	"github.com/techagentng/citizenchat/db"
	errs "github.com/techagentng/citizenchat/errors"
	"github.com/techagentng/citizenchat/models"
	"go.uber.org/zap"
)

type FollowService interface {
	Follow(ctx context.Context, followerID, followeeID uint) error
	Unfollow(ctx context.Context, followerID, followeeID uint) error
	IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error)
	Followers(ctx context.Context, userID uint, page models.Page) ([]uint, int64, error)
	Following(ctx context.Context, userID uint, page models.Page) ([]uint, int64, error)
}

type followService struct {
	Config        *config.Config
	followRepo    db.FollowRepository
	notifications NotificationService
	log           *zap.SugaredLogger
}

func NewFollowService(followRepo db.FollowRepository, notifications NotificationService, conf *config.Config, log *zap.SugaredLogger) FollowService {
	return &followService{
		Config:        conf,
		followRepo:    followRepo,
		notifications: notifications,
		log:           log,
	}
}

func (s *followService) Follow(ctx context.Context, followerID, followeeID uint) error {
	if followerID == followeeID {
		return errs.Validation("you cannot follow yourself")
	}
	if err := s.followRepo.Create(ctx, followerID, followeeID); err != nil {
		return err
	}
	if _, err := s.notifications.Notify(ctx, models.NotificationFollow, followerID, followeeID, nil, nil); err != nil {
		s.log.Warnw("follow notification not created", "follower", followerID, "followee", followeeID, "error", err)
	}
	return nil
}

func (s *followService) Unfollow(ctx context.Context, followerID, followeeID uint) error {
	if followerID == followeeID {
		return errs.Validation("you cannot unfollow yourself")
	}
	if err := s.followRepo.Delete(ctx, followerID, followeeID); err != nil {
		return err
	}
	if err := s.notifications.RetractFollow(ctx, followerID, followeeID); err != nil {
		s.log.Warnw("follow notification not retracted", "follower", followerID, "followee", followeeID, "error", err)
	}
	return nil
}

func (s *followService) IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error) {
	return s.followRepo.Exists(ctx, followerID, followeeID)
}

func (s *followService) Followers(ctx context.Context, userID uint, page models.Page) ([]uint, int64, error) {
	return s.followRepo.Followers(ctx, userID, page.Normalize(s.Config.DefaultPageSize, s.Config.MaxPageSize))
}

func (s *followService) Following(ctx context.Context, userID uint, page models.Page) ([]uint, int64, error) {
	return s.followRepo.Following(ctx, userID, page.Normalize(s.Config.DefaultPageSize, s.Config.MaxPageSize))
}
