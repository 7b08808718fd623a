package services

import (
	"context"

	"github.com/techagentng/citizenchat/config"
	"github.com/techagentng/citizenchat/db"
	"go.uber.org/zap"
)

// AccountService is the purge entry point the account collaborator calls when
// an account is deleted.
type AccountService interface {
	PurgeAccount(ctx context.Context, userID uint) (*db.PurgeReport, error)
}

type accountService struct {
	Config    *config.Config
	purgeRepo db.PurgeRepository
	log       *zap.SugaredLogger
}

func NewAccountService(purgeRepo db.PurgeRepository, conf *config.Config, log *zap.SugaredLogger) AccountService {
	return &accountService{
		Config:    conf,
		purgeRepo: purgeRepo,
		log:       log,
	}
}

func (s *accountService) PurgeAccount(ctx context.Context, userID uint) (*db.PurgeReport, error) {
	report, err := s.purgeRepo.PurgeAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.log.Infow("account purged", "user_id", userID,
		"messages", report.Messages,
		"conversations", report.Conversations,
		"notifications", report.Notifications,
		"follows", report.Follows,
		"likes", report.Likes)
	return report, nil
}
