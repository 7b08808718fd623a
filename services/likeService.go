package services

import (
	"context"

	"github.com/techagentng/citizenchat/config"
	"github.com/techagentng/citizenchat/db"
	errs "github.com/techagentng/citizenchat/errors"
	"github.com/techagentng/citizenchat/metrics"
	"github.com/techagentng/citizenchat/models"
	"go.uber.org/zap"
)

// LikeService toggles likes on posts and comments and keeps the owner's LIKE
// notification in step with the like.
type LikeService interface {
	Toggle(ctx context.Context, kind models.TargetKind, targetID, userID uint) (*models.ToggleResult, error)
	IsLiked(ctx context.Context, kind models.TargetKind, targetID, userID uint) (bool, error)
	Reconcile(ctx context.Context, kind models.TargetKind, targetID uint) (*models.LikeDrift, error)
}

type likeService struct {
	Config        *config.Config
	likeRepo      db.LikeRepository
	posts         PostOwnerLookup
	comments      CommentOwnerLookup
	notifications NotificationService
	log           *zap.SugaredLogger
}

func NewLikeService(likeRepo db.LikeRepository, posts PostOwnerLookup, comments CommentOwnerLookup, notifications NotificationService, conf *config.Config, log *zap.SugaredLogger) LikeService {
	return &likeService{
		Config:        conf,
		likeRepo:      likeRepo,
		posts:         posts,
		comments:      comments,
		notifications: notifications,
		log:           log,
	}
}

// Toggle flips the like and then notifies or retracts. The like commits on its
// own; a failed notification is logged and never undoes it. Ownership is
// resolved first so an unreachable collaborator fails the call instead of
// leaving a like whose notification went to a guessed owner.
func (lk *likeService) Toggle(ctx context.Context, kind models.TargetKind, targetID, userID uint) (*models.ToggleResult, error) {
	if !kind.Valid() {
		return nil, errs.Validation("unknown like target", errs.FieldError{Field: "kind", Message: string(kind) + " cannot be liked"})
	}
	target, err := lk.target(ctx, kind, targetID)
	if err != nil {
		return nil, err
	}

	res, err := lk.likeRepo.Toggle(ctx, kind, targetID, userID)
	if err != nil {
		return nil, err
	}

	state := "unliked"
	if res.Liked {
		state = "liked"
		_, err = lk.notifications.Notify(ctx, models.NotificationLike, userID, target.OwnerID, &target.PostID, nil)
	} else {
		err = lk.notifications.RetractLike(ctx, userID, target.OwnerID, &target.PostID)
	}
	metrics.LikeToggles.WithLabelValues(string(kind), state).Inc()
	if err != nil {
		lk.log.Warnw("like notification not updated", "kind", kind, "target", targetID, "user", userID, "state", state, "error", err)
	}
	return res, nil
}

func (lk *likeService) target(ctx context.Context, kind models.TargetKind, targetID uint) (*models.LikeTarget, error) {
	t := &models.LikeTarget{Kind: kind, ID: targetID}
	var err error
	switch kind {
	case models.TargetPost:
		t.PostID = targetID
		t.OwnerID, err = lk.posts.OwnerOf(ctx, targetID)
	case models.TargetComment:
		if t.OwnerID, err = lk.comments.OwnerOf(ctx, targetID); err == nil {
			t.PostID, err = lk.comments.PostOf(ctx, targetID)
		}
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (lk *likeService) IsLiked(ctx context.Context, kind models.TargetKind, targetID, userID uint) (bool, error) {
	if !kind.Valid() {
		return false, errs.Validation("unknown like target")
	}
	return lk.likeRepo.IsLiked(ctx, kind, targetID, userID)
}

func (lk *likeService) Reconcile(ctx context.Context, kind models.TargetKind, targetID uint) (*models.LikeDrift, error) {
	drift, err := lk.likeRepo.Reconcile(ctx, kind, targetID)
	if err != nil {
		return nil, err
	}
	if drift != nil {
		lk.log.Warnw("like counter drift repaired", "kind", kind, "target", targetID, "counter", drift.Counter, "actual", drift.Actual)
	}
	return drift, nil
}
