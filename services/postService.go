package services

import (
	"context"

	"github.com/techagentng/citizenchat/config"
	"github.com/techagentng/citizenchat/db"
	errs "github.com/techagentng/citizenchat/errors"
	"github.com/techagentng/citizenchat/models"
	"go.uber.org/zap"
)

// PostService receives lifecycle hooks from the content service: new posts
// and comments become likeable here, comments notify the owner they answer,
// and deleted posts take their notifications with them.
type PostService interface {
	RegisterPost(ctx context.Context, ev *models.PostEvent) (*models.Post, error)
	RecordComment(ctx context.Context, ev *models.CommentEvent) (*models.Notification, error)
	OnComment(ctx context.Context, authorID, postID uint, content string) (*models.Notification, error)
	OnReply(ctx context.Context, authorID, parentCommentID uint, content string) (*models.Notification, error)
	OnPostDeleted(ctx context.Context, postID uint) (int64, error)
}

type postService struct {
	Config        *config.Config
	postRepo      db.PostRepository
	posts         PostOwnerLookup
	comments      CommentOwnerLookup
	notifications NotificationService
	log           *zap.SugaredLogger
}

func NewPostService(postRepo db.PostRepository, posts PostOwnerLookup, comments CommentOwnerLookup, notifications NotificationService, conf *config.Config, log *zap.SugaredLogger) PostService {
	return &postService{
		Config:        conf,
		postRepo:      postRepo,
		posts:         posts,
		comments:      comments,
		notifications: notifications,
		log:           log,
	}
}

func (s *postService) RegisterPost(ctx context.Context, ev *models.PostEvent) (*models.Post, error) {
	if err := errs.ValidateStruct(ev); err != nil {
		return nil, err
	}
	post := &models.Post{UserID: ev.AuthorID}
	post.ID = ev.PostID
	if err := s.postRepo.CreatePost(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// RecordComment stores the comment so it can be liked, then runs the comment
// or reply hook depending on whether it answers another comment.
func (s *postService) RecordComment(ctx context.Context, ev *models.CommentEvent) (*models.Notification, error) {
	if err := errs.ValidateStruct(ev); err != nil {
		return nil, err
	}

	postID := ev.PostID
	if ev.ParentCommentID != nil {
		parentPost, err := s.comments.PostOf(ctx, *ev.ParentCommentID)
		if err != nil {
			return nil, err
		}
		postID = parentPost
	}
	if postID == 0 {
		return nil, errs.Validation("invalid request", errs.FieldError{Field: "post_id", Message: "post_id is required for a top-level comment"})
	}

	comment := &models.Comment{PostID: postID, ParentID: ev.ParentCommentID, UserID: ev.AuthorID}
	comment.ID = ev.CommentID
	if err := s.postRepo.CreateComment(ctx, comment); err != nil {
		return nil, err
	}

	if ev.ParentCommentID != nil {
		return s.OnReply(ctx, ev.AuthorID, *ev.ParentCommentID, ev.Content)
	}
	return s.OnComment(ctx, ev.AuthorID, postID, ev.Content)
}

// OnComment notifies the post owner. Commenting on your own post is silent.
func (s *postService) OnComment(ctx context.Context, authorID, postID uint, content string) (*models.Notification, error) {
	owner, err := s.posts.OwnerOf(ctx, postID)
	if err != nil {
		return nil, err
	}
	return s.notifications.Notify(ctx, models.NotificationComment, authorID, owner, &postID, contentPtr(content))
}

// OnReply notifies the owner of the parent comment, attributed to the post the
// parent belongs to.
func (s *postService) OnReply(ctx context.Context, authorID, parentCommentID uint, content string) (*models.Notification, error) {
	owner, err := s.comments.OwnerOf(ctx, parentCommentID)
	if err != nil {
		return nil, err
	}
	postID, err := s.comments.PostOf(ctx, parentCommentID)
	if err != nil {
		return nil, err
	}
	return s.notifications.Notify(ctx, models.NotificationComment, authorID, owner, &postID, contentPtr(content))
}

func (s *postService) OnPostDeleted(ctx context.Context, postID uint) (int64, error) {
	return s.notifications.PurgeByRelatedPost(ctx, postID)
}

func contentPtr(content string) *string {
	if content == "" {
		return nil
	}
	return &content
}
