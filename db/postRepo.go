package db

import (
	"context"
	"errors"

	errs "github.com/techagentng/citizenchat/errors"
	"github.com/techagentng/citizenchat/models"
	"gorm.io/gorm"
)

// PostRepository holds the post and comment rows this service shares with the
// content service: ownership for notifications and the like counters.
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	CreateComment(ctx context.Context, comment *models.Comment) error
	FindPost(ctx context.Context, id uint) (*models.Post, error)
	FindComment(ctx context.Context, id uint) (*models.Comment, error)
}

type postRepo struct {
	DB *gorm.DB
}

func NewPostRepo(db *GormDB) PostRepository {
	return &postRepo{db.DB}
}

func (r *postRepo) CreatePost(ctx context.Context, post *models.Post) error {
	if err := r.DB.WithContext(ctx).Create(post).Error; err != nil {
		return storageErr(err, "post")
	}
	return nil
}

func (r *postRepo) CreateComment(ctx context.Context, comment *models.Comment) error {
	if err := r.DB.WithContext(ctx).Create(comment).Error; err != nil {
		return storageErr(err, "comment")
	}
	return nil
}

func (r *postRepo) FindPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.DB.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, storageErr(err, "post")
	}
	return &post, nil
}

func (r *postRepo) FindComment(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.DB.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, storageErr(err, "comment")
	}
	return &comment, nil
}

// PostLookup answers ownership questions about posts from the shared table.
type PostLookup struct {
	repo PostRepository
}

func NewPostLookup(repo PostRepository) *PostLookup {
	return &PostLookup{repo: repo}
}

func (l *PostLookup) OwnerOf(ctx context.Context, postID uint) (uint, error) {
	post, err := l.repo.FindPost(ctx, postID)
	if err != nil {
		return 0, err
	}
	return post.UserID, nil
}

func (l *PostLookup) Exists(ctx context.Context, postID uint) (bool, error) {
	_, err := l.repo.FindPost(ctx, postID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CommentLookup answers ownership questions about comments.
type CommentLookup struct {
	repo PostRepository
}

func NewCommentLookup(repo PostRepository) *CommentLookup {
	return &CommentLookup{repo: repo}
}

func (l *CommentLookup) OwnerOf(ctx context.Context, commentID uint) (uint, error) {
	comment, err := l.repo.FindComment(ctx, commentID)
	if err != nil {
		return 0, err
	}
	return comment.UserID, nil
}

func (l *CommentLookup) PostOf(ctx context.Context, commentID uint) (uint, error) {
	comment, err := l.repo.FindComment(ctx, commentID)
	if err != nil {
		return 0, err
	}
	return comment.PostID, nil
}
