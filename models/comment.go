package models

// Comment represents a user's comment on a post, or a reply when ParentID is set.
type Comment struct {
	Model
	PostID    uint  `json:"post_id" gorm:"not null;index"`
	ParentID  *uint `json:"parent_id,omitempty" gorm:"index"`
	UserID    uint  `json:"user_id" gorm:"not null;index"`
	LikeCount int   `json:"like_count" gorm:"not null;default:0"`
}

// CommentEvent is posted by the comment service after it persisted a comment
// or a reply. ParentCommentID is set for replies.
type CommentEvent struct {
	CommentID       uint   `json:"comment_id" validate:"required"`
	AuthorID        uint   `json:"author_id" validate:"required"`
	PostID          uint   `json:"post_id"`
	ParentCommentID *uint  `json:"parent_comment_id"`
	Content         string `json:"content" conform:"trim" validate:"max=1000"`
}

// PostEvent registers a post created by the content service.
type PostEvent struct {
	PostID   uint `json:"post_id" validate:"required"`
	AuthorID uint `json:"author_id" validate:"required"`
}
