package models

import "time"

// TargetKind parameterises likes over the two likeable entities.
type TargetKind string

const (
	TargetPost    TargetKind = "post"
	TargetComment TargetKind = "comment"
)

func (k TargetKind) Valid() bool {
	return k == TargetPost || k == TargetComment
}

// EngagementLike is a user's like on a post or comment. The row is the source
// of truth; the like_count column on the target is a cache over these rows.
type EngagementLike struct {
	ID         uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	TargetKind TargetKind `json:"target_kind" gorm:"size:16;not null;uniqueIndex:idx_like_target_user,priority:1"`
	TargetID   uint       `json:"target_id" gorm:"not null;uniqueIndex:idx_like_target_user,priority:2"`
	UserID     uint       `json:"user_id" gorm:"not null;uniqueIndex:idx_like_target_user,priority:3;index"`
	CreatedAt  time.Time  `json:"created_at"`
}

// LikeTarget is what a toggle needs to know about the liked entity.
type LikeTarget struct {
	Kind    TargetKind
	ID      uint
	OwnerID uint
	PostID  uint
}

type ToggleResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}

type LikeDrift struct {
	Kind    TargetKind `json:"kind"`
	ID      uint       `json:"id"`
	Counter int        `json:"counter"`
	Actual  int        `json:"actual"`
}
