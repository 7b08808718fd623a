package models

import "time"

type Follow struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	FollowerID uint      `json:"follower_id" gorm:"not null;uniqueIndex:idx_follow_pair,priority:1"`
	FolloweeID uint      `json:"followee_id" gorm:"not null;uniqueIndex:idx_follow_pair,priority:2;index"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}
