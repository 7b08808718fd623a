package models

import (
	"strconv"
	"time"
)

// NotificationType is a closed set; the dedup rule lives on the type.
type NotificationType string

const (
	NotificationLike    NotificationType = "LIKE"
	NotificationComment NotificationType = "COMMENT"
	NotificationFollow  NotificationType = "FOLLOW"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationLike, NotificationComment, NotificationFollow:
		return true
	}
	return false
}

// DedupKey identifies the single logical notification a (type, source, target,
// post) tuple may have outstanding. LIKE dedups on all four, FOLLOW on the
// first three, COMMENT never dedups and returns nil.
func (t NotificationType) DedupKey(source, target uint, postID *uint) *string {
	var key string
	switch t {
	case NotificationLike:
		post := "-"
		if postID != nil {
			post = strconv.FormatUint(uint64(*postID), 10)
		}
		key = "LIKE:" + formatID(source) + ":" + formatID(target) + ":" + post
	case NotificationFollow:
		key = "FOLLOW:" + formatID(source) + ":" + formatID(target)
	default:
		return nil
	}
	return &key
}

func formatID(v uint) string { return strconv.FormatUint(uint64(v), 10) }

type NotificationStatus string

const (
	NotificationUnread NotificationStatus = "UNREAD"
	NotificationRead   NotificationStatus = "READ"
)

// Notification represents notifications sent to users
type Notification struct {
	ID        uint               `json:"id" gorm:"primaryKey;autoIncrement"`
	Type      NotificationType   `json:"type" gorm:"size:16;not null;index"`
	Status    NotificationStatus `json:"status" gorm:"size:16;not null;index"`
	SourceID  uint               `json:"source_user_id" gorm:"not null;index"`
	TargetID  uint               `json:"target_user_id" gorm:"not null;index:idx_notifications_target_created,priority:1"`
	PostID    *uint              `json:"post_id,omitempty" gorm:"index"`
	Content   *string            `json:"content,omitempty" gorm:"size:1000"`
	DedupKey  *string            `json:"-" gorm:"size:128;uniqueIndex"`
	CreatedAt time.Time          `json:"created_at" gorm:"index:idx_notifications_target_created,priority:2"`
}

type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	Page          int            `json:"page"`
	Size          int            `json:"size"`
	Total         int64          `json:"total"`
}
