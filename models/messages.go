package models

import (
	"time"
)

type Message struct {
	ID              uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ConversationKey string    `json:"conversation_key" gorm:"column:conversation_key;size:64;not null;index:idx_messages_conversation_created,priority:1"`
	SenderID        uint      `json:"sender_id" gorm:"not null;index"`
	ReceiverID      uint      `json:"receiver_id" gorm:"not null;index"`
	Content         string    `json:"content" gorm:"size:1000;not null"`
	IsRead          bool      `json:"is_read" gorm:"not null;default:false"`
	CreatedAt       time.Time `json:"created_at" gorm:"index:idx_messages_conversation_created,priority:2"`
}

// SendMessageRequest is the inbound shape shared by the REST and realtime paths.
// Content is stored exactly as sent; it only has to contain something besides
// whitespace.
type SendMessageRequest struct {
	ReceiverID uint   `json:"receiver_id" validate:"required"`
	Content    string `json:"content" validate:"required,notblank,max=1000"`
}

type MessagePage struct {
	Messages []Message `json:"messages"`
	Page     int       `json:"page"`
	Size     int       `json:"size"`
	Total    int64     `json:"total"`
}
