package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Conversation is the two-party thread addressed by its canonical key.
// Participants are stored in the order the first contact supplied them; the
// unread counters are addressed by comparing an identity to A or B.
type Conversation struct {
	ID            uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Key           string    `json:"conversation_key" gorm:"column:conversation_key;size:64;not null;uniqueIndex"`
	ParticipantA  uint      `json:"participant_a" gorm:"not null;index"`
	ParticipantB  uint      `json:"participant_b" gorm:"not null;index"`
	LastMessage   string    `json:"last_message" gorm:"size:1000"`
	LastMessageAt time.Time `json:"last_message_at" gorm:"index"`
	LastSenderID  *uint     `json:"last_sender_id"`
	UnreadCountA  int       `json:"-" gorm:"not null;default:0"`
	UnreadCountB  int       `json:"-" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CanonicalKey returns min(a,b)_max(a,b). Every producer of a conversation
// address must go through it.
func CanonicalKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return strconv.FormatUint(uint64(a), 10) + "_" + strconv.FormatUint(uint64(b), 10)
}

// ParseKey splits a canonical key into its two identities. Keys that are not
// in canonical form (wrong order, padding, extra parts) are rejected.
func ParseKey(key string) (uint, uint, error) {
	parts := strings.Split(key, "_")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed conversation key %q", key)
	}
	a, err := strconv.ParseUint(parts[0], 10, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed conversation key %q: %w", key, err)
	}
	b, err := strconv.ParseUint(parts[1], 10, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed conversation key %q: %w", key, err)
	}
	if CanonicalKey(uint(a), uint(b)) != key {
		return 0, 0, fmt.Errorf("conversation key %q is not canonical", key)
	}
	return uint(a), uint(b), nil
}

func (c *Conversation) Has(id uint) bool {
	return c.ParticipantA == id || c.ParticipantB == id
}

// Other returns the participant that is not id.
func (c *Conversation) Other(id uint) uint {
	if c.ParticipantA == id {
		return c.ParticipantB
	}
	return c.ParticipantA
}

func (c *Conversation) UnreadFor(id uint) int {
	switch id {
	case c.ParticipantA:
		return c.UnreadCountA
	case c.ParticipantB:
		return c.UnreadCountB
	}
	return 0
}

// UnreadColumn names the counter column owned by id.
func (c *Conversation) UnreadColumn(id uint) (string, bool) {
	switch id {
	case c.ParticipantA:
		return "unread_count_a", true
	case c.ParticipantB:
		return "unread_count_b", true
	}
	return "", false
}

// ConversationView is a conversation as seen by one of its participants.
type ConversationView struct {
	ID                  uint      `json:"id"`
	ConversationKey     string    `json:"conversation_key"`
	OtherUserID         uint      `json:"other_user_id"`
	LastMessage         string    `json:"last_message"`
	LastMessageAt       time.Time `json:"last_message_at"`
	LastSenderID        *uint     `json:"last_sender_id,omitempty"`
	UnreadCount         int       `json:"unread_count"`
	IsLastMessageFromMe bool      `json:"is_last_message_from_me"`
}

func (c *Conversation) ViewFor(id uint) ConversationView {
	v := ConversationView{
		ID:              c.ID,
		ConversationKey: c.Key,
		OtherUserID:     c.Other(id),
		LastMessage:     c.LastMessage,
		LastMessageAt:   c.LastMessageAt,
		LastSenderID:    c.LastSenderID,
		UnreadCount:     c.UnreadFor(id),
	}
	if c.LastSenderID != nil {
		v.IsLastMessageFromMe = *c.LastSenderID == id
	}
	return v
}

// UnreadDrift reports a counter that disagreed with the unread message rows.
type UnreadDrift struct {
	ConversationKey string `json:"conversation_key"`
	UserID          uint   `json:"user_id"`
	Counter         int    `json:"counter"`
	Actual          int    `json:"actual"`
}
