// Package presence tracks which identities have live sessions so presence can
// be read by other instances and by the REST surface.
package presence

import (
	"context"
	"time"
)

type Status struct {
	UserID   uint      `json:"user_id"`
	Online   bool      `json:"online"`
	Sessions int64     `json:"sessions"`
	LastSeen time.Time `json:"last_seen,omitempty"`
}

// Store is keyed by identity and counts sessions, so an identity stays online
// until its last session disconnects.
type Store interface {
	Connect(ctx context.Context, userID uint, sessionID string) error
	Disconnect(ctx context.Context, userID uint, sessionID string) (int64, error)
	Touch(ctx context.Context, userID uint) error
	Get(ctx context.Context, userID uint) (*Status, error)
}
