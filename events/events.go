// Package events carries committed domain changes to whoever delivers them:
// the realtime hub for live sessions and the kafka sink for other services.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/techagentng/citizenchat/models"
	"go.uber.org/zap"
)

type Type string

const (
	MessageSent         Type = "message.sent"
	ConversationRead    Type = "conversation.read"
	NotificationCreated Type = "notification.created"
)

// Event is published only after the change it describes has committed.
type Event struct {
	Type            Type                 `json:"type"`
	ConversationKey string               `json:"conversation_key,omitempty"`
	ReaderID        uint                 `json:"reader_id,omitempty"`
	Message         *models.Message      `json:"message,omitempty"`
	Notification    *models.Notification `json:"notification,omitempty"`
	At              time.Time            `json:"at"`
}

type Handler func(ctx context.Context, e Event)

type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Bus fans events out to its subscribers synchronously. A panicking
// subscriber is logged and does not stop delivery to the others.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	log      *zap.SugaredLogger
}

func NewBus(log *zap.SugaredLogger) *Bus {
	return &Bus{log: log}
}

func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
}

func (b *Bus) Publish(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(ctx, h, e)
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorw("event subscriber panicked", "type", e.Type, "panic", r)
		}
	}()
	h(ctx, e)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) {}
