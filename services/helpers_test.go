package services

import (
	"context"
	"sync"
	"testing"

	"github.com/techagentng/citizenchat/config"
	"github.com/techagentng/citizenchat/db"
	"github.com/techagentng/citizenchat/db/dbtest"
	"github.com/techagentng/citizenchat/events"
	"go.uber.org/zap"
)

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
}

func (b *recordingBus) ofType(t events.Type) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Event
	for _, e := range b.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type env struct {
	db            *db.GormDB
	bus           *recordingBus
	messages      MessageService
	notifications NotificationService
	likes         LikeService
	follows       FollowService
	posts         PostService
	accounts      AccountService
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:       "test-secret",
		DefaultPageSize: 20,
		MaxPageSize:     100,
	}
}

func newEnv(t *testing.T) *env {
	t.Helper()
	g := dbtest.New(t)
	conf := testConfig()
	log := zap.NewNop().Sugar()
	bus := &recordingBus{}

	postRepo := db.NewPostRepo(g)
	postLookup := db.NewPostLookup(postRepo)
	commentLookup := db.NewCommentLookup(postRepo)
	notifications := NewNotificationService(db.NewNotificationRepo(g), bus, conf, log)

	return &env{
		db:            g,
		bus:           bus,
		messages:      NewMessageService(db.NewConversationRepo(g), bus, conf, log),
		notifications: notifications,
		likes:         NewLikeService(db.NewLikeRepo(g), postLookup, commentLookup, notifications, conf, log),
		follows:       NewFollowService(db.NewFollowRepo(g), notifications, conf, log),
		posts:         NewPostService(postRepo, postLookup, commentLookup, notifications, conf, log),
		accounts:      NewAccountService(db.NewPurgeRepo(g), conf, log),
	}
}

func postLookupOf(e *env) PostOwnerLookup {
	return db.NewPostLookup(db.NewPostRepo(e.db))
}
