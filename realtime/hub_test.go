package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/techagentng/citizenchat/config"
	"github.com/techagentng/citizenchat/db"
	"github.com/techagentng/citizenchat/db/dbtest"
	errs "github.com/techagentng/citizenchat/errors"
	"github.com/techagentng/citizenchat/events"
	"github.com/techagentng/citizenchat/metrics"
	"github.com/techagentng/citizenchat/models"
	"github.com/techagentng/citizenchat/presence"
	"github.com/techagentng/citizenchat/services"
	"go.uber.org/zap"
)

type fixture struct {
	hub  *Hub
	auth services.AuthService
	g    *db.GormDB
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	log := zap.NewNop().Sugar()
	conf := &config.Config{JWTSecret: "hub-secret", DefaultPageSize: 20, MaxPageSize: 100}
	g := dbtest.New(t)
	bus := events.NewBus(log)
	auth := services.NewAuthService(conf)
	msgs := services.NewMessageService(db.NewConversationRepo(g), bus, conf, log)
	hub := NewHub(auth, msgs, presence.NewMemoryStore(), cfg, log)
	bus.Subscribe(hub.HandleEvent)
	return &fixture{hub: hub, auth: auth, g: g}
}

func defaultConfig() Config {
	return Config{SendBuffer: 32, RatePerSec: 100, RequestTimeout: time.Second}
}

func frame(t *testing.T, typ string, payload interface{}) []byte {
	t.Helper()
	p, err := json.Marshal(payload)
	require.NoError(t, err)
	b, err := json.Marshal(Envelope{Type: typ, Payload: p})
	require.NoError(t, err)
	return b
}

func next(t *testing.T, s *Session) Envelope {
	t.Helper()
	select {
	case b, ok := <-s.Outbound():
		require.True(t, ok, "session closed")
		var env Envelope
		require.NoError(t, json.Unmarshal(b, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("no frame queued")
	}
	return Envelope{}
}

func nextOfType(t *testing.T, s *Session, typ string) Envelope {
	t.Helper()
	for i := 0; i < 10; i++ {
		env := next(t, s)
		if env.Type == typ {
			return env
		}
	}
	t.Fatalf("no %s frame", typ)
	return Envelope{}
}

func assertEmpty(t *testing.T, s *Session) {
	t.Helper()
	select {
	case b := <-s.Outbound():
		t.Fatalf("unexpected frame %s", b)
	default:
	}
}

func drain(s *Session) {
	for {
		select {
		case <-s.Outbound():
		default:
			return
		}
	}
}

func (f *fixture) connect(t *testing.T, id uint, username string) *Session {
	t.Helper()
	s, err := f.hub.Register("test")
	require.NoError(t, err)
	token, err := f.auth.IssueToken(&models.Identity{ID: id, Username: username})
	require.NoError(t, err)
	f.hub.Handle(context.Background(), s, frame(t, TypeConnect, connectPayload{Token: token}))

	env := next(t, s)
	require.Equal(t, TypeConnected, env.Type)
	var p ConnectedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	require.Equal(t, id, p.UserID)
	return s
}

func errorOf(t *testing.T, env Envelope) ErrorPayload {
	t.Helper()
	require.Equal(t, TypeError, env.Type)
	var p ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	return p
}

func TestUnauthenticatedEventsRejected(t *testing.T) {
	f := newFixture(t, defaultConfig())
	s, err := f.hub.Register("anon")
	require.NoError(t, err)

	f.hub.Handle(context.Background(), s, frame(t, TypeSendMessage, models.SendMessageRequest{ReceiverID: 2, Content: "hi"}))
	p := errorOf(t, next(t, s))
	assert.Equal(t, errs.KindUnauthenticated, p.Kind)
	assert.Equal(t, TypeSendMessage, p.Event)

	f.hub.Handle(context.Background(), s, frame(t, TypeJoinConversation, joinPayload{ConversationKey: "1_2"}))
	assert.Equal(t, errs.KindUnauthenticated, errorOf(t, next(t, s)).Kind)

	f.hub.Handle(context.Background(), s, frame(t, TypePresenceAnnounce, struct{}{}))
	assert.Equal(t, errs.KindUnauthenticated, errorOf(t, next(t, s)).Kind)

	var count int64
	require.NoError(t, f.g.DB.Model(&models.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestBadTokenLeavesSessionUnauthenticated(t *testing.T) {
	f := newFixture(t, defaultConfig())
	s, err := f.hub.Register("anon")
	require.NoError(t, err)

	f.hub.Handle(context.Background(), s, frame(t, TypeConnect, connectPayload{Token: "garbage"}))
	assert.Equal(t, errs.KindUnauthenticated, errorOf(t, next(t, s)).Kind)
	assert.Nil(t, s.Identity())
	assert.False(t, f.hub.IsOnline(0))
}

func TestSendMessageDeliversToBothParties(t *testing.T) {
	f := newFixture(t, defaultConfig())
	alice := f.connect(t, 1, "alice")
	aliceTab := f.connect(t, 1, "alice")
	bob := f.connect(t, 2, "bob")

	f.hub.Handle(context.Background(), alice, frame(t, TypeSendMessage, models.SendMessageRequest{ReceiverID: 2, Content: "  hi bob "}))

	for _, s := range []*Session{alice, aliceTab, bob} {
		env := next(t, s)
		require.Equal(t, TypeNewMessage, env.Type)
		var msg models.Message
		require.NoError(t, json.Unmarshal(env.Payload, &msg))
		assert.Equal(t, "  hi bob ", msg.Content)
		assert.Equal(t, "1_2", msg.ConversationKey)
		assert.NotZero(t, msg.ID)
	}
}

func TestSendMessageValidationError(t *testing.T) {
	f := newFixture(t, defaultConfig())
	alice := f.connect(t, 1, "alice")

	f.hub.Handle(context.Background(), alice, frame(t, TypeSendMessage, models.SendMessageRequest{ReceiverID: 2, Content: ""}))
	p := errorOf(t, next(t, alice))
	assert.Equal(t, errs.KindValidation, p.Kind)
	require.NotEmpty(t, p.Fields)
	assert.Equal(t, "content", p.Fields[0].Field)
}

func TestSendDirectOffline(t *testing.T) {
	f := newFixture(t, defaultConfig())
	assert.Zero(t, f.hub.SendDirect(42, Event{Type: TypeNotification, Payload: map[string]int{"id": 1}}))
}

func TestStalledSessionDoesNotBlock(t *testing.T) {
	cfg := defaultConfig()
	cfg.SendBuffer = 2
	f := newFixture(t, cfg)
	s := f.connect(t, 1, "slow")

	ev := Event{Type: TypeNotification, Payload: "x"}
	assert.Equal(t, 1, f.hub.SendDirect(1, ev))
	assert.Equal(t, 1, f.hub.SendDirect(1, ev))

	done := make(chan int)
	go func() { done <- f.hub.SendDirect(1, ev) }()
	select {
	case n := <-done:
		assert.Zero(t, n)
	case <-time.After(time.Second):
		t.Fatal("SendDirect blocked on a full session")
	}
	assert.True(t, s.isClosed())
}

func TestJoinConversationBroadcastsReceipt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultConfig())
	alice := f.connect(t, 1, "alice")
	bob := f.connect(t, 2, "bob")

	f.hub.Handle(ctx, alice, frame(t, TypeSendMessage, models.SendMessageRequest{ReceiverID: 2, Content: "hi"}))
	f.hub.Handle(ctx, alice, frame(t, TypeJoinConversation, joinPayload{ConversationKey: "1_2"}))
	drain(alice)
	drain(bob)

	f.hub.Handle(ctx, bob, frame(t, TypeJoinConversation, joinPayload{ConversationKey: "1_2"}))

	env := nextOfType(t, alice, TypeReadReceipt)
	var receipt ReadReceipt
	require.NoError(t, json.Unmarshal(env.Payload, &receipt))
	assert.Equal(t, "1_2", receipt.ConversationKey)
	assert.Equal(t, uint(2), receipt.UserID)

	var conv models.Conversation
	require.NoError(t, f.g.DB.Where("conversation_key = ?", "1_2").First(&conv).Error)
	assert.Zero(t, conv.UnreadFor(2))
}

func TestJoinForeignConversationForbidden(t *testing.T) {
	f := newFixture(t, defaultConfig())
	eve := f.connect(t, 3, "eve")

	f.hub.Handle(context.Background(), eve, frame(t, TypeJoinConversation, joinPayload{ConversationKey: "1_2"}))
	assert.Equal(t, errs.KindForbidden, errorOf(t, next(t, eve)).Kind)

	assert.Zero(t, f.hub.BroadcastTopic(ConversationTopic("1_2"), Event{Type: TypeReadReceipt, Payload: ReadReceipt{}}))
}

func TestPresenceAnnounceAndDisconnect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultConfig())
	alice := f.connect(t, 1, "alice")
	bob := f.connect(t, 2, "bob")

	f.hub.Handle(ctx, alice, frame(t, TypePresenceAnnounce, struct{}{}))
	env := nextOfType(t, bob, TypePresenceUpdate)
	var update PresenceUpdate
	require.NoError(t, json.Unmarshal(env.Payload, &update))
	assert.Equal(t, PresenceUpdate{UserID: 1, Username: "alice", Online: true}, update)

	st, err := f.hub.Presence(ctx, 2)
	require.NoError(t, err)
	assert.True(t, st.Online)

	drain(alice)
	f.hub.Unregister(bob)
	env = nextOfType(t, alice, TypePresenceUpdate)
	require.NoError(t, json.Unmarshal(env.Payload, &update))
	assert.Equal(t, uint(2), update.UserID)
	assert.False(t, update.Online)
	assert.False(t, f.hub.IsOnline(2))

	st, err = f.hub.Presence(ctx, 2)
	require.NoError(t, err)
	assert.False(t, st.Online)
}

func TestSecondSessionKeepsIdentityOnline(t *testing.T) {
	f := newFixture(t, defaultConfig())
	watcher := f.connect(t, 9, "watcher")
	first := f.connect(t, 1, "alice")
	f.connect(t, 1, "alice")

	f.hub.Unregister(first)
	assert.True(t, f.hub.IsOnline(1))
	assertEmpty(t, watcher)
}

func TestNotificationPush(t *testing.T) {
	f := newFixture(t, defaultConfig())
	bob := f.connect(t, 2, "bob")

	f.hub.HandleEvent(context.Background(), events.Event{
		Type:         events.NotificationCreated,
		Notification: &models.Notification{ID: 5, Type: models.NotificationLike, SourceID: 1, TargetID: 2},
	})
	env := next(t, bob)
	assert.Equal(t, TypeNotification, env.Type)
	var n models.Notification
	require.NoError(t, json.Unmarshal(env.Payload, &n))
	assert.Equal(t, uint(5), n.ID)
}

func TestUnknownAndMalformedFrames(t *testing.T) {
	f := newFixture(t, defaultConfig())
	s := f.connect(t, 1, "alice")

	f.hub.Handle(context.Background(), s, []byte("{not json"))
	assert.Equal(t, errs.KindValidation, errorOf(t, next(t, s)).Kind)

	f.hub.Handle(context.Background(), s, frame(t, "typing", struct{}{}))
	assert.Equal(t, errs.KindValidation, errorOf(t, next(t, s)).Kind)

	f.hub.Handle(context.Background(), s, frame(t, TypeConnect, connectPayload{Token: "x"}))
	assert.Equal(t, errs.KindConflict, errorOf(t, next(t, s)).Kind)
}

func TestRateLimit(t *testing.T) {
	cfg := defaultConfig()
	cfg.RatePerSec = 1
	f := newFixture(t, cfg)
	s, err := f.hub.Register("burst")
	require.NoError(t, err)

	f.hub.Handle(context.Background(), s, frame(t, TypePresenceAnnounce, struct{}{}))
	assert.Equal(t, errs.KindUnauthenticated, errorOf(t, next(t, s)).Kind)
	f.hub.Handle(context.Background(), s, frame(t, TypePresenceAnnounce, struct{}{}))
	assert.Equal(t, errs.KindUnavailable, errorOf(t, next(t, s)).Kind)
}

func TestShutdown(t *testing.T) {
	f := newFixture(t, defaultConfig())
	s := f.connect(t, 1, "alice")

	f.hub.Shutdown()
	_, ok := <-s.Outbound()
	assert.False(t, ok)
	assert.False(t, f.hub.IsOnline(1))

	_, err := f.hub.Register("late")
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestAuthenticateClosedSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultConfig())
	before := testutil.ToFloat64(metrics.AuthenticatedSessions)

	s, err := f.hub.Register("test")
	require.NoError(t, err)
	f.hub.Unregister(s)

	token, err := f.auth.IssueToken(&models.Identity{ID: 3, Username: "carol"})
	require.NoError(t, err)
	err = f.hub.Authenticate(ctx, s, token)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.Nil(t, s.Identity())
	assert.False(t, f.hub.IsOnline(3))

	status, err := f.hub.Presence(ctx, 3)
	require.NoError(t, err)
	assert.False(t, status.Online)
	assert.Equal(t, before, testutil.ToFloat64(metrics.AuthenticatedSessions))
}

func TestAuthenticateRacingUnregister(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultConfig())
	before := testutil.ToFloat64(metrics.AuthenticatedSessions)

	const users = 5
	tokens := make([]string, users)
	for i := range tokens {
		tok, err := f.auth.IssueToken(&models.Identity{ID: uint(i + 1)})
		require.NoError(t, err)
		tokens[i] = tok
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		s, err := f.hub.Register("test")
		require.NoError(t, err)
		token := tokens[i%users]
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = f.hub.Authenticate(ctx, s, token)
		}()
		go func() {
			defer wg.Done()
			f.hub.Unregister(s)
		}()
	}
	wg.Wait()

	assert.Equal(t, before, testutil.ToFloat64(metrics.AuthenticatedSessions))
	for id := uint(1); id <= users; id++ {
		assert.False(t, f.hub.IsOnline(id), "user %d", id)
		status, err := f.hub.Presence(ctx, id)
		require.NoError(t, err)
		assert.False(t, status.Online, "user %d", id)
	}
}
