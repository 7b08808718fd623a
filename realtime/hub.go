// Package realtime is the live-session gateway: it owns the session registry,
// routes inbound client events to the core services and pushes committed
// events back out on a best-effort basis.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	errs "github.com/techagentng/citizenchat/errors"
	"github.com/techagentng/citizenchat/events"
	"github.com/techagentng/citizenchat/metrics"
	"github.com/techagentng/citizenchat/models"
	"github.com/techagentng/citizenchat/presence"
	"github.com/techagentng/citizenchat/services"
	"go.uber.org/zap"
)

var ErrHubClosed = errors.New("realtime hub is shut down")

type Config struct {
	SendBuffer     int
	RatePerSec     int
	RequestTimeout time.Duration
}

// Hub is created once at startup and passed to whoever needs it. All maps are
// guarded by mu; sends happen outside the lock.
type Hub struct {
	mu         sync.RWMutex
	sessions   map[*Session]struct{}
	byIdentity map[uint]map[*Session]struct{}
	topics     map[string]map[*Session]struct{}
	closed     bool

	auth     services.IdentityGateway
	messages services.MessageService
	presence presence.Store
	cfg      Config
	log      *zap.SugaredLogger
}

func NewHub(auth services.IdentityGateway, messages services.MessageService, store presence.Store, cfg Config, log *zap.SugaredLogger) *Hub {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if store == nil {
		store = presence.NewMemoryStore()
	}
	return &Hub{
		sessions:   make(map[*Session]struct{}),
		byIdentity: make(map[uint]map[*Session]struct{}),
		topics:     make(map[string]map[*Session]struct{}),
		auth:       auth,
		messages:   messages,
		presence:   store,
		cfg:        cfg,
		log:        log,
	}
}

// Register adds a new unauthenticated session.
func (h *Hub) Register(remote string) (*Session, error) {
	s := newSession(remote, h.cfg.SendBuffer, h.cfg.RatePerSec)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	h.sessions[s] = struct{}{}
	metrics.Connections.Inc()
	return s, nil
}

// Authenticate verifies the credential and binds the session. On failure the
// session stays open and unauthenticated.
func (h *Hub) Authenticate(ctx context.Context, s *Session, token string) error {
	if s.Identity() != nil {
		return errs.Conflict("session is already authenticated")
	}
	identity, err := h.auth.Verify(ctx, token)
	if err != nil {
		return err
	}

	// Binding under mu keeps Unregister from seeing a bound identity that
	// was never indexed or counted.
	h.mu.Lock()
	if _, live := h.sessions[s]; !live {
		h.mu.Unlock()
		return errs.NotFound("session is closed")
	}
	if !s.bind(identity) {
		h.mu.Unlock()
		return errs.Conflict("session is already authenticated")
	}
	set, ok := h.byIdentity[identity.ID]
	if !ok {
		set = make(map[*Session]struct{})
		h.byIdentity[identity.ID] = set
	}
	set[s] = struct{}{}
	h.subscribeLocked(s, PresenceTopic)
	metrics.AuthenticatedSessions.Inc()
	h.mu.Unlock()

	if err := h.presence.Connect(ctx, identity.ID, s.ID); err != nil {
		h.log.Warnw("presence store unavailable", "user_id", identity.ID, "error", err)
	}
	// Unregister closes the session before it disconnects presence, so a
	// Connect that landed after that Disconnect is visible here.
	if s.isClosed() {
		if _, err := h.presence.Disconnect(ctx, identity.ID, s.ID); err != nil {
			h.log.Warnw("presence store unavailable", "user_id", identity.ID, "error", err)
		}
		return errs.NotFound("session is closed")
	}
	h.push(s, Event{Type: TypeConnected, Payload: ConnectedPayload{UserID: identity.ID, SessionID: s.ID}})
	h.log.Infow("session authenticated", "session", s.ID, "user_id", identity.ID, "username", identity.Username)
	return nil
}

// Accept binds s with a credential presented at handshake time. A bad
// credential is reported as an error event and leaves s unauthenticated.
func (h *Hub) Accept(ctx context.Context, s *Session, token string) {
	if token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, h.cfg.RequestTimeout)
	defer cancel()
	if err := h.Authenticate(ctx, s, token); err != nil {
		h.reject(s, TypeConnect, err)
	}
}

// Unregister removes the session from every index and closes its outbound
// queue. The last session of an identity going away announces it offline.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	if _, ok := h.sessions[s]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, s)
	shuttingDown := h.closed
	for _, topic := range s.takeTopics() {
		h.unsubscribeLocked(s, topic)
	}
	identity := s.Identity()
	lastSession := false
	if identity != nil {
		if set, ok := h.byIdentity[identity.ID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(h.byIdentity, identity.ID)
				lastSession = true
			}
		}
	}
	h.mu.Unlock()

	s.close()
	metrics.Connections.Dec()
	if identity == nil {
		return
	}
	metrics.AuthenticatedSessions.Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.RequestTimeout)
	defer cancel()
	if _, err := h.presence.Disconnect(ctx, identity.ID, s.ID); err != nil {
		h.log.Warnw("presence store unavailable", "user_id", identity.ID, "error", err)
	}
	if lastSession && !shuttingDown {
		h.BroadcastTopic(PresenceTopic, Event{
			Type:    TypePresenceUpdate,
			Payload: PresenceUpdate{UserID: identity.ID, Username: identity.Username, Online: false},
		})
	}
}

// Subscribe adds the session to topic until it disconnects.
func (h *Hub) Subscribe(s *Session, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, live := h.sessions[s]; !live {
		return
	}
	h.subscribeLocked(s, topic)
}

func (h *Hub) subscribeLocked(s *Session, topic string) {
	set, ok := h.topics[topic]
	if !ok {
		set = make(map[*Session]struct{})
		h.topics[topic] = set
	}
	set[s] = struct{}{}
	s.addTopic(topic)
}

func (h *Hub) unsubscribeLocked(s *Session, topic string) {
	set, ok := h.topics[topic]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.topics, topic)
	}
}

// SendDirect queues ev on every live session of userID and returns how many
// accepted it. Offline recipients and full queues drop the event.
func (h *Hub) SendDirect(userID uint, ev Event) int {
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.byIdentity[userID]))
	for s := range h.byIdentity[userID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		metrics.PushDropped.WithLabelValues(ev.Type, "offline").Inc()
		h.log.Debugw("push dropped, recipient offline", "type", ev.Type, "user_id", userID)
		return 0
	}
	return h.deliver(targets, ev)
}

// BroadcastTopic queues ev on every session subscribed to topic.
func (h *Hub) BroadcastTopic(topic string, ev Event) int {
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.topics[topic]))
	for s := range h.topics[topic] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()
	return h.deliver(targets, ev)
}

func (h *Hub) deliver(targets []*Session, ev Event) int {
	if len(targets) == 0 {
		return 0
	}
	b, err := ev.encode()
	if err != nil {
		h.log.Errorw("unable to encode outbound event", "type", ev.Type, "error", err)
		return 0
	}
	delivered := 0
	for _, s := range targets {
		if h.pushBytes(s, ev.Type, b) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) push(s *Session, ev Event) bool {
	b, err := ev.encode()
	if err != nil {
		h.log.Errorw("unable to encode outbound event", "type", ev.Type, "error", err)
		return false
	}
	return h.pushBytes(s, ev.Type, b)
}

// pushBytes is the only place frames enter a session queue. A session whose
// queue is full is stalled; it is closed so its pumps tear the connection down.
func (h *Hub) pushBytes(s *Session, typ string, b []byte) bool {
	if s.enqueue(b) {
		metrics.PushDelivered.WithLabelValues(typ).Inc()
		return true
	}
	reason := "closed"
	if !s.isClosed() {
		reason = "stalled"
		s.close()
	}
	metrics.PushDropped.WithLabelValues(typ, reason).Inc()
	h.log.Warnw("push dropped", "type", typ, "session", s.ID, "reason", reason)
	return false
}

// IsOnline reports whether userID has a live session on this instance.
func (h *Hub) IsOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byIdentity[userID]) > 0
}

// Presence reads the shared presence store.
func (h *Hub) Presence(ctx context.Context, userID uint) (*presence.Status, error) {
	return h.presence.Get(ctx, userID)
}

// Handle dispatches one inbound frame. Failures are answered with an error
// event on the same session and never close it.
func (h *Hub) Handle(ctx context.Context, s *Session, raw []byte) {
	if !s.limiter.Allow() {
		h.reject(s, "", errs.New(errs.KindUnavailable, "rate limit exceeded, slow down"))
		return
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.reject(s, "", errs.Validation("malformed frame"))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.RequestTimeout)
	defer cancel()

	var err error
	switch env.Type {
	case TypeConnect:
		var p connectPayload
		if err = decode(env.Payload, &p); err == nil {
			err = h.Authenticate(ctx, s, p.Token)
		}
	case TypeSendMessage:
		err = h.handleSendMessage(ctx, s, env.Payload)
	case TypeJoinConversation:
		err = h.handleJoin(ctx, s, env.Payload)
	case TypePresenceAnnounce:
		err = h.handlePresence(ctx, s)
	default:
		err = errs.Validation("unknown event type " + env.Type)
	}
	if err != nil {
		h.reject(s, env.Type, err)
	}
}

func (h *Hub) requireIdentity(s *Session) (*models.Identity, error) {
	identity := s.Identity()
	if identity == nil {
		return nil, errs.Unauthenticated("connect with a valid token first")
	}
	return identity, nil
}

// handleSendMessage persists the message. Delivery to both parties follows
// from the MessageSent event once the write has committed.
func (h *Hub) handleSendMessage(ctx context.Context, s *Session, payload json.RawMessage) error {
	identity, err := h.requireIdentity(s)
	if err != nil {
		return err
	}
	var req models.SendMessageRequest
	if err := decode(payload, &req); err != nil {
		return err
	}
	_, err = h.messages.Send(ctx, identity.ID, &req)
	return err
}

// handleJoin subscribes the session to the conversation's receipts and marks
// it read; the receipt is broadcast from the ConversationRead event.
func (h *Hub) handleJoin(ctx context.Context, s *Session, payload json.RawMessage) error {
	identity, err := h.requireIdentity(s)
	if err != nil {
		return err
	}
	var p joinPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if p.ConversationKey == "" {
		return errs.Validation("invalid request", errs.FieldError{Field: "conversation_key", Message: "conversation_key is required"})
	}
	if err := h.messages.MarkRead(ctx, identity.ID, p.ConversationKey); err != nil {
		return err
	}
	h.Subscribe(s, ConversationTopic(p.ConversationKey))
	return nil
}

func (h *Hub) handlePresence(ctx context.Context, s *Session) error {
	identity, err := h.requireIdentity(s)
	if err != nil {
		return err
	}
	if err := h.presence.Touch(ctx, identity.ID); err != nil {
		h.log.Warnw("presence store unavailable", "user_id", identity.ID, "error", err)
	}
	h.BroadcastTopic(PresenceTopic, Event{
		Type:    TypePresenceUpdate,
		Payload: PresenceUpdate{UserID: identity.ID, Username: identity.Username, Online: true},
	})
	return nil
}

func (h *Hub) reject(s *Session, event string, err error) {
	e := errs.As(err)
	if e.Kind == errs.KindInternal {
		h.log.Errorw("realtime event failed", "event", event, "session", s.ID, "error", err)
		e = errs.New(errs.KindInternal, "internal server error")
	}
	h.push(s, Event{Type: TypeError, Payload: ErrorPayload{
		Kind:    e.Kind,
		Message: e.Message,
		Fields:  e.Fields,
		Event:   event,
	}})
}

// HandleEvent is the bus subscriber that turns committed changes into pushes.
func (h *Hub) HandleEvent(_ context.Context, e events.Event) {
	switch e.Type {
	case events.MessageSent:
		if e.Message == nil {
			return
		}
		ev := Event{Type: TypeNewMessage, Payload: e.Message}
		h.SendDirect(e.Message.ReceiverID, ev)
		h.SendDirect(e.Message.SenderID, ev)
	case events.ConversationRead:
		h.BroadcastTopic(ConversationTopic(e.ConversationKey), Event{
			Type:    TypeReadReceipt,
			Payload: ReadReceipt{ConversationKey: e.ConversationKey, UserID: e.ReaderID, ReadAt: e.At},
		})
	case events.NotificationCreated:
		if e.Notification == nil {
			return
		}
		h.SendDirect(e.Notification.TargetID, Event{Type: TypeNotification, Payload: e.Notification})
	}
}

// Shutdown closes every session and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		h.Unregister(s)
	}
	h.log.Infow("realtime hub shut down", "sessions", len(sessions))
}

func decode(payload json.RawMessage, v interface{}) error {
	if len(payload) == 0 {
		return errs.Validation("missing payload")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return errs.Validation("malformed payload")
	}
	return nil
}
