package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/techagentng/citizenchat/models"
	"golang.org/x/time/rate"
)

// Session is one live connection. It starts unauthenticated and is bound to
// an identity at most once.
type Session struct {
	ID     string
	Remote string

	send    chan []byte
	limiter *rate.Limiter

	mu       sync.Mutex
	identity *models.Identity
	topics   map[string]struct{}
	closed   bool
}

func newSession(remote string, buffer, perSec int) *Session {
	if buffer <= 0 {
		buffer = 64
	}
	if perSec <= 0 {
		perSec = 10
	}
	return &Session{
		ID:      uuid.NewString(),
		Remote:  remote,
		send:    make(chan []byte, buffer),
		limiter: rate.NewLimiter(rate.Limit(perSec), perSec),
		topics:  make(map[string]struct{}),
	}
}

// Identity returns the bound identity or nil.
func (s *Session) Identity() *models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// Outbound yields encoded frames queued for the client. It is closed when the
// session is closed.
func (s *Session) Outbound() <-chan []byte {
	return s.send
}

func (s *Session) bind(identity *models.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity != nil || s.closed {
		return false
	}
	id := *identity
	s.identity = &id
	return true
}

// enqueue never blocks: a full buffer means the client is not keeping up.
func (s *Session) enqueue(b []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- b:
		return true
	default:
		return false
	}
}

func (s *Session) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.send)
	return true
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) addTopic(topic string) {
	s.mu.Lock()
	s.topics[topic] = struct{}{}
	s.mu.Unlock()
}

func (s *Session) takeTopics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	topics := make([]string, 0, len(s.topics))
	for t := range s.topics {
		topics = append(topics, t)
	}
	s.topics = make(map[string]struct{})
	return topics
}
