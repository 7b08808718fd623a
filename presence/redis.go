package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps two keys per identity:
//   - <prefix>:sessions:<id> set of live session ids
//   - <prefix>:presence:<id> hash {status, last_seen}
//
// Both expire after ttl unless touched, so a crashed instance cannot leave an
// identity online forever.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "chat"
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) sessionsKey(id uint) string { return fmt.Sprintf("%s:sessions:%d", s.prefix, id) }
func (s *RedisStore) presenceKey(id uint) string { return fmt.Sprintf("%s:presence:%d", s.prefix, id) }

func (s *RedisStore) Connect(ctx context.Context, userID uint, sessionID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.sessionsKey(userID), sessionID)
		pipe.Expire(ctx, s.sessionsKey(userID), s.ttl)
		pipe.HSet(ctx, s.presenceKey(userID), "status", "online", "last_seen", time.Now().Unix())
		pipe.Expire(ctx, s.presenceKey(userID), s.ttl)
		return nil
	})
	return err
}

// Disconnect removes the session and reports how many remain. When none do,
// the identity is marked offline and its last-seen time is kept.
func (s *RedisStore) Disconnect(ctx context.Context, userID uint, sessionID string) (int64, error) {
	var card *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, s.sessionsKey(userID), sessionID)
		card = pipe.SCard(ctx, s.sessionsKey(userID))
		return nil
	})
	if err != nil {
		return 0, err
	}
	remaining := card.Val()
	if remaining > 0 {
		return remaining, nil
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.presenceKey(userID), "status", "offline", "last_seen", time.Now().Unix())
		pipe.Persist(ctx, s.presenceKey(userID))
		return nil
	})
	return 0, err
}

func (s *RedisStore) Touch(ctx context.Context, userID uint) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Expire(ctx, s.sessionsKey(userID), s.ttl)
		pipe.HSet(ctx, s.presenceKey(userID), "last_seen", time.Now().Unix())
		pipe.Expire(ctx, s.presenceKey(userID), s.ttl)
		return nil
	})
	return err
}

func (s *RedisStore) Get(ctx context.Context, userID uint) (*Status, error) {
	var (
		fields *redis.MapStringStringCmd
		card   *redis.IntCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, s.presenceKey(userID))
		card = pipe.SCard(ctx, s.sessionsKey(userID))
		return nil
	})
	if err != nil {
		return nil, err
	}

	st := &Status{UserID: userID, Sessions: card.Val()}
	st.Online = st.Sessions > 0 && fields.Val()["status"] == "online"
	if ts, err := strconv.ParseInt(fields.Val()["last_seen"], 10, 64); err == nil {
		st.LastSeen = time.Unix(ts, 0).UTC()
	}
	return st, nil
}
