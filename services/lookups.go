package services

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	errs "github.com/techagentng/citizenchat/errors"
	"go.uber.org/zap"
)

// PostOwnerLookup is the post collaborator seen from the core.
type PostOwnerLookup interface {
	OwnerOf(ctx context.Context, postID uint) (uint, error)
	Exists(ctx context.Context, postID uint) (bool, error)
}

// CommentOwnerLookup is the comment collaborator seen from the core.
type CommentOwnerLookup interface {
	OwnerOf(ctx context.Context, commentID uint) (uint, error)
	PostOf(ctx context.Context, commentID uint) (uint, error)
}

// BreakerSettings configures the circuit guarding collaborator lookups.
type BreakerSettings struct {
	Name        string
	MaxFailures uint32
	Timeout     time.Duration
}

func newBreaker(st BreakerSettings, log *zap.SugaredLogger) *gobreaker.CircuitBreaker {
	if st.MaxFailures == 0 {
		st.MaxFailures = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        st.Name,
		MaxRequests: 1,
		Timeout:     st.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= st.MaxFailures
		},
		// NotFound is an answer, not a collaborator failure.
		IsSuccessful: func(err error) bool {
			switch errs.KindOf(err) {
			case "", errs.KindNotFound, errs.KindValidation:
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Infow("circuit breaker state", "name", name, "from", from.String(), "to", to.String())
		},
	})
}

func guard[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	v, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, errs.Unavailable(cb.Name()+" lookup unavailable", err)
		}
		var e *errs.Error
		if errors.As(err, &e) {
			return zero, e
		}
		return zero, errs.Unavailable(cb.Name()+" lookup failed", err)
	}
	return v.(T), nil
}

// BreakerPostLookup trips open after repeated collaborator failures so the
// core fails fast with UpstreamUnavailable instead of guessing ownership.
type BreakerPostLookup struct {
	next PostOwnerLookup
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerPostLookup(next PostOwnerLookup, st BreakerSettings, log *zap.SugaredLogger) *BreakerPostLookup {
	if st.Name == "" {
		st.Name = "post-owner"
	}
	return &BreakerPostLookup{next: next, cb: newBreaker(st, log)}
}

func (b *BreakerPostLookup) OwnerOf(ctx context.Context, postID uint) (uint, error) {
	return guard(b.cb, func() (uint, error) { return b.next.OwnerOf(ctx, postID) })
}

func (b *BreakerPostLookup) Exists(ctx context.Context, postID uint) (bool, error) {
	return guard(b.cb, func() (bool, error) { return b.next.Exists(ctx, postID) })
}

type BreakerCommentLookup struct {
	next CommentOwnerLookup
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerCommentLookup(next CommentOwnerLookup, st BreakerSettings, log *zap.SugaredLogger) *BreakerCommentLookup {
	if st.Name == "" {
		st.Name = "comment-owner"
	}
	return &BreakerCommentLookup{next: next, cb: newBreaker(st, log)}
}

func (b *BreakerCommentLookup) OwnerOf(ctx context.Context, commentID uint) (uint, error) {
	return guard(b.cb, func() (uint, error) { return b.next.OwnerOf(ctx, commentID) })
}

func (b *BreakerCommentLookup) PostOf(ctx context.Context, commentID uint) (uint, error) {
	return guard(b.cb, func() (uint, error) { return b.next.PostOf(ctx, commentID) })
}
