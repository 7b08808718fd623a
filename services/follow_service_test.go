package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "github.com/techagentng/citizenchat/errors"
	"github.com/techagentng/citizenchat/models"
)

func followNotifications(t *testing.T, e *env) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.DB.Model(&models.Notification{}).Where("type = ?", models.NotificationFollow).Count(&n).Error)
	return n
}

func TestFollowTwiceRejected(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	require.NoError(t, e.follows.Follow(ctx, 1, 2))
	assert.ErrorIs(t, e.follows.Follow(ctx, 1, 2), errs.ErrConflict)
	assert.Equal(t, int64(1), followNotifications(t, e))

	following, err := e.follows.IsFollowing(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, following)
}

func TestUnfollowRetracts(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	require.NoError(t, e.follows.Follow(ctx, 1, 2))
	require.NoError(t, e.follows.Unfollow(ctx, 1, 2))
	assert.Zero(t, followNotifications(t, e))
	assert.ErrorIs(t, e.follows.Unfollow(ctx, 1, 2), errs.ErrNotFound)

	require.NoError(t, e.follows.Follow(ctx, 1, 2))
	assert.Equal(t, int64(1), followNotifications(t, e))
}

func TestSelfFollow(t *testing.T) {
	e := newEnv(t)
	assert.ErrorIs(t, e.follows.Follow(context.Background(), 5, 5), errs.ErrValidation)
	assert.Zero(t, followNotifications(t, e))
}

func TestFollowerListing(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	require.NoError(t, e.follows.Follow(ctx, 1, 9))
	require.NoError(t, e.follows.Follow(ctx, 2, 9))

	ids, total, err := e.follows.Followers(ctx, 9, models.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.ElementsMatch(t, []uint{1, 2}, ids)

	ids, _, err = e.follows.Following(ctx, 1, models.Page{})
	require.NoError(t, err)
	assert.Equal(t, []uint{9}, ids)
}
