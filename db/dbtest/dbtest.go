// Package dbtest opens throwaway in-memory databases for tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/techagentng/citizenchat/db"
	"github.com/techagentng/citizenchat/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a migrated database private to the calling test. A single
// connection serialises writers the way row locks do on postgres.
func New(t testing.TB) *db.GormDB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	g, err := db.NewGormDB(gdb)
	require.NoError(t, err)
	return g
}

// Post inserts a post owned by ownerID.
func Post(t testing.TB, g *db.GormDB, ownerID uint) *models.Post {
	t.Helper()
	post := &models.Post{UserID: ownerID}
	require.NoError(t, g.DB.Create(post).Error)
	return post
}

// Comment inserts a comment by ownerID on postID.
func Comment(t testing.TB, g *db.GormDB, ownerID, postID uint) *models.Comment {
	t.Helper()
	comment := &models.Comment{UserID: ownerID, PostID: postID}
	require.NoError(t, g.DB.Create(comment).Error)
	return comment
}
