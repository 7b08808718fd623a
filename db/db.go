package db

import (
	"fmt"
	"time"

	"github.com/techagentng/citizenchat/config"
	"github.com/techagentng/citizenchat/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type GormDB struct {
	DB *gorm.DB
}

func GetDB(c *config.Config, log *zap.SugaredLogger) (*GormDB, error) {
	gormDB := &GormDB{}
	if err := gormDB.Init(c, log); err != nil {
		return nil, err
	}
	return gormDB, nil
}

// NewGormDB wraps an already opened connection and migrates it.
func NewGormDB(db *gorm.DB) (*GormDB, error) {
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return &GormDB{DB: db}, nil
}

func (g *GormDB) Init(c *config.Config, log *zap.SugaredLogger) error {
	db, err := getPostgresDB(c, log)
	if err != nil {
		return err
	}
	g.DB = db

	if err := Migrate(g.DB); err != nil {
		return fmt.Errorf("unable to run migrations: %w", err)
	}
	return nil
}

func getPostgresDB(c *config.Config, log *zap.SugaredLogger) (*gorm.DB, error) {
	log.Infow("connecting to postgres", "host", c.PostgresHost, "port", c.PostgresPort, "db", c.PostgresDB, "user", c.PostgresUser)
	postgresDSN := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort)

	gormConfig := &gorm.Config{NowFunc: func() time.Time { return time.Now().UTC() }}
	if c.Env != "prod" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		DSN: postgresDSN,
	}), gormConfig)
	if err != nil {
		return nil, err
	}
	return gormDB, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Conversation{},
		&models.Message{},
		&models.Notification{},
		&models.EngagementLike{},
		&models.Follow{},
		&models.Post{},
		&models.Comment{},
	)
}

// forUpdate locks the selected rows until the surrounding transaction ends.
// Dialects without row locks (sqlite) drop the clause and rely on their
// database-level write lock.
var forUpdate = clause.Locking{Strength: "UPDATE"}
