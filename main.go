package main

import (
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/techagentng/citizenchat/config"
	"github.com/techagentng/citizenchat/db"
	"github.com/techagentng/citizenchat/events"
	"github.com/techagentng/citizenchat/logger"
	"github.com/techagentng/citizenchat/metrics"
	"github.com/techagentng/citizenchat/presence"
	"github.com/techagentng/citizenchat/realtime"
	"github.com/techagentng/citizenchat/server"
	"github.com/techagentng/citizenchat/services"
)

func main() {
	conf, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	sugar, err := logger.New(logger.Config{Development: conf.Debug || conf.Env != "prod"})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = sugar.Sync() }()

	metrics.Init()

	gormDB, err := db.GetDB(conf, sugar)
	if err != nil {
		sugar.Fatalf("database: %v", err)
	}

	var (
		rdb   *redis.Client
		store presence.Store
	)
	if conf.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: conf.RedisAddr, Password: conf.RedisPassword})
		defer func() { _ = rdb.Close() }()
		store = presence.NewRedisStore(rdb, "chat", 2*time.Minute)
	} else {
		sugar.Warn("REDIS_ADDR not set, presence is tracked in process only")
		store = presence.NewMemoryStore()
	}

	bus := events.NewBus(sugar)
	if len(conf.KafkaBrokers) > 0 {
		sink := events.NewKafkaSink(conf.KafkaBrokers, conf.KafkaTopic, sugar)
		defer func() { _ = sink.Close() }()
		bus.Subscribe(sink.Handle)
	}

	conversationRepo := db.NewConversationRepo(gormDB)
	notificationRepo := db.NewNotificationRepo(gormDB)
	likeRepo := db.NewLikeRepo(gormDB)
	followRepo := db.NewFollowRepo(gormDB)
	postRepo := db.NewPostRepo(gormDB)
	purgeRepo := db.NewPurgeRepo(gormDB)

	breaker := services.BreakerSettings{
		MaxFailures: conf.UpstreamBreakerFailures,
		Timeout:     conf.UpstreamBreakerTimeout,
	}
	postBreaker, commentBreaker := breaker, breaker
	postBreaker.Name = "post-lookup"
	commentBreaker.Name = "comment-lookup"
	posts := services.NewBreakerPostLookup(db.NewPostLookup(postRepo), postBreaker, sugar)
	comments := services.NewBreakerCommentLookup(db.NewCommentLookup(postRepo), commentBreaker, sugar)

	authService := services.NewAuthService(conf)
	notificationService := services.NewNotificationService(notificationRepo, bus, conf, sugar)
	messageService := services.NewMessageService(conversationRepo, bus, conf, sugar)
	likeService := services.NewLikeService(likeRepo, posts, comments, notificationService, conf, sugar)
	followService := services.NewFollowService(followRepo, notificationService, conf, sugar)
	postService := services.NewPostService(postRepo, posts, comments, notificationService, conf, sugar)
	accountService := services.NewAccountService(purgeRepo, conf, sugar)

	hub := realtime.NewHub(authService, messageService, store, realtime.Config{
		SendBuffer:     conf.WSSendBuffer,
		RatePerSec:     conf.WSRateLimitPerSec,
		RequestTimeout: conf.RequestTimeout,
	}, sugar)
	bus.Subscribe(hub.HandleEvent)

	s := &server.Server{
		Config:              conf,
		Log:                 sugar,
		DB:                  gormDB,
		AuthService:         authService,
		MessageService:      messageService,
		NotificationService: notificationService,
		LikeService:         likeService,
		FollowService:       followService,
		PostService:         postService,
		AccountService:      accountService,
		Hub:                 hub,
	}
	if rdb != nil {
		s.Redis = rdb
	}

	s.Start()
}
