package server

import (
	"fmt"
	"os"
	"strings"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/techagentng/citizenchat/models"
)

func (s *Server) setupRouter() *gin.Engine {
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "test" {
		r := gin.New()
		s.defineRoutes(r)
		return r
	}

	r := gin.New()

	// LoggerWithFormatter middleware will write the logs to gin.DefaultWriter
	// By default gin.DefaultWriter = os.Stdout
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(s.corsConfig()))
	s.defineRoutes(r)

	return r
}

func (s *Server) corsConfig() cors.Config {
	conf := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", internalTokenHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	origin := strings.TrimSpace(s.Config.AccessControlAllowOrigin)
	if origin == "" || origin == "*" {
		// credentials cannot be combined with a literal wildcard
		conf.AllowOriginFunc = func(string) bool { return true }
		return conf
	}
	conf.AllowOrigins = strings.Split(origin, ",")
	return conf
}

func (s *Server) defineRoutes(router *gin.Engine) {
	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Minute,
		Limit: uint(s.writeLimit()),
	})
	limitRate := limitRatePerUser(store)

	router.GET("/health", s.handleHealth())
	router.GET("/metrics", s.handleMetrics())

	apirouter := router.Group("/api/v1")
	apirouter.GET("/ws", s.handleWebsocket())

	internal := apirouter.Group("/internal")
	internal.Use(s.requireInternalToken())
	internal.POST("/posts", s.handlePostCreated())
	internal.POST("/comments", s.handleCommentCreated())
	internal.DELETE("/posts/:id", s.handlePostDeleted())
	internal.DELETE("/users/:id", s.handleAccountPurge())

	authorized := apirouter.Group("/")
	authorized.Use(s.Authorize())

	authorized.POST("/messages", limitRate, s.handleSendMessage())
	authorized.GET("/messages/unread-count", s.handleUnreadMessageCount())
	authorized.GET("/messages/with/:userID", s.handleListMessagesWith())
	authorized.POST("/conversations/start/:userID", s.handleStartConversation())
	authorized.GET("/conversations", s.handleListConversations())
	authorized.GET("/conversations/:key/messages", s.handleListMessages())
	authorized.PUT("/conversations/:key/read", s.handleMarkConversationRead())

	authorized.PUT("/posts/:id/like", limitRate, s.handleToggleLike(models.TargetPost))
	authorized.GET("/posts/:id/like", s.handleIsLiked(models.TargetPost))
	authorized.PUT("/comments/:id/like", limitRate, s.handleToggleLike(models.TargetComment))
	authorized.GET("/comments/:id/like", s.handleIsLiked(models.TargetComment))

	authorized.POST("/users/:id/follow", limitRate, s.handleFollow())
	authorized.DELETE("/users/:id/follow", s.handleUnfollow())
	authorized.GET("/users/:id/followers", s.handleFollowers())
	authorized.GET("/users/:id/following", s.handleFollowing())

	authorized.GET("/notifications", s.handleListNotifications())
	authorized.GET("/notifications/unread/count", s.handleUnreadNotificationCount())
	authorized.PATCH("/notifications/mark-all-read", s.handleMarkAllNotificationsRead())
	authorized.PATCH("/notifications/:id/read", s.handleMarkNotificationRead())
	authorized.DELETE("/notifications/all", s.handleDeleteAllNotifications())
	authorized.DELETE("/notifications/:id", s.handleDeleteNotification())

	authorized.GET("/presence/:userID", s.handlePresence())
}

// writeLimit is the per-user budget for write routes, per minute.
func (s *Server) writeLimit() int {
	if s.Config.WriteRateLimitPerMinute > 0 {
		return s.Config.WriteRateLimitPerMinute
	}
	return 120
}
