package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/techagentng/citizenchat/config"
	"github.com/techagentng/citizenchat/db"
	"github.com/techagentng/citizenchat/realtime"
	"github.com/techagentng/citizenchat/services"
	"go.uber.org/zap"
)

// Server is the http shell around the core services.
type Server struct {
	Config              *config.Config
	Log                 *zap.SugaredLogger
	DB                  *db.GormDB
	Redis               redis.UniversalClient
	AuthService         services.AuthService
	MessageService      services.MessageService
	NotificationService services.NotificationService
	LikeService         services.LikeService
	FollowService       services.FollowService
	PostService         services.PostService
	AccountService      services.AccountService
	Hub                 *realtime.Hub
}

func (s *Server) Start() {
	r := s.setupRouter()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Config.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.Log.Infow("server started", "port", s.Config.Port, "env", s.Config.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	s.Log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// hijacked websocket connections are not tracked by srv
	s.Hub.Shutdown()
	if err := srv.Shutdown(ctx); err != nil {
		s.Log.Errorw("server forced to shutdown", "error", err)
	}
	s.Log.Info("server exiting")
}
