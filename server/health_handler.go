package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	errs "github.com/techagentng/citizenchat/errors"
	"github.com/techagentng/citizenchat/metrics"
	"github.com/techagentng/citizenchat/server/response"
)

// handleHealth pings the database and, when configured, redis.
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := s.requestContext(c)
		defer cancel()

		checks := gin.H{"database": "ok"}
		healthy := true

		sqlDB, err := s.DB.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			checks["database"] = err.Error()
			healthy = false
		}
		if s.Redis != nil {
			checks["redis"] = "ok"
			if err := s.Redis.Ping(ctx).Err(); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			}
		}

		if !healthy {
			response.JSON(c, "unhealthy", http.StatusServiceUnavailable, checks, errs.New(errs.KindUnavailable, "dependency check failed"))
			return
		}
		response.JSON(c, "healthy", http.StatusOK, checks, nil)
	}
}

func (s *Server) handleMetrics() gin.HandlerFunc {
	return gin.WrapH(metrics.Handler())
}
