package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	errs "github.com/techagentng/citizenchat/errors"
	"github.com/techagentng/citizenchat/server/response"
)

const internalTokenHeader = "X-Internal-Token"

func (s *Server) Authorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken := getTokenFromHeader(c)
		if accessToken == "" {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.Unauthenticated("missing access token"))
			return
		}

		ctx, cancel := s.requestContext(c)
		defer cancel()
		identity, err := s.AuthService.Verify(ctx, accessToken)
		if err != nil {
			respondAndAbort(c, "", errs.Status(err), nil, errs.As(err))
			return
		}

		c.Set("identity", identity)
		c.Set("userID", identity.ID)
		c.Set("access_token", accessToken)
		c.Set("fullName", identity.Fullname)
		c.Set("username", identity.Username)
		c.Next()
	}
}

// requireInternalToken guards the hooks other services call. An empty
// configured token disables the routes entirely.
func (s *Server) requireInternalToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		want := s.Config.InternalToken
		got := c.GetHeader(internalTokenHeader)
		if want == "" || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.Unauthenticated("invalid internal token"))
			return
		}
		c.Next()
	}
}

func limitRatePerUser(store ratelimit.Store) gin.HandlerFunc {
	mw := ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler:   rateLimitErrorHandler,
		KeyFunc:        keyFunc,
		BeforeResponse: nil,
	})
	return mw
}

func rateLimitErrorHandler(c *gin.Context, info ratelimit.Info) {
	c.Header("Retry-After", strconv.Itoa(int(time.Until(info.ResetTime).Seconds())+1))
	respondAndAbort(c, "too many requests", http.StatusTooManyRequests, nil,
		errs.New(errs.KindUnavailable, "rate limit exceeded, try again in "+time.Until(info.ResetTime).Round(time.Second).String()))
}

// keyFunc buckets authenticated callers by user and everyone else by address.
func keyFunc(c *gin.Context) string {
	if id, ok := c.Get("userID"); ok {
		if userID, ok := id.(uint); ok {
			return "user:" + strconv.FormatUint(uint64(userID), 10)
		}
	}
	return "ip:" + c.ClientIP()
}

// respondAndAbort calls response.JSON and aborts the Context
func respondAndAbort(c *gin.Context, message string, status int, data interface{}, e *errs.Error) {
	response.JSON(c, message, status, data, e)
	c.Abort()
}

// getTokenFromHeader returns the token string in the authorization header
func getTokenFromHeader(c *gin.Context) string {
	authHeader := c.Request.Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return ""
}

func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	timeout := s.Config.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}
