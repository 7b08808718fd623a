package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	errs "github.com/techagentng/citizenchat/errors"
	"github.com/techagentng/citizenchat/server/response"
)

func (s *Server) upgrader() *websocket.Upgrader {
	allowed := strings.TrimSpace(s.Config.AccessControlAllowOrigin)
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowed == "" || allowed == "*" {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range strings.Split(allowed, ",") {
				if strings.TrimSpace(o) == origin {
					return true
				}
			}
			return false
		},
	}
}

// handleWebsocket upgrades the connection and hands it to the hub. A token
// may come in the Authorization header or the token query parameter;
// without one the session starts unauthenticated and must send connect.
func (s *Server) handleWebsocket() gin.HandlerFunc {
	upgrader := s.upgrader()
	return func(c *gin.Context) {
		token := getTokenFromHeader(c)
		if token == "" {
			token = c.Query("token")
		}

		session, err := s.Hub.Register(c.ClientIP())
		if err != nil {
			s.fail(c, errs.Unavailable("realtime gateway is shutting down", err))
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade has already written the failure response.
			s.Hub.Unregister(session)
			s.Log.Debugw("websocket upgrade failed", "remote", c.ClientIP(), "error", err)
			return
		}

		s.Hub.Accept(c.Request.Context(), session, token)
		s.Hub.Serve(conn, session)
	}
}

func (s *Server) handlePresence() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := callerID(c); err != nil {
			s.fail(c, err)
			return
		}
		userID, err := uintParam(c, "userID")
		if err != nil {
			s.fail(c, err)
			return
		}

		ctx, cancel := s.requestContext(c)
		defer cancel()
		status, err := s.Hub.Presence(ctx, userID)
		if err != nil {
			s.fail(c, err)
			return
		}
		response.JSON(c, "", http.StatusOK, status, nil)
	}
}
