package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/techagentng/citizenchat/server/response"
)

func (s *Server) handleListNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := callerID(c)
		if err != nil {
			s.fail(c, err)
			return
		}
		page, err := pageQuery(c)
		if err != nil {
			s.fail(c, err)
			return
		}

		ctx, cancel := s.requestContext(c)
		defer cancel()
		notifications, err := s.NotificationService.List(ctx, userID, page)
		if err != nil {
			s.fail(c, err)
			return
		}
		response.JSON(c, "notifications retrieved", http.StatusOK, notifications, nil)
	}
}

func (s *Server) handleUnreadNotificationCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := callerID(c)
		if err != nil {
			s.fail(c, err)
			return
		}

		ctx, cancel := s.requestContext(c)
		defer cancel()
		count, err := s.NotificationService.UnreadCount(ctx, userID)
		if err != nil {
			s.fail(c, err)
			return
		}
		response.JSON(c, "unread count retrieved", http.StatusOK, gin.H{"unread_count": count}, nil)
	}
}

// handleMarkNotificationRead answers 404 for notifications the caller does
// not own.
func (s *Server) handleMarkNotificationRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := callerID(c)
		if err != nil {
			s.fail(c, err)
			return
		}
		id, err := uintParam(c, "id")
		if err != nil {
			s.fail(c, err)
			return
		}

		ctx, cancel := s.requestContext(c)
		defer cancel()
		if err := s.NotificationService.MarkRead(ctx, id, userID); err != nil {
			s.fail(c, err)
			return
		}
		response.JSON(c, "notification marked as read", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleMarkAllNotificationsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := callerID(c)
		if err != nil {
			s.fail(c, err)
			return
		}

		ctx, cancel := s.requestContext(c)
		defer cancel()
		updated, err := s.NotificationService.MarkAllRead(ctx, userID)
		if err != nil {
			s.fail(c, err)
			return
		}
		response.JSON(c, "notifications marked as read", http.StatusOK, gin.H{"updated": updated}, nil)
	}
}

func (s *Server) handleDeleteNotification() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := callerID(c)
		if err != nil {
			s.fail(c, err)
			return
		}
		id, err := uintParam(c, "id")
		if err != nil {
			s.fail(c, err)
			return
		}

		ctx, cancel := s.requestContext(c)
		defer cancel()
		if err := s.NotificationService.Delete(ctx, id, userID); err != nil {
			s.fail(c, err)
			return
		}
		response.JSON(c, "notification deleted", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleDeleteAllNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := callerID(c)
		if err != nil {
			s.fail(c, err)
			return
		}

		ctx, cancel := s.requestContext(c)
		defer cancel()
		deleted, err := s.NotificationService.DeleteAll(ctx, userID)
		if err != nil {
			s.fail(c, err)
			return
		}
		response.JSON(c, "notifications deleted", http.StatusOK, gin.H{"deleted": deleted}, nil)
	}
}
