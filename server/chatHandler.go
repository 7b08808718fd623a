package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	errs "github.com/techagentng/citizenchat/errors"
	"github.com/techagentng/citizenchat/models"
	"github.com/techagentng/citizenchat/server/response"
)

// handleSendMessage persists a direct message. Live delivery to both parties
// happens through the hub once the write has committed.
func (s *Server) handleSendMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		senderID, err := callerID(c)
		if err != nil {
			s.fail(c, err)
			return
		}
		var req models.SendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.fail(c, errs.Validation("invalid request body"))
			return
		}

		ctx, cancel := s.requestContext(c)
		defer cancel()
		msg, err := s.MessageService.Send(ctx, senderID, &req)
		if err != nil {
			s.fail(c, err)
			return
		}
		response.JSON(c, "message sent", http.StatusCreated, msg, nil)
	}
}

func (s *Server) handleStartConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := callerID(c)
		if err != nil {
			s.fail(c, err)
			return
		}
		otherID, err := uintParam(c, "userID")
		if err != nil {
			s.fail(c, err)
			return
		}

		ctx, cancel := s.requestContext(c)
		defer cancel()
		view, err := s.MessageService.StartConversation(ctx, userID, otherID)
		if err != nil {
			s.fail(c, err)
			return
		}
		response.JSON(c, "conversation ready", http.StatusOK, view, nil)
	}
}

func (s *Server) handleListConversations() gin.HandlerFunc {
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
		views, total, err := s.MessageService.ListConversations(ctx, userID, page)
		if err != nil {
			s.fail(c, err)
			return
		}
		response.JSON(c, "conversations retrieved", http.StatusOK, gin.H{
			"conversations": views,
			"total":         total,
		}, nil)
	}
}

// handleListMessages returns a page of the conversation and marks it read
// for the caller.
func (s *Server) handleListMessages() gin.HandlerFunc {
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
		messages, err := s.MessageService.ListMessages(ctx, userID, c.Param("key"), page)
		if err != nil {
			s.fail(c, err)
			return
		}
		response.JSON(c, "messages retrieved", http.StatusOK, messages, nil)
	}
}

func (s *Server) handleListMessagesWith() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := callerID(c)
		if err != nil {
			s.fail(c, err)
			return
		}
		otherID, err := uintParam(c, "userID")
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
		messages, err := s.MessageService.ListMessagesWith(ctx, userID, otherID, page)
		if err != nil {
			s.fail(c, err)
			return
		}
		response.JSON(c, "messages retrieved", http.StatusOK, messages, nil)
	}
}

func (s *Server) handleMarkConversationRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := callerID(c)
		if err != nil {
			s.fail(c, err)
			return
		}

		ctx, cancel := s.requestContext(c)
		defer cancel()
		if err := s.MessageService.MarkRead(ctx, userID, c.Param("key")); err != nil {
			s.fail(c, err)
			return
		}
		response.JSON(c, "conversation marked as read", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleUnreadMessageCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := callerID(c)
		if err != nil {
			s.fail(c, err)
			return
		}

		ctx, cancel := s.requestContext(c)
		defer cancel()
		count, err := s.MessageService.UnreadCount(ctx, userID)
		if err != nil {
			s.fail(c, err)
			return
		}
		response.JSON(c, "unread count retrieved", http.StatusOK, gin.H{"unread_count": count}, nil)
	}
}
