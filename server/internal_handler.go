package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	errs "github.com/techagentng/citizenchat/errors"
	"github.com/techagentng/citizenchat/models"
	"github.com/techagentng/citizenchat/server/response"
)

// Hooks called by the post and account services. They sit behind
// requireInternalToken rather than a user token.

func (s *Server) handlePostCreated() gin.HandlerFunc {
	return func(c *gin.Context) {
		var ev models.PostEvent
		if err := c.ShouldBindJSON(&ev); err != nil {
			s.fail(c, errs.Validation("invalid request body"))
			return
		}

		ctx, cancel := s.requestContext(c)
		defer cancel()
		post, err := s.PostService.RegisterPost(ctx, &ev)
		if err != nil {
			s.fail(c, err)
			return
		}
		response.JSON(c, "post registered", http.StatusCreated, post, nil)
	}
}

func (s *Server) handleCommentCreated() gin.HandlerFunc {
	return func(c *gin.Context) {
		var ev models.CommentEvent
		if err := c.ShouldBindJSON(&ev); err != nil {
			s.fail(c, errs.Validation("invalid request body"))
			return
		}

		ctx, cancel := s.requestContext(c)
		defer cancel()
		n, err := s.PostService.RecordComment(ctx, &ev)
		if err != nil {
			s.fail(c, err)
			return
		}
		response.JSON(c, "comment recorded", http.StatusCreated, gin.H{"notification": n}, nil)
	}
}

func (s *Server) handlePostDeleted() gin.HandlerFunc {
	return func(c *gin.Context) {
		postID, err := uintParam(c, "id")
		if err != nil {
			s.fail(c, err)
			return
		}

		ctx, cancel := s.requestContext(c)
		defer cancel()
		removed, err := s.PostService.OnPostDeleted(ctx, postID)
		if err != nil {
			s.fail(c, err)
			return
		}
		response.JSON(c, "post notifications purged", http.StatusOK, gin.H{"removed": removed}, nil)
	}
}

func (s *Server) handleAccountPurge() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := uintParam(c, "id")
		if err != nil {
			s.fail(c, err)
			return
		}

		ctx, cancel := s.requestContext(c)
		defer cancel()
		report, err := s.AccountService.PurgeAccount(ctx, userID)
		if err != nil {
			s.fail(c, err)
			return
		}
		response.JSON(c, "account data purged", http.StatusOK, report, nil)
	}
}
