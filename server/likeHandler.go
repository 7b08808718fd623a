package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/techagentng/citizenchat/models"
	"github.com/techagentng/citizenchat/server/response"
)

// handleToggleLike flips the caller's like on a post or comment.
func (s *Server) handleToggleLike(kind models.TargetKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := callerID(c)
		if err != nil {
			s.fail(c, err)
			return
		}
		targetID, err := uintParam(c, "id")
		if err != nil {
			s.fail(c, err)
			return
		}

		ctx, cancel := s.requestContext(c)
		defer cancel()
		result, err := s.LikeService.Toggle(ctx, kind, targetID, userID)
		if err != nil {
			s.fail(c, err)
			return
		}
		message := string(kind) + " unliked"
		if result.Liked {
			message = string(kind) + " liked"
		}
		response.JSON(c, message, http.StatusOK, result, nil)
	}
}

func (s *Server) handleIsLiked(kind models.TargetKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := callerID(c)
		if err != nil {
			s.fail(c, err)
			return
		}
		targetID, err := uintParam(c, "id")
		if err != nil {
			s.fail(c, err)
			return
		}

		ctx, cancel := s.requestContext(c)
		defer cancel()
		liked, err := s.LikeService.IsLiked(ctx, kind, targetID, userID)
		if err != nil {
			s.fail(c, err)
			return
		}
		response.JSON(c, "", http.StatusOK, gin.H{"liked": liked}, nil)
	}
}

func (s *Server) handleFollow() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := callerID(c)
		if err != nil {
			s.fail(c, err)
			return
		}
		followeeID, err := uintParam(c, "id")
		if err != nil {
			s.fail(c, err)
			return
		}

		ctx, cancel := s.requestContext(c)
		defer cancel()
		if err := s.FollowService.Follow(ctx, userID, followeeID); err != nil {
			s.fail(c, err)
			return
		}
		response.JSON(c, "user followed", http.StatusCreated, nil, nil)
	}
}

func (s *Server) handleUnfollow() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := callerID(c)
		if err != nil {
			s.fail(c, err)
			return
		}
		followeeID, err := uintParam(c, "id")
		if err != nil {
			s.fail(c, err)
			return
		}

		ctx, cancel := s.requestContext(c)
		defer cancel()
		if err := s.FollowService.Unfollow(ctx, userID, followeeID); err != nil {
			s.fail(c, err)
			return
		}
		response.JSON(c, "user unfollowed", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleFollowers() gin.HandlerFunc {
	return s.listEdges("followers", s.FollowService.Followers)
}

func (s *Server) handleFollowing() gin.HandlerFunc {
	return s.listEdges("following", s.FollowService.Following)
}

type edgeLister func(ctx context.Context, userID uint, page models.Page) ([]uint, int64, error)

func (s *Server) listEdges(name string, list edgeLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := callerID(c); err != nil {
			s.fail(c, err)
			return
		}
		userID, err := uintParam(c, "id")
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
		ids, total, err := list(ctx, userID, page)
		if err != nil {
			s.fail(c, err)
			return
		}
		response.JSON(c, name+" retrieved", http.StatusOK, gin.H{
			"user_ids": ids,
			"total":    total,
		}, nil)
	}
}
