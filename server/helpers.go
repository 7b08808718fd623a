package server

import (
	"strconv"

	"github.com/gin-gonic/gin"
	errs "github.com/techagentng/citizenchat/errors"
	"github.com/techagentng/citizenchat/models"
	"github.com/techagentng/citizenchat/server/response"
)

// callerID reads the identity Authorize put on the context.
func callerID(c *gin.Context) (uint, error) {
	userIDCtx, ok := c.Get("userID")
	if !ok {
		return 0, errs.Unauthenticated("userID not found in context")
	}
	userID, ok := userIDCtx.(uint)
	if !ok {
		return 0, errs.Internal("userID is not of type uint", nil)
	}
	return userID, nil
}

func uintParam(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, errs.Validation("invalid "+name, errs.FieldError{Field: name, Message: name + " must be a positive integer"})
	}
	return uint(v), nil
}

func pageQuery(c *gin.Context) (models.Page, error) {
	var page models.Page
	if err := c.ShouldBindQuery(&page); err != nil {
		return page, errs.Validation("invalid page query", errs.FieldError{Field: "page", Message: err.Error()})
	}
	return page, nil
}

// fail reports err to the client, logging anything that is not a caller
// mistake.
func (s *Server) fail(c *gin.Context, err error) {
	if errs.KindOf(err) == errs.KindInternal || errs.KindOf(err) == errs.KindUnavailable {
		s.Log.Errorw("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	response.Error(c, err)
}
