package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	errs "github.com/techagentng/citizenchat/errors"
)

// JSON writes the standard envelope. err may be nil, an *errs.Error or any
// other error; internal failures never leak their cause to the client.
func JSON(c *gin.Context, message string, status int, data interface{}, err error) {
	responsedata := gin.H{
		"message":   message,
		"data":      data,
		"errors":    errorBody(err),
		"status":    http.StatusText(status),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	c.JSON(status, responsedata)
}

// Error reports err with the status its kind maps to.
func Error(c *gin.Context, err error) {
	JSON(c, "", errs.Status(err), nil, err)
}

func errorBody(err error) interface{} {
	if err == nil {
		return nil
	}
	e := errs.As(err)
	if e.Kind == errs.KindInternal {
		return errs.New(errs.KindInternal, "internal server error")
	}
	return e
}
