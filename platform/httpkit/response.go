package httpkit

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"solar_portal_backend/platform/apperr"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Kind    string      `json:"kind,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

func OK(c *gin.Context, payload interface{})       { c.JSON(http.StatusOK, payload) }
func Created(c *gin.Context, payload interface{})  { c.JSON(http.StatusCreated, payload) }
func Accepted(c *gin.Context, payload interface{}) { c.JSON(http.StatusAccepted, payload) }

// HandleError writes the reply for err and reports whether there was one.
// An *apperr.Error anywhere in the chain picks the status; anything else is
// a 500 whose text stays in the logs.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Kind: apperr.KindInternal.String()})
		return true
	}

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, ErrorResponse{Error: appErr.Message, Kind: appErr.Kind.String(), Details: appErr.Details})
	return true
}
