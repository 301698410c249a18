package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seekwell/seekwell-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func Error(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

// FromErr unwraps an apierr.Error when present, else responds 500.
func FromErr(c *gin.Context, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		Error(c, ae.Status, ae.Code, ae.Err)
		return
	}
	Error(c, http.StatusInternalServerError, "internal_error", err)
}

func OK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
