package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the JSON error envelope written by the middleware chain and
// by the todo handlers.
type ErrorBody struct {
	// Echo of X-Request-ID, for matching client errors to server logs.
	RequestID string `json:"request_id,omitempty" example:"6f1c2a9e-4b7d-4e25-9a0b-2f3c4d5e6f70"`
	// Stable machine-readable code.
	Code string `json:"code" example:"not_found"`
	// Human-readable message.
	Message string `json:"message" example:"Todo not found"`
}

// Abort ends the request with an ErrorBody. Server errors are logged through
// the request logger before the body is written.
func Abort(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("request failed")
	}
	c.AbortWithStatusJSON(status, ErrorBody{
		RequestID: RequestIDFrom(c),
		Code:      code,
		Message:   msg,
	})
}
