package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-todos-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope of every endpoint, e.g.
//
//	HTTP/1.1 404 Not Found
//	{"request_id":"6f1c2a9e-...","code":"not_found","message":"Todo not found"}
type ErrorResponse = middleware.ErrorBody

// fail aborts with an ErrorResponse; 5xx are logged with the request logger.
func fail(c *gin.Context, status int, code, msg string) {
	middleware.Abort(c, status, code, msg)
}

// Fail lets the router answer unmatched routes with the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
