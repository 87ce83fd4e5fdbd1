package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"

	// maxRequestIDLen bounds client supplied correlation ids; longer or
	// non-printable values are replaced with a fresh UUID.
	maxRequestIDLen = 128
)

// RequestID reuses a sane inbound X-Request-ID or mints a UUID, echoes it on
// the response and seeds the request logger with it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Header(requestIDHeader, rid)

		l := log.With().Str("request_id", rid).Logger()
		c.Set(ctxKeyLogger, &l)
		c.Next()
	}
}

// RequestIDFrom returns the correlation id of the current request, or "" when
// RequestID did not run.
func RequestIDFrom(c *gin.Context) string {
	if rid := c.GetString(requestIDKey); rid != "" {
		return rid
	}
	return c.Writer.Header().Get(requestIDHeader)
}

func validRequestID(s string) bool {
	if s == "" || len(s) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x21 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// Recovery turns a panic into a logged stack trace and a JSON 500. If the
// handler already started the response only the status is forced.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("route", routeLabel(c)).
				Msg("panic recovered")
			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorBody{
				RequestID: RequestIDFrom(c),
				Code:      "internal_error",
				Message:   "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request logger installed by RequestID (and enriched
// by Authenticate), falling back to the global logger.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(ctxKeyLogger); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	return &log.Logger
}
