// Package middleware holds the Gin middleware of the todos API: caller
// authentication, correlation ids and access logging, idempotency keys,
// per-user rate limiting, Prometheus instrumentation and security headers.
//
// Authenticate turns an "Authorization: Bearer" header into a verified
// identity. Handlers never see the raw token, only the user id stored in the
// Gin context. Every failure (missing header, wrong scheme, bad or expired
// token) yields the same 401 body so clients cannot tell why a token was
// refused.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-todos-backend/internal/identity"
)

const (
	// ContextKeyUserID holds the verified user id (string).
	ContextKeyUserID = "userID"
	// ctxKeyIdentity holds the full identity.Identity.
	ctxKeyIdentity = "identity"
	// ctxKeyLogger holds the request-scoped *zerolog.Logger.
	ctxKeyLogger = "logger"
)

// Authenticate verifies the bearer token with v and stores the caller's
// identity in the context. Requests without a valid token are aborted with 401.
func Authenticate(v identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c)
			return
		}

		id, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			lg := LoggerFrom(c)
			ev := lg.Debug()
			if !errors.Is(err, identity.ErrInvalidToken) {
				// Key fetch or cache trouble, not the client's fault.
				ev = lg.Warn()
			}
			ev.Err(err).Msg("token verification failed")
			unauthorized(c)
			return
		}

		c.Set(ContextKeyUserID, id.UserID)
		c.Set(ctxKeyIdentity, id)

		l := LoggerFrom(c).With().Str("user_id", id.UserID).Logger()
		c.Set(ctxKeyLogger, &l)

		c.Next()
	}
}

// UserID returns the verified user id set by Authenticate.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextKeyUserID)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IdentityFrom returns the verified identity set by Authenticate.
func IdentityFrom(c *gin.Context) (identity.Identity, bool) {
	v, ok := c.Get(ctxKeyIdentity)
	if !ok {
		return identity.Identity{}, false
	}
	id, ok := v.(identity.Identity)
	return id, ok
}

// bearerToken extracts the credentials of a Bearer Authorization header.
// The scheme is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	Abort(c, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
}
