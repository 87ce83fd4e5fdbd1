// Idempotency-Key support for POST /todos. The validator only checks the
// header and asks a lookup whether the caller already used the key; the
// handler and service decide what a replay returns. Other methods ignore the
// header.

package middleware

import (
	"cmp"
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client's retry key on POST /todos.
const HeaderIdempotencyKey = "Idempotency-Key"

// Context keys used internally to stash idempotency state.
const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyRateBypass = "rate.bypass" // bool: true to skip rate limiting
)

// defaultKeyPattern accepts UUIDs, ULIDs and similar opaque tokens.
var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the key accepted by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyIdemKey)
	return s, s != ""
}

// IdempotencyOptions tunes header validation. Expiry lives in the lookup.
type IdempotencyOptions struct {
	MaxLen  int            // default 200
	Pattern *regexp.Regexp // default defaultKeyPattern
}

// IdempotencyLookup answers whether a live record exists for (userID, key)
// at now. Return an error only for lookup failures; they are logged and do
// not block the request.
type IdempotencyLookup func(ctx context.Context, userID, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator rejects malformed keys on POST with 400, stores valid
// ones in the context and, for authenticated callers, lets replays of a
// completed create skip the rate limiter. Requests without the header, and
// non-POST requests, pass through untouched. Mount it after Authenticate so
// the lookup is scoped to the caller.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := cmp.Or(max(opts.MaxLen, 0), 200)
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			Abort(c, http.StatusBadRequest, "bad_idempotency_key", "invalid Idempotency-Key")
			return
		}

		c.Set(ctxKeyIdemKey, key)

		uid, authed := UserID(c)
		if lookup != nil && authed {
			exists, err := lookup(c.Request.Context(), uid, key, time.Now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			}
			if exists {
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}
