package middleware

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// maxQueryLogLength caps the logged query string, in bytes.
const maxQueryLogLength = 2048

// RedactOptions adds headers to the always-masked set (Authorization,
// Cookie, Set-Cookie, Idempotency-Key). Names are case-insensitive.
type RedactOptions struct {
	MaskHeaders []string
}

// Patterns are applied in order; UUIDs go first so the phone pattern cannot
// eat their digit groups.
var redactPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`), "[REDACTED:id]"},
	{regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`), "[REDACTED:email]"},
	{regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`), "[REDACTED:phone]"},
}

type redactor struct {
	masked map[string]struct{}
}

func newRedactor(extra []string) redactor {
	r := redactor{masked: map[string]struct{}{
		"authorization":   {},
		"cookie":          {},
		"set-cookie":      {},
		"idempotency-key": {},
	}}
	for _, h := range extra {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			r.masked[h] = struct{}{}
		}
	}
	return r
}

func (redactor) scrub(s string) string {
	for _, p := range redactPatterns {
		if s == "" {
			return s
		}
		s = p.re.ReplaceAllString(s, p.repl)
	}
	return s
}

func (r redactor) query(raw string) string {
	s := r.scrub(raw)
	if len(s) > maxQueryLogLength {
		s = s[:maxQueryLogLength] + "…"
	}
	return s
}

func (r redactor) headers(h http.Header) *zerolog.Event {
	d := zerolog.Dict()
	for k, vv := range h {
		if _, ok := r.masked[strings.ToLower(k)]; ok {
			d.Str(k, "[REDACTED]")
			continue
		}
		d.Str(k, r.scrub(strings.Join(vv, ", ")))
	}
	return d
}

// RedactingLogger writes one access log line per request through the
// request logger. Bodies are never logged; credentials and idempotency keys
// are masked and emails, phone numbers and UUIDs are scrubbed from the query
// and remaining headers. 4xx lines log at warn, 5xx and handler errors at error.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	red := newRedactor(opts.MaskHeaders)
	return func(c *gin.Context) {
		start := time.Now()
		query := red.query(c.Request.URL.RawQuery)
		hdrs := red.headers(c.Request.Header)

		c.Next()

		status := c.Writer.Status()
		lg := LoggerFrom(c)
		var ev *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError || len(c.Errors) > 0:
			ev = lg.Error()
		case status >= http.StatusBadRequest:
			ev = lg.Warn()
		default:
			ev = lg.Info()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Str("method", c.Request.Method).
			Str("route", routeLabel(c)).
			Str("query", query).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Dict("headers", hdrs).
			Msg("http_request")
	}
}
