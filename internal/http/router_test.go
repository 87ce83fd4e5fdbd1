package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-todos-backend/internal/config"
	"github.com/tbourn/go-todos-backend/internal/domain"
	"github.com/tbourn/go-todos-backend/internal/http/middleware"
	"github.com/tbourn/go-todos-backend/internal/identity"
	"github.com/tbourn/go-todos-backend/internal/repo"
	"github.com/tbourn/go-todos-backend/internal/services"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// tokenVerifier accepts "tok-<uid>" and rejects everything else.
var tokenVerifier = identity.VerifierFunc(func(_ context.Context, token string) (identity.Identity, error) {
	uid, ok := strings.CutPrefix(token, "tok-")
	if !ok || uid == "" {
		return identity.Identity{}, identity.ErrInvalidToken
	}
	return identity.Identity{UserID: uid, Email: uid + "@example.com", ExpiresAt: time.Now().Add(time.Hour)}, nil
})

func testConfig() config.Config {
	return config.Config{
		APIBasePath:    "/api/v1",
		RateRPS:        100,
		RateBurst:      100,
		MaxBodyBytes:   1 << 20,
		IdempotencyTTL: time.Hour,
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newTestRouter(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, tokenVerifier, cfg)
	return r, db
}

// call issues a request as uid ("" for anonymous).
func call(r http.Handler, method, path, uid, body string, hdr ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if uid != "" {
		req.Header.Set("Authorization", "Bearer tok-"+uid)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeTodo(t *testing.T, w *httptest.ResponseRecorder) domain.Todo {
	t.Helper()
	var td domain.Todo
	if err := json.Unmarshal(w.Body.Bytes(), &td); err != nil {
		t.Fatalf("decode todo: %v (body=%s)", err, w.Body.String())
	}
	return td
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	w := call(r, http.MethodGet, "/health", "", "", "Origin", "https://app.example.org")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "private, no-cache" {
		t.Fatalf("Cache-Control=%q", got)
	}

	w = call(r, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	w = call(r, http.MethodGet, "/nope", "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	w = call(r, http.MethodPost, "/health", "", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}

	// swagger is off unless enabled
	w = call(r, http.MethodGet, "/swagger/index.html", "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be disabled, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig()
	cfg.APIBasePath = "/api/v2"
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"https://app.example.org"}}
	r, _ := newTestRouter(t, cfg)

	w := call(r, http.MethodGet, "/health", "", "", "Origin", "https://app.example.org")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.org" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}

	w = call(r, http.MethodGet, "/health", "", "", "Origin", "https://evil.example.net")
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign origin expected 403, got %d", w.Code)
	}
}

func TestRegisterRoutes_SwaggerEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	r, _ := newTestRouter(t, cfg)

	w := call(r, http.MethodGet, "/swagger/doc.json", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /swagger/doc.json = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "/todos/{id}/toggle") {
		t.Fatalf("swagger doc missing toggle route")
	}
}

func TestRegisterRoutes_HealthDegradedWhenStoreClosed(t *testing.T) {
	r, db := newTestRouter(t, testConfig())
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()

	w := call(r, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestRegisterRoutes_HealthReportsExtraChecks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cacheUp := true
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), tokenVerifier, testConfig(), HealthCheck{
		Name: "token_cache",
		Ping: func(context.Context) error {
			if cacheUp {
				return nil
			}
			return errors.New("dial tcp: connection refused")
		},
	})

	decode := func(w *httptest.ResponseRecorder) (status string, checks map[string]string) {
		var body struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("health body %q: %v", w.Body.String(), err)
		}
		return body.Status, body.Checks
	}

	w := call(r, http.MethodGet, "/health", "", "")
	status, checks := decode(w)
	if w.Code != http.StatusOK || status != "ok" || checks["store"] != "ok" || checks["token_cache"] != "ok" {
		t.Fatalf("healthy: code=%d status=%q checks=%v", w.Code, status, checks)
	}

	cacheUp = false
	w = call(r, http.MethodGet, "/health", "", "")
	status, checks = decode(w)
	if w.Code != http.StatusServiceUnavailable || status != "degraded" || checks["store"] != "ok" || checks["token_cache"] != "down" {
		t.Fatalf("cache down: code=%d status=%q checks=%v", w.Code, status, checks)
	}
}

func TestAPI_RequiresBearerToken(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/todos"},
		{http.MethodPost, "/api/v1/todos"},
		{http.MethodGet, "/api/v1/todos/x"},
		{http.MethodGet, "/api/v1/auth/validate"},
	} {
		w := call(r, tc.method, tc.path, "", "")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: want 401, got %d", tc.method, tc.path, w.Code)
		}
		if w.Header().Get("WWW-Authenticate") == "" {
			t.Fatalf("%s %s: missing WWW-Authenticate", tc.method, tc.path)
		}
	}

	w := call(r, http.MethodGet, "/api/v1/todos", "", "", "Authorization", "Bearer forged")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("forged token: want 401, got %d", w.Code)
	}
}

func TestAPI_OwnershipLifecycle(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	// create as U1; ownerId in the payload is ignored
	w := call(r, http.MethodPost, "/api/v1/todos", "U1", `{"title":"A","description":"","ownerId":"U2"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: want 201, got %d (%s)", w.Code, w.Body.String())
	}
	created := decodeTodo(t, w)
	if created.OwnerID != "U1" || created.IsCompleted || created.Title != "A" || created.ID == "" {
		t.Fatalf("unexpected created todo: %+v", created)
	}
	if loc := w.Header().Get("Location"); loc != "/api/v1/todos/"+created.ID {
		t.Fatalf("Location=%q", loc)
	}

	// foreign reader sees not found
	w = call(r, http.MethodGet, "/api/v1/todos/"+created.ID, "U2", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("U2 get: want 404, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "Unauthorized") {
		t.Fatalf("foreign access must look like a missing record: %s", w.Body.String())
	}
	for _, rq := range []struct{ method, path, body string }{
		{http.MethodPut, "/api/v1/todos/" + created.ID, `{"title":"hijack"}`},
		{http.MethodPatch, "/api/v1/todos/" + created.ID + "/toggle", ""},
		{http.MethodDelete, "/api/v1/todos/" + created.ID, ""},
	} {
		if w := call(r, rq.method, rq.path, "U2", rq.body); w.Code != http.StatusNotFound {
			t.Fatalf("U2 %s: want 404, got %d", rq.method, w.Code)
		}
	}

	// owner round-trip
	w = call(r, http.MethodGet, "/api/v1/todos/"+created.ID, "U1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("U1 get: want 200, got %d", w.Code)
	}
	got := decodeTodo(t, w)
	if got.Title != "A" || got.Description != "" || got.OwnerID != "U1" || got.CreatedAt.Unix() != created.CreatedAt.Unix() {
		t.Fatalf("round-trip mismatch: %+v vs %+v", got, created)
	}

	// toggle twice returns to the original state
	for i, want := range []bool{true, false} {
		if w := call(r, http.MethodPatch, "/api/v1/todos/"+created.ID+"/toggle", "U1", ""); w.Code != http.StatusNoContent {
			t.Fatalf("toggle %d: want 204, got %d", i, w.Code)
		}
		if td := decodeTodo(t, call(r, http.MethodGet, "/api/v1/todos/"+created.ID, "U1", "")); td.IsCompleted != want {
			t.Fatalf("after toggle %d isCompleted=%v", i, td.IsCompleted)
		}
	}

	// full update
	w = call(r, http.MethodPut, "/api/v1/todos/"+created.ID, "U1", `{"title":"B","description":"d","isCompleted":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update: want 200, got %d (%s)", w.Code, w.Body.String())
	}
	if td := decodeTodo(t, w); td.Title != "B" || td.Description != "d" || !td.IsCompleted || td.OwnerID != "U1" {
		t.Fatalf("unexpected updated todo: %+v", td)
	}

	// delete then get
	if w := call(r, http.MethodDelete, "/api/v1/todos/"+created.ID, "U1", ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete: want 204, got %d", w.Code)
	}
	if w := call(r, http.MethodGet, "/api/v1/todos/"+created.ID, "U1", ""); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: want 404, got %d", w.Code)
	}
}

func TestAPI_ListScopedOrderedAndCached(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	var ids []string
	for _, title := range []string{"t1", "t2", "t3"} {
		w := call(r, http.MethodPost, "/api/v1/todos", "U1", `{"title":"`+title+`"}`)
		if w.Code != http.StatusCreated {
			t.Fatalf("create %s: %d", title, w.Code)
		}
		ids = append(ids, decodeTodo(t, w).ID)
	}
	if w := call(r, http.MethodPost, "/api/v1/todos", "U2", `{"title":"other"}`); w.Code != http.StatusCreated {
		t.Fatalf("create U2: %d", w.Code)
	}

	w := call(r, http.MethodGet, "/api/v1/todos", "U1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: want 200, got %d", w.Code)
	}
	var items []domain.Todo
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("want 3 items for U1, got %d", len(items))
	}
	for i, want := range []string{ids[2], ids[1], ids[0]} {
		if items[i].ID != want || items[i].OwnerID != "U1" {
			t.Fatalf("item %d = %+v; want id %s", i, items[i], want)
		}
	}

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	if w := call(r, http.MethodGet, "/api/v1/todos", "U1", "", "If-None-Match", etag); w.Code != http.StatusNotModified {
		t.Fatalf("conditional list: want 304, got %d", w.Code)
	}

	// a toggle changes the validator
	if w := call(r, http.MethodPatch, "/api/v1/todos/"+ids[0]+"/toggle", "U1", ""); w.Code != http.StatusNoContent {
		t.Fatalf("toggle: %d", w.Code)
	}
	if w := call(r, http.MethodGet, "/api/v1/todos", "U1", "", "If-None-Match", etag); w.Code != http.StatusOK {
		t.Fatalf("list after toggle: want 200, got %d", w.Code)
	}

	// paging
	w = call(r, http.MethodGet, "/api/v1/todos?page=2&page_size=2", "U1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("paged list: %d", w.Code)
	}
	if w.Header().Get("X-Total-Count") != "3" || w.Header().Get("X-Total-Pages") != "2" {
		t.Fatalf("paging headers: %q %q", w.Header().Get("X-Total-Count"), w.Header().Get("X-Total-Pages"))
	}
	items = nil
	_ = json.Unmarshal(w.Body.Bytes(), &items)
	if len(items) != 1 || items[0].ID != ids[0] {
		t.Fatalf("page 2 = %+v", items)
	}
}

func TestAPI_IdempotentCreateReplays(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	const key = "create-0001-abcdef"
	w1 := call(r, http.MethodPost, "/api/v1/todos", "U1", `{"title":"once"}`, middleware.HeaderIdempotencyKey, key)
	if w1.Code != http.StatusCreated {
		t.Fatalf("first create: %d (%s)", w1.Code, w1.Body.String())
	}
	w2 := call(r, http.MethodPost, "/api/v1/todos", "U1", `{"title":"once"}`, middleware.HeaderIdempotencyKey, key)
	if w2.Code != http.StatusCreated {
		t.Fatalf("replayed create: %d", w2.Code)
	}
	if w2.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("missing replay header")
	}
	if decodeTodo(t, w1).ID != decodeTodo(t, w2).ID {
		t.Fatalf("replay must return the original todo")
	}

	// the same key from another user creates a separate todo
	w3 := call(r, http.MethodPost, "/api/v1/todos", "U2", `{"title":"once"}`, middleware.HeaderIdempotencyKey, key)
	if w3.Code != http.StatusCreated || w3.Header().Get("Idempotency-Replayed") != "" {
		t.Fatalf("other user: code=%d replayed=%q", w3.Code, w3.Header().Get("Idempotency-Replayed"))
	}
	if decodeTodo(t, w3).ID == decodeTodo(t, w1).ID {
		t.Fatalf("keys must be scoped per user")
	}

	w := call(r, http.MethodGet, "/api/v1/todos", "U1", "")
	var items []domain.Todo
	_ = json.Unmarshal(w.Body.Bytes(), &items)
	if len(items) != 1 {
		t.Fatalf("U1 should have exactly one todo, got %d", len(items))
	}
}

func TestAPI_IdempotencyKeyOnlyBypassesLimiterForCreateReplays(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS = 0.001
	cfg.RateBurst = 2
	r, _ := newTestRouter(t, cfg)

	const key = "create-0002-limited"
	if w := call(r, http.MethodPost, "/api/v1/todos", "U1", `{"title":"once"}`, middleware.HeaderIdempotencyKey, key); w.Code != http.StatusCreated {
		t.Fatalf("first create: %d (%s)", w.Code, w.Body.String())
	}

	// Replays of the create are served regardless of the bucket.
	for i := range 3 {
		w := call(r, http.MethodPost, "/api/v1/todos", "U1", `{"title":"once"}`, middleware.HeaderIdempotencyKey, key)
		if w.Code != http.StatusCreated {
			t.Fatalf("replay %d: %d", i, w.Code)
		}
	}

	// Reads carrying the same header still spend tokens.
	limited := 0
	for range 10 {
		w := call(r, http.MethodGet, "/api/v1/todos", "U1", "", middleware.HeaderIdempotencyKey, key)
		if w.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited < 9 {
		t.Fatalf("keyed GETs limited %d/10 times, want at least 9", limited)
	}
}

func TestAPI_ValidateAuth(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())
	w := call(r, http.MethodGet, "/api/v1/auth/validate", "U9", "")
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["isAuthenticated"] != true || body["userId"] != "U9" || body["email"] != "U9@example.com" {
		t.Fatalf("unexpected body %v", body)
	}
}

func Test_idempotencyLookup(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	lookup := idempotencyLookup(db)
	now := time.Now().UTC()

	found, err := lookup(ctx, "u1", "k-miss", now)
	if err != nil || found {
		t.Fatalf("miss: found=%v err=%v", found, err)
	}

	if _, err := repo.CreateIdempotency(ctx, db, "u1", services.IdempotencyScopeCreate, "k-hit", "01TODO", http.StatusCreated, time.Hour); err != nil {
		t.Fatalf("seed: %v", err)
	}
	found, err = lookup(ctx, "u1", "k-hit", now)
	if err != nil || !found {
		t.Fatalf("hit: found=%v err=%v", found, err)
	}

	sqlDB, _ := db.DB()
	_ = sqlDB.Close()
	found, err = lookup(ctx, "u1", "k-hit", now)
	if err == nil || found {
		t.Fatalf("closed store: found=%v err=%v", found, err)
	}
	if errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("store failure must not look like a miss")
	}
}

func Test_todoRepoShim_Proxies(t *testing.T) {
	db := newTestDB(t)
	shim := todoRepoShim{}
	ctx := context.Background()

	td := &domain.Todo{Title: "t1", OwnerID: "u1"}
	if err := shim.CreateTodo(ctx, db, td); err != nil || td.ID == "" {
		t.Fatalf("CreateTodo: id=%q err=%v", td.ID, err)
	}
	if got, err := shim.GetTodo(ctx, db, td.ID); err != nil || got.Title != "t1" {
		t.Fatalf("GetTodo: %+v %v", got, err)
	}
	if err := shim.UpdateTodoFields(ctx, db, td.ID, "t1b", "d", true); err != nil {
		t.Fatalf("UpdateTodoFields: %v", err)
	}
	if err := shim.SetTodoCompleted(ctx, db, td.ID, false); err != nil {
		t.Fatalf("SetTodoCompleted: %v", err)
	}
	if all, err := shim.ListTodos(ctx, db, "u1"); err != nil || len(all) != 1 || all[0].Title != "t1b" || all[0].IsCompleted {
		t.Fatalf("ListTodos: %+v %v", all, err)
	}
	if n, err := shim.CountTodos(ctx, db, "u1"); err != nil || n != 1 {
		t.Fatalf("CountTodos: %d %v", n, err)
	}
	if page, err := shim.ListTodosPage(ctx, db, "u1", 0, 10); err != nil || len(page) != 1 {
		t.Fatalf("ListTodosPage: %d %v", len(page), err)
	}
	if n, last, err := shim.TodosStats(ctx, db, "u1"); err != nil || n != 1 || last == nil {
		t.Fatalf("TodosStats: %d %v %v", n, last, err)
	}
	if _, err := shim.CreateIdempotency(ctx, db, "u1", services.IdempotencyScopeCreate, "k1", td.ID, http.StatusCreated, time.Hour); err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	if rec, err := shim.GetIdempotency(ctx, db, "u1", services.IdempotencyScopeCreate, "k1", time.Now()); err != nil || rec.TodoID != td.ID {
		t.Fatalf("GetIdempotency: %+v %v", rec, err)
	}
	if err := shim.DeleteIdempotency(ctx, db, "u1", services.IdempotencyScopeCreate, "k1", td.ID); err != nil {
		t.Fatalf("DeleteIdempotency: %v", err)
	}
	if _, err := shim.GetIdempotency(ctx, db, "u1", services.IdempotencyScopeCreate, "k1", time.Now()); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("GetIdempotency after delete: %v", err)
	}
	if err := shim.DeleteTodo(ctx, db, td.ID); err != nil {
		t.Fatalf("DeleteTodo: %v", err)
	}
	if _, err := shim.GetTodo(ctx, db, td.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("GetTodo after delete: %v", err)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}
