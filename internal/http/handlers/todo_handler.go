// Todo HTTP handlers.
//
// This file exposes the REST endpoints for todo resources:
//   - GET    /todos              (list, optional paging, ETag support)
//   - GET    /todos/{id}         (fetch one)
//   - POST   /todos              (create, Idempotency-Key aware)
//   - PUT    /todos/{id}         (full update)
//   - DELETE /todos/{id}         (delete)
//   - PATCH  /todos/{id}/toggle  (flip completion)
//
// Every handler reads the caller from the identity attached by the
// authentication middleware and refuses to call the service without it.
// Service outcomes arrive as result.Result values and are mapped to status
// codes by failure Kind, never by message text.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-todos-backend/internal/domain"
	"github.com/tbourn/go-todos-backend/internal/http/middleware"
	"github.com/tbourn/go-todos-backend/internal/result"
	"github.com/tbourn/go-todos-backend/internal/services"
	"github.com/tbourn/go-todos-backend/internal/utils"
)

// TodoService defines the todo operations consumed by HTTP handlers.
//
// Implementations must be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type TodoService interface {
	List(ctx context.Context, ownerID string) result.Result[[]domain.Todo]
	ListPage(ctx context.Context, ownerID string, page, pageSize int) result.Result[services.TodoPage]
	Get(ctx context.Context, ownerID, id string) result.Result[*domain.Todo]
	CreateIdempotent(ctx context.Context, ownerID, key string, in services.CreateTodoInput) result.Result[services.CreatedTodo]
	Update(ctx context.Context, ownerID, id string, in services.UpdateTodoInput) result.Result[*domain.Todo]
	Delete(ctx context.Context, ownerID, id string) result.Result[bool]
	ToggleCompletion(ctx context.Context, ownerID, id string) result.Result[bool]
	Stats(ctx context.Context, ownerID string) result.Result[services.TodoStats]
}

// Handlers groups the HTTP endpoints of the API.
type Handlers struct {
	todoSvc TodoService
}

// New constructs Handlers bound to the given todo service.
func New(todoSvc TodoService) *Handlers {
	return &Handlers{todoSvc: todoSvc}
}

//
// DTOs
//

// CreateTodoRequest is the JSON payload for creating a todo. Any owner field
// sent by the client is ignored.
type CreateTodoRequest struct {
	Title       string `json:"title" binding:"required" example:"Buy milk"`
	Description string `json:"description" example:"Two litres, semi-skimmed"`
}

// UpdateTodoRequest is the JSON payload for a full update of a todo.
type UpdateTodoRequest struct {
	Title       string `json:"title" binding:"required" example:"Buy oat milk"`
	Description string `json:"description" example:""`
	IsCompleted bool   `json:"isCompleted" example:"true"`
}

//
// Helpers
//

// callerID returns the verified user id, or aborts with 401 when the
// authentication layer did not attach one.
func callerID(c *gin.Context) (string, bool) {
	uid, found := middleware.UserID(c)
	if !found {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing or invalid bearer token")
		return "", false
	}
	return uid, true
}

// failRecord maps a single-record failure. Absent and foreign records share
// one response so callers cannot discover ids they do not own.
func failRecord(c *gin.Context, f result.Failure, code string) {
	switch f.Kind {
	case result.KindNotFound, result.KindUnauthorized:
		fail(c, http.StatusNotFound, ErrCodeNotFound, services.MsgTodoNotFound)
	default:
		fail(c, http.StatusBadRequest, code, f.Message)
	}
}

// wantsPaging reports whether the client asked for a page explicitly.
func wantsPaging(c *gin.Context) bool {
	_, p := c.GetQuery("page")
	_, ps := c.GetQuery("page_size")
	return p || ps
}

func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ParsePage(c.Query("page"), c.Query("page_size"))
}

// listETag builds the weak validator for a user's list. Any create, update,
// toggle or delete changes either the count or the newest updated_at.
func listETag(uid string, st services.TodoStats, marker string) string {
	var ts int64
	if st.LastUpdated != nil {
		ts = st.LastUpdated.UnixNano()
	}
	return fmt.Sprintf(`W/"todos:%s:%d:%d:%s"`, uid, st.Count, ts, marker)
}

//
// Handlers
//

// ListTodos godoc
// @ID          listTodos
// @Summary     List todos
// @Description Returns the caller's todos, newest first. When page or page_size is given the result is paged and totals are reported in headers. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Todos
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"todos:abc:3:0:all\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {array}  domain.Todo
// @Header      200  {string} ETag           "Weak ETag for current result"
// @Header      200  {int}    X-Total-Count  "Total todos (paged requests only)"
// @Header      200  {int}    X-Total-Pages  "Total pages (paged requests only)"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /todos [get]
func (h *Handlers) ListTodos(c *gin.Context) {
	uid, found := callerID(c)
	if !found {
		return
	}
	ctx := c.Request.Context()
	paged := wantsPaging(c)
	page, pageSize := clampPagination(c)

	marker := "all"
	if paged {
		marker = fmt.Sprintf("%d.%d", page, pageSize)
	}

	// ETag pre-check (best effort; a stats failure just skips caching).
	notModified := result.Match(h.todoSvc.Stats(ctx, uid),
		func(st services.TodoStats) bool {
			etag := listETag(uid, st, marker)
			c.Header("ETag", etag)
			return c.GetHeader("If-None-Match") == etag
		},
		func(result.Failure) bool { return false },
	)
	if notModified {
		c.Status(http.StatusNotModified)
		return
	}

	if !paged {
		h.todoSvc.List(ctx, uid).Match(
			func(items []domain.Todo) { ok(c, http.StatusOK, items) },
			func(f result.Failure) { fail(c, http.StatusInternalServerError, ErrCodeListFailed, f.Message) },
		)
		return
	}

	h.todoSvc.ListPage(ctx, uid, page, pageSize).Match(
		func(p services.TodoPage) {
			c.Header("X-Total-Count", strconv.FormatInt(p.Total, 10))
			c.Header("X-Total-Pages", strconv.FormatInt(utils.TotalPages(p.Total, p.PageSize), 10))
			ok(c, http.StatusOK, p.Items)
		},
		func(f result.Failure) { fail(c, http.StatusInternalServerError, ErrCodeListFailed, f.Message) },
	)
}

// GetTodo godoc
// @ID          getTodo
// @Summary     Get a todo
// @Description Returns one todo owned by the caller. Todos owned by someone else are reported as not found.
// @Tags        Todos
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Todo ID (ULID)"  example(01J9Z8Q6W3M4N5P6Q7R8S9T0VW)
//
// @Success     200  {object} domain.Todo
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Todo not found"
// @Router      /todos/{id} [get]
func (h *Handlers) GetTodo(c *gin.Context) {
	uid, found := callerID(c)
	if !found {
		return
	}
	h.todoSvc.Get(c.Request.Context(), uid, c.Param("id")).Match(
		func(t *domain.Todo) { ok(c, http.StatusOK, t) },
		func(f result.Failure) { failRecord(c, f, ErrCodeBadRequest) },
	)
}

// CreateTodo godoc
// @ID          createTodo
// @Summary     Create a todo
// @Description Creates a todo owned by the caller. With an Idempotency-Key header, a retried request returns the todo created by the first one.
// @Tags        Todos
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string  false "Client retry key (8-128 chars)"  example(4f1c2a8e-create-1)
// @Param       body             body    handlers.CreateTodoRequest  true  "Create todo payload"
//
// @Success     201  {object} domain.Todo
// @Header      201  {string} Location              "URL of the created todo"
// @Header      201  {string} Idempotency-Replayed  "true when the response replays an earlier create"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Router      /todos [post]
func (h *Handlers) CreateTodo(c *gin.Context) {
	uid, found := callerID(c)
	if !found {
		return
	}
	var req CreateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body: title is required")
		return
	}

	key, _ := middleware.GetIdempotencyKey(c)
	in := services.CreateTodoInput{Title: req.Title, Description: req.Description}

	h.todoSvc.CreateIdempotent(c.Request.Context(), uid, key, in).Match(
		func(ct services.CreatedTodo) {
			if ct.Replayed {
				c.Header("Idempotency-Replayed", "true")
			}
			c.Header("Location", strings.TrimSuffix(c.FullPath(), "/")+"/"+ct.Todo.ID)
			ok(c, http.StatusCreated, ct.Todo)
		},
		func(f result.Failure) { fail(c, http.StatusBadRequest, ErrCodeCreateFailed, f.Message) },
	)
}

// UpdateTodo godoc
// @ID          updateTodo
// @Summary     Update a todo
// @Description Replaces title, description and completion of a todo owned by the caller.
// @Tags        Todos
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string  true  "Todo ID (ULID)"  example(01J9Z8Q6W3M4N5P6Q7R8S9T0VW)
// @Param       body  body  handlers.UpdateTodoRequest  true  "Full update payload"
//
// @Success     200  {object} domain.Todo
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Todo not found"
// @Router      /todos/{id} [put]
func (h *Handlers) UpdateTodo(c *gin.Context) {
	uid, found := callerID(c)
	if !found {
		return
	}
	var req UpdateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body: title is required")
		return
	}

	in := services.UpdateTodoInput{Title: req.Title, Description: req.Description, IsCompleted: req.IsCompleted}
	h.todoSvc.Update(c.Request.Context(), uid, c.Param("id"), in).Match(
		func(t *domain.Todo) { ok(c, http.StatusOK, t) },
		func(f result.Failure) { failRecord(c, f, ErrCodeUpdateFailed) },
	)
}

// DeleteTodo godoc
// @ID          deleteTodo
// @Summary     Delete a todo
// @Description Permanently removes a todo owned by the caller.
// @Tags        Todos
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Todo ID (ULID)"  example(01J9Z8Q6W3M4N5P6Q7R8S9T0VW)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Todo not found"
// @Router      /todos/{id} [delete]
func (h *Handlers) DeleteTodo(c *gin.Context) {
	uid, found := callerID(c)
	if !found {
		return
	}
	h.todoSvc.Delete(c.Request.Context(), uid, c.Param("id")).Match(
		func(bool) { noContent(c) },
		func(f result.Failure) { failRecord(c, f, ErrCodeDeleteFailed) },
	)
}

// ToggleTodo godoc
// @ID          toggleTodo
// @Summary     Toggle completion
// @Description Flips isCompleted on a todo owned by the caller.
// @Tags        Todos
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Todo ID (ULID)"  example(01J9Z8Q6W3M4N5P6Q7R8S9T0VW)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Todo not found"
// @Router      /todos/{id}/toggle [patch]
func (h *Handlers) ToggleTodo(c *gin.Context) {
	uid, found := callerID(c)
	if !found {
		return
	}
	h.todoSvc.ToggleCompletion(c.Request.Context(), uid, c.Param("id")).Match(
		func(bool) { noContent(c) },
		func(f result.Failure) { failRecord(c, f, ErrCodeToggleFailed) },
	)
}
