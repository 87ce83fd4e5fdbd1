// Package services – TodoService
//
// This file implements TodoService, which owns the business rules for todo
// records: every record has exactly one owner, only that owner may read or
// change it, and every mutation re-enters the ownership-checked Get before
// touching the store.
//
// Operations return result.Result instead of (value, error) pairs. Store
// errors never escape as raw errors; they are converted into a Failure with a
// Kind the handler layer can map to a status code.
//
// Observability: all public methods are OpenTelemetry-instrumented and count
// their outcome in todo_operations_total.
package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-todos-backend/internal/domain"
	"github.com/tbourn/go-todos-backend/internal/repo"
	"github.com/tbourn/go-todos-backend/internal/result"
	"github.com/tbourn/go-todos-backend/internal/utils"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// IdempotencyScopeCreate namespaces idempotency keys used by POST /todos.
const IdempotencyScopeCreate = "todos.create"

// TodoRepo defines the repository contract required by TodoService.
// Implementations are responsible for persistence only; none of them
// filter by owner on single-record access.
type TodoRepo interface {
	// CreateTodo inserts t, filling its ID (and CreatedAt when zero).
	CreateTodo(ctx context.Context, db *gorm.DB, t *domain.Todo) error

	// GetTodo fetches a todo by id regardless of owner.
	GetTodo(ctx context.Context, db *gorm.DB, id string) (*domain.Todo, error)

	// ListTodos returns all todos owned by ownerID, newest first.
	ListTodos(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.Todo, error)

	// CountTodos returns the total number of todos for pagination.
	CountTodos(ctx context.Context, db *gorm.DB, ownerID string) (int64, error)

	// ListTodosPage returns one page of ownerID's todos, newest first.
	ListTodosPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.Todo, error)

	// UpdateTodoFields overwrites title, description and completion.
	UpdateTodoFields(ctx context.Context, db *gorm.DB, id, title, description string, isCompleted bool) error

	// SetTodoCompleted writes the completion flag only.
	SetTodoCompleted(ctx context.Context, db *gorm.DB, id string, completed bool) error

	// DeleteTodo physically removes the row.
	DeleteTodo(ctx context.Context, db *gorm.DB, id string) error

	// TodosStats returns the count and newest updated_at for ownerID.
	TodosStats(ctx context.Context, db *gorm.DB, ownerID string) (int64, *time.Time, error)

	// GetIdempotency returns a live idempotency record or repo.ErrNotFound.
	GetIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key string, now time.Time) (*domain.Idempotency, error)

	// CreateIdempotency stores a record, returning repo.ErrDuplicate on conflict.
	CreateIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key, todoID string, status int, ttl time.Duration) (*domain.Idempotency, error)

	// DeleteIdempotency drops the record for key if it still points at todoID.
	DeleteIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key, todoID string) error
}

// CreateTodoInput carries the client-supplied fields of a new todo.
// The owner is never part of the input.
type CreateTodoInput struct {
	Title       string
	Description string
}

// UpdateTodoInput carries a full replacement of the client-editable fields.
type UpdateTodoInput struct {
	Title       string
	Description string
	IsCompleted bool
}

// TodoPage is one page of a user's todos plus paging metadata.
type TodoPage struct {
	Items    []domain.Todo
	Total    int64
	Page     int
	PageSize int
}

// TodoStats is aggregate list metadata used for ETags.
type TodoStats struct {
	Count       int64
	LastUpdated *time.Time
}

// CreatedTodo is the outcome of CreateIdempotent. Replayed is true when the
// todo was created by an earlier request carrying the same key.
type CreatedTodo struct {
	Todo     *domain.Todo
	Replayed bool
}

// TodoService provides ownership-checked CRUD over todo records.
type TodoService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the todo repository used by this service.
	Repo TodoRepo

	// Now supplies creation timestamps. Defaults to time.Now.
	Now func() time.Time
	// IdempotencyTTL bounds how long a create key can be replayed.
	IdempotencyTTL time.Duration
}

// NewTodoService constructs a TodoService with default clock and TTL.
func NewTodoService(db *gorm.DB, r TodoRepo) *TodoService {
	return &TodoService{
		DB:             db,
		Repo:           r,
		Now:            time.Now,
		IdempotencyTTL: 24 * time.Hour,
	}
}

func (s *TodoService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *TodoService) start(ctx context.Context, op, ownerID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tr := otel.Tracer("services/TodoService")
	attrs = append(attrs, attribute.String("user.id", ownerID))
	return tr.Start(ctx, op, trace.WithAttributes(attrs...))
}

// List returns every todo owned by ownerID, newest first.
func (s *TodoService) List(ctx context.Context, ownerID string) result.Result[[]domain.Todo] {
	ctx, span := s.start(ctx, "List", ownerID)
	defer span.End()

	items, err := s.Repo.ListTodos(ctx, s.DB, ownerID)
	if err != nil {
		return observe(span, "list", result.Failf[[]domain.Todo](result.KindUnavailable, "Failed to get todos: %v", err))
	}
	if items == nil {
		items = []domain.Todo{}
	}
	span.SetAttributes(attribute.Int("todos.count", len(items)))
	return observe(span, "list", result.Success(items))
}

// ListPage returns a page of ownerID's todos in List order.
// Out-of-range page and pageSize are normalized the same way the HTTP layer
// does it.
func (s *TodoService) ListPage(ctx context.Context, ownerID string, page, pageSize int) result.Result[TodoPage] {
	page, pageSize = utils.NormalizePage(page, pageSize)
	ctx, span := s.start(ctx, "ListPage", ownerID,
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	)
	defer span.End()

	total, err := s.Repo.CountTodos(ctx, s.DB, ownerID)
	if err != nil {
		return observe(span, "list", result.Failf[TodoPage](result.KindUnavailable, "Failed to get todos: %v", err))
	}
	out := TodoPage{Items: []domain.Todo{}, Total: total, Page: page, PageSize: pageSize}
	if total == 0 {
		return observe(span, "list", result.Success(out))
	}

	items, err := s.Repo.ListTodosPage(ctx, s.DB, ownerID, utils.Offset(page, pageSize), pageSize)
	if err != nil {
		return observe(span, "list", result.Failf[TodoPage](result.KindUnavailable, "Failed to get todos: %v", err))
	}
	if items != nil {
		out.Items = items
	}
	return observe(span, "list", result.Success(out))
}

// Get returns the todo id when it exists and belongs to ownerID.
func (s *TodoService) Get(ctx context.Context, ownerID, id string) result.Result[*domain.Todo] {
	ctx, span := s.start(ctx, "Get", ownerID, attribute.String("todo.id", id))
	defer span.End()

	return observe(span, "get", s.get(ctx, ownerID, id))
}

// get is the ownership check shared by every single-record operation.
func (s *TodoService) get(ctx context.Context, ownerID, id string) result.Result[*domain.Todo] {
	t, err := s.Repo.GetTodo(ctx, s.DB, id)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return result.Fail[*domain.Todo](result.KindNotFound, MsgTodoNotFound)
	case err != nil:
		return result.Failf[*domain.Todo](result.KindUnavailable, "Failed to get todo: %v", err)
	case t.OwnerID != ownerID:
		return result.Fail[*domain.Todo](result.KindUnauthorized, MsgUnauthorized)
	}
	return result.Success(t)
}

// Create stores a new todo owned by ownerID. The record starts incomplete
// and receives its id from the repository.
func (s *TodoService) Create(ctx context.Context, ownerID string, in CreateTodoInput) result.Result[*domain.Todo] {
	ctx, span := s.start(ctx, "Create", ownerID)
	defer span.End()

	if strings.TrimSpace(in.Title) == "" {
		return observe(span, "create", result.Fail[*domain.Todo](result.KindValidation, MsgTitleRequired))
	}
	t := s.newTodo(ownerID, in)
	if err := s.Repo.CreateTodo(ctx, s.DB, t); err != nil {
		return observe(span, "create", result.Failf[*domain.Todo](writeKind(err), "Failed to create todo: %v", err))
	}
	span.SetAttributes(attribute.String("todo.id", t.ID))
	return observe(span, "create", result.Success(t))
}

// CreateIdempotent behaves like Create, except that a repeated key for the
// same owner returns the todo created by the first request. The todo and its
// idempotency record are written in one transaction. A blank key falls back
// to Create.
func (s *TodoService) CreateIdempotent(ctx context.Context, ownerID, key string, in CreateTodoInput) result.Result[CreatedTodo] {
	key = strings.TrimSpace(key)
	if key == "" {
		return result.Then(s.Create(ctx, ownerID, in), func(t *domain.Todo) result.Result[CreatedTodo] {
			return result.Success(CreatedTodo{Todo: t})
		})
	}

	ctx, span := s.start(ctx, "CreateIdempotent", ownerID, attribute.String("idempotency.key", key))
	defer span.End()

	if replay, found := s.replay(ctx, ownerID, key); found {
		return observe(span, "create", replay)
	}
	if strings.TrimSpace(in.Title) == "" {
		return observe(span, "create", result.Fail[CreatedTodo](result.KindValidation, MsgTitleRequired))
	}

	t := s.newTodo(ownerID, in)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.Repo.CreateTodo(ctx, tx, t); err != nil {
			return err
		}
		_, err := s.Repo.CreateIdempotency(ctx, tx, ownerID, IdempotencyScopeCreate, key, t.ID, http.StatusCreated, s.IdempotencyTTL)
		return err
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// A concurrent request with the same key committed first.
		if replay, found := s.replay(ctx, ownerID, key); found {
			return observe(span, "create", replay)
		}
	}
	if err != nil {
		return observe(span, "create", result.Failf[CreatedTodo](writeKind(err), "Failed to create todo: %v", err))
	}
	span.SetAttributes(attribute.String("todo.id", t.ID))
	return observe(span, "create", result.Success(CreatedTodo{Todo: t}))
}

// replay resolves a stored idempotency key to its todo. found is false when
// no live record exists or the lookup itself failed. A record whose todo has
// since been deleted is dropped so the key can create again.
func (s *TodoService) replay(ctx context.Context, ownerID, key string) (result.Result[CreatedTodo], bool) {
	rec, err := s.Repo.GetIdempotency(ctx, s.DB, ownerID, IdempotencyScopeCreate, key, s.now())
	if err != nil {
		return result.Result[CreatedTodo]{}, false
	}
	r := s.get(ctx, ownerID, rec.TodoID)
	gone := result.Match(r,
		func(*domain.Todo) bool { return false },
		func(f result.Failure) bool { return f.Kind == result.KindNotFound },
	)
	if gone {
		if err := s.Repo.DeleteIdempotency(ctx, s.DB, ownerID, IdempotencyScopeCreate, key, rec.TodoID); err != nil {
			return result.Failf[CreatedTodo](result.KindUnavailable, "Failed to create todo: %v", err), true
		}
		return result.Result[CreatedTodo]{}, false
	}
	return result.Then(r, func(t *domain.Todo) result.Result[CreatedTodo] {
		return result.Success(CreatedTodo{Todo: t, Replayed: true})
	}), true
}

// Update replaces the editable fields of todo id after the ownership check
// and returns the stored record.
func (s *TodoService) Update(ctx context.Context, ownerID, id string, in UpdateTodoInput) result.Result[*domain.Todo] {
	ctx, span := s.start(ctx, "Update", ownerID, attribute.String("todo.id", id))
	defer span.End()

	r := result.Then(s.get(ctx, ownerID, id), func(t *domain.Todo) result.Result[*domain.Todo] {
		if strings.TrimSpace(in.Title) == "" {
			return result.Fail[*domain.Todo](result.KindValidation, MsgTitleRequired)
		}
		if err := s.Repo.UpdateTodoFields(ctx, s.DB, t.ID, in.Title, in.Description, in.IsCompleted); err != nil {
			return result.Failf[*domain.Todo](writeKind(err), "Failed to update todo: %v", err)
		}
		updated, err := s.Repo.GetTodo(ctx, s.DB, t.ID)
		if err != nil {
			return result.Failf[*domain.Todo](result.KindUnavailable, "Failed to update todo: %v", err)
		}
		return result.Success(updated)
	})
	return observe(span, "update", r)
}

// Delete removes todo id after the ownership check.
func (s *TodoService) Delete(ctx context.Context, ownerID, id string) result.Result[bool] {
	ctx, span := s.start(ctx, "Delete", ownerID, attribute.String("todo.id", id))
	defer span.End()

	r := result.Then(s.get(ctx, ownerID, id), func(t *domain.Todo) result.Result[bool] {
		if err := s.Repo.DeleteTodo(ctx, s.DB, t.ID); err != nil {
			return result.Failf[bool](writeKind(err), "Failed to delete todo: %v", err)
		}
		return result.Success(true)
	})
	return observe(span, "delete", r)
}

// ToggleCompletion flips isCompleted of todo id after the ownership check.
func (s *TodoService) ToggleCompletion(ctx context.Context, ownerID, id string) result.Result[bool] {
	ctx, span := s.start(ctx, "ToggleCompletion", ownerID, attribute.String("todo.id", id))
	defer span.End()

	r := result.Then(s.get(ctx, ownerID, id), func(t *domain.Todo) result.Result[bool] {
		if err := s.Repo.SetTodoCompleted(ctx, s.DB, t.ID, !t.IsCompleted); err != nil {
			return result.Failf[bool](writeKind(err), "Failed to toggle todo: %v", err)
		}
		return result.Success(true)
	})
	return observe(span, "toggle", r)
}

// Stats returns list metadata for ownerID.
func (s *TodoService) Stats(ctx context.Context, ownerID string) result.Result[TodoStats] {
	ctx, span := s.start(ctx, "Stats", ownerID)
	defer span.End()

	n, last, err := s.Repo.TodosStats(ctx, s.DB, ownerID)
	if err != nil {
		return observe(span, "stats", result.Failf[TodoStats](result.KindUnavailable, "Failed to get todo stats: %v", err))
	}
	return observe(span, "stats", result.Success(TodoStats{Count: n, LastUpdated: last}))
}

func (s *TodoService) newTodo(ownerID string, in CreateTodoInput) *domain.Todo {
	return &domain.Todo{
		OwnerID:     ownerID,
		Title:       in.Title,
		Description: in.Description,
		IsCompleted: false,
		CreatedAt:   s.now(),
	}
}

// writeKind classifies a failed write: connectivity and cancellation are
// KindUnavailable, anything else is a rejected write.
func writeKind(err error) result.Kind {
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, gorm.ErrInvalidDB):
		return result.KindUnavailable
	default:
		return result.KindValidation
	}
}

// observe records the outcome of r on span and in todo_operations_total.
func observe[T any](span trace.Span, op string, r result.Result[T]) result.Result[T] {
	r.Match(
		func(T) {
			todoOps.WithLabelValues(op, outcomeSuccess).Inc()
		},
		func(f result.Failure) {
			todoOps.WithLabelValues(op, f.Kind.String()).Inc()
			span.SetAttributes(attribute.String("failure.kind", f.Kind.String()))
			span.SetStatus(codes.Error, f.Message)
		},
	)
	return r
}
