// Todo persistence. Missing rows surface as ErrNotFound (gorm's
// ErrRecordNotFound); every other driver error is returned as is.

package repo

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/tbourn/go-todos-backend/internal/domain"
)

// ErrNotFound aliases gorm.ErrRecordNotFound.
var ErrNotFound = gorm.ErrRecordNotFound

// NewTodoID returns a fresh, lexicographically sortable record id.
func NewTodoID() string { return ulid.Make().String() }

// CreateTodo inserts t. An empty ID is filled with NewTodoID and a zero
// CreatedAt with the current UTC time; both are written back into t.
func CreateTodo(ctx context.Context, db *gorm.DB, t *domain.Todo) error {
	if t.ID == "" {
		t.ID = NewTodoID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(t).Error
}

// GetTodo fetches a todo by id regardless of owner. It returns ErrNotFound
// when no row exists.
func GetTodo(ctx context.Context, db *gorm.DB, id string) (*domain.Todo, error) {
	var t domain.Todo
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTodos returns every todo owned by ownerID, newest first. Rows sharing
// a created_at fall back to id order, which for ULIDs is creation order.
func ListTodos(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.Todo, error) {
	out := []domain.Todo{}
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc, id desc").
		Find(&out).Error
	return out, err
}

// CountTodos returns the number of todos owned by ownerID.
func CountTodos(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Todo{}).
		Where("owner_id = ?", ownerID).
		Count(&total).Error
	return total, err
}

// ListTodosPage returns a slice of ownerID's todos in ListTodos order.
// The caller computes offset and limit (e.g., (page-1)*pageSize).
func ListTodosPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.Todo, error) {
	out := []domain.Todo{}
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateTodoFields overwrites the client-editable fields of todo id. A map is
// used so that empty strings and false are written rather than skipped.
// It returns ErrNotFound if no row matched.
func UpdateTodoFields(ctx context.Context, db *gorm.DB, id, title, description string, isCompleted bool) error {
	res := db.WithContext(ctx).
		Model(&domain.Todo{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"title":        title,
			"description":  description,
			"is_completed": isCompleted,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetTodoCompleted writes is_completed for todo id. It returns ErrNotFound
// if no row matched.
func SetTodoCompleted(ctx context.Context, db *gorm.DB, id string, completed bool) error {
	res := db.WithContext(ctx).
		Model(&domain.Todo{}).
		Where("id = ?", id).
		Update("is_completed", completed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTodo physically removes todo id. It returns ErrNotFound if no row
// matched.
func DeleteTodo(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&domain.Todo{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
