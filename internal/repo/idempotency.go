package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-todos-backend/internal/domain"
)

// ErrDuplicate reports that (user_id, scope, key) is already taken, usually
// by a concurrent request with the same Idempotency-Key.
var ErrDuplicate = errors.New("idempotency key already recorded")

// GetIdempotency returns the record for (userID, scope, key) if it is still
// live at now, otherwise ErrNotFound. A blank key never matches.
func GetIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where(map[string]any{"user_id": userID, "scope": scope, "key": key}).
		Where("expires_at > ?", now).
		Take(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency records that key produced todoID, live for ttl. An
// expired record for the same key is replaced; a live one yields ErrDuplicate.
func CreateIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key, todoID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	if err := releaseExpired(ctx, db, userID, scope, key, now); err != nil {
		return nil, err
	}
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		UserID:    userID,
		Scope:     scope,
		Key:       key,
		TodoID:    todoID,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	err := db.WithContext(ctx).Create(rec).Error
	switch {
	case err == nil:
		return rec, nil
	case isUniqueViolation(err):
		return nil, ErrDuplicate
	default:
		return nil, err
	}
}

// releaseExpired frees (userID, scope, key) when its record expired at now,
// before the purge got to it.
func releaseExpired(ctx context.Context, db *gorm.DB, userID, scope, key string, now time.Time) error {
	return db.WithContext(ctx).
		Where(map[string]any{"user_id": userID, "scope": scope, "key": key}).
		Where("expires_at <= ?", now).
		Delete(&domain.Idempotency{}).Error
}

// DeleteIdempotency removes the record for (userID, scope, key) if it still
// points at todoID. Used when that todo was deleted.
func DeleteIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key, todoID string) error {
	return db.WithContext(ctx).
		Where(map[string]any{"user_id": userID, "scope": scope, "key": key, "todo_id": todoID}).
		Delete(&domain.Idempotency{}).Error
}

// PurgeExpiredIdempotency deletes records expired at now and returns the count.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}

// isUniqueViolation covers drivers whose errors GORM does not translate.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"unique constraint failed", "constraint failed: unique", "duplicate key"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
