package domain

import "time"

// Idempotency remembers which todo a POST /todos with a given Idempotency-Key
// produced, so a retry within the TTL gets the same todo back instead of a
// duplicate. Keys are scoped per user and per operation.
type Idempotency struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	UserID    string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_idem_user_scope_key,priority:1"`
	Scope     string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_idem_user_scope_key,priority:2"`
	Key       string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_idem_user_scope_key,priority:3"`
	TodoID    string    `gorm:"type:char(26);not null"`
	Status    int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

func (Idempotency) TableName() string { return "idempotency" }
