// Package domain defines the persistence models for todos and idempotency
// records. These types are mapped with GORM and shared by the repository,
// service, and HTTP layers.
package domain

import "time"

// Todo is a single task owned by exactly one user.
//
// Fields:
//   - ID: ULID assigned once at creation; never changes.
//   - Title / Description: client-supplied text.
//   - IsCompleted: false on creation; flipped by toggle or set by update.
//   - OwnerID: verified identity of the creator; never taken from a payload.
//   - CreatedAt: server time at creation; never changes.
//   - UpdatedAt: managed by GORM; used for list ETags only.
//
// There is no DeletedAt column: deleting a todo removes the row.
type Todo struct {
	ID          string    `json:"id"          gorm:"type:char(26);primaryKey"`
	Title       string    `json:"title"       gorm:"type:text;not null"`
	Description string    `json:"description" gorm:"type:text;not null;default:''"`
	IsCompleted bool      `json:"isCompleted" gorm:"not null;default:false"`
	OwnerID     string    `json:"ownerId"     gorm:"type:varchar(128);not null;index:idx_owner_created,priority:1"`
	CreatedAt   time.Time `json:"createdAt"   gorm:"not null;index:idx_owner_created,priority:2"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName returns the database table name for Todo.
func (Todo) TableName() string { return "todos" }
