// Package services defines the business logic for todos.
// This file centralizes the failure messages returned inside result.Failure so
// handlers and tests can refer to them by name.
//
// Callers branch on result.Kind, never on the message text.
package services

// Failure messages.
const (
	// MsgTodoNotFound is reported when no todo exists for the requested id.
	MsgTodoNotFound = "Todo not found"

	// MsgUnauthorized is reported when the todo exists but belongs to
	// another owner. Handlers must not reveal it to the caller.
	MsgUnauthorized = "Unauthorized access to todo"

	// MsgTitleRequired is reported when a create or update has a blank title.
	MsgTitleRequired = "Title is required"
)
