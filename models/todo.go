package models

import "time"

// Todo represents a single task item. Username is the owner and is set once
// from the creating session's identity; edits never touch it.
type Todo struct {
	ID        int       `json:"id" db:"id"`
	Todo      string    `json:"todo" db:"todo"`
	Username  string    `json:"username" db:"username"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CreateTodoRequest represents the request to create a task item
type CreateTodoRequest struct {
	Todo string `json:"todo"`
}

// UpdateTodoRequest represents the request to overwrite a task item's text
type UpdateTodoRequest struct {
	Todo string `json:"todo"`
}
