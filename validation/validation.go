// Package validation holds the synchronous field predicates used by the
// request handlers. Each predicate returns nil when the input is acceptable
// and a descriptive error otherwise; callers map the error to a 400 response.
package validation

import (
	"errors"
	"fmt"
	"net/mail"
)

const (
	minTodoLength = 3
	maxTodoLength = 200

	minCredentialLength = 3
	maxCredentialLength = 20
)

// IsEmail reports whether s is a syntactically valid email address.
// Login uses this to pick exactly one lookup strategy (email vs username).
func IsEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	// mail.ParseAddress accepts display names ("A <a@b.c>"); a login id must
	// be the bare address
	return addr.Address == s
}

// UserData validates the signup fields.
func UserData(name, email, username, password string) error {
	if name == "" || email == "" || username == "" || password == "" {
		return errors.New("missing credentials")
	}
	if len(username) < minCredentialLength || len(username) > maxCredentialLength {
		return fmt.Errorf("username length should be %d-%d", minCredentialLength, maxCredentialLength)
	}
	if len(password) < minCredentialLength || len(password) > maxCredentialLength {
		return fmt.Errorf("password length should be %d-%d", minCredentialLength, maxCredentialLength)
	}
	if !IsEmail(email) {
		return errors.New("email format is incorrect")
	}
	return nil
}

// LoginData validates the login fields.
func LoginData(loginID, password string) error {
	if loginID == "" || password == "" {
		return errors.New("missing credentials")
	}
	return nil
}

// TodoText validates a task item's text.
func TodoText(text string) error {
	if text == "" {
		return errors.New("todo text is empty")
	}
	if len(text) < minTodoLength || len(text) > maxTodoLength {
		return fmt.Errorf("todo text length should be between %d-%d", minTodoLength, maxTodoLength)
	}
	return nil
}
