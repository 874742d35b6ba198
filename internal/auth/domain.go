package auth

import "time"

// User represents an account that can sign in to the console. ID doubles as
// the actor identifier used for role assignments.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}

// Error is a sign-in failure safe to show to the user.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Sign-in failures.
var (
	ErrUserNotFound    = &Error{Code: "user-not-found", Message: "User not found"}
	ErrWrongPassword   = &Error{Code: "wrong-password", Message: "Wrong password"}
	ErrTooManyAttempts = &Error{Code: "too-many-requests", Message: "Too many attempts. Try again later."}
)
