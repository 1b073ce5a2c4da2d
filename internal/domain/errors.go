package domain

import "errors"

// Auth errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already registered")
	ErrDuplicateUser      = errors.New("username or email already in use")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("invalid token")
)

// Task errors
var (
	ErrTitleRequired = errors.New("task title is required")
	ErrTaskNotFound  = errors.New("task not found")
	ErrNotTaskOwner  = errors.New("task belongs to another user")
)
