package models

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("report was modified concurrently")
	ErrDuplicateEmail = errors.New("email already registered")
)
