package app

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("embedding already exists")
	ErrNotFound     = errors.New("embedding not found")
)
