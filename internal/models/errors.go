package models

import "errors"

// Custom errors
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInsufficientData = errors.New("insufficient graded data")
	ErrNotFound         = errors.New("record not found")
	ErrAlreadyGraded    = errors.New("outcome already graded")
	ErrConfiguration    = errors.New("invalid configuration")
)
