package domain

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when no task exists for the requested ID.
var ErrNotFound = errors.New("task not found")

// ErrInvalidDeadline is returned for deadline strings that cannot be parsed.
var ErrInvalidDeadline = errors.New("invalid deadline")

// ValidationError lists required fields that were absent.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing fields: " + strings.Join(e.Fields, ", ")
}
