package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrCheckViolation means a table constraint rejected the write.
	ErrCheckViolation = errors.New("check violation")
)
