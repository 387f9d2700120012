// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the write collided with an existing record.
var ErrConflict = errors.New("conflict: resource already exists")

// ErrValidation indicates caller input failed validation.
var ErrValidation = errors.New("validation failed")
