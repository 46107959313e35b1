package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an update targets an unknown id
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when a create reuses an existing id
	ErrAlreadyExists = errors.New("record already exists")

	// ErrBackendUnavailable wraps network or disk failures of a storage backend
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrResetRefused is returned when a backend declines a full wipe
	ErrResetRefused = errors.New("reset refused by storage backend")

	// ErrMalformedImport is returned when an import payload cannot be used
	ErrMalformedImport = errors.New("malformed import")
)

// ValidationError reports a missing or invalid field
type ValidationError struct {
	Entity Entity
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s %s", singular(e.Entity), e.Field, e.Reason)
}

func invalid(entity Entity, field, reason string) error {
	return &ValidationError{Entity: entity, Field: field, Reason: reason}
}

// Unavailable marks err as a backend availability failure
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrBackendUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
}

func singular(e Entity) string {
	switch e {
	case EntityClient:
		return "client"
	case EntityProject:
		return "project"
	case EntityPayment:
		return "payment"
	default:
		return string(e)
	}
}
