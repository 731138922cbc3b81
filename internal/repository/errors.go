package repository

import (
	"errors"

	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrDuplicate  = errors.New("duplicate record")
	ErrStaleWrite = errors.New("record changed since it was read")
	ErrInUse      = errors.New("record is referenced")
)

// ToAppError maps a repository error onto the API error taxonomy.
// Errors that already are AppErrors pass through untouched.
func ToAppError(err error, resource string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return apperrors.NotFound(resource, err)
	case errors.Is(err, ErrDuplicate):
		return apperrors.Conflict(resource+" already exists", err)
	case errors.Is(err, ErrStaleWrite):
		return apperrors.Conflict(resource+" was modified concurrently", err)
	case errors.Is(err, ErrInUse):
		return apperrors.Conflict(resource+" is still in use", err)
	default:
		return apperrors.Internal(err)
	}
}
