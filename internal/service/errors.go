package service

import (
	"errors"

	"backoffice/internal/apperror"

	"gorm.io/gorm"
)

// storageError maps raw repository errors onto the apperror taxonomy.
// Errors that are already AppErrors pass through unchanged.
func storageError(err error, entity string, id any) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperror.NewNotFound(entity, id)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperror.NewConflict(entity + " already exists").WithCause(err)
	default:
		return apperror.NewInternal(err)
	}
}
