package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
)

// translate maps engine errors onto the AppError taxonomy. AppErrors pass
// through untouched so validation failures raised inside a transaction reach
// the caller as-is.
func translate(entity string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if entity == "" {
			entity = "record"
		}
		return apperrors.NotFound(entity)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		e := apperrors.Detailed(apperrors.ErrConstraintViolation, entity, "", "unique")
		e.Internal = err
		return e
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		e := apperrors.Detailed(apperrors.ErrConstraintViolation, entity, "", "foreign_key")
		e.Internal = err
		return e
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperrors.Wrap(apperrors.ErrTimeout, err)
	default:
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
}
