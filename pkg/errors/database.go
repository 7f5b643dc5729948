package errors

import (
	stdErrors "errors"

	"gorm.io/gorm"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// FromDB classifies a persistence error. Typed errors pass through untouched,
// missing rows become NOT_FOUND, constraint failures become CONFLICT or
// VALIDATION, and anything else is INTERNAL.
func FromDB(err error, message string) error {
	if err == nil {
		return nil
	}
	if typed := As(err); typed != nil {
		return typed
	}
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return Wrap(CodeNotFound, err, message)
	}
	if stdErrors.Is(err, gorm.ErrDuplicatedKey) {
		return Wrap(CodeConflict, err, message)
	}
	pg, _ := postgresDetail(err)
	switch pg.Code {
	case pgUniqueViolation:
		return Wrap(CodeConflict, err, message)
	case pgForeignKeyViolation, pgCheckViolation:
		return Wrap(CodeValidation, err, message)
	}
	return Wrap(CodeInternal, err, message)
}
