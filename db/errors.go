package db

import (
	"errors"

	errs "github.com/techagentng/citizenchat/errors"
	"gorm.io/gorm"
)

// storageErr converts a gorm failure into the shared taxonomy. Errors that are
// already classified pass through untouched.
func storageErr(err error, what string) error {
	if err == nil {
		return nil
	}
	var e *errs.Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.NotFound(what + " not found")
	}
	return errs.Unavailable("storage failure: "+what, err)
}
