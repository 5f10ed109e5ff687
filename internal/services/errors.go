package services

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrUnauthorized     = errors.New("authentication required")
	ErrForbidden        = errors.New("you are not the author of this post")
	ErrEditWindowClosed = errors.New("edit window has closed")
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
