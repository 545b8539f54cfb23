package chat

import (
	"errors"
	"fmt"
)

var (
	ErrAccessDenied = errors.New("access denied to conversation")
	ErrValidation   = errors.New("invalid request")
	ErrPersistence  = errors.New("persistence failure")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}

// PublicMessage is the text shown to a client for a failed event or request.
// Persistence details stay in the logs.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, ErrAccessDenied), errors.Is(err, ErrValidation):
		return err.Error()
	case errors.Is(err, ErrPersistence):
		return "failed to process request"
	}
	return "internal error"
}
