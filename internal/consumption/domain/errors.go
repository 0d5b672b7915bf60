package domain

import "errors"

var (
	// ErrInvalidInterval marks a normalized measurement whose start is not
	// strictly before its end. This is fatal to the cycle, never coerced.
	ErrInvalidInterval = errors.New("consumption: measurement start must precede end")

	// ErrEmptyAccount marks a series identity built from an empty account key.
	ErrEmptyAccount = errors.New("consumption: empty account")
)
