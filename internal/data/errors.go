package data

import "errors"

// Sentinel errors returned by the stores. Handlers match on these with
// errors.Is to pick an HTTP status; anything else is a storage failure.
var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidInput  = errors.New("invalid input")
	ErrAlreadyExists = errors.New("already exists")
)
