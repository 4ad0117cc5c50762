package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrEngineFailure    = errors.New("engine failure")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidInput     = errors.New("invalid input")
	ErrAlreadyReviewed  = errors.New("request already reviewed")
	ErrTerminal         = errors.New("job already terminal")
	ErrObjectNotFound   = errors.New("object not found")
)
