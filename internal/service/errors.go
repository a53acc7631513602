package service

import "errors"

// Sentinel errors returned by the service layer. Handlers map these onto
// HTTP status codes; anything unrecognized is treated as ErrServer.
var (
	ErrInvalidPhone    = errors.New("phone number is not valid")
	ErrInvalidCode     = errors.New("code format is not valid")
	ErrNotFound        = errors.New("resource not found")
	ErrExpired         = errors.New("code has expired")
	ErrTooManyAttempts = errors.New("too many verification attempts")
	ErrCodeMismatch    = errors.New("code does not match")
	ErrDispatchFailed  = errors.New("failed to dispatch code")
	ErrRateLimited     = errors.New("too many requests")
	ErrInvalidToken    = errors.New("token is not valid")
	ErrTokenExpired    = errors.New("token has expired")
	ErrUnauthorized    = errors.New("authentication required")
	ErrForbidden       = errors.New("insufficient privileges")
	ErrInvalidInput    = errors.New("invalid input")
	ErrConflict        = errors.New("conflicting state")
	ErrServer          = errors.New("internal server error")
)
