package contract

import "errors"

var (
	ErrInvocationFailed  = errors.New("agent invocation failed")
	ErrSchemaViolation   = errors.New("agent response violates schema")
	ErrValidation        = errors.New("validation failed")
	ErrSessionBusy       = errors.New("a turn is already in flight for this session")
	ErrSessionSuperseded = errors.New("session was replaced while the turn was in flight")
)
