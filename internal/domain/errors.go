package domain

import "errors"

// Sentinel errors shared across the module. Callers classify failures with
// errors.Is and wrap context via fmt.Errorf("%w: ...").
var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrConflict           = errors.New("conflict")
	ErrUnsupportedChannel = errors.New("unsupported channel")
)
