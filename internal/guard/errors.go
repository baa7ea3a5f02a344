package guard

import "errors"

var (
	ErrInvalidKey = errors.New("guard: operation and resource id are required")
	ErrNilGuard   = errors.New("guard: nil guard")
)
