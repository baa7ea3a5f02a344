package auth

import (
	"errors"
	"fmt"

	"careerforge/pkg/interfaces"
)

// Every verifier failure wraps interfaces.ErrAuthentication
var (
	ErrMissingCredential = fmt.Errorf("%w: missing credential", interfaces.ErrAuthentication)
	ErrInvalidCredential = fmt.Errorf("%w: invalid credential", interfaces.ErrAuthentication)
	ErrMissingSecret     = errors.New("auth: signing secret is required")
)
