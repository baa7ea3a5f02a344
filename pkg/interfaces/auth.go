package interfaces

import (
	"context"

	"careerforge/pkg/types"
)

// TokenVerifier validates a bearer credential
// FUNCTIONAL DISCOVERY: Verification only; token issuance lives outside this service
type TokenVerifier interface {
	// Verify returns the principal for a valid credential or an error wrapping ErrAuthentication
	Verify(ctx context.Context, credential string) (types.Principal, error)
}
