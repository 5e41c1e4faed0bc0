package cart

import "errors"

// Error taxonomy for the command surface. Every engine or aggregator
// operation yields either an updated cart/listing or exactly one of these.
var (
	// ErrNoOwner means a mutation was attempted with no resolved identity.
	ErrNoOwner = errors.New("cart: no resolved owner")

	// ErrNotFound means neither source holds the referenced record.
	// Remove/update of an absent product line is a no-op, not this error.
	ErrNotFound = errors.New("cart: not found")

	// ErrGatewayUnavailable means a remote cart service call failed.
	ErrGatewayUnavailable = errors.New("cart: remote gateway unavailable")

	// ErrStoreUnavailable means the durable store failed.
	ErrStoreUnavailable = errors.New("cart: durable store unavailable")

	// ErrUnsupportedOperation means the remote backend rejected a write
	// (the demo backend is read-only). Distinct from ErrNotFound.
	ErrUnsupportedOperation = errors.New("cart: operation not supported by remote backend")
)
