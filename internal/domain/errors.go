package domain

import "errors"

// Sentinel errors for the lifecycle controller. Callers distinguish them with
// errors.Is; every repository and service wraps them with operation context.
var (
	// ErrGenerationNotFound means the referenced generation id never resolved
	// in the metadata store.
	ErrGenerationNotFound = errors.New("index generation not found")

	// ErrDatasetNotFound means the referenced dataset id never resolved in
	// the metadata store.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrConfigNotFound means the referenced embedding config id never
	// resolved in the metadata store.
	ErrConfigNotFound = errors.New("embedding config not found")

	// ErrStoreInconsistent means a record located by an earlier lookup
	// vanished before a mutation in the same logical operation. Distinct from
	// not-found so callers can tell "never existed" from "disappeared".
	ErrStoreInconsistent = errors.New("record vanished between lookup and update")

	// ErrInvalidTransition is returned in strict mode when the requested
	// promotion does not move forward in the lifecycle ordering.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
)
