package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidConfig indicates bad tunables (chunk size, overlap,
	// worker counts) or missing provider credentials. Detected before
	// any I/O is performed.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrProviderPermanent indicates a provider rejected a request in a
	// way that retrying cannot fix (malformed request, payload too large).
	// Callers must not retry.
	ErrProviderPermanent = errors.New("permanent provider error")

	// ErrRerankUnavailable indicates the rerank provider failed or
	// returned an unusable result. Retrieval degrades to coarse-score
	// ordering instead of failing.
	ErrRerankUnavailable = errors.New("rerank unavailable")
)
