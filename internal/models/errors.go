package models

import "errors"

var (
	// ErrInvalidConfig reports an unusable chunking, batching or provider setting.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrInvalidLimit reports a query limit that is not positive.
	ErrInvalidLimit = errors.New("limit must be positive")
	// ErrDimensionMismatch reports a vector whose length differs from the store's embedding size.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrNonFiniteEmbedding reports a vector with a NaN or infinite component.
	ErrNonFiniteEmbedding = errors.New("embedding has non-finite components")
	// ErrCorruptRecord reports a stored record whose embedding cannot be ranked.
	ErrCorruptRecord = errors.New("corrupt stored record")
	// ErrCountMismatch reports a provider that returned a different number of vectors than inputs.
	ErrCountMismatch = errors.New("embedding count mismatch")
	// ErrDuplicateChunk reports a (document_id, chunk_index) pair that already exists.
	ErrDuplicateChunk = errors.New("duplicate chunk")
	// ErrUnknownDocument reports a record that references a document not in the store.
	ErrUnknownDocument = errors.New("unknown document")
	// ErrDuplicateDocument reports a document id that is already stored.
	ErrDuplicateDocument = errors.New("duplicate document")
	// ErrDocumentNotFound is returned by lookups for a missing document id.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrProviderUnavailable marks a transient embedding provider failure; retrying may succeed.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
)
