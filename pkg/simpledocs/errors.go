package simpledocs

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrDocumentNotFound indicates a document was not found
	ErrDocumentNotFound = errors.New("document not found")

	// ErrTenantNotFound indicates a tenant was not found
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrDocumentTypeNotFound indicates a document type was not found
	ErrDocumentTypeNotFound = errors.New("document type not found")

	// ErrExtensionNotFound indicates no extension payload exists for a document
	ErrExtensionNotFound = errors.New("document extension not found")

	// ErrStorageBackendNotFound indicates a storage backend was not registered
	ErrStorageBackendNotFound = errors.New("storage backend not found")

	// ErrVersionConflict indicates a concurrent writer claimed the same
	// version number; the caller recomputes the next version and retries.
	ErrVersionConflict = errors.New("version number already claimed")
)

// ValidationError reports malformed input detected before any store I/O.
// It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError reports an operation that violates a lifecycle precondition,
// such as archiving a soft-deleted document or restoring one that was never
// deleted.
type ConflictError struct {
	DocumentID int64
	Op         string
	Reason     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("operation %s conflicts with document %d state: %s", e.Op, e.DocumentID, e.Reason)
}

// DocumentError represents an error related to a document lifecycle operation
type DocumentError struct {
	DocumentID int64
	Op         string
	Err        error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document operation %s failed for document %d: %v", e.Op, e.DocumentID, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// StorageError represents an error from the blob store, including timeouts.
// It propagates to the transaction boundary so compensation can run.
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// TransactionError reports that a compensating action itself failed, e.g. a
// blob delete after a metadata rollback. It is logged at high severity but
// never returned over the original error: masking the root cause would be
// worse than a residual orphan blob.
type TransactionError struct {
	Op  string
	Key string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("compensation for %s failed, orphan blob at %s: %v", e.Op, e.Key, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}
