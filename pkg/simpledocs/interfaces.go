package simpledocs

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore defines the interface for storage backends. Keys are opaque
// paths; the container (bucket, base directory) is fixed per backend at
// construction time.
type BlobStore interface {
	// Put uploads content under the given key and returns a stable locator
	// URI for the stored object.
	Put(ctx context.Context, objectKey string, reader io.Reader, mimeType string) (string, error)

	// Download returns the content stored under the key.
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete removes the object and reports whether it existed.
	Delete(ctx context.Context, objectKey string) (bool, error)

	// Exists reports whether an object is stored under the key.
	Exists(ctx context.Context, objectKey string) (bool, error)

	// Move renames an object. Used to promote a staged upload to its final
	// content-addressed key.
	Move(ctx context.Context, oldKey, newKey string) error

	// GetTemporaryAccessURL returns a time-boxed, pre-signed URI for the
	// object.
	GetTemporaryAccessURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
}

// Repository defines the interface for document metadata persistence.
//
// WithTx runs fn against a transactional view of the repository; the
// transaction commits only if fn returns nil. Version-number assignment and
// current-version demotion must happen inside one WithTx call so that
// concurrent writers on the same chain are serialized.
type Repository interface {
	// Document operations. CreateDocument assigns the id.
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id int64) (*Document, error)
	UpdateDocument(ctx context.Context, doc *Document) error
	// DeleteDocument physically removes the row.
	DeleteDocument(ctx context.Context, id int64) error

	// Query surface
	ListDocuments(ctx context.Context, tenantID uuid.UUID, filters DocumentListFilters) ([]*Document, error)
	FindByContentHash(ctx context.Context, contentHash string) ([]*Document, error)
	GetVersionChain(ctx context.Context, rootID int64) ([]*Document, error)
	GetCurrentVersion(ctx context.Context, rootID int64) (*Document, error)
	MaxVersion(ctx context.Context, rootID int64) (int, error)
	DemoteCurrentVersion(ctx context.Context, rootID int64, at time.Time, actor string) error

	// Search staleness surface. A document needs indexing when
	// last_indexed_at is null or updated_at > last_indexed_at.
	ListStale(ctx context.Context, limit int) ([]*Document, error)
	MarkIndexed(ctx context.Context, id int64, searchIndexID string, at time.Time) error

	// Extension payload operations
	SetExtension(ctx context.Context, ext *DocumentExtension) error
	GetExtension(ctx context.Context, documentID int64, typeName string) (*DocumentExtension, error)

	WithTx(ctx context.Context, fn func(tx Repository) error) error
}

// TenantStore resolves tenant ids. The core only consumes lookups; tenant
// administration lives outside this library.
type TenantStore interface {
	GetTenant(ctx context.Context, id uuid.UUID) (*Tenant, error)
}

// DocumentTypeStore resolves document-type ids.
type DocumentTypeStore interface {
	GetDocumentType(ctx context.Context, id uuid.UUID) (*DocumentType, error)
}

// SearchNotifier pushes documents to an external search index. The lifecycle
// engine never calls it synchronously; a separate reindexing process observes
// stale documents (ListStale) and drives the notifier.
type SearchNotifier interface {
	// IndexDocument upserts the document and returns its index id.
	IndexDocument(ctx context.Context, doc *Document) (string, error)

	// RemoveDocument drops the document from the index.
	RemoveDocument(ctx context.Context, searchIndexID string) error
}
