package simpledocs

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Service defines the main interface for the simple-docs library: the
// document lifecycle and versioning engine.
type Service interface {
	// Lifecycle operations
	CreateDocument(ctx context.Context, req CreateDocumentRequest) (*Document, error)
	CreateVersion(ctx context.Context, req CreateVersionRequest) (*Document, error)
	SoftDelete(ctx context.Context, req SoftDeleteRequest) error
	Restore(ctx context.Context, id int64) error
	Archive(ctx context.Context, id int64) error
	PermanentlyDelete(ctx context.Context, id int64) error

	// Read operations
	GetDocument(ctx context.Context, id int64) (*Document, error)
	GetVersionChain(ctx context.Context, id int64) ([]*Document, error)
	ListDocuments(ctx context.Context, req ListDocumentsRequest) ([]*Document, error)
	FindDuplicates(ctx context.Context, contentHash string) ([]*Document, error)

	// Content access
	DownloadDocument(ctx context.Context, id int64) (io.ReadCloser, error)
	GetTemporaryAccessURL(ctx context.Context, id int64, ttl time.Duration) (string, error)

	// Extension payloads (type-specific document data)
	SetDocumentExtension(ctx context.Context, req SetExtensionRequest) error
	GetDocumentExtension(ctx context.Context, id int64) (*DocumentExtension, error)

	// Search staleness surface, consumed by the external reindexer
	ListStaleDocuments(ctx context.Context, limit int) ([]*Document, error)
	MarkIndexed(ctx context.Context, id int64, searchIndexID string) error

	// Storage backend operations
	RegisterBackend(name string, backend BlobStore)
	GetBackend(name string) (BlobStore, error)

	// Collaborator lookups, exposed for the API layer
	GetTenant(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetDocumentType(ctx context.Context, id uuid.UUID) (*DocumentType, error)
}
