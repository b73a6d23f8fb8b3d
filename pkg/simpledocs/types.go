package simpledocs

import (
	"time"

	"github.com/google/uuid"
)

// Document represents one row in a version chain. The first upload of a file
// creates the chain root (Version 1, ParentDocumentID nil); every subsequent
// version points back at the root id, a one-level fan-out rather than a
// linked list.
type Document struct {
	ID             int64     `json:"id"`
	TenantID       uuid.UUID `json:"tenant_id"`
	DocumentTypeID uuid.UUID `json:"document_type_id"`

	// Content descriptors
	OriginalFileName string `json:"original_file_name"`
	MimeType         string `json:"mime_type"`
	FileSizeBytes    int64  `json:"file_size_bytes"`
	ContentHash      string `json:"content_hash"`
	BlobBackend      string `json:"blob_backend"`
	BlobPath         string `json:"blob_path"`

	// Presentation
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Tags        []string               `json:"tags,omitempty"`

	// Version chain
	Version          int    `json:"version"`
	ParentDocumentID *int64 `json:"parent_document_id,omitempty"`
	IsCurrentVersion bool   `json:"is_current_version"`

	// Lifecycle flags
	IsDeleted     bool       `json:"is_deleted"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
	DeletedBy     string     `json:"deleted_by,omitempty"`
	DeletedReason string     `json:"deleted_reason,omitempty"`
	IsArchived    bool       `json:"is_archived"`
	ArchivedAt    *time.Time `json:"archived_at,omitempty"`

	// Search index linkage, owned by the external indexing collaborator.
	SearchIndexID string     `json:"search_index_id,omitempty"`
	LastIndexedAt *time.Time `json:"last_indexed_at,omitempty"`

	// Audit
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by,omitempty"`
}

// RootID returns the id of the chain root: the document's own id for a root
// version, otherwise the parent id.
func (d *Document) RootID() int64 {
	if d.ParentDocumentID != nil {
		return *d.ParentDocumentID
	}
	return d.ID
}

// Tenant is the isolation boundary; every document belongs to exactly one.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentType classifies documents within a tenant. Types with HasExtension
// set carry a type-specific payload per document, stored in a separate keyed
// extension store rather than through per-type tables.
type DocumentType struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	HasExtension bool      `json:"has_extension"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DocumentExtension is the tagged type-specific payload for a document,
// keyed by document id and document-type name.
type DocumentExtension struct {
	DocumentID int64                  `json:"document_id"`
	TypeName   string                 `json:"type_name"`
	Payload    map[string]interface{} `json:"payload"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// DocumentListFilters defines filtering options for listing documents within
// a tenant.
type DocumentListFilters struct {
	DocumentTypeID *uuid.UUID
	CurrentOnly    bool
	IncludeDeleted bool
	ArchivedOnly   bool
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
	Limit          *int
	Offset         *int
}
