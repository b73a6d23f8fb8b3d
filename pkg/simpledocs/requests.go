package simpledocs

import (
	"io"
	"strings"

	"github.com/google/uuid"
)

// Request DTOs

// CreateDocumentRequest contains parameters for creating a new document
// (chain root, version 1).
type CreateDocumentRequest struct {
	TenantID       uuid.UUID
	DocumentTypeID uuid.UUID
	Title          string
	Description    string
	Content        io.Reader
	FileName       string
	MimeType       string
	Metadata       map[string]interface{}
	Tags           []string
	Actor          string
}

// Validate checks the request before any store I/O.
func (r *CreateDocumentRequest) Validate() error {
	if r.TenantID == uuid.Nil {
		return &ValidationError{Field: "tenant_id", Reason: "must not be empty"}
	}
	if r.DocumentTypeID == uuid.Nil {
		return &ValidationError{Field: "document_type_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(r.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be blank"}
	}
	if strings.TrimSpace(r.FileName) == "" {
		return &ValidationError{Field: "file_name", Reason: "must not be blank"}
	}
	if r.Content == nil {
		return &ValidationError{Field: "content", Reason: "must not be nil"}
	}
	return nil
}

// CreateVersionRequest contains parameters for appending a new version to an
// existing chain.
type CreateVersionRequest struct {
	DocumentID int64
	Content    io.Reader
	FileName   string
	MimeType   string
	Actor      string
}

// Validate checks the request before any store I/O.
func (r *CreateVersionRequest) Validate() error {
	if r.DocumentID <= 0 {
		return &ValidationError{Field: "document_id", Reason: "must be a positive id"}
	}
	if strings.TrimSpace(r.FileName) == "" {
		return &ValidationError{Field: "file_name", Reason: "must not be blank"}
	}
	if r.Content == nil {
		return &ValidationError{Field: "content", Reason: "must not be nil"}
	}
	return nil
}

// SoftDeleteRequest contains parameters for marking a document deleted.
type SoftDeleteRequest struct {
	DocumentID int64
	Actor      string
	Reason     string
}

// ListDocumentsRequest contains parameters for listing documents in a tenant.
type ListDocumentsRequest struct {
	TenantID uuid.UUID
	Filters  DocumentListFilters
}

// SetExtensionRequest contains parameters for attaching a type-specific
// payload to a document.
type SetExtensionRequest struct {
	DocumentID int64
	Payload    map[string]interface{}
}
