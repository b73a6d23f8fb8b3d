// Package meili implements simpledocs.SearchNotifier on Meilisearch.
package meili

import (
	"context"
	"fmt"
	"time"

	"github.com/meilisearch/meilisearch-go"
	"github.com/tendant/simple-docs/pkg/simpledocs"
)

// Config options for the Meilisearch notifier
type Config struct {
	Host   string
	APIKey string
	Index  string // Index uid (default: "documents")
}

// Notifier pushes document metadata into a Meilisearch index. Blob content
// is never indexed, only metadata.
type Notifier struct {
	client *meilisearch.Client
	index  string
}

// indexedDocument is the flattened shape stored in the search index.
type indexedDocument struct {
	ID               string         `json:"id"`
	DocumentID       int64          `json:"document_id"`
	TenantID         string         `json:"tenant_id"`
	DocumentTypeID   string         `json:"document_type_id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	OriginalFileName string         `json:"original_file_name"`
	MimeType         string         `json:"mime_type"`
	ContentHash      string         `json:"content_hash"`
	Tags             []string       `json:"tags,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	Version          int            `json:"version"`
	IsCurrentVersion bool           `json:"is_current_version"`
	IsDeleted        bool           `json:"is_deleted"`
	IsArchived       bool           `json:"is_archived"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// New creates a Meilisearch-backed notifier and ensures the index exists.
func New(config Config) (*Notifier, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("meilisearch host is required")
	}
	if config.Index == "" {
		config.Index = "documents"
	}

	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   config.Host,
		APIKey: config.APIKey,
	})

	if _, err := client.GetIndex(config.Index); err != nil {
		if _, err := client.CreateIndex(&meilisearch.IndexConfig{
			Uid:        config.Index,
			PrimaryKey: "id",
		}); err != nil {
			return nil, fmt.Errorf("failed to create index %q: %w", config.Index, err)
		}

		if _, err := client.Index(config.Index).UpdateFilterableAttributes(&[]string{
			"tenant_id", "document_type_id", "mime_type", "is_current_version", "is_deleted", "is_archived", "tags",
		}); err != nil {
			return nil, fmt.Errorf("failed to configure filterable attributes: %w", err)
		}
		if _, err := client.Index(config.Index).UpdateSortableAttributes(&[]string{
			"created_at", "updated_at",
		}); err != nil {
			return nil, fmt.Errorf("failed to configure sortable attributes: %w", err)
		}
	}

	return &Notifier{client: client, index: config.Index}, nil
}

// IndexDocument upserts the document's metadata and returns its index id.
// The index id is the document id, so re-indexing replaces the entry in place.
func (n *Notifier) IndexDocument(ctx context.Context, doc *simpledocs.Document) (string, error) {
	entry := indexedDocument{
		ID:               fmt.Sprintf("%d", doc.ID),
		DocumentID:       doc.ID,
		TenantID:         doc.TenantID.String(),
		DocumentTypeID:   doc.DocumentTypeID.String(),
		Title:            doc.Title,
		Description:      doc.Description,
		OriginalFileName: doc.OriginalFileName,
		MimeType:         doc.MimeType,
		ContentHash:      doc.ContentHash,
		Tags:             doc.Tags,
		Metadata:         doc.Metadata,
		Version:          doc.Version,
		IsCurrentVersion: doc.IsCurrentVersion,
		IsDeleted:        doc.IsDeleted,
		IsArchived:       doc.IsArchived,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}

	if _, err := n.client.Index(n.index).AddDocuments([]indexedDocument{entry}); err != nil {
		return "", fmt.Errorf("failed to index document %d: %w", doc.ID, err)
	}
	return entry.ID, nil
}

// RemoveDocument drops the document from the index.
func (n *Notifier) RemoveDocument(ctx context.Context, searchIndexID string) error {
	if _, err := n.client.Index(n.index).DeleteDocument(searchIndexID); err != nil {
		return fmt.Errorf("failed to remove document %s from index: %w", searchIndexID, err)
	}
	return nil
}

// Search runs a metadata query against the index, optionally scoped to one
// tenant.
func (n *Notifier) Search(ctx context.Context, query string, tenantID string, limit int64) (*meilisearch.SearchResponse, error) {
	if limit <= 0 {
		limit = 20
	}
	request := &meilisearch.SearchRequest{Limit: limit}
	if tenantID != "" {
		request.Filter = fmt.Sprintf("tenant_id = %q", tenantID)
	}
	return n.client.Index(n.index).Search(query, request)
}
