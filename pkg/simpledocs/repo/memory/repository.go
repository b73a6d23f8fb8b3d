package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-docs/pkg/simpledocs"
)

// Repository implements simpledocs.Repository using in-memory storage. Rows
// live in an arena keyed by id; relationships are plain id fields, never
// object graphs.
type Repository struct {
	mu         sync.RWMutex
	documents  map[int64]*simpledocs.Document
	extensions map[string]*simpledocs.DocumentExtension
	nextID     int64
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		documents:  make(map[int64]*simpledocs.Document),
		extensions: make(map[string]*simpledocs.DocumentExtension),
	}
}

// WithTx serializes the whole unit of work under the repository lock and
// restores a snapshot of the arena if fn fails, approximating a rolled-back
// database transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(tx simpledocs.Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapDocs := make(map[int64]*simpledocs.Document, len(r.documents))
	for id, doc := range r.documents {
		docCopy := *doc
		snapDocs[id] = &docCopy
	}
	snapExts := make(map[string]*simpledocs.DocumentExtension, len(r.extensions))
	for key, ext := range r.extensions {
		extCopy := *ext
		snapExts[key] = &extCopy
	}
	snapNextID := r.nextID

	if err := fn(&txRepository{r: r}); err != nil {
		r.documents = snapDocs
		r.extensions = snapExts
		r.nextID = snapNextID
		return err
	}
	return nil
}

// txRepository is the transactional view handed to WithTx callbacks. The
// outer repository already holds the lock, so it dispatches straight to the
// unlocked helpers. Nested WithTx reuses the same transactional view.
type txRepository struct {
	r *Repository
}

func (t *txRepository) CreateDocument(ctx context.Context, doc *simpledocs.Document) error {
	return t.r.createDocumentLocked(doc)
}

func (t *txRepository) GetDocument(ctx context.Context, id int64) (*simpledocs.Document, error) {
	return t.r.getDocumentLocked(id)
}

func (t *txRepository) UpdateDocument(ctx context.Context, doc *simpledocs.Document) error {
	return t.r.updateDocumentLocked(doc)
}

func (t *txRepository) DeleteDocument(ctx context.Context, id int64) error {
	return t.r.deleteDocumentLocked(id)
}

func (t *txRepository) ListDocuments(ctx context.Context, tenantID uuid.UUID, filters simpledocs.DocumentListFilters) ([]*simpledocs.Document, error) {
	return t.r.listDocumentsLocked(tenantID, filters)
}

func (t *txRepository) FindByContentHash(ctx context.Context, contentHash string) ([]*simpledocs.Document, error) {
	return t.r.findByContentHashLocked(contentHash)
}

func (t *txRepository) GetVersionChain(ctx context.Context, rootID int64) ([]*simpledocs.Document, error) {
	return t.r.getVersionChainLocked(rootID)
}

func (t *txRepository) GetCurrentVersion(ctx context.Context, rootID int64) (*simpledocs.Document, error) {
	return t.r.getCurrentVersionLocked(rootID)
}

func (t *txRepository) MaxVersion(ctx context.Context, rootID int64) (int, error) {
	return t.r.maxVersionLocked(rootID)
}

func (t *txRepository) DemoteCurrentVersion(ctx context.Context, rootID int64, at time.Time, actor string) error {
	return t.r.demoteCurrentVersionLocked(rootID, at, actor)
}

func (t *txRepository) ListStale(ctx context.Context, limit int) ([]*simpledocs.Document, error) {
	return t.r.listStaleLocked(limit)
}

func (t *txRepository) MarkIndexed(ctx context.Context, id int64, searchIndexID string, at time.Time) error {
	return t.r.markIndexedLocked(id, searchIndexID, at)
}

func (t *txRepository) SetExtension(ctx context.Context, ext *simpledocs.DocumentExtension) error {
	return t.r.setExtensionLocked(ext)
}

func (t *txRepository) GetExtension(ctx context.Context, documentID int64, typeName string) (*simpledocs.DocumentExtension, error) {
	return t.r.getExtensionLocked(documentID, typeName)
}

func (t *txRepository) WithTx(ctx context.Context, fn func(tx simpledocs.Repository) error) error {
	return fn(t)
}

// Document operations

func (r *Repository) CreateDocument(ctx context.Context, doc *simpledocs.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createDocumentLocked(doc)
}

func (r *Repository) createDocumentLocked(doc *simpledocs.Document) error {
	// Mirror the database unique constraint on (root id, version).
	rootID := doc.RootID()
	for _, existing := range r.documents {
		if chainRoot(existing) == rootID && doc.ParentDocumentID != nil && existing.Version == doc.Version {
			return simpledocs.ErrVersionConflict
		}
	}

	r.nextID++
	doc.ID = r.nextID

	docCopy := *doc
	r.documents[doc.ID] = &docCopy
	return nil
}

func (r *Repository) GetDocument(ctx context.Context, id int64) (*simpledocs.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getDocumentLocked(id)
}

func (r *Repository) getDocumentLocked(id int64) (*simpledocs.Document, error) {
	doc, exists := r.documents[id]
	if !exists {
		return nil, simpledocs.ErrDocumentNotFound
	}
	docCopy := *doc
	return &docCopy, nil
}

func (r *Repository) UpdateDocument(ctx context.Context, doc *simpledocs.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateDocumentLocked(doc)
}

func (r *Repository) updateDocumentLocked(doc *simpledocs.Document) error {
	if _, exists := r.documents[doc.ID]; !exists {
		return simpledocs.ErrDocumentNotFound
	}
	docCopy := *doc
	r.documents[doc.ID] = &docCopy
	return nil
}

func (r *Repository) DeleteDocument(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteDocumentLocked(id)
}

func (r *Repository) deleteDocumentLocked(id int64) error {
	doc, exists := r.documents[id]
	if !exists {
		return simpledocs.ErrDocumentNotFound
	}
	delete(r.documents, id)

	// Extension payloads do not outlive their row.
	for key, ext := range r.extensions {
		if ext.DocumentID == doc.ID {
			delete(r.extensions, key)
		}
	}
	return nil
}

// Query surface

func (r *Repository) ListDocuments(ctx context.Context, tenantID uuid.UUID, filters simpledocs.DocumentListFilters) ([]*simpledocs.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listDocumentsLocked(tenantID, filters)
}

func (r *Repository) listDocumentsLocked(tenantID uuid.UUID, filters simpledocs.DocumentListFilters) ([]*simpledocs.Document, error) {
	var result []*simpledocs.Document
	for _, doc := range r.documents {
		if doc.TenantID != tenantID {
			continue
		}
		if filters.DocumentTypeID != nil && doc.DocumentTypeID != *filters.DocumentTypeID {
			continue
		}
		if filters.CurrentOnly && !doc.IsCurrentVersion {
			continue
		}
		if !filters.IncludeDeleted && doc.IsDeleted {
			continue
		}
		if filters.ArchivedOnly && !doc.IsArchived {
			continue
		}
		if filters.CreatedAfter != nil && !doc.CreatedAt.After(*filters.CreatedAfter) {
			continue
		}
		if filters.CreatedBefore != nil && !doc.CreatedAt.Before(*filters.CreatedBefore) {
			continue
		}
		docCopy := *doc
		result = append(result, &docCopy)
	}

	// Newest first; id breaks ties from same-instant inserts.
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filters.Offset != nil && *filters.Offset > 0 {
		if *filters.Offset >= len(result) {
			return []*simpledocs.Document{}, nil
		}
		result = result[*filters.Offset:]
	}
	if filters.Limit != nil && *filters.Limit > 0 && *filters.Limit < len(result) {
		result = result[:*filters.Limit]
	}

	return result, nil
}

func (r *Repository) FindByContentHash(ctx context.Context, contentHash string) ([]*simpledocs.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findByContentHashLocked(contentHash)
}

func (r *Repository) findByContentHashLocked(contentHash string) ([]*simpledocs.Document, error) {
	var result []*simpledocs.Document
	for _, doc := range r.documents {
		// Soft-deleted rows stay visible to hash lookups.
		if doc.ContentHash == contentHash {
			docCopy := *doc
			result = append(result, &docCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *Repository) GetVersionChain(ctx context.Context, rootID int64) ([]*simpledocs.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getVersionChainLocked(rootID)
}

func (r *Repository) getVersionChainLocked(rootID int64) ([]*simpledocs.Document, error) {
	var result []*simpledocs.Document
	for _, doc := range r.documents {
		if chainRoot(doc) == rootID {
			docCopy := *doc
			result = append(result, &docCopy)
		}
	}
	if len(result) == 0 {
		return nil, simpledocs.ErrDocumentNotFound
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Version < result[j].Version })
	return result, nil
}

func (r *Repository) GetCurrentVersion(ctx context.Context, rootID int64) (*simpledocs.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getCurrentVersionLocked(rootID)
}

func (r *Repository) getCurrentVersionLocked(rootID int64) (*simpledocs.Document, error) {
	for _, doc := range r.documents {
		if chainRoot(doc) == rootID && doc.IsCurrentVersion {
			docCopy := *doc
			return &docCopy, nil
		}
	}
	return nil, simpledocs.ErrDocumentNotFound
}

func (r *Repository) MaxVersion(ctx context.Context, rootID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maxVersionLocked(rootID)
}

func (r *Repository) maxVersionLocked(rootID int64) (int, error) {
	max := 0
	for _, doc := range r.documents {
		if chainRoot(doc) == rootID && doc.Version > max {
			max = doc.Version
		}
	}
	if max == 0 {
		return 0, simpledocs.ErrDocumentNotFound
	}
	return max, nil
}

func (r *Repository) DemoteCurrentVersion(ctx context.Context, rootID int64, at time.Time, actor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.demoteCurrentVersionLocked(rootID, at, actor)
}

func (r *Repository) demoteCurrentVersionLocked(rootID int64, at time.Time, actor string) error {
	for _, doc := range r.documents {
		if chainRoot(doc) == rootID && doc.IsCurrentVersion {
			doc.IsCurrentVersion = false
			doc.UpdatedAt = at
			doc.UpdatedBy = actor
		}
	}
	return nil
}

// Search staleness surface

func (r *Repository) ListStale(ctx context.Context, limit int) ([]*simpledocs.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listStaleLocked(limit)
}

func (r *Repository) listStaleLocked(limit int) ([]*simpledocs.Document, error) {
	var result []*simpledocs.Document
	for _, doc := range r.documents {
		if doc.LastIndexedAt == nil || doc.UpdatedAt.After(*doc.LastIndexedAt) {
			docCopy := *doc
			result = append(result, &docCopy)
		}
	}
	// Oldest updates first so the reindexer drains in order.
	sort.Slice(result, func(i, j int) bool {
		if result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (r *Repository) MarkIndexed(ctx context.Context, id int64, searchIndexID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.markIndexedLocked(id, searchIndexID, at)
}

func (r *Repository) markIndexedLocked(id int64, searchIndexID string, at time.Time) error {
	doc, exists := r.documents[id]
	if !exists {
		return simpledocs.ErrDocumentNotFound
	}
	doc.SearchIndexID = searchIndexID
	doc.LastIndexedAt = &at
	return nil
}

// Extension operations

func (r *Repository) SetExtension(ctx context.Context, ext *simpledocs.DocumentExtension) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setExtensionLocked(ext)
}

func (r *Repository) setExtensionLocked(ext *simpledocs.DocumentExtension) error {
	if _, exists := r.documents[ext.DocumentID]; !exists {
		return simpledocs.ErrDocumentNotFound
	}
	extCopy := *ext
	if existing, ok := r.extensions[extensionKey(ext.DocumentID, ext.TypeName)]; ok {
		extCopy.CreatedAt = existing.CreatedAt
	}
	r.extensions[extensionKey(ext.DocumentID, ext.TypeName)] = &extCopy
	return nil
}

func (r *Repository) GetExtension(ctx context.Context, documentID int64, typeName string) (*simpledocs.DocumentExtension, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getExtensionLocked(documentID, typeName)
}

func (r *Repository) getExtensionLocked(documentID int64, typeName string) (*simpledocs.DocumentExtension, error) {
	ext, exists := r.extensions[extensionKey(documentID, typeName)]
	if !exists {
		return nil, simpledocs.ErrExtensionNotFound
	}
	extCopy := *ext
	return &extCopy, nil
}

func chainRoot(doc *simpledocs.Document) int64 {
	if doc.ParentDocumentID != nil {
		return *doc.ParentDocumentID
	}
	return doc.ID
}

func extensionKey(documentID int64, typeName string) string {
	return fmt.Sprintf("%d:%s", documentID, typeName)
}
