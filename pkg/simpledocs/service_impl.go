package simpledocs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-docs/pkg/simpledocs/blobkey"
)

// blobCleanupTimeout bounds compensating blob deletes so a wedged backend
// cannot hang an already-failed operation.
const blobCleanupTimeout = 30 * time.Second

// service implements the Service interface
type service struct {
	repository     Repository
	blobStores     map[string]BlobStore
	defaultBackend string
	tenants        TenantStore
	documentTypes  DocumentTypeStore
	keys           blobkey.Generator
	logger         *slog.Logger
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the metadata repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore adds a blob storage backend. The first registered backend
// becomes the default for new uploads.
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		if s.blobStores == nil {
			s.blobStores = make(map[string]BlobStore)
		}
		s.blobStores[name] = store
		if s.defaultBackend == "" {
			s.defaultBackend = name
		}
	}
}

// WithDefaultBackend selects the backend used for new uploads
func WithDefaultBackend(name string) Option {
	return func(s *service) {
		s.defaultBackend = name
	}
}

// WithTenantStore sets the tenant lookup collaborator
func WithTenantStore(store TenantStore) Option {
	return func(s *service) {
		s.tenants = store
	}
}

// WithDocumentTypeStore sets the document-type lookup collaborator
func WithDocumentTypeStore(store DocumentTypeStore) Option {
	return func(s *service) {
		s.documentTypes = store
	}
}

// WithBlobKeyGenerator overrides the blob key derivation strategy
func WithBlobKeyGenerator(g blobkey.Generator) Option {
	return func(s *service) {
		s.keys = g
	}
}

// WithLogger sets the structured logger used for compensation failures and
// operational events
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		blobStores: make(map[string]BlobStore),
		keys:       blobkey.NewDateShardedGenerator(),
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.tenants == nil {
		return nil, fmt.Errorf("tenant store is required")
	}
	if s.documentTypes == nil {
		return nil, fmt.Errorf("document type store is required")
	}
	if len(s.blobStores) == 0 {
		return nil, fmt.Errorf("at least one blob store is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

// Lifecycle operations

func (s *service) CreateDocument(ctx context.Context, req CreateDocumentRequest) (*Document, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	defer closeContent(req.Content)

	tenant, err := s.tenants.GetTenant(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	if !tenant.IsActive {
		return nil, &ConflictError{Op: "create", Reason: fmt.Sprintf("tenant %s is not active", tenant.ID)}
	}
	if _, err := s.documentTypes.GetDocumentType(ctx, req.DocumentTypeID); err != nil {
		return nil, err
	}

	store, err := s.GetBackend(s.defaultBackend)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	up, err := s.stageUpload(ctx, store, req.Content, req.MimeType, "create")
	if err != nil {
		return nil, err
	}
	finalKey := s.keys.FinalKey(req.TenantID, req.DocumentTypeID, now, up.hash)
	shared, err := s.promote(ctx, store, up.key, finalKey, "create")
	if err != nil {
		return nil, err
	}

	doc := &Document{
		TenantID:         req.TenantID,
		DocumentTypeID:   req.DocumentTypeID,
		OriginalFileName: req.FileName,
		MimeType:         req.MimeType,
		FileSizeBytes:    up.size,
		ContentHash:      up.hash,
		BlobBackend:      s.defaultBackend,
		BlobPath:         finalKey,
		Title:            req.Title,
		Description:      req.Description,
		Metadata:         req.Metadata,
		Tags:             req.Tags,
		Version:          1,
		IsCurrentVersion: true,
		CreatedAt:        now,
		CreatedBy:        req.Actor,
		UpdatedAt:        now,
		UpdatedBy:        req.Actor,
	}

	err = s.repository.WithTx(ctx, func(tx Repository) error {
		return tx.CreateDocument(ctx, doc)
	})
	if err != nil {
		if !shared {
			s.discardFinalBlob(ctx, store, finalKey, up.hash, "create")
		}
		return nil, &DocumentError{Op: "create", Err: err}
	}

	return doc, nil
}

func (s *service) CreateVersion(ctx context.Context, req CreateVersionRequest) (*Document, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	defer closeContent(req.Content)

	doc, err := s.repository.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc.IsDeleted {
		return nil, &ConflictError{DocumentID: doc.ID, Op: "create_version", Reason: "document is soft-deleted"}
	}

	rootID := doc.RootID()
	current, err := s.repository.GetCurrentVersion(ctx, rootID)
	if err != nil {
		return nil, &DocumentError{DocumentID: doc.ID, Op: "create_version", Err: err}
	}

	store, err := s.GetBackend(s.defaultBackend)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	up, err := s.stageUpload(ctx, store, req.Content, req.MimeType, "create_version")
	if err != nil {
		return nil, err
	}
	// Dedup short-circuit: a re-upload of the current version's exact bytes
	// creates neither a row nor a blob. Only the current version's hash is
	// consulted; matching an older version still appends a new version.
	if up.hash == current.ContentHash {
		s.discardBlob(ctx, store, up.key, "create_version")
		return current, nil
	}

	finalKey := s.keys.FinalKey(doc.TenantID, doc.DocumentTypeID, now, up.hash)
	shared, err := s.promote(ctx, store, up.key, finalKey, "create_version")
	if err != nil {
		return nil, err
	}

	newDoc := &Document{
		TenantID:         doc.TenantID,
		DocumentTypeID:   doc.DocumentTypeID,
		OriginalFileName: req.FileName,
		MimeType:         req.MimeType,
		FileSizeBytes:    up.size,
		ContentHash:      up.hash,
		BlobBackend:      s.defaultBackend,
		BlobPath:         finalKey,
		Title:            current.Title,
		Description:      current.Description,
		Metadata:         current.Metadata,
		Tags:             current.Tags,
		IsCurrentVersion: true,
		CreatedAt:        now,
		CreatedBy:        req.Actor,
		UpdatedAt:        now,
		UpdatedBy:        req.Actor,
	}

	// Version assignment, demotion of the previous current version and the
	// insert run inside one transaction so concurrent writers on the same
	// chain serialize. A writer that loses the (root, version) uniqueness
	// race recomputes the next version once and retries.
	attempt := func() error {
		return s.repository.WithTx(ctx, func(tx Repository) error {
			maxVersion, err := tx.MaxVersion(ctx, rootID)
			if err != nil {
				return err
			}
			if err := tx.DemoteCurrentVersion(ctx, rootID, now, req.Actor); err != nil {
				return err
			}
			newDoc.ID = 0
			newDoc.Version = maxVersion + 1
			newDoc.ParentDocumentID = &rootID
			return tx.CreateDocument(ctx, newDoc)
		})
	}

	err = attempt()
	if errors.Is(err, ErrVersionConflict) {
		err = attempt()
	}
	if err != nil {
		if !shared {
			s.discardFinalBlob(ctx, store, finalKey, up.hash, "create_version")
		}
		return nil, &DocumentError{DocumentID: doc.ID, Op: "create_version", Err: err}
	}

	return newDoc, nil
}

func (s *service) SoftDelete(ctx context.Context, req SoftDeleteRequest) error {
	doc, err := s.repository.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return err
	}
	if doc.IsDeleted {
		// Deleting twice is a no-op success.
		return nil
	}

	now := time.Now().UTC()
	doc.IsDeleted = true
	doc.DeletedAt = &now
	doc.DeletedBy = req.Actor
	doc.DeletedReason = req.Reason
	doc.UpdatedAt = now
	doc.UpdatedBy = req.Actor

	if err := s.repository.UpdateDocument(ctx, doc); err != nil {
		return &DocumentError{DocumentID: doc.ID, Op: "soft_delete", Err: err}
	}
	return nil
}

func (s *service) Restore(ctx context.Context, id int64) error {
	doc, err := s.repository.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if !doc.IsDeleted {
		return &ConflictError{DocumentID: id, Op: "restore", Reason: "document is not deleted"}
	}

	now := time.Now().UTC()
	doc.IsDeleted = false
	doc.DeletedAt = nil
	doc.DeletedBy = ""
	doc.DeletedReason = ""
	doc.UpdatedAt = now

	if err := s.repository.UpdateDocument(ctx, doc); err != nil {
		return &DocumentError{DocumentID: id, Op: "restore", Err: err}
	}
	return nil
}

func (s *service) Archive(ctx context.Context, id int64) error {
	doc, err := s.repository.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if doc.IsDeleted {
		return &ConflictError{DocumentID: id, Op: "archive", Reason: "document is soft-deleted"}
	}
	if doc.IsArchived {
		return nil
	}

	now := time.Now().UTC()
	doc.IsArchived = true
	doc.ArchivedAt = &now
	doc.UpdatedAt = now

	if err := s.repository.UpdateDocument(ctx, doc); err != nil {
		return &DocumentError{DocumentID: id, Op: "archive", Err: err}
	}
	return nil
}

// PermanentlyDelete removes the metadata row and the blob irreversibly. The
// is_deleted flag is intentionally not re-checked here: callers in the
// typical flow only pass already-deleted documents, and the bypass is left
// auditable at the call site.
func (s *service) PermanentlyDelete(ctx context.Context, id int64) error {
	doc, err := s.repository.GetDocument(ctx, id)
	if err != nil {
		return err
	}

	store, err := s.GetBackend(doc.BlobBackend)
	if err != nil {
		return err
	}

	// Row delete and blob delete share one transactional scope. A failed
	// blob delete aborts the transaction so the row survives; the reverse
	// order could leave a row pointing at nothing.
	err = s.repository.WithTx(ctx, func(tx Repository) error {
		if err := tx.DeleteDocument(ctx, doc.ID); err != nil {
			return err
		}

		// Identical content is deduplicated onto one object, so the blob
		// stays while any other row still references its path.
		refs, err := tx.FindByContentHash(ctx, doc.ContentHash)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			if ref.ID != doc.ID && ref.BlobBackend == doc.BlobBackend && ref.BlobPath == doc.BlobPath {
				return nil
			}
		}

		if _, err := store.Delete(ctx, doc.BlobPath); err != nil {
			return &StorageError{Backend: doc.BlobBackend, Key: doc.BlobPath, Op: "delete", Err: err}
		}
		return nil
	})
	if err != nil {
		return &DocumentError{DocumentID: id, Op: "permanent_delete", Err: err}
	}
	return nil
}

// Read operations

func (s *service) GetDocument(ctx context.Context, id int64) (*Document, error) {
	return s.repository.GetDocument(ctx, id)
}

func (s *service) GetVersionChain(ctx context.Context, id int64) ([]*Document, error) {
	doc, err := s.repository.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.repository.GetVersionChain(ctx, doc.RootID())
}

func (s *service) ListDocuments(ctx context.Context, req ListDocumentsRequest) ([]*Document, error) {
	return s.repository.ListDocuments(ctx, req.TenantID, req.Filters)
}

// FindDuplicates returns every row sharing the content hash, soft-deleted
// rows included; tenant-level visibility filtering belongs to the caller.
func (s *service) FindDuplicates(ctx context.Context, contentHash string) ([]*Document, error) {
	return s.repository.FindByContentHash(ctx, contentHash)
}

// Content access

func (s *service) DownloadDocument(ctx context.Context, id int64) (io.ReadCloser, error) {
	doc, err := s.repository.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.IsDeleted {
		return nil, &ConflictError{DocumentID: id, Op: "download", Reason: "document is soft-deleted"}
	}

	store, err := s.GetBackend(doc.BlobBackend)
	if err != nil {
		return nil, err
	}
	reader, err := store.Download(ctx, doc.BlobPath)
	if err != nil {
		return nil, &StorageError{Backend: doc.BlobBackend, Key: doc.BlobPath, Op: "download", Err: err}
	}
	return reader, nil
}

func (s *service) GetTemporaryAccessURL(ctx context.Context, id int64, ttl time.Duration) (string, error) {
	doc, err := s.repository.GetDocument(ctx, id)
	if err != nil {
		return "", err
	}
	store, err := s.GetBackend(doc.BlobBackend)
	if err != nil {
		return "", err
	}
	url, err := store.GetTemporaryAccessURL(ctx, doc.BlobPath, ttl)
	if err != nil {
		return "", &StorageError{Backend: doc.BlobBackend, Key: doc.BlobPath, Op: "presign", Err: err}
	}
	return url, nil
}

// Extension payloads

func (s *service) SetDocumentExtension(ctx context.Context, req SetExtensionRequest) error {
	doc, err := s.repository.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return err
	}
	docType, err := s.documentTypes.GetDocumentType(ctx, doc.DocumentTypeID)
	if err != nil {
		return err
	}
	if !docType.HasExtension {
		return &ConflictError{DocumentID: doc.ID, Op: "set_extension",
			Reason: fmt.Sprintf("document type %q carries no extension payload", docType.Name)}
	}

	now := time.Now().UTC()
	return s.repository.SetExtension(ctx, &DocumentExtension{
		DocumentID: doc.ID,
		TypeName:   docType.Name,
		Payload:    req.Payload,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func (s *service) GetDocumentExtension(ctx context.Context, id int64) (*DocumentExtension, error) {
	doc, err := s.repository.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	docType, err := s.documentTypes.GetDocumentType(ctx, doc.DocumentTypeID)
	if err != nil {
		return nil, err
	}
	return s.repository.GetExtension(ctx, doc.ID, docType.Name)
}

// Search staleness surface

func (s *service) ListStaleDocuments(ctx context.Context, limit int) ([]*Document, error) {
	return s.repository.ListStale(ctx, limit)
}

func (s *service) MarkIndexed(ctx context.Context, id int64, searchIndexID string) error {
	return s.repository.MarkIndexed(ctx, id, searchIndexID, time.Now().UTC())
}

// Storage backend operations

func (s *service) RegisterBackend(name string, backend BlobStore) {
	s.blobStores[name] = backend
	if s.defaultBackend == "" {
		s.defaultBackend = name
	}
}

func (s *service) GetBackend(name string) (BlobStore, error) {
	backend, exists := s.blobStores[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStorageBackendNotFound, name)
	}
	return backend, nil
}

// Collaborator lookups

func (s *service) GetTenant(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return s.tenants.GetTenant(ctx, id)
}

func (s *service) GetDocumentType(ctx context.Context, id uuid.UUID) (*DocumentType, error) {
	return s.documentTypes.GetDocumentType(ctx, id)
}

// Upload saga helpers

type stagedUpload struct {
	key  string
	hash string
	size int64
}

// stageUpload streams content into the blob store under a staging key while
// computing its digest in the same pass. Empty content is rejected before any
// blob I/O.
func (s *service) stageUpload(ctx context.Context, store BlobStore, content io.Reader, mimeType, op string) (*stagedUpload, error) {
	peek := make([]byte, 1)
	n, err := io.ReadFull(content, peek)
	if errors.Is(err, io.EOF) {
		return nil, &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	content = io.MultiReader(bytes.NewReader(peek[:n]), content)

	key := s.keys.StagingKey(uuid.New())
	digest := NewDigestReader(content)

	if _, err := store.Put(ctx, key, digest, mimeType); err != nil {
		wrapped := &StorageError{Backend: s.defaultBackend, Key: key, Op: "put", Err: err}
		// A partial upload may be externally visible; try to remove it.
		s.discardBlob(ctx, store, key, op)
		return nil, wrapped
	}

	return &stagedUpload{key: key, hash: digest.HexDigest(), size: digest.BytesRead()}, nil
}

// promote moves a staged blob to its final content-addressed key. When an
// object already exists at the final key the bytes are identical, so the
// staged copy is dropped and the existing object shared; callers must not
// compensate-delete a shared blob.
func (s *service) promote(ctx context.Context, store BlobStore, stagingKey, finalKey, op string) (shared bool, err error) {
	exists, err := store.Exists(ctx, finalKey)
	if err != nil {
		wrapped := &StorageError{Backend: s.defaultBackend, Key: finalKey, Op: "exists", Err: err}
		s.discardBlob(ctx, store, stagingKey, op)
		return false, wrapped
	}
	if exists {
		s.discardBlob(ctx, store, stagingKey, op)
		return true, nil
	}

	if err := store.Move(ctx, stagingKey, finalKey); err != nil {
		wrapped := &StorageError{Backend: s.defaultBackend, Key: finalKey, Op: "move", Err: err}
		s.discardBlob(ctx, store, stagingKey, op)
		return false, wrapped
	}
	return false, nil
}

// discardBlob is the compensating action of the upload saga: best effort,
// never fails the operation. It runs detached from the caller's cancellation
// so a canceled request still cleans up after itself.
func (s *service) discardBlob(ctx context.Context, store BlobStore, key, op string) {
	if key == "" {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), blobCleanupTimeout)
	defer cancel()

	if _, err := store.Delete(cleanupCtx, key); err != nil {
		txErr := &TransactionError{Op: op, Key: key, Err: err}
		s.logger.Error("compensating blob delete failed",
			"op", op, "key", key, "error", txErr)
	}
}

// discardFinalBlob compensates a failed metadata commit for a blob already
// promoted to its content-addressed final key. A concurrent writer of the
// same bytes may have committed a row against that key after this writer
// promoted it, so the delete is guarded by a reference check. When the check
// itself fails the blob is left behind: an orphan blob is recoverable, a row
// pointing at a missing blob is not.
func (s *service) discardFinalBlob(ctx context.Context, store BlobStore, key, contentHash, op string) {
	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), blobCleanupTimeout)
	defer cancel()

	refs, err := s.repository.FindByContentHash(lookupCtx, contentHash)
	if err != nil {
		s.logger.Error("reference check before compensating delete failed, leaving blob",
			"op", op, "key", key, "error", err)
		return
	}
	for _, ref := range refs {
		if ref.BlobBackend == s.defaultBackend && ref.BlobPath == key {
			return
		}
	}
	s.discardBlob(ctx, store, key, op)
}

func closeContent(r io.Reader) {
	if c, ok := r.(io.Closer); ok {
		c.Close()
	}
}
