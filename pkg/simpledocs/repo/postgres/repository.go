package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-docs/pkg/simpledocs"
)

// DBTX is an interface that allows us to use either a database connection or
// a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simpledocs.Repository using PostgreSQL
type Repository struct {
	db   DBTX
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL repository bound to an existing connection or
// transaction. WithTx requires a pool; use NewWithPool for transactional use.
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, pool: pool}
}

// WithTx runs fn inside a database transaction. Nested calls reuse the
// enclosing transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(tx simpledocs.Repository) error) error {
	if r.pool == nil {
		// Already inside a transaction (or bound to a plain connection).
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Repository{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// handlePostgresError maps driver errors onto the domain taxonomy.
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "chain_version") {
				return simpledocs.ErrVersionConflict
			}
			return fmt.Errorf("duplicate entry")
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced record not found")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return simpledocs.ErrDocumentNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

const documentColumns = `
	id, tenant_id, document_type_id,
	original_file_name, mime_type, file_size_bytes, content_hash, blob_backend, blob_path,
	title, description, metadata, tags,
	version, parent_document_id, is_current_version,
	is_deleted, deleted_at, deleted_by, deleted_reason, is_archived, archived_at,
	search_index_id, last_indexed_at,
	created_at, created_by, updated_at, updated_by`

func scanDocument(row pgx.Row) (*simpledocs.Document, error) {
	var doc simpledocs.Document
	err := row.Scan(
		&doc.ID, &doc.TenantID, &doc.DocumentTypeID,
		&doc.OriginalFileName, &doc.MimeType, &doc.FileSizeBytes, &doc.ContentHash, &doc.BlobBackend, &doc.BlobPath,
		&doc.Title, &doc.Description, &doc.Metadata, &doc.Tags,
		&doc.Version, &doc.ParentDocumentID, &doc.IsCurrentVersion,
		&doc.IsDeleted, &doc.DeletedAt, &doc.DeletedBy, &doc.DeletedReason, &doc.IsArchived, &doc.ArchivedAt,
		&doc.SearchIndexID, &doc.LastIndexedAt,
		&doc.CreatedAt, &doc.CreatedBy, &doc.UpdatedAt, &doc.UpdatedBy)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func collectDocuments(rows pgx.Rows) ([]*simpledocs.Document, error) {
	defer rows.Close()

	var documents []*simpledocs.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		documents = append(documents, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return documents, nil
}

// Document operations

func (r *Repository) CreateDocument(ctx context.Context, doc *simpledocs.Document) error {
	query := `
		INSERT INTO documents (
			tenant_id, document_type_id,
			original_file_name, mime_type, file_size_bytes, content_hash, blob_backend, blob_path,
			title, description, metadata, tags,
			version, parent_document_id, is_current_version,
			is_deleted, deleted_at, deleted_by, deleted_reason, is_archived, archived_at,
			search_index_id, last_indexed_at,
			created_at, created_by, updated_at, updated_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		doc.TenantID, doc.DocumentTypeID,
		doc.OriginalFileName, doc.MimeType, doc.FileSizeBytes, doc.ContentHash, doc.BlobBackend, doc.BlobPath,
		doc.Title, doc.Description, doc.Metadata, doc.Tags,
		doc.Version, doc.ParentDocumentID, doc.IsCurrentVersion,
		doc.IsDeleted, doc.DeletedAt, doc.DeletedBy, doc.DeletedReason, doc.IsArchived, doc.ArchivedAt,
		doc.SearchIndexID, doc.LastIndexedAt,
		doc.CreatedAt, doc.CreatedBy, doc.UpdatedAt, doc.UpdatedBy).Scan(&doc.ID)

	if err != nil {
		return r.handlePostgresError("create document", err)
	}
	return nil
}

func (r *Repository) GetDocument(ctx context.Context, id int64) (*simpledocs.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	doc, err := scanDocument(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simpledocs.ErrDocumentNotFound
		}
		return nil, r.handlePostgresError("get document", err)
	}
	return doc, nil
}

func (r *Repository) UpdateDocument(ctx context.Context, doc *simpledocs.Document) error {
	query := `
		UPDATE documents SET
			original_file_name = $2, mime_type = $3, file_size_bytes = $4, content_hash = $5,
			blob_backend = $6, blob_path = $7,
			title = $8, description = $9, metadata = $10, tags = $11,
			version = $12, parent_document_id = $13, is_current_version = $14,
			is_deleted = $15, deleted_at = $16, deleted_by = $17, deleted_reason = $18,
			is_archived = $19, archived_at = $20,
			updated_at = $21, updated_by = $22
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		doc.ID,
		doc.OriginalFileName, doc.MimeType, doc.FileSizeBytes, doc.ContentHash,
		doc.BlobBackend, doc.BlobPath,
		doc.Title, doc.Description, doc.Metadata, doc.Tags,
		doc.Version, doc.ParentDocumentID, doc.IsCurrentVersion,
		doc.IsDeleted, doc.DeletedAt, doc.DeletedBy, doc.DeletedReason,
		doc.IsArchived, doc.ArchivedAt,
		doc.UpdatedAt, doc.UpdatedBy)
	if err != nil {
		return r.handlePostgresError("update document", err)
	}
	if tag.RowsAffected() == 0 {
		return simpledocs.ErrDocumentNotFound
	}
	return nil
}

func (r *Repository) DeleteDocument(ctx context.Context, id int64) error {
	// Physical removal; extension payloads go with the row via FK cascade.
	tag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete document", err)
	}
	if tag.RowsAffected() == 0 {
		return simpledocs.ErrDocumentNotFound
	}
	return nil
}

// Query surface

func (r *Repository) ListDocuments(ctx context.Context, tenantID uuid.UUID, filters simpledocs.DocumentListFilters) ([]*simpledocs.Document, error) {
	var conditions []string
	var args []interface{}

	args = append(args, tenantID)
	conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", len(args)))

	if filters.DocumentTypeID != nil {
		args = append(args, *filters.DocumentTypeID)
		conditions = append(conditions, fmt.Sprintf("document_type_id = $%d", len(args)))
	}
	if filters.CurrentOnly {
		conditions = append(conditions, "is_current_version")
	}
	if !filters.IncludeDeleted {
		conditions = append(conditions, "NOT is_deleted")
	}
	if filters.ArchivedOnly {
		conditions = append(conditions, "is_archived")
	}
	if filters.CreatedAfter != nil {
		args = append(args, *filters.CreatedAfter)
		conditions = append(conditions, fmt.Sprintf("created_at > $%d", len(args)))
	}
	if filters.CreatedBefore != nil {
		args = append(args, *filters.CreatedBefore)
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
	}

	query := `SELECT ` + documentColumns + ` FROM documents WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY created_at DESC, id DESC`

	if filters.Limit != nil && *filters.Limit > 0 {
		args = append(args, *filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filters.Offset != nil && *filters.Offset > 0 {
		args = append(args, *filters.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list documents", err)
	}
	return collectDocuments(rows)
}

func (r *Repository) FindByContentHash(ctx context.Context, contentHash string) ([]*simpledocs.Document, error) {
	// Soft-deleted rows stay visible to hash lookups.
	query := `SELECT ` + documentColumns + ` FROM documents WHERE content_hash = $1 ORDER BY id`

	rows, err := r.db.Query(ctx, query, contentHash)
	if err != nil {
		return nil, r.handlePostgresError("find by content hash", err)
	}
	return collectDocuments(rows)
}

func (r *Repository) GetVersionChain(ctx context.Context, rootID int64) ([]*simpledocs.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE COALESCE(parent_document_id, id) = $1 ORDER BY version`

	rows, err := r.db.Query(ctx, query, rootID)
	if err != nil {
		return nil, r.handlePostgresError("get version chain", err)
	}
	chain, err := collectDocuments(rows)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, simpledocs.ErrDocumentNotFound
	}
	return chain, nil
}

func (r *Repository) GetCurrentVersion(ctx context.Context, rootID int64) (*simpledocs.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE COALESCE(parent_document_id, id) = $1 AND is_current_version`

	doc, err := scanDocument(r.db.QueryRow(ctx, query, rootID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simpledocs.ErrDocumentNotFound
		}
		return nil, r.handlePostgresError("get current version", err)
	}
	return doc, nil
}

// MaxVersion locks the highest-version row of the chain for the duration of
// the enclosing transaction, serializing concurrent version writers. The
// unique (chain, version) index is the backstop when two writers slip past
// the lock on an empty lock set.
func (r *Repository) MaxVersion(ctx context.Context, rootID int64) (int, error) {
	query := `SELECT version FROM documents
		WHERE COALESCE(parent_document_id, id) = $1
		ORDER BY version DESC LIMIT 1 FOR UPDATE`

	var version int
	if err := r.db.QueryRow(ctx, query, rootID).Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, simpledocs.ErrDocumentNotFound
		}
		return 0, r.handlePostgresError("max version", err)
	}
	return version, nil
}

func (r *Repository) DemoteCurrentVersion(ctx context.Context, rootID int64, at time.Time, actor string) error {
	query := `UPDATE documents
		SET is_current_version = false, updated_at = $2, updated_by = $3
		WHERE COALESCE(parent_document_id, id) = $1 AND is_current_version`

	if _, err := r.db.Exec(ctx, query, rootID, at, actor); err != nil {
		return r.handlePostgresError("demote current version", err)
	}
	return nil
}

// Search staleness surface

func (r *Repository) ListStale(ctx context.Context, limit int) ([]*simpledocs.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE last_indexed_at IS NULL OR updated_at > last_indexed_at
		ORDER BY updated_at, id`

	var args []interface{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list stale documents", err)
	}
	return collectDocuments(rows)
}

func (r *Repository) MarkIndexed(ctx context.Context, id int64, searchIndexID string, at time.Time) error {
	// updated_at is deliberately untouched: indexing must not re-stale the row.
	query := `UPDATE documents SET search_index_id = $2, last_indexed_at = $3 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, searchIndexID, at)
	if err != nil {
		return r.handlePostgresError("mark indexed", err)
	}
	if tag.RowsAffected() == 0 {
		return simpledocs.ErrDocumentNotFound
	}
	return nil
}

// Extension operations

func (r *Repository) SetExtension(ctx context.Context, ext *simpledocs.DocumentExtension) error {
	query := `
		INSERT INTO document_extensions (document_id, type_name, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (document_id, type_name) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		ext.DocumentID, ext.TypeName, ext.Payload, ext.CreatedAt, ext.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("set extension", err)
	}
	return nil
}

func (r *Repository) GetExtension(ctx context.Context, documentID int64, typeName string) (*simpledocs.DocumentExtension, error) {
	query := `SELECT document_id, type_name, payload, created_at, updated_at
		FROM document_extensions WHERE document_id = $1 AND type_name = $2`

	var ext simpledocs.DocumentExtension
	err := r.db.QueryRow(ctx, query, documentID, typeName).Scan(
		&ext.DocumentID, &ext.TypeName, &ext.Payload, &ext.CreatedAt, &ext.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simpledocs.ErrExtensionNotFound
		}
		return nil, r.handlePostgresError("get extension", err)
	}
	return &ext, nil
}
