package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tendant/simple-docs/pkg/simpledocs"
)

// TenantStore implements simpledocs.TenantStore against the tenants table.
type TenantStore struct {
	db DBTX
}

// NewTenantStore creates a PostgreSQL-backed tenant store
func NewTenantStore(db DBTX) *TenantStore {
	return &TenantStore{db: db}
}

func (s *TenantStore) GetTenant(ctx context.Context, id uuid.UUID) (*simpledocs.Tenant, error) {
	query := `SELECT id, name, is_active, created_at, updated_at FROM tenants WHERE id = $1`

	var tenant simpledocs.Tenant
	err := s.db.QueryRow(ctx, query, id).Scan(
		&tenant.ID, &tenant.Name, &tenant.IsActive, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simpledocs.ErrTenantNotFound
		}
		return nil, err
	}
	return &tenant, nil
}

// ListTenants returns every tenant ordered by name. Used by admin tooling.
func (s *TenantStore) ListTenants(ctx context.Context) ([]*simpledocs.Tenant, error) {
	query := `SELECT id, name, is_active, created_at, updated_at FROM tenants ORDER BY name`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*simpledocs.Tenant
	for rows.Next() {
		var tenant simpledocs.Tenant
		if err := rows.Scan(&tenant.ID, &tenant.Name, &tenant.IsActive,
			&tenant.CreatedAt, &tenant.UpdatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, &tenant)
	}
	return tenants, rows.Err()
}

// DocumentTypeStore implements simpledocs.DocumentTypeStore against the
// document_types table.
type DocumentTypeStore struct {
	db DBTX
}

// NewDocumentTypeStore creates a PostgreSQL-backed document-type store
func NewDocumentTypeStore(db DBTX) *DocumentTypeStore {
	return &DocumentTypeStore{db: db}
}

func (s *DocumentTypeStore) GetDocumentType(ctx context.Context, id uuid.UUID) (*simpledocs.DocumentType, error) {
	query := `SELECT id, name, description, has_extension, created_at, updated_at
		FROM document_types WHERE id = $1`

	var docType simpledocs.DocumentType
	err := s.db.QueryRow(ctx, query, id).Scan(
		&docType.ID, &docType.Name, &docType.Description, &docType.HasExtension,
		&docType.CreatedAt, &docType.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simpledocs.ErrDocumentTypeNotFound
		}
		return nil, err
	}
	return &docType, nil
}

// ListDocumentTypes returns every document type ordered by name. Used by
// admin tooling.
func (s *DocumentTypeStore) ListDocumentTypes(ctx context.Context) ([]*simpledocs.DocumentType, error) {
	query := `SELECT id, name, description, has_extension, created_at, updated_at
		FROM document_types ORDER BY name`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []*simpledocs.DocumentType
	for rows.Next() {
		var docType simpledocs.DocumentType
		if err := rows.Scan(&docType.ID, &docType.Name, &docType.Description,
			&docType.HasExtension, &docType.CreatedAt, &docType.UpdatedAt); err != nil {
			return nil, err
		}
		types = append(types, &docType)
	}
	return types, rows.Err()
}
